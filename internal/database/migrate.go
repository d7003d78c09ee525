package database

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/noah-isme/coursework-api/internal/models"
)

// Migrate creates or updates every table the service owns.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Course{},
		&models.Section{},
		&models.CourseEnrollment{},
		&models.Assignment{},
		&models.Question{},
		&models.Submission{},
		&models.Notification{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
