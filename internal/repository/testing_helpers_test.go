package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/noah-isme/coursework-api/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Course{},
		&models.Section{},
		&models.CourseEnrollment{},
		&models.Assignment{},
		&models.Question{},
		&models.Submission{},
		&models.Notification{},
	))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

type catalog struct {
	instructor models.User
	student    models.User
	course     models.Course
	section    models.Section
}

func seedCatalog(t *testing.T, db *gorm.DB) catalog {
	t.Helper()
	c := catalog{
		instructor: models.User{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", Role: models.RoleInstructor},
		student:    models.User{FirstName: "Alan", LastName: "Turing", Email: "alan@example.com", Role: models.RoleStudent},
	}
	require.NoError(t, db.Create(&c.instructor).Error)
	require.NoError(t, db.Create(&c.student).Error)

	c.course = models.Course{Title: "Algorithms", InstructorID: c.instructor.ID}
	require.NoError(t, db.Create(&c.course).Error)
	c.section = models.Section{CourseID: c.course.ID, Title: "Week 1"}
	require.NoError(t, db.Create(&c.section).Error)
	require.NoError(t, db.Create(&models.CourseEnrollment{CourseID: c.course.ID, StudentID: c.student.ID}).Error)
	return c
}

func newQuiz(c catalog, due time.Time) models.Assignment {
	quiz := models.Assignment{
		Title:        "Sorting quiz",
		Description:  "Sorting basics",
		Kind:         models.AssignmentKindQuiz,
		CourseID:     c.course.ID,
		SectionID:    c.section.ID,
		MaxMarks:     10,
		DueDate:      due,
		Instructions: "Pick one option per question",
		CreatedBy:    c.instructor.ID,
		Status:       models.AssignmentStatusPublished,
	}
	first := models.Question{ID: uuid.NewString(), Position: 0, Prompt: "Fastest average sort?", CorrectOption: 1, Marks: 5}
	first.SetOptions([]string{"bubble", "quick"})
	second := models.Question{ID: uuid.NewString(), Position: 1, Prompt: "Stable sort?", CorrectOption: 0, Marks: 5}
	second.SetOptions([]string{"merge", "heap"})
	quiz.Questions = []models.Question{first, second}
	return quiz
}

func newSubmission(assignment models.Assignment, studentID uint, attempt int) models.Submission {
	return models.Submission{
		AssignmentID:  assignment.ID,
		StudentID:     studentID,
		CourseID:      assignment.CourseID,
		AttemptNumber: attempt,
		MaxScore:      assignment.MaxMarks,
		State:         models.SubmissionStateSubmitted,
		SubmittedAt:   time.Now().UTC(),
	}
}
