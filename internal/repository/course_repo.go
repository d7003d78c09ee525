package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/coursework-api/internal/models"
)

// CourseRepository exposes course, section and enrollment lookups.
type CourseRepository interface {
	GetByID(ctx context.Context, id uint) (models.Course, error)
	GetSection(ctx context.Context, id uint) (models.Section, error)
	IsEnrolled(ctx context.Context, courseID, studentID uint) (bool, error)
	EnrolledCourseIDs(ctx context.Context, studentID uint) ([]uint, error)
	EnrolledStudentIDs(ctx context.Context, courseID uint) ([]uint, error)
}

type courseRepository struct {
	db *gorm.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *gorm.DB) CourseRepository {
	return &courseRepository{db: db}
}

func (r *courseRepository) GetByID(ctx context.Context, id uint) (models.Course, error) {
	var course models.Course
	if err := r.db.WithContext(ctx).First(&course, id).Error; err != nil {
		return models.Course{}, err
	}
	return course, nil
}

func (r *courseRepository) GetSection(ctx context.Context, id uint) (models.Section, error) {
	var section models.Section
	if err := r.db.WithContext(ctx).First(&section, id).Error; err != nil {
		return models.Section{}, err
	}
	return section, nil
}

func (r *courseRepository) IsEnrolled(ctx context.Context, courseID, studentID uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.CourseEnrollment{}).
		Where("course_id = ? AND student_id = ?", courseID, studentID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *courseRepository) EnrolledCourseIDs(ctx context.Context, studentID uint) ([]uint, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).Model(&models.CourseEnrollment{}).
		Where("student_id = ?", studentID).
		Order("course_id ASC").
		Pluck("course_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *courseRepository) EnrolledStudentIDs(ctx context.Context, courseID uint) ([]uint, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).Model(&models.CourseEnrollment{}).
		Where("course_id = ?", courseID).
		Order("student_id ASC").
		Pluck("student_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
