package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/coursework-api/internal/models"
)

// AssignmentRepository defines persistence operations for assignment definitions.
type AssignmentRepository interface {
	GetByID(ctx context.Context, id uint) (models.Assignment, error)
	ListByCourse(ctx context.Context, courseID uint) ([]models.Assignment, error)
	ListByCourses(ctx context.Context, courseIDs []uint) ([]models.Assignment, error)
	ListByCreator(ctx context.Context, instructorID uint) ([]models.Assignment, error)
	ListDueBetween(ctx context.Context, from, to time.Time) ([]models.Assignment, error)
	Create(ctx context.Context, assignment *models.Assignment) error
	Update(ctx context.Context, assignment *models.Assignment, replaceQuestions bool) error
	DeleteCascade(ctx context.Context, id uint) error
}

type assignmentRepository struct {
	db *gorm.DB
}

// NewAssignmentRepository instantiates a GORM-backed repository.
func NewAssignmentRepository(db *gorm.DB) AssignmentRepository {
	return &assignmentRepository{db: db}
}

func (r *assignmentRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Assignment{}).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		})
}

func (r *assignmentRepository) GetByID(ctx context.Context, id uint) (models.Assignment, error) {
	var assignment models.Assignment
	if err := r.baseQuery(ctx).First(&assignment, id).Error; err != nil {
		return models.Assignment{}, err
	}

	return assignment, nil
}

func (r *assignmentRepository) ListByCourse(ctx context.Context, courseID uint) ([]models.Assignment, error) {
	var assignments []models.Assignment
	if err := r.baseQuery(ctx).
		Where("course_id = ?", courseID).
		Order("created_at DESC").
		Find(&assignments).Error; err != nil {
		return nil, err
	}

	return assignments, nil
}

func (r *assignmentRepository) ListByCourses(ctx context.Context, courseIDs []uint) ([]models.Assignment, error) {
	if len(courseIDs) == 0 {
		return []models.Assignment{}, nil
	}

	var assignments []models.Assignment
	if err := r.baseQuery(ctx).
		Where("course_id IN ?", courseIDs).
		Order("created_at DESC").
		Find(&assignments).Error; err != nil {
		return nil, err
	}

	return assignments, nil
}

func (r *assignmentRepository) ListByCreator(ctx context.Context, instructorID uint) ([]models.Assignment, error) {
	var assignments []models.Assignment
	if err := r.baseQuery(ctx).
		Where("created_by = ?", instructorID).
		Order("created_at DESC").
		Find(&assignments).Error; err != nil {
		return nil, err
	}

	return assignments, nil
}

func (r *assignmentRepository) ListDueBetween(ctx context.Context, from, to time.Time) ([]models.Assignment, error) {
	var assignments []models.Assignment
	if err := r.db.WithContext(ctx).
		Where("due_date >= ? AND due_date <= ?", from, to).
		Order("due_date ASC").
		Find(&assignments).Error; err != nil {
		return nil, err
	}

	return assignments, nil
}

func (r *assignmentRepository) Create(ctx context.Context, assignment *models.Assignment) error {
	return r.db.WithContext(ctx).Create(assignment).Error
}

// Update saves the definition. When replaceQuestions is set the stored quiz
// questions are swapped for assignment.Questions inside one transaction.
func (r *assignmentRepository) Update(ctx context.Context, assignment *models.Assignment, replaceQuestions bool) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Assignment{}).
			Where("id = ?", assignment.ID).
			Select("title", "description", "section_id", "max_marks", "due_date", "instructions", "attachments", "status", "updated_at").
			Updates(map[string]interface{}{
				"title":        assignment.Title,
				"description":  assignment.Description,
				"section_id":   assignment.SectionID,
				"max_marks":    assignment.MaxMarks,
				"due_date":     assignment.DueDate,
				"instructions": assignment.Instructions,
				"attachments":  assignment.Attachments,
				"status":       assignment.Status,
				"updated_at":   time.Now(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		if !replaceQuestions {
			return nil
		}

		if err := tx.Where("assignment_id = ?", assignment.ID).Delete(&models.Question{}).Error; err != nil {
			return err
		}
		if len(assignment.Questions) == 0 {
			return nil
		}
		for i := range assignment.Questions {
			assignment.Questions[i].AssignmentID = assignment.ID
		}
		return tx.Create(&assignment.Questions).Error
	})
}

// DeleteCascade removes the assignment, its questions and every submission
// referencing it. Section listings derive from section_id, so no section row
// needs rewriting.
func (r *assignmentRepository) DeleteCascade(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("assignment_id = ?", id).Delete(&models.Submission{}).Error; err != nil {
			return err
		}
		if err := tx.Where("assignment_id = ?", id).Delete(&models.Question{}).Error; err != nil {
			return err
		}

		result := tx.Delete(&models.Assignment{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
