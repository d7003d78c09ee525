package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/coursework-api/internal/models"
)

// SubmissionRepository defines data operations for the submission ledger.
type SubmissionRepository interface {
	GetByID(ctx context.Context, id uint) (models.Submission, error)
	// ListForPair returns every submission for the pair, newest attempt first.
	ListForPair(ctx context.Context, assignmentID, studentID uint) ([]models.Submission, error)
	ListByAssignment(ctx context.Context, assignmentID uint) ([]models.Submission, error)
	ListByStudent(ctx context.Context, studentID uint, assignmentIDs []uint) ([]models.Submission, error)
	// Create fails with gorm.ErrDuplicatedKey when the attempt number is taken.
	Create(ctx context.Context, submission *models.Submission) error
	UpdateGrade(ctx context.Context, submission *models.Submission) error
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Submission{}).
		Preload("Assignment").
		Preload("Student")
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.baseQuery(ctx).First(&submission, id).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) ListForPair(ctx context.Context, assignmentID, studentID uint) ([]models.Submission, error) {
	var submissions []models.Submission
	if err := r.db.WithContext(ctx).
		Where("assignment_id = ? AND student_id = ?", assignmentID, studentID).
		Order("attempt_number DESC").
		Find(&submissions).Error; err != nil {
		return nil, err
	}

	return submissions, nil
}

func (r *submissionRepository) ListByAssignment(ctx context.Context, assignmentID uint) ([]models.Submission, error) {
	var submissions []models.Submission
	if err := r.baseQuery(ctx).
		Where("assignment_id = ?", assignmentID).
		Order("submitted_at DESC").
		Order("id DESC").
		Find(&submissions).Error; err != nil {
		return nil, err
	}

	return submissions, nil
}

func (r *submissionRepository) ListByStudent(ctx context.Context, studentID uint, assignmentIDs []uint) ([]models.Submission, error) {
	query := r.db.WithContext(ctx).Where("student_id = ?", studentID)
	if assignmentIDs != nil {
		if len(assignmentIDs) == 0 {
			return []models.Submission{}, nil
		}
		query = query.Where("assignment_id IN ?", assignmentIDs)
	}

	var submissions []models.Submission
	if err := query.
		Order("assignment_id ASC").
		Order("attempt_number DESC").
		Find(&submissions).Error; err != nil {
		return nil, err
	}

	return submissions, nil
}

func (r *submissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Omit("Assignment", "Student").Create(submission).Error
}

func (r *submissionRepository) UpdateGrade(ctx context.Context, submission *models.Submission) error {
	result := r.db.WithContext(ctx).Model(&models.Submission{}).
		Where("id = ?", submission.ID).
		Updates(map[string]interface{}{
			"score":      submission.Score,
			"feedback":   submission.Feedback,
			"is_graded":  submission.IsGraded,
			"graded_by":  submission.GradedBy,
			"graded_at":  submission.GradedAt,
			"state":      submission.State,
			"updated_at": submission.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
