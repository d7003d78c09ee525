package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/noah-isme/coursework-api/internal/repository"
)

const gradebookSheet = "Submissions"

// GradebookService exports submission results for an assignment.
type GradebookService interface {
	Export(ctx context.Context, assignmentID, instructorID uint) ([]byte, string, error)
}

type gradebookService struct {
	assignments repository.AssignmentRepository
	submissions repository.SubmissionRepository
	logger      zerolog.Logger
}

// NewGradebookService constructs the XLSX exporter.
func NewGradebookService(assignments repository.AssignmentRepository, submissions repository.SubmissionRepository, logger zerolog.Logger) GradebookService {
	return &gradebookService{
		assignments: assignments,
		submissions: submissions,
		logger:      logger.With().Str("component", "gradebook_service").Logger(),
	}
}

func (s *gradebookService) Export(ctx context.Context, assignmentID, instructorID uint) ([]byte, string, error) {
	assignment, err := s.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrAssignmentNotFound
		}
		return nil, "", err
	}
	if assignment.CreatedBy != instructorID {
		return nil, "", ErrForbidden
	}

	submissions, err := s.submissions.ListByAssignment(ctx, assignmentID)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to close workbook")
		}
	}()

	index, err := f.NewSheet(gradebookSheet)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create gradebook sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, "", fmt.Errorf("failed to drop default sheet: %w", err)
	}

	headers := []interface{}{
		"Student ID", "Student Name", "Email", "Attempt", "Score", "Max Score",
		"State", "Submitted At", "Graded At", "Feedback",
	}
	if err := f.SetSheetRow(gradebookSheet, "A1", &headers); err != nil {
		return nil, "", fmt.Errorf("failed to write gradebook header: %w", err)
	}

	for i, submission := range submissions {
		gradedAt := ""
		if submission.GradedAt != nil {
			gradedAt = submission.GradedAt.Format("2006-01-02 15:04:05")
		}
		row := []interface{}{
			submission.StudentID,
			submission.Student.FullName(),
			submission.Student.Email,
			submission.AttemptNumber,
			submission.Score,
			submission.MaxScore,
			string(submission.State),
			submission.SubmittedAt.Format("2006-01-02 15:04:05"),
			gradedAt,
			submission.Feedback,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, "", err
		}
		if err := f.SetSheetRow(gradebookSheet, cell, &row); err != nil {
			return nil, "", fmt.Errorf("failed to write gradebook row: %w", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", fmt.Errorf("failed to write gradebook: %w", err)
	}

	s.logger.Info().Uint("assignment_id", assignmentID).Int("rows", len(submissions)).Msg("gradebook exported")

	return buf.Bytes(), fmt.Sprintf("assignment-%d-submissions.xlsx", assignmentID), nil
}
