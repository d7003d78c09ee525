package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/coursework-api/internal/dto"
	"github.com/noah-isme/coursework-api/internal/grading"
	"github.com/noah-isme/coursework-api/internal/models"
	"github.com/noah-isme/coursework-api/internal/observability"
	"github.com/noah-isme/coursework-api/internal/repository"
)

var allowedAttachmentExtensions = []string{".pdf", ".txt"}

// SubmissionService runs the submit flow and submission listings.
type SubmissionService interface {
	Submit(ctx context.Context, assignmentID, studentID uint, payload dto.SubmitRequest) (dto.SubmissionResponse, error)
	ListOwn(ctx context.Context, assignmentID, studentID uint) ([]dto.SubmissionResponse, error)
	ListForAssignment(ctx context.Context, assignmentID, instructorID uint) ([]dto.SubmissionResponse, error)
}

type submissionService struct {
	assignments repository.AssignmentRepository
	submissions repository.SubmissionRepository
	courses     repository.CourseRepository
	notifier    Notifier
	cache       *StatusCache
	validator   *validator.Validate
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewSubmissionService constructs a SubmissionService instance.
func NewSubmissionService(
	assignments repository.AssignmentRepository,
	submissions repository.SubmissionRepository,
	courses repository.CourseRepository,
	notifier Notifier,
	cache *StatusCache,
	validate *validator.Validate,
	logger zerolog.Logger,
) SubmissionService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &submissionService{
		assignments: assignments,
		submissions: submissions,
		courses:     courses,
		notifier:    notifier,
		cache:       cache,
		validator:   validate,
		sanitizer:   bluemonday.UGCPolicy(),
		logger:      logger.With().Str("component", "submission_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/coursework-api/internal/service/submission"),
		now:         time.Now,
	}
}

func (s *submissionService) Submit(ctx context.Context, assignmentID, studentID uint, payload dto.SubmitRequest) (dto.SubmissionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "submissions.submit", trace.WithAttributes(
		attribute.Int64("assignment.id", int64(assignmentID)),
		attribute.Int64("student.id", int64(studentID)),
	))
	defer span.End()

	submission, err := s.submit(ctx, span, assignmentID, studentID, payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return dto.SubmissionResponse{}, err
	}

	return dto.NewSubmissionResponse(submission), nil
}

func (s *submissionService) submit(ctx context.Context, span trace.Span, assignmentID, studentID uint, payload dto.SubmitRequest) (models.Submission, error) {
	if err := validateStruct(s.validator, payload).OrNil(); err != nil {
		return models.Submission{}, err
	}

	assignment, err := s.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Submission{}, ErrAssignmentNotFound
		}
		return models.Submission{}, err
	}
	kind := string(assignment.Kind)

	enrolled, err := s.courses.IsEnrolled(ctx, assignment.CourseID, studentID)
	if err != nil {
		return models.Submission{}, err
	}
	if !enrolled {
		observability.Submissions().WithLabelValues(kind, "not_enrolled").Inc()
		return models.Submission{}, ErrNotEnrolled
	}

	prior, err := s.submissions.ListForPair(ctx, assignment.ID, studentID)
	if err != nil {
		return models.Submission{}, err
	}

	now := s.now()
	decision := grading.Evaluate(prior, assignment, now)
	if !decision.Allowed {
		observability.AttemptDenials().WithLabelValues(string(decision.Reason)).Inc()
		observability.Submissions().WithLabelValues(kind, "denied").Inc()
		s.logger.Info().
			Uint("assignment_id", assignment.ID).
			Uint("student_id", studentID).
			Str("reason", string(decision.Reason)).
			Int("prior_attempts", len(prior)).
			Msg("submission denied by attempt policy")
		return models.Submission{}, decision.Err()
	}
	span.SetAttributes(attribute.Int("submission.attempt", decision.NextAttempt))

	submission := models.Submission{
		AssignmentID:  assignment.ID,
		StudentID:     studentID,
		CourseID:      assignment.CourseID,
		AttemptNumber: decision.NextAttempt,
		MaxScore:      assignment.MaxMarks,
		State:         grading.InitialState(assignment.Kind),
		SubmittedAt:   now,
	}

	if assignment.IsQuiz() {
		result := grading.Grade(assignment.Questions, toSubmittedAnswers(payload.Answers))
		if len(result.Dropped) > 0 {
			s.logger.Warn().
				Uint("assignment_id", assignment.ID).
				Strs("question_ids", result.Dropped).
				Msg("quiz answers reference unknown questions")
		}
		submission.Score = result.Score
		submission.IsGraded = true
		submission.SetAnswers(result.ModelAnswers())
	} else {
		submission.SubmissionText = sanitizeText(s.sanitizer, payload.SubmissionText)
		submission.SetAttachments(filterAttachments(payload.Attachments))
	}

	if err := s.submissions.Create(ctx, &submission); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			observability.Submissions().WithLabelValues(kind, "conflict").Inc()
			s.logger.Warn().
				Uint("assignment_id", assignment.ID).
				Uint("student_id", studentID).
				Int("attempt", submission.AttemptNumber).
				Msg("concurrent submission claimed attempt number")
			return models.Submission{}, ErrConcurrentSubmission
		}
		return models.Submission{}, err
	}

	observability.Submissions().WithLabelValues(kind, "accepted").Inc()
	s.logger.Info().
		Uint("submission_id", submission.ID).
		Uint("assignment_id", assignment.ID).
		Uint("student_id", studentID).
		Int("attempt", submission.AttemptNumber).
		Int("score", submission.Score).
		Msg("submission recorded")

	s.cache.Invalidate(ctx, studentID)
	s.notifier.SubmissionConfirmed(ctx, submission.ID)

	assignment.Questions = nil
	submission.Assignment = assignment
	return submission, nil
}

func (s *submissionService) ListOwn(ctx context.Context, assignmentID, studentID uint) ([]dto.SubmissionResponse, error) {
	if _, err := s.assignments.GetByID(ctx, assignmentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAssignmentNotFound
		}
		return nil, err
	}

	submissions, err := s.submissions.ListForPair(ctx, assignmentID, studentID)
	if err != nil {
		return nil, err
	}

	// oldest attempt first
	ordered := make([]models.Submission, 0, len(submissions))
	for i := len(submissions) - 1; i >= 0; i-- {
		ordered = append(ordered, submissions[i])
	}

	return dto.NewSubmissionResponseSlice(ordered), nil
}

func (s *submissionService) ListForAssignment(ctx context.Context, assignmentID, instructorID uint) ([]dto.SubmissionResponse, error) {
	assignment, err := s.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAssignmentNotFound
		}
		return nil, err
	}
	if assignment.CreatedBy != instructorID {
		return nil, ErrForbidden
	}

	submissions, err := s.submissions.ListByAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}

	return dto.NewSubmissionResponseSlice(submissions), nil
}

func toSubmittedAnswers(payloads []dto.AnswerPayload) []grading.SubmittedAnswer {
	answers := make([]grading.SubmittedAnswer, 0, len(payloads))
	for _, payload := range payloads {
		answer := grading.SubmittedAnswer{QuestionID: strings.TrimSpace(payload.QuestionID)}
		if payload.SelectedOption != nil {
			answer.SelectedOption = *payload.SelectedOption
		}
		answers = append(answers, answer)
	}
	return answers
}

// filterAttachments keeps named files with an allowed extension.
func filterAttachments(files []dto.SubmittedFile) []models.Attachment {
	attachments := make([]models.Attachment, 0, len(files))
	for _, file := range files {
		name := strings.TrimSpace(file.FileName)
		url := strings.TrimSpace(file.FileURL)
		if name == "" || url == "" {
			continue
		}
		lower := strings.ToLower(name)
		for _, ext := range allowedAttachmentExtensions {
			if strings.HasSuffix(lower, ext) {
				attachments = append(attachments, models.Attachment{FileName: name, FileURL: url})
				break
			}
		}
	}
	return attachments
}
