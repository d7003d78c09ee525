package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/noah-isme/coursework-api/internal/dto"
	"github.com/noah-isme/coursework-api/internal/grading"
	"github.com/noah-isme/coursework-api/internal/models"
	"github.com/noah-isme/coursework-api/internal/observability"
	"github.com/noah-isme/coursework-api/internal/repository"
)

const fallbackGraderName = "Instructor"

// GradingService encapsulates the manual grading flow for instructors.
type GradingService interface {
	Grade(ctx context.Context, submissionID, instructorID uint, payload dto.GradeRequest) (dto.SubmissionResponse, error)
}

type gradingService struct {
	submissions repository.SubmissionRepository
	users       repository.UserRepository
	notifier    Notifier
	cache       *StatusCache
	validator   *validator.Validate
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
	now         func() time.Time
}

// NewGradingService constructs the grading service.
func NewGradingService(
	submissions repository.SubmissionRepository,
	users repository.UserRepository,
	notifier Notifier,
	cache *StatusCache,
	validate *validator.Validate,
	logger zerolog.Logger,
) GradingService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &gradingService{
		submissions: submissions,
		users:       users,
		notifier:    notifier,
		cache:       cache,
		validator:   validate,
		sanitizer:   bluemonday.StrictPolicy(),
		logger:      logger.With().Str("component", "grading_service").Logger(),
		now:         time.Now,
	}
}

func (s *gradingService) Grade(ctx context.Context, submissionID, instructorID uint, payload dto.GradeRequest) (dto.SubmissionResponse, error) {
	tracer := otel.Tracer("github.com/noah-isme/coursework-api/internal/service/grading")
	ctx, span := tracer.Start(ctx, "grading.manual")
	span.SetAttributes(
		attribute.Int64("grading.submission_id", int64(submissionID)),
		attribute.Int64("grading.instructor_id", int64(instructorID)),
	)
	defer span.End()

	fail := func(err error, status string) (dto.SubmissionResponse, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, status)
		observability.Gradings().WithLabelValues(status).Inc()
		return dto.SubmissionResponse{}, err
	}

	if err := validateStruct(s.validator, payload).OrNil(); err != nil {
		return fail(err, "validation_failed")
	}

	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fail(ErrSubmissionNotFound, "submission_not_found")
		}
		return fail(err, "submission_lookup_failed")
	}

	if submission.Assignment.CreatedBy != instructorID {
		return fail(ErrForbidden, "forbidden")
	}

	score := *payload.Score
	if score > submission.MaxScore {
		return fail(ErrScoreExceedsMax, "score_exceeds_max")
	}

	if err := grading.Transition(submission.State, models.SubmissionStateManuallyGraded); err != nil {
		return fail(err, "invalid_transition")
	}

	gradedAt := s.now()
	gradedBy := instructorID
	submission.Score = score
	submission.Feedback = sanitizeText(s.sanitizer, payload.Feedback)
	submission.IsGraded = true
	submission.GradedBy = &gradedBy
	submission.GradedAt = &gradedAt
	submission.State = models.SubmissionStateManuallyGraded
	submission.UpdatedAt = gradedAt

	if err := s.submissions.UpdateGrade(ctx, &submission); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fail(ErrSubmissionNotFound, "submission_not_found")
		}
		return fail(err, "submission_update_failed")
	}

	span.SetAttributes(attribute.Int("grading.score", score))
	observability.Gradings().WithLabelValues("graded").Inc()
	s.logger.Info().
		Uint("submission_id", submission.ID).
		Uint("student_id", submission.StudentID).
		Uint("instructor_id", instructorID).
		Int("score", score).
		Msg("submission graded")

	s.cache.Invalidate(ctx, submission.StudentID)
	s.notifier.Graded(ctx, submission.ID, submission.Score, submission.Feedback, s.graderName(ctx, instructorID))

	return dto.NewSubmissionResponse(submission), nil
}

func (s *gradingService) graderName(ctx context.Context, instructorID uint) string {
	if s.users == nil {
		return fallbackGraderName
	}
	user, err := s.users.GetByID(ctx, instructorID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn().Err(err).Uint("instructor_id", instructorID).Msg("failed to resolve grader name")
		}
		return fallbackGraderName
	}
	if name := user.FullName(); name != "" {
		return name
	}
	return fallbackGraderName
}
