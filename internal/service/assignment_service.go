package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/coursework-api/internal/dto"
	"github.com/noah-isme/coursework-api/internal/grading"
	"github.com/noah-isme/coursework-api/internal/models"
	"github.com/noah-isme/coursework-api/internal/repository"
)

// AssignmentService exposes assignment authoring and listing use cases.
type AssignmentService interface {
	Create(ctx context.Context, instructorID uint, payload dto.AssignmentCreateRequest) (dto.AssignmentResponse, error)
	Get(ctx context.Context, id, viewerID uint) (dto.AssignmentResponse, error)
	ListByCourse(ctx context.Context, courseID, viewerID uint) ([]dto.AssignmentResponse, error)
	ListByInstructor(ctx context.Context, instructorID uint) ([]dto.AssignmentResponse, error)
	ListEnrolled(ctx context.Context, studentID uint) ([]dto.EnrolledAssignmentResponse, error)
	Update(ctx context.Context, id, instructorID uint, payload dto.AssignmentUpdateRequest) (dto.AssignmentResponse, error)
	Delete(ctx context.Context, id, instructorID uint) error
}

type assignmentService struct {
	assignments repository.AssignmentRepository
	submissions repository.SubmissionRepository
	courses     repository.CourseRepository
	notifier    Notifier
	cache       *StatusCache
	validator   *validator.Validate
	logger      zerolog.Logger
	now         func() time.Time
}

// NewAssignmentService builds a new assignment service.
func NewAssignmentService(
	assignments repository.AssignmentRepository,
	submissions repository.SubmissionRepository,
	courses repository.CourseRepository,
	notifier Notifier,
	cache *StatusCache,
	validate *validator.Validate,
	logger zerolog.Logger,
) AssignmentService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &assignmentService{
		assignments: assignments,
		submissions: submissions,
		courses:     courses,
		notifier:    notifier,
		cache:       cache,
		validator:   validate,
		logger:      logger.With().Str("component", "assignment_service").Logger(),
		now:         time.Now,
	}
}

func (s *assignmentService) Create(ctx context.Context, instructorID uint, payload dto.AssignmentCreateRequest) (dto.AssignmentResponse, error) {
	errs := validateStruct(s.validator, payload)
	kind := models.AssignmentKind(payload.Kind)
	validKind := kind == models.AssignmentKindAssignment || kind == models.AssignmentKindQuiz
	dueDate := validateAuthoring(authoringInput{
		kind:      kind,
		maxMarks:  payload.MaxMarks,
		dueDate:   payload.DueDate,
		questions: payload.Questions,
		checkQuiz: validKind,
	}, s.now(), &errs)
	if kind == models.AssignmentKindQuiz && len(payload.Attachments) > 0 {
		errs.Add("attachments", "only assignments can carry reference files")
	}
	if err := errs.OrNil(); err != nil {
		return dto.AssignmentResponse{}, err
	}

	course, err := s.courses.GetByID(ctx, payload.CourseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AssignmentResponse{}, ErrCourseNotFound
		}
		return dto.AssignmentResponse{}, err
	}
	if course.InstructorID != instructorID {
		return dto.AssignmentResponse{}, ErrForbidden
	}

	if err := s.checkSection(ctx, course.ID, payload.SectionID); err != nil {
		return dto.AssignmentResponse{}, err
	}

	status := models.AssignmentStatusDraft
	if payload.Status != "" {
		status = models.AssignmentStatus(payload.Status)
	}

	assignment := models.Assignment{
		Title:        strings.TrimSpace(payload.Title),
		Description:  strings.TrimSpace(payload.Description),
		Kind:         kind,
		CourseID:     course.ID,
		SectionID:    payload.SectionID,
		MaxMarks:     payload.MaxMarks,
		DueDate:      dueDate,
		Instructions: strings.TrimSpace(payload.Instructions),
		CreatedBy:    instructorID,
		Status:       status,
	}
	assignment.SetAttachments(buildAttachments(payload.Attachments))
	if assignment.IsQuiz() {
		assignment.Questions = buildQuestions(payload.Questions, nil)
	}

	if err := s.assignments.Create(ctx, &assignment); err != nil {
		return dto.AssignmentResponse{}, err
	}

	s.logger.Info().
		Uint("assignment_id", assignment.ID).
		Uint("course_id", assignment.CourseID).
		Str("kind", string(assignment.Kind)).
		Msg("assignment created")

	s.invalidateCourse(ctx, assignment.CourseID)
	s.notifier.NewAssignment(ctx, assignment.ID)

	return dto.NewAssignmentResponse(assignment, true), nil
}

func (s *assignmentService) Get(ctx context.Context, id, viewerID uint) (dto.AssignmentResponse, error) {
	assignment, err := s.load(ctx, id)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}

	return dto.NewAssignmentResponseFor(assignment, viewerID), nil
}

func (s *assignmentService) ListByCourse(ctx context.Context, courseID, viewerID uint) ([]dto.AssignmentResponse, error) {
	if _, err := s.courses.GetByID(ctx, courseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCourseNotFound
		}
		return nil, err
	}

	assignments, err := s.assignments.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}

	return dto.NewAssignmentResponseSlice(assignments, viewerID), nil
}

func (s *assignmentService) ListByInstructor(ctx context.Context, instructorID uint) ([]dto.AssignmentResponse, error) {
	assignments, err := s.assignments.ListByCreator(ctx, instructorID)
	if err != nil {
		return nil, err
	}

	return dto.NewAssignmentResponseSlice(assignments, instructorID), nil
}

func (s *assignmentService) ListEnrolled(ctx context.Context, studentID uint) ([]dto.EnrolledAssignmentResponse, error) {
	if cached, ok := s.cache.Load(ctx, studentID); ok {
		s.logger.Debug().Uint("student_id", studentID).Msg("enrolled listing cache hit")
		return cached, nil
	}

	courseIDs, err := s.courses.EnrolledCourseIDs(ctx, studentID)
	if err != nil {
		return nil, err
	}

	assignments, err := s.assignments.ListByCourses(ctx, courseIDs)
	if err != nil {
		return nil, err
	}

	assignmentIDs := make([]uint, 0, len(assignments))
	for _, assignment := range assignments {
		assignmentIDs = append(assignmentIDs, assignment.ID)
	}

	submissions, err := s.submissions.ListByStudent(ctx, studentID, assignmentIDs)
	if err != nil {
		return nil, err
	}

	byAssignment := make(map[uint][]models.Submission, len(assignments))
	for _, submission := range submissions {
		byAssignment[submission.AssignmentID] = append(byAssignment[submission.AssignmentID], submission)
	}

	now := s.now()
	items := make([]dto.EnrolledAssignmentResponse, 0, len(assignments))
	for _, assignment := range assignments {
		items = append(items, dto.EnrolledAssignmentResponse{
			AssignmentResponse: dto.NewAssignmentResponse(assignment, false),
			SubmissionStatus:   buildSubmissionStatus(assignment, byAssignment[assignment.ID], now),
		})
	}

	s.cache.Store(ctx, studentID, items, untilNextDeadline(assignments, now))

	return items, nil
}

// untilNextDeadline bounds how long submit decisions in a listing stay valid:
// just past the nearest due date that is still ahead. Zero when none is.
func untilNextDeadline(assignments []models.Assignment, now time.Time) time.Duration {
	var next time.Duration
	for _, assignment := range assignments {
		if assignment.IsPastDue(now) {
			continue
		}
		until := assignment.DueDate.Sub(now) + time.Second
		if next == 0 || until < next {
			next = until
		}
	}
	return next
}

// buildSubmissionStatus summarizes prior attempts, newest first.
func buildSubmissionStatus(assignment models.Assignment, prior []models.Submission, now time.Time) dto.SubmissionStatusResponse {
	decision := grading.Evaluate(prior, assignment, now)
	status := dto.SubmissionStatusResponse{
		SubmissionCount:   len(prior),
		AttemptsRemaining: max(models.MaxAttempts-len(prior), 0),
		CanSubmit:         decision.Allowed,
		DenyReason:        string(decision.Reason),
	}

	for _, submission := range prior {
		if submission.IsInstructorGraded() {
			status.HasGradedSubmission = true
			break
		}
	}

	if len(prior) > 0 {
		latest := dto.NewSubmissionResponse(prior[0])
		status.LatestSubmission = &latest
	}

	if assignment.IsQuiz() && len(prior) > 0 {
		status.AllAttempts = dto.NewSubmissionResponseSlice(prior)
	}

	return status
}

func (s *assignmentService) Update(ctx context.Context, id, instructorID uint, payload dto.AssignmentUpdateRequest) (dto.AssignmentResponse, error) {
	assignment, err := s.loadOwned(ctx, id, instructorID)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}

	errs := validateStruct(s.validator, payload)

	maxMarks := assignment.MaxMarks
	if payload.MaxMarks != nil {
		maxMarks = *payload.MaxMarks
	}

	dueInput := ""
	if payload.DueDate != nil {
		dueInput = *payload.DueDate
	}

	replaceQuestions := payload.Questions != nil
	dueDate := validateAuthoring(authoringInput{
		kind:      assignment.Kind,
		maxMarks:  maxMarks,
		dueDate:   dueInput,
		questions: payload.Questions,
		checkQuiz: replaceQuestions,
	}, s.now(), &errs)

	if !replaceQuestions && assignment.IsQuiz() && assignment.TotalQuestionMarks() > maxMarks {
		errs.Add("max_marks", fmt.Sprintf("must cover the %d marks already assigned to questions", assignment.TotalQuestionMarks()))
	}
	if assignment.IsQuiz() && len(payload.Attachments) > 0 {
		errs.Add("attachments", "only assignments can carry reference files")
	}
	if err := errs.OrNil(); err != nil {
		return dto.AssignmentResponse{}, err
	}

	if payload.SectionID != nil && *payload.SectionID != assignment.SectionID {
		if err := s.checkSection(ctx, assignment.CourseID, *payload.SectionID); err != nil {
			return dto.AssignmentResponse{}, err
		}
		assignment.SectionID = *payload.SectionID
	}

	if payload.Title != nil {
		assignment.Title = strings.TrimSpace(*payload.Title)
	}
	if payload.Description != nil {
		assignment.Description = strings.TrimSpace(*payload.Description)
	}
	if payload.Instructions != nil {
		assignment.Instructions = strings.TrimSpace(*payload.Instructions)
	}
	if payload.Status != nil {
		assignment.Status = models.AssignmentStatus(*payload.Status)
	}
	if payload.DueDate != nil {
		assignment.DueDate = dueDate
	}
	assignment.MaxMarks = maxMarks
	if payload.Attachments != nil {
		assignment.SetAttachments(buildAttachments(payload.Attachments))
	}
	if replaceQuestions {
		assignment.Questions = buildQuestions(payload.Questions, assignment.Questions)
	}

	if err := s.assignments.Update(ctx, &assignment, replaceQuestions); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AssignmentResponse{}, ErrAssignmentNotFound
		}
		return dto.AssignmentResponse{}, err
	}

	s.logger.Info().Uint("assignment_id", assignment.ID).Bool("questions_replaced", replaceQuestions).Msg("assignment updated")
	s.invalidateCourse(ctx, assignment.CourseID)

	return dto.NewAssignmentResponse(assignment, true), nil
}

func (s *assignmentService) Delete(ctx context.Context, id, instructorID uint) error {
	assignment, err := s.loadOwned(ctx, id, instructorID)
	if err != nil {
		return err
	}

	if err := s.assignments.DeleteCascade(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAssignmentNotFound
		}
		return err
	}

	s.logger.Info().Uint("assignment_id", id).Uint("section_id", assignment.SectionID).Msg("assignment deleted with submissions")
	s.invalidateCourse(ctx, assignment.CourseID)
	return nil
}

func (s *assignmentService) load(ctx context.Context, id uint) (models.Assignment, error) {
	assignment, err := s.assignments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Assignment{}, ErrAssignmentNotFound
		}
		return models.Assignment{}, err
	}
	return assignment, nil
}

func (s *assignmentService) loadOwned(ctx context.Context, id, instructorID uint) (models.Assignment, error) {
	assignment, err := s.load(ctx, id)
	if err != nil {
		return models.Assignment{}, err
	}
	if assignment.CreatedBy != instructorID {
		return models.Assignment{}, ErrForbidden
	}
	return assignment, nil
}

func (s *assignmentService) checkSection(ctx context.Context, courseID, sectionID uint) error {
	section, err := s.courses.GetSection(ctx, sectionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSectionNotFound
		}
		return err
	}
	if section.CourseID != courseID {
		return ValidationErrors{{Field: "section_id", Message: "section does not belong to the course"}}
	}
	return nil
}

// invalidateCourse drops cached listings of every student enrolled in the course.
func (s *assignmentService) invalidateCourse(ctx context.Context, courseID uint) {
	if !s.cache.enabled() {
		return
	}
	studentIDs, err := s.courses.EnrolledStudentIDs(ctx, courseID)
	if err != nil {
		s.logger.Warn().Err(err).Uint("course_id", courseID).Msg("failed to resolve enrolled students for cache invalidation")
		return
	}
	s.cache.Invalidate(ctx, studentIDs...)
}
