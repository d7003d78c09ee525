package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/coursework-api/internal/dto"
	"github.com/noah-isme/coursework-api/internal/events"
	"github.com/noah-isme/coursework-api/internal/models"
	"github.com/noah-isme/coursework-api/internal/repository"
)

// NotificationDelivery turns bus events into inbox notifications for the
// affected users.
type NotificationDelivery struct {
	assignments   repository.AssignmentRepository
	submissions   repository.SubmissionRepository
	courses       repository.CourseRepository
	notifications NotificationService
	logger        zerolog.Logger
}

// NewNotificationDelivery wires the delivery handler.
func NewNotificationDelivery(
	assignments repository.AssignmentRepository,
	submissions repository.SubmissionRepository,
	courses repository.CourseRepository,
	notifications NotificationService,
	logger zerolog.Logger,
) *NotificationDelivery {
	return &NotificationDelivery{
		assignments:   assignments,
		submissions:   submissions,
		courses:       courses,
		notifications: notifications,
		logger:        logger.With().Str("component", "notification_delivery").Logger(),
	}
}

// Deliver resolves recipients and writes the inbox entries. Events that point
// at deleted records are skipped.
func (d *NotificationDelivery) Deliver(ctx context.Context, event events.NotificationEvent) error {
	request, err := d.build(ctx, event)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			d.logger.Info().Str("event_id", event.ID).Str("type", string(event.Type)).Msg("notification target no longer exists")
			return nil
		}
		return err
	}
	if len(request.UserIDs) == 0 {
		return nil
	}

	_, err = d.notifications.Publish(ctx, request)
	return err
}

func (d *NotificationDelivery) build(ctx context.Context, event events.NotificationEvent) (dto.NotificationCreateRequest, error) {
	switch event.Type {
	case events.EventSubmissionConfirmed:
		submission, err := d.submissions.GetByID(ctx, event.SubmissionID)
		if err != nil {
			return dto.NotificationCreateRequest{}, err
		}
		message := fmt.Sprintf("Your submission for %s (attempt %d of %d) was received.",
			submission.Assignment.Title, submission.AttemptNumber, models.MaxAttempts)
		if submission.Assignment.IsQuiz() {
			message += fmt.Sprintf(" Score: %d/%d.", submission.Score, submission.MaxScore)
		}
		return submissionNotice(submission, event.Type, "Submission received", message), nil

	case events.EventGraded:
		submission, err := d.submissions.GetByID(ctx, event.SubmissionID)
		if err != nil {
			return dto.NotificationCreateRequest{}, err
		}
		score := submission.Score
		if event.Score != nil {
			score = *event.Score
		}
		grader := strings.TrimSpace(event.GraderName)
		if grader == "" {
			grader = fallbackGraderName
		}
		message := fmt.Sprintf("%s graded your submission for %s: %d/%d.", grader, submission.Assignment.Title, score, submission.MaxScore)
		if feedback := strings.TrimSpace(event.Feedback); feedback != "" {
			message += " Feedback: " + feedback
		}
		return submissionNotice(submission, event.Type, "Submission graded", message), nil

	case events.EventNewAssignment:
		return d.courseNotice(ctx, event, "New coursework", func(a models.Assignment) string {
			return fmt.Sprintf("New %s %s is due %s.", strings.ToLower(string(a.Kind)), a.Title, a.DueDate.UTC().Format("Jan 2, 2006 15:04 MST"))
		})

	case events.EventDueSoon:
		return d.courseNotice(ctx, event, "Due soon", func(a models.Assignment) string {
			return fmt.Sprintf("%s is due within 24 hours (%s).", a.Title, a.DueDate.UTC().Format("Jan 2, 2006 15:04 MST"))
		})

	case events.EventPending:
		return d.courseNotice(ctx, event, "Upcoming deadline", func(a models.Assignment) string {
			return fmt.Sprintf("%s is due in %d days.", a.Title, event.DaysRemaining)
		})

	default:
		d.logger.Warn().Str("type", string(event.Type)).Msg("ignoring unknown notification event")
		return dto.NotificationCreateRequest{}, nil
	}
}

func submissionNotice(submission models.Submission, eventType events.EventType, title, message string) dto.NotificationCreateRequest {
	assignmentID := submission.AssignmentID
	submissionID := submission.ID
	return dto.NotificationCreateRequest{
		UserIDs:      []uint{submission.StudentID},
		Type:         string(eventType),
		Title:        title,
		Message:      message,
		AssignmentID: &assignmentID,
		SubmissionID: &submissionID,
	}
}

func (d *NotificationDelivery) courseNotice(ctx context.Context, event events.NotificationEvent, title string, render func(models.Assignment) string) (dto.NotificationCreateRequest, error) {
	assignment, err := d.assignments.GetByID(ctx, event.AssignmentID)
	if err != nil {
		return dto.NotificationCreateRequest{}, err
	}

	studentIDs, err := d.courses.EnrolledStudentIDs(ctx, assignment.CourseID)
	if err != nil {
		return dto.NotificationCreateRequest{}, err
	}

	assignmentID := assignment.ID
	return dto.NotificationCreateRequest{
		UserIDs:      studentIDs,
		Type:         string(event.Type),
		Title:        title,
		Message:      render(assignment),
		AssignmentID: &assignmentID,
	}, nil
}
