// Package events carries coursework notification events over a Watermill
// message bus. Dispatch is fire-and-forget; delivery runs on a router that
// consumes the same topic.
package events

import (
	"time"

	"github.com/noah-isme/coursework-api/internal/models"
)

// DefaultTopic is used when no topic is configured.
const DefaultTopic = "coursework.notifications"

// EventType names a notification event.
type EventType string

const (
	EventSubmissionConfirmed EventType = models.NotificationSubmissionConfirmed
	EventGraded              EventType = models.NotificationGraded
	EventNewAssignment       EventType = models.NotificationNewAssignment
	EventDueSoon             EventType = models.NotificationDueSoon
	EventPending             EventType = models.NotificationPending
)

// NotificationEvent is the payload published for every notification.
type NotificationEvent struct {
	ID            string    `json:"id"`
	Type          EventType `json:"type"`
	AssignmentID  uint      `json:"assignment_id,omitempty"`
	SubmissionID  uint      `json:"submission_id,omitempty"`
	Score         *int      `json:"score,omitempty"`
	Feedback      string    `json:"feedback,omitempty"`
	GraderName    string    `json:"grader_name,omitempty"`
	DaysRemaining int       `json:"days_remaining,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}
