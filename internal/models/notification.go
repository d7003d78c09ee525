package models

import "time"

// Notification types emitted by the coursework flows.
const (
	NotificationSubmissionConfirmed = "submission.confirmed"
	NotificationGraded              = "submission.graded"
	NotificationNewAssignment       = "assignment.created"
	NotificationDueSoon             = "assignment.due_soon"
	NotificationPending             = "assignment.pending"
)

// Notification is an inbox entry targeted to a single user.
type Notification struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"not null;index" json:"user_id"`
	Type         string    `gorm:"size:64;not null" json:"type"`
	Title        string    `gorm:"size:255" json:"title"`
	Message      string    `gorm:"type:text" json:"message"`
	AssignmentID *uint     `gorm:"index" json:"assignment_id,omitempty"`
	SubmissionID *uint     `json:"submission_id,omitempty"`
	Read         bool      `gorm:"not null;default:false" json:"read"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
