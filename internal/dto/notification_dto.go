package dto

import (
	"time"

	"github.com/noah-isme/coursework-api/internal/models"
)

// NotificationCreateRequest describes an inbox notification for one or more recipients.
type NotificationCreateRequest struct {
	UserIDs      []uint `json:"user_ids" validate:"required,min=1,dive,gt=0"`
	Type         string `json:"type" validate:"required,max=64"`
	Title        string `json:"title" validate:"omitempty,max=255"`
	Message      string `json:"message" validate:"required,max=2000"`
	AssignmentID *uint  `json:"assignment_id"`
	SubmissionID *uint  `json:"submission_id"`
}

// NotificationFilter holds inbox query parameters.
type NotificationFilter struct {
	Unread bool `query:"unread"`
	Limit  int  `query:"limit"`
	Offset int  `query:"offset"`
}

// NotificationResponse represents notification data returned to clients.
type NotificationResponse struct {
	ID           uint      `json:"id"`
	UserID       uint      `json:"user_id"`
	Type         string    `json:"type"`
	Title        string    `json:"title"`
	Message      string    `json:"message"`
	AssignmentID *uint     `json:"assignment_id,omitempty"`
	SubmissionID *uint     `json:"submission_id,omitempty"`
	Read         bool      `json:"read"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewNotificationResponse converts a notification model to DTO.
func NewNotificationResponse(model models.Notification) NotificationResponse {
	return NotificationResponse{
		ID:           model.ID,
		UserID:       model.UserID,
		Type:         model.Type,
		Title:        model.Title,
		Message:      model.Message,
		AssignmentID: model.AssignmentID,
		SubmissionID: model.SubmissionID,
		Read:         model.Read,
		CreatedAt:    model.CreatedAt,
	}
}

// NewNotificationResponseSlice converts a slice to DTOs.
func NewNotificationResponseSlice(items []models.Notification) []NotificationResponse {
	out := make([]NotificationResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewNotificationResponse(item))
	}
	return out
}
