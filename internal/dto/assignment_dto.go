package dto

import (
	"time"

	"github.com/noah-isme/coursework-api/internal/grading"
	"github.com/noah-isme/coursework-api/internal/models"
)

// DateLayout is the accepted format for due dates.
const DateLayout = time.RFC3339

// AttachmentPayload describes an instructor-attached reference file.
type AttachmentPayload struct {
	FileName string `json:"file_name" validate:"required,max=255"`
	FileURL  string `json:"file_url" validate:"required,url"`
}

// QuestionPayload describes a quiz question in authoring requests. ID is kept
// when an existing question is re-submitted during an update.
type QuestionPayload struct {
	ID            string   `json:"id" validate:"omitempty,max=36"`
	Prompt        string   `json:"prompt" validate:"required"`
	Options       []string `json:"options" validate:"required,min=2,dive,required"`
	CorrectAnswer *int     `json:"correct_answer" validate:"required,gte=0"`
	Marks         int      `json:"marks" validate:"required,gte=1"`
}

// AssignmentCreateRequest is the payload for POST /assignment/create.
type AssignmentCreateRequest struct {
	Title        string              `json:"title" validate:"required,min=3,max=255"`
	Description  string              `json:"description" validate:"required"`
	Kind         string              `json:"kind" validate:"required,oneof=Assignment Quiz"`
	CourseID     uint                `json:"course_id" validate:"required,gt=0"`
	SectionID    uint                `json:"section_id" validate:"required,gt=0"`
	MaxMarks     int                 `json:"max_marks" validate:"required,gt=0"`
	DueDate      string              `json:"due_date" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	Instructions string              `json:"instructions" validate:"required"`
	Status       string              `json:"status" validate:"omitempty,oneof=Draft Published"`
	Questions    []QuestionPayload   `json:"questions" validate:"omitempty,dive"`
	Attachments  []AttachmentPayload `json:"attachments" validate:"omitempty,dive"`
}

// AssignmentUpdateRequest is the payload for PUT /assignment/:assignmentId.
// Nil fields are left untouched; kind and course cannot change.
type AssignmentUpdateRequest struct {
	Title        *string             `json:"title" validate:"omitempty,min=3,max=255"`
	Description  *string             `json:"description" validate:"omitempty,min=1"`
	SectionID    *uint               `json:"section_id" validate:"omitempty,gt=0"`
	MaxMarks     *int                `json:"max_marks" validate:"omitempty,gt=0"`
	DueDate      *string             `json:"due_date" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	Instructions *string             `json:"instructions" validate:"omitempty,min=1"`
	Status       *string             `json:"status" validate:"omitempty,oneof=Draft Published"`
	Questions    []QuestionPayload   `json:"questions" validate:"omitempty,dive"`
	Attachments  []AttachmentPayload `json:"attachments" validate:"omitempty,dive"`
}

// AttachmentResponse serializes a file reference.
type AttachmentResponse struct {
	FileName string `json:"file_name"`
	FileURL  string `json:"file_url"`
}

// QuestionResponse serializes a quiz question. CorrectOption is only present
// for the owning instructor.
type QuestionResponse struct {
	ID            string   `json:"id"`
	Position      int      `json:"position"`
	Prompt        string   `json:"prompt"`
	Options       []string `json:"options"`
	CorrectOption *int     `json:"correct_option,omitempty"`
	Marks         int      `json:"marks"`
}

// AssignmentResponse is the serialized representation returned to API clients.
type AssignmentResponse struct {
	ID            uint                 `json:"id"`
	Title         string               `json:"title"`
	Description   string               `json:"description"`
	Kind          string               `json:"kind"`
	CourseID      uint                 `json:"course_id"`
	SectionID     uint                 `json:"section_id"`
	MaxMarks      int                  `json:"max_marks"`
	PassThreshold int                  `json:"pass_threshold,omitempty"`
	DueDate       time.Time            `json:"due_date"`
	Instructions  string               `json:"instructions"`
	CreatedBy     uint                 `json:"created_by"`
	Status        string               `json:"status"`
	Attachments   []AttachmentResponse `json:"attachments"`
	Questions     []QuestionResponse   `json:"questions,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

// NewAssignmentResponse converts a model into a DTO. The answer key is only
// included when revealAnswers is set.
func NewAssignmentResponse(model models.Assignment, revealAnswers bool) AssignmentResponse {
	response := AssignmentResponse{
		ID:           model.ID,
		Title:        model.Title,
		Description:  model.Description,
		Kind:         string(model.Kind),
		CourseID:     model.CourseID,
		SectionID:    model.SectionID,
		MaxMarks:     model.MaxMarks,
		DueDate:      model.DueDate,
		Instructions: model.Instructions,
		CreatedBy:    model.CreatedBy,
		Status:       string(model.Status),
		Attachments:  NewAttachmentResponseSlice(model.AttachmentList()),
		CreatedAt:    model.CreatedAt,
		UpdatedAt:    model.UpdatedAt,
	}

	if model.IsQuiz() {
		response.PassThreshold = grading.PassThreshold(model.MaxMarks)
		response.Questions = make([]QuestionResponse, 0, len(model.Questions))
		for _, question := range model.Questions {
			item := QuestionResponse{
				ID:       question.ID,
				Position: question.Position,
				Prompt:   question.Prompt,
				Options:  question.OptionList(),
				Marks:    question.Marks,
			}
			if revealAnswers {
				correct := question.CorrectOption
				item.CorrectOption = &correct
			}
			response.Questions = append(response.Questions, item)
		}
	}

	return response
}

// NewAssignmentResponseFor reveals the answer key only to the assignment owner.
func NewAssignmentResponseFor(model models.Assignment, viewerID uint) AssignmentResponse {
	return NewAssignmentResponse(model, viewerID != 0 && model.CreatedBy == viewerID)
}

// NewAssignmentResponseSlice converts a slice of models into DTOs for a viewer.
func NewAssignmentResponseSlice(assignments []models.Assignment, viewerID uint) []AssignmentResponse {
	responses := make([]AssignmentResponse, 0, len(assignments))
	for _, assignment := range assignments {
		responses = append(responses, NewAssignmentResponseFor(assignment, viewerID))
	}

	return responses
}

// NewAttachmentResponseSlice converts stored attachments.
func NewAttachmentResponseSlice(attachments []models.Attachment) []AttachmentResponse {
	responses := make([]AttachmentResponse, 0, len(attachments))
	for _, attachment := range attachments {
		responses = append(responses, AttachmentResponse{FileName: attachment.FileName, FileURL: attachment.FileURL})
	}
	return responses
}

// SubmissionStatusResponse summarizes a student's attempts for one assignment.
type SubmissionStatusResponse struct {
	HasGradedSubmission bool                 `json:"has_graded_submission"`
	SubmissionCount     int                  `json:"submission_count"`
	AttemptsRemaining   int                  `json:"attempts_remaining"`
	CanSubmit           bool                 `json:"can_submit"`
	DenyReason          string               `json:"deny_reason,omitempty"`
	LatestSubmission    *SubmissionResponse  `json:"latest_submission"`
	AllAttempts         []SubmissionResponse `json:"all_attempts,omitempty"`
}

// EnrolledAssignmentResponse is an assignment enriched with the caller's status.
type EnrolledAssignmentResponse struct {
	AssignmentResponse
	SubmissionStatus SubmissionStatusResponse `json:"submission_status"`
}
