package dto

import (
	"time"

	"github.com/noah-isme/coursework-api/internal/models"
)

// AnswerPayload is one submitted quiz answer. QuestionID may be a stored id
// or a positional index.
type AnswerPayload struct {
	QuestionID     string `json:"question_id" validate:"required,max=64"`
	SelectedOption *int   `json:"selected_option" validate:"required,gte=0"`
}

// SubmittedFile references a file the student uploaded elsewhere. Entries
// with an empty name or url, or a disallowed extension, are dropped.
type SubmittedFile struct {
	FileName string `json:"file_name"`
	FileURL  string `json:"file_url"`
}

// SubmitRequest is the payload for POST /assignment/:assignmentId/submit.
type SubmitRequest struct {
	Answers        []AnswerPayload `json:"answers" validate:"omitempty,max=500,dive"`
	SubmissionText string          `json:"submission_text" validate:"omitempty,max=50000"`
	Attachments    []SubmittedFile `json:"attachments" validate:"omitempty,max=20"`
}

// GradeRequest is the payload for POST /assignment/submission/:submissionId/grade.
type GradeRequest struct {
	Score    *int   `json:"score" validate:"required,gte=0"`
	Feedback string `json:"feedback" validate:"omitempty,max=5000"`
}

// AnswerResponse serializes a graded quiz answer.
type AnswerResponse struct {
	QuestionID     string `json:"question_id"`
	SelectedOption int    `json:"selected_option"`
	IsCorrect      bool   `json:"is_correct"`
}

// AssignmentLite summarizes an assignment in submission responses.
type AssignmentLite struct {
	ID       uint      `json:"id"`
	Title    string    `json:"title"`
	Kind     string    `json:"kind"`
	MaxMarks int       `json:"max_marks"`
	DueDate  time.Time `json:"due_date"`
}

// StudentLite summarizes a student without exposing full profile data.
type StudentLite struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// SubmissionResponse is returned to API clients when viewing submissions.
type SubmissionResponse struct {
	ID             uint                 `json:"id"`
	AssignmentID   uint                 `json:"assignment_id"`
	StudentID      uint                 `json:"student_id"`
	CourseID       uint                 `json:"course_id"`
	AttemptNumber  int                  `json:"attempt_number"`
	Score          int                  `json:"score"`
	MaxScore       int                  `json:"max_score"`
	IsGraded       bool                 `json:"is_graded"`
	State          string               `json:"state"`
	GradedBy       *uint                `json:"graded_by"`
	Feedback       string               `json:"feedback"`
	SubmissionText string               `json:"submission_text,omitempty"`
	Attachments    []AttachmentResponse `json:"attachments,omitempty"`
	Answers        []AnswerResponse     `json:"answers,omitempty"`
	SubmittedAt    time.Time            `json:"submitted_at"`
	GradedAt       *time.Time           `json:"graded_at"`
	Assignment     *AssignmentLite      `json:"assignment,omitempty"`
	Student        *StudentLite         `json:"student,omitempty"`
}

// NewSubmissionResponse converts a Submission model into a DTO.
func NewSubmissionResponse(model models.Submission) SubmissionResponse {
	response := SubmissionResponse{
		ID:             model.ID,
		AssignmentID:   model.AssignmentID,
		StudentID:      model.StudentID,
		CourseID:       model.CourseID,
		AttemptNumber:  model.AttemptNumber,
		Score:          model.Score,
		MaxScore:       model.MaxScore,
		IsGraded:       model.IsGraded,
		State:          string(model.State),
		GradedBy:       model.GradedBy,
		Feedback:       model.Feedback,
		SubmissionText: model.SubmissionText,
		SubmittedAt:    model.SubmittedAt,
		GradedAt:       model.GradedAt,
	}

	if attachments := model.AttachmentList(); len(attachments) > 0 {
		response.Attachments = NewAttachmentResponseSlice(attachments)
	}

	if answers := model.AnswerList(); len(answers) > 0 {
		response.Answers = make([]AnswerResponse, 0, len(answers))
		for _, answer := range answers {
			response.Answers = append(response.Answers, AnswerResponse{
				QuestionID:     answer.QuestionID,
				SelectedOption: answer.SelectedOption,
				IsCorrect:      answer.IsCorrect,
			})
		}
	}

	if model.Assignment.ID != 0 {
		response.Assignment = &AssignmentLite{
			ID:       model.Assignment.ID,
			Title:    model.Assignment.Title,
			Kind:     string(model.Assignment.Kind),
			MaxMarks: model.Assignment.MaxMarks,
			DueDate:  model.Assignment.DueDate,
		}
	}

	if model.Student.ID != 0 {
		response.Student = &StudentLite{
			ID:    model.Student.ID,
			Name:  model.Student.FullName(),
			Email: model.Student.Email,
		}
	}

	return response
}

// NewSubmissionResponseSlice converts submission models into DTOs.
func NewSubmissionResponseSlice(items []models.Submission) []SubmissionResponse {
	responses := make([]SubmissionResponse, 0, len(items))
	for _, submission := range items {
		responses = append(responses, NewSubmissionResponse(submission))
	}

	return responses
}
