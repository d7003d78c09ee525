package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// SubmissionState is the explicit lifecycle state of a submission.
type SubmissionState string

const (
	// SubmissionStateSubmitted indicates the submission awaits instructor grading.
	SubmissionStateSubmitted SubmissionState = "submitted"
	// SubmissionStateAutoGraded indicates a quiz scored against its answer key.
	SubmissionStateAutoGraded SubmissionState = "auto_graded"
	// SubmissionStateManuallyGraded indicates an instructor graded the submission.
	SubmissionStateManuallyGraded SubmissionState = "manually_graded"
)

// MaxAttempts caps submissions per (assignment, student) pair.
const MaxAttempts = 3

// Answer is a single quiz response. QuestionID is either a stored question id
// or a positional index rendered as a string.
type Answer struct {
	QuestionID     string `json:"question_id"`
	SelectedOption int    `json:"selected_option"`
	IsCorrect      bool   `json:"is_correct"`
}

// Submission represents one attempt by a student against an assignment.
type Submission struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	AssignmentID   uint            `gorm:"not null;uniqueIndex:idx_submission_attempt,priority:1" json:"assignment_id"`
	StudentID      uint            `gorm:"not null;uniqueIndex:idx_submission_attempt,priority:2;index" json:"student_id"`
	CourseID       uint            `gorm:"not null;index" json:"course_id"`
	AttemptNumber  int             `gorm:"not null;uniqueIndex:idx_submission_attempt,priority:3;check:attempt_number BETWEEN 1 AND 3" json:"attempt_number"`
	Answers        datatypes.JSON  `gorm:"type:json" json:"-"`
	SubmissionText string          `gorm:"type:text" json:"submission_text"`
	Attachments    datatypes.JSON  `gorm:"type:json" json:"-"`
	Score          int             `gorm:"not null;default:0" json:"score"`
	MaxScore       int             `gorm:"not null" json:"max_score"`
	IsGraded       bool            `gorm:"not null;default:false" json:"is_graded"`
	State          SubmissionState `gorm:"size:32;not null" json:"state"`
	GradedBy       *uint           `json:"graded_by"`
	Feedback       string          `gorm:"type:text" json:"feedback"`
	SubmittedAt    time.Time       `gorm:"not null" json:"submitted_at"`
	GradedAt       *time.Time      `json:"graded_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	Assignment     Assignment      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"assignment"`
	Student        User            `gorm:"foreignKey:StudentID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"student"`
}

// IsInstructorGraded reports whether an instructor has graded this attempt.
func (s Submission) IsInstructorGraded() bool {
	return s.IsGraded && s.GradedBy != nil
}

// SetAnswers serializes graded quiz answers.
func (s *Submission) SetAnswers(answers []Answer) {
	if answers == nil {
		answers = []Answer{}
	}
	data, err := json.Marshal(answers)
	if err != nil {
		s.Answers = datatypes.JSON([]byte("[]"))
		return
	}
	s.Answers = datatypes.JSON(data)
}

// AnswerList returns the stored quiz answers.
func (s Submission) AnswerList() []Answer {
	if len(s.Answers) == 0 {
		return nil
	}

	var answers []Answer
	if err := json.Unmarshal(s.Answers, &answers); err != nil {
		return nil
	}
	return answers
}

// SetAttachments serializes submitted files.
func (s *Submission) SetAttachments(attachments []Attachment) {
	s.Attachments = encodeAttachments(attachments)
}

// AttachmentList returns the submitted files.
func (s Submission) AttachmentList() []Attachment {
	return decodeAttachments(s.Attachments)
}
