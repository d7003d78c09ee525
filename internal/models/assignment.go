package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// AssignmentKind distinguishes free-form assignments from auto-graded quizzes.
type AssignmentKind string

const (
	// AssignmentKindAssignment is graded manually by the owning instructor.
	AssignmentKindAssignment AssignmentKind = "Assignment"
	// AssignmentKindQuiz is graded automatically against the stored answer key.
	AssignmentKindQuiz AssignmentKind = "Quiz"
)

// AssignmentStatus tracks authoring visibility.
type AssignmentStatus string

const (
	AssignmentStatusDraft     AssignmentStatus = "Draft"
	AssignmentStatusPublished AssignmentStatus = "Published"
)

// Attachment references a file hosted elsewhere.
type Attachment struct {
	FileName string `json:"file_name"`
	FileURL  string `json:"file_url"`
}

// Assignment represents an instructor-authored assignment or quiz definition.
type Assignment struct {
	ID           uint             `gorm:"primaryKey" json:"id"`
	Title        string           `gorm:"size:255;not null" json:"title"`
	Description  string           `gorm:"type:text;not null" json:"description"`
	Kind         AssignmentKind   `gorm:"size:16;not null;index" json:"kind"`
	CourseID     uint             `gorm:"not null;index" json:"course_id"`
	SectionID    uint             `gorm:"not null;index" json:"section_id"`
	MaxMarks     int              `gorm:"not null" json:"max_marks"`
	DueDate      time.Time        `gorm:"not null;index" json:"due_date"`
	Instructions string           `gorm:"type:text;not null" json:"instructions"`
	Attachments  datatypes.JSON   `gorm:"type:json" json:"-"`
	CreatedBy    uint             `gorm:"not null;index" json:"created_by"`
	Status       AssignmentStatus `gorm:"size:16;not null;default:Draft" json:"status"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
	Questions    []Question       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"questions"`
	Course       Course           `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Section      Section          `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// IsPastDue returns true when the assignment deadline has already passed.
func (a Assignment) IsPastDue(reference time.Time) bool {
	return reference.After(a.DueDate)
}

// IsQuiz reports whether the assignment is auto-graded.
func (a Assignment) IsQuiz() bool {
	return a.Kind == AssignmentKindQuiz
}

// SetAttachments serializes reference files into the JSON column.
func (a *Assignment) SetAttachments(attachments []Attachment) {
	a.Attachments = encodeAttachments(attachments)
}

// AttachmentList deserializes the stored reference files.
func (a Assignment) AttachmentList() []Attachment {
	return decodeAttachments(a.Attachments)
}

// TotalQuestionMarks sums marks across all quiz questions.
func (a Assignment) TotalQuestionMarks() int {
	total := 0
	for _, question := range a.Questions {
		total += question.Marks
	}
	return total
}

// Question is a single multiple-choice item in a quiz.
type Question struct {
	ID            string         `gorm:"primaryKey;size:36" json:"id"`
	AssignmentID  uint           `gorm:"not null;index" json:"assignment_id"`
	Position      int            `gorm:"not null" json:"position"`
	Prompt        string         `gorm:"type:text;not null" json:"prompt"`
	Options       datatypes.JSON `gorm:"type:json;not null" json:"-"`
	CorrectOption int            `gorm:"not null" json:"correct_option"`
	Marks         int            `gorm:"not null;default:1" json:"marks"`
}

// SetOptions serializes the option labels into the JSON column.
func (q *Question) SetOptions(options []string) {
	data, err := json.Marshal(options)
	if err != nil {
		q.Options = datatypes.JSON([]byte("[]"))
		return
	}
	q.Options = datatypes.JSON(data)
}

// OptionList returns the option labels in authoring order.
func (q Question) OptionList() []string {
	if len(q.Options) == 0 {
		return nil
	}

	var options []string
	if err := json.Unmarshal(q.Options, &options); err != nil {
		return nil
	}
	return options
}

func encodeAttachments(attachments []Attachment) datatypes.JSON {
	if attachments == nil {
		attachments = []Attachment{}
	}
	data, err := json.Marshal(attachments)
	if err != nil {
		return datatypes.JSON([]byte("[]"))
	}
	return datatypes.JSON(data)
}

func decodeAttachments(raw datatypes.JSON) []Attachment {
	if len(raw) == 0 {
		return nil
	}

	var attachments []Attachment
	if err := json.Unmarshal(raw, &attachments); err != nil {
		return nil
	}
	return attachments
}
