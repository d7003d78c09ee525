package models

import (
	"strings"
	"time"
)

// User roles issued by the identity provider.
const (
	RoleStudent    = "student"
	RoleInstructor = "instructor"
	RoleAdmin      = "admin"
)

// User is the identity record referenced by courses and submissions.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	FirstName string    `gorm:"size:128;not null" json:"first_name"`
	LastName  string    `gorm:"size:128" json:"last_name"`
	Email     string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Role      string    `gorm:"size:32;not null" json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FullName joins first and last names.
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Course groups sections and the students enrolled in them.
type Course struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Title        string    `gorm:"size:255;not null" json:"title"`
	InstructorID uint      `gorm:"not null;index" json:"instructor_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Sections     []Section `json:"sections,omitempty"`
}

// Section is a unit of course content that owns assignments.
type Section struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CourseID  uint      `gorm:"not null;index" json:"course_id"`
	Title     string    `gorm:"size:255;not null" json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CourseEnrollment links a student to a course.
type CourseEnrollment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CourseID  uint      `gorm:"not null;uniqueIndex:idx_course_student,priority:1" json:"course_id"`
	StudentID uint      `gorm:"not null;uniqueIndex:idx_course_student,priority:2;index" json:"student_id"`
	CreatedAt time.Time `json:"created_at"`
}
