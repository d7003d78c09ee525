package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrAssignmentNotFound indicates the assignment could not be found.
	ErrAssignmentNotFound = errors.New("assignment not found")
	// ErrSubmissionNotFound indicates a submission could not be found.
	ErrSubmissionNotFound = errors.New("submission not found")
	// ErrCourseNotFound indicates the referenced course does not exist.
	ErrCourseNotFound = errors.New("course not found")
	// ErrSectionNotFound indicates the referenced section does not exist.
	ErrSectionNotFound = errors.New("section not found")
	// ErrNotificationNotFound indicates the inbox entry does not exist for the caller.
	ErrNotificationNotFound = errors.New("notification not found")
	// ErrForbidden indicates the caller does not own the resource.
	ErrForbidden = errors.New("forbidden")
	// ErrNotEnrolled indicates the student is not enrolled in the course.
	ErrNotEnrolled = errors.New("student is not enrolled in this course")
	// ErrConcurrentSubmission indicates another submission claimed the same attempt number.
	ErrConcurrentSubmission = errors.New("a concurrent submission claimed this attempt, please resubmit")
	// ErrScoreExceedsMax indicates a manual grade above the submission's max score.
	ErrScoreExceedsMax = errors.New("score exceeds assignment max")
)

// FieldError describes a single invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors collects every invalid field of a request.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, item := range v {
		parts = append(parts, fmt.Sprintf("%s: %s", item.Field, item.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add appends a field error.
func (v *ValidationErrors) Add(field, message string) {
	*v = append(*v, FieldError{Field: field, Message: message})
}

// OrNil returns nil when nothing was collected.
func (v ValidationErrors) OrNil() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

// NewValidator builds a validator that reports json field names.
func NewValidator() *validator.Validate {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})
	return validate
}

// validateStruct runs struct validation and converts failures into ValidationErrors.
func validateStruct(validate *validator.Validate, payload interface{}) ValidationErrors {
	var collected ValidationErrors
	err := validate.Struct(payload)
	if err == nil {
		return collected
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		collected.Add("request", err.Error())
		return collected
	}

	for _, fieldErr := range fieldErrs {
		collected.Add(fieldPath(fieldErr), describeTag(fieldErr))
	}
	return collected
}

func fieldPath(fieldErr validator.FieldError) string {
	namespace := fieldErr.Namespace()
	if idx := strings.Index(namespace, "."); idx >= 0 {
		return namespace[idx+1:]
	}
	return namespace
}

func describeTag(fieldErr validator.FieldError) string {
	switch fieldErr.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must have at least %s", fieldErr.Param())
	case "max":
		return fmt.Sprintf("must have at most %s", fieldErr.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fieldErr.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fieldErr.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fieldErr.Param())
	case "datetime":
		return "must be an RFC3339 timestamp"
	case "url":
		return "must be a valid URL"
	default:
		return fmt.Sprintf("failed %s validation", fieldErr.Tag())
	}
}
