package grading

import (
	"fmt"

	"github.com/noah-isme/coursework-api/internal/models"
)

// InitialState returns the state a fresh submission is persisted in.
func InitialState(kind models.AssignmentKind) models.SubmissionState {
	if kind == models.AssignmentKindQuiz {
		return models.SubmissionStateAutoGraded
	}
	return models.SubmissionStateSubmitted
}

// CanTransition reports whether a submission may move from one state to another.
// Re-grading a manually graded submission overrides the previous grade.
func CanTransition(from, to models.SubmissionState) bool {
	switch from {
	case models.SubmissionStateSubmitted:
		return to == models.SubmissionStateAutoGraded || to == models.SubmissionStateManuallyGraded
	case models.SubmissionStateManuallyGraded:
		return to == models.SubmissionStateManuallyGraded
	default:
		return false
	}
}

// Transition validates a state change.
func Transition(from, to models.SubmissionState) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}
