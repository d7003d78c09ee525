// Package grading holds the attempt policy, the quiz auto-grader and the
// submission lifecycle rules. It performs no I/O.
package grading

import "errors"

var (
	// ErrDeadlinePassed indicates the assignment due date has elapsed.
	ErrDeadlinePassed = errors.New("assignment submission deadline has passed")
	// ErrAttemptLimitReached indicates the student used every allowed attempt.
	ErrAttemptLimitReached = errors.New("maximum 3 attempts allowed for this assignment")
	// ErrAlreadyGraded indicates an instructor graded a previous attempt.
	ErrAlreadyGraded = errors.New("assignment already graded by instructor, no further attempts allowed")
	// ErrAlreadyPassed indicates a previous quiz attempt reached the pass threshold.
	ErrAlreadyPassed = errors.New("quiz already passed, no further attempts allowed")
	// ErrInvalidTransition indicates a lifecycle change that is not permitted.
	ErrInvalidTransition = errors.New("invalid submission state transition")
)
