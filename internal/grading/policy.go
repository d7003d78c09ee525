package grading

import (
	"time"

	"github.com/noah-isme/coursework-api/internal/models"
)

// DenyReason classifies why a new attempt was refused.
type DenyReason string

const (
	ReasonNone                DenyReason = ""
	ReasonDeadlinePassed      DenyReason = "deadline_passed"
	ReasonAttemptLimitReached DenyReason = "attempt_limit_reached"
	ReasonAlreadyGraded       DenyReason = "already_graded"
	ReasonAlreadyPassed       DenyReason = "already_passed"
)

// Decision is the outcome of evaluating a submit request against history.
type Decision struct {
	Allowed     bool
	Reason      DenyReason
	NextAttempt int
	BestScore   int
	Threshold   int
}

// Err returns the sentinel error matching the deny reason, or nil when allowed.
func (d Decision) Err() error {
	switch d.Reason {
	case ReasonDeadlinePassed:
		return ErrDeadlinePassed
	case ReasonAttemptLimitReached:
		return ErrAttemptLimitReached
	case ReasonAlreadyGraded:
		return ErrAlreadyGraded
	case ReasonAlreadyPassed:
		return ErrAlreadyPassed
	default:
		return nil
	}
}

// PassThreshold is half of maxMarks rounded up.
func PassThreshold(maxMarks int) int {
	if maxMarks <= 0 {
		return 0
	}
	return (maxMarks + 1) / 2
}

// BestScore returns the highest score across every prior submission.
func BestScore(prior []models.Submission) int {
	best := 0
	for _, submission := range prior {
		if submission.Score > best {
			best = submission.Score
		}
	}
	return best
}

// Evaluate decides whether a student may submit another attempt. prior must
// contain every stored submission for the (assignment, student) pair.
// Enrollment is checked by the caller before Evaluate runs.
func Evaluate(prior []models.Submission, assignment models.Assignment, now time.Time) Decision {
	decision := Decision{
		NextAttempt: len(prior) + 1,
		BestScore:   BestScore(prior),
		Threshold:   PassThreshold(assignment.MaxMarks),
	}

	if assignment.IsPastDue(now) {
		decision.Reason = ReasonDeadlinePassed
		return decision
	}

	if len(prior) >= models.MaxAttempts {
		decision.Reason = ReasonAttemptLimitReached
		return decision
	}

	for _, submission := range prior {
		if submission.IsInstructorGraded() {
			decision.Reason = ReasonAlreadyGraded
			return decision
		}
	}

	// Only quizzes short-circuit on a passing score; assignments keep their
	// remaining attempts until an instructor grades one.
	if assignment.IsQuiz() && len(prior) > 0 && decision.BestScore >= decision.Threshold {
		decision.Reason = ReasonAlreadyPassed
		return decision
	}

	decision.Allowed = true
	return decision
}
