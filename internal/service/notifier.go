package service

import "context"

// Notifier dispatches coursework notifications. Implementations are
// fire-and-forget: they must not block the caller and never report failures.
type Notifier interface {
	SubmissionConfirmed(ctx context.Context, submissionID uint)
	Graded(ctx context.Context, submissionID uint, score int, feedback, graderName string)
	NewAssignment(ctx context.Context, assignmentID uint)
	DueSoon(ctx context.Context, assignmentID uint)
	Pending(ctx context.Context, assignmentID uint, daysRemaining int)
}

// NopNotifier drops every notification.
type NopNotifier struct{}

func (NopNotifier) SubmissionConfirmed(context.Context, uint) {}
func (NopNotifier) Graded(context.Context, uint, int, string, string) {}
func (NopNotifier) NewAssignment(context.Context, uint) {}
func (NopNotifier) DueSoon(context.Context, uint) {}
func (NopNotifier) Pending(context.Context, uint, int) {}
