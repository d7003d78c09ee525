package service

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/coursework-api/internal/repository"
)

const (
	dueSoonWindow     = 24 * time.Hour
	pendingHalfWindow = 12 * time.Hour
	reminderClaimTTL  = 48 * time.Hour
)

// pendingReminderDays are the lead times for pending-deadline reminders.
var pendingReminderDays = []int{3, 7, 14}

// ReminderService periodically notifies students about upcoming deadlines.
type ReminderService struct {
	assignments repository.AssignmentRepository
	notifier    Notifier
	redis       *redis.Client
	interval    time.Duration
	logger      zerolog.Logger
	now         func() time.Time
}

// ReminderSummary reports what one sweep dispatched.
type ReminderSummary struct {
	DueSoon int
	Pending int
	Skipped int
}

// NewReminderService builds the scheduler. Without redis every sweep
// dispatches, so run a single replica in that mode.
func NewReminderService(assignments repository.AssignmentRepository, notifier Notifier, redisClient *redis.Client, interval time.Duration, logger zerolog.Logger) *ReminderService {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &ReminderService{
		assignments: assignments,
		notifier:    notifier,
		redis:       redisClient,
		interval:    interval,
		logger:      logger.With().Str("component", "reminder_service").Logger(),
		now:         time.Now,
	}
}

// Run sweeps immediately and then on every interval until ctx is done.
func (s *ReminderService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if summary, err := s.Sweep(ctx); err != nil {
			s.logger.Error().Err(err).Msg("reminder sweep failed")
		} else {
			s.logger.Info().
				Int("due_soon", summary.DueSoon).
				Int("pending", summary.Pending).
				Int("skipped", summary.Skipped).
				Msg("reminder sweep completed")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Sweep dispatches due-soon reminders for assignments due in the next 24
// hours and pending reminders for assignments due in 3, 7 or 14 days.
func (s *ReminderService) Sweep(ctx context.Context) (ReminderSummary, error) {
	var summary ReminderSummary
	now := s.now()

	dueSoon, err := s.assignments.ListDueBetween(ctx, now, now.Add(dueSoonWindow))
	if err != nil {
		return summary, err
	}
	for _, assignment := range dueSoon {
		if !s.claim(ctx, fmt.Sprintf("coursework:reminder:%d:due_soon", assignment.ID)) {
			summary.Skipped++
			continue
		}
		s.notifier.DueSoon(ctx, assignment.ID)
		summary.DueSoon++
	}

	for _, days := range pendingReminderDays {
		target := now.Add(time.Duration(days) * 24 * time.Hour)
		pending, err := s.assignments.ListDueBetween(ctx, target.Add(-pendingHalfWindow), target.Add(pendingHalfWindow))
		if err != nil {
			return summary, err
		}
		for _, assignment := range pending {
			if !s.claim(ctx, fmt.Sprintf("coursework:reminder:%d:pending:%d", assignment.ID, days)) {
				summary.Skipped++
				continue
			}
			s.notifier.Pending(ctx, assignment.ID, days)
			summary.Pending++
		}
	}

	return summary, nil
}

// claim reports whether this replica owns the reminder. Redis errors fail
// open so reminders are not lost.
func (s *ReminderService) claim(ctx context.Context, key string) bool {
	if s.redis == nil {
		return true
	}
	ok, err := s.redis.SetNX(ctx, key, s.now().UTC().Format(time.RFC3339), reminderClaimTTL).Result()
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("failed to claim reminder")
		return true
	}
	return ok
}
