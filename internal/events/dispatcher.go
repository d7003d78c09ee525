package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/coursework-api/internal/observability"
)

// Dispatcher publishes notification events without blocking the caller.
// Publish failures are logged and counted, never returned.
type Dispatcher struct {
	publisher message.Publisher
	topic     string
	logger    zerolog.Logger
	now       func() time.Time

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher wires a dispatcher on top of a Watermill publisher.
func NewDispatcher(publisher message.Publisher, topic string, logger zerolog.Logger) *Dispatcher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Dispatcher{
		publisher: publisher,
		topic:     topic,
		logger:    logger.With().Str("component", "notification_dispatcher").Logger(),
		now:       time.Now,
	}
}

func (d *Dispatcher) SubmissionConfirmed(ctx context.Context, submissionID uint) {
	d.dispatch(ctx, NotificationEvent{Type: EventSubmissionConfirmed, SubmissionID: submissionID})
}

func (d *Dispatcher) Graded(ctx context.Context, submissionID uint, score int, feedback, graderName string) {
	d.dispatch(ctx, NotificationEvent{
		Type:         EventGraded,
		SubmissionID: submissionID,
		Score:        &score,
		Feedback:     feedback,
		GraderName:   graderName,
	})
}

func (d *Dispatcher) NewAssignment(ctx context.Context, assignmentID uint) {
	d.dispatch(ctx, NotificationEvent{Type: EventNewAssignment, AssignmentID: assignmentID})
}

func (d *Dispatcher) DueSoon(ctx context.Context, assignmentID uint) {
	d.dispatch(ctx, NotificationEvent{Type: EventDueSoon, AssignmentID: assignmentID})
}

func (d *Dispatcher) Pending(ctx context.Context, assignmentID uint, daysRemaining int) {
	d.dispatch(ctx, NotificationEvent{Type: EventPending, AssignmentID: assignmentID, DaysRemaining: daysRemaining})
}

func (d *Dispatcher) dispatch(ctx context.Context, event NotificationEvent) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.logger.Warn().Str("type", string(event.Type)).Msg("dispatcher closed, dropping notification")
		observability.NotificationsDispatched().WithLabelValues(string(event.Type), "dropped").Inc()
		return
	}

	event.ID = uuid.NewString()
	event.OccurredAt = d.now().UTC()
	detached := context.WithoutCancel(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error().Interface("panic", r).Str("event_id", event.ID).Msg("notification dispatch panicked")
				observability.NotificationsDispatched().WithLabelValues(string(event.Type), "failed").Inc()
			}
		}()

		if err := d.publish(detached, event); err != nil {
			d.logger.Warn().Err(err).
				Str("event_id", event.ID).
				Str("type", string(event.Type)).
				Msg("failed to dispatch notification")
			observability.NotificationsDispatched().WithLabelValues(string(event.Type), "failed").Inc()
			return
		}
		observability.NotificationsDispatched().WithLabelValues(string(event.Type), "published").Inc()
	}()
}

func (d *Dispatcher) publish(ctx context.Context, event NotificationEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal notification event: %w", err)
	}

	msg := message.NewMessage(event.ID, payload)
	msg.Metadata.Set("event_type", string(event.Type))
	msg.Metadata.Set("timestamp", event.OccurredAt.Format(time.RFC3339))
	msg.SetContext(ctx)

	return d.publisher.Publish(d.topic, msg)
}

// Close waits for in-flight dispatches. Later calls are dropped.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.wg.Wait()
}
