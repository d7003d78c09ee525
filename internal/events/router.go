package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/rs/zerolog"
)

// Handler delivers one decoded notification event.
type Handler func(ctx context.Context, event NotificationEvent) error

// NewDeliveryRouter builds a Watermill router that feeds every event on the
// bus topic to handler. Failed deliveries are retried, then logged and acked
// so a poisoned event never blocks the topic.
func NewDeliveryRouter(bus *Bus, handler Handler, logger zerolog.Logger) (*message.Router, error) {
	wmLogger := NewLoggerAdapter(logger)
	log := logger.With().Str("component", "notification_delivery").Logger()

	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: 10 * time.Second}, wmLogger)
	if err != nil {
		return nil, err
	}

	router.AddMiddleware(
		swallowFailures(log),
		middleware.Recoverer,
		middleware.Retry{
			MaxRetries:      3,
			InitialInterval: 100 * time.Millisecond,
			MaxInterval:     2 * time.Second,
			Multiplier:      2,
			Logger:          wmLogger,
		}.Middleware,
	)

	router.AddNoPublisherHandler("notification_delivery", bus.Topic, bus.Subscriber, func(msg *message.Message) error {
		var event NotificationEvent
		if err := json.Unmarshal(msg.Payload, &event); err != nil {
			log.Warn().Err(err).Str("message_uuid", msg.UUID).Msg("discarding malformed notification event")
			return nil
		}
		return handler(msg.Context(), event)
	})

	return router, nil
}

func swallowFailures(logger zerolog.Logger) message.HandlerMiddleware {
	return func(h message.HandlerFunc) message.HandlerFunc {
		return func(msg *message.Message) ([]*message.Message, error) {
			produced, err := h(msg)
			if err != nil {
				logger.Error().Err(err).
					Str("message_uuid", msg.UUID).
					Str("event_type", msg.Metadata.Get("event_type")).
					Msg("notification delivery failed")
				return nil, nil
			}
			return produced, nil
		}
	}
}
