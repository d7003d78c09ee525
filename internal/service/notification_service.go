package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/coursework-api/internal/dto"
	"github.com/noah-isme/coursework-api/internal/models"
	"github.com/noah-isme/coursework-api/internal/observability"
	"github.com/noah-isme/coursework-api/internal/repository"
)

const notificationBufferSize = 16

// NotificationService stores inbox notifications and streams them to live
// subscribers on every replica.
type NotificationService interface {
	Publish(ctx context.Context, payload dto.NotificationCreateRequest) ([]dto.NotificationResponse, error)
	List(ctx context.Context, userID uint, filter dto.NotificationFilter) ([]dto.NotificationResponse, error)
	MarkRead(ctx context.Context, id, userID uint) (dto.NotificationResponse, error)
	Subscribe(userID uint) (<-chan dto.NotificationResponse, func())
	Start(ctx context.Context)
}

type notificationService struct {
	repo        repository.NotificationRepository
	redis       *redis.Client
	redisStream string
	nats        *nats.Conn
	natsSubject string
	validator   *validator.Validate
	logger      zerolog.Logger
	tracer      trace.Tracer
	sanitizer   *bluemonday.Policy
	broker      *notificationBroker
	nodeID      string
}

type notificationEvent struct {
	Source        string                     `json:"source"`
	Notifications []dto.NotificationResponse `json:"notifications"`
	SentAt        time.Time                  `json:"sent_at"`
}

type notificationBroker struct {
	mu          sync.RWMutex
	subscribers map[uint]map[chan dto.NotificationResponse]struct{}
}

// NewNotificationService constructs a notification service. Redis and NATS
// are optional fan-out transports.
func NewNotificationService(repo repository.NotificationRepository, redisClient *redis.Client, channelBase string, natsConn *nats.Conn, validate *validator.Validate, logger zerolog.Logger) NotificationService {
	stream := ""
	subject := ""
	if channelBase != "" {
		stream = channelBase + ":notifications"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".notifications"
	}

	return &notificationService{
		repo:        repo,
		redis:       redisClient,
		redisStream: stream,
		nats:        natsConn,
		natsSubject: subject,
		validator:   validate,
		logger:      logger.With().Str("component", "notification_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/coursework-api/internal/service/notification"),
		sanitizer:   bluemonday.StrictPolicy(),
		broker: &notificationBroker{
			subscribers: make(map[uint]map[chan dto.NotificationResponse]struct{}),
		},
		nodeID: uuid.NewString(),
	}
}

// Start relays notifications written by other replicas. NATS takes
// precedence over redis when both are configured.
func (s *notificationService) Start(ctx context.Context) {
	switch {
	case s.useNATS():
		s.consumeNATS(ctx)
	case s.useRedis():
		go s.consumeRedis(ctx)
	}
}

func (s *notificationService) useNATS() bool {
	return s.nats != nil && s.natsSubject != ""
}

func (s *notificationService) useRedis() bool {
	return s.redis != nil && s.redisStream != ""
}

func (s *notificationService) Publish(ctx context.Context, payload dto.NotificationCreateRequest) ([]dto.NotificationResponse, error) {
	if err := validateStruct(s.validator, payload).OrNil(); err != nil {
		return nil, err
	}

	cleanMessage := sanitizeText(s.sanitizer, payload.Message)
	if cleanMessage == "" {
		return nil, ValidationErrors{{Field: "message", Message: "is empty after sanitization"}}
	}
	cleanTitle := sanitizeText(s.sanitizer, payload.Title)

	spanCtx, span := s.tracer.Start(ctx, "notifications.publish", trace.WithAttributes(
		attribute.String("notification.type", payload.Type),
		attribute.Int("notification.recipients", len(payload.UserIDs)),
	))
	defer span.End()

	items := make([]models.Notification, 0, len(payload.UserIDs))
	seen := make(map[uint]struct{}, len(payload.UserIDs))
	for _, userID := range payload.UserIDs {
		if _, dup := seen[userID]; dup {
			continue
		}
		seen[userID] = struct{}{}
		items = append(items, models.Notification{
			UserID:       userID,
			Type:         payload.Type,
			Title:        cleanTitle,
			Message:      cleanMessage,
			AssignmentID: payload.AssignmentID,
			SubmissionID: payload.SubmissionID,
		})
	}

	if err := s.repo.CreateBatch(spanCtx, items); err != nil {
		span.RecordError(err)
		return nil, err
	}

	responses := dto.NewNotificationResponseSlice(items)
	for _, response := range responses {
		s.broadcast(response)
	}
	if err := s.publish(spanCtx, responses); err != nil {
		s.logger.Warn().Err(err).Msg("failed to publish notification to broker")
	}

	observability.NotificationsDelivered().WithLabelValues(payload.Type).Add(float64(len(responses)))

	return responses, nil
}

func (s *notificationService) List(ctx context.Context, userID uint, filter dto.NotificationFilter) ([]dto.NotificationResponse, error) {
	if userID == 0 {
		return nil, errors.New("user id is required")
	}

	notifications, err := s.repo.ListByUser(ctx, userID, filter.Unread, filter.Limit, filter.Offset)
	if err != nil {
		return nil, err
	}

	return dto.NewNotificationResponseSlice(notifications), nil
}

func (s *notificationService) MarkRead(ctx context.Context, id, userID uint) (dto.NotificationResponse, error) {
	spanCtx, span := s.tracer.Start(ctx, "notifications.mark_read", trace.WithAttributes(
		attribute.Int64("notification.user_id", int64(userID)),
	))
	defer span.End()

	notification, err := s.repo.MarkRead(spanCtx, id, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.NotificationResponse{}, ErrNotificationNotFound
		}
		span.RecordError(err)
		return dto.NotificationResponse{}, err
	}

	return dto.NewNotificationResponse(notification), nil
}

func (s *notificationService) Subscribe(userID uint) (<-chan dto.NotificationResponse, func()) {
	channel := make(chan dto.NotificationResponse, notificationBufferSize)

	s.broker.subscribe(userID, channel)
	observability.SSEClientsActive().Inc()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			s.broker.unsubscribe(userID, channel)
			observability.SSEClientsActive().Dec()
		})
	}

	return channel, cleanup
}

func (s *notificationService) broadcast(notification dto.NotificationResponse) {
	s.broker.broadcast(notification.UserID, notification)
}

func (s *notificationService) publish(ctx context.Context, notifications []dto.NotificationResponse) error {
	if len(notifications) == 0 {
		return nil
	}

	event := notificationEvent{
		Source:        s.nodeID,
		Notifications: notifications,
		SentAt:        time.Now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	switch {
	case s.useNATS():
		return s.nats.Publish(s.natsSubject, payload)
	case s.useRedis():
		return s.redis.Publish(ctx, s.redisStream, payload).Err()
	}

	return nil
}

func (s *notificationService) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisStream)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, redis.ErrClosed) {
				return
			}
			s.logger.Error().Err(err).Msg("notification redis subscription closed")
			return
		}
		s.handleEvent([]byte(msg.Payload))
	}
}

func (s *notificationService) consumeNATS(ctx context.Context) {
	// plain subscription: every replica must relay to its own SSE clients
	sub, err := s.nats.Subscribe(s.natsSubject, func(msg *nats.Msg) {
		s.handleEvent(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats notifications subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain notification nats subscription")
		}
	}()
}

func (s *notificationService) handleEvent(payload []byte) {
	var event notificationEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		s.logger.Warn().Err(err).Msg("invalid notification event payload")
		return
	}

	if event.Source == s.nodeID {
		return
	}

	for _, notification := range event.Notifications {
		s.broadcast(notification)
	}
}

func (b *notificationBroker) subscribe(userID uint, ch chan dto.NotificationResponse) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[userID]; !exists {
		b.subscribers[userID] = make(map[chan dto.NotificationResponse]struct{})
	}
	b.subscribers[userID][ch] = struct{}{}
}

func (b *notificationBroker) unsubscribe(userID uint, ch chan dto.NotificationResponse) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subscribers, ok := b.subscribers[userID]; ok {
		delete(subscribers, ch)
		close(ch)
		if len(subscribers) == 0 {
			delete(b.subscribers, userID)
		}
	}
}

func (b *notificationBroker) broadcast(userID uint, notification dto.NotificationResponse) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers[userID] {
		select {
		case ch <- notification:
		default:
		}
	}
}
