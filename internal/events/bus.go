package events

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// Supported bus backends.
const (
	BackendGoChannel = "gochannel"
	BackendKafka     = "kafka"
)

// BusConfig selects and configures the message bus.
type BusConfig struct {
	Backend       string
	Brokers       []string
	Topic         string
	ConsumerGroup string
}

// Bus pairs the publisher and subscriber of one backend.
type Bus struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
	Topic      string
}

// NewBus builds the configured backend. The in-process backend is used when
// none is set.
func NewBus(cfg BusConfig, logger watermill.LoggerAdapter) (*Bus, error) {
	topic := strings.TrimSpace(cfg.Topic)
	if topic == "" {
		topic = DefaultTopic
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendGoChannel:
		pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, logger)
		return &Bus{Publisher: pubSub, Subscriber: pubSub, Topic: topic}, nil
	case BackendKafka:
		return newKafkaBus(cfg, topic, logger)
	default:
		return nil, fmt.Errorf("unsupported events backend %q", cfg.Backend)
	}
}

func newKafkaBus(cfg BusConfig, topic string, logger watermill.LoggerAdapter) (*Bus, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka backend requires at least one broker")
	}

	publisher, err := kafka.NewPublisher(kafka.PublisherConfig{
		Brokers:   cfg.Brokers,
		Marshaler: kafka.DefaultMarshaler{},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka publisher: %w", err)
	}

	group := cfg.ConsumerGroup
	if group == "" {
		group = "coursework-notifications"
	}

	subscriber, err := kafka.NewSubscriber(kafka.SubscriberConfig{
		Brokers:               cfg.Brokers,
		Unmarshaler:           kafka.DefaultMarshaler{},
		OverwriteSaramaConfig: kafka.DefaultSaramaSubscriberConfig(),
		ConsumerGroup:         group,
	}, logger)
	if err != nil {
		_ = publisher.Close()
		return nil, fmt.Errorf("failed to create kafka subscriber: %w", err)
	}

	return &Bus{Publisher: publisher, Subscriber: subscriber, Topic: topic}, nil
}

// Close releases both sides of the bus.
func (b *Bus) Close() error {
	var errs []error
	if err := b.Publisher.Close(); err != nil {
		errs = append(errs, err)
	}
	if any(b.Subscriber) != any(b.Publisher) {
		if err := b.Subscriber.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
