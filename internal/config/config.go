package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName             string
	AppEnv              string
	AppPort             string
	DatabaseURL         string
	RedisURL            string
	NATSURL             string
	JWTSecret           string
	AllowOrigins        []string
	CacheTTL            time.Duration
	EventsBackend       string
	KafkaBrokers        []string
	KafkaTopic          string
	KafkaConsumerGroup  string
	ReminderInterval    time.Duration
	SubmitRateLimit     int
	SubmitRateWindow    time.Duration
	NotificationChannel string
	SSEKeepAlive        time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("COURSEWORK")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Coursework API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("cors.allow_origins", "*")
	v.SetDefault("cache.ttl", "5m")
	v.SetDefault("events.backend", "gochannel")
	v.SetDefault("kafka.topic", "coursework.notifications")
	v.SetDefault("kafka.consumer_group", "coursework-notifications")
	v.SetDefault("reminder.interval", "24h")
	v.SetDefault("submit.rate_limit", 10)
	v.SetDefault("submit.rate_window", "1m")
	v.SetDefault("notification.channel", "coursework")
	v.SetDefault("notification.keepalive", "30s")

	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	cacheTTL, err := parseDuration(v, "cache.ttl")
	if err != nil {
		return Config{}, err
	}
	reminderInterval, err := parseDuration(v, "reminder.interval")
	if err != nil {
		return Config{}, err
	}
	rateWindow, err := parseDuration(v, "submit.rate_window")
	if err != nil {
		return Config{}, err
	}
	keepAlive, err := parseDuration(v, "notification.keepalive")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName:             v.GetString("app.name"),
		AppEnv:              v.GetString("app.env"),
		AppPort:             v.GetString("app.port"),
		DatabaseURL:         v.GetString("database.url"),
		RedisURL:            v.GetString("redis.url"),
		NATSURL:             v.GetString("nats.url"),
		JWTSecret:           v.GetString("jwt.secret"),
		AllowOrigins:        splitList(v.GetString("cors.allow_origins")),
		CacheTTL:            cacheTTL,
		EventsBackend:       strings.ToLower(strings.TrimSpace(v.GetString("events.backend"))),
		KafkaBrokers:        splitList(v.GetString("kafka.brokers")),
		KafkaTopic:          v.GetString("kafka.topic"),
		KafkaConsumerGroup:  v.GetString("kafka.consumer_group"),
		ReminderInterval:    reminderInterval,
		SubmitRateLimit:     v.GetInt("submit.rate_limit"),
		SubmitRateWindow:    rateWindow,
		NotificationChannel: v.GetString("notification.channel"),
		SSEKeepAlive:        keepAlive,
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}
	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("database url must be provided")
	}

	switch cfg.EventsBackend {
	case "gochannel":
	case "kafka":
		if len(cfg.KafkaBrokers) == 0 {
			return Config{}, fmt.Errorf("kafka brokers must be provided when events backend is kafka")
		}
	default:
		return Config{}, fmt.Errorf("unsupported events backend %q", cfg.EventsBackend)
	}

	if cfg.SubmitRateLimit <= 0 {
		cfg.SubmitRateLimit = 10
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	value, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return value, nil
}

func splitList(input string) []string {
	parts := strings.Split(input, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
