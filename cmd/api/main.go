package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/coursework-api/internal/config"
	"github.com/noah-isme/coursework-api/internal/database"
	"github.com/noah-isme/coursework-api/internal/events"
	"github.com/noah-isme/coursework-api/internal/handler"
	"github.com/noah-isme/coursework-api/internal/middleware"
	"github.com/noah-isme/coursework-api/internal/repository"
	"github.com/noah-isme/coursework-api/internal/router"
	"github.com/noah-isme/coursework-api/internal/service"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	if cfg.AppEnv == "production" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	logger = logger.With().Str("service", cfg.AppName).Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
	} else {
		logger.Warn().Msg("redis disabled: listing cache and reminder de-duplication are off")
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to nats")
		}
		defer natsConn.Close()
	}

	bus, err := events.NewBus(events.BusConfig{
		Backend:       cfg.EventsBackend,
		Brokers:       cfg.KafkaBrokers,
		Topic:         cfg.KafkaTopic,
		ConsumerGroup: cfg.KafkaConsumerGroup,
	}, events.NewLoggerAdapter(logger))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create event bus")
	}

	validate := service.NewValidator()

	assignmentRepo := repository.NewAssignmentRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	userRepo := repository.NewUserRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	dispatcher := events.NewDispatcher(bus.Publisher, bus.Topic, logger)
	statusCache := service.NewStatusCache(redisClient, cfg.CacheTTL, logger)

	assignmentService := service.NewAssignmentService(assignmentRepo, submissionRepo, courseRepo, dispatcher, statusCache, validate, logger)
	submissionService := service.NewSubmissionService(assignmentRepo, submissionRepo, courseRepo, dispatcher, statusCache, validate, logger)
	gradingService := service.NewGradingService(submissionRepo, userRepo, dispatcher, statusCache, validate, logger)
	gradebookService := service.NewGradebookService(assignmentRepo, submissionRepo, logger)
	notificationService := service.NewNotificationService(notificationRepo, redisClient, cfg.NotificationChannel, natsConn, validate, logger)
	delivery := service.NewNotificationDelivery(assignmentRepo, submissionRepo, courseRepo, notificationService, logger)
	reminders := service.NewReminderService(assignmentRepo, dispatcher, redisClient, cfg.ReminderInterval, logger)

	deliveryRouter, err := events.NewDeliveryRouter(bus, delivery.Deliver, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create notification delivery router")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The router outlives ctx so events flushed during shutdown are still delivered.
	go func() {
		if err := deliveryRouter.Run(context.Background()); err != nil {
			logger.Error().Err(err).Msg("notification delivery router stopped")
		}
	}()
	<-deliveryRouter.Running()

	notificationService.Start(ctx)
	go reminders.Run(ctx)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AllowOrigins: cfg.AllowOrigins})
	router.Register(app, cfg, router.Dependencies{
		AssignmentHandler: handler.NewAssignmentHandler(assignmentService, logger),
		SubmissionHandler: handler.NewSubmissionHandler(
			submissionService,
			gradingService,
			gradebookService,
			middleware.RateLimit("submit", cfg.SubmitRateLimit, cfg.SubmitRateWindow),
			logger,
		),
		NotificationHandler: handler.NewNotificationHandler(notificationService, logger, cfg.SSEKeepAlive),
		Health: handler.HealthDependencies{
			DB:    db,
			Redis: redisClient,
			NATS:  natsConn,
		},
		JWTMiddleware: middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-ctx.Done()
	shutdown(app, dispatcher, deliveryRouter, bus, logger)
}

type closer interface {
	Close() error
}

// shutdown stops accepting requests, flushes pending notification events and
// then tears down the bus.
func shutdown(app *fiber.App, dispatcher *events.Dispatcher, deliveryRouter closer, bus *events.Bus, logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	dispatcher.Close()

	if err := deliveryRouter.Close(); err != nil {
		logger.Warn().Err(err).Msg("failed to close notification delivery router")
	}
	if err := bus.Close(); err != nil {
		logger.Warn().Err(err).Msg("failed to close event bus")
	}

	logger.Info().Msg("server stopped")
}
