package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/noah-isme/coursework-api/internal/config"
	"github.com/noah-isme/coursework-api/internal/utils"
)

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status       string            `json:"status"`
	Timestamp    time.Time         `json:"timestamp"`
	Service      string            `json:"service"`
	Environment  string            `json:"environment"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// HealthDependencies are the backing services probed by the health check.
// Nil members are reported as disabled.
type HealthDependencies struct {
	DB    *gorm.DB
	Redis *redis.Client
	NATS  *nats.Conn
}

// HealthCheck returns a handler that reports application health information.
func HealthCheck(cfg config.Config, deps HealthDependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()

		status := "ok"
		checks := map[string]string{
			"database": probeDatabase(ctx, deps.DB),
			"redis":    probeRedis(ctx, deps.Redis),
			"nats":     probeNATS(deps.NATS),
		}
		for _, state := range checks {
			if state == "down" {
				status = "degraded"
			}
		}

		payload := HealthResponse{
			Status:       status,
			Timestamp:    time.Now().UTC(),
			Service:      cfg.AppName,
			Environment:  cfg.AppEnv,
			Dependencies: checks,
		}

		if status != "ok" {
			return c.Status(fiber.StatusServiceUnavailable).JSON(utils.APIResponse{
				Success: false,
				Data:    payload,
				Message: "service degraded",
			})
		}
		return utils.SendSuccess(c, "service healthy", payload)
	}
}

func probeDatabase(ctx context.Context, db *gorm.DB) string {
	if db == nil {
		return "disabled"
	}
	sqlDB, err := db.DB()
	if err != nil {
		return "down"
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return "down"
	}
	return "up"
}

func probeRedis(ctx context.Context, client *redis.Client) string {
	if client == nil {
		return "disabled"
	}
	if err := client.Ping(ctx).Err(); err != nil {
		return "down"
	}
	return "up"
}

func probeNATS(conn *nats.Conn) string {
	if conn == nil {
		return "disabled"
	}
	if !conn.IsConnected() {
		return "down"
	}
	return "up"
}
