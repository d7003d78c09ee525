package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/coursework-api/internal/config"
	"github.com/noah-isme/coursework-api/internal/handler"
	"github.com/noah-isme/coursework-api/internal/middleware"
	"github.com/noah-isme/coursework-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AssignmentHandler   *handler.AssignmentHandler
	SubmissionHandler   *handler.SubmissionHandler
	NotificationHandler *handler.NotificationHandler
	Health              handler.HealthDependencies
	JWTMiddleware       fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.Health))

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	// Assignment authoring, submissions and grading share one prefix.
	assignments := api.Group("/assignment", jwtMiddleware)
	if deps.AssignmentHandler != nil {
		deps.AssignmentHandler.Register(assignments)
	}
	if deps.SubmissionHandler != nil {
		deps.SubmissionHandler.Register(assignments)
	}

	if deps.NotificationHandler != nil {
		notifications := api.Group("/notifications", jwtMiddleware,
			middleware.RequireRole(middleware.RoleStudent, middleware.RoleInstructor, middleware.RoleAdmin))
		deps.NotificationHandler.Register(notifications)
	}
}
