package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/coursework-api/internal/utils"
)

// Role names carried in the user_role local.
const (
	RoleStudent    = "student"
	RoleInstructor = "instructor"
	RoleAdmin      = "admin"
)

// Auth role constants used by WithAuth.
const (
	AuthRoleAny        = "any"
	AuthRoleStudent    = RoleStudent
	AuthRoleInstructor = RoleInstructor
	AuthRoleAdmin      = RoleAdmin
)

// AuthOptions configures the WithAuth helper.
type AuthOptions struct {
	Role           string
	AllowAnonymous bool
}

// WithAuth wraps a handler with authentication and role guards. Admins pass
// instructor guards.
func WithAuth(handler fiber.Handler, opts AuthOptions) fiber.Handler {
	role := strings.ToLower(strings.TrimSpace(opts.Role))
	if role == "" {
		role = AuthRoleAny
	}
	allowAnonymous := opts.AllowAnonymous && role == AuthRoleAny

	return func(c *fiber.Ctx) error {
		if c.Locals("user_id") == nil {
			if allowAnonymous {
				return handler(c)
			}
			return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
		}

		current := normalizeRoleValue(c.Locals("user_role"))
		switch role {
		case AuthRoleAny:
		case AuthRoleInstructor:
			if current != RoleInstructor && current != RoleAdmin {
				return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
			}
		default:
			if current != role {
				return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
			}
		}

		return handler(c)
	}
}
