package middleware

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/coursework-api/internal/utils"
)

// RequireRole ensures that the authenticated user possesses one of the allowed roles.
func RequireRole(roles ...string) fiber.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		normalized := strings.ToLower(strings.TrimSpace(role))
		if normalized != "" {
			allowed[normalized] = struct{}{}
		}
	}

	return func(c *fiber.Ctx) error {
		role := normalizeRoleValue(c.Locals("user_role"))
		if _, ok := allowed[role]; !ok {
			return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
		}
		return c.Next()
	}
}

func normalizeRoleValue(value interface{}) string {
	switch v := value.(type) {
	case string:
		return canonicalRole(v)
	case fmt.Stringer:
		return canonicalRole(v.String())
	default:
		if value == nil {
			return ""
		}
		return canonicalRole(fmt.Sprintf("%v", value))
	}
}

// canonicalRole lowercases a role and folds the legacy "teacher" alias.
func canonicalRole(role string) string {
	role = strings.ToLower(strings.TrimSpace(role))
	if role == "teacher" {
		return RoleInstructor
	}
	return role
}
