package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// UserContextMiddleware extracts user identity and roles forwarded by the
// Gateway as X-User-ID / X-User-Roles and attaches them to the request
// context. Webhook routes carry no user identity and are passed through.
func UserContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if strings.HasPrefix(c.Path(), "/webhooks/") {
			return c.Next()
		}

		userID := c.Get("X-User-ID")
		if userID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing X-User-ID, request must come through gateway with auth context",
			})
		}

		var roles []string
		for _, r := range strings.Split(c.Get("X-User-Roles"), ",") {
			r = strings.TrimSpace(r)
			if r != "" {
				roles = append(roles, r)
			}
		}

		c.Locals("user_id", userID)
		c.Locals("user_roles", roles)

		return c.Next()
	}
}
