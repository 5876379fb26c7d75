package middleware

import (
	"os"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// GatewayAuthMiddleware validates the Bearer token from the API Gateway.
// Webhook callback routes are exempt: Billplz and ToyyibPay POST to them
// directly and authenticate with their own payload signatures.
func GatewayAuthMiddleware() fiber.Handler {
	expectedToken := os.Getenv("KHAIRAT_SERVICE_TOKEN")
	if expectedToken == "" {
		logrus.Fatal("KHAIRAT_SERVICE_TOKEN is not set, service cannot authenticate Gateway")
	}

	return func(c *fiber.Ctx) error {
		if strings.HasPrefix(c.Path(), "/webhooks/") {
			return c.Next()
		}

		authHeader := c.Get("Authorization")
		if authHeader == "" {
			logrus.WithField("path", c.Path()).Warn("missing Authorization header")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "gateway authentication token missing",
			})
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token != expectedToken {
			logrus.WithField("path", c.Path()).Warn("invalid gateway token")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid gateway authentication token",
			})
		}

		return c.Next()
	}
}
