package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/signaldesk/triage-service/pkg/util"
)

// RequireServiceToken validates the Authorization bearer token when a
// manager is configured. A nil manager disables the check entirely.
func RequireServiceToken(tm *TokenManager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if tm == nil {
			return c.Next()
		}
		header := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(header, "Bearer ") {
			return apperrors.NewUnauthorized("bearer token required")
		}
		if _, err := tm.ParseToken(strings.TrimPrefix(header, "Bearer ")); err != nil {
			return apperrors.NewUnauthorized("invalid token")
		}
		return c.Next()
	}
}
