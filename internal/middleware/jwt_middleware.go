package middleware

import (
	"log"
	"strings"

	"storefront/internal/services"

	"github.com/gofiber/fiber/v2"
)

// Locals keys set by the auth middleware.
const (
	LocalUserID   = "user_id"
	LocalUsername = "username"
)

// AuthRequired is a Fiber middleware to check for a valid JWT token.
func AuthRequired(authService *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return unauthorized(c, "Authorization header is required")
		}

		tokenString, ok := bearerToken(authHeader)
		if !ok {
			return unauthorized(c, "Authorization header format must be 'Bearer <token>'")
		}

		id, err := authService.Identify(tokenString)
		if err != nil {
			log.Printf("JWT validation failed: %v", err)
			return unauthorized(c, "Invalid or expired token")
		}

		c.Locals(LocalUserID, id.UserID)
		c.Locals(LocalUsername, id.Username)
		return c.Next()
	}
}

// OptionalAuth attaches the identity when a valid token is present and lets
// anonymous requests through. Checkout uses it to link orders to accounts.
func OptionalAuth(authService *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if tokenString, ok := bearerToken(c.Get("Authorization")); ok {
			if id, err := authService.Identify(tokenString); err == nil {
				c.Locals(LocalUserID, id.UserID)
				c.Locals(LocalUsername, id.Username)
			}
		}
		return c.Next()
	}
}

// UserID returns the authenticated user's id, or "".
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(LocalUserID).(string)
	return id
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func unauthorized(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"success": false,
		"data":    nil,
		"error":   message,
	})
}
