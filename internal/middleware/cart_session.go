package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	CartCookie    = "cart_id"
	LocalCartID   = "cart_id"
	cartCookieTTL = 90 * 24 * time.Hour
)

// CartSession makes sure every request carries a cart id, issuing a new
// cookie when the visitor has none or a malformed one.
func CartSession(secure bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Cookies(CartCookie)
		if _, err := uuid.Parse(id); err != nil {
			id = setCartCookie(c, secure)
		}
		c.Locals(LocalCartID, id)
		return c.Next()
	}
}

// CartID returns the request's cart id.
func CartID(c *fiber.Ctx) string {
	id, _ := c.Locals(LocalCartID).(string)
	return id
}

// RotateCart issues a fresh cart id for the rest of the request and the
// browser. Used on logout.
func RotateCart(c *fiber.Ctx, secure bool) string {
	id := setCartCookie(c, secure)
	c.Locals(LocalCartID, id)
	return id
}

func setCartCookie(c *fiber.Ctx, secure bool) string {
	id := uuid.New().String()
	c.Cookie(&fiber.Cookie{
		Name:     CartCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int(cartCookieTTL / time.Second),
		HTTPOnly: true,
		Secure:   secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return id
}
