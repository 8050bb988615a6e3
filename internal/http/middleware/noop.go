package middleware

import "github.com/gofiber/fiber/v2"

// Noop simply calls the next handler. It stands in for a disabled layer.
func Noop() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.Next()
	}
}

// When returns h if enabled and Noop otherwise.
func When(enabled bool, h func() fiber.Handler) fiber.Handler {
	if !enabled {
		return Noop()
	}
	return h()
}
