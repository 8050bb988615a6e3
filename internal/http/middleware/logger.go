package middleware

import (
	"io"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"helloapi/internal/logging"
)

// LoggerWithWriter logs each HTTP request as one JSON line on w, timestamps in loc.
// Fields:
// - request_id (taken from context locals set by RequestID middleware)
// - method
// - path
// - status
// - latency (in milliseconds, as float)
func LoggerWithWriter(w io.Writer, loc *time.Location) fiber.Handler {
	return LoggerWithZap(logging.New(w, loc))
}

// LoggerWithZap logs requests through an existing zap logger.
func LoggerWithZap(log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		rid, _ := c.Locals(RequestIDLocalKey).(string)
		latency := float64(time.Since(start).Microseconds()) / 1000

		// Use only the path segment (no query string)
		log.Info("http_request",
			zap.String("request_id", rid),
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", statusOf(c, err)),
			zap.Float64("latency", latency),
		)

		return err
	}
}

// statusOf returns the status the global error handler will write for err,
// or the status already set on the response when err is nil.
func statusOf(c *fiber.Ctx, err error) int {
	if err == nil {
		return c.Response().StatusCode()
	}
	if fiberErr, ok := err.(*fiber.Error); ok {
		return fiberErr.Code
	}
	return fiber.StatusInternalServerError
}
