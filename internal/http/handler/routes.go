package handler

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"helloapi/internal/service"
)

// RegisterRoutes attaches HTTP routes to the provided Fiber router.
// guard runs in front of the greeting routes only; health probes stay public.
func RegisterRoutes(r fiber.Router, helloSvc service.HelloService, guard fiber.Handler) {
	r.Get("/health", HealthCheck())
	r.Get("/healthz", LivenessProbe())

	r.Get("/hello", guard, Hello(helloSvc))
	r.Get("/hello/dto", guard, HelloDto(helloSvc))
}

// HealthCheck reports service health. The service has no downstream dependencies.
//
// @Summary Health check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func HealthCheck() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// LivenessProbe is a bare 200 for orchestrators.
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

// Hello returns the fixed greeting as plain text.
//
// @Summary Greeting
// @Tags hello
// @Produce plain
// @Security BasicAuth
// @Success 200 {string} string "hello"
// @Failure 401 {object} errorPayload
// @Failure 403 {object} errorPayload
// @Router /hello [get]
func Hello(svc service.HelloService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
		return c.Status(fiber.StatusOK).SendString(svc.Hello(c.UserContext()))
	}
}

// HelloDto echoes the name and amount query parameters as JSON.
//
// @Summary Greeting with data
// @Tags hello
// @Produce json
// @Security BasicAuth
// @Param name query string true "name, returned verbatim"
// @Param amount query int true "amount, decimal integer"
// @Success 200 {object} model.HelloResponse
// @Failure 400 {object} errorPayload
// @Failure 401 {object} errorPayload
// @Failure 403 {object} errorPayload
// @Router /hello/dto [get]
func HelloDto(svc service.HelloService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		name := c.Query("name")
		if name == "" {
			return writeError(c, fiber.StatusBadRequest, "MISSING_NAME", "name is required")
		}

		amountStr := c.Query("amount")
		if amountStr == "" {
			return writeError(c, fiber.StatusBadRequest, "MISSING_AMOUNT", "amount is required")
		}
		amount, err := strconv.Atoi(amountStr)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_AMOUNT", "amount must be an integer")
		}

		res, err := svc.HelloDto(c.UserContext(), name, amount)
		if err != nil {
			if errors.Is(err, service.ErrNameRequired) {
				return writeError(c, fiber.StatusBadRequest, "MISSING_NAME", "name is required")
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.Status(fiber.StatusOK).JSON(res)
	}
}
