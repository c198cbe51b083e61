package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

// RequestID ensures each request carries a stable identifier for tracing. A
// caller-provided header is propagated unchanged.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqID := c.Get(requestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Set(requestIDHeader, reqID)
		c.Locals(requestIDHeader, reqID)
		return c.Next()
	}
}
