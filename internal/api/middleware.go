package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Checker-Finance/yieldcurve/internal/metrics"
	"github.com/Checker-Finance/yieldcurve/internal/rate"
)

// RateLimit rejects callers whose per-IP bucket is empty.
func RateLimit(mgr *rate.Manager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if mgr == nil || mgr.Allow(c.IP()) {
			return c.Next()
		}
		metrics.IncError("api", "rate_limited")
		return errorJSON(c, fiber.StatusTooManyRequests, "rate limit exceeded")
	}
}
