package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Checker-Finance/yieldcurve/internal/rate"
)

// HealthChecker is implemented by the curve store.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// RegisterRoutes mounts every endpoint. nc is nil when events do not go
// through NATS; the health check then skips it.
func RegisterRoutes(app *fiber.App, nc *nats.Conn, st HealthChecker,
	curves *CurveHandler,
	bonds *BondHandler,
	limiter *rate.Manager,
) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Get("/health", func(c *fiber.Ctx) error {
		checks := map[string]string{
			"store": "ok",
		}
		status := "ok"
		code := fiber.StatusOK

		if nc != nil {
			checks["nats"] = "ok"
			if !nc.IsConnected() {
				checks["nats"] = "disconnected"
				status = "degraded"
				code = fiber.StatusServiceUnavailable
			} else if err := nc.FlushTimeout(1 * time.Second); err != nil {
				checks["nats"] = err.Error()
				status = "degraded"
				code = fiber.StatusServiceUnavailable
			}
		}

		healthCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := st.HealthCheck(healthCtx); err != nil {
			checks["store"] = err.Error()
			status = "degraded"
			code = fiber.StatusServiceUnavailable
		}

		return c.Status(code).JSON(fiber.Map{
			"status": status,
			"checks": checks,
		})
	})

	v1 := app.Group("/api/v1")
	v1.Get("/curves", curves.ListCurveDates)
	v1.Get("/curves/:date", curves.GetCurve)
	v1.Post("/curves/:date/generate", RateLimit(limiter), curves.GenerateCurve)
	v1.Get("/yield-curve", curves.YieldCurve)

	v1.Get("/bonds", bonds.ListBonds)
	v1.Get("/bonds/:isin", bonds.GetBond)
	v1.Get("/bonds/:isin/history", bonds.YieldHistory)
	v1.Get("/dates", bonds.ListDates)
	v1.Get("/stats", bonds.Stats)
}
