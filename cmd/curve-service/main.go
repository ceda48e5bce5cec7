package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/Checker-Finance/yieldcurve/internal/api"
	"github.com/Checker-Finance/yieldcurve/internal/bootstrap"
	"github.com/Checker-Finance/yieldcurve/internal/jobs"
	"github.com/Checker-Finance/yieldcurve/internal/rate"
	"github.com/Checker-Finance/yieldcurve/internal/service"
	"github.com/Checker-Finance/yieldcurve/pkg/config"
	"github.com/Checker-Finance/yieldcurve/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Load configuration ---
	cfg := config.Load()

	logger.Init(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	defer logger.Sync()
	logg := logger.S()
	logg.Infof("starting [%s]...", cfg.ServiceName)

	// --- Store (Postgres + Redis read cache) ---
	stores, err := bootstrap.OpenStores(ctx, cfg, logger.L())
	if err != nil {
		logg.Fatalw("failed to init store", "error", err)
	}

	// --- Publisher ---
	pub, nc, err := bootstrap.NewPublisher(cfg, logger.Named("publisher"))
	if err != nil {
		logg.Fatalw("failed to init publisher", "error", err, "broker", cfg.EventBroker)
	}

	// --- Curve service ---
	svc := service.New(stores.Curves, stores.Bonds, pub, logger.Named("service"))
	if err := svc.SetDefaultMethod(cfg.DefaultMethod); err != nil {
		logg.Fatalw("invalid DEFAULT_METHOD", "error", err)
	}

	// --- Rate limiter for generation requests ---
	rateMgr := rate.NewManager(rate.Config{
		RequestsPerSecond: cfg.GenerateRPS,
		Burst:             cfg.GenerateBurst,
		Cooldown:          1 * time.Second,
	})

	// --- Refresher ---
	var refresher *jobs.CurveRefresher
	if cfg.RefreshInterval > 0 {
		refresher = jobs.NewCurveRefresher(logger.Named("jobs"), stores.Bonds, svc, rateMgr, cfg.DefaultMethod, cfg.RefreshInterval)
		go refresher.Start(ctx)
	} else {
		logg.Info("REFRESH_INTERVAL not set; curves are generated on request only")
	}

	// --- Fiber HTTP Server ---
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
		BodyLimit:    cfg.HTTPBodyLimit,
	})
	app.Use(fiberrecover.New())
	api.RegisterRoutes(app, nc, stores.Curves,
		api.NewCurveHandler(logger.Named("api"), svc),
		api.NewBondHandler(logger.Named("api"), stores.Bonds),
		rateMgr,
	)

	go func() {
		logg.Infof("HTTP API listening on :%d", cfg.Port)
		if err := app.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logg.Fatalw("fiber.listen_failed", "error", err)
		}
	}()

	logg.Infow("["+cfg.ServiceName+"] running",
		"env", cfg.Env,
		"broker", cfg.EventBroker,
		"cache", cfg.CacheEnabled,
		"default_method", cfg.DefaultMethod,
		"refresh_interval", cfg.RefreshInterval)

	<-ctx.Done()
	logg.Infof("shutting down [%s]...", cfg.ServiceName)

	if refresher != nil {
		refresher.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logg.Warnw("fiber.shutdown_failed", "error", err)
	}
	if err := pub.Close(); err != nil {
		logg.Warnw("publisher.close_failed", "error", err)
	}
	if err := stores.Close(); err != nil {
		logg.Warnw("store.close_failed", "error", err)
	}
}
