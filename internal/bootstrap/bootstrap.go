// Package bootstrap builds the shared dependencies of the service and the CLI
// from a config.Config.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/Checker-Finance/yieldcurve/internal/bonds"
	"github.com/Checker-Finance/yieldcurve/internal/publisher"
	internalsecrets "github.com/Checker-Finance/yieldcurve/internal/secrets"
	"github.com/Checker-Finance/yieldcurve/internal/store"
	"github.com/Checker-Finance/yieldcurve/pkg/config"
	"github.com/Checker-Finance/yieldcurve/pkg/secrets"
	"github.com/Checker-Finance/yieldcurve/pkg/utils"
)

var ErrNoDatabase = errors.New("DATABASE_URL or DB_SECRET_NAME must be set")

// DatabaseURL returns DATABASE_URL, or resolves the DSN from Secrets Manager
// when only DB_SECRET_NAME is set.
func DatabaseURL(ctx context.Context, cfg *config.Config, logger *zap.Logger) (string, error) {
	if cfg.DatabaseURL != "" || cfg.DBSecretName == "" {
		return databaseURL(ctx, cfg, nil, logger)
	}
	provider, err := secrets.NewAWSProvider(ctx, cfg.AWSRegion)
	if err != nil {
		return "", err
	}
	return databaseURL(ctx, cfg, provider, logger)
}

func databaseURL(ctx context.Context, cfg *config.Config, provider secrets.Provider, logger *zap.Logger) (string, error) {
	if cfg.DatabaseURL != "" {
		return cfg.DatabaseURL, nil
	}
	if cfg.DBSecretName == "" || provider == nil {
		return "", ErrNoDatabase
	}
	resolver := internalsecrets.NewDBResolver(logger, provider,
		secrets.NewCache[internalsecrets.DBCredentials](cfg.SecretTTL),
		cfg.DBSecretName,
		internalsecrets.DBCredentials{
			Host:    cfg.DBHost,
			Port:    cfg.DBPort,
			DBName:  cfg.DBName,
			SSLMode: cfg.DBSSLMode,
		})
	return resolver.DSN(ctx)
}

// Stores holds the opened persistence layer.
type Stores struct {
	Curves *store.HybridStore
	Bonds  *bonds.Repository
}

// Close releases the shared pool and the cache client.
func (s *Stores) Close() error {
	return s.Curves.Close()
}

// OpenStores connects Postgres (and Redis when the cache is enabled) and
// makes sure both tables exist.
func OpenStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Stores, error) {
	dsn, err := DatabaseURL(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("store.connecting", zap.String("dsn", utils.MaskDSN(dsn)))

	rc := store.RedisConfig{
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
		CacheTTL: cfg.CurveCacheTTL,
	}
	if cfg.CacheEnabled {
		rc.Addr = cfg.RedisAddr
	}

	st, err := store.NewHybrid(ctx, rc, dsn, store.PGPoolConfig{
		MaxConns:          int32(cfg.PGMaxConns),
		MinConns:          int32(cfg.PGMinConns),
		MaxConnLifetime:   cfg.PGMaxConnLifetime,
		MaxConnIdleTime:   cfg.PGMaxConnIdleTime,
		HealthCheckPeriod: cfg.PGHealthCheckPeriod,
	}, logger.Named("store"))
	if err != nil {
		return nil, err
	}

	repo := bonds.NewRepository(st.Pool(), logger.Named("bonds"))
	if err := st.EnsureSchema(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return &Stores{Curves: st, Bonds: repo}, nil
}

// NewPublisher connects the broker named by EVENT_BROKER. The returned NATS
// connection is nil unless the broker is NATS.
func NewPublisher(cfg *config.Config, logger *zap.Logger) (publisher.Publisher, *nats.Conn, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.EventBroker)) {
	case publisher.BrokerNATS:
		nc, err := nats.Connect(cfg.NATSURL, nats.Name(cfg.ServiceName))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		pub, err := publisher.NewNATS(nc, cfg.ServiceName)
		if err != nil {
			nc.Close()
			return nil, nil, fmt.Errorf("failed to init publisher: %w", err)
		}
		return pub, nc, nil
	case publisher.BrokerRabbitMQ:
		logger.Info("publisher.rabbitmq.connecting", zap.String("url", utils.MaskDSN(cfg.RabbitMQURL)))
		pub, err := publisher.NewRabbitMQ(cfg.RabbitMQURL, cfg.RabbitMQExchange, cfg.ServiceName, logger.Named("publisher"))
		if err != nil {
			return nil, nil, err
		}
		return pub, nil, nil
	case publisher.BrokerNone, "":
		return publisher.Noop{}, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown EVENT_BROKER %q", cfg.EventBroker)
	}
}
