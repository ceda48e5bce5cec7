package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Checker-Finance/yieldcurve/internal/curve"
	"github.com/Checker-Finance/yieldcurve/internal/metrics"
	"github.com/Checker-Finance/yieldcurve/pkg/model"
)

// Store defines the contract for persisting and reading sampled curves.
type Store interface {
	WriteCurve(ctx context.Context, businessDate time.Time, method string, points []model.CurvePoint) error
	ReplaceCurve(ctx context.Context, businessDate time.Time, method string, points []model.CurvePoint) error
	GetCurve(ctx context.Context, businessDate time.Time) (*model.Curve, error)
	ListCurveDates(ctx context.Context) ([]time.Time, error)
	EnsureSchema(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Close() error
}

// PGXPool is the subset of *pgxpool.Pool used by the stores in this module.
type PGXPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// HybridStore persists curves in Postgres and keeps a JSON read copy in Redis.
// Redis is optional.
type HybridStore struct {
	redis    *redis.Client
	pg       PGXPool
	cacheTTL time.Duration
	logger   *zap.Logger
}

type PGPoolConfig struct {
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	CacheTTL time.Duration
}

const curveKeyPrefix = "yieldcurve:curve:"

func curveKey(businessDate time.Time) string {
	return curveKeyPrefix + businessDate.Format(model.DateLayout)
}

// generation counter bumped on every committed write; readers only fill the
// cache when it has not moved since they queried Postgres.
func generationKey(businessDate time.Time) string {
	return curveKey(businessDate) + ":gen"
}

func lockKey(businessDate time.Time) string {
	return "yield_curves:" + businessDate.Format(model.DateLayout)
}

// New wraps existing connections. rdb may be nil.
func New(pg PGXPool, rdb *redis.Client, cacheTTL time.Duration, logger *zap.Logger) *HybridStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HybridStore{pg: pg, redis: rdb, cacheTTL: cacheTTL, logger: logger}
}

// NewHybrid creates a Postgres-backed store with an optional Redis read cache.
// An empty redis address disables the cache.
func NewHybrid(ctx context.Context, rc RedisConfig, pgURL string, pgPoolConfig PGPoolConfig, logger *zap.Logger) (*HybridStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := NewPGPool(ctx, pgURL, pgPoolConfig)
	if err != nil {
		return nil, err
	}

	var rdb *redis.Client
	if rc.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     rc.Addr,
			Password: rc.Password,
			DB:       rc.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			pool.Close()
			return nil, fmt.Errorf("redis ping failed: %w", err)
		}
	}

	return New(pool, rdb, rc.CacheTTL, logger), nil
}

// NewPGPool opens a pgx pool with the given overrides applied.
func NewPGPool(ctx context.Context, pgURL string, pgPoolConfig PGPoolConfig) (*pgxpool.Pool, error) {
	if pgURL == "" {
		return nil, errors.New("postgres url is required")
	}
	cfg, err := pgxpool.ParseConfig(pgURL)
	if err != nil {
		return nil, fmt.Errorf("invalid pg config: %w", err)
	}
	if pgPoolConfig.MaxConns > 0 {
		cfg.MaxConns = pgPoolConfig.MaxConns
	}
	if pgPoolConfig.MinConns > 0 {
		cfg.MinConns = pgPoolConfig.MinConns
	}
	if pgPoolConfig.MaxConnLifetime > 0 {
		cfg.MaxConnLifetime = pgPoolConfig.MaxConnLifetime
	}
	if pgPoolConfig.MaxConnIdleTime > 0 {
		cfg.MaxConnIdleTime = pgPoolConfig.MaxConnIdleTime
	}
	if pgPoolConfig.HealthCheckPeriod > 0 {
		cfg.HealthCheckPeriod = pgPoolConfig.HealthCheckPeriod
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return pool, nil
}

// Pool exposes the Postgres pool so other repositories can share it.
func (s *HybridStore) Pool() PGXPool { return s.pg }

const schemaSQL = `
CREATE TABLE IF NOT EXISTS yield_curves (
	id                   BIGSERIAL PRIMARY KEY,
	business_date        DATE NOT NULL,
	maturity_days        INTEGER NOT NULL,
	maturity_years       DOUBLE PRECISION NOT NULL,
	yield_rate           DOUBLE PRECISION NOT NULL,
	interpolation_method TEXT NOT NULL DEFAULT 'linear',
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (business_date, maturity_days)
);
CREATE INDEX IF NOT EXISTS idx_yield_curves_date ON yield_curves (business_date);
CREATE INDEX IF NOT EXISTS idx_yield_curves_maturity ON yield_curves (maturity_days);
`

func (s *HybridStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pg.Exec(ctx, schemaSQL); err != nil {
		s.logger.Error("store.pg.schema_failed", zap.Error(err))
		return fmt.Errorf("%w: ensure schema: %w", curve.ErrPersistence, err)
	}
	return nil
}

// WriteCurve upserts every point of a curve in one transaction. Maturities
// already stored for the date but absent from points are left in place.
func (s *HybridStore) WriteCurve(ctx context.Context, businessDate time.Time, method string, points []model.CurvePoint) error {
	return s.write(ctx, "write", businessDate, method, points, false)
}

// ReplaceCurve removes the stored curve for the date and writes points in its place.
func (s *HybridStore) ReplaceCurve(ctx context.Context, businessDate time.Time, method string, points []model.CurvePoint) error {
	return s.write(ctx, "replace", businessDate, method, points, true)
}

func (s *HybridStore) write(ctx context.Context, op string, businessDate time.Time, method string, points []model.CurvePoint, replace bool) error {
	date := businessDate.Format(model.DateLayout)
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, lockKey(businessDate)); err != nil {
			return fmt.Errorf("advisory lock: %w", err)
		}
		if replace {
			if _, err := tx.Exec(ctx, `DELETE FROM yield_curves WHERE business_date = $1`, businessDate); err != nil {
				return fmt.Errorf("delete existing: %w", err)
			}
		}
		for _, p := range points {
			_, err := tx.Exec(ctx, `
				INSERT INTO yield_curves (
					business_date, maturity_days, maturity_years, yield_rate, interpolation_method, created_at
				)
				VALUES ($1, $2, $3, $4, $5, NOW())
				ON CONFLICT (business_date, maturity_days)
				DO UPDATE SET
					maturity_years = EXCLUDED.maturity_years,
					yield_rate = EXCLUDED.yield_rate,
					interpolation_method = EXCLUDED.interpolation_method,
					created_at = EXCLUDED.created_at;
			`, businessDate, p.MaturityDays, p.MaturityYears, p.YieldRate, method)
			if err != nil {
				return fmt.Errorf("upsert %d days: %w", p.MaturityDays, err)
			}
		}
		return nil
	})
	if err != nil {
		metrics.IncStoreOp(op, "error")
		s.logger.Error("store.pg.write_failed",
			zap.String("business_date", date),
			zap.String("op", op),
			zap.Error(err))
		return fmt.Errorf("%w: %s curve %s: %w", curve.ErrPersistence, op, date, err)
	}
	metrics.IncStoreOp(op, "ok")
	s.invalidate(ctx, businessDate)
	s.logger.Debug("store.pg.curve_written",
		zap.String("business_date", date),
		zap.String("method", method),
		zap.Int("points", len(points)))
	return nil
}

func (s *HybridStore) withTx(ctx context.Context, fn func(pgx.Tx) error) (err error) {
	tx, err := s.pg.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				s.logger.Warn("store.pg.rollback_failed", zap.Error(rbErr))
			}
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetCurve returns the stored curve for the date, or nil when none exists.
func (s *HybridStore) GetCurve(ctx context.Context, businessDate time.Time) (*model.Curve, error) {
	if c := s.cached(ctx, businessDate); c != nil {
		return c, nil
	}
	gen := s.generation(ctx, businessDate)

	rows, err := s.pg.Query(ctx, `
		SELECT maturity_days, maturity_years, yield_rate, interpolation_method, created_at
		FROM yield_curves
		WHERE business_date = $1
		ORDER BY maturity_days;
	`, businessDate)
	if err != nil {
		metrics.IncStoreOp("read", "error")
		return nil, fmt.Errorf("%w: read curve: %w", curve.ErrPersistence, err)
	}
	defer rows.Close()

	var c *model.Curve
	for rows.Next() {
		var (
			p         model.CurvePoint
			method    string
			createdAt time.Time
		)
		if err := rows.Scan(&p.MaturityDays, &p.MaturityYears, &p.YieldRate, &method, &createdAt); err != nil {
			metrics.IncStoreOp("read", "error")
			return nil, fmt.Errorf("%w: scan curve: %w", curve.ErrPersistence, err)
		}
		if c == nil {
			c = &model.Curve{
				BusinessDate:        businessDate,
				InterpolationMethod: method,
				CreatedAt:           createdAt,
			}
		}
		c.Points = append(c.Points, p)
	}
	if err := rows.Err(); err != nil {
		metrics.IncStoreOp("read", "error")
		return nil, fmt.Errorf("%w: read curve: %w", curve.ErrPersistence, err)
	}
	metrics.IncStoreOp("read", "ok")

	if c != nil {
		s.populate(ctx, c, gen)
	}
	return c, nil
}

// ListCurveDates returns every business date with a stored curve, newest first.
func (s *HybridStore) ListCurveDates(ctx context.Context) ([]time.Time, error) {
	rows, err := s.pg.Query(ctx, `
		SELECT DISTINCT business_date
		FROM yield_curves
		ORDER BY business_date DESC;
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: list dates: %w", curve.ErrPersistence, err)
	}
	defer rows.Close()

	dates := []time.Time{}
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("%w: scan date: %w", curve.ErrPersistence, err)
		}
		dates = append(dates, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list dates: %w", curve.ErrPersistence, err)
	}
	return dates, nil
}

func (s *HybridStore) cached(ctx context.Context, businessDate time.Time) *model.Curve {
	if s.redis == nil {
		return nil
	}
	var c model.Curve
	err := s.GetJSON(ctx, curveKey(businessDate), &c)
	switch {
	case err == nil:
		metrics.IncCacheAccess("hit")
		return &c
	case errors.Is(err, redis.Nil):
		metrics.IncCacheAccess("miss")
	default:
		metrics.IncCacheAccess("miss")
		s.logger.Warn("store.redis.get_failed", zap.String("key", curveKey(businessDate)), zap.Error(err))
	}
	return nil
}

func (s *HybridStore) generation(ctx context.Context, businessDate time.Time) int64 {
	if s.redis == nil {
		return 0
	}
	n, err := s.redis.Get(ctx, generationKey(businessDate)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		s.logger.Warn("store.redis.generation_failed", zap.String("key", generationKey(businessDate)), zap.Error(err))
		return -1
	}
	return n
}

// populate caches c unless a write committed after gen was read.
func (s *HybridStore) populate(ctx context.Context, c *model.Curve, gen int64) {
	if s.redis == nil || gen < 0 {
		return
	}
	key := curveKey(c.BusinessDate)
	data, err := json.Marshal(c)
	if err != nil {
		s.logger.Warn("store.redis.encode_failed", zap.String("key", key), zap.Error(err))
		return
	}
	genKey := generationKey(c.BusinessDate)
	err = s.redis.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != gen {
			return errStaleRead
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, data, s.cacheTTL)
			return nil
		})
		return err
	}, genKey)
	switch {
	case err == nil:
	case errors.Is(err, errStaleRead), errors.Is(err, redis.TxFailedErr):
		s.logger.Debug("store.redis.populate_skipped", zap.String("key", key))
	default:
		s.logger.Warn("store.redis.set_failed", zap.String("key", key), zap.Error(err))
	}
}

var errStaleRead = errors.New("curve changed since read")

func (s *HybridStore) invalidate(ctx context.Context, businessDate time.Time) {
	if s.redis == nil {
		return
	}
	_, err := s.redis.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, generationKey(businessDate))
		p.Del(ctx, curveKey(businessDate))
		return nil
	})
	if err != nil {
		s.logger.Warn("store.redis.invalidate_failed", zap.String("key", curveKey(businessDate)), zap.Error(err))
	}
}

func (s *HybridStore) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	if s.redis == nil {
		return errors.New("redis not initialized")
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, key, data, ttl).Err()
}

func (s *HybridStore) GetJSON(ctx context.Context, key string, dest any) error {
	if s.redis == nil {
		return errors.New("redis not initialized")
	}
	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func (s *HybridStore) HealthCheck(ctx context.Context) error {
	if s.pg == nil {
		return errors.New("postgres not initialized")
	}
	if err := s.pg.Ping(ctx); err != nil {
		return fmt.Errorf("postgres ping failed: %w", err)
	}
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping failed: %w", err)
		}
	}
	return nil
}

func (s *HybridStore) Close() error {
	if s.pg != nil {
		s.pg.Close()
	}
	if s.redis != nil {
		return s.redis.Close()
	}
	return nil
}
