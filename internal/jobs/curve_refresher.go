package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/yieldcurve/internal/curve"
	"github.com/Checker-Finance/yieldcurve/internal/metrics"
	"github.com/Checker-Finance/yieldcurve/internal/service"
	"github.com/Checker-Finance/yieldcurve/pkg/model"
)

// DateSource reports the newest business date with bond data.
type DateSource interface {
	LatestBusinessDate(ctx context.Context) (*time.Time, error)
}

// CurveGenerator is the subset of the curve service used by the refresher.
type CurveGenerator interface {
	GenerateCurve(ctx context.Context, businessDate time.Time, opts service.GenerateOptions) (*model.CurveResult, error)
}

// Pruner drops idle rate limiter state.
type Pruner interface {
	Prune(idle time.Duration) int
}

// CurveRefresher periodically makes sure a curve exists for the latest
// business date that has bond data. Existing curves are left alone.
type CurveRefresher struct {
	logger    *zap.Logger
	dates     DateSource
	curves    CurveGenerator
	pruner    Pruner
	method    string
	interval  time.Duration
	pruneIdle time.Duration
	stopCh    chan struct{}
	stopOnce  sync.Once
}

// NewCurveRefresher constructs the background job. pruner may be nil.
func NewCurveRefresher(logger *zap.Logger, dates DateSource, curves CurveGenerator, pruner Pruner, method string, interval time.Duration) *CurveRefresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CurveRefresher{
		logger:    logger,
		dates:     dates,
		curves:    curves,
		pruner:    pruner,
		method:    method,
		interval:  interval,
		pruneIdle: 10 * interval,
		stopCh:    make(chan struct{}),
	}
}

// Start runs the refresh loop until Stop is called or ctx is done.
// The first cycle runs immediately.
func (r *CurveRefresher) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("curve_refresher.started", zap.Duration("interval", r.interval))
	r.runOnce(ctx)

	for {
		select {
		case <-ticker.C:
			r.runOnce(ctx)
		case <-r.stopCh:
			r.logger.Info("curve_refresher.stopped", zap.String("reason", "manual stop"))
			return
		case <-ctx.Done():
			r.logger.Info("curve_refresher.stopped", zap.String("reason", "context canceled"))
			return
		}
	}
}

// Stop halts the refresher. It is safe to call more than once.
func (r *CurveRefresher) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}

// runOnce executes one refresh cycle and reports whether a curve was generated.
func (r *CurveRefresher) runOnce(ctx context.Context) bool {
	if r.pruner != nil {
		if n := r.pruner.Prune(r.pruneIdle); n > 0 {
			r.logger.Debug("curve_refresher.limiters_pruned", zap.Int("count", n))
		}
	}

	latest, err := r.dates.LatestBusinessDate(ctx)
	if err != nil {
		metrics.IncError("jobs", "latest_date")
		r.logger.Error("curve_refresher.latest_date_failed", zap.Error(err))
		return false
	}
	if latest == nil {
		r.logger.Debug("curve_refresher.no_bond_data")
		return false
	}

	date := latest.Format(model.DateLayout)
	res, err := r.curves.GenerateCurve(ctx, *latest, service.GenerateOptions{Method: r.method})
	switch {
	case errors.Is(err, curve.ErrInsufficientData):
		r.logger.Warn("curve_refresher.insufficient_data", zap.String("business_date", date), zap.Error(err))
		return false
	case err != nil:
		metrics.IncError("jobs", "generate")
		r.logger.Error("curve_refresher.generate_failed", zap.String("business_date", date), zap.Error(err))
		return false
	}

	if res.Generated {
		r.logger.Info("curve_refresher.generated",
			zap.String("business_date", date),
			zap.Int("points", len(res.Curve.Points)))
	}
	return res.Generated
}
