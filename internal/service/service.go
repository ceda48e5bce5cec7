package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/Checker-Finance/yieldcurve/internal/curve"
	"github.com/Checker-Finance/yieldcurve/internal/metrics"
	"github.com/Checker-Finance/yieldcurve/internal/publisher"
	"github.com/Checker-Finance/yieldcurve/pkg/model"
)

// CurveStore is the persistence the service reads and writes curves through.
type CurveStore interface {
	WriteCurve(ctx context.Context, businessDate time.Time, method string, points []model.CurvePoint) error
	ReplaceCurve(ctx context.Context, businessDate time.Time, method string, points []model.CurvePoint) error
	GetCurve(ctx context.Context, businessDate time.Time) (*model.Curve, error)
	ListCurveDates(ctx context.Context) ([]time.Time, error)
}

// ObservationSource supplies the curve-eligible bond observations for a date.
type ObservationSource interface {
	ObservationsForDate(ctx context.Context, businessDate time.Time) ([]model.BondObservation, error)
	HasObservations(ctx context.Context, businessDate time.Time) (bool, error)
}

// EventPublisher receives an envelope after every successful generation.
type EventPublisher interface {
	PublishEnvelope(ctx context.Context, env *model.Envelope) error
}

// GenerateOptions controls a get-or-generate call.
type GenerateOptions struct {
	// Method is normalised; empty selects the service default.
	Method string
	// Force regenerates and replaces a stored curve.
	Force bool
}

// Service answers curve requests for a business date, generating and
// persisting the curve the first time it is asked for.
type Service struct {
	store     CurveStore
	source    ObservationSource
	publisher EventPublisher
	logger    *zap.Logger
	group     singleflight.Group
	// defaultMethod applies when a caller names no method.
	defaultMethod curve.Method
}

// New wires a service. pub may be nil.
func New(store CurveStore, source ObservationSource, pub EventPublisher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pub == nil {
		pub = publisher.Noop{}
	}
	return &Service{store: store, source: source, publisher: pub, logger: logger, defaultMethod: curve.DefaultMethod}
}

// SetDefaultMethod changes the method used when a request names none.
func (s *Service) SetDefaultMethod(method string) error {
	m, err := curve.ParseMethod(method)
	if err != nil {
		return err
	}
	s.defaultMethod = m
	return nil
}

func normalizeDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", curve.ErrCurveUnavailable, err)
}

// GetCurve returns the stored curve, or nil when the date has none.
func (s *Service) GetCurve(ctx context.Context, businessDate time.Time) (*model.Curve, error) {
	c, err := s.store.GetCurve(ctx, normalizeDate(businessDate))
	if err != nil {
		return nil, unavailable(err)
	}
	return c, nil
}

func (s *Service) ListCurveDates(ctx context.Context) ([]time.Time, error) {
	dates, err := s.store.ListCurveDates(ctx)
	if err != nil {
		return nil, unavailable(err)
	}
	return dates, nil
}

// CheckHasObservations reports whether usable bond data exists for the date.
func (s *Service) CheckHasObservations(ctx context.Context, businessDate time.Time) (bool, error) {
	ok, err := s.source.HasObservations(ctx, normalizeDate(businessDate))
	if err != nil {
		return false, unavailable(err)
	}
	return ok, nil
}

// GenerateCurve returns the stored curve for the date, generating it first
// when none exists or when opts.Force is set. Concurrent calls for the same
// date share one generation.
func (s *Service) GenerateCurve(ctx context.Context, businessDate time.Time, opts GenerateOptions) (*model.CurveResult, error) {
	method := s.defaultMethod
	if strings.TrimSpace(opts.Method) != "" {
		m, err := curve.ParseMethod(opts.Method)
		if err != nil {
			return nil, err
		}
		method = m
	}
	date := normalizeDate(businessDate)

	key := date.Format(model.DateLayout)
	if opts.Force {
		key += ":force:" + method.String()
	}

	v, err, shared := s.group.Do(key, func() (any, error) {
		return s.getOrGenerate(context.WithoutCancel(ctx), date, method, opts.Force)
	})
	if shared {
		s.logger.Debug("curve.generate.shared", zap.String("business_date", key))
	}
	if err != nil {
		return nil, err
	}
	return v.(*model.CurveResult), nil
}

func (s *Service) getOrGenerate(ctx context.Context, date time.Time, method curve.Method, force bool) (*model.CurveResult, error) {
	day := date.Format(model.DateLayout)

	if !force {
		existing, err := s.store.GetCurve(ctx, date)
		if err != nil {
			return nil, unavailable(err)
		}
		if existing != nil {
			return &model.CurveResult{Curve: existing}, nil
		}
	}

	start := time.Now()
	defer metrics.ObserveDuration(metrics.CurveGenerationDuration, start, method.String())
	s.logger.Info("curve.generate.start",
		zap.String("business_date", day),
		zap.String("method", method.String()),
		zap.Bool("force", force))

	obs, err := s.source.ObservationsForDate(ctx, date)
	if err != nil {
		metrics.IncGeneration(method.String(), "error")
		return nil, unavailable(fmt.Errorf("load observations: %w", err))
	}
	if len(obs) == 0 {
		metrics.IncGeneration(method.String(), "insufficient_data")
		return nil, fmt.Errorf("%w: %s", curve.ErrNoObservations, day)
	}

	gen, err := curve.Generate(date, obs, method)
	if err != nil {
		result := "error"
		if errors.Is(err, curve.ErrInsufficientData) {
			result = "insufficient_data"
		}
		metrics.IncGeneration(method.String(), result)
		s.logger.Warn("curve.generate.rejected",
			zap.String("business_date", day),
			zap.Int("observations", len(obs)),
			zap.Error(err))
		return nil, err
	}
	if gen.EffectiveMethod != gen.RequestedMethod {
		metrics.IncCubicFallback()
		s.logger.Info("curve.generate.method_fallback",
			zap.String("business_date", day),
			zap.String("requested", gen.RequestedMethod.String()),
			zap.String("effective", gen.EffectiveMethod.String()),
			zap.Int("maturities", len(gen.Deduped)))
	}

	write := s.store.WriteCurve
	if force {
		write = s.store.ReplaceCurve
	}
	// the requested method is what gets persisted
	if err := write(ctx, date, gen.RequestedMethod.String(), gen.Points); err != nil {
		metrics.IncGeneration(method.String(), "error")
		return nil, unavailable(err)
	}

	stored, err := s.store.GetCurve(ctx, date)
	if err != nil {
		metrics.IncGeneration(method.String(), "error")
		return nil, unavailable(err)
	}
	if stored == nil {
		metrics.IncGeneration(method.String(), "error")
		return nil, unavailable(fmt.Errorf("%w: curve %s missing after write", curve.ErrPersistence, day))
	}

	metrics.IncGeneration(method.String(), "ok")
	metrics.SetLastGeneration("service", time.Now())
	s.logger.Info("curve.generate.done",
		zap.String("business_date", day),
		zap.String("effective_method", gen.EffectiveMethod.String()),
		zap.Int("points", len(gen.Points)),
		zap.Int("bonds", gen.BondCount))

	s.publish(ctx, gen, force)

	return &model.CurveResult{
		Curve:      stored,
		Generated:  true,
		Provenance: gen.Provenance(),
	}, nil
}

// publish is best effort; a broker failure never fails the generation.
func (s *Service) publish(ctx context.Context, gen *curve.Generation, force bool) {
	env, err := publisher.CurveGenerated(model.CurveGeneratedEvent{
		BusinessDate:    gen.BusinessDate.Format(model.DateLayout),
		RequestedMethod: gen.RequestedMethod.String(),
		EffectiveMethod: gen.EffectiveMethod.String(),
		Points:          len(gen.Points),
		BondCount:       gen.BondCount,
		Forced:          force,
	})
	if err != nil {
		s.logger.Warn("curve.event.build_failed", zap.Error(err))
		return
	}
	if err := s.publisher.PublishEnvelope(ctx, env); err != nil {
		metrics.IncError("service", "publish_failed")
		s.logger.Warn("curve.event.publish_failed",
			zap.String("business_date", gen.BusinessDate.Format(model.DateLayout)),
			zap.Error(err))
	}
}
