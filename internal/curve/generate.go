package curve

import (
	"fmt"
	"time"

	"github.com/Checker-Finance/yieldcurve/pkg/model"
)

// Generation is the outcome of building one curve from raw observations.
type Generation struct {
	BusinessDate    time.Time
	RequestedMethod Method
	EffectiveMethod Method
	Deduped         []model.DedupedPoint
	Points          []model.CurvePoint
	BondCount       int
}

// Provenance returns the input points and the methods behind the curve.
func (g *Generation) Provenance() *model.Provenance {
	p := &model.Provenance{
		RequestedMethod: g.RequestedMethod.String(),
		EffectiveMethod: g.EffectiveMethod.String(),
		Maturities:      make([]float64, len(g.Deduped)),
		Yields:          make([]float64, len(g.Deduped)),
		BondCount:       g.BondCount,
	}
	for i, d := range g.Deduped {
		p.Maturities[i] = d.Years
		p.Yields[i] = d.Yield
	}
	return p
}

// Generate runs filter, dedup, fit and sampling for one business date.
// Nothing is persisted here.
func Generate(businessDate time.Time, obs []model.BondObservation, method Method) (*Generation, error) {
	method, err := ParseMethod(string(method))
	if err != nil {
		return nil, err
	}

	points := FilterObservations(businessDate, obs)
	deduped := Deduplicate(points)
	if len(deduped) < 2 {
		return nil, fmt.Errorf("%w: %d usable bonds, %d distinct maturities for %s",
			ErrInsufficientData, len(points), len(deduped), businessDate.Format(model.DateLayout))
	}

	ip, effective, err := BuildInterpolant(deduped, method)
	if err != nil {
		return nil, err
	}

	sampled := SampleTenors(ip, StandardTenors)
	if len(sampled) == 0 {
		lo, hi := ip.Domain()
		return nil, fmt.Errorf("%w: observed %.4f to %.4f years", ErrNoTenorsInRange, lo, hi)
	}

	return &Generation{
		BusinessDate:    businessDate,
		RequestedMethod: method,
		EffectiveMethod: effective,
		Deduped:         deduped,
		Points:          sampled,
		BondCount:       len(points),
	}, nil
}
