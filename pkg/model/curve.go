package model

import "time"

// DateLayout is the text form of business dates on every interface.
const DateLayout = "2006-01-02"

// CurvePoint is one sampled tenor of a persisted curve.
type CurvePoint struct {
	MaturityDays  int     `json:"maturity_days"`
	MaturityYears float64 `json:"maturity_years"`
	YieldRate     float64 `json:"yield_rate"`
}

// Curve is the persisted yield curve for a business date.
// Points are sorted ascending by MaturityDays.
type Curve struct {
	BusinessDate        time.Time    `json:"business_date"`
	InterpolationMethod string       `json:"interpolation_method"`
	CreatedAt           time.Time    `json:"created_at"`
	Points              []CurvePoint `json:"points"`
}

// Maturities returns the sampled tenors in years.
func (c *Curve) Maturities() []float64 {
	out := make([]float64, len(c.Points))
	for i, p := range c.Points {
		out[i] = p.MaturityYears
	}
	return out
}

// Yields returns the sampled yields in tenor order.
func (c *Curve) Yields() []float64 {
	out := make([]float64, len(c.Points))
	for i, p := range c.Points {
		out[i] = p.YieldRate
	}
	return out
}

// Provenance describes the inputs of a generation. It is returned to callers
// but never persisted.
type Provenance struct {
	RequestedMethod string    `json:"requested_method"`
	EffectiveMethod string    `json:"effective_method"`
	Maturities      []float64 `json:"maturities"`
	Yields          []float64 `json:"yields"`
	BondCount       int       `json:"bond_count"`
}

// CurveResult is the outcome of a get-or-generate call.
// Provenance is nil when the curve was served from storage.
type CurveResult struct {
	Curve      *Curve      `json:"curve"`
	Generated  bool        `json:"generated"`
	Provenance *Provenance `json:"provenance,omitempty"`
}
