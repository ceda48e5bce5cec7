package curve

import "github.com/Checker-Finance/yieldcurve/pkg/model"

// StandardTenors are the maturities, in years, a curve is published at.
var StandardTenors = []float64{0.25, 0.5, 1, 2, 3, 5, 7, 10, 15, 20, 25, 30}

// TenorDays converts a tenor in years to the stored whole-day maturity.
// The fraction is truncated, so 5y is 1826 days.
func TenorDays(years float64) int {
	return int(years * DaysPerYear)
}

// SampleTenors evaluates ip at each tenor inside its domain, bounds included.
// Tenors outside the observed range are skipped, never extrapolated.
func SampleTenors(ip Interpolant, tenors []float64) []model.CurvePoint {
	lo, hi := ip.Domain()
	out := make([]model.CurvePoint, 0, len(tenors))
	for _, t := range tenors {
		if t < lo || t > hi {
			continue
		}
		out = append(out, model.CurvePoint{
			MaturityDays:  TenorDays(t),
			MaturityYears: t,
			YieldRate:     ip.At(t),
		})
	}
	return out
}
