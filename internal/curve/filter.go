package curve

import (
	"math"
	"strings"
	"time"

	"github.com/Checker-Finance/yieldcurve/pkg/model"
)

// DaysPerYear is the average year length used to convert day counts to years.
// Persisted curves depend on this exact value.
const DaysPerYear = 365.25

// gilts only
const instrumentPrefix = "GB"

var eligibleClasses = map[model.InstrumentClass]bool{
	model.ClassBills:        true,
	model.ClassConventional: true,
}

// IsEligibleClass reports whether observations of class c feed the curve.
func IsEligibleClass(c model.InstrumentClass) bool {
	return eligibleClasses[c]
}

// EligibleClasses returns the classes that feed the curve, in a stable order.
func EligibleClasses() []string {
	return []string{string(model.ClassBills), string(model.ClassConventional)}
}

// DaysBetween returns the number of calendar days from one date to another,
// ignoring the time of day.
func DaysBetween(from, to time.Time) int {
	f := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	t := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(t.Sub(f) / (24 * time.Hour))
}

// YearsToMaturity converts a day count to years on the 365.25-day convention.
func YearsToMaturity(days int) float64 {
	return float64(days) / DaysPerYear
}

// FilterObservations keeps the observations usable for businessDate and places
// them on the maturity axis. Unusable records are dropped.
func FilterObservations(businessDate time.Time, obs []model.BondObservation) []model.MaturityPoint {
	points := make([]model.MaturityPoint, 0, len(obs))
	for _, o := range obs {
		if o.YieldPercent == nil || o.MaturityDate == nil {
			continue
		}
		if math.IsNaN(*o.YieldPercent) || math.IsInf(*o.YieldPercent, 0) {
			continue
		}
		if !strings.HasPrefix(o.InstrumentID, instrumentPrefix) || !IsEligibleClass(o.InstrumentClass) {
			continue
		}
		days := DaysBetween(businessDate, *o.MaturityDate)
		if days <= 0 {
			continue
		}
		points = append(points, model.MaturityPoint{
			InstrumentID:    o.InstrumentID,
			DaysToMaturity:  days,
			YearsToMaturity: YearsToMaturity(days),
			Yield:           *o.YieldPercent,
		})
	}
	return points
}
