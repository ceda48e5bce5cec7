package curve

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Checker-Finance/yieldcurve/pkg/model"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ptr[T any](v T) *T { return &v }

func obs(id string, class model.InstrumentClass, maturity time.Time, yield float64) model.BondObservation {
	return model.BondObservation{
		InstrumentID:    id,
		InstrumentClass: class,
		MaturityDate:    ptr(maturity),
		YieldPercent:    ptr(yield),
	}
}

func TestDaysBetween(t *testing.T) {
	tests := []struct {
		name     string
		from, to time.Time
		expected int
	}{
		{"same day", date(2024, 1, 2), date(2024, 1, 2), 0},
		{"leap february", date(2024, 1, 2), date(2024, 4, 2), 91},
		{"one year across leap day", date(2024, 1, 2), date(2025, 1, 2), 366},
		{"backwards", date(2024, 1, 2), date(2023, 12, 31), -2},
		{"time of day ignored",
			time.Date(2024, 1, 2, 23, 0, 0, 0, time.UTC),
			time.Date(2024, 1, 3, 1, 0, 0, 0, time.UTC), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DaysBetween(tt.from, tt.to))
		})
	}
}

func TestFilterObservations(t *testing.T) {
	bd := date(2024, 1, 2)
	input := []model.BondObservation{
		obs("GB00A", model.ClassConventional, date(2025, 1, 1), 4.1),
		obs("GB00B", model.ClassBills, date(2024, 4, 2), 5.0),
		obs("GB00C", model.ClassIndexLinked, date(2030, 1, 1), 0.5),
		obs("GB00S", model.ClassStrips, date(2030, 1, 1), 4.0),
		obs("XS1234", model.ClassConventional, date(2030, 1, 1), 4.0),
		{InstrumentID: "GB00D", InstrumentClass: model.ClassConventional, MaturityDate: ptr(date(2030, 1, 1))},
		{InstrumentID: "GB00E", InstrumentClass: model.ClassConventional, YieldPercent: ptr(4.0)},
		obs("GB00F", model.ClassConventional, bd, 4.0),
		obs("GB00G", model.ClassConventional, date(2023, 6, 1), 4.0),
	}

	got := FilterObservations(bd, input)
	require.Len(t, got, 2)

	assert.Equal(t, "GB00A", got[0].InstrumentID)
	assert.Equal(t, 365, got[0].DaysToMaturity)
	assert.InDelta(t, 365/365.25, got[0].YearsToMaturity, 1e-12)
	assert.Equal(t, 4.1, got[0].Yield)

	assert.Equal(t, "GB00B", got[1].InstrumentID)
	assert.Equal(t, 91, got[1].DaysToMaturity)
}

func TestFilterObservations_DropsNonFiniteYields(t *testing.T) {
	bd := date(2024, 1, 2)
	input := []model.BondObservation{
		obs("GB00A", model.ClassConventional, date(2025, 1, 1), 4.1),
		obs("GB00N", model.ClassConventional, date(2026, 1, 1), math.NaN()),
		obs("GB00P", model.ClassConventional, date(2027, 1, 1), math.Inf(1)),
		obs("GB00M", model.ClassBills, date(2024, 4, 2), math.Inf(-1)),
		obs("GB00B", model.ClassConventional, date(2028, 1, 1), 4.3),
	}

	got := FilterObservations(bd, input)
	require.Len(t, got, 2)
	assert.Equal(t, "GB00A", got[0].InstrumentID)
	assert.Equal(t, "GB00B", got[1].InstrumentID)

	gen, err := Generate(bd, input, "linear")
	require.NoError(t, err)
	for _, p := range gen.Points {
		assert.False(t, math.IsNaN(p.YieldRate), "tenor %d", p.MaturityDays)
	}
}

func TestFilterObservations_Empty(t *testing.T) {
	assert.Empty(t, FilterObservations(date(2024, 1, 2), nil))
}

func TestIsEligibleClass(t *testing.T) {
	assert.True(t, IsEligibleClass(model.ClassBills))
	assert.True(t, IsEligibleClass(model.ClassConventional))
	assert.False(t, IsEligibleClass(model.ClassIndexLinked))
	assert.False(t, IsEligibleClass(model.ClassStrips))
	assert.False(t, IsEligibleClass("conventional"))
}
