package curve

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Checker-Finance/yieldcurve/pkg/model"
)

func TestGenerate_Linear(t *testing.T) {
	bd := date(2020, 1, 1)
	input := []model.BondObservation{
		obs("GB0001", model.ClassBills, bd.AddDate(0, 0, 183), 4.5),
		obs("GB0002", model.ClassConventional, bd.AddDate(0, 0, 1461), 4.0),
		obs("GB0003", model.ClassConventional, bd.AddDate(0, 0, 1461), 4.2),
		obs("GB0004", model.ClassConventional, bd.AddDate(0, 0, 2922), 4.2),
		obs("GB0005", model.ClassConventional, bd.AddDate(0, 0, 5844), 4.4),
		obs("GB0006", model.ClassIndexLinked, bd.AddDate(0, 0, 3000), 0.1),
	}

	g, err := Generate(bd, input, "")
	require.NoError(t, err)

	assert.Equal(t, MethodLinear, g.RequestedMethod)
	assert.Equal(t, MethodLinear, g.EffectiveMethod)
	assert.Equal(t, 5, g.BondCount)
	require.Len(t, g.Deduped, 4)
	assert.InDelta(t, 4.1, g.Deduped[1].Yield, 1e-12)

	// 0.5y sits just below the shortest maturity of 183 days.
	require.Len(t, g.Points, 7)
	assert.Equal(t, 365, g.Points[0].MaturityDays)
	assert.Equal(t, 5478, g.Points[6].MaturityDays)
	assert.InDelta(t, 4.125, g.Points[3].YieldRate, 1e-12)
	assert.InDelta(t, 4.25, g.Points[5].YieldRate, 1e-12)

	prov := g.Provenance()
	assert.Equal(t, "linear", prov.RequestedMethod)
	assert.Len(t, prov.Maturities, 4)
	assert.Len(t, prov.Yields, 4)
	assert.Equal(t, 4.0, prov.Maturities[1])
}

func TestGenerate_CubicRequestedWithFewPoints(t *testing.T) {
	bd := date(2020, 1, 1)
	input := []model.BondObservation{
		obs("GB0001", model.ClassConventional, bd.AddDate(0, 0, 1461), 4.0),
		obs("GB0002", model.ClassConventional, bd.AddDate(0, 0, 2922), 4.2),
	}

	g, err := Generate(bd, input, "CUBIC")
	require.NoError(t, err)
	assert.Equal(t, MethodCubic, g.RequestedMethod)
	assert.Equal(t, MethodLinear, g.EffectiveMethod)
	require.Len(t, g.Points, 2)
	assert.Equal(t, 5.0, g.Points[0].MaturityYears)
	assert.Equal(t, 7.0, g.Points[1].MaturityYears)
}

func TestGenerate_CubicBelowFourPointsMatchesLinear(t *testing.T) {
	bd := date(2020, 1, 1)
	input := []model.BondObservation{
		obs("GB0001", model.ClassConventional, bd.AddDate(0, 0, 366), 4.0),
		obs("GB0002", model.ClassConventional, bd.AddDate(0, 0, 1096), 4.3),
		obs("GB0003", model.ClassConventional, bd.AddDate(0, 0, 3653), 3.9),
	}

	cubic, err := Generate(bd, input, MethodCubic)
	require.NoError(t, err)
	linear, err := Generate(bd, input, MethodLinear)
	require.NoError(t, err)

	assert.Equal(t, MethodLinear, cubic.EffectiveMethod)
	require.NotEmpty(t, cubic.Points)
	assert.Equal(t, linear.Points, cubic.Points)
}

func TestGenerate_Deterministic(t *testing.T) {
	bd := date(2024, 1, 2)
	input := []model.BondObservation{
		obs("GB0001", model.ClassBills, bd.AddDate(0, 3, 0), 5.2),
		obs("GB0002", model.ClassConventional, bd.AddDate(1, 1, 0), 4.6),
		obs("GB0003", model.ClassConventional, bd.AddDate(3, 2, 0), 4.1),
		obs("GB0004", model.ClassConventional, bd.AddDate(3, 2, 0), 4.15),
		obs("GB0005", model.ClassConventional, bd.AddDate(9, 11, 0), 4.0),
		obs("GB0006", model.ClassConventional, bd.AddDate(28, 0, 0), 4.5),
	}

	for _, m := range []Method{MethodLinear, MethodCubic} {
		t.Run(string(m), func(t *testing.T) {
			first, err := Generate(bd, input, m)
			require.NoError(t, err)
			second, err := Generate(bd, input, m)
			require.NoError(t, err)

			require.Len(t, second.Points, len(first.Points))
			for i := range first.Points {
				assert.Equal(t, first.Points[i].MaturityDays, second.Points[i].MaturityDays)
				assert.Equal(t,
					math.Float64bits(first.Points[i].YieldRate),
					math.Float64bits(second.Points[i].YieldRate),
					"tenor %d", first.Points[i].MaturityDays)
			}
		})
	}
}

func TestGenerate_InsufficientData(t *testing.T) {
	bd := date(2020, 1, 1)

	_, err := Generate(bd, nil, MethodLinear)
	assert.ErrorIs(t, err, ErrInsufficientData)

	// two bonds, one maturity
	_, err = Generate(bd, []model.BondObservation{
		obs("GB0001", model.ClassConventional, bd.AddDate(0, 0, 1461), 4.0),
		obs("GB0002", model.ClassConventional, bd.AddDate(0, 0, 1461), 4.2),
	}, MethodLinear)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestGenerate_NoTenorsInRange(t *testing.T) {
	bd := date(2024, 1, 2)
	_, err := Generate(bd, []model.BondObservation{
		obs("GB0001", model.ClassBills, bd.AddDate(0, 0, 220), 5.0),
		obs("GB0002", model.ClassBills, bd.AddDate(0, 0, 330), 4.9),
	}, MethodLinear)

	assert.ErrorIs(t, err, ErrNoTenorsInRange)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestGenerate_UnsupportedMethod(t *testing.T) {
	_, err := Generate(date(2020, 1, 1), nil, "spline")
	assert.ErrorIs(t, err, ErrUnsupportedMethod)
}
