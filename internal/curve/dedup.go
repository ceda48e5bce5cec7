package curve

import (
	"sort"

	"github.com/Checker-Finance/yieldcurve/pkg/model"
)

// Deduplicate collapses points that share a maturity into one point carrying
// the mean yield, sorted by maturity.
//
// Maturities are grouped by exact float equality. Two instruments a day apart
// stay separate points.
func Deduplicate(points []model.MaturityPoint) []model.DedupedPoint {
	type acc struct {
		sum   float64
		count int
	}
	groups := make(map[float64]*acc, len(points))
	for _, p := range points {
		a, ok := groups[p.YearsToMaturity]
		if !ok {
			a = &acc{}
			groups[p.YearsToMaturity] = a
		}
		a.sum += p.Yield
		a.count++
	}

	out := make([]model.DedupedPoint, 0, len(groups))
	for years, a := range groups {
		out = append(out, model.DedupedPoint{
			Years: years,
			Yield: a.sum / float64(a.count),
			Count: a.count,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Years < out[j].Years })
	return out
}
