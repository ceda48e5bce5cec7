package curve

import (
	"fmt"

	"gonum.org/v1/gonum/interp"

	"github.com/Checker-Finance/yieldcurve/pkg/model"
)

// minCubicPoints is the smallest input a cubic spline is fitted to.
// Smaller inputs fall back to linear.
const minCubicPoints = 4

// Interpolant maps a maturity in years to a yield in percent.
// Inside Domain it passes through every input point. Outside Domain the
// end segments are extended.
type Interpolant interface {
	At(years float64) float64
	Domain() (lo, hi float64)
}

// BuildInterpolant fits method to points, which must be sorted by maturity
// with distinct maturities. It returns the method actually fitted, which is
// linear when cubic was asked for with too few points.
func BuildInterpolant(points []model.DedupedPoint, method Method) (Interpolant, Method, error) {
	if len(points) < 2 {
		return nil, "", fmt.Errorf("%w: %d distinct maturities", ErrInsufficientData, len(points))
	}
	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i] = p.Years
		ys[i] = p.Yield
	}

	switch method {
	case MethodLinear:
		ip, err := newLinear(xs, ys)
		return ip, MethodLinear, err
	case MethodCubic:
		if len(points) < minCubicPoints {
			ip, err := newLinear(xs, ys)
			return ip, MethodLinear, err
		}
		ip, err := newCubic(xs, ys)
		return ip, MethodCubic, err
	}
	return nil, "", fmt.Errorf("%w: %q", ErrUnsupportedMethod, method)
}

type linear struct {
	xs, ys []float64
	pl     interp.PiecewiseLinear
}

func newLinear(xs, ys []float64) (*linear, error) {
	l := &linear{xs: xs, ys: ys}
	if err := l.pl.Fit(xs, ys); err != nil {
		return nil, fmt.Errorf("fit linear: %w", err)
	}
	return l, nil
}

func (l *linear) Domain() (float64, float64) { return l.xs[0], l.xs[len(l.xs)-1] }

func (l *linear) At(x float64) float64 {
	n := len(l.xs)
	switch {
	case x < l.xs[0]:
		return extendLine(l.xs[0], l.ys[0], l.xs[1], l.ys[1], x)
	case x > l.xs[n-1]:
		return extendLine(l.xs[n-2], l.ys[n-2], l.xs[n-1], l.ys[n-1], x)
	}
	return l.pl.Predict(x)
}

func extendLine(x0, y0, x1, y1, x float64) float64 {
	return y0 + (y1-y0)/(x1-x0)*(x-x0)
}

type cubic struct {
	xs     []float64
	spline interp.NotAKnotCubic
	left   hermite
	right  hermite
}

func newCubic(xs, ys []float64) (*cubic, error) {
	c := &cubic{xs: xs}
	if err := c.spline.Fit(xs, ys); err != nil {
		return nil, fmt.Errorf("fit cubic: %w", err)
	}
	n := len(xs)
	c.left = c.segment(xs[0], xs[1])
	c.right = c.segment(xs[n-2], xs[n-1])
	return c, nil
}

func (c *cubic) segment(a, b float64) hermite {
	return hermite{
		a: a, b: b,
		ya: c.spline.Predict(a), yb: c.spline.Predict(b),
		da: c.spline.PredictDerivative(a), db: c.spline.PredictDerivative(b),
	}
}

func (c *cubic) Domain() (float64, float64) { return c.xs[0], c.xs[len(c.xs)-1] }

func (c *cubic) At(x float64) float64 {
	switch {
	case x < c.xs[0]:
		return c.left.at(x)
	case x > c.xs[len(c.xs)-1]:
		return c.right.at(x)
	}
	return c.spline.Predict(x)
}

// hermite is the cubic through (a, ya) and (b, yb) with slopes da and db.
// It is evaluated outside [a, b] to continue an end segment of the spline.
type hermite struct {
	a, b, ya, yb, da, db float64
}

func (h hermite) at(x float64) float64 {
	w := h.b - h.a
	t := (x - h.a) / w
	t2 := t * t
	t3 := t2 * t
	return (2*t3-3*t2+1)*h.ya +
		(t3-2*t2+t)*w*h.da +
		(-2*t3+3*t2)*h.yb +
		(t3-t2)*w*h.db
}
