package curve

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientData means fewer than two distinct maturities were usable.
	ErrInsufficientData = errors.New("insufficient bond data")

	// ErrUnsupportedMethod means the interpolation method is not linear or cubic.
	ErrUnsupportedMethod = errors.New("unsupported interpolation method")

	// ErrNoTenorsInRange means no standard tenor falls inside the observed maturities.
	ErrNoTenorsInRange = fmt.Errorf("%w: no standard tenor within observed maturity range", ErrInsufficientData)

	// ErrNoObservations means no eligible bond data exists for the business date.
	ErrNoObservations = fmt.Errorf("%w: no bond data for date", ErrInsufficientData)

	// ErrPersistence is returned by the curve store when a write or read fails.
	ErrPersistence = errors.New("curve persistence failed")

	// ErrCurveUnavailable is returned by the service when storage cannot serve a curve.
	ErrCurveUnavailable = errors.New("curve unavailable")
)
