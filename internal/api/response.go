package api

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Checker-Finance/yieldcurve/pkg/model"
)

type PointResponse struct {
	MaturityDays  int     `json:"maturity_days"`
	MaturityYears float64 `json:"maturity_years"`
	YieldRate     float64 `json:"yield_rate"`
}

type CurveResponse struct {
	BusinessDate        string            `json:"business_date"`
	InterpolationMethod string            `json:"interpolation_method"`
	CreatedAt           time.Time         `json:"created_at"`
	Points              []PointResponse   `json:"points"`
	Generated           bool              `json:"generated"`
	Provenance          *model.Provenance `json:"provenance,omitempty"`
}

// LegacyCurveResponse is the flat shape served at /api/v1/yield-curve.
type LegacyCurveResponse struct {
	BusinessDate string    `json:"business_date"`
	Maturities   []float64 `json:"maturities"`
	Yields       []float64 `json:"yields"`
	CreatedAt    time.Time `json:"created_at"`
}

type CurveDatesResponse struct {
	Dates []string `json:"dates"`
}

// BondRow is a bond formatted for display. Missing values read "N/A".
type BondRow struct {
	ISIN            string `json:"isin"`
	GiltName        string `json:"gilt_name"`
	Type            string `json:"type"`
	Coupon          string `json:"coupon"`
	Maturity        string `json:"maturity"`
	CleanPrice      string `json:"clean_price"`
	DirtyPrice      string `json:"dirty_price"`
	Yield           string `json:"yield"`
	ModDuration     string `json:"mod_duration"`
	AccruedInterest string `json:"accrued_interest"`
}

type SummaryResponse struct {
	TotalBonds  int            `json:"total_bonds"`
	UniqueDates int            `json:"unique_dates"`
	DateRange   DateRange      `json:"date_range"`
	BondTypes   map[string]int `json:"bond_types"`
}

type DateRange struct {
	Min *string `json:"min"`
	Max *string `json:"max"`
}

const notAvailable = "N/A"

func toCurveResponse(c *model.Curve) CurveResponse {
	resp := CurveResponse{
		BusinessDate:        c.BusinessDate.Format(model.DateLayout),
		InterpolationMethod: c.InterpolationMethod,
		CreatedAt:           c.CreatedAt,
		Points:              make([]PointResponse, len(c.Points)),
	}
	for i, p := range c.Points {
		resp.Points[i] = PointResponse(p)
	}
	return resp
}

func toCurveResultResponse(r *model.CurveResult) CurveResponse {
	resp := toCurveResponse(r.Curve)
	resp.Generated = r.Generated
	resp.Provenance = r.Provenance
	return resp
}

func toLegacyResponse(c *model.Curve) LegacyCurveResponse {
	return LegacyCurveResponse{
		BusinessDate: c.BusinessDate.Format(model.DateLayout),
		Maturities:   c.Maturities(),
		Yields:       c.Yields(),
		CreatedAt:    c.CreatedAt,
	}
}

func formatDates(ds []time.Time) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.Format(model.DateLayout)
	}
	return out
}

func formatOptionalDate(d *time.Time) *string {
	if d == nil {
		return nil
	}
	s := d.Format(model.DateLayout)
	return &s
}

// fixed renders v with exactly places decimals between prefix and suffix.
func fixed(v *float64, places int32, prefix, suffix string) string {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return notAvailable
	}
	return prefix + decimal.NewFromFloat(*v).StringFixed(places) + suffix
}

func toBondRow(b model.Bond) BondRow {
	maturity := notAvailable
	if b.Maturity != nil {
		maturity = b.Maturity.Format(model.DateLayout)
	}
	return BondRow{
		ISIN:            b.ISIN,
		GiltName:        b.GiltName,
		Type:            b.Type,
		Coupon:          fixed(b.Coupon, 4, "", "%"),
		Maturity:        maturity,
		CleanPrice:      fixed(b.CleanPrice, 1, "£", ""),
		DirtyPrice:      fixed(b.DirtyPrice, 1, "£", ""),
		Yield:           fixed(b.Yield, 1, "", "%"),
		ModDuration:     fixed(b.ModDuration, 3, "", ""),
		AccruedInterest: fixed(b.AccruedInterest, 6, "£", ""),
	}
}

func toSummaryResponse(s *model.BondSummary) SummaryResponse {
	return SummaryResponse{
		TotalBonds:  s.TotalBonds,
		UniqueDates: s.UniqueDates,
		DateRange:   DateRange{Min: formatOptionalDate(s.MinDate), Max: formatOptionalDate(s.MaxDate)},
		BondTypes:   s.BondTypes,
	}
}
