package model

import "time"

// Bond is a full row of the daily gilt close-price table.
type Bond struct {
	ISIN            string     `json:"isin"`
	GiltName        string     `json:"gilt_name"`
	BusinessDate    time.Time  `json:"business_date"`
	Type            string     `json:"type"`
	Coupon          *float64   `json:"coupon"`
	Maturity        *time.Time `json:"maturity"`
	CleanPrice      *float64   `json:"clean_price"`
	DirtyPrice      *float64   `json:"dirty_price"`
	Yield           *float64   `json:"yield"`
	ModDuration     *float64   `json:"mod_duration"`
	AccruedInterest *float64   `json:"accrued_interest"`
}

type YieldHistoryPoint struct {
	BusinessDate time.Time `json:"business_date"`
	Yield        *float64  `json:"yield"`
	CleanPrice   *float64  `json:"clean_price"`
	DirtyPrice   *float64  `json:"dirty_price"`
}

// BondSummary aggregates the contents of the bonds table.
type BondSummary struct {
	TotalBonds  int            `json:"total_bonds"`
	UniqueDates int            `json:"unique_dates"`
	MinDate     *time.Time     `json:"min_date"`
	MaxDate     *time.Time     `json:"max_date"`
	BondTypes   map[string]int `json:"bond_types"`
}
