package model

import "time"

// InstrumentClass is the gilt type as published in the close-price files.
type InstrumentClass string

const (
	ClassBills        InstrumentClass = "Bills"
	ClassConventional InstrumentClass = "Conventional"
	ClassIndexLinked  InstrumentClass = "Index-linked"
	ClassStrips       InstrumentClass = "Strips"
)

// BondObservation is a single instrument's yield observation for a business date.
// Yield and maturity are nullable in the source.
type BondObservation struct {
	InstrumentID    string          `json:"instrument_id"`
	BusinessDate    time.Time       `json:"business_date"`
	MaturityDate    *time.Time      `json:"maturity_date,omitempty"`
	YieldPercent    *float64        `json:"yield_percent,omitempty"`
	InstrumentClass InstrumentClass `json:"instrument_class"`
}

// MaturityPoint is a usable observation positioned on the maturity axis.
type MaturityPoint struct {
	InstrumentID    string  `json:"instrument_id"`
	DaysToMaturity  int     `json:"days_to_maturity"`
	YearsToMaturity float64 `json:"years_to_maturity"`
	Yield           float64 `json:"yield"`
}

// DedupedPoint is one distinct maturity with the mean yield of its observations.
type DedupedPoint struct {
	Years float64 `json:"years"`
	Yield float64 `json:"yield"`
	Count int     `json:"count"`
}
