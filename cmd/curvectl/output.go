package main

import (
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/Checker-Finance/yieldcurve/internal/bonds"
	"github.com/Checker-Finance/yieldcurve/pkg/model"
)

func printNoBondData(w io.Writer, date string) {
	fmt.Fprintf(w, "No bond data found in database for date %s\n", date)
	fmt.Fprintln(w, "Please ensure bond data is loaded for this date before generating yield curve.")
}

func printCurveResult(w io.Writer, res *model.CurveResult) {
	day := res.Curve.BusinessDate.Format(model.DateLayout)
	if res.Generated {
		fmt.Fprintf(w, "Yield curve saved successfully for %s\n", day)
	} else {
		fmt.Fprintf(w, "Yield curve already stored for %s (use --force to regenerate)\n", day)
	}
	if p := res.Provenance; p != nil {
		fmt.Fprintf(w, "Raw data points: %d bonds\n", p.BondCount)
		if p.EffectiveMethod != p.RequestedMethod {
			fmt.Fprintf(w, "Method: %s (fell back to %s)\n", p.RequestedMethod, p.EffectiveMethod)
		}
	}
	printCurve(w, res.Curve)
}

func printCurve(w io.Writer, c *model.Curve) {
	mats := c.Maturities()
	fmt.Fprintf(w, "Interpolated points: %d\n", len(mats))
	if len(mats) > 0 {
		fmt.Fprintf(w, "Maturity range: %.2f - %.2f years\n", slices.Min(mats), slices.Max(mats))
	}
	fmt.Fprintf(w, "Interpolation method: %s\n", c.InterpolationMethod)
	fmt.Fprintln(w, "\nYield Curve Points:")
	for _, p := range c.Points {
		fmt.Fprintf(w, "  %5.2fY: %6.3f%%\n", p.MaturityYears, p.YieldRate)
	}
}

func printDates(w io.Writer, dates []time.Time) {
	if len(dates) == 0 {
		fmt.Fprintln(w, "No yield curves stored")
		return
	}
	for _, d := range dates {
		fmt.Fprintln(w, d.Format(model.DateLayout))
	}
}

func printLoadResult(w io.Writer, res *bonds.LoadResult) {
	fmt.Fprintf(w, "Data loaded from %s\n", res.File)
	fmt.Fprintf(w, "Rows loaded: %d (skipped %d)\n", res.Loaded, res.Skipped)
}

func printSummary(w io.Writer, s *model.BondSummary) {
	fmt.Fprintln(w, "\nDatabase Summary:")
	fmt.Fprintf(w, "Total bonds: %d\n", s.TotalBonds)
	fmt.Fprintf(w, "Date range: %s to %s\n", optionalDate(s.MinDate), optionalDate(s.MaxDate))

	types := make([]string, 0, len(s.BondTypes))
	for t := range s.BondTypes {
		types = append(types, t)
	}
	slices.Sort(types)
	fmt.Fprint(w, "Bond types:")
	for _, t := range types {
		fmt.Fprintf(w, " %s=%d", t, s.BondTypes[t])
	}
	fmt.Fprintln(w)
}

func optionalDate(d *time.Time) string {
	if d == nil {
		return "N/A"
	}
	return d.Format(model.DateLayout)
}
