package api

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Checker-Finance/yieldcurve/pkg/model"
)

// GenerateRequest carries the query parameters of a generate call.
type GenerateRequest struct {
	Method string `query:"method"`
	Force  string `query:"force"`
}

// BondsQuery carries the query parameters of the bond listing.
type BondsQuery struct {
	Date string `query:"date"`
	Type string `query:"type"`
}

var bondTypes = map[string]bool{
	string(model.ClassBills):        true,
	string(model.ClassConventional): true,
	string(model.ClassIndexLinked):  true,
	string(model.ClassStrips):       true,
}

func parseBusinessDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("date parameter required")
	}
	t, err := time.Parse(model.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}

func (r GenerateRequest) force() (bool, error) {
	if strings.TrimSpace(r.Force) == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(r.Force)
	if err != nil {
		return false, fmt.Errorf("force must be true or false")
	}
	return b, nil
}

func (q BondsQuery) Validate() error {
	if strings.TrimSpace(q.Date) == "" {
		return fmt.Errorf("date parameter required")
	}
	if !bondTypes[q.Type] {
		return fmt.Errorf("invalid bond type")
	}
	return nil
}
