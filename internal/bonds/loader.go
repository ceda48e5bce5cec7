package bonds

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/yieldcurve/pkg/model"
)

// ErrFileNotFound means no close-price file exists for the requested date.
var ErrFileNotFound = errors.New("bond file not found")

// ErrInvalidDate means a date argument matched none of the accepted layouts.
var ErrInvalidDate = errors.New("invalid date format, use YYYY-MM-DD, MM/DD/YYYY or YYYYMMDD")

const (
	filePrefix = "Tradeweb_FTSE_ClosePrices_"
	csvLayout  = "1/2/2006"
)

// Column headers of the Tradeweb FTSE close-price export.
const (
	colISIN            = "ISIN"
	colGiltName        = "Gilt Name"
	colBusinessDate    = "Close of Business Date"
	colType            = "Type"
	colCoupon          = "Coupon"
	colMaturity        = "Maturity"
	colCleanPrice      = "Clean Price"
	colDirtyPrice      = "Dirty Price"
	colYield           = "Yield"
	colModDuration     = "Mod Duration"
	colAccruedInterest = "Accrued Interest"
)

// ParseDateInput accepts YYYY-MM-DD, MM/DD/YYYY or YYYYMMDD.
func ParseDateInput(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{model.DateLayout, "20060102", csvLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// FindFile returns the close-price export for date inside dir.
func FindFile(dir string, date time.Time) (string, error) {
	pattern := filepath.Join(dir, filePrefix+date.Format("20060102")+"_*.csv")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("%w: looking for %s", ErrFileNotFound, pattern)
	}
	sort.Strings(matches)
	return matches[0], nil
}

// ParseCSV reads a close-price export. Rows without an ISIN or a parseable
// business date are skipped; unparseable numbers and "N/A" become nil.
func ParseCSV(r io.Reader) ([]model.Bond, int, error) {
	br := bufio.NewReader(r)
	if bom, err := br.Peek(3); err == nil && string(bom) == "\xef\xbb\xbf" {
		_, _ = br.Discard(3)
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("read header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	for _, required := range []string{colISIN, colBusinessDate} {
		if _, ok := idx[required]; !ok {
			return nil, 0, fmt.Errorf("missing column %q", required)
		}
	}

	field := func(rec []string, col string) string {
		i, ok := idx[col]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var (
		out     []model.Bond
		skipped int
	)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, skipped, fmt.Errorf("read record: %w", err)
		}
		isin := field(rec, colISIN)
		bd := parseCSVDate(field(rec, colBusinessDate))
		if isin == "" || bd == nil {
			skipped++
			continue
		}
		out = append(out, model.Bond{
			ISIN:            isin,
			GiltName:        field(rec, colGiltName),
			BusinessDate:    *bd,
			Type:            field(rec, colType),
			Coupon:          parseNumber(field(rec, colCoupon)),
			Maturity:        parseCSVDate(field(rec, colMaturity)),
			CleanPrice:      parseNumber(field(rec, colCleanPrice)),
			DirtyPrice:      parseNumber(field(rec, colDirtyPrice)),
			Yield:           parseNumber(field(rec, colYield)),
			ModDuration:     parseNumber(field(rec, colModDuration)),
			AccruedInterest: parseNumber(field(rec, colAccruedInterest)),
		})
	}
	return out, skipped, nil
}

func parseCSVDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(csvLayout, s)
	if err != nil {
		return nil
	}
	return &t
}

func parseNumber(s string) *float64 {
	if s == "" || s == "N/A" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// BondWriter persists parsed rows.
type BondWriter interface {
	UpsertBonds(ctx context.Context, bonds []model.Bond) (int, error)
}

// Loader finds the export for a date in a downloads directory and stores it.
type Loader struct {
	writer BondWriter
	dir    string
	logger *zap.Logger
}

func NewLoader(writer BondWriter, dir string, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{writer: writer, dir: dir, logger: logger}
}

// LoadResult summarises one file load.
type LoadResult struct {
	File    string
	Loaded  int
	Skipped int
}

// LoadDate loads the export for date and returns what was written.
func (l *Loader) LoadDate(ctx context.Context, date time.Time) (*LoadResult, error) {
	path, err := FindFile(l.dir, date)
	if err != nil {
		return nil, err
	}
	return l.LoadFile(ctx, path)
}

// LoadFile parses and stores a single export.
func (l *Loader) LoadFile(ctx context.Context, path string) (*LoadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	rows, skipped, err := ParseCSV(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	n, err := l.writer.UpsertBonds(ctx, rows)
	if err != nil {
		return nil, err
	}
	l.logger.Info("bonds.loader.file_loaded",
		zap.String("file", path),
		zap.Int("rows", n),
		zap.Int("skipped", skipped))
	return &LoadResult{File: path, Loaded: n, Skipped: skipped}, nil
}
