package bonds

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/Checker-Finance/yieldcurve/internal/curve"
	"github.com/Checker-Finance/yieldcurve/internal/store"
	"github.com/Checker-Finance/yieldcurve/pkg/model"
)

// Repository reads and writes the daily gilt close-price table.
type Repository struct {
	pg     store.PGXPool
	logger *zap.Logger
}

func NewRepository(pg store.PGXPool, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{pg: pg, logger: logger}
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS bonds (
	isin             TEXT NOT NULL,
	gilt_name        TEXT,
	business_date    DATE NOT NULL,
	type             TEXT,
	coupon           DOUBLE PRECISION,
	maturity         DATE,
	clean_price      DOUBLE PRECISION,
	dirty_price      DOUBLE PRECISION,
	yield            DOUBLE PRECISION,
	mod_duration     DOUBLE PRECISION,
	accrued_interest DOUBLE PRECISION,
	PRIMARY KEY (isin, business_date)
);
CREATE INDEX IF NOT EXISTS idx_bonds_business_date ON bonds (business_date);
`

func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pg.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure bonds schema: %w", err)
	}
	return nil
}

// ObservationsForDate returns the curve-eligible observations for a date,
// ordered by maturity.
func (r *Repository) ObservationsForDate(ctx context.Context, businessDate time.Time) ([]model.BondObservation, error) {
	rows, err := r.pg.Query(ctx, `
		SELECT isin, business_date, maturity, yield, type
		FROM bonds
		WHERE business_date = $1
		  AND isin LIKE 'GB%'
		  AND type = ANY($2)
		  AND yield IS NOT NULL
		  AND maturity IS NOT NULL
		ORDER BY maturity;
	`, businessDate, curve.EligibleClasses())
	if err != nil {
		return nil, fmt.Errorf("query observations: %w", err)
	}
	defer rows.Close()

	var out []model.BondObservation
	for rows.Next() {
		var (
			o     model.BondObservation
			class string
		)
		if err := rows.Scan(&o.InstrumentID, &o.BusinessDate, &o.MaturityDate, &o.YieldPercent, &class); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		o.InstrumentClass = model.InstrumentClass(class)
		out = append(out, o)
	}
	return out, rows.Err()
}

// HasObservations reports whether any curve-eligible observation exists for the date.
func (r *Repository) HasObservations(ctx context.Context, businessDate time.Time) (bool, error) {
	var n int64
	err := r.pg.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM bonds
		WHERE business_date = $1
		  AND isin LIKE 'GB%'
		  AND type = ANY($2)
		  AND yield IS NOT NULL
		  AND yield <> 'NaN'::float8
		  AND maturity IS NOT NULL;
	`, businessDate, curve.EligibleClasses()).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("count observations: %w", err)
	}
	return n > 0, nil
}

// LatestBusinessDate returns the newest date with observations a curve can be
// built from, or nil when there is none.
func (r *Repository) LatestBusinessDate(ctx context.Context) (*time.Time, error) {
	var d *time.Time
	err := r.pg.QueryRow(ctx, `
		SELECT MAX(business_date)
		FROM bonds
		WHERE isin LIKE 'GB%'
		  AND type = ANY($1)
		  AND yield IS NOT NULL
		  AND yield <> 'NaN'::float8
		  AND maturity IS NOT NULL;
	`, curve.EligibleClasses()).Scan(&d)
	if err != nil {
		return nil, fmt.Errorf("latest business date: %w", err)
	}
	return d, nil
}

// ListBusinessDates returns every date with bond data, newest first.
func (r *Repository) ListBusinessDates(ctx context.Context) ([]time.Time, error) {
	rows, err := r.pg.Query(ctx, `
		SELECT DISTINCT business_date
		FROM bonds
		ORDER BY business_date DESC;
	`)
	if err != nil {
		return nil, fmt.Errorf("list business dates: %w", err)
	}
	defer rows.Close()

	dates := []time.Time{}
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

const bondColumns = `isin, gilt_name, business_date, type, coupon, maturity,
	clean_price, dirty_price, yield, mod_duration, accrued_interest`

func scanBond(row pgx.Row) (model.Bond, error) {
	var (
		b    model.Bond
		name *string
		typ  *string
	)
	err := row.Scan(&b.ISIN, &name, &b.BusinessDate, &typ, &b.Coupon, &b.Maturity,
		&b.CleanPrice, &b.DirtyPrice, &b.Yield, &b.ModDuration, &b.AccruedInterest)
	if name != nil {
		b.GiltName = *name
	}
	if typ != nil {
		b.Type = *typ
	}
	return b, err
}

// BondsByDate returns the gilts for a date ordered by maturity. An empty
// bondType returns every type.
func (r *Repository) BondsByDate(ctx context.Context, businessDate time.Time, bondType string) ([]model.Bond, error) {
	rows, err := r.pg.Query(ctx, `
		SELECT `+bondColumns+`
		FROM bonds
		WHERE business_date = $1
		  AND isin LIKE 'GB%'
		  AND ($2 = '' OR type = $2)
		ORDER BY maturity;
	`, businessDate, bondType)
	if err != nil {
		return nil, fmt.Errorf("query bonds: %w", err)
	}
	defer rows.Close()

	out := []model.Bond{}
	for rows.Next() {
		b, err := scanBond(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bond: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// BondByISIN returns the most recent row for an ISIN, or nil when unknown.
func (r *Repository) BondByISIN(ctx context.Context, isin string) (*model.Bond, error) {
	b, err := scanBond(r.pg.QueryRow(ctx, `
		SELECT `+bondColumns+`
		FROM bonds
		WHERE isin = $1
		ORDER BY business_date DESC
		LIMIT 1;
	`, isin))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("BondByISIN scan failed: %w", err)
	}
	return &b, nil
}

// YieldHistory returns every observation of an ISIN, oldest first.
func (r *Repository) YieldHistory(ctx context.Context, isin string) ([]model.YieldHistoryPoint, error) {
	rows, err := r.pg.Query(ctx, `
		SELECT business_date, yield, clean_price, dirty_price
		FROM bonds
		WHERE isin = $1
		ORDER BY business_date;
	`, isin)
	if err != nil {
		return nil, fmt.Errorf("query yield history: %w", err)
	}
	defer rows.Close()

	out := []model.YieldHistoryPoint{}
	for rows.Next() {
		var p model.YieldHistoryPoint
		if err := rows.Scan(&p.BusinessDate, &p.Yield, &p.CleanPrice, &p.DirtyPrice); err != nil {
			return nil, fmt.Errorf("scan yield history: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpsertBonds writes rows keyed by (isin, business_date) in one transaction.
func (r *Repository) UpsertBonds(ctx context.Context, bonds []model.Bond) (int, error) {
	tx, err := r.pg.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	for _, b := range bonds {
		_, err := tx.Exec(ctx, `
			INSERT INTO bonds (`+bondColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (isin, business_date)
			DO UPDATE SET
				gilt_name = EXCLUDED.gilt_name,
				type = EXCLUDED.type,
				coupon = EXCLUDED.coupon,
				maturity = EXCLUDED.maturity,
				clean_price = EXCLUDED.clean_price,
				dirty_price = EXCLUDED.dirty_price,
				yield = EXCLUDED.yield,
				mod_duration = EXCLUDED.mod_duration,
				accrued_interest = EXCLUDED.accrued_interest;
		`, b.ISIN, b.GiltName, b.BusinessDate, b.Type, b.Coupon, b.Maturity,
			b.CleanPrice, b.DirtyPrice, b.Yield, b.ModDuration, b.AccruedInterest)
		if err != nil {
			_ = tx.Rollback(ctx)
			r.logger.Error("bonds.pg.upsert_failed", zap.String("isin", b.ISIN), zap.Error(err))
			return 0, fmt.Errorf("upsert %s: %w", b.ISIN, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(bonds), nil
}

// SummaryStats aggregates row counts, the date range and counts per type.
func (r *Repository) SummaryStats(ctx context.Context) (*model.BondSummary, error) {
	var (
		s            model.BondSummary
		total, dates int64
	)
	err := r.pg.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT business_date), MIN(business_date), MAX(business_date)
		FROM bonds;
	`).Scan(&total, &dates, &s.MinDate, &s.MaxDate)
	if err != nil {
		return nil, fmt.Errorf("summary counts: %w", err)
	}
	s.TotalBonds = int(total)
	s.UniqueDates = int(dates)

	rows, err := r.pg.Query(ctx, `SELECT COALESCE(type, ''), COUNT(*) FROM bonds GROUP BY type;`)
	if err != nil {
		return nil, fmt.Errorf("summary types: %w", err)
	}
	defer rows.Close()

	s.BondTypes = map[string]int{}
	for rows.Next() {
		var (
			typ string
			n   int64
		)
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, fmt.Errorf("scan type count: %w", err)
		}
		s.BondTypes[typ] = int(n)
	}
	return &s, rows.Err()
}
