package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Checker-Finance/yieldcurve/internal/curve"
	"github.com/Checker-Finance/yieldcurve/pkg/model"
)

var curveColumns = []string{"maturity_days", "maturity_years", "yield_rate", "interpolation_method", "created_at"}

func newTestStore(t *testing.T) (*HybridStore, pgxmock.PgxPoolIface, *miniredis.Miniredis) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(mock, rdb, time.Minute, nil), mock, mr
}

func businessDate() time.Time {
	return time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
}

func samplePoints() []model.CurvePoint {
	return []model.CurvePoint{
		{MaturityDays: 365, MaturityYears: 1, YieldRate: 4.2},
		{MaturityDays: 730, MaturityYears: 2, YieldRate: 4.0},
	}
}

func TestWriteCurve_SingleTransaction(t *testing.T) {
	ctx := context.Background()
	s, mock, _ := newTestStore(t)
	bd := businessDate()

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").
		WithArgs("yield_curves:2024-01-02").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec("INSERT INTO yield_curves").
		WithArgs(bd, 365, 1.0, 4.2, "linear").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO yield_curves").
		WithArgs(bd, 730, 2.0, 4.0, "linear").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, s.WriteCurve(ctx, bd, "linear", samplePoints()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWriteCurve_FailureRollsBack(t *testing.T) {
	ctx := context.Background()
	s, mock, _ := newTestStore(t)
	bd := businessDate()

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec("INSERT INTO yield_curves").
		WithArgs(bd, 365, 1.0, 4.2, "linear").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO yield_curves").
		WithArgs(bd, 730, 2.0, 4.0, "linear").
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := s.WriteCurve(ctx, bd, "linear", samplePoints())
	require.Error(t, err)
	assert.ErrorIs(t, err, curve.ErrPersistence)
	assert.Contains(t, err.Error(), "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWriteCurve_BeginFails(t *testing.T) {
	s, mock, _ := newTestStore(t)

	mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

	err := s.WriteCurve(context.Background(), businessDate(), "linear", samplePoints())
	assert.ErrorIs(t, err, curve.ErrPersistence)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceCurve_DeletesFirst(t *testing.T) {
	ctx := context.Background()
	s, mock, _ := newTestStore(t)
	bd := businessDate()

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec("DELETE FROM yield_curves").
		WithArgs(bd).
		WillReturnResult(pgxmock.NewResult("DELETE", 5))
	mock.ExpectExec("INSERT INTO yield_curves").
		WithArgs(bd, 365, 1.0, 4.2, "cubic").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO yield_curves").
		WithArgs(bd, 730, 2.0, 4.0, "cubic").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, s.ReplaceCurve(ctx, bd, "cubic", samplePoints()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCurve_FromPostgresThenCache(t *testing.T) {
	ctx := context.Background()
	s, mock, mr := newTestStore(t)
	bd := businessDate()
	created := time.Date(2024, 1, 2, 18, 30, 0, 0, time.UTC)

	mock.ExpectQuery("FROM yield_curves").
		WithArgs(bd).
		WillReturnRows(mock.NewRows(curveColumns).
			AddRow(365, 1.0, 4.2, "linear", created).
			AddRow(730, 2.0, 4.0, "linear", created))

	c, err := s.GetCurve(ctx, bd)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "linear", c.InterpolationMethod)
	assert.Equal(t, created, c.CreatedAt)
	assert.Equal(t, samplePoints(), c.Points)
	assert.True(t, mr.Exists("yieldcurve:curve:2024-01-02"))

	// second read is served by redis; no further query is expected
	again, err := s.GetCurve(ctx, bd)
	require.NoError(t, err)
	assert.Equal(t, c.Points, again.Points)
	assert.True(t, created.Equal(again.CreatedAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCurve_NotFound(t *testing.T) {
	s, mock, mr := newTestStore(t)

	mock.ExpectQuery("FROM yield_curves").
		WillReturnRows(mock.NewRows(curveColumns))

	c, err := s.GetCurve(context.Background(), businessDate())
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.False(t, mr.Exists("yieldcurve:curve:2024-01-02"))
}

func TestGetCurve_QueryError(t *testing.T) {
	s, mock, _ := newTestStore(t)

	mock.ExpectQuery("FROM yield_curves").WillReturnError(errors.New("timeout"))

	_, err := s.GetCurve(context.Background(), businessDate())
	assert.ErrorIs(t, err, curve.ErrPersistence)
}

func TestWriteCurve_InvalidatesCache(t *testing.T) {
	ctx := context.Background()
	s, mock, mr := newTestStore(t)
	bd := businessDate()

	require.NoError(t, s.SetJSON(ctx, "yieldcurve:curve:2024-01-02", model.Curve{BusinessDate: bd}, time.Minute))

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec("INSERT INTO yield_curves").
		WithArgs(bd, 365, 1.0, 4.2, "linear").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, s.WriteCurve(ctx, bd, "linear", samplePoints()[:1]))
	assert.False(t, mr.Exists("yieldcurve:curve:2024-01-02"))
}

func TestGetCurve_ReadOverlappingReplaceIsNotCached(t *testing.T) {
	ctx := context.Background()
	s, mock, mr := newTestStore(t)
	bd := businessDate()

	// reader samples the generation and reads the old rows
	gen := s.generation(ctx, bd)
	old := &model.Curve{BusinessDate: bd, InterpolationMethod: "linear", Points: samplePoints()}

	// a forced replace commits before the reader fills the cache
	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec("DELETE FROM yield_curves").WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec("INSERT INTO yield_curves").
		WithArgs(bd, 365, 1.0, 3.9, "cubic").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	require.NoError(t, s.ReplaceCurve(ctx, bd, "cubic", []model.CurvePoint{{MaturityDays: 365, MaturityYears: 1, YieldRate: 3.9}}))

	s.populate(ctx, old, gen)
	assert.False(t, mr.Exists("yieldcurve:curve:2024-01-02"))

	// a read started after the write may fill it
	s.populate(ctx, old, s.generation(ctx, bd))
	assert.True(t, mr.Exists("yieldcurve:curve:2024-01-02"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCurve_WithoutRedis(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	s := New(mock, nil, 0, nil)

	mock.ExpectQuery("FROM yield_curves").
		WillReturnRows(mock.NewRows(curveColumns).AddRow(365, 1.0, 4.2, "cubic", time.Now().UTC()))

	c, err := s.GetCurve(context.Background(), businessDate())
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "cubic", c.InterpolationMethod)
}

func TestListCurveDates(t *testing.T) {
	s, mock, _ := newTestStore(t)
	d1 := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT DISTINCT business_date").
		WillReturnRows(mock.NewRows([]string{"business_date"}).AddRow(d1).AddRow(d2))

	dates, err := s.ListCurveDates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []time.Time{d1, d2}, dates)
}

func TestListCurveDates_Empty(t *testing.T) {
	s, mock, _ := newTestStore(t)

	mock.ExpectQuery("SELECT DISTINCT business_date").
		WillReturnRows(mock.NewRows([]string{"business_date"}))

	dates, err := s.ListCurveDates(context.Background())
	require.NoError(t, err)
	assert.Empty(t, dates)
}

func TestEnsureSchema(t *testing.T) {
	s, mock, _ := newTestStore(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS yield_curves").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, s.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetAndGetJSON(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t)

	val := map[string]string{"status": "ok"}
	require.NoError(t, s.SetJSON(ctx, "k", val, time.Minute))

	var got map[string]string
	require.NoError(t, s.GetJSON(ctx, "k", &got))
	assert.Equal(t, "ok", got["status"])
}

func TestGetJSON_NoRedis(t *testing.T) {
	s := &HybridStore{}
	var got map[string]string
	assert.Error(t, s.GetJSON(context.Background(), "k", &got))
}

// --- HealthCheck Tests ---

func TestHealthCheck_Success(t *testing.T) {
	s, mock, _ := newTestStore(t)
	mock.ExpectPing()

	require.NoError(t, s.HealthCheck(context.Background()))
}

func TestHealthCheck_PGNil(t *testing.T) {
	s := &HybridStore{}
	err := s.HealthCheck(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "postgres not initialized")
}

func TestHealthCheck_RedisDown(t *testing.T) {
	s, mock, mr := newTestStore(t)
	mock.ExpectPing()

	mr.Close()

	err := s.HealthCheck(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "redis ping failed")
}

func TestHealthCheck_PostgresDown(t *testing.T) {
	s, mock, _ := newTestStore(t)
	mock.ExpectPing().WillReturnError(errors.New("refused"))

	err := s.HealthCheck(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "postgres ping failed")
}

// --- Close Tests ---

func TestClose(t *testing.T) {
	s, mock, _ := newTestStore(t)
	mock.ExpectClose()

	require.NoError(t, s.Close())
}

func TestClose_NilComponents(t *testing.T) {
	s := &HybridStore{}
	require.NoError(t, s.Close())
}
