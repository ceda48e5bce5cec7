package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newExec(retryMax int, client *http.Client) *Executor {
	e := New(zap.NewNop(), nil, client, retryMax, 1024)
	e.sleep = func(context.Context, time.Duration) error { return nil }
	return e
}

// countingHandler returns failStatus for the first failCount calls, then 200 with body.
func countingHandler(failCount int, failStatus int, successBody []byte) (http.Handler, *atomic.Int32) {
	var n atomic.Int32
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if int(n.Add(1)) <= failCount {
			w.WriteHeader(failStatus)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(successBody)
	}), &n
}

func TestGet_SuccessFirstAttempt(t *testing.T) {
	h, count := countingHandler(0, 0, []byte("ISIN,Gilt Name\n"))
	srv := httptest.NewServer(h)
	defer srv.Close()

	body, err := newExec(2, srv.Client()).Get(context.Background(), srv.URL, "k")
	require.NoError(t, err)
	assert.Equal(t, "ISIN,Gilt Name\n", string(body))
	assert.EqualValues(t, 1, count.Load())
}

func TestGet_Retries5xxThenSucceeds(t *testing.T) {
	h, count := countingHandler(2, http.StatusBadGateway, []byte("ok"))
	srv := httptest.NewServer(h)
	defer srv.Close()

	body, err := newExec(2, srv.Client()).Get(context.Background(), srv.URL, "k")
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.EqualValues(t, 3, count.Load())
}

func TestGet_ExhaustsRetries(t *testing.T) {
	h, count := countingHandler(10, http.StatusServiceUnavailable, nil)
	srv := httptest.NewServer(h)
	defer srv.Close()

	_, err := newExec(1, srv.Client()).Get(context.Background(), srv.URL, "k")
	require.Error(t, err)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusServiceUnavailable, se.Status)
	assert.EqualValues(t, 2, count.Load())
}

func TestGet_NotFoundIsNotRetried(t *testing.T) {
	h, count := countingHandler(10, http.StatusNotFound, nil)
	srv := httptest.NewServer(h)
	defer srv.Close()

	_, err := newExec(3, srv.Client()).Get(context.Background(), srv.URL, "k")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.EqualValues(t, 1, count.Load())
}

func TestGet_ClientErrorIsNotRetried(t *testing.T) {
	h, count := countingHandler(10, http.StatusForbidden, nil)
	srv := httptest.NewServer(h)
	defer srv.Close()

	_, err := newExec(3, srv.Client()).Get(context.Background(), srv.URL, "k")
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusForbidden, se.Status)
	assert.EqualValues(t, 1, count.Load())
}

func TestGet_BodyLimit(t *testing.T) {
	h, _ := countingHandler(0, 0, make([]byte, 2048))
	srv := httptest.NewServer(h)
	defer srv.Close()

	_, err := newExec(0, srv.Client()).Get(context.Background(), srv.URL, "k")
	assert.ErrorContains(t, err, "exceeds")
}

func TestGet_ContextCanceledDuringBackoff(t *testing.T) {
	h, _ := countingHandler(10, http.StatusInternalServerError, nil)
	srv := httptest.NewServer(h)
	defer srv.Close()

	e := New(zap.NewNop(), nil, srv.Client(), 3, 0)
	ctx, cancel := context.WithCancel(context.Background())
	e.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return sleepCtx(ctx, d)
	}

	_, err := e.Get(ctx, srv.URL, "k")
	assert.ErrorIs(t, err, context.Canceled)
}
