package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/yieldcurve/internal/metrics"
	"github.com/Checker-Finance/yieldcurve/internal/rate"
)

// ErrNotFound is returned when the server answers 404.
var ErrNotFound = errors.New("resource not found")

// StatusError carries a non-retryable 4xx response.
type StatusError struct {
	Status int
	URL    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s returned %d", e.URL, e.Status)
}

// Backoff returns the retry sleep duration for the given attempt number.
func Backoff(attempt int) time.Duration {
	switch attempt {
	case 0:
		return 250 * time.Millisecond
	case 1:
		return 1 * time.Second
	default:
		return 3 * time.Second
	}
}

// Executor performs rate-limited GETs, retrying transport failures and 5xx.
type Executor struct {
	logger   *zap.Logger
	rateMgr  *rate.Manager
	http     *http.Client
	retryMax int
	maxBytes int64
	sleep    func(ctx context.Context, d time.Duration) error
}

// New creates an Executor. rateMgr may be nil; maxBytes <= 0 means 32 MiB.
func New(logger *zap.Logger, rateMgr *rate.Manager, httpClient *http.Client, retryMax int, maxBytes int64) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if maxBytes <= 0 {
		maxBytes = 32 << 20
	}
	return &Executor{
		logger:   logger,
		rateMgr:  rateMgr,
		http:     httpClient,
		retryMax: retryMax,
		maxBytes: maxBytes,
		sleep:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Get fetches url and returns the body. rateLimitKey scopes the limiter,
// typically per host.
func (e *Executor) Get(ctx context.Context, url, rateLimitKey string) ([]byte, error) {
	if e.rateMgr != nil {
		if err := e.rateMgr.Wait(ctx, rateLimitKey); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= e.retryMax; attempt++ {
		if attempt > 0 {
			if err := e.sleep(ctx, Backoff(attempt-1)); err != nil {
				return nil, err
			}
		}

		body, retry, err := e.once(ctx, url, attempt)
		if err == nil {
			return body, nil
		}
		if !retry {
			return nil, err
		}
		lastErr = err
	}

	metrics.IncError("httpclient", "retries_exhausted")
	return nil, fmt.Errorf("GET %s failed after %d attempts: %w", url, e.retryMax+1, lastErr)
}

// once performs a single attempt and reports whether a failure is retryable.
func (e *Executor) once(ctx context.Context, url string, attempt int) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, err
	}

	start := time.Now()
	resp, err := e.http.Do(req)
	if err != nil {
		e.logger.Warn("httpclient.request_failed",
			zap.String("url", url),
			zap.Int("attempt", attempt),
			zap.Error(err))
		return nil, ctx.Err() == nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode >= 500:
		e.logger.Warn("httpclient.server_error",
			zap.String("url", url),
			zap.Int("status", resp.StatusCode),
			zap.Int("attempt", attempt),
			zap.Duration("latency", time.Since(start)))
		return nil, true, &StatusError{Status: resp.StatusCode, URL: url}
	case resp.StatusCode == http.StatusNotFound:
		return nil, false, fmt.Errorf("GET %s: %w", url, ErrNotFound)
	case resp.StatusCode >= 400:
		return nil, false, &StatusError{Status: resp.StatusCode, URL: url}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, e.maxBytes+1))
	if err != nil {
		return nil, true, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > e.maxBytes {
		return nil, false, fmt.Errorf("GET %s: body exceeds %d bytes", url, e.maxBytes)
	}

	e.logger.Debug("httpclient.success",
		zap.String("url", url),
		zap.Int("bytes", len(body)),
		zap.Duration("elapsed", time.Since(start)))
	return body, false, nil
}
