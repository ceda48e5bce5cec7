package bonds

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/yieldcurve/pkg/model"
)

// ErrEmptyExport means a downloaded file held no usable rows.
var ErrEmptyExport = errors.New("downloaded export has no bond rows")

// Downloader fetches a URL body.
type Downloader interface {
	Get(ctx context.Context, url, rateLimitKey string) ([]byte, error)
}

// Fetcher downloads the daily close-price export into the downloads
// directory under the name the Loader looks for.
//
// The URL template may contain {yyyymmdd} and {date} (YYYY-MM-DD).
type Fetcher struct {
	dl          Downloader
	urlTemplate string
	dir         string
	logger      *zap.Logger
}

func NewFetcher(dl Downloader, urlTemplate, dir string, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{dl: dl, urlTemplate: urlTemplate, dir: dir, logger: logger}
}

func (f *Fetcher) urlFor(date time.Time) string {
	return strings.NewReplacer(
		"{yyyymmdd}", date.Format("20060102"),
		"{date}", date.Format(model.DateLayout),
	).Replace(f.urlTemplate)
}

// FetchDate downloads the export for date and returns its path. An existing
// export is kept unless overwrite is set.
func (f *Fetcher) FetchDate(ctx context.Context, date time.Time, overwrite bool) (string, error) {
	if f.urlTemplate == "" {
		return "", errors.New("no download URL configured")
	}
	if !overwrite {
		if path, err := FindFile(f.dir, date); err == nil {
			f.logger.Info("bonds.fetch.exists", zap.String("file", path))
			return path, nil
		}
	}

	src := f.urlFor(date)
	u, err := url.Parse(src)
	if err != nil {
		return "", fmt.Errorf("invalid download URL: %w", err)
	}

	body, err := f.dl.Get(ctx, src, u.Host)
	if err != nil {
		return "", err
	}
	rows, skipped, err := ParseCSV(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("downloaded export: %w", err)
	}
	if len(rows) == 0 {
		return "", ErrEmptyExport
	}

	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(f.dir, filePrefix+date.Format("20060102")+"_download.csv")
	if err := writeAtomic(path, body); err != nil {
		return "", err
	}

	f.logger.Info("bonds.fetch.saved",
		zap.String("file", path),
		zap.Int("rows", len(rows)),
		zap.Int("skipped", skipped))
	return path, nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".fetch-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
