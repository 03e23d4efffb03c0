// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fetch downloads the raw observation archive into the input
// directory.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/pdiddy/obs-wrangler/pkg/types"
)

// ErrHTTPStatus means the server answered with a non-200 status after
// any retries.
var ErrHTTPStatus = errors.New("unexpected HTTP status")

// Result describes one fetch.
type Result struct {
	Path    string
	Bytes   int64
	Skipped bool
}

// Fetcher downloads the archive described by a FetchConfig.
type Fetcher struct {
	cfg    types.FetchConfig
	client *http.Client
	logger *zap.Logger
}

// New returns a Fetcher. A nil client gets one with cfg.Timeout.
func New(cfg types.FetchConfig, client *http.Client, logger *zap.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{cfg: cfg, client: client, logger: logger}
}

// Fetch downloads the archive to destPath. An existing file is kept
// unless force is set. The download goes to a temp file in the same
// directory and is renamed into place on success, so an interrupted
// transfer never leaves a truncated archive behind.
func (f *Fetcher) Fetch(ctx context.Context, destPath string, force bool, w io.Writer) (Result, error) {
	if !force {
		if info, err := os.Stat(destPath); err == nil {
			fmt.Fprintf(w, "skipped %s (already present, %d bytes)\n", destPath, info.Size())
			return Result{Path: destPath, Bytes: info.Size(), Skipped: true}, nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return Result{}, fmt.Errorf("creating input directory: %w", err)
	}

	fmt.Fprintf(w, "downloading %s\n", f.cfg.URL)
	f.logger.Info("Downloading observation archive",
		zap.String("url", f.cfg.URL),
		zap.String("dest", destPath))

	n, err := f.download(ctx, destPath)
	if err != nil {
		return Result{}, err
	}

	fmt.Fprintf(w, "saved %s (%d bytes)\n", destPath, n)
	return Result{Path: destPath, Bytes: n}, nil
}

func (f *Fetcher) download(ctx context.Context, destPath string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.cfg.URL, nil)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	if f.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", f.cfg.UserAgent)
	}

	resp, err := DoWithRetry(ctx, f.client, req, f.cfg.MaxRetries, f.logger)
	if err != nil {
		return 0, fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: HTTP %d from %s", ErrHTTPStatus, resp.StatusCode, f.cfg.URL)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".fetch-*.tmp")
	if err != nil {
		return 0, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	n, copyErr := io.Copy(tmpFile, resp.Body)
	closeErr := tmpFile.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("writing download: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("renaming temp file: %w", err)
	}
	return n, nil
}
