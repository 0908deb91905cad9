// Package download implements resumable HTTP downloads of release assets
// into a content-addressed cache, with bounded retries and exponential
// backoff.
package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/opencontainers/go-digest"

	"github.com/leanprover/elan/pkg/elanerr"
	"github.com/leanprover/elan/pkg/release"
	"github.com/leanprover/elan/pkg/store"
	"github.com/leanprover/elan/pkg/telemetry"
)

// maxAttempts and backoff parameters implement spec.md §4.4/§7: 3 attempts,
// 1s * 2^n backoff.
const (
	maxAttempts  = 3
	backoffBase  = 1 * time.Second
	backoffCap   = 8 * time.Second
)

// Downloader performs resumable, retrying downloads.
type Downloader struct {
	// HTTPClient is the transport used for each attempt. Tests substitute
	// a client pointed at an httptest.Server.
	HTTPClient *http.Client
}

// NewDownloader returns a Downloader backed by retryablehttp's connection
// pooling and sane transport defaults (cleanhttp under the hood), while
// elan's own retry loop (below) owns the actual attempt/backoff policy so
// it can resume via Range between attempts.
func NewDownloader() *Downloader {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 0 // elan's loop drives retries, not retryablehttp's
	rc.Logger = nil
	return &Downloader{HTTPClient: rc.StandardClient()}
}

// CachePath returns the content-addressed cache path for a URL: the
// downloads directory plus the hex SHA-256 of the URL string.
func CachePath(paths *store.Paths, url string) string {
	return filepath.Join(paths.DownloadsDir, digest.FromString(url).Encoded())
}

func tokenSidecar(cachePath string) string { return cachePath + ".token" }

// Fetch ensures meta's asset is present in the content-addressed cache,
// skipping the network round-trip when the cached file's recorded update
// token already matches meta.UpdateToken. It returns the cache path and
// whether the download was skipped.
func (d *Downloader) Fetch(ctx context.Context, paths *store.Paths, meta release.Metadata, sink telemetry.Sink) (string, bool, error) {
	if sink == nil {
		sink = telemetry.NopSink{}
	}

	cachePath := CachePath(paths, meta.AssetURL)
	tokPath := tokenSidecar(cachePath)

	if meta.UpdateToken != "" {
		if tok, err := os.ReadFile(tokPath); err == nil && string(tok) == meta.UpdateToken {
			if _, statErr := os.Stat(cachePath); statErr == nil {
				return cachePath, true, nil
			}
		}
	}

	if err := os.MkdirAll(paths.DownloadsDir, 0o755); err != nil {
		return "", false, &elanerr.IOError{Path: paths.DownloadsDir, Cause: err}
	}

	tmpPath := filepath.Join(paths.TmpDir, filepath.Base(cachePath)+".download")
	sink.Downloading(telemetry.Downloading{URL: meta.AssetURL})

	if err := d.downloadWithRetries(ctx, meta.AssetURL, tmpPath, sink); err != nil {
		return "", false, err
	}

	// Invariant 5: downloaded archives are read-only after write;
	// re-downloads replace them atomically via rename.
	_ = os.Chmod(tmpPath, 0o444)
	if err := os.Rename(tmpPath, cachePath); err != nil {
		return "", false, &elanerr.IOError{Path: cachePath, Cause: err}
	}

	if meta.UpdateToken != "" {
		_ = os.WriteFile(tokPath, []byte(meta.UpdateToken), 0o644)
	}

	return cachePath, false, nil
}

// downloadWithRetries performs the attempt loop: each attempt resumes from
// however many bytes are already on disk via a Range request, and failures
// back off exponentially before the next attempt.
func (d *Downloader) downloadWithRetries(ctx context.Context, url, tmpPath string, sink telemetry.Sink) error {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			wait := backoffBase * time.Duration(1<<uint(attempt-1))
			if wait > backoffCap {
				wait = backoffCap
			}
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return &elanerr.DownloadFailed{URL: url, Cause: ctx.Err()}
			}
		}

		err := d.attempt(ctx, url, tmpPath, sink)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable(err) {
			break
		}
	}
	return &elanerr.DownloadFailed{URL: url, Cause: lastErr}
}

// retryableError marks transport/5xx errors as eligible for another
// attempt; HTTP 4xx (client errors) are terminal.
type retryableError struct{ err error }

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

func retryable(err error) bool {
	_, ok := err.(*retryableError)
	return ok
}

func (d *Downloader) attempt(ctx context.Context, url, tmpPath string, sink telemetry.Sink) error {
	var offset int64
	if info, err := os.Stat(tmpPath); err == nil {
		offset = info.Size()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}

	resp, err := d.HTTPClient.Do(req)
	if err != nil {
		return &retryableError{err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusPartialContent, resp.StatusCode == http.StatusOK && offset == 0:
		// proceed
	case resp.StatusCode == http.StatusOK && offset > 0:
		// Server ignored our Range request; restart from scratch.
		offset = 0
		if err := os.Truncate(tmpPath, 0); err != nil && !os.IsNotExist(err) {
			return err
		}
	case resp.StatusCode >= 500:
		return &retryableError{fmt.Errorf("server error: %s", resp.Status)}
	case resp.StatusCode >= 400:
		return fmt.Errorf("download failed: %s", resp.Status)
	default:
		return fmt.Errorf("unexpected status: %s", resp.Status)
	}

	flags := os.O_CREATE | os.O_WRONLY
	if offset > 0 {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(tmpPath, flags, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	total := resp.ContentLength
	if total > 0 && offset > 0 {
		total += offset
	}

	done := offset
	buf := make([]byte, 64*1024)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := f.Write(buf[:n]); werr != nil {
				return werr
			}
			done += int64(n)
			sink.Progress(telemetry.Progress{Done: done, Total: total})
		}
		if rerr == io.EOF {
			return nil
		}
		if rerr != nil {
			return &retryableError{rerr}
		}
	}
}
