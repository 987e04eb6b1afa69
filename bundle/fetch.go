// Package bundle covers the collaborators around the core engine:
// fetching a dataset bundle from remote storage with bounded retries,
// extracting it, and handling the storage bearer credential.
package bundle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

const (
	// DefaultRetryAttempts is the number of times to retry a failed fetch.
	DefaultRetryAttempts = 3
	// DefaultRetryDelay is the fixed delay between retry attempts.
	DefaultRetryDelay = 5 * time.Second
	// DefaultBufferSize is the copy buffer size for downloads.
	DefaultBufferSize = 32 * 1024 // 32KB
)

// ErrPermanent marks a fetch failure that retrying cannot fix (bad
// locator, missing object, denied access). Wrap with %w.
var ErrPermanent = errors.New("permanent fetch error")

// Source fetches a bundle identified by locator into the local file at
// destPath. Implementations classify failures so the retry loop knows
// whether another attempt is worthwhile.
type Source interface {
	Fetch(ctx context.Context, locator, destPath string) error
}

// SourceFor picks a Source implementation from the locator scheme:
// s3:// buckets go to S3, http(s) URLs to plain HTTP.
func SourceFor(locator string) (Source, error) {
	u, err := url.Parse(locator)
	if err != nil {
		return nil, fmt.Errorf("%w: bad locator %q: %v", ErrPermanent, locator, err)
	}
	switch u.Scheme {
	case "s3":
		return &S3Source{}, nil
	case "http", "https":
		return &HTTPSource{}, nil
	}
	return nil, fmt.Errorf("%w: unsupported locator scheme %q", ErrPermanent, u.Scheme)
}

// ArchiveName derives the local filename for a fetched bundle. For URL
// locators the query string and fragment are dropped first, so a
// presigned URL still yields the archive's own name.
func ArchiveName(locator string) string {
	if u, err := url.Parse(locator); err == nil && u.Scheme != "" {
		if name := path.Base(u.Path); name != "." && name != "/" {
			return name
		}
		return "bundle"
	}
	return filepath.Base(locator)
}

// IsPermanent reports whether err should not be retried.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent)
}

// HTTPSource downloads a bundle over plain HTTP(S), resuming partial
// files via Range requests.
type HTTPSource struct {
	// Client overrides the HTTP client; nil uses a client without a
	// timeout, since bundles can be large.
	Client *http.Client

	// Token, when set, is sent as a bearer Authorization header.
	Token string
}

// Fetch implements Source.
func (s *HTTPSource) Fetch(ctx context.Context, locator, destPath string) error {
	var existingSize int64
	if stat, err := os.Stat(destPath); err == nil {
		existingSize = stat.Size()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to create request: %v", ErrPermanent, err)
	}
	if existingSize > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", existingSize))
	}
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}

	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 0}
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		existingSize = 0
	case resp.StatusCode == http.StatusPartialContent:
		// Resume supported, keep existing bytes.
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("transient bad status: %s", resp.Status)
	default:
		return fmt.Errorf("%w: bad status: %s", ErrPermanent, resp.Status)
	}

	var out *os.File
	if existingSize > 0 && resp.StatusCode == http.StatusPartialContent {
		out, err = os.OpenFile(destPath, os.O_APPEND|os.O_WRONLY, 0644)
	} else {
		out, err = os.Create(destPath)
	}
	if err != nil {
		return fmt.Errorf("failed to open output file: %w", err)
	}
	defer out.Close()

	buffer := make([]byte, DefaultBufferSize)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := resp.Body.Read(buffer)
		if n > 0 {
			if _, writeErr := out.Write(buffer[:n]); writeErr != nil {
				return fmt.Errorf("failed to write to file: %w", writeErr)
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}
	}
}

// retryDelay is a var so tests can shrink the backoff.
var retryDelay = DefaultRetryDelay

// FetchWithRetry runs src.Fetch with bounded attempts and a fixed
// backoff. Permanent failures and context cancellation stop the loop
// immediately; after exhausting attempts the last error escalates.
func FetchWithRetry(ctx context.Context, src Source, locator, destPath string) error {
	var lastErr error

	for attempt := 1; attempt <= DefaultRetryAttempts; attempt++ {
		err := src.Fetch(ctx, locator, destPath)
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return err
		}
		if IsPermanent(err) {
			return err
		}

		if attempt < DefaultRetryAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryDelay):
			}
		}
	}

	return fmt.Errorf("fetch failed after %d attempts: %w", DefaultRetryAttempts, lastErr)
}

// SplitS3Locator splits an s3://bucket/key locator.
func SplitS3Locator(locator string) (bucket, key string, err error) {
	u, err := url.Parse(locator)
	if err != nil || u.Scheme != "s3" || u.Host == "" {
		return "", "", fmt.Errorf("%w: bad s3 locator %q", ErrPermanent, locator)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", "", fmt.Errorf("%w: s3 locator %q has no object key", ErrPermanent, locator)
	}
	return u.Host, key, nil
}
