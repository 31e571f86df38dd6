// Package fetch downloads remote images and audio into local scratch files.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
)

// Static errors for fetch operations.
var (
	// ErrEmptyURL is returned for a blank URL.
	ErrEmptyURL = errors.New("fetch: URL is required")
	// ErrBadStatus is returned when the origin answers with a non-2xx status code.
	ErrBadStatus = errors.New("fetch: unexpected status")
)

// DefaultUserAgent is sent when no user agent is configured.
// Some origins reject requests with an empty or default Go agent.
const DefaultUserAgent = "Mozilla/5.0"

// Error describes a failed download. It carries the URL and the underlying cause.
type Error struct {
	URL        string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Client downloads resources over HTTP(S). It is safe for concurrent use
// and is meant to be shared by all requests.
type Client struct {
	httpClient  *http.Client
	userAgent   string
	maxRetries  int
	baseBackoff time.Duration
	logger      *slog.Logger
}

// ClientOption is a function that configures a Client.
type ClientOption func(*Client)

// WithTimeout bounds every download attempt.
func WithTimeout(d time.Duration) ClientOption {
	return func(fc *Client) {
		if d > 0 {
			fc.httpClient.Timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent header sent to origins.
func WithUserAgent(ua string) ClientOption {
	return func(fc *Client) {
		if ua != "" {
			fc.userAgent = ua
		}
	}
}

// WithMaxRetries sets the maximum number of retries for transient failures.
func WithMaxRetries(n int) ClientOption {
	return func(fc *Client) {
		if n >= 0 {
			fc.maxRetries = n
		}
	}
}

// WithBaseBackoff sets the initial backoff duration for retries.
func WithBaseBackoff(d time.Duration) ClientOption {
	return func(fc *Client) {
		fc.baseBackoff = d
	}
}

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(l *slog.Logger) ClientOption {
	return func(fc *Client) {
		if l != nil {
			fc.logger = l
		}
	}
}

// NewClient creates a new fetch client with a two minute per-attempt timeout,
// two retries and a 500ms initial backoff unless overridden.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient:  &http.Client{Timeout: 2 * time.Minute},
		userAgent:   DefaultUserAgent,
		maxRetries:  2,
		baseBackoff: 500 * time.Millisecond,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch downloads url into dst. The URL is requested as given; callers
// normalize it once beforehand with NormalizeURL.
// Transient failures (network errors, 5xx, 429) are retried with exponential
// backoff; a partially written dst is removed before each retry and on failure.
func (c *Client) Fetch(ctx context.Context, url, dst string) error {
	if strings.TrimSpace(url) == "" {
		return &Error{URL: url, Err: ErrEmptyURL}
	}

	var lastErr error
	backoff := c.baseBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("retrying download",
				slog.String("url", url),
				slog.Int("attempt", attempt),
				slog.Duration("backoff", backoff),
				slog.String("error", lastErr.Error()),
			)
			select {
			case <-ctx.Done():
				return &Error{URL: url, Err: fmt.Errorf("context cancelled: %w", ctx.Err())}
			case <-time.After(backoff):
				backoff *= 2 // Exponential backoff
			}
		}

		err := c.download(ctx, url, dst)
		if err == nil {
			return nil
		}
		_ = os.Remove(dst)

		if !isRetryable(err) || ctx.Err() != nil {
			return unwrapRetryable(err)
		}
		lastErr = err
	}

	return unwrapRetryable(lastErr)
}

// download performs a single GET and streams the body into dst.
func (c *Client) download(ctx context.Context, url, dst string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &Error{URL: url, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &retryableError{err: &Error{URL: url, Err: err}}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		fe := &Error{URL: url, StatusCode: resp.StatusCode, Err: ErrBadStatus}
		// 5xx errors and 429 (rate limit) are retryable
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return &retryableError{err: fe}
		}
		return fe
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) // #nosec G304 - dst is a workspace path
	if err != nil {
		return &Error{URL: url, Err: fmt.Errorf("create output file: %w", err)}
	}

	if _, err := io.Copy(out, resp.Body); err != nil {
		_ = out.Close()
		return &retryableError{err: &Error{URL: url, Err: fmt.Errorf("copy body: %w", err)}}
	}
	if err := out.Close(); err != nil {
		return &Error{URL: url, Err: fmt.Errorf("close output file: %w", err)}
	}

	return nil
}

// retryableError wraps errors that should be retried.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

// isRetryable returns true if the error should be retried.
func isRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

// unwrapRetryable strips the retry marker so callers only ever see *Error.
func unwrapRetryable(err error) error {
	var re *retryableError
	if errors.As(err, &re) {
		return re.err
	}
	return err
}
