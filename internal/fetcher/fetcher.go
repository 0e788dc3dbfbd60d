package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/net/html/charset"
)

const (
	DefaultTimeout     = 10 * time.Second
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = 2 * time.Second

	// MaxBodySize caps a single page; larger responses count as a failed attempt.
	MaxBodySize = int64(10 * 1024 * 1024)
)

// ErrRetriesExhausted is wrapped by Fetch when no attempt produced a page.
var ErrRetriesExhausted = errors.New("fetch retries exhausted")

// StatusError is a completed HTTP exchange whose status was not 200.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.StatusCode)
}

// Doer is satisfied by *http.Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Fetcher struct {
	client      Doer
	userAgent   string
	maxAttempts int
	delay       time.Duration
	logger      *slog.Logger

	// timer and notify are swapped in tests to observe waits between attempts.
	timer  backoff.Timer
	notify backoff.Notify
}

type Option func(*Fetcher)

func WithHTTPClient(doer Doer) Option {
	return func(f *Fetcher) {
		if doer != nil {
			f.client = doer
		}
	}
}

// WithMaxAttempts sets the total number of GETs per URL, first one included.
func WithMaxAttempts(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxAttempts = n
		}
	}
}

func WithRetryDelay(d time.Duration) Option {
	return func(f *Fetcher) {
		if d >= 0 {
			f.delay = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

func New(timeout time.Duration, userAgent string, opts ...Option) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	f := &Fetcher{
		client:      &http.Client{Timeout: timeout},
		userAgent:   userAgent,
		maxAttempts: DefaultMaxAttempts,
		delay:       DefaultRetryDelay,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch GETs rawURL until a 200 response is read in full or maxAttempts
// attempts have failed. Non-200 statuses and transport errors are retried
// alike, with a constant delay between attempts and none after the last.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	var (
		body    string
		attempt int
	)

	op := func() error {
		attempt++
		page, err := f.fetchOnce(ctx, rawURL)
		if err != nil {
			f.logger.Warn("fetch attempt failed",
				"url", rawURL,
				"attempt", attempt,
				"max_attempts", f.maxAttempts,
				"error", err,
			)
			return err
		}
		body = page
		return nil
	}

	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(f.delay), uint64(f.maxAttempts-1))
	err := backoff.RetryNotifyWithTimer(op, backoff.WithContext(policy, ctx), f.notify, f.timer)
	if err != nil {
		return "", fmt.Errorf("%w: %s after %d attempt(s): %w", ErrRetriesExhausted, rawURL, attempt, err)
	}
	return body, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, MaxBodySize))
		return "", &StatusError{StatusCode: resp.StatusCode}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize+1))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if int64(len(raw)) > MaxBodySize {
		return "", fmt.Errorf("body exceeds %d bytes", MaxBodySize)
	}

	utf8Reader, err := charset.NewReader(bytes.NewReader(raw), resp.Header.Get("Content-Type"))
	if err != nil {
		return string(raw), nil
	}
	decoded, err := io.ReadAll(utf8Reader)
	if err != nil {
		return string(raw), nil
	}
	return string(decoded), nil
}
