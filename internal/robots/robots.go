// Package robots decides whether a URL may be fetched according to the
// site's robots.txt. Every failure to obtain the policy denies the fetch.
package robots

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

const (
	maxPolicySize  = int64(512 * 1024)
	defaultTimeout = 10 * time.Second
)

var (
	errPolicyForbidden   = errors.New("robots.txt access forbidden")
	errPolicyUnavailable = errors.New("robots.txt server error")
)

type Checker struct {
	robotsURL string
	userAgent string
	client    *http.Client
	cache     bool
	logger    *slog.Logger

	mu      sync.Mutex
	loaded  bool
	data    *robotstxt.RobotsData
	loadErr error
}

type Option func(*Checker)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Checker) {
		if client != nil {
			c.client = client
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Checker) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithCache controls whether the policy is loaded once per Checker (true)
// or re-read on every Allowed call (false).
func WithCache(enabled bool) Option {
	return func(c *Checker) {
		c.cache = enabled
	}
}

func NewChecker(robotsURL, userAgent string, opts ...Option) *Checker {
	c := &Checker{
		robotsURL: robotsURL,
		userAgent: userAgent,
		client:    &http.Client{Timeout: defaultTimeout},
		cache:     true,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Allowed reports whether rawURL may be fetched by the configured agent.
func (c *Checker) Allowed(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		c.logger.Debug("robots: unparsable url", "url", rawURL, "error", err)
		return false
	}

	data, err := c.policy(ctx)
	if err != nil {
		c.logger.Debug("robots: policy unavailable, denying", "url", rawURL, "robots", c.robotsURL, "error", err)
		return false
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return data.TestAgent(path, c.userAgent)
}

// policy returns the parsed robots.txt. With caching on, the first completed
// load is kept, including a failed one; a load abandoned because the caller's
// context ended is not kept.
func (c *Checker) policy(ctx context.Context) (*robotstxt.RobotsData, error) {
	if !c.cache {
		return c.load(ctx)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return c.data, c.loadErr
	}

	data, err := c.load(ctx)
	if err != nil && ctx.Err() != nil {
		return nil, err
	}
	c.data, c.loadErr, c.loaded = data, err, true
	return data, err
}

func (c *Checker) load(ctx context.Context) (*robotstxt.RobotsData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.robotsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build robots.txt request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("%w: status %d", errPolicyForbidden, resp.StatusCode)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("%w: status %d", errPolicyUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPolicySize))
	if err != nil {
		return nil, fmt.Errorf("read robots.txt: %w", err)
	}

	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}
	return data, nil
}
