// Package feed downloads the zip code pricing feed that drives a sync run.
package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/zipsync/zipsync/internal/retry"
	"github.com/zipsync/zipsync/internal/syncerr"
)

// Defaults mirror the values the feed has always been polled with.
const (
	DefaultMaxRetries    = 5
	DefaultBackoffFactor = 1.0
	DefaultTimeout       = 10 * time.Second

	// maxResponseSize caps the body read from the feed (50 MB).
	maxResponseSize = 50 * 1024 * 1024
)

// Entry is one decoded feed record. Numbers are kept as json.Number so the
// filter sees the feed's own representation.
type Entry map[string]any

// Fetcher performs a GET against the feed URL with bounded retries.
type Fetcher struct {
	url        string
	policy     retry.Policy
	timeout    time.Duration
	httpClient *http.Client
	logger     *zap.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithRetries sets the total attempt count and the backoff factor in seconds.
func WithRetries(maxRetries int, backoffFactor float64) Option {
	return func(f *Fetcher) {
		timer := f.policy.Timer
		f.policy = retry.FromFactor(maxRetries, backoffFactor)
		f.policy.Timer = timer
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) { f.timeout = d }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.httpClient = c }
}

// WithLogger sets the logger used to report retries.
func WithLogger(l *zap.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithPolicy replaces the retry policy wholesale. Mostly useful in tests
// that inject a timer.
func WithPolicy(p retry.Policy) Option {
	return func(f *Fetcher) { f.policy = p }
}

// NewFetcher creates a Fetcher for url.
func NewFetcher(url string, opts ...Option) *Fetcher {
	f := &Fetcher{
		url:        url,
		policy:     retry.FromFactor(DefaultMaxRetries, DefaultBackoffFactor),
		timeout:    DefaultTimeout,
		httpClient: &http.Client{},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads and decodes the feed. Network failures and non-2xx
// statuses are retried; a body that is not a JSON array of objects fails
// immediately.
func (f *Fetcher) Fetch(ctx context.Context) ([]Entry, error) {
	var entries []Entry

	policy := f.policy
	policy.Notify = func(attempt int, err error, wait time.Duration) {
		f.logger.Warn("feed fetch failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", policy.Attempts),
			zap.Duration("wait", wait),
			zap.Error(err))
	}

	attempts := 0
	err := retry.Do(ctx, policy, func(ctx context.Context) error {
		attempts++
		body, err := f.get(ctx)
		if err != nil {
			return err
		}
		decoded, err := decode(body)
		if err != nil {
			return retry.Permanent(err)
		}
		entries = decoded
		return nil
	})
	if err != nil {
		var exhausted *retry.ExhaustedError
		if errors.As(err, &exhausted) {
			return nil, &syncerr.FetchError{URL: f.url, Attempts: exhausted.Attempts, Err: exhausted.Last}
		}
		if ctx.Err() != nil {
			return nil, &syncerr.FetchError{URL: f.url, Attempts: attempts, Err: err}
		}
		return nil, err
	}

	f.logger.Debug("feed fetched", zap.String("url", f.url), zap.Int("entries", len(entries)))
	return entries, nil
}

func (f *Fetcher) get(ctx context.Context) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	_ = resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(body, 200))
	}
	return body, nil
}

func decode(body []byte) ([]Entry, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var entries []Entry
	if err := dec.Decode(&entries); err != nil {
		return nil, fmt.Errorf("failed to decode feed: %w", err)
	}
	return entries, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
