// Package ads is a small client for the Google Ads REST API covering what a
// zip code sync needs: listing enabled campaigns, reading their location
// criteria and creating or removing location criteria.
package ads

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/zipsync/zipsync/internal/retry"
	"github.com/zipsync/zipsync/internal/syncerr"
)

// Client talks to one Google Ads customer account.
type Client struct {
	CustomerID      string
	LoginCustomerID string
	DeveloperToken  string
	BaseURL         string
	HTTPClient      *http.Client
	// ValidateOnly asks the API to check mutations without applying them.
	ValidateOnly bool
	Retry        retry.Policy
	Logger       *zap.Logger
}

// NewClient creates a client for customerID. Dashes in customer ids are
// removed. The HTTP client must already carry OAuth2 credentials; see
// NewHTTPClient.
func NewClient(customerID, loginCustomerID, developerToken string) *Client {
	return &Client{
		CustomerID:      normalizeCustomerID(customerID),
		LoginCustomerID: normalizeCustomerID(loginCustomerID),
		DeveloperToken:  developerToken,
		BaseURL:         DefaultAPIEndpoint,
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		Retry:  retry.Policy{Attempts: MaxRetries, Initial: RetryDelay},
		Logger: zap.NewNop(),
	}
}

// WithHTTPClient returns a copy of the client using httpClient.
func (c *Client) WithHTTPClient(httpClient *http.Client) *Client {
	cp := *c
	cp.HTTPClient = httpClient
	return &cp
}

// WithBaseURL returns a copy of the client using baseURL (for tests or a
// different API version).
func (c *Client) WithBaseURL(baseURL string) *Client {
	cp := *c
	cp.BaseURL = strings.TrimRight(baseURL, "/")
	return &cp
}

// NewHTTPClient builds an authorized HTTP client. With credentialsFile set
// it reads a service account or authorized user JSON file; otherwise
// Application Default Credentials are used.
func NewHTTPClient(ctx context.Context, credentialsFile string) (*http.Client, error) {
	var ts oauth2.TokenSource
	if credentialsFile == "" {
		creds, err := google.FindDefaultCredentials(ctx, Scope)
		if err != nil {
			return nil, fmt.Errorf("failed to find default credentials: %w", err)
		}
		ts = creds.TokenSource
	} else {
		data, err := os.ReadFile(credentialsFile) // #nosec G304 - path comes from operator config
		if err != nil {
			return nil, fmt.Errorf("failed to read credentials: %w", err)
		}
		creds, err := google.CredentialsFromJSON(ctx, data, Scope)
		if err != nil {
			return nil, fmt.Errorf("failed to parse credentials: %w", err)
		}
		ts = creds.TokenSource
	}
	hc := oauth2.NewClient(ctx, ts)
	hc.Timeout = DefaultTimeout
	return hc, nil
}

func normalizeCustomerID(id string) string {
	return strings.ReplaceAll(strings.TrimSpace(id), "-", "")
}

func (c *Client) log() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

// customerURL builds a URL under the client's customer.
func (c *Client) customerURL(suffix string) string {
	return c.BaseURL + "/customers/" + c.CustomerID + suffix
}

// statusError is a non-2xx response.
type statusError struct {
	StatusCode int
	Message    string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("API error: %s (status %d)", e.Message, e.StatusCode)
}

func retryable(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// doRequest posts body as JSON and returns the response body. Rate limiting,
// server errors and network failures are retried, waiting at least as long as
// a Retry-After header asks; 401 and 403 are reported as
// syncerr.ErrUnavailable.
func (c *Client) doRequest(ctx context.Context, method, urlStr string, body any) ([]byte, error) {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		payload = b
	}

	policy := c.Retry
	policy.Notify = func(attempt int, err error, wait time.Duration) {
		c.log().Warn("google ads request failed, retrying",
			zap.String("url", urlStr),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))
	}

	var respBody []byte
	err := retry.Do(ctx, policy, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, method, urlStr, bytes.NewReader(payload))
		if err != nil {
			return retry.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		if c.DeveloperToken != "" {
			req.Header.Set("developer-token", c.DeveloperToken)
		}
		if c.LoginCustomerID != "" {
			req.Header.Set("login-customer-id", c.LoginCustomerID)
		}

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		_ = resp.Body.Close()
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			respBody = data
			return nil
		}

		serr := &statusError{StatusCode: resp.StatusCode, Message: errorMessage(data)}
		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return retry.Permanent(fmt.Errorf("%w: %w", syncerr.ErrUnavailable, serr))
		case retryable(resp.StatusCode):
			if wait := retryAfter(resp.Header); wait > 0 {
				c.log().Debug("server asked to slow down", zap.Duration("retry_after", wait))
				return retry.After(serr, wait)
			}
			return serr
		default:
			return retry.Permanent(serr)
		}
	})
	if err != nil {
		var exhausted *retry.ExhaustedError
		if errors.As(err, &exhausted) {
			return nil, fmt.Errorf("max retries (%d) exceeded: %w", exhausted.Attempts, exhausted.Last)
		}
		return nil, err
	}
	return respBody, nil
}

// errorMessage extracts the message of a Google API error envelope, falling
// back to the raw body.
func errorMessage(body []byte) string {
	var e apiError
	if err := json.Unmarshal(body, &e); err == nil && e.Error.Message != "" {
		if e.Error.Status != "" {
			return e.Error.Status + ": " + e.Error.Message
		}
		return e.Error.Message
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}

func retryAfter(h http.Header) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	seconds, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
