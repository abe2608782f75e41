package config

import (
	"regexp"
	"strings"

	"github.com/zipsync/zipsync/internal/syncerr"
)

// Scope names a group of keys a command depends on.
type Scope int

const (
	// ScopeFeed covers the pricing feed and the mapping table.
	ScopeFeed Scope = iota
	// ScopeAds covers the advertising account.
	ScopeAds
)

// validLogLevels is the set of allowed log.level values
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validLogFormats is the set of allowed log.format values
var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

var columnPattern = regexp.MustCompile(`^[A-Za-z]{1,3}$`)

// Validate checks value ranges. It does not require any key to be set; use
// Require for that.
func (c *Config) Validate() error {
	switch {
	case c.Sync.ChunkSize <= 0:
		return syncerr.Configf("sync.chunk_size", "must be positive, got %d", c.Sync.ChunkSize)
	case c.Sync.ChunkPause < 0:
		return syncerr.Configf("sync.chunk_pause", "must not be negative, got %s", c.Sync.ChunkPause)
	case c.Feed.MaxRetries < 1:
		return syncerr.Configf("feed.max_retries", "must be at least 1, got %d", c.Feed.MaxRetries)
	case c.Feed.BackoffFactor < 0:
		return syncerr.Configf("feed.backoff_factor", "must not be negative, got %g", c.Feed.BackoffFactor)
	case c.Feed.Timeout <= 0:
		return syncerr.Configf("feed.timeout", "must be positive, got %s", c.Feed.Timeout)
	case strings.TrimSpace(c.Feed.PriceField) == "":
		return syncerr.Configf("feed.price_field", "must not be empty")
	case strings.TrimSpace(c.Feed.IDField) == "":
		return syncerr.Configf("feed.id_field", "must not be empty")
	case !columnPattern.MatchString(c.Sheets.Column):
		return syncerr.Configf("sheets.column", "must be a column letter, got %q", c.Sheets.Column)
	case c.Sheets.StartRow < 1:
		return syncerr.Configf("sheets.start_row", "must be at least 1, got %d", c.Sheets.StartRow)
	case !validLogLevels[c.Log.Level]:
		return syncerr.Configf("log.level", "invalid value %q (valid: debug, info, warn, error)", c.Log.Level)
	case !validLogFormats[c.Log.Format]:
		return syncerr.Configf("log.format", "invalid value %q (valid: json, console)", c.Log.Format)
	}
	return nil
}

// Require validates c and checks that the keys of every scope are set.
func (c *Config) Require(scopes ...Scope) error {
	if err := c.Validate(); err != nil {
		return err
	}
	for _, s := range scopes {
		switch s {
		case ScopeFeed:
			if c.Feed.URL == "" {
				return syncerr.Configf("feed.url", "is not set")
			}
			if c.Mapping.File == "" {
				return syncerr.Configf("mapping.file", "is not set")
			}
		case ScopeAds:
			if c.Ads.AccountID == "" {
				return syncerr.Configf("ads.account_id", "is not set (GOOGLE_ADS_ACCOUNT_ID)")
			}
			if !isDigits(strings.ReplaceAll(c.Ads.AccountID, "-", "")) {
				return syncerr.Configf("ads.account_id", "must be numeric, got %q", c.Ads.AccountID)
			}
		}
	}
	return nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

const redacted = "<redacted>"

// Redacted returns a copy of c with secrets masked, for display.
func (c *Config) Redacted() *Config {
	out := *c
	mask := func(s *string) {
		if *s != "" {
			*s = redacted
		}
	}
	mask(&out.Ads.DeveloperToken)
	mask(&out.Slack.AdminWebhook)
	mask(&out.Slack.AlertsWebhook)
	return &out
}
