// Package config loads zipsync settings from defaults, an optional YAML file,
// a dotenv file and the process environment, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable bound to a config key.
const EnvPrefix = "ZIPSYNC"

// DefaultConfigName is the file name searched for when no file is given.
const DefaultConfigName = "zipsync"

// Config is the typed view of the effective configuration.
type Config struct {
	Ads       AdsConfig       `yaml:"ads" json:"ads"`
	Sync      SyncConfig      `yaml:"sync" json:"sync"`
	Feed      FeedConfig      `yaml:"feed" json:"feed"`
	Mapping   MappingConfig   `yaml:"mapping" json:"mapping"`
	Slack     SlackConfig     `yaml:"slack" json:"slack"`
	Sheets    SheetsConfig    `yaml:"sheets" json:"sheets"`
	Telemetry TelemetryConfig `yaml:"telemetry" json:"telemetry"`
	Log       LogConfig       `yaml:"log" json:"log"`

	// File is the config file that was read, empty when none was found.
	File string `yaml:"-" json:"-"`
}

// AdsConfig addresses the advertising account.
type AdsConfig struct {
	AccountID       string `yaml:"account_id" json:"account_id"`
	LoginCustomerID string `yaml:"login_customer_id" json:"login_customer_id"`
	DeveloperToken  string `yaml:"developer_token" json:"developer_token"`
	CredentialsFile string `yaml:"credentials_file" json:"credentials_file"`
	Endpoint        string `yaml:"endpoint" json:"endpoint"`
}

// SyncConfig tunes the reconciliation engine.
type SyncConfig struct {
	ChunkSize            int           `yaml:"chunk_size" json:"chunk_size"`
	ChunkPause           time.Duration `yaml:"chunk_pause" json:"chunk_pause"`
	APIActive            bool          `yaml:"api_active" json:"api_active"`
	TestMode             bool          `yaml:"test_mode" json:"test_mode"`
	StrictPartialFailure bool          `yaml:"strict_partial_failure" json:"strict_partial_failure"`
}

// FeedConfig locates and filters the pricing feed.
type FeedConfig struct {
	URL            string        `yaml:"url" json:"url"`
	MaxRetries     int           `yaml:"max_retries" json:"max_retries"`
	BackoffFactor  float64       `yaml:"backoff_factor" json:"backoff_factor"`
	Timeout        time.Duration `yaml:"timeout" json:"timeout"`
	PriceField     string        `yaml:"price_field" json:"price_field"`
	IDField        string        `yaml:"id_field" json:"id_field"`
	PriceThreshold float64       `yaml:"price_threshold" json:"price_threshold"`
}

// MappingConfig points at the zip code to criterion table.
type MappingConfig struct {
	File string `yaml:"file" json:"file"`
}

// SlackConfig holds the incoming webhooks.
type SlackConfig struct {
	AdminWebhook  string `yaml:"admin_webhook" json:"admin_webhook"`
	AlertsWebhook string `yaml:"alerts_webhook" json:"alerts_webhook"`
}

// SheetsConfig configures the spreadsheet sink. An empty SpreadsheetID
// disables it.
type SheetsConfig struct {
	SpreadsheetID   string `yaml:"spreadsheet_id" json:"spreadsheet_id"`
	CredentialsFile string `yaml:"credentials_file" json:"credentials_file"`
	Column          string `yaml:"column" json:"column"`
	StartRow        int    `yaml:"start_row" json:"start_row"`
}

// TelemetryConfig toggles OpenTelemetry export.
type TelemetryConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	Stdout  bool `yaml:"stdout" json:"stdout"`
}

// LogConfig selects log verbosity and encoding.
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// defaults lists every key with its default value.
var defaults = map[string]any{
	"ads.account_id":              "",
	"ads.login_customer_id":       "",
	"ads.developer_token":         "",
	"ads.credentials_file":        "",
	"ads.endpoint":                "https://googleads.googleapis.com/v20",
	"sync.chunk_size":             10,
	"sync.chunk_pause":            time.Second,
	"sync.api_active":             true,
	"sync.test_mode":              false,
	"sync.strict_partial_failure": false,
	"feed.url":                    "",
	"feed.max_retries":            5,
	"feed.backoff_factor":         1.0,
	"feed.timeout":                10 * time.Second,
	"feed.price_field":            "max_call_price",
	"feed.id_field":               "zip_code",
	"feed.price_threshold":        20.0,
	"mapping.file":                "",
	"slack.admin_webhook":         "",
	"slack.alerts_webhook":        "",
	"sheets.spreadsheet_id":       "",
	"sheets.credentials_file":     "",
	"sheets.column":               "A",
	"sheets.start_row":            2,
	"telemetry.enabled":           false,
	"telemetry.stdout":            false,
	"log.level":                   "info",
	"log.format":                  "json",
}

// legacyEnv maps keys to the environment names used by earlier deployments.
// They are consulted after the ZIPSYNC_ form.
var legacyEnv = map[string][]string{
	"ads.account_id":          {"GOOGLE_ADS_ACCOUNT_ID"},
	"ads.login_customer_id":   {"GOOGLE_ADS_LOGIN_CUSTOMER_ID"},
	"ads.developer_token":     {"GOOGLE_ADS_DEVELOPER_TOKEN"},
	"ads.credentials_file":    {"GOOGLE_ADS_CREDENTIALS", "GOOGLE_APPLICATION_CREDENTIALS"},
	"slack.admin_webhook":     {"SLACK_ADMIN_WEBHOOK"},
	"slack.alerts_webhook":    {"SLACK_ALERTS_WEBHOOK"},
	"sheets.spreadsheet_id":   {"GOOGLE_SHEET_ID"},
	"sheets.credentials_file": {"GOOGLE_SHEETS_CREDENTIALS"},
	"telemetry.enabled":       {"ZIPSYNC_OTEL_ENABLED"},
	"telemetry.stdout":        {"ZIPSYNC_OTEL_STDOUT"},
}

// Keys returns every known key in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(defaults))
	for k := range defaults {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// New returns a viper instance with defaults and environment bindings but
// no file read. Load is the usual entry point.
func New() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for key := range defaults {
		names := append([]string{envName(key)}, legacyEnv[key]...)
		_ = v.BindEnv(append([]string{key}, names...)...)
	}
	return v
}

// envName is the prefixed environment variable for key.
func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key))
}

// Load reads configuration. An explicit configFile must exist; otherwise
// zipsync.yaml is looked up in the working directory and
// $HOME/.config/zipsync, and its absence is not an error. A dotenv file
// (./.env or ./config/.env) seeds variables missing from the environment.
func Load(configFile string) (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	v := New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "zipsync"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := FromViper(v)
	cfg.File = v.ConfigFileUsed()
	return cfg, nil
}

// FromViper builds a Config from the keys in v.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Ads: AdsConfig{
			AccountID:       v.GetString("ads.account_id"),
			LoginCustomerID: v.GetString("ads.login_customer_id"),
			DeveloperToken:  v.GetString("ads.developer_token"),
			CredentialsFile: v.GetString("ads.credentials_file"),
			Endpoint:        v.GetString("ads.endpoint"),
		},
		Sync: SyncConfig{
			ChunkSize:            v.GetInt("sync.chunk_size"),
			ChunkPause:           v.GetDuration("sync.chunk_pause"),
			APIActive:            v.GetBool("sync.api_active"),
			TestMode:             v.GetBool("sync.test_mode"),
			StrictPartialFailure: v.GetBool("sync.strict_partial_failure"),
		},
		Feed: FeedConfig{
			URL:            v.GetString("feed.url"),
			MaxRetries:     v.GetInt("feed.max_retries"),
			BackoffFactor:  v.GetFloat64("feed.backoff_factor"),
			Timeout:        v.GetDuration("feed.timeout"),
			PriceField:     v.GetString("feed.price_field"),
			IDField:        v.GetString("feed.id_field"),
			PriceThreshold: v.GetFloat64("feed.price_threshold"),
		},
		Mapping: MappingConfig{
			File: v.GetString("mapping.file"),
		},
		Slack: SlackConfig{
			AdminWebhook:  v.GetString("slack.admin_webhook"),
			AlertsWebhook: v.GetString("slack.alerts_webhook"),
		},
		Sheets: SheetsConfig{
			SpreadsheetID:   v.GetString("sheets.spreadsheet_id"),
			CredentialsFile: v.GetString("sheets.credentials_file"),
			Column:          v.GetString("sheets.column"),
			StartRow:        v.GetInt("sheets.start_row"),
		},
		Telemetry: TelemetryConfig{
			Enabled: v.GetBool("telemetry.enabled"),
			Stdout:  v.GetBool("telemetry.stdout"),
		},
		Log: LogConfig{
			Level:  strings.ToLower(strings.TrimSpace(v.GetString("log.level"))),
			Format: strings.ToLower(strings.TrimSpace(v.GetString("log.format"))),
		},
	}
}

// dotEnvPaths are checked in order; the first existing file is loaded.
var dotEnvPaths = []string{".env", filepath.Join("config", ".env")}

// loadDotEnv exports the variables of the first dotenv file found without
// overriding anything already set in the environment.
func loadDotEnv() error {
	for _, path := range dotEnvPaths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		return LoadDotEnvFile(path)
	}
	return nil
}

// LoadDotEnvFile exports the KEY=value pairs in path that are not already
// present in the environment.
func LoadDotEnvFile(path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	for _, key := range v.AllKeys() {
		name := strings.ToUpper(key)
		if _, set := os.LookupEnv(name); set {
			continue
		}
		if err := os.Setenv(name, v.GetString(key)); err != nil {
			return fmt.Errorf("failed to export %s: %w", name, err)
		}
	}
	return nil
}
