package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"rankview/adapters/redis"
	"rankview/adapters/sqlx"
)

// Environment represents the deployment environment
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Config holds the complete application configuration
type Config struct {
	// Environment and profile settings
	Environment Environment `json:"environment" yaml:"environment" toml:"environment" env:"RANKVIEW_ENV"`
	Profile     string      `json:"profile" yaml:"profile" toml:"profile" env:"RANKVIEW_PROFILE"`

	Server    ServerConfig    `json:"server" yaml:"server" toml:"server"`
	Storage   StorageConfig   `json:"storage" yaml:"storage" toml:"storage"`
	Logging   LoggingConfig   `json:"logging" yaml:"logging" toml:"logging"`
	Security  SecurityConfig  `json:"security" yaml:"security" toml:"security"`
	ViewState ViewStateConfig `json:"viewstate" yaml:"viewstate" toml:"viewstate"`
	Webhooks  WebhookConfig   `json:"webhooks" yaml:"webhooks" toml:"webhooks"`
	Analytics AnalyticsConfig `json:"analytics" yaml:"analytics" toml:"analytics"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Address           string        `json:"address" yaml:"address" toml:"address" env:"RANKVIEW_SERVER_ADDR"`
	PathPrefix        string        `json:"path_prefix" yaml:"path_prefix" toml:"path_prefix" env:"RANKVIEW_SERVER_PATH_PREFIX"`
	CORSOrigin        string        `json:"cors_origin" yaml:"cors_origin" toml:"cors_origin" env:"RANKVIEW_SERVER_CORS_ORIGIN"`
	ReadTimeout       time.Duration `json:"read_timeout" yaml:"read_timeout" toml:"read_timeout" env:"RANKVIEW_SERVER_READ_TIMEOUT"`
	WriteTimeout      time.Duration `json:"write_timeout" yaml:"write_timeout" toml:"write_timeout" env:"RANKVIEW_SERVER_WRITE_TIMEOUT"`
	IdleTimeout       time.Duration `json:"idle_timeout" yaml:"idle_timeout" toml:"idle_timeout" env:"RANKVIEW_SERVER_IDLE_TIMEOUT"`
	ReadHeaderTimeout time.Duration `json:"read_header_timeout" yaml:"read_header_timeout" toml:"read_header_timeout" env:"RANKVIEW_SERVER_READ_HEADER_TIMEOUT"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" toml:"shutdown_timeout" env:"RANKVIEW_SERVER_SHUTDOWN_TIMEOUT"`
	// WaitTimeout bounds ?wait=true requests.
	WaitTimeout time.Duration `json:"wait_timeout" yaml:"wait_timeout" toml:"wait_timeout" env:"RANKVIEW_SERVER_WAIT_TIMEOUT"`
}

// StorageConfig holds storage adapter configuration
type StorageConfig struct {
	Adapter string       `json:"adapter" yaml:"adapter" toml:"adapter" env:"RANKVIEW_STORAGE_ADAPTER"`
	Redis   redis.Config `json:"redis,omitempty" yaml:"redis,omitempty" toml:"redis,omitempty"`
	SQL     sqlx.Config  `json:"sql,omitempty" yaml:"sql,omitempty" toml:"sql,omitempty"`
	File    FileConfig   `json:"file,omitempty" yaml:"file,omitempty" toml:"file,omitempty"`
}

// FileConfig holds JSON file storage configuration
type FileConfig struct {
	Path string `json:"path" yaml:"path" toml:"path" env:"RANKVIEW_STORAGE_FILE_PATH"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string            `json:"level" yaml:"level" toml:"level" env:"RANKVIEW_LOG_LEVEL"`
	Format     string            `json:"format" yaml:"format" toml:"format" env:"RANKVIEW_LOG_FORMAT"`
	Output     string            `json:"output" yaml:"output" toml:"output" env:"RANKVIEW_LOG_OUTPUT"`
	Attributes map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty" toml:"attributes,omitempty" env:"RANKVIEW_LOG_ATTRIBUTES"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	EnableRateLimit bool            `json:"enable_rate_limit" yaml:"enable_rate_limit" toml:"enable_rate_limit" env:"RANKVIEW_SECURITY_RATE_LIMIT_ENABLED"`
	RateLimit       RateLimitConfig `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty" toml:"rate_limit,omitempty"`
	APIKeys         []string        `json:"api_keys,omitempty" yaml:"api_keys,omitempty" toml:"api_keys,omitempty" env:"RANKVIEW_SECURITY_API_KEYS"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int           `json:"requests_per_minute" yaml:"requests_per_minute" toml:"requests_per_minute" env:"RANKVIEW_SECURITY_RATE_LIMIT_RPM"`
	BurstSize         int           `json:"burst_size" yaml:"burst_size" toml:"burst_size" env:"RANKVIEW_SECURITY_RATE_LIMIT_BURST"`
	CleanupInterval   time.Duration `json:"cleanup_interval" yaml:"cleanup_interval" toml:"cleanup_interval" env:"RANKVIEW_SECURITY_RATE_LIMIT_CLEANUP"`
}

// ViewStateConfig tunes the leaderboard and profile view models.
type ViewStateConfig struct {
	// Source is "mock" for the canned delayed data source or "storage" to read
	// leaderboards from the configured storage adapter.
	Source           string        `json:"source" yaml:"source" toml:"source" env:"RANKVIEW_VIEW_SOURCE"`
	DefaultTimeFrame string        `json:"default_timeframe" yaml:"default_timeframe" toml:"default_timeframe" env:"RANKVIEW_VIEW_DEFAULT_TIMEFRAME"`
	RacePolicy       string        `json:"race_policy" yaml:"race_policy" toml:"race_policy" env:"RANKVIEW_VIEW_RACE_POLICY"`
	MockLatency      time.Duration `json:"mock_latency" yaml:"mock_latency" toml:"mock_latency" env:"RANKVIEW_VIEW_MOCK_LATENCY"`
	LeaderboardSize  int           `json:"leaderboard_size" yaml:"leaderboard_size" toml:"leaderboard_size" env:"RANKVIEW_VIEW_LEADERBOARD_SIZE"`
	SubscriberBuffer int           `json:"subscriber_buffer" yaml:"subscriber_buffer" toml:"subscriber_buffer" env:"RANKVIEW_VIEW_SUBSCRIBER_BUFFER"`
	FetchTimeout     time.Duration `json:"fetch_timeout" yaml:"fetch_timeout" toml:"fetch_timeout" env:"RANKVIEW_VIEW_FETCH_TIMEOUT"`
	// Dispatch selects the event bus mode: "sync" or "async".
	Dispatch string `json:"dispatch" yaml:"dispatch" toml:"dispatch" env:"RANKVIEW_VIEW_DISPATCH"`
	// SeedDemoProfiles preloads alice, bob and carl into the profile store.
	SeedDemoProfiles bool `json:"seed_demo_profiles" yaml:"seed_demo_profiles" toml:"seed_demo_profiles" env:"RANKVIEW_VIEW_SEED_DEMO_PROFILES"`
	// QuietProfileUpdates logs failed profile edits without setting the
	// profile's error slot or publishing command_failed.
	QuietProfileUpdates bool `json:"quiet_profile_updates" yaml:"quiet_profile_updates" toml:"quiet_profile_updates" env:"RANKVIEW_VIEW_QUIET_PROFILE_UPDATES"`
}

// WebhookConfig configures outbound event delivery.
type WebhookConfig struct {
	Endpoints []string      `json:"endpoints,omitempty" yaml:"endpoints,omitempty" toml:"endpoints,omitempty" env:"RANKVIEW_WEBHOOK_ENDPOINTS"`
	Events    []string      `json:"events,omitempty" yaml:"events,omitempty" toml:"events,omitempty" env:"RANKVIEW_WEBHOOK_EVENTS"`
	Secret    string        `json:"secret,omitempty" yaml:"secret,omitempty" toml:"secret,omitempty" env:"RANKVIEW_WEBHOOK_SECRET"`
	Timeout   time.Duration `json:"timeout" yaml:"timeout" toml:"timeout" env:"RANKVIEW_WEBHOOK_TIMEOUT"`
	QueueSize int           `json:"queue_size" yaml:"queue_size" toml:"queue_size" env:"RANKVIEW_WEBHOOK_QUEUE_SIZE"`
}

// AnalyticsConfig controls the in-process command statistics.
type AnalyticsConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled" toml:"enabled" env:"RANKVIEW_ANALYTICS_ENABLED"`
	// Path serves the collected statistics under the API prefix.
	Path string `json:"path" yaml:"path" toml:"path" env:"RANKVIEW_ANALYTICS_PATH"`
	// ExportTarget is "stdout" or an http(s) URL; empty disables export.
	ExportTarget   string        `json:"export_target,omitempty" yaml:"export_target,omitempty" toml:"export_target,omitempty" env:"RANKVIEW_ANALYTICS_EXPORT_TARGET"`
	ExportAPIKey   string        `json:"export_api_key,omitempty" yaml:"export_api_key,omitempty" toml:"export_api_key,omitempty" env:"RANKVIEW_ANALYTICS_EXPORT_API_KEY"`
	ExportInterval time.Duration `json:"export_interval" yaml:"export_interval" toml:"export_interval" env:"RANKVIEW_ANALYTICS_EXPORT_INTERVAL"`
}

// Validate validates security settings.
func (s SecurityConfig) Validate() error {
	var errs []string
	if s.EnableRateLimit {
		if s.RateLimit.RequestsPerMinute <= 0 {
			errs = append(errs, "rate_limit.requests_per_minute must be > 0 when rate limiting is enabled")
		}
		if s.RateLimit.BurstSize <= 0 {
			errs = append(errs, "rate_limit.burst_size must be > 0 when rate limiting is enabled")
		}
	}
	for i, key := range s.APIKeys {
		if strings.TrimSpace(key) == "" {
			errs = append(errs, fmt.Sprintf("api_keys[%d] is empty", i))
		}
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// Load loads configuration from environment variables and validates it.
// A .env file in the working directory is applied first when present.
func Load() (*Config, error) {
	if err := LoadEnvFiles(); err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

type format int

const (
	formatJSON format = iota
	formatTOML
	formatYAML
)

// validateConfigPath validates that the config file path is safe and returns its format
func validateConfigPath(path string) (format, error) {
	if path == "" {
		return 0, errors.New("config file path cannot be empty")
	}

	cleanPath := filepath.Clean(path)

	var f format
	switch strings.ToLower(filepath.Ext(cleanPath)) {
	case ".json":
		f = formatJSON
	case ".toml":
		f = formatTOML
	case ".yaml", ".yml":
		f = formatYAML
	default:
		return 0, errors.New("config file must have a .json, .toml, .yaml or .yml extension")
	}

	if _, err := os.Stat(cleanPath); err != nil {
		return 0, fmt.Errorf("config file not accessible: %w", err)
	}

	return f, nil
}

// LoadFromFile loads configuration from a JSON, TOML or YAML file. Values from
// .env files and environment variables override the file.
func LoadFromFile(path string) (*Config, error) {
	f, err := validateConfigPath(path)
	if err != nil {
		return nil, fmt.Errorf("invalid config file path: %w", err)
	}

	data, err := os.ReadFile(filepath.Clean(path)) // #nosec G304 - Path validated above
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := decode(f, data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := LoadEnvFiles(); err != nil {
		return nil, err
	}
	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func decode(f format, data []byte, cfg *Config) error {
	switch f {
	case formatTOML:
		_, err := toml.Decode(string(data), cfg)
		return err
	case formatYAML:
		return yaml.Unmarshal(data, cfg)
	default:
		return json.Unmarshal(data, cfg)
	}
}

// LoadProfile returns the defaults tuned for a named environment.
func LoadProfile(name string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.Profile = name
	switch Environment(name) {
	case EnvDevelopment:
		cfg.Logging.Level = "debug"
		cfg.Logging.Format = "text"
		cfg.ViewState.SeedDemoProfiles = true
	case EnvTesting:
		cfg.Environment = EnvTesting
		cfg.ViewState.MockLatency = 10 * time.Millisecond
		cfg.ViewState.Dispatch = "sync"
		cfg.ViewState.SeedDemoProfiles = true
	case EnvStaging:
		cfg.Environment = EnvStaging
		cfg.Storage.Adapter = "redis"
		cfg.ViewState.Source = "storage"
		cfg.Security.EnableRateLimit = true
	case EnvProduction:
		cfg.Environment = EnvProduction
		cfg.Storage.Adapter = "sql"
		cfg.ViewState.Source = "storage"
		cfg.ViewState.SeedDemoProfiles = false
		cfg.Server.CORSOrigin = ""
		cfg.Security.EnableRateLimit = true
		cfg.Logging.Level = "warn"
	default:
		return nil, fmt.Errorf("unknown profile %q", name)
	}
	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for development
func DefaultConfig() *Config {
	return &Config{
		Environment: EnvDevelopment,
		Profile:     "default",
		Server: ServerConfig{
			Address:           ":8080",
			PathPrefix:        "/api",
			CORSOrigin:        "*",
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   30 * time.Second,
			WaitTimeout:       10 * time.Second,
		},
		Storage: StorageConfig{
			Adapter: "memory",
			Redis:   redis.DefaultConfig(),
			SQL:     sqlx.DefaultConfig(),
			File: FileConfig{
				Path: "./data/rankview.json",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			EnableRateLimit: false,
			RateLimit: RateLimitConfig{
				RequestsPerMinute: 60,
				BurstSize:         10,
				CleanupInterval:   5 * time.Minute,
			},
			APIKeys: []string{},
		},
		ViewState: ViewStateConfig{
			Source:           "mock",
			DefaultTimeFrame: "weekly",
			RacePolicy:       "last_completion",
			MockLatency:      500 * time.Millisecond,
			SubscriberBuffer: 16,
			FetchTimeout:     5 * time.Second,
			Dispatch:         "async",
			SeedDemoProfiles: true,
		},
		Webhooks: WebhookConfig{
			Timeout:   2 * time.Second,
			QueueSize: 256,
		},
		Analytics: AnalyticsConfig{
			Enabled:        true,
			Path:           "/stats",
			ExportInterval: time.Minute,
		},
	}
}

// Validate validates the configuration and returns detailed error messages
func (c *Config) Validate() error {
	var errs []string

	if c.Environment == "" {
		errs = append(errs, "environment cannot be empty")
	}

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Storage.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("storage config: %v", err))
	}

	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("logging config: %v", err))
	}

	if err := c.Security.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("security config: %v", err))
	}

	if err := c.ViewState.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("viewstate config: %v", err))
	}

	if err := c.Webhooks.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("webhooks config: %v", err))
	}

	if err := c.Analytics.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("analytics config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

// String returns a JSON representation of the config (with secrets redacted)
func (c *Config) String() string {
	cfg := *c

	if cfg.Storage.SQL.DSN != "" {
		cfg.Storage.SQL.DSN = "[REDACTED]"
	}
	if cfg.Storage.Redis.Password != "" {
		cfg.Storage.Redis.Password = "[REDACTED]"
	}
	if cfg.Analytics.ExportAPIKey != "" {
		cfg.Analytics.ExportAPIKey = "[REDACTED]"
	}
	if cfg.Webhooks.Secret != "" {
		cfg.Webhooks.Secret = "[REDACTED]"
	}
	if len(cfg.Security.APIKeys) > 0 {
		cfg.Security.APIKeys = []string{fmt.Sprintf("[REDACTED x%d]", len(c.Security.APIKeys))}
	}

	data, _ := json.MarshalIndent(cfg, "", "  ")
	return string(data)
}
