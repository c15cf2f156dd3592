package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"rankview/adapters/sqlx"
	"rankview/core"
	"rankview/viewstate"
)

// Validate validates server configuration
func (s *ServerConfig) Validate() error {
	var errs []string

	if s.Address == "" {
		errs = append(errs, "address cannot be empty")
	}

	if s.ReadTimeout <= 0 {
		errs = append(errs, "read_timeout must be positive")
	}

	if s.WriteTimeout <= 0 {
		errs = append(errs, "write_timeout must be positive")
	}

	if s.IdleTimeout <= 0 {
		errs = append(errs, "idle_timeout must be positive")
	}

	if s.ReadHeaderTimeout <= 0 {
		errs = append(errs, "read_header_timeout must be positive")
	}

	if s.ShutdownTimeout <= 0 {
		errs = append(errs, "shutdown_timeout must be positive")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

// Validate validates storage configuration
func (s *StorageConfig) Validate() error {
	var errs []string

	validAdapters := []string{"memory", "redis", "sql", "file"}
	isValidAdapter := false
	for _, adapter := range validAdapters {
		if s.Adapter == adapter {
			isValidAdapter = true
			break
		}
	}

	if !isValidAdapter {
		errs = append(errs, fmt.Sprintf("adapter must be one of: %s", strings.Join(validAdapters, ", ")))
	}

	// Validate adapter-specific configs
	switch s.Adapter {
	case "file":
		if err := s.File.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("file config: %v", err))
		}
	case "redis":
		if s.Redis.Addr == "" {
			errs = append(errs, "redis config: addr cannot be empty")
		}
	case "sql":
		switch s.SQL.Driver {
		case sqlx.DriverPostgres, sqlx.DriverMySQL, sqlx.DriverSQLite:
		default:
			errs = append(errs, fmt.Sprintf("sql config: unsupported driver %q", s.SQL.Driver))
		}
		if s.SQL.DSN == "" {
			errs = append(errs, "sql config: dsn cannot be empty")
		}
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

// Validate validates file storage configuration
func (f *FileConfig) Validate() error {
	if f.Path == "" {
		return errors.New("path cannot be empty")
	}
	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	var errs []string

	validLevels := []string{"debug", "info", "warn", "error"}
	isValidLevel := false
	for _, level := range validLevels {
		if l.Level == level {
			isValidLevel = true
			break
		}
	}

	if !isValidLevel {
		errs = append(errs, fmt.Sprintf("level must be one of: %s", strings.Join(validLevels, ", ")))
	}

	validFormats := []string{"json", "text"}
	isValidFormat := false
	for _, format := range validFormats {
		if l.Format == format {
			isValidFormat = true
			break
		}
	}

	if !isValidFormat {
		errs = append(errs, fmt.Sprintf("format must be one of: %s", strings.Join(validFormats, ", ")))
	}

	validOutputs := []string{"stdout", "stderr"}
	isValidOutput := false
	for _, output := range validOutputs {
		if l.Output == output {
			isValidOutput = true
			break
		}
	}

	if !isValidOutput {
		errs = append(errs, fmt.Sprintf("output must be one of: %s", strings.Join(validOutputs, ", ")))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

// Validate validates view-state configuration
func (v *ViewStateConfig) Validate() error {
	var errs []string

	if v.Source != "mock" && v.Source != "storage" {
		errs = append(errs, "source must be one of: mock, storage")
	}

	if _, err := core.ParseTimeFrame(v.DefaultTimeFrame); err != nil {
		errs = append(errs, fmt.Sprintf("default_timeframe: %v", err))
	}

	if _, err := viewstate.ParseRacePolicy(v.RacePolicy); err != nil {
		errs = append(errs, fmt.Sprintf("race_policy: %v", err))
	}

	if v.Dispatch != "sync" && v.Dispatch != "async" {
		errs = append(errs, "dispatch must be one of: sync, async")
	}

	if v.MockLatency < 0 {
		errs = append(errs, "mock_latency cannot be negative")
	}

	if v.FetchTimeout < 0 {
		errs = append(errs, "fetch_timeout cannot be negative")
	}

	if v.LeaderboardSize < 0 {
		errs = append(errs, "leaderboard_size cannot be negative")
	}

	if v.SubscriberBuffer < 1 {
		errs = append(errs, "subscriber_buffer must be positive")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

// Validate validates webhook configuration
func (w *WebhookConfig) Validate() error {
	var errs []string

	for i, ep := range w.Endpoints {
		u, err := url.Parse(ep)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Sprintf("endpoints[%d] must be an absolute http(s) URL", i))
		}
	}

	for i, ev := range w.Events {
		switch core.EventType(ev) {
		case core.EventLeaderboardChanged, core.EventProfileChanged, core.EventProfileUpdated, core.EventLoggedOut, core.EventCommandFailed:
		default:
			errs = append(errs, fmt.Sprintf("events[%d]: unknown event type %q", i, ev))
		}
	}

	if len(w.Endpoints) > 0 {
		if w.Timeout <= 0 {
			errs = append(errs, "timeout must be positive when endpoints are set")
		}
		if w.QueueSize <= 0 {
			errs = append(errs, "queue_size must be positive when endpoints are set")
		}
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

// Validate validates analytics configuration
func (a *AnalyticsConfig) Validate() error {
	if !a.Enabled {
		return nil
	}

	var errs []string

	if !strings.HasPrefix(a.Path, "/") {
		errs = append(errs, "path must start with / when analytics are enabled")
	}

	if a.ExportTarget != "" {
		if a.ExportTarget != "stdout" {
			u, err := url.Parse(a.ExportTarget)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				errs = append(errs, "export_target must be stdout or an absolute http(s) URL")
			}
		}
		if a.ExportInterval <= 0 {
			errs = append(errs, "export_interval must be positive when export_target is set")
		}
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}
