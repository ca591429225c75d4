// Package config provides configuration management for exmdbsrv.
//
// Grounded on infodancer-pop3d's internal/config package: a TOML file
// loaded into a typed Config, flag overrides on top, a Default() and a
// Validate().
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds exmdbsrv's full configuration.
type Config struct {
	// Listen is the network address exmdbsrv's RPC listener binds to.
	Listen string `toml:"listen"`
	// LogLevel names a verbosity ("debug", "info", "warn", "error"). It
	// is loaded and can be overridden by flag; internal/auditlog does
	// not filter on it.
	LogLevel string `toml:"log_level"`
	// StoreRoot is the directory under which each mailbox's
	// sqlitestore file lives, as "<StoreRoot>/<Logon.Dir>.sqlite3".
	StoreRoot string `toml:"store_root"`

	Timeouts TimeoutsConfig `toml:"timeouts"`
	Limits   LimitsConfig   `toml:"limits"`
	Metrics  MetricsConfig  `toml:"metrics"`
	LDAP     LDAPConfig     `toml:"ldap"`
}

// TimeoutsConfig defines timeout durations, stored as duration strings
// so the file format stays human-editable.
type TimeoutsConfig struct {
	Call string `toml:"call"`
	Idle string `toml:"idle"`
}

// LimitsConfig defines resource limits.
type LimitsConfig struct {
	MaxSessions       int `toml:"max_sessions"`
	MaxHandlesPerSession int `toml:"max_handles_per_session"`
}

// MetricsConfig configures the Prometheus metrics HTTP server.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Address string `toml:"address"`
	Path    string `toml:"path"`
}

// LDAPConfig configures the exmdb/ldappool resource pool used for
// directory-backed principal lookups.
type LDAPConfig struct {
	Addresses   []string `toml:"addresses"`
	BindDN      string   `toml:"bind_dn"`
	BindPass    string   `toml:"bind_pass"`
	PoolSize    int      `toml:"pool_size"`
}

// Default returns a Config with sensible default values.
func Default() Config {
	return Config{
		Listen:    "127.0.0.1:8899",
		LogLevel:  "info",
		StoreRoot: "./data",
		Timeouts: TimeoutsConfig{
			Call: "30s",
			Idle: "10m",
		},
		Limits: LimitsConfig{
			MaxSessions:          256,
			MaxHandlesPerSession: 4096,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Address: ":9187",
			Path:    "/metrics",
		},
		LDAP: LDAPConfig{
			PoolSize: 4,
		},
	}
}

// Validate checks that the configuration is usable and returns an
// error describing the first problem found.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return errors.New("listen address is required")
	}
	if c.StoreRoot == "" {
		return errors.New("store_root is required")
	}
	if c.Limits.MaxSessions <= 0 {
		return errors.New("max_sessions must be positive")
	}
	if c.Limits.MaxHandlesPerSession <= 0 {
		return errors.New("max_handles_per_session must be positive")
	}
	if c.Timeouts.Call != "" {
		if _, err := time.ParseDuration(c.Timeouts.Call); err != nil {
			return fmt.Errorf("invalid call timeout: %w", err)
		}
	}
	if c.Timeouts.Idle != "" {
		if _, err := time.ParseDuration(c.Timeouts.Idle); err != nil {
			return fmt.Errorf("invalid idle timeout: %w", err)
		}
	}
	if c.Metrics.Enabled {
		if c.Metrics.Address == "" {
			return errors.New("metrics address is required when metrics are enabled")
		}
		if c.Metrics.Path == "" {
			return errors.New("metrics path is required when metrics are enabled")
		}
	}
	if len(c.LDAP.Addresses) > 0 && c.LDAP.PoolSize <= 0 {
		return errors.New("ldap.pool_size must be positive when ldap addresses are configured")
	}
	return nil
}

// CallTimeout returns the per-call timeout, defaulting to 30s.
func (c *TimeoutsConfig) CallTimeout() time.Duration {
	return parseOr(c.Call, 30*time.Second)
}

// IdleTimeout returns the idle-session timeout, defaulting to 10m.
func (c *TimeoutsConfig) IdleTimeout() time.Duration {
	return parseOr(c.Idle, 10*time.Minute)
}

func parseOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
