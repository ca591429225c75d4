package config

import (
	"flag"
	"fmt"
	"os"

	toml "github.com/pelletier/go-toml/v2"
)

// Flags holds command-line flag values.
type Flags struct {
	ConfigPath string
	Listen     string
	LogLevel   string
	StoreRoot  string
}

// ParseFlags parses command-line flags and returns a Flags struct.
func ParseFlags() *Flags {
	f := &Flags{}
	flag.StringVar(&f.ConfigPath, "config", "./exmdbsrv.toml", "Path to configuration file")
	flag.StringVar(&f.Listen, "listen", "", "RPC listen address (overrides config)")
	flag.StringVar(&f.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.StringVar(&f.StoreRoot, "store-root", "", "Directory holding per-mailbox sqlite files")
	flag.Parse()
	return f
}

// Load parses a TOML configuration file and returns the Config. If the
// file does not exist, the default configuration is returned.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config file: %w", err)
	}

	var fileConfig Config
	if err := toml.Unmarshal(data, &fileConfig); err != nil {
		return cfg, fmt.Errorf("parsing config file: %w", err)
	}
	return mergeConfig(cfg, fileConfig), nil
}

// ApplyFlags merges command-line flag values into cfg. Non-empty flag
// values override config-file values.
func ApplyFlags(cfg Config, f *Flags) Config {
	if f.Listen != "" {
		cfg.Listen = f.Listen
	}
	if f.LogLevel != "" {
		cfg.LogLevel = f.LogLevel
	}
	if f.StoreRoot != "" {
		cfg.StoreRoot = f.StoreRoot
	}
	return cfg
}

// LoadWithFlags loads configuration from the path named in f, then
// applies f's overrides.
func LoadWithFlags(f *Flags) (Config, error) {
	cfg, err := Load(f.ConfigPath)
	if err != nil {
		return cfg, err
	}
	return ApplyFlags(cfg, f), nil
}

func mergeConfig(dst, src Config) Config {
	if src.Listen != "" {
		dst.Listen = src.Listen
	}
	if src.LogLevel != "" {
		dst.LogLevel = src.LogLevel
	}
	if src.StoreRoot != "" {
		dst.StoreRoot = src.StoreRoot
	}
	if src.Timeouts.Call != "" {
		dst.Timeouts.Call = src.Timeouts.Call
	}
	if src.Timeouts.Idle != "" {
		dst.Timeouts.Idle = src.Timeouts.Idle
	}
	if src.Limits.MaxSessions > 0 {
		dst.Limits.MaxSessions = src.Limits.MaxSessions
	}
	if src.Limits.MaxHandlesPerSession > 0 {
		dst.Limits.MaxHandlesPerSession = src.Limits.MaxHandlesPerSession
	}
	if src.Metrics.Enabled {
		dst.Metrics.Enabled = src.Metrics.Enabled
	}
	if src.Metrics.Address != "" {
		dst.Metrics.Address = src.Metrics.Address
	}
	if src.Metrics.Path != "" {
		dst.Metrics.Path = src.Metrics.Path
	}
	if len(src.LDAP.Addresses) > 0 {
		dst.LDAP.Addresses = src.LDAP.Addresses
	}
	if src.LDAP.BindDN != "" {
		dst.LDAP.BindDN = src.LDAP.BindDN
	}
	if src.LDAP.BindPass != "" {
		dst.LDAP.BindPass = src.LDAP.BindPass
	}
	if src.LDAP.PoolSize > 0 {
		dst.LDAP.PoolSize = src.LDAP.PoolSize
	}
	return dst
}
