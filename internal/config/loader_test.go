package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.toml")
	if err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}
	expected := Default()
	if cfg.Listen != expected.Listen {
		t.Errorf("expected listen %q, got %q", expected.Listen, cfg.Listen)
	}
}

func TestLoadValidTOML(t *testing.T) {
	content := `
listen = "0.0.0.0:8899"
log_level = "debug"
store_root = "/var/lib/exmdbsrv"

[timeouts]
call = "15s"
idle = "45m"

[limits]
max_sessions = 50
max_handles_per_session = 1024

[metrics]
enabled = true
address = ":9188"
path = "/metrics"

[ldap]
addresses = ["ldap://dc1.example.com"]
bind_dn = "cn=svc,dc=example,dc=com"
pool_size = 8
`
	path := createTempConfig(t, content)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Listen != "0.0.0.0:8899" {
		t.Errorf("listen = %q, want '0.0.0.0:8899'", cfg.Listen)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log_level = %q, want 'debug'", cfg.LogLevel)
	}
	if cfg.Limits.MaxSessions != 50 {
		t.Errorf("max_sessions = %d, want 50", cfg.Limits.MaxSessions)
	}
	if cfg.Timeouts.Call != "15s" {
		t.Errorf("timeouts.call = %q, want '15s'", cfg.Timeouts.Call)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Address != ":9188" {
		t.Errorf("metrics = %+v, want enabled at ':9188'", cfg.Metrics)
	}
	if len(cfg.LDAP.Addresses) != 1 || cfg.LDAP.PoolSize != 8 {
		t.Errorf("ldap = %+v", cfg.LDAP)
	}
}

func TestApplyFlagsOverridesConfigFile(t *testing.T) {
	cfg := Default()
	f := &Flags{
		Listen:    "10.0.0.1:9000",
		LogLevel:  "warn",
		StoreRoot: "/mnt/exmdb",
	}
	cfg = ApplyFlags(cfg, f)

	if cfg.Listen != "10.0.0.1:9000" {
		t.Errorf("listen = %q, want override applied", cfg.Listen)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("log_level = %q, want override applied", cfg.LogLevel)
	}
	if cfg.StoreRoot != "/mnt/exmdb" {
		t.Errorf("store_root = %q, want override applied", cfg.StoreRoot)
	}
}

func createTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to create temp config: %v", err)
	}
	return path
}
