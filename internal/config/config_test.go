package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIBaseURL != "http://localhost:8080/api" {
		t.Errorf("APIBaseURL = %q", cfg.APIBaseURL)
	}
	if cfg.RequestTimeout != 10*time.Second {
		t.Errorf("RequestTimeout = %s", cfg.RequestTimeout)
	}
	if !strings.HasSuffix(cfg.StatePath, filepath.Join(".authapp", "state.db")) {
		t.Errorf("StatePath = %q", cfg.StatePath)
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeConfig(t, `
api_base_url: http://api.internal:9000/api
request_timeout: 3s
state_path: /tmp/authapp-test.db
log_level: debug
`)
	t.Setenv("AUTHAPP_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIBaseURL != "http://api.internal:9000/api" {
		t.Errorf("APIBaseURL = %q, want file value", cfg.APIBaseURL)
	}
	if cfg.RequestTimeout != 3*time.Second {
		t.Errorf("RequestTimeout = %s, want 3s", cfg.RequestTimeout)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, env should win over file", cfg.LogLevel)
	}
	if cfg.StatePath != "/tmp/authapp-test.db" {
		t.Errorf("StatePath = %q", cfg.StatePath)
	}
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"ok", func(c *Config) {}, ""},
		{"bad url", func(c *Config) { c.APIBaseURL = "localhost" }, "invalid api base url"},
		{"zero timeout", func(c *Config) { c.RequestTimeout = 0 }, "request timeout"},
		{"unknown backend", func(c *Config) { c.StateBackend = "etcd" }, "unknown state backend"},
		{"redis without addr", func(c *Config) { c.StateBackend = BackendRedis; c.RedisAddr = "" }, "redis address"},
		{"sqlite without path", func(c *Config) { c.StatePath = "" }, "state path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.StatePath = "/tmp/state.db"
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
