package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable name, e.g. AUTHAPP_API_BASE_URL.
const EnvPrefix = "AUTHAPP"

// Supported durable state backends.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Config holds configuration for the authapp client.
//
// Precedence, lowest first: Default(), the YAML file, AUTHAPP_* environment
// variables, then CLI flags applied by the caller.
type Config struct {
	APIBaseURL     string        `yaml:"api_base_url" envconfig:"API_BASE_URL"`
	RequestTimeout time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT"`

	StateBackend string `yaml:"state_backend" envconfig:"STATE_BACKEND"`
	StatePath    string `yaml:"state_path" envconfig:"STATE_PATH"`
	RedisAddr    string `yaml:"redis_addr" envconfig:"REDIS_ADDR"`
	RedisPrefix  string `yaml:"redis_prefix" envconfig:"REDIS_PREFIX"`

	UIAddr string `yaml:"ui_addr" envconfig:"UI_ADDR"`

	LogLevel  string `yaml:"log_level" envconfig:"LOG_LEVEL"`
	LogFormat string `yaml:"log_format" envconfig:"LOG_FORMAT"`
}

// Default returns sensible defaults.
func Default() Config {
	return Config{
		APIBaseURL:     "http://localhost:8080/api",
		RequestTimeout: 10 * time.Second,
		StateBackend:   BackendSQLite,
		RedisAddr:      "127.0.0.1:6379",
		RedisPrefix:    "authapp:",
		UIAddr:         "127.0.0.1:5173",
		LogLevel:       "info",
		LogFormat:      "text",
	}
}

// Dir returns the per-user configuration directory (~/.authapp).
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("find home directory: %w", err)
	}
	return filepath.Join(home, ".authapp"), nil
}

// Load builds a Config from defaults, the YAML file at path, and the
// environment. An empty path means ~/.authapp/config.yaml; a missing file is
// not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		dir, err := Dir()
		if err == nil {
			path = filepath.Join(dir, "config.yaml")
		}
	}
	if path != "" {
		if err := cfg.mergeFile(path, explicit); err != nil {
			return nil, err
		}
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	if cfg.StatePath == "" && cfg.StateBackend == BackendSQLite {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		cfg.StatePath = filepath.Join(dir, "state.db")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) mergeFile(path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid api base url %q", c.APIBaseURL)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %s", c.RequestTimeout)
	}
	switch strings.ToLower(c.StateBackend) {
	case BackendSQLite:
		if c.StatePath == "" {
			return errors.New("state path must be set for the sqlite backend")
		}
	case BackendRedis:
		if c.RedisAddr == "" {
			return errors.New("redis address must be set for the redis backend")
		}
	default:
		return fmt.Errorf("unknown state backend %q (want %s or %s)", c.StateBackend, BackendSQLite, BackendRedis)
	}
	return nil
}
