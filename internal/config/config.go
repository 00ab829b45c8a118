package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Ledger backends accepted by ledger_type.
const (
	LedgerBBolt = "bbolt"
	LedgerNone  = "none"
)

// Config holds the application configuration loaded from files and environment variables.
type Config struct {
	AppName  string `mapstructure:"app_name"`
	Env      string `mapstructure:"app_env"`
	LogLevel string `mapstructure:"log_level"`

	APIKey                string        `mapstructure:"fileio_api_key"`
	APIKeyFile            string        `mapstructure:"fileio_api_key_file"`
	BaseURL               string        `mapstructure:"fileio_base_url"`
	RequestTimeoutSeconds int64         `mapstructure:"request_timeout_seconds"`
	RequestTimeout        time.Duration `mapstructure:"-"`

	RateLimit   float64 `mapstructure:"rate_limit"`
	RateBurst   int     `mapstructure:"rate_burst"`
	Concurrency int     `mapstructure:"concurrency"`

	LedgerType            string        `mapstructure:"ledger_type"`
	LedgerPath            string        `mapstructure:"ledger_path"`
	LedgerTTLSeconds      int64         `mapstructure:"ledger_ttl_seconds"`
	LedgerCleanupSeconds  int64         `mapstructure:"ledger_cleanup_interval_seconds"`
	LedgerTTL             time.Duration `mapstructure:"-"`
	LedgerCleanupInterval time.Duration `mapstructure:"-"`

	PublishersFile string `mapstructure:"publishers_file"`
}

// Load reads configuration from environment variables and config files.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "fileio-go")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("fileio_api_key", "")
	v.SetDefault("fileio_api_key_file", "")
	v.SetDefault("fileio_base_url", "https://file.io/")
	v.SetDefault("request_timeout_seconds", 60)
	v.SetDefault("rate_limit", 3.0) // calls per second
	v.SetDefault("rate_burst", 1)
	v.SetDefault("concurrency", 4)
	v.SetDefault("ledger_type", LedgerBBolt)
	v.SetDefault("ledger_path", "./data/ledger.db")
	v.SetDefault("ledger_ttl_seconds", int64((14*24*time.Hour)/time.Second))
	v.SetDefault("ledger_cleanup_interval_seconds", int64((1*time.Hour)/time.Second))
	v.SetDefault("publishers_file", "")

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.resolveAPIKey(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// resolveAPIKey reads the key from fileio_api_key_file when no inline key is set.
func (c *Config) resolveAPIKey() error {
	c.APIKey = strings.TrimSpace(c.APIKey)
	if c.APIKey != "" || strings.TrimSpace(c.APIKeyFile) == "" {
		return nil
	}
	raw, err := os.ReadFile(c.APIKeyFile)
	if err != nil {
		return fmt.Errorf("read fileio_api_key_file: %w", err)
	}
	c.APIKey = strings.TrimSpace(string(raw))
	if c.APIKey == "" {
		return fmt.Errorf("fileio_api_key_file %s is empty", c.APIKeyFile)
	}
	return nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return fmt.Errorf("fileio_base_url is required")
	}
	if c.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("invalid request_timeout_seconds (must be positive seconds)")
	}
	c.RequestTimeout = time.Duration(c.RequestTimeoutSeconds) * time.Second

	if c.RateLimit < 0 {
		return fmt.Errorf("invalid rate_limit (must be zero for unlimited or positive)")
	}
	if c.RateBurst <= 0 {
		return fmt.Errorf("invalid rate_burst (must be positive)")
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("invalid concurrency (must be positive)")
	}

	c.LedgerType = strings.ToLower(strings.TrimSpace(c.LedgerType))
	switch c.LedgerType {
	case LedgerBBolt:
		if strings.TrimSpace(c.LedgerPath) == "" {
			return fmt.Errorf("ledger_path is required for the bbolt ledger")
		}
	case LedgerNone:
	default:
		return fmt.Errorf("invalid ledger_type %q (want %q or %q)", c.LedgerType, LedgerBBolt, LedgerNone)
	}

	if c.LedgerTTLSeconds <= 0 {
		return fmt.Errorf("invalid ledger_ttl_seconds (must be positive seconds)")
	}
	if c.LedgerCleanupSeconds <= 0 {
		return fmt.Errorf("invalid ledger_cleanup_interval_seconds (must be positive seconds)")
	}
	c.LedgerTTL = time.Duration(c.LedgerTTLSeconds) * time.Second
	c.LedgerCleanupInterval = time.Duration(c.LedgerCleanupSeconds) * time.Second
	return nil
}

// Redacted returns a copy safe to log.
func (c Config) Redacted() Config {
	if c.APIKey != "" {
		c.APIKey = "***"
	}
	return c
}
