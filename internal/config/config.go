package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

// Config holds run configuration values
type Config struct {
	// Logging
	LogLevel string
	JSONLog  bool

	// HTTP
	HTTPTimeout time.Duration
	UserAgent   string
	Proxy       string

	// Concurrency caps
	MaxGroups        int
	MaxPagesPerGroup int

	// Retry
	MaxAttempts int
	RetryStep   time.Duration

	// Rate limiting (per target domain)
	RateLimitRPS   float64
	RateLimitBurst int

	// Pacing
	DisablePacing bool

	// Run
	RunDeadline time.Duration
	OutputDir   string

	// Postgres sink (optional; empty DSN disables it)
	PostgresDSN   string
	PostgresTable string
}

// Load builds a Config by combining defaults, environment variables, and CLI
// flags. Caller should pass the root *cobra.Command so flags can be read.
func Load(cmd *cobra.Command) (*Config, error) {
	cfg := &Config{
		LogLevel:         DefaultLogLevel,
		JSONLog:          DefaultJSONLog,
		HTTPTimeout:      DefaultHTTPTimeout,
		UserAgent:        DefaultUserAgent,
		MaxGroups:        DefaultMaxGroups,
		MaxPagesPerGroup: DefaultMaxPagesPerGroup,
		MaxAttempts:      DefaultMaxAttempts,
		RetryStep:        DefaultRetryStep,
		RateLimitRPS:     DefaultRateLimitRPS,
		RateLimitBurst:   DefaultRateLimitBurst,
		OutputDir:        DefaultOutputDir,
	}

	// Override from environment variables
	if v := os.Getenv("HARVEST_USER_AGENT"); v != "" {
		cfg.UserAgent = v
	}
	if v := os.Getenv("HARVEST_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("HARVEST_OUTPUT_DIR"); v != "" {
		cfg.OutputDir = v
	}
	if v := os.Getenv("HARVEST_PG_DSN"); v != "" {
		cfg.PostgresDSN = v
	}
	if v := os.Getenv("HARVEST_PG_TABLE"); v != "" {
		cfg.PostgresTable = v
	}
	if v := os.Getenv("HARVEST_MAX_GROUPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxGroups = n
		}
	}
	if v := os.Getenv("HARVEST_MAX_PAGES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxPagesPerGroup = n
		}
	}

	// Read CLI flags if provided
	if cmd != nil {
		applyFlags(cmd, cfg)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func applyFlags(cmd *cobra.Command, cfg *Config) {
	flags := cmd.Flags()

	if f := flags.Lookup("user-agent"); f != nil && f.Changed {
		cfg.UserAgent = f.Value.String()
	}
	if f := flags.Lookup("proxy"); f != nil && f.Changed {
		cfg.Proxy = f.Value.String()
	}
	if f := flags.Lookup("timeout"); f != nil && f.Changed {
		if d, err := time.ParseDuration(f.Value.String()); err == nil {
			cfg.HTTPTimeout = d
		}
	}
	if f := flags.Lookup("deadline"); f != nil && f.Changed {
		if d, err := time.ParseDuration(f.Value.String()); err == nil {
			cfg.RunDeadline = d
		}
	}
	if f := flags.Lookup("max-groups"); f != nil && f.Changed {
		if n, err := strconv.Atoi(f.Value.String()); err == nil {
			cfg.MaxGroups = n
		}
	}
	if f := flags.Lookup("max-pages"); f != nil && f.Changed {
		if n, err := strconv.Atoi(f.Value.String()); err == nil {
			cfg.MaxPagesPerGroup = n
		}
	}
	if f := flags.Lookup("max-attempts"); f != nil && f.Changed {
		if n, err := strconv.Atoi(f.Value.String()); err == nil {
			cfg.MaxAttempts = n
		}
	}
	if f := flags.Lookup("output-dir"); f != nil && f.Changed {
		cfg.OutputDir = f.Value.String()
	}
	if f := flags.Lookup("no-pacing"); f != nil && f.Value.String() == "true" {
		cfg.DisablePacing = true
	}
	if f := flags.Lookup("json"); f != nil && f.Value.String() == "true" {
		cfg.JSONLog = true
	}
	if f := flags.Lookup("verbose"); f != nil && f.Value.String() == "true" {
		cfg.LogLevel = "debug"
	}
	if f := flags.Lookup("quiet"); f != nil && f.Value.String() == "true" {
		cfg.LogLevel = "error"
	}
	if f := flags.Lookup("pg-dsn"); f != nil && f.Changed {
		cfg.PostgresDSN = f.Value.String()
	}
	if f := flags.Lookup("pg-table"); f != nil && f.Changed {
		cfg.PostgresTable = f.Value.String()
	}
}
