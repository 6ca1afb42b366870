// Package app provides the core application initialization and lifecycle management.
package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/naitridoshi/catalog-harvest/internal/config"
	"github.com/naitridoshi/catalog-harvest/internal/fetch"
	"github.com/naitridoshi/catalog-harvest/internal/pacing"
	"github.com/naitridoshi/catalog-harvest/internal/ratelimit"
)

// Application holds all shared dependencies and manages their lifecycle.
//
// It is created once at startup and shared across all CLI commands.
// Use Close() to ensure proper resource cleanup on shutdown.
type Application struct {
	Config      *config.Config
	Logger      *zerolog.Logger
	HTTPClient  *http.Client
	RateLimiter ratelimit.RateLimiter
	Pacer       *pacing.Policy
	Fetcher     *fetch.Client
	startTime   time.Time
}

// New creates and initializes a new Application with all dependencies.
//
// It performs the following initialization steps:
//   - Configures logging based on the provided config
//   - Creates the rate limiter for domain-based request throttling
//   - Initializes the shared HTTP client (with optional proxy)
//   - Builds the pacing policy and the fetch client on top of both
//
// If any step fails, an error is returned and no resources are allocated.
func New(ctx context.Context, cfg *config.Config) (*Application, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	logLevel := zerolog.ErrorLevel // default: suppress non-verbose info logs
	switch cfg.LogLevel {
	case "debug":
		logLevel = zerolog.DebugLevel
	case "warn":
		logLevel = zerolog.WarnLevel
	case "error":
		logLevel = zerolog.ErrorLevel
	// Treat "info" as non-verbose (don't display info logs unless -v is used)
	default:
		logLevel = zerolog.ErrorLevel
	}
	zerolog.SetGlobalLevel(logLevel)

	var logWriter io.Writer
	if cfg.JSONLog {
		// JSON logs to stderr
		logWriter = os.Stderr
	} else {
		// Human-friendly console output otherwise
		logWriter = zerolog.NewConsoleWriter()
	}

	logger := log.Output(logWriter).With().Timestamp().Logger()
	log.Logger = logger

	logger.Debug().
		Str("level", cfg.LogLevel).
		Bool("json", cfg.JSONLog).
		Msg("Logger initialized")

	rateLimiter := ratelimit.NewDomainLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	logger.Debug().
		Float64("rps", cfg.RateLimitRPS).
		Int("burst", cfg.RateLimitBurst).
		Msg("Rate limiter initialized")

	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DisableKeepAlives:   false,
	}
	if cfg.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy url: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
		logger.Debug().Str("proxy", cfg.Proxy).Msg("Proxy configured")
	}
	httpClient := &http.Client{Transport: transport}
	logger.Debug().
		Dur("timeout", cfg.HTTPTimeout).
		Msg("HTTP client initialized")

	pacer := pacing.Default()
	pacer.RetryStep = cfg.RetryStep
	if cfg.DisablePacing {
		pacer = pacing.None()
		pacer.RetryStep = cfg.RetryStep
		logger.Warn().Msg("Pacing disabled; target sites may throttle or block")
	}

	fetcher := fetch.New(fetch.Options{
		HTTPClient:  httpClient,
		Limiter:     rateLimiter,
		Pacer:       pacer,
		MaxAttempts: cfg.MaxAttempts,
		Timeout:     cfg.HTTPTimeout,
		UserAgent:   cfg.UserAgent,
	})

	app := &Application{
		Config:      cfg,
		Logger:      &logger,
		HTTPClient:  httpClient,
		RateLimiter: rateLimiter,
		Pacer:       pacer,
		Fetcher:     fetcher,
		startTime:   time.Now(),
	}

	logger.Info().Msg("Application initialized successfully")
	return app, nil
}

// Close gracefully shuts down the application and all its resources.
//
// Any errors during shutdown are logged but do not prevent other shutdown
// steps.
func (a *Application) Close(ctx context.Context) error {
	a.Logger.Info().Msg("Shutting down application")

	if a.HTTPClient != nil {
		a.HTTPClient.CloseIdleConnections()
	}

	uptime := time.Since(a.startTime)
	a.Logger.Info().Dur("uptime", uptime).Msg("Application shutdown complete")
	return nil
}

// Uptime returns how long the application has been running.
func (a *Application) Uptime() time.Duration {
	return time.Since(a.startTime)
}
