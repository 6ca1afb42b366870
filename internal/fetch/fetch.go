// Package fetch issues the HTTP requests for work units. It is the only
// place in the engine where network I/O happens: one bounded-timeout request
// per attempt, transient failures retried on the fixed backoff progression,
// permanent failures surfaced immediately.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/naitridoshi/catalog-harvest/internal/pacing"
	"github.com/naitridoshi/catalog-harvest/internal/ratelimit"
	"github.com/naitridoshi/catalog-harvest/pkg/models"
)

// Client fetches work units over a shared connection pool. It is safe for
// concurrent use by multiple scheduler workers.
type Client struct {
	httpClient  *http.Client
	limiter     ratelimit.RateLimiter
	pacer       *pacing.Policy
	maxAttempts int
	timeout     time.Duration
	userAgent   string
	headers     map[string]string
}

// Options configures a fetch client.
type Options struct {
	HTTPClient  *http.Client
	Limiter     ratelimit.RateLimiter
	Pacer       *pacing.Policy
	MaxAttempts int
	Timeout     time.Duration
	UserAgent   string
	// Headers are applied to every request before per-unit overrides.
	Headers map[string]string
}

// New creates a fetch client. A nil HTTPClient gets a keep-alive transport
// shared by all workers.
func New(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}

	pacer := opts.Pacer
	if pacer == nil {
		pacer = pacing.Default()
	}

	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 4
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		httpClient:  httpClient,
		limiter:     opts.Limiter,
		pacer:       pacer,
		maxAttempts: maxAttempts,
		timeout:     timeout,
		userAgent:   opts.UserAgent,
		headers:     opts.Headers,
	}
}

// Fetch retrieves one work unit. Transient conditions (timeouts, connection
// errors, 429, 5xx) are retried with the fixed backoff progression up to the
// configured attempt limit; anything else fails permanently on the first
// attempt. Only success or a terminal permanent failure is returned.
func (c *Client) Fetch(ctx context.Context, unit models.WorkUnit) models.FetchOutcome {
	if err := validateURL(unit.URL); err != nil {
		return models.FetchOutcome{
			Kind:     models.OutcomePermanent,
			Attempts: 0,
			Err:      err,
		}
	}

	var lastErr error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			// Fixed progression before each retry: 3s, 6s, 9s, ...
			if err := c.pacer.WaitRetry(ctx, attempt-1); err != nil {
				return models.FetchOutcome{
					Kind:     models.OutcomePermanent,
					Attempts: attempt - 1,
					Err:      fmt.Errorf("run cancelled during retry backoff: %w", err),
				}
			}
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx, unit.URL); err != nil {
				return models.FetchOutcome{
					Kind:     models.OutcomePermanent,
					Attempts: attempt - 1,
					Err:      fmt.Errorf("run cancelled waiting for rate limit: %w", err),
				}
			}
		}

		outcome := c.attempt(ctx, unit, attempt)
		switch outcome.Kind {
		case models.OutcomeSuccess, models.OutcomePermanent:
			return outcome
		}

		lastErr = outcome.Err
		log.Warn().
			Str("unit", unit.ID).
			Str("url", unit.URL).
			Int("attempt", attempt).
			Int("max_attempts", c.maxAttempts).
			Err(outcome.Err).
			Msg("Request failed, will retry")
	}

	log.Error().
		Str("unit", unit.ID).
		Str("url", unit.URL).
		Int("attempts", c.maxAttempts).
		Err(lastErr).
		Msg("All retry attempts failed")

	return models.FetchOutcome{
		Kind:     models.OutcomePermanent,
		Attempts: c.maxAttempts,
		Err:      fmt.Errorf("%w after %d attempts: %v", ErrExhausted, c.maxAttempts, lastErr),
	}
}

// attempt performs a single request and classifies the result.
func (c *Client) attempt(ctx context.Context, unit models.WorkUnit, attempt int) models.FetchOutcome {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()

	method := unit.Method
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(attemptCtx, method, unit.URL, nil)
	if err != nil {
		return models.FetchOutcome{
			Kind:     models.OutcomePermanent,
			Attempts: attempt,
			Err:      fmt.Errorf("failed to create request: %w", err),
		}
	}

	c.setHeaders(req, unit)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		elapsed := time.Since(start)
		kind := models.OutcomeTransient
		if !isTransient(err) {
			kind = models.OutcomePermanent
		}
		return models.FetchOutcome{
			Kind:         kind,
			Attempts:     attempt,
			ResponseTime: elapsed,
			Err:          err,
		}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	elapsed := time.Since(start)
	if err != nil {
		return models.FetchOutcome{
			Kind:         models.OutcomeTransient,
			Attempts:     attempt,
			StatusCode:   resp.StatusCode,
			ResponseTime: elapsed,
			Err:          fmt.Errorf("failed to read response body: %w", err),
		}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		log.Debug().
			Str("unit", unit.ID).
			Int("attempt", attempt).
			Int("status", resp.StatusCode).
			Int("bytes", len(payload)).
			Dur("elapsed", elapsed).
			Msg("Fetch completed")
		return models.FetchOutcome{
			Kind:         models.OutcomeSuccess,
			Payload:      payload,
			Attempts:     attempt,
			StatusCode:   resp.StatusCode,
			ResponseTime: elapsed,
		}
	}

	httpErr := HTTPError{StatusCode: resp.StatusCode, Status: resp.Status}
	kind := models.OutcomePermanent
	if retryableStatus(resp.StatusCode) {
		kind = models.OutcomeTransient
	}

	return models.FetchOutcome{
		Kind:         kind,
		Attempts:     attempt,
		StatusCode:   resp.StatusCode,
		ResponseTime: elapsed,
		Err:          httpErr,
	}
}

func (c *Client) setHeaders(req *http.Request, unit models.WorkUnit) {
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
	for key, value := range unit.Headers {
		req.Header.Set(key, value)
	}
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if !strings.HasPrefix(u.Scheme, "http") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	return nil
}
