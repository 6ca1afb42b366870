// Package pacing computes the deliberate delays inserted between requests to
// avoid triggering anti-automation defenses on target sites.
package pacing

import (
	"context"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"
)

// Scope identifies where in the run a delay is applied.
type Scope string

const (
	// ScopeInitialRun is applied once, before the first dispatch.
	ScopeInitialRun Scope = "initial_run"
	// ScopePreItem is applied before processing a discovered item.
	ScopePreItem Scope = "pre_item"
	// ScopePrePage is applied before each page request within a group.
	ScopePrePage Scope = "pre_page"
	// ScopePostBatch is applied after a full batch of concurrent pages.
	ScopePostBatch Scope = "post_batch"
	// ScopePreGroup is applied before a group starts processing.
	ScopePreGroup Scope = "pre_group"
)

// Range is an inclusive [Min, Max] delay window for one scope.
type Range struct {
	Min time.Duration
	Max time.Duration
}

// Sleeper suspends the caller for d or until ctx is done. Tests inject a
// fake to run pacing-heavy paths against a mocked clock.
type Sleeper func(ctx context.Context, d time.Duration) error

// Policy maps scopes to randomized delay ranges and retries to a fixed
// progression. Policies hold no per-call state and are safe for concurrent
// use.
type Policy struct {
	Ranges    map[Scope]Range
	RetryStep time.Duration

	// Sleep overrides the real clock when non-nil.
	Sleep Sleeper
}

// DefaultRetryStep yields the 3s, 6s, 9s retry progression.
const DefaultRetryStep = 3 * time.Second

// Default returns the pacing profile used by the stock harvesters.
func Default() *Policy {
	return &Policy{
		Ranges: map[Scope]Range{
			ScopeInitialRun: {5 * time.Second, 10 * time.Second},
			ScopePreItem:    {2 * time.Second, 5 * time.Second},
			ScopePrePage:    {1500 * time.Millisecond, 3500 * time.Millisecond},
			ScopePostBatch:  {3 * time.Second, 6 * time.Second},
			ScopePreGroup:   {8 * time.Second, 15 * time.Second},
		},
		RetryStep: DefaultRetryStep,
	}
}

// None returns a policy with no pacing delays and the default retry
// progression. Intended for tests and local development against mock servers.
func None() *Policy {
	return &Policy{RetryStep: DefaultRetryStep}
}

// Delay samples a uniform delay for the given scope. Scopes without a
// configured range yield zero.
func (p *Policy) Delay(scope Scope) time.Duration {
	r, ok := p.Ranges[scope]
	if !ok || r.Max <= 0 {
		return 0
	}
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + time.Duration(rand.Int63n(int64(r.Max-r.Min)+1))
}

// RetryDelay returns the fixed backoff before re-attempting after the given
// failed attempt: attempt 1 -> RetryStep, 2 -> 2*RetryStep, and so on.
// Retries are never randomized so failure timing stays predictable.
func (p *Policy) RetryDelay(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	return time.Duration(attempt) * p.RetryStep
}

// Wait suspends the caller for a sampled delay of the given scope. It
// returns early with ctx.Err() if the run is cancelled mid-sleep.
func (p *Policy) Wait(ctx context.Context, scope Scope) error {
	d := p.Delay(scope)
	if d <= 0 {
		return ctx.Err()
	}
	log.Debug().
		Str("scope", string(scope)).
		Dur("delay", d).
		Msg("Pacing delay")
	return p.sleep(ctx, d)
}

// WaitRetry suspends the caller for the fixed retry backoff of the given
// failed attempt.
func (p *Policy) WaitRetry(ctx context.Context, attempt int) error {
	d := p.RetryDelay(attempt)
	if d <= 0 {
		return ctx.Err()
	}
	log.Debug().
		Int("attempt", attempt).
		Dur("backoff", d).
		Msg("Retry backoff")
	return p.sleep(ctx, d)
}

func (p *Policy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
