package resilience

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when every candidate in a [FallbackGroup] either
// failed or was skipped behind an open breaker.
var ErrAllFailed = errors.New("all providers failed")

// FallbackConfig holds the breaker settings applied to every candidate in a
// [FallbackGroup]. Each candidate still gets its own breaker instance, so an
// outage of the primary never poisons the fallbacks.
type FallbackConfig struct {
	CircuitBreaker CircuitBreakerConfig
}

// candidate is one provider in the failover order with its own breaker.
type candidate[T any] struct {
	name    string
	value   T
	breaker *CircuitBreaker
}

// FallbackGroup holds a primary and zero or more fallbacks of the same
// provider type, tried in registration order. Candidates whose breakers are
// open are skipped without a call.
//
// FallbackGroup is safe for concurrent use once assembled; register all
// fallbacks before the first Execute.
type FallbackGroup[T any] struct {
	candidates []candidate[T]
	cfg        FallbackConfig
}

// NewFallbackGroup creates a group with primary as the preferred candidate.
func NewFallbackGroup[T any](primary T, primaryName string, cfg FallbackConfig) *FallbackGroup[T] {
	fg := &FallbackGroup[T]{cfg: cfg}
	fg.add(primaryName, primary)
	return fg
}

// AddFallback appends another candidate behind the ones already registered.
func (fg *FallbackGroup[T]) AddFallback(name string, fallback T) {
	fg.add(name, fallback)
}

func (fg *FallbackGroup[T]) add(name string, value T) {
	cbCfg := fg.cfg.CircuitBreaker
	cbCfg.Name = name
	fg.candidates = append(fg.candidates, candidate[T]{
		name:    name,
		value:   value,
		breaker: NewCircuitBreaker(cbCfg),
	})
}

// Execute runs fn against each candidate in order until one succeeds.
// Returns [ErrAllFailed] wrapping the last error when none does.
func (fg *FallbackGroup[T]) Execute(fn func(T) error) error {
	_, err := ExecuteWithResult(fg, func(v T) (struct{}, error) {
		return struct{}{}, fn(v)
	})
	return err
}

// ExecuteWithResult runs fn against each candidate in order until one
// succeeds and returns its result. A package-level function because Go
// methods cannot introduce the result type parameter.
func ExecuteWithResult[T any, R any](fg *FallbackGroup[T], fn func(T) (R, error)) (R, error) {
	var lastErr error
	for i := range fg.candidates {
		c := &fg.candidates[i]
		var result R
		err := c.breaker.Execute(func() error {
			var innerErr error
			result, innerErr = fn(c.value)
			return innerErr
		})
		if err == nil {
			return result, nil
		}
		lastErr = err
		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("skipping provider behind open breaker", "provider", c.name)
		} else {
			slog.Warn("provider failed, trying next candidate",
				"provider", c.name, "error", err)
		}
	}
	var zero R
	return zero, fmt.Errorf("%w: %v", ErrAllFailed, lastErr)
}
