package resilience

import (
	"errors"
	"testing"
	"time"
)

func TestFallbackGroup_PrefersPrimary(t *testing.T) {
	fg := NewFallbackGroup("openai", "openai", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fg.AddFallback("ollama", "ollama")

	var served string
	err := fg.Execute(func(backend string) error {
		served = backend
		return nil
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if served != "openai" {
		t.Fatalf("served by %q, want the primary", served)
	}
}

func TestFallbackGroup_FailsOverInOrder(t *testing.T) {
	fg := NewFallbackGroup("openai", "openai", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fg.AddFallback("ollama", "ollama")

	var served string
	err := fg.Execute(func(backend string) error {
		if backend == "openai" {
			return errProviderDown
		}
		served = backend
		return nil
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if served != "ollama" {
		t.Fatalf("served by %q, want the fallback", served)
	}
}

func TestFallbackGroup_AllCandidatesFail(t *testing.T) {
	fg := NewFallbackGroup("openai", "openai", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fg.AddFallback("ollama", "ollama")

	err := fg.Execute(func(string) error { return errProviderDown })
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("error = %v, want ErrAllFailed", err)
	}
}

func TestFallbackGroup_OpenBreakerSkipsCandidate(t *testing.T) {
	fg := NewFallbackGroup("openai", "openai", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{
			MaxFailures:  2,
			ResetTimeout: time.Hour,
		},
	})
	fg.AddFallback("ollama", "ollama")

	// Trip the primary's breaker.
	for i := 0; i < 2; i++ {
		_ = fg.Execute(func(backend string) error {
			if backend == "openai" {
				return errProviderDown
			}
			return nil
		})
	}

	// The primary is now skipped without a call.
	var calls []string
	err := fg.Execute(func(backend string) error {
		calls = append(calls, backend)
		return nil
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(calls) != 1 || calls[0] != "ollama" {
		t.Fatalf("calls = %v, want only the fallback", calls)
	}
}

func TestExecuteWithResult_ReturnsPrimaryResult(t *testing.T) {
	fg := NewFallbackGroup("openai", "openai", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fg.AddFallback("ollama", "ollama")

	translation, err := ExecuteWithResult(fg, func(backend string) (string, error) {
		return "translated by " + backend, nil
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if translation != "translated by openai" {
		t.Fatalf("result = %q", translation)
	}
}

func TestExecuteWithResult_Failover(t *testing.T) {
	fg := NewFallbackGroup("openai", "openai", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fg.AddFallback("ollama", "ollama")

	translation, err := ExecuteWithResult(fg, func(backend string) (string, error) {
		if backend == "openai" {
			return "", errProviderDown
		}
		return "translated by " + backend, nil
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if translation != "translated by ollama" {
		t.Fatalf("result = %q", translation)
	}
}

func TestExecuteWithResult_AllFail(t *testing.T) {
	fg := NewFallbackGroup("openai", "openai", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})

	_, err := ExecuteWithResult(fg, func(string) (string, error) {
		return "", errProviderDown
	})
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("error = %v, want ErrAllFailed", err)
	}
}
