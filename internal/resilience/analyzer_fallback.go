package resilience

import (
	"context"

	"github.com/petspeakapp/petspeak/internal/analyzer"
)

// AnalyzerFallback implements [analyzer.Provider] with automatic failover
// across multiple analysis backends. Each backend has its own circuit breaker;
// when the primary fails or its breaker is open, the next healthy fallback is
// tried.
type AnalyzerFallback struct {
	group *FallbackGroup[analyzer.Provider]
}

// Compile-time interface assertion.
var _ analyzer.Provider = (*AnalyzerFallback)(nil)

// NewAnalyzerFallback creates an [AnalyzerFallback] with primary as the
// preferred backend.
func NewAnalyzerFallback(primary analyzer.Provider, primaryName string, cfg FallbackConfig) *AnalyzerFallback {
	return &AnalyzerFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional analysis provider as a fallback.
func (f *AnalyzerFallback) AddFallback(name string, provider analyzer.Provider) {
	f.group.AddFallback(name, provider)
}

// Analyze sends the request to the first healthy provider and returns its
// result. If the primary fails, subsequent fallbacks are tried.
func (f *AnalyzerFallback) Analyze(ctx context.Context, req analyzer.Request) (*analyzer.Result, error) {
	return ExecuteWithResult(f.group, func(p analyzer.Provider) (*analyzer.Result, error) {
		return p.Analyze(ctx, req)
	})
}
