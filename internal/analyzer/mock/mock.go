// Package mock provides a test double for the analyzer.Provider interface.
//
// Use Provider in unit tests to verify what requests reach the analysis
// service and to feed controlled results without a live backend.
//
// Example:
//
//	p := &mock.Provider{
//	    Result: &analyzer.Result{DetectedNeed: types.NeedPlayful},
//	}
//	res, err := p.Analyze(ctx, req)
package mock

import (
	"context"
	"sync"

	"github.com/petspeakapp/petspeak/internal/analyzer"
)

// Call records a single invocation of Analyze.
type Call struct {
	// Ctx is the context passed to Analyze.
	Ctx context.Context
	// Req is the request passed to Analyze.
	Req analyzer.Request
}

// Provider is a mock implementation of analyzer.Provider.
// A nil Result with a nil Err returns a fully-defaulted result.
// Set Err to inject errors.
type Provider struct {
	mu sync.Mutex

	// Result is returned by Analyze. When nil (and Err is nil), Analyze
	// returns a normalized empty result.
	Result *analyzer.Result

	// Err, if non-nil, is returned as the error from Analyze.
	Err error

	// Delay, if set, makes Analyze block until the context is done or the
	// release channel is closed. Used to test in-flight rejection.
	Release chan struct{}

	// Calls records every invocation of Analyze in order.
	Calls []Call
}

// Analyze records the call and returns Result, Err.
func (p *Provider) Analyze(ctx context.Context, req analyzer.Request) (*analyzer.Result, error) {
	p.mu.Lock()
	p.Calls = append(p.Calls, Call{Ctx: ctx, Req: req})
	res := p.Result
	err := p.Err
	release := p.Release
	p.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err != nil {
		return nil, err
	}
	if res == nil {
		res = &analyzer.Result{}
	}
	out := *res
	out.Normalize()
	return &out, nil
}

// CallCount returns the number of recorded Analyze calls. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = nil
}

// Ensure Provider implements analyzer.Provider at compile time.
var _ analyzer.Provider = (*Provider)(nil)
