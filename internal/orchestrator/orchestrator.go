// Package orchestrator sequences a completed recording through the credit
// gate and the remote analysis service: acquire credit, submit artifact,
// resolve the result.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/petspeakapp/petspeak/internal/analyzer"
	"github.com/petspeakapp/petspeak/internal/config"
	"github.com/petspeakapp/petspeak/internal/credit"
	"github.com/petspeakapp/petspeak/internal/observe"
	"github.com/petspeakapp/petspeak/internal/resilience"
	"github.com/petspeakapp/petspeak/pkg/capture"
	"github.com/petspeakapp/petspeak/pkg/types"
)

var (
	// ErrAnalysisInFlight rejects a Submit while another submission is
	// pending. Requests are never coalesced or duplicated.
	ErrAnalysisInFlight = errors.New("orchestrator: analysis already in flight")

	// ErrOutOfCredits reports that no credit could be reserved. Nothing was
	// sent to the remote service.
	ErrOutOfCredits = errors.New("orchestrator: out of credits")

	// ErrAnalysisTimeout reports that the remote call exceeded its bounded
	// wait. The credit is consumed; the artifact is preserved, so the user
	// can retry without re-recording.
	ErrAnalysisTimeout = errors.New("orchestrator: analysis timed out")
)

// DefaultTimeout bounds the remote analysis call.
const DefaultTimeout = 60 * time.Second

// Orchestrator submits artifacts to an analysis provider behind the credit
// gate. A nil credit mirror means an anonymous caller; whether those are
// gated is deployment policy.
type Orchestrator struct {
	provider analyzer.Provider
	credits  *credit.Mirror
	policy   config.AnonymousPolicy
	timeout  time.Duration
	breaker  *resilience.CircuitBreaker
	metrics  *observe.Metrics
	log      *slog.Logger

	inFlight atomic.Bool
}

// Option configures an [Orchestrator].
type Option func(*Orchestrator)

// WithCredits binds the authenticated user's credit mirror. Without it the
// caller is treated as anonymous.
func WithCredits(m *credit.Mirror) Option {
	return func(o *Orchestrator) { o.credits = m }
}

// WithAnonymousPolicy sets the gate for anonymous callers. The default is
// ungated, matching the server's default deployment policy.
func WithAnonymousPolicy(p config.AnonymousPolicy) Option {
	return func(o *Orchestrator) { o.policy = p }
}

// WithTimeout bounds the remote analysis call.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.timeout = d }
}

// WithCircuitBreaker replaces the default breaker around the remote call.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) Option {
	return func(o *Orchestrator) { o.breaker = cb }
}

// WithMetrics replaces the default metrics instance.
func WithMetrics(m *observe.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithLogger replaces the default logger.
func WithLogger(log *slog.Logger) Option {
	return func(o *Orchestrator) { o.log = log }
}

// New creates an orchestrator around the given analysis provider.
func New(provider analyzer.Provider, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		provider: provider,
		policy:   config.AnonymousUngated,
		timeout:  DefaultTimeout,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.breaker == nil {
		o.breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{})
	}
	if o.metrics == nil {
		o.metrics = observe.DefaultMetrics()
	}
	return o
}

// Submit reserves a credit, sends the artifact to the analysis provider
// with a bounded timeout, and returns the normalized result.
//
// The credit reservation strictly precedes any network submission; if the
// reservation is denied, zero bytes are sent. A reserved credit is refunded
// only on confirmed non-delivery ([analyzer.ErrNotDelivered], or an open
// circuit breaker rejecting the call before it starts); timeouts and
// upstream failures consume it. There are no automatic retries — a timeout
// is surfaced as [ErrAnalysisTimeout] for the user to retry.
func (o *Orchestrator) Submit(ctx context.Context, artifact *capture.Artifact, language types.LanguageCode) (*analyzer.Result, error) {
	if artifact == nil || len(artifact.Bytes) == 0 {
		return nil, analyzer.ErrEmptyAudio
	}
	if !o.inFlight.CompareAndSwap(false, true) {
		return nil, ErrAnalysisInFlight
	}
	defer o.inFlight.Store(false)

	reserved, err := o.reserve(ctx)
	if err != nil {
		return nil, err
	}

	o.metrics.ActiveAnalyses.Add(ctx, 1)
	defer o.metrics.ActiveAnalyses.Add(ctx, -1)

	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	start := time.Now()
	var result *analyzer.Result
	execErr := o.breaker.Execute(func() error {
		var err error
		result, err = o.provider.Analyze(callCtx, analyzer.Request{
			Audio:    artifact.Bytes,
			MIMEType: artifact.MIMEType,
			Language: language,
		})
		return err
	})
	o.metrics.AnalysisDuration.Record(ctx, time.Since(start).Seconds())

	if execErr != nil {
		// An open breaker short-circuits before any byte leaves the
		// process, so it counts as confirmed non-delivery too.
		if reserved && (errors.Is(execErr, analyzer.ErrNotDelivered) ||
			errors.Is(execErr, resilience.ErrCircuitOpen)) {
			o.refund(ctx)
		}
		if errors.Is(execErr, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w after %s", ErrAnalysisTimeout, o.timeout)
		}
		return nil, fmt.Errorf("orchestrator: submit: %w", execErr)
	}

	result.Normalize()
	return result, nil
}

// reserve applies the credit gate. Returns whether a credit was actually
// reserved (anonymous ungated callers proceed without one).
func (o *Orchestrator) reserve(ctx context.Context) (bool, error) {
	if o.credits == nil {
		if o.policy == config.AnonymousDenied {
			o.metrics.RecordCreditReservation(ctx, "denied")
			return false, fmt.Errorf("%w: anonymous analysis is disabled", ErrOutOfCredits)
		}
		return false, nil
	}

	ok, err := o.credits.ReserveOne(ctx)
	if err != nil {
		o.metrics.RecordCreditReservation(ctx, "error")
		return false, fmt.Errorf("orchestrator: reserve credit: %w", err)
	}
	if !ok {
		o.metrics.RecordCreditReservation(ctx, "denied")
		return false, ErrOutOfCredits
	}
	o.metrics.RecordCreditReservation(ctx, "reserved")
	return true, nil
}

// refund compensates a reserved credit after confirmed non-delivery. Best
// effort: a failed refund only logs, the submission error still stands.
func (o *Orchestrator) refund(ctx context.Context) {
	if err := o.credits.Refund(ctx); err != nil {
		o.log.Warn("credit refund after non-delivery failed", "error", err)
	}
}
