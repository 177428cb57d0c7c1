// Package server exposes the petspeak HTTP API: analysis, recording
// history, the credit ledger, and the admin surface.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/petspeakapp/petspeak/internal/analyzer"
	"github.com/petspeakapp/petspeak/internal/config"
	"github.com/petspeakapp/petspeak/internal/credit"
	"github.com/petspeakapp/petspeak/internal/health"
	"github.com/petspeakapp/petspeak/internal/history"
	"github.com/petspeakapp/petspeak/internal/identity"
	"github.com/petspeakapp/petspeak/internal/observe"
)

// shutdownGrace bounds how long in-flight requests may run after the
// shutdown signal.
const shutdownGrace = 15 * time.Second

// userIDHeader carries the opaque user identifier assigned by the external
// identity provider.
const userIDHeader = "X-User-ID"

// Deps are the collaborators a [Server] needs. Analyzer, Ledger, History
// and Profiles are required; the rest default sensibly.
type Deps struct {
	Analyzer analyzer.Provider
	// ProviderName labels provider metrics (e.g. "openai").
	ProviderName string
	Ledger       credit.Ledger
	History      history.Store
	Profiles     identity.Store

	// SignupGrant is the number of credits granted to a new account.
	SignupGrant int

	// AnonymousPolicy gates identity-less analysis requests. The zero
	// value defaults to ungated.
	AnonymousPolicy config.AnonymousPolicy

	Metrics *observe.Metrics
	Logger  *slog.Logger
	Health  *health.Handler
}

// Server is the petspeak HTTP API.
type Server struct {
	analyzer     analyzer.Provider
	providerName string
	ledger       credit.Ledger
	history      history.Store
	profiles     identity.Store
	signupGrant  int
	anonPolicy   config.AnonymousPolicy

	metrics *observe.Metrics
	log     *slog.Logger
	health  *health.Handler
}

// New assembles a [Server] from its dependencies.
func New(deps Deps) (*Server, error) {
	switch {
	case deps.Analyzer == nil:
		return nil, errors.New("server: analyzer provider is required")
	case deps.Ledger == nil:
		return nil, errors.New("server: credit ledger is required")
	case deps.History == nil:
		return nil, errors.New("server: history store is required")
	case deps.Profiles == nil:
		return nil, errors.New("server: profile store is required")
	}
	s := &Server{
		analyzer:     deps.Analyzer,
		providerName: deps.ProviderName,
		ledger:       deps.Ledger,
		history:      deps.History,
		profiles:     deps.Profiles,
		signupGrant:  deps.SignupGrant,
		anonPolicy:   deps.AnonymousPolicy,
		metrics:      deps.Metrics,
		log:          deps.Logger,
		health:       deps.Health,
	}
	if s.providerName == "" {
		s.providerName = "unknown"
	}
	if s.anonPolicy == "" {
		s.anonPolicy = config.AnonymousUngated
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.health == nil {
		s.health = health.New()
	}
	return s, nil
}

// Handler returns the full API handler wrapped in the observability
// middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/analyze", s.handleAnalyze)

	mux.HandleFunc("POST /api/recordings", s.handleCreateRecording)
	mux.HandleFunc("GET /api/recordings", s.handleListRecordings)
	mux.HandleFunc("DELETE /api/recordings/{id}", s.handleDeleteRecording)

	mux.HandleFunc("POST /api/signup", s.handleSignup)
	mux.HandleFunc("GET /api/credits", s.handleCreditBalance)
	mux.HandleFunc("POST /api/credits/reserve", s.handleReserveCredit)
	mux.HandleFunc("POST /api/credits/refund", s.handleRefundCredit)

	mux.HandleFunc("GET /api/admin/stats", s.handleAdminStats)
	mux.HandleFunc("GET /api/admin/users", s.handleAdminUsers)

	s.health.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	return observe.Middleware(s.metrics)(mux)
}

// Run serves the API until ctx is canceled, then drains in-flight requests
// within [shutdownGrace].
func (s *Server) Run(ctx context.Context, cfg config.ServerConfig) error {
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info("http server listening", "addr", cfg.ListenAddr, "tls", cfg.TLS != nil)
		var err error
		if cfg.TLS != nil {
			err = srv.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// userID extracts the opaque user identifier, or "" for anonymous requests.
func userID(r *http.Request) string {
	return r.Header.Get(userIDHeader)
}

// writeJSON encodes v with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("encode response failed", "error", err)
	}
}

// writeError sends the API error shape `{"error": msg}`.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
