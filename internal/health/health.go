// Package health serves the liveness and readiness probes for the petspeak
// API server.
//
//   - GET /healthz — liveness; a process that answers HTTP is alive.
//   - GET /readyz  — readiness; 200 only while every registered [Checker]
//     (the database pool, configured providers) passes.
//
// Responses are JSON with a top-level "status" of "ok" or "fail" and a
// per-check "checks" map.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// checkTimeout bounds a single readiness check. A hung database ping must
// not stall the probe past the orchestration platform's own deadline.
const checkTimeout = 5 * time.Second

// Checker probes one dependency. Check returns nil while the dependency is
// usable and must respect context cancellation.
type Checker struct {
	// Name keys the check in the JSON response, e.g. "database".
	Name string

	Check func(ctx context.Context) error
}

// report is the wire shape of both probe responses.
type report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler serves the probe endpoints. The checker list is fixed at
// construction; Handler itself is stateless and safe for concurrent use.
type Handler struct {
	checkers []Checker
}

// New creates a [Handler] over the given checkers. Readiness evaluates them
// sequentially in the order provided.
func New(checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{checkers: c}
}

// Healthz always answers 200.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, report{Status: "ok"})
}

// Readyz answers 200 while every checker passes and 503 otherwise, with the
// per-check outcomes in the body either way.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	res, ready := h.evaluate(r.Context())
	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, res)
}

// evaluate runs every checker under its own [checkTimeout] deadline.
func (h *Handler) evaluate(ctx context.Context) (report, bool) {
	res := report{
		Status: "ok",
		Checks: make(map[string]string, len(h.checkers)),
	}
	ready := true
	for _, c := range h.checkers {
		checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := c.Check(checkCtx)
		cancel()

		if err != nil {
			res.Checks[c.Name] = "fail: " + err.Error()
			res.Status = "fail"
			ready = false
		} else {
			res.Checks[c.Name] = "ok"
		}
	}
	return res, ready
}

// Register adds both probe routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
