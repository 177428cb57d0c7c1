package server

import (
	"net/http"
	"time"
)

// handleAdminStats handles GET /api/admin/stats.
func (s *Server) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.history.AggregateStats(r.Context(), time.Now())
	if err != nil {
		s.log.Error("aggregate stats failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleAdminUsers handles GET /api/admin/users.
func (s *Server) handleAdminUsers(w http.ResponseWriter, r *http.Request) {
	profiles, err := s.profiles.List(r.Context())
	if err != nil {
		s.log.Error("list users failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get users")
		return
	}
	writeJSON(w, http.StatusOK, profiles)
}
