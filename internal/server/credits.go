package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/petspeakapp/petspeak/internal/credit"
	"github.com/petspeakapp/petspeak/internal/identity"
)

// signupRequest is the JSON body for the signup endpoint.
type signupRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

// handleSignup handles POST /api/signup. It records the profile and grants
// the signup credits once; repeated signups update the profile but never
// re-grant.
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "user ID required")
		return
	}

	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	_, err := s.profiles.Get(r.Context(), uid)
	isNew := errors.Is(err, identity.ErrNotFound)
	if err != nil && !isNew {
		s.log.Error("profile lookup failed", "user_id", uid, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to sign up")
		return
	}

	profile, err := s.profiles.Upsert(r.Context(), identity.Profile{
		ID:          uid,
		Email:       req.Email,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		s.log.Error("profile upsert failed", "user_id", uid, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to sign up")
		return
	}

	if isNew && s.signupGrant > 0 {
		if err := s.ledger.Grant(r.Context(), uid, s.signupGrant); err != nil {
			s.log.Error("signup credit grant failed", "user_id", uid, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to sign up")
			return
		}
	}

	writeJSON(w, http.StatusOK, profile)
}

// handleCreditBalance handles GET /api/credits.
func (s *Server) handleCreditBalance(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "user ID required")
		return
	}

	remaining, err := s.ledger.Balance(r.Context(), uid)
	switch {
	case errors.Is(err, credit.ErrUnknownUser):
		writeError(w, http.StatusNotFound, "unknown user")
		return
	case err != nil:
		s.log.Error("balance read failed", "user_id", uid, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read balance")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"remaining": remaining})
}

// handleReserveCredit handles POST /api/credits/reserve — the single
// authoritative decrement behind every analysis.
func (s *Server) handleReserveCredit(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "user ID required")
		return
	}

	ok, err := s.ledger.ReserveOne(r.Context(), uid)
	if err != nil {
		s.metrics.RecordCreditReservation(r.Context(), "error")
		s.log.Error("credit reservation failed", "user_id", uid, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to reserve credit")
		return
	}
	outcome := "reserved"
	if !ok {
		outcome = "denied"
	}
	s.metrics.RecordCreditReservation(r.Context(), outcome)

	remaining, err := s.ledger.Balance(r.Context(), uid)
	if err != nil {
		// The reservation outcome is what matters; a failed read reports 0.
		remaining = 0
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": ok, "remaining": remaining})
}

// handleRefundCredit handles POST /api/credits/refund, compensating a
// reservation whose analysis provably never reached the provider.
func (s *Server) handleRefundCredit(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "user ID required")
		return
	}

	err := s.ledger.Refund(r.Context(), uid)
	switch {
	case errors.Is(err, credit.ErrUnknownUser):
		writeError(w, http.StatusNotFound, "unknown user")
		return
	case err != nil:
		s.log.Error("credit refund failed", "user_id", uid, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to refund credit")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
