package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/petspeakapp/petspeak/internal/history"
	"github.com/petspeakapp/petspeak/pkg/types"
)

// maxRecordingForm bounds the multipart form size for saved recordings.
const maxRecordingForm = 16 << 20

// handleCreateRecording handles POST /api/recordings. The multipart form
// carries the result fields plus an optional audio part; the audio itself
// is not persisted.
func (s *Server) handleCreateRecording(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "user ID required")
		return
	}

	if err := r.ParseMultipartForm(maxRecordingForm); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	animal := types.AnimalType(r.FormValue("animalType"))
	if !animal.IsValid() {
		writeError(w, http.StatusBadRequest, "invalid animal type")
		return
	}
	need := types.NeedType(r.FormValue("detectedNeed"))
	if !need.IsValid() {
		writeError(w, http.StatusBadRequest, "invalid detected need")
		return
	}
	confidence, err := strconv.ParseFloat(r.FormValue("confidence"), 64)
	if err != nil || confidence < 0 || confidence > 100 {
		writeError(w, http.StatusBadRequest, "invalid confidence")
		return
	}

	tipsRaw := r.FormValue("tips")
	if tipsRaw == "" {
		tipsRaw = "[]"
	}
	var tips []string
	if err := json.Unmarshal([]byte(tipsRaw), &tips); err != nil {
		writeError(w, http.StatusBadRequest, "invalid tips")
		return
	}

	// The audio part is accepted for forward compatibility but discarded.
	if f, _, err := r.FormFile("audio"); err == nil {
		f.Close()
	}

	stored, err := s.history.Append(r.Context(), history.Entry{
		UserID:        uid,
		AnimalType:    animal,
		Transcription: r.FormValue("transcription"),
		DetectedNeed:  need,
		Confidence:    confidence,
		Tips:          tips,
	})
	if err != nil {
		s.log.Error("save recording failed", "user_id", uid, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save recording")
		return
	}
	s.metrics.RecordRecordingSaved(r.Context(), string(animal))

	writeJSON(w, http.StatusOK, stored)
}

// handleListRecordings handles GET /api/recordings.
func (s *Server) handleListRecordings(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "user ID required")
		return
	}

	entries, err := s.history.ListByUser(r.Context(), uid)
	if err != nil {
		s.log.Error("list recordings failed", "user_id", uid, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get recordings")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleDeleteRecording handles DELETE /api/recordings/{id}. Owner-only: a
// non-owner gets 403 and the entry is left intact.
func (s *Server) handleDeleteRecording(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "user ID required")
		return
	}
	id := r.PathValue("id")

	err := s.history.Delete(r.Context(), id, uid)
	switch {
	case errors.Is(err, history.ErrNotFound):
		writeError(w, http.StatusNotFound, "recording not found")
		return
	case errors.Is(err, history.ErrForbidden):
		writeError(w, http.StatusForbidden, "not authorized to delete this recording")
		return
	case err != nil:
		s.log.Error("delete recording failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete recording")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
