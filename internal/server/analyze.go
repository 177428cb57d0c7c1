package server

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/petspeakapp/petspeak/internal/analyzer"
	"github.com/petspeakapp/petspeak/internal/config"
	"github.com/petspeakapp/petspeak/pkg/types"
)

// analyzeRequest is the JSON body for the analyze endpoint.
type analyzeRequest struct {
	// AudioData is the base64-encoded audio artifact.
	AudioData string `json:"audioData"`
	Language  string `json:"language"`
}

// handleAnalyze handles POST /api/analyze. The request is validated before
// any provider call; the provider result is normalized so the client always
// receives a complete, renderable object.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if s.anonPolicy == config.AnonymousDenied && userID(r) == "" {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AudioData == "" {
		writeError(w, http.StatusBadRequest, "audioData is required")
		return
	}
	audio, err := base64.StdEncoding.DecodeString(req.AudioData)
	if err != nil || len(audio) == 0 {
		writeError(w, http.StatusBadRequest, "audioData is not valid base64 audio")
		return
	}

	lang := types.LanguageCode(req.Language)
	if lang == "" {
		lang = types.LanguageEnglish
	}
	if !lang.IsValid() {
		writeError(w, http.StatusBadRequest, "unsupported language")
		return
	}

	result, err := s.analyzer.Analyze(r.Context(), analyzer.Request{
		Audio:    audio,
		MIMEType: "audio/wav",
		Language: lang,
	})
	if err != nil {
		s.metrics.RecordProviderRequest(r.Context(), s.providerName, "error")
		s.metrics.RecordProviderError(r.Context(), s.providerName)
		s.log.Error("analysis failed", "provider", s.providerName, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to analyze audio")
		return
	}
	s.metrics.RecordProviderRequest(r.Context(), s.providerName, "ok")

	result.Normalize()
	writeJSON(w, http.StatusOK, result)
}
