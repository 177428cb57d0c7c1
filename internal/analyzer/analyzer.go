// Package analyzer defines the interface to the remote sound-interpretation
// service and the canonical result schema.
//
// Providers receive a finished audio artifact and return a structured
// interpretation. Upstream output is treated as untrusted: callers must run
// [Result.Normalize] before handing a result to any consumer, so that even an
// empty upstream response renders as a complete result.
package analyzer

import (
	"context"
	"errors"

	"github.com/petspeakapp/petspeak/pkg/types"
)

// ErrEmptyAudio is returned when a request carries no audio bytes.
var ErrEmptyAudio = errors.New("analyzer: empty audio payload")

// ErrNotDelivered reports that the request provably never reached the
// service (connection set-up failed before any byte was sent). Callers use
// it to decide whether billable work could have started upstream.
var ErrNotDelivered = errors.New("analyzer: request not delivered")

// Request is the input contract to an analysis provider.
type Request struct {
	// Audio is the finished recording, encoded per MIMEType.
	Audio []byte

	// MIMEType describes the audio encoding (e.g., "audio/wav").
	MIMEType string

	// Animal is an optional hint about the kind of pet recorded.
	// Empty means the provider should identify the animal itself.
	Animal types.AnimalType

	// Language selects the language of the translation and tips.
	Language types.LanguageCode
}

// Action is a single recommended step for the owner.
type Action struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Urgent      bool   `json:"urgent"`
}

// Product is a shopping suggestion matching the detected need.
type Product struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// Result is the canonical interpretation schema. All provider responses
// collapse into this one shape; there is no per-provider variant.
type Result struct {
	Transcription string           `json:"transcription"`
	Translation   string           `json:"translation"`
	AnimalType    types.AnimalType `json:"animalType"`
	Mood          types.MoodType   `json:"mood"`
	DetectedNeed  types.NeedType   `json:"detectedNeed"`
	Confidence    int              `json:"confidence"`
	Action        Action           `json:"action"`
	Tips          []string         `json:"tips"`
	Products      []Product        `json:"products"`
}

// DefaultTips is used when the upstream response omits tips.
var DefaultTips = []string{
	"Observe your pet's behavior",
	"Ensure basic needs are met",
	"Consult a vet if concerned",
}

// DefaultAction is used when the upstream response omits the action block.
var DefaultAction = Action{
	Title:       "Observe your pet",
	Description: "Watch your pet's body language for more context before acting.",
	Urgent:      false,
}

// Normalize repairs r in place so that every field holds a renderable value.
// Each field is defaulted independently; a fully empty upstream response
// normalizes into a complete result rather than an error.
func (r *Result) Normalize() {
	if !r.DetectedNeed.IsValid() {
		r.DetectedNeed = types.NeedUnknown
	}
	if !r.AnimalType.IsValid() {
		r.AnimalType = types.AnimalOther
	}
	if !r.Mood.IsValid() {
		r.Mood = types.MoodNeutral
	}
	switch {
	case r.Confidence == 0:
		r.Confidence = 50
	case r.Confidence < 0:
		r.Confidence = 0
	case r.Confidence > 100:
		r.Confidence = 100
	}
	if r.Action.Title == "" {
		r.Action = DefaultAction
	}
	if len(r.Tips) == 0 {
		r.Tips = append([]string(nil), DefaultTips...)
	}
	if r.Products == nil {
		r.Products = []Product{}
	}
}

// Provider interprets a pet-sound recording.
type Provider interface {
	// Analyze submits the recording and returns a normalized interpretation.
	// Implementations must honour ctx cancellation on all network calls.
	Analyze(ctx context.Context, req Request) (*Result, error)
}
