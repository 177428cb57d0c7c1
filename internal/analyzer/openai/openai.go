// Package openai provides an analysis provider backed by the OpenAI API.
//
// Analysis runs in two steps: the recording is first transcribed with the
// audio transcriptions API (failure here is expected for non-speech audio and
// is tolerated with a placeholder description), then a chat completion with a
// JSON response format interprets the transcription into the canonical result.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/petspeakapp/petspeak/internal/analyzer"
)

// Provider implements analyzer.Provider using the OpenAI API.
type Provider struct {
	client             oai.Client
	model              string
	transcriptionModel string
}

// config holds optional configuration for the provider.
type config struct {
	baseURL            string
	timeout            time.Duration
	transcriptionModel string
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithTranscriptionModel overrides the speech-to-text model.
// The default is "whisper-1".
func WithTranscriptionModel(model string) Option {
	return func(c *config) {
		c.transcriptionModel = model
	}
}

// New constructs a new OpenAI analysis Provider.
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("openai: model must not be empty")
	}

	cfg := &config{transcriptionModel: "whisper-1"}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	client := oai.NewClient(reqOpts...)
	return &Provider{
		client:             client,
		model:              model,
		transcriptionModel: cfg.transcriptionModel,
	}, nil
}

// Analyze implements analyzer.Provider.
func (p *Provider) Analyze(ctx context.Context, req analyzer.Request) (*analyzer.Result, error) {
	if len(req.Audio) == 0 {
		return nil, analyzer.ErrEmptyAudio
	}

	transcription := p.transcribe(ctx, req)

	params := oai.ChatCompletionNewParams{
		Model: shared.ChatModel(p.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(analyzer.SystemPrompt),
			oai.UserMessage(analyzer.InterpretationPrompt(transcription, req.Animal, req.Language)),
		},
		MaxCompletionTokens: param.NewOpt(int64(1024)),
		ResponseFormat: oai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: empty choices in response")
	}

	result := &analyzer.Result{}
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), result); err != nil {
		// Malformed upstream JSON is repaired, not surfaced: keep the
		// transcription and let Normalize fill the rest.
		slog.Warn("openai: malformed interpretation JSON, defaulting result", "err", err)
		result = &analyzer.Result{}
	}
	if result.Transcription == "" {
		result.Transcription = transcription
	}
	if result.AnimalType == "" {
		result.AnimalType = req.Animal
	}
	result.Normalize()
	return result, nil
}

// transcribe runs the speech-to-text step. Failure is tolerated — the
// transcription API regularly rejects non-speech audio — and replaced with a
// placeholder description the interpretation step can still work from.
func (p *Provider) transcribe(ctx context.Context, req analyzer.Request) string {
	resp, err := p.client.Audio.Transcriptions.New(ctx, oai.AudioTranscriptionNewParams{
		File:   oai.File(bytes.NewReader(req.Audio), fileName(req.MIMEType), req.MIMEType),
		Model:  oai.AudioModel(p.transcriptionModel),
		Prompt: param.NewOpt(analyzer.TranscriptionPrompt(req.Animal)),
	})
	if err != nil {
		slog.Debug("openai: transcription failed (expected for non-speech audio)", "err", err)
		return analyzer.PlaceholderTranscription(req.Animal)
	}
	if resp.Text == "" {
		return analyzer.PlaceholderTranscription(req.Animal)
	}
	return resp.Text
}

// fileName picks an upload file name matching the audio MIME type.
// The transcription endpoint infers the container format from the extension.
func fileName(mimeType string) string {
	switch mimeType {
	case "audio/webm":
		return "recording.webm"
	case "audio/ogg":
		return "recording.ogg"
	case "audio/mpeg", "audio/mp3":
		return "recording.mp3"
	default:
		return "recording.wav"
	}
}
