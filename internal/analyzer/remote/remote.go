// Package remote implements [analyzer.Provider] over the HTTP analysis API,
// for clients that delegate interpretation to a petspeak server.
package remote

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/petspeakapp/petspeak/internal/analyzer"
	"github.com/petspeakapp/petspeak/pkg/types"
)

const defaultTimeout = 60 * time.Second

// Provider submits artifacts to a remote petspeak server.
type Provider struct {
	baseURL string
	userID  string
	client  *http.Client
}

// Compile-time interface check.
var _ analyzer.Provider = (*Provider)(nil)

// Option configures a [Provider].
type Option func(*Provider)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) { p.client = client }
}

// WithUserID attaches the opaque user identifier to every request.
func WithUserID(userID string) Option {
	return func(p *Provider) { p.userID = userID }
}

// New creates a provider that talks to the server at baseURL
// (e.g. "http://localhost:8080").
func New(baseURL string, opts ...Option) (*Provider, error) {
	if baseURL == "" {
		return nil, errors.New("remote: base URL is required")
	}
	p := &Provider{
		baseURL: baseURL,
		client:  &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

type analyzeRequest struct {
	AudioData string `json:"audioData"`
	Language  string `json:"language"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Analyze implements [analyzer.Provider]. A connection set-up failure is
// reported as [analyzer.ErrNotDelivered]; once any response arrives the
// error is an ordinary transport or upstream failure.
func (p *Provider) Analyze(ctx context.Context, req analyzer.Request) (*analyzer.Result, error) {
	if len(req.Audio) == 0 {
		return nil, analyzer.ErrEmptyAudio
	}
	lang := req.Language
	if lang == "" {
		lang = types.LanguageEnglish
	}

	payload, err := json.Marshal(analyzeRequest{
		AudioData: base64.StdEncoding.EncodeToString(req.Audio),
		Language:  string(lang),
	})
	if err != nil {
		return nil, fmt.Errorf("remote: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/api/analyze", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("remote: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.userID != "" {
		httpReq.Header.Set("X-User-ID", p.userID)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		if isDialFailure(err) {
			return nil, fmt.Errorf("%w: %v", analyzer.ErrNotDelivered, err)
		}
		return nil, fmt.Errorf("remote: analyze: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("remote: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var er errorResponse
		if json.Unmarshal(body, &er) == nil && er.Error != "" {
			return nil, fmt.Errorf("remote: analyze: %s (status %d)", er.Error, resp.StatusCode)
		}
		return nil, fmt.Errorf("remote: analyze: status %d", resp.StatusCode)
	}

	var result analyzer.Result
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("remote: decode result: %w", err)
	}
	result.Normalize()
	return &result, nil
}

// isDialFailure reports whether the request failed before a connection was
// established, i.e. no byte could have reached the server.
func isDialFailure(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}
