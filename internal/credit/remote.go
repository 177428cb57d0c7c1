package credit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RemoteLedger is a [Ledger] client for the server's credit API. The server
// stays authoritative; this client only forwards reservation attempts and
// balance reads. Grants are a server-side operation and are not available
// remotely.
type RemoteLedger struct {
	baseURL string
	client  *http.Client
}

// Compile-time interface check.
var _ Ledger = (*RemoteLedger)(nil)

// RemoteOption configures a [RemoteLedger].
type RemoteOption func(*RemoteLedger)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(client *http.Client) RemoteOption {
	return func(l *RemoteLedger) { l.client = client }
}

// NewRemoteLedger creates a client for the credit API at baseURL.
func NewRemoteLedger(baseURL string, opts ...RemoteOption) (*RemoteLedger, error) {
	if baseURL == "" {
		return nil, errors.New("credit: base URL is required")
	}
	l := &RemoteLedger{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

type reserveResponse struct {
	OK        bool `json:"ok"`
	Remaining int  `json:"remaining"`
}

type balanceResponse struct {
	Remaining int `json:"remaining"`
}

// ReserveOne implements [Ledger].
func (l *RemoteLedger) ReserveOne(ctx context.Context, userID string) (bool, error) {
	var out reserveResponse
	if err := l.post(ctx, "/api/credits/reserve", userID, &out); err != nil {
		return false, err
	}
	return out.OK, nil
}

// Refund implements [Ledger].
func (l *RemoteLedger) Refund(ctx context.Context, userID string) error {
	return l.post(ctx, "/api/credits/refund", userID, nil)
}

// Balance implements [Ledger].
func (l *RemoteLedger) Balance(ctx context.Context, userID string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+"/api/credits", nil)
	if err != nil {
		return 0, fmt.Errorf("credit: build request: %w", err)
	}
	req.Header.Set("X-User-ID", userID)

	resp, err := l.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("credit: balance: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return 0, fmt.Errorf("%w: %q", ErrUnknownUser, userID)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("credit: balance: status %d", resp.StatusCode)
	}

	var out balanceResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&out); err != nil {
		return 0, fmt.Errorf("credit: decode balance: %w", err)
	}
	return out.Remaining, nil
}

// Grant implements [Ledger]. Granting is server-side only.
func (l *RemoteLedger) Grant(context.Context, string, int) error {
	return errors.New("credit: grant is not available over the remote API")
}

func (l *RemoteLedger) post(ctx context.Context, path, userID string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+path, bytes.NewReader(nil))
	if err != nil {
		return fmt.Errorf("credit: build request: %w", err)
	}
	req.Header.Set("X-User-ID", userID)

	resp, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("credit: %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %q", ErrUnknownUser, userID)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("credit: %s: status %d", path, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(out); err != nil {
			return fmt.Errorf("credit: decode %s response: %w", path, err)
		}
	}
	return nil
}
