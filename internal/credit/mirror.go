package credit

import (
	"context"
	"errors"
	"sync"
)

// Mirror is the client-held advisory copy of a user's balance. It is never
// authoritative: the server-side [Ledger] decides whether a reservation
// succeeds, and the mirror is reconciled via [Mirror.Refresh] after login and
// after every reservation attempt.
//
// Safe for concurrent use.
type Mirror struct {
	ledger Ledger
	userID string

	mu        sync.Mutex
	remaining int
	loaded    bool
}

// NewMirror creates a mirror for the given user bound to a ledger.
// Call [Mirror.Refresh] before the first read.
func NewMirror(ledger Ledger, userID string) *Mirror {
	return &Mirror{ledger: ledger, userID: userID}
}

// Refresh re-reads the authoritative balance and replaces the local copy.
// An unknown user loads as a zero balance.
func (m *Mirror) Refresh(ctx context.Context) error {
	remaining, err := m.ledger.Balance(ctx, m.userID)
	if err != nil {
		if !errors.Is(err, ErrUnknownUser) {
			return err
		}
		remaining = 0
	}
	m.mu.Lock()
	m.remaining = remaining
	m.loaded = true
	m.mu.Unlock()
	return nil
}

// Remaining returns the last known balance. The second return value is false
// when the mirror has never been refreshed.
func (m *Mirror) Remaining() (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.remaining, m.loaded
}

// Refund forwards a compensating refund to the authoritative ledger and
// reconciles the mirror.
func (m *Mirror) Refund(ctx context.Context) error {
	if err := m.ledger.Refund(ctx, m.userID); err != nil {
		return err
	}
	_ = m.Refresh(ctx)
	return nil
}

// ReserveOne forwards the reservation to the authoritative ledger, then
// refreshes the mirror regardless of outcome, so the displayed balance never
// drifts after a race with another device.
func (m *Mirror) ReserveOne(ctx context.Context) (bool, error) {
	ok, err := m.ledger.ReserveOne(ctx, m.userID)
	if err != nil {
		return false, err
	}
	// The reservation outcome stands even if the refresh fails; a stale
	// mirror is advisory only.
	_ = m.Refresh(ctx)
	return ok, nil
}
