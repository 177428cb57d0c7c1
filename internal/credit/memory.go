package credit

import (
	"context"
	"fmt"
	"sync"
)

// MemoryLedger is an in-memory [Ledger] for tests and single-process
// deployments without durable storage. Safe for concurrent use.
type MemoryLedger struct {
	mu       sync.Mutex
	balances map[string]int
}

// Compile-time interface check.
var _ Ledger = (*MemoryLedger)(nil)

// NewMemoryLedger returns an empty [MemoryLedger].
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{balances: make(map[string]int)}
}

// ReserveOne implements [Ledger]. The mutex makes the check-and-decrement
// atomic, matching the conditional UPDATE of the postgres ledger.
func (l *MemoryLedger) ReserveOne(_ context.Context, userID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.balances[userID] <= 0 {
		return false, nil
	}
	l.balances[userID]--
	return true, nil
}

// Refund implements [Ledger].
func (l *MemoryLedger) Refund(_ context.Context, userID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[userID]++
	return nil
}

// Balance implements [Ledger].
func (l *MemoryLedger) Balance(_ context.Context, userID string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	remaining, ok := l.balances[userID]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownUser, userID)
	}
	return remaining, nil
}

// Grant implements [Ledger].
func (l *MemoryLedger) Grant(_ context.Context, userID string, n int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[userID] += n
	return nil
}
