// Package credit implements the per-user usage-credit ledger that gates
// analysis requests.
//
// The ledger is server-authoritative: a reservation is a single atomic
// conditional decrement, never a client-side read-modify-write. Clients hold
// an advisory [Mirror] that is reconciled against the authoritative balance
// after login and after every reservation attempt.
package credit

import (
	"context"
	"errors"
)

// ErrUnknownUser is returned by Balance when no ledger row exists for the
// user. Reservation against an unknown user simply returns false.
var ErrUnknownUser = errors.New("credit: unknown user")

// Ledger is the authoritative credit store.
type Ledger interface {
	// ReserveOne atomically decrements the user's balance by one.
	// Returns false without mutation when the balance is zero or the user
	// is unknown. The decrement must never drive the balance negative,
	// even under concurrent reservations for the same user.
	ReserveOne(ctx context.Context, userID string) (bool, error)

	// Refund returns one previously reserved credit to the user.
	Refund(ctx context.Context, userID string) error

	// Balance reads the authoritative remaining balance.
	// Returns ErrUnknownUser when no row exists for the user.
	Balance(ctx context.Context, userID string) (int, error)

	// Grant adds n credits to the user's balance, creating the ledger row
	// if absent. Used for signup grants and manual top-ups.
	Grant(ctx context.Context, userID string, n int) error
}
