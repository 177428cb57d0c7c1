// Package identity stores user profiles. Authentication itself is
// delegated to the external identity provider; requests carry an opaque
// user id and this package only keeps the profile records behind the admin
// surface and signup credit grants.
package identity

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound reports that no profile exists for the requested user id.
var ErrNotFound = errors.New("identity: profile not found")

// Profile is one registered user.
type Profile struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName,omitempty"`
	Admin       bool      `json:"isAdmin"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Store persists user profiles.
type Store interface {
	// Upsert creates or replaces the profile. A zero CreatedAt is stamped
	// with the current UTC time on first creation.
	Upsert(ctx context.Context, p Profile) (Profile, error)

	// Get returns the profile for the user id or [ErrNotFound].
	Get(ctx context.Context, userID string) (Profile, error)

	// List returns all profiles, oldest first.
	List(ctx context.Context) ([]Profile, error)
}
