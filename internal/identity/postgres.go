package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the user_profiles table. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS user_profiles (
    user_id      TEXT PRIMARY KEY,
    email        TEXT NOT NULL,
    display_name TEXT NOT NULL DEFAULT '',
    is_admin     BOOLEAN NOT NULL DEFAULT FALSE,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by a PostgreSQL database.
type PostgresStore struct {
	db DB
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a new [PostgresStore] that uses the given
// database connection or pool.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate executes the [Schema] DDL against the database.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.Exec(ctx, Schema)
	if err != nil {
		return fmt.Errorf("identity: migrate: %w", err)
	}
	return nil
}

// Upsert implements [Store]. The original created_at is preserved when the
// profile already exists.
func (s *PostgresStore) Upsert(ctx context.Context, p Profile) (Profile, error) {
	const query = `
		INSERT INTO user_profiles (user_id, email, display_name, is_admin, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			email = EXCLUDED.email,
			display_name = EXCLUDED.display_name,
			is_admin = EXCLUDED.is_admin
		RETURNING created_at`

	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	err := s.db.QueryRow(ctx, query,
		p.ID, p.Email, p.DisplayName, p.Admin, p.CreatedAt).Scan(&p.CreatedAt)
	if err != nil {
		return Profile{}, fmt.Errorf("identity: upsert %q: %w", p.ID, err)
	}
	return p, nil
}

// Get implements [Store].
func (s *PostgresStore) Get(ctx context.Context, userID string) (Profile, error) {
	const query = `
		SELECT user_id, email, display_name, is_admin, created_at
		FROM user_profiles
		WHERE user_id = $1`

	var p Profile
	err := s.db.QueryRow(ctx, query, userID).
		Scan(&p.ID, &p.Email, &p.DisplayName, &p.Admin, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, fmt.Errorf("%w: %q", ErrNotFound, userID)
		}
		return Profile{}, fmt.Errorf("identity: get %q: %w", userID, err)
	}
	return p, nil
}

// List implements [Store].
func (s *PostgresStore) List(ctx context.Context) ([]Profile, error) {
	const query = `
		SELECT user_id, email, display_name, is_admin, created_at
		FROM user_profiles
		ORDER BY created_at`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("identity: list: %w", err)
	}
	defer rows.Close()

	profiles := make([]Profile, 0)
	for rows.Next() {
		var p Profile
		if err := rows.Scan(&p.ID, &p.Email, &p.DisplayName, &p.Admin, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("identity: scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("identity: list: %w", err)
	}
	return profiles, nil
}
