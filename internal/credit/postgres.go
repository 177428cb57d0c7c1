package credit

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the credit_balances table. Execute it via
// [PostgresLedger.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS credit_balances (
    user_id    TEXT PRIMARY KEY,
    remaining  INTEGER NOT NULL DEFAULT 0 CHECK (remaining >= 0),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// DB is the database interface used by [PostgresLedger]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresLedger is a [Ledger] backed by a PostgreSQL database.
//
// The reservation is a single conditional UPDATE, so the balance can never go
// negative regardless of how many clients reserve concurrently — losers of
// the race simply match zero rows.
type PostgresLedger struct {
	db DB
}

// Compile-time interface check.
var _ Ledger = (*PostgresLedger)(nil)

// NewPostgresLedger creates a new [PostgresLedger] that uses the given
// database connection or pool. The caller is responsible for calling
// [PostgresLedger.Migrate] to ensure the schema exists before issuing queries.
func NewPostgresLedger(db DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// Migrate executes the [Schema] DDL against the database.
func (l *PostgresLedger) Migrate(ctx context.Context) error {
	_, err := l.db.Exec(ctx, Schema)
	if err != nil {
		return fmt.Errorf("credit: migrate: %w", err)
	}
	return nil
}

// ReserveOne implements [Ledger].
func (l *PostgresLedger) ReserveOne(ctx context.Context, userID string) (bool, error) {
	const query = `
		UPDATE credit_balances
		SET remaining = remaining - 1, updated_at = now()
		WHERE user_id = $1 AND remaining > 0`

	tag, err := l.db.Exec(ctx, query, userID)
	if err != nil {
		return false, fmt.Errorf("credit: reserve for %q: %w", userID, err)
	}
	return tag.RowsAffected() == 1, nil
}

// Refund implements [Ledger].
func (l *PostgresLedger) Refund(ctx context.Context, userID string) error {
	const query = `
		UPDATE credit_balances
		SET remaining = remaining + 1, updated_at = now()
		WHERE user_id = $1`

	tag, err := l.db.Exec(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("credit: refund for %q: %w", userID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %q", ErrUnknownUser, userID)
	}
	return nil
}

// Balance implements [Ledger].
func (l *PostgresLedger) Balance(ctx context.Context, userID string) (int, error) {
	const query = `SELECT remaining FROM credit_balances WHERE user_id = $1`

	var remaining int
	err := l.db.QueryRow(ctx, query, userID).Scan(&remaining)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("%w: %q", ErrUnknownUser, userID)
		}
		return 0, fmt.Errorf("credit: balance for %q: %w", userID, err)
	}
	return remaining, nil
}

// Grant implements [Ledger]. The upsert creates the ledger row on first
// grant, which is how signup grants materialise new accounts.
func (l *PostgresLedger) Grant(ctx context.Context, userID string, n int) error {
	const query = `
		INSERT INTO credit_balances (user_id, remaining)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET
			remaining = credit_balances.remaining + EXCLUDED.remaining,
			updated_at = now()`

	_, err := l.db.Exec(ctx, query, userID, n)
	if err != nil {
		return fmt.Errorf("credit: grant %d to %q: %w", n, userID, err)
	}
	return nil
}
