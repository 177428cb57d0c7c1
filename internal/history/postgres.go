package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/petspeakapp/petspeak/pkg/types"
)

// Schema is the SQL DDL for the recordings table. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS recordings (
    id            UUID PRIMARY KEY,
    user_id       TEXT NOT NULL,
    animal_type   TEXT NOT NULL,
    transcription TEXT NOT NULL DEFAULT '',
    detected_need TEXT NOT NULL,
    confidence    DOUBLE PRECISION NOT NULL,
    tips          JSONB NOT NULL DEFAULT '[]',
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS recordings_user_created_idx
    ON recordings (user_id, created_at DESC);
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
// database connection or pool. The caller is responsible for calling
// [PostgresStore.Migrate] to ensure the schema exists before issuing
// queries.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate executes the [Schema] DDL against the database.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.Exec(ctx, Schema)
	if err != nil {
		return fmt.Errorf("history: migrate: %w", err)
	}
	return nil
}

// Append implements [Store].
func (s *PostgresStore) Append(ctx context.Context, e Entry) (Entry, error) {
	const query = `
		INSERT INTO recordings
			(id, user_id, animal_type, transcription, detected_need, confidence, tips, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	e.ID = uuid.NewString()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.Tips == nil {
		e.Tips = []string{}
	}
	tips, err := json.Marshal(e.Tips)
	if err != nil {
		return Entry{}, fmt.Errorf("history: marshal tips: %w", err)
	}

	_, err = s.db.Exec(ctx, query,
		e.ID, e.UserID, string(e.AnimalType), e.Transcription,
		string(e.DetectedNeed), e.Confidence, tips, e.CreatedAt)
	if err != nil {
		return Entry{}, fmt.Errorf("history: append for %q: %w", e.UserID, err)
	}
	return e, nil
}

// ListByUser implements [Store].
func (s *PostgresStore) ListByUser(ctx context.Context, userID string) ([]Entry, error) {
	const query = `
		SELECT id, user_id, animal_type, transcription, detected_need, confidence, tips, created_at
		FROM recordings
		WHERE user_id = $1
		ORDER BY created_at DESC`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("history: list for %q: %w", userID, err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("history: scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: list for %q: %w", userID, err)
	}
	return entries, nil
}

// Get implements [Store].
func (s *PostgresStore) Get(ctx context.Context, id string) (Entry, error) {
	const query = `
		SELECT id, user_id, animal_type, transcription, detected_need, confidence, tips, created_at
		FROM recordings
		WHERE id = $1`

	e, err := scanEntry(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, fmt.Errorf("%w: %q", ErrNotFound, id)
		}
		return Entry{}, fmt.Errorf("history: get %q: %w", id, err)
	}
	return e, nil
}

// Delete implements [Store]. Ownership is checked before the row is
// removed, so a non-owner delete leaves the entry intact.
func (s *PostgresStore) Delete(ctx context.Context, id, requestingUserID string) error {
	const ownerQuery = `SELECT user_id FROM recordings WHERE id = $1`

	var ownerID string
	err := s.db.QueryRow(ctx, ownerQuery, id).Scan(&ownerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %q", ErrNotFound, id)
		}
		return fmt.Errorf("history: delete %q: %w", id, err)
	}
	if ownerID != requestingUserID {
		return fmt.Errorf("%w: %q", ErrForbidden, id)
	}

	const deleteQuery = `DELETE FROM recordings WHERE id = $1 AND user_id = $2`
	tag, err := s.db.Exec(ctx, deleteQuery, id, requestingUserID)
	if err != nil {
		return fmt.Errorf("history: delete %q: %w", id, err)
	}
	// Raced with another delete of the same entry.
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return nil
}

// AggregateStats implements [Store].
func (s *PostgresStore) AggregateStats(ctx context.Context, now time.Time) (*Stats, error) {
	stats := &Stats{
		NeedDistribution:   make(map[string]int),
		AnimalDistribution: make(map[string]int),
	}

	const totalsQuery = `
		SELECT COUNT(*), COUNT(DISTINCT user_id), COALESCE(AVG(confidence), 0)
		FROM recordings`
	err := s.db.QueryRow(ctx, totalsQuery).
		Scan(&stats.TotalRecordings, &stats.TotalUsers, &stats.AvgConfidence)
	if err != nil {
		return nil, fmt.Errorf("history: stats totals: %w", err)
	}

	if err := s.distribution(ctx, "detected_need", stats.NeedDistribution); err != nil {
		return nil, err
	}
	if err := s.distribution(ctx, "animal_type", stats.AnimalDistribution); err != nil {
		return nil, err
	}

	windowStart := now.UTC().Truncate(24 * time.Hour).AddDate(0, 0, -(StatsWindowDays - 1))
	const dailyQuery = `
		SELECT to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day, COUNT(*)
		FROM recordings
		WHERE created_at >= $1
		GROUP BY day`

	rows, err := s.db.Query(ctx, dailyQuery, windowStart)
	if err != nil {
		return nil, fmt.Errorf("history: stats daily counts: %w", err)
	}
	defer rows.Close()

	daily := make(map[string]int)
	for rows.Next() {
		var date string
		var count int
		if err := rows.Scan(&date, &count); err != nil {
			return nil, fmt.Errorf("history: scan daily count: %w", err)
		}
		daily[date] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: stats daily counts: %w", err)
	}

	stats.DailyRecordings = dailyWindow(now, daily)
	return stats, nil
}

// distribution fills dst with a value→count frequency table over column.
// column is one of the fixed identifiers above, never user input.
func (s *PostgresStore) distribution(ctx context.Context, column string, dst map[string]int) error {
	query := fmt.Sprintf(`SELECT %s, COUNT(*) FROM recordings GROUP BY %s`, column, column)

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("history: stats %s distribution: %w", column, err)
	}
	defer rows.Close()

	for rows.Next() {
		var value string
		var count int
		if err := rows.Scan(&value, &count); err != nil {
			return fmt.Errorf("history: scan %s distribution: %w", column, err)
		}
		dst[value] = count
	}
	return rows.Err()
}

// scanEntry reads one recordings row from a [pgx.Row] or [pgx.Rows].
func scanEntry(row pgx.Row) (Entry, error) {
	var (
		e       Entry
		animal  string
		need    string
		tipsRaw []byte
	)
	err := row.Scan(&e.ID, &e.UserID, &animal, &e.Transcription, &need,
		&e.Confidence, &tipsRaw, &e.CreatedAt)
	if err != nil {
		return Entry{}, err
	}
	e.AnimalType = types.AnimalType(animal)
	e.DetectedNeed = types.NeedType(need)
	if err := json.Unmarshal(tipsRaw, &e.Tips); err != nil {
		return Entry{}, fmt.Errorf("unmarshal tips: %w", err)
	}
	return e, nil
}
