package history_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/petspeakapp/petspeak/internal/history"
	"github.com/petspeakapp/petspeak/pkg/types"
)

// newTestStore creates a fresh [history.PostgresStore] with a clean table,
// skipping unless PETSPEAK_TEST_POSTGRES_DSN is set.
func newTestStore(t *testing.T) *history.PostgresStore {
	t.Helper()
	dsn := os.Getenv("PETSPEAK_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("PETSPEAK_TEST_POSTGRES_DSN not set — skipping PostgreSQL integration tests")
	}
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	t.Cleanup(pool.Close)

	if _, err := pool.Exec(ctx, `DROP TABLE IF EXISTS recordings`); err != nil {
		t.Fatalf("drop table: %v", err)
	}

	s := history.NewPostgresStore(pool)
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func TestPostgresStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	stored, err := s.Append(ctx, history.Entry{
		UserID:        "u1",
		AnimalType:    types.AnimalCat,
		Transcription: "meow meow",
		DetectedNeed:  types.NeedAttention,
		Confidence:    72.5,
		Tips:          []string{"pet the cat", "open the door"},
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if stored.ID == "" {
		t.Fatal("append must assign an id")
	}

	got, err := s.Get(ctx, stored.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.UserID != "u1" || got.AnimalType != types.AnimalCat ||
		got.Transcription != "meow meow" || got.DetectedNeed != types.NeedAttention ||
		got.Confidence != 72.5 || len(got.Tips) != 2 {
		t.Errorf("round-trip mismatch: %+v", got)
	}
}

func TestPostgresStore_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	var ids []string
	for i := range 3 {
		stored, err := s.Append(ctx, history.Entry{
			UserID:       "u1",
			AnimalType:   types.AnimalDog,
			DetectedNeed: types.NeedPlayful,
			Confidence:   50,
			CreatedAt:    base.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			t.Fatalf("append: %v", err)
		}
		ids = append(ids, stored.ID)
	}

	entries, err := s.ListByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("len = %d, want 3", len(entries))
	}
	if entries[0].ID != ids[2] {
		t.Error("entries must be newest first")
	}

	if err := s.Delete(ctx, ids[0], "intruder"); !errors.Is(err, history.ErrForbidden) {
		t.Errorf("non-owner delete error = %v, want ErrForbidden", err)
	}
	if err := s.Delete(ctx, ids[0], "u1"); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
	if err := s.Delete(ctx, ids[0], "u1"); !errors.Is(err, history.ErrNotFound) {
		t.Errorf("double delete error = %v, want ErrNotFound", err)
	}

	entries, err = s.ListByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("list after delete: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("len after delete = %d, want 2", len(entries))
	}
}

func TestPostgresStore_AggregateStats(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	now := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)

	entries := []history.Entry{
		{UserID: "u1", AnimalType: types.AnimalDog, DetectedNeed: types.NeedHungry, Confidence: 80, CreatedAt: now},
		{UserID: "u2", AnimalType: types.AnimalCat, DetectedNeed: types.NeedHungry, Confidence: 60, CreatedAt: now.AddDate(0, 0, -3)},
		{UserID: "u2", AnimalType: types.AnimalCat, DetectedNeed: types.NeedTired, Confidence: 40, CreatedAt: now.AddDate(0, 0, -30)},
	}
	for _, e := range entries {
		if _, err := s.Append(ctx, e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	stats, err := s.AggregateStats(ctx, now)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalRecordings != 3 || stats.TotalUsers != 2 {
		t.Errorf("totals = %d/%d, want 3/2", stats.TotalRecordings, stats.TotalUsers)
	}
	if stats.AvgConfidence != 60 {
		t.Errorf("avgConfidence = %v, want 60", stats.AvgConfidence)
	}
	if stats.NeedDistribution["hungry"] != 2 || stats.AnimalDistribution["cat"] != 2 {
		t.Errorf("distributions = %v / %v", stats.NeedDistribution, stats.AnimalDistribution)
	}
	if len(stats.DailyRecordings) != history.StatsWindowDays {
		t.Fatalf("daily buckets = %d, want %d", len(stats.DailyRecordings), history.StatsWindowDays)
	}
	if last := stats.DailyRecordings[6]; last.Date != "2026-03-10" || last.Count != 1 {
		t.Errorf("last bucket = %+v, want {2026-03-10 1}", last)
	}
	if stats.DailyRecordings[3].Count != 1 { // now - 3d
		t.Errorf("bucket[3] = %+v, want count 1", stats.DailyRecordings[3])
	}
}
