package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	drepo "github.com/jam2205/TradingView-Screener/internal/domain/repository"
)

func newSQLiteTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "screener.db"), testLogger(t))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	store := newSQLiteTestStore(t)

	at := time.Date(2025, 8, 30, 14, 30, 0, 0, time.UTC)
	loc, err := store.Save(context.Background(), sampleSnapshot("stocks", at))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if loc == "" {
		t.Fatal("empty location")
	}

	snaps, err := store.Load(context.Background(), "stocks", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(snaps) != 1 {
		t.Fatalf("snaps = %d, want 1", len(snaps))
	}
	got := snaps[0]
	if !got.CollectedAt.Equal(at) || got.TotalCount != 2 {
		t.Fatalf("collected_at=%v total=%d", got.CollectedAt, got.TotalCount)
	}
	if got.NumRows() != 2 || len(got.Columns) != 3 {
		t.Fatalf("rows=%d columns=%v", got.NumRows(), got.Columns)
	}
	// JSON numbers come back as float64, JSON null as nil.
	if got.Rows[0][1] != 180.5 {
		t.Fatalf("close = %v (%T), want 180.5", got.Rows[0][1], got.Rows[0][1])
	}
	if got.Rows[1][1] != nil {
		t.Fatalf("missing cell = %v, want nil", got.Rows[1][1])
	}
}

func TestSQLiteStoreSaveIsIdempotentPerStamp(t *testing.T) {
	store := newSQLiteTestStore(t)

	at := time.Date(2025, 8, 30, 14, 30, 0, 0, time.UTC)
	for i := 0; i < 2; i++ {
		if _, err := store.Save(context.Background(), sampleSnapshot("stocks", at)); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	stamps, err := store.List(context.Background(), "stocks")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(stamps) != 1 {
		t.Fatalf("stamps = %d, want 1 (same stamp replaces)", len(stamps))
	}
}

func TestSQLiteStoreLoadRange(t *testing.T) {
	store := newSQLiteTestStore(t)

	base := time.Date(2025, 8, 30, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		if _, err := store.Save(context.Background(), sampleSnapshot("stocks", base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	snaps, err := store.Load(context.Background(), "stocks", base.Add(time.Hour), base.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("snaps = %d, want 2", len(snaps))
	}
	for i := 1; i < len(snaps); i++ {
		if snaps[i].CollectedAt.Before(snaps[i-1].CollectedAt) {
			t.Fatal("snapshots out of chronological order")
		}
	}
}

func TestSQLiteStoreRequiresPath(t *testing.T) {
	_, err := NewSQLiteStore("", testLogger(t))
	if !errors.Is(err, drepo.ErrInvalidConfig) {
		t.Fatalf("err = %v, want ErrInvalidConfig", err)
	}
}
