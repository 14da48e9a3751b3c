package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-hcpbridge/internal/hoermann"
	"github.com/nerrad567/gray-logic-hcpbridge/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-hcpbridge/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-hcpbridge/migrations"
)

// setupRepo opens a migrated database with a controllable clock.
func setupRepo(t *testing.T) (*SQLiteRepository, *time.Time) {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "history.db"),
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(ctx, migrations.FS); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := NewSQLiteRepository(db.DB)
	repo.now = func() time.Time { return now }
	return repo, &now
}

func TestRecordAndList(t *testing.T) {
	repo, now := setupRepo(t)
	ctx := context.Background()

	snaps := []hoermann.Snapshot{
		{Motion: hoermann.Closed, Valid: true},
		{Motion: hoermann.Opening, CurrentPosition: 40, TargetPosition: 100, LightOn: true, Valid: true},
		{Motion: hoermann.Open, CurrentPosition: 100, TargetPosition: 100, LightOn: true, RelayOn: true, Valid: true},
	}
	for _, s := range snaps {
		if err := repo.Record(ctx, "garage-door", s, ""); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
		*now = now.Add(time.Second)
	}
	if err := repo.Record(ctx, "other-door", snaps[0], SourceBus); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	entries, err := repo.List(ctx, "garage-door", 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("List() returned %d entries, want 3", len(entries))
	}

	latest := entries[0]
	if latest.Motion != hoermann.Open {
		t.Errorf("latest Motion = %v, want open", latest.Motion)
	}
	if latest.CurrentPosition != 100 || !latest.LightOn || !latest.RelayOn || !latest.Valid {
		t.Errorf("latest = %+v", latest)
	}
	if latest.Source != SourceBus {
		t.Errorf("Source = %q, want default %q", latest.Source, SourceBus)
	}
	if entries[2].Motion != hoermann.Closed {
		t.Errorf("oldest Motion = %v, want closed", entries[2].Motion)
	}
	want := time.Date(2026, 3, 1, 12, 0, 2, 0, time.UTC)
	if !latest.CreatedAt.Equal(want) {
		t.Errorf("CreatedAt = %v, want %v", latest.CreatedAt, want)
	}
}

func TestList_Limit(t *testing.T) {
	repo, now := setupRepo(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := repo.Record(ctx, "garage-door", hoermann.Snapshot{CurrentPosition: float64(i * 10)}, SourceBus); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
		*now = now.Add(time.Millisecond)
	}

	entries, err := repo.List(ctx, "garage-door", 2)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("List() returned %d entries, want 2", len(entries))
	}
	if entries[0].CurrentPosition != 40 {
		t.Errorf("newest CurrentPosition = %v, want 40", entries[0].CurrentPosition)
	}
}

func TestClampLimit(t *testing.T) {
	tests := []struct{ in, want int }{
		{0, defaultListLimit},
		{-1, defaultListLimit},
		{10, 10},
		{maxListLimit + 1, maxListLimit},
	}
	for _, tt := range tests {
		if got := clampLimit(tt.in); got != tt.want {
			t.Errorf("clampLimit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestPrune(t *testing.T) {
	repo, now := setupRepo(t)
	ctx := context.Background()

	if err := repo.Record(ctx, "garage-door", hoermann.Snapshot{}, SourceWatchdog); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	*now = now.Add(48 * time.Hour)
	if err := repo.Record(ctx, "garage-door", hoermann.Snapshot{}, SourceBus); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	deleted, err := repo.Prune(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if deleted != 1 {
		t.Errorf("Prune() deleted %d, want 1", deleted)
	}

	entries, _ := repo.List(ctx, "garage-door", 10)
	if len(entries) != 1 || entries[0].Source != SourceBus {
		t.Errorf("remaining = %+v, want the recent bus entry", entries)
	}
}

func TestValidation(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	if err := repo.Record(ctx, "", hoermann.Snapshot{}, SourceBus); !errors.Is(err, ErrDoorIDRequired) {
		t.Errorf("Record(\"\") = %v, want ErrDoorIDRequired", err)
	}
	if _, err := repo.List(ctx, "", 10); !errors.Is(err, ErrDoorIDRequired) {
		t.Errorf("List(\"\") = %v, want ErrDoorIDRequired", err)
	}
	if _, err := repo.Prune(ctx, 0); !errors.Is(err, ErrInvalidRetention) {
		t.Errorf("Prune(0) = %v, want ErrInvalidRetention", err)
	}
}
