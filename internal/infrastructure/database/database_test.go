package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-hcpbridge/internal/infrastructure/config"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	return db
}

func TestOpen(t *testing.T) {
	t.Run("creates nested directory and file", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "subdir", "nested", "test.db")

		db, err := Open(context.Background(), config.DatabaseConfig{Path: dbPath, BusyTimeout: 5})
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer db.Close() //nolint:errcheck // Test cleanup

		info, err := os.Stat(dbPath)
		if err != nil {
			t.Fatalf("database file was not created: %v", err)
		}
		if perm := info.Mode().Perm(); perm != filePermissions {
			t.Errorf("file mode = %o, want %o", perm, filePermissions)
		}
		if db.Path() != dbPath {
			t.Errorf("Path() = %v, want %v", db.Path(), dbPath)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := Open(ctx, config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "test.db")})
		if err == nil {
			t.Error("Open() with cancelled context should fail")
		}
	})
}

func TestHealthCheck(t *testing.T) {
	db := openTestDB(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	if err := db.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := db.HealthCheck(ctx); err == nil {
		t.Error("HealthCheck() after Close should fail")
	}
}

func TestClose_Nil(t *testing.T) {
	var db *DB
	if err := db.Close(); err != nil {
		t.Errorf("Close() on nil DB = %v, want nil", err)
	}
}
