package database

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T, cfg Config) *DB {
	t.Helper()
	if cfg.Path == "" {
		cfg.Path = filepath.Join(t.TempDir(), "history.db")
	}
	db, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpen_CreatesDirectoryAndFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "history.db")
	db := openTestDB(t, Config{Path: path, BusyTimeout: 5})

	if db.Path() != path {
		t.Errorf("Path() = %q, want %q", db.Path(), path)
	}
}

func TestOpen_WALMode(t *testing.T) {
	db := openTestDB(t, Config{Path: filepath.Join(t.TempDir(), "wal.db"), WALMode: true, BusyTimeout: 5})

	var mode string
	if err := db.QueryRowContext(context.Background(), "PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("querying journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}
}

func TestOpen_ForeignKeysEnabled(t *testing.T) {
	db := openTestDB(t, Config{BusyTimeout: 5})

	var fk int
	if err := db.QueryRowContext(context.Background(), "PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("querying foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Errorf("foreign_keys = %d, want 1", fk)
	}
}

func TestHealthCheck(t *testing.T) {
	db := openTestDB(t, Config{BusyTimeout: 5})

	if err := db.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck on open database: %v", err)
	}

	db.Close()
	if err := db.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck succeeded on a closed database")
	}
}

func TestClose_Idempotent(t *testing.T) {
	db := openTestDB(t, Config{BusyTimeout: 5})

	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// Second close surfaces no panic; sql.DB tolerates repeated closes.
	if err := db.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
