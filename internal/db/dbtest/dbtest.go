// Package dbtest provides migrated SQLite databases for package tests.
package dbtest

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/cvdreamjob/apiserver/config"
	"github.com/cvdreamjob/apiserver/internal/db"
)

// NewSQLite opens a file-backed SQLite pool in a temp dir and applies all
// migrations. The pool is closed when the test ends.
func NewSQLite(t testing.TB) *sql.DB {
	t.Helper()

	cfg := config.DatabaseConfig{
		Driver:       db.DriverSQLite,
		URL:          "file:" + filepath.Join(t.TempDir(), "cvdream.db"),
		MaxOpenConns: 4,
	}
	pool, err := db.Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = pool.Close() })

	if err := db.Migrate(pool, db.DriverSQLite, "up"); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return pool
}
