package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/cvdreamjob/apiserver/config"
	"github.com/stretchr/testify/require"
)

func TestSQLiteDSNEnforcesForeignKeys(t *testing.T) {
	require.Equal(t,
		"file:x.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)",
		DSN(config.DatabaseConfig{Driver: DriverSQLite, URL: "file:x.db"}))
	require.Equal(t,
		"file:x.db?mode=rwc&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)",
		DSN(config.DatabaseConfig{Driver: DriverSQLite, URL: "file:x.db?mode=rwc"}))
	require.Equal(t,
		"file:x.db?_pragma=foreign_keys(0)",
		DSN(config.DatabaseConfig{Driver: DriverSQLite, URL: "file:x.db?_pragma=foreign_keys(0)"}))
}

func TestPostgresDSN(t *testing.T) {
	cfg := config.DatabaseConfig{
		Driver:   DriverPostgres,
		Host:     "db",
		Port:     5432,
		User:     "cv",
		Password: "p@ss",
		DBName:   "cvdream",
		UseSSL:   true,
	}
	require.Equal(t, "postgres://cv:p%40ss@db:5432/cvdream?sslmode=require", DSN(cfg))

	cfg.URL = "postgres://override"
	require.Equal(t, "postgres://override", DSN(cfg))
}

func TestMigrateSQLiteUpAndDown(t *testing.T) {
	ctx := context.Background()
	pool, err := Open(ctx, config.DatabaseConfig{
		Driver:       DriverSQLite,
		URL:          "file:" + filepath.Join(t.TempDir(), "m.db"),
		MaxOpenConns: 2,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })

	require.NoError(t, Migrate(pool, DriverSQLite, "up"))
	// A second run is a no-op.
	require.NoError(t, Migrate(pool, DriverSQLite, "up"))

	var n int
	require.NoError(t, pool.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM sqlite_master WHERE type = 'table' AND name IN ('user', 'account', 'session')`).Scan(&n))
	require.Equal(t, 3, n)

	require.NoError(t, Migrate(pool, DriverSQLite, "down"))
	require.NoError(t, pool.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM sqlite_master WHERE type = 'table' AND name IN ('user', 'account', 'session')`).Scan(&n))
	require.Zero(t, n)

	require.Error(t, Migrate(pool, DriverSQLite, "sideways"))
}
