package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_MAX_OPEN_CONNS", "5")
	t.Setenv("BCRYPT_COST", "12")

	cfg := LoadConfig()
	require.NoError(t, cfg.Validate())
	require.Equal(t, "postgres", cfg.Database.Driver)
	require.Equal(t, 5, cfg.Database.MaxOpenConns)
	require.Equal(t, 10*time.Second, cfg.Database.ConnMaxIdle)
	require.Equal(t, MinBcryptCost, cfg.BcryptCost)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("DATABASE_URL", "file:test.db")
	t.Setenv("DB_STATEMENT_TIMEOUT", "250ms")
	t.Setenv("MINIO_USE_SSL", "yes")
	t.Setenv("STORAGE_BACKEND", "minio")
	t.Setenv("BCRYPT_COST", "13")

	cfg := LoadConfig()
	require.NoError(t, cfg.Validate())
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, 250*time.Millisecond, cfg.Database.StatementTimeout)
	require.True(t, cfg.Storage.Minio.UseSSL)
	require.Equal(t, 13, cfg.BcryptCost)
}

func TestValidateRejectsWeakBcryptCost(t *testing.T) {
	t.Setenv("BCRYPT_COST", "10")
	cfg := LoadConfig()
	require.ErrorContains(t, cfg.Validate(), "BCRYPT_COST")
}

func TestValidateRejectsUnknownBackends(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "ftp")
	cfg := LoadConfig()
	require.ErrorContains(t, cfg.Validate(), "STORAGE_BACKEND")

	t.Setenv("STORAGE_BACKEND", "")
	t.Setenv("MQ_BACKEND", "carrier-pigeon")
	cfg = LoadConfig()
	require.ErrorContains(t, cfg.Validate(), "MQ_BACKEND")
}
