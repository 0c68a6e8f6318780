package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("POSTGRES_DSN_FILE", "")
	t.Setenv("APP_ENV", "development")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Empty(t, cfg.Postgres.DSN)
	assert.Equal(t, "migrations", cfg.Postgres.MigrationsDir)
	assert.Equal(t, 30*time.Second, cfg.App.RequestTimeout())
	assert.Equal(t, 60*time.Second, cfg.Messaging.PollInterval())
}

func TestLoad_DSNFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dsn")
	require.NoError(t, os.WriteFile(path, []byte("postgres://app@db/field\n"), 0o600))
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("POSTGRES_DSN_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://app@db/field", cfg.Postgres.DSN)
}

func TestLoad_EnvDSNWinsOverFile(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "postgres://env")
	t.Setenv("POSTGRES_DSN_FILE", "/does/not/exist")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://env", cfg.Postgres.DSN)
}

func TestLoad_MissingDSNFile(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("POSTGRES_DSN_FILE", filepath.Join(t.TempDir(), "missing"))

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_ProductionNeedsSecret(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("AUTH_JWT_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
}
