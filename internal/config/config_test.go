package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  dsn: "postgres://localhost/pricing"
outbox:
  maxRetries: 7
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/pricing", cfg.Database.DSN)
	assert.Equal(t, 7, cfg.Outbox.MaxRetries)
	assert.Equal(t, int32(10), cfg.Database.MaxConns) // untouched default
}

func TestLoadAppliesEnvOverOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  dsn: "postgres://localhost/pricing"
`), 0o644))

	t.Setenv("PRICING_DATABASE_DSN", "postgres://prod/pricing")
	t.Setenv("PRICING_OUTBOX_MAX_RETRIES", "3")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres://prod/pricing", cfg.Database.DSN)
	assert.Equal(t, 3, cfg.Outbox.MaxRetries)
}

func TestLoadRejectsMissingDatabaseDSN(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http:\n  addr: \":9090\"\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsMalformedEnvDuration(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database:\n  dsn: \"postgres://localhost/pricing\"\n"), 0o644))

	t.Setenv("PRICING_OUTBOX_POLL_INTERVAL", "not-a-duration")

	_, err := Load(path)
	require.Error(t, err)
}
