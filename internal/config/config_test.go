package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "local", cfg.Mode)
	assert.Equal(t, "sqlite", cfg.Storage.Type)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, ":8087", cfg.Server.Addr)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PIPEHEALTH_MODE", "server")
	t.Setenv("STORAGE_TYPE", "postgres")
	t.Setenv("POSTGRES_DSN", "postgres://ph:secret@db:5432/pipehealth")
	t.Setenv("REDIS_HOST", "redis.internal")
	t.Setenv("SERVER_REQUESTS_PER_SEC", "5.5")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := Default()
	applyEnvOverrides(cfg)

	assert.Equal(t, "server", cfg.Mode)
	assert.Equal(t, "postgres", cfg.Storage.Type)
	assert.Equal(t, "postgres://ph:secret@db:5432/pipehealth", cfg.Storage.PostgresDSN)
	assert.True(t, cfg.Redis.Enabled, "setting REDIS_HOST enables redis")
	assert.Equal(t, "redis.internal", cfg.Redis.Host)
	assert.Equal(t, 5.5, cfg.Server.RequestsPerSec)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := Default()
	cfg.Mode = "demo"
	cfg.Storage.Type = "memory"
	cfg.Storage.SeedFile = "/tmp/seed.yaml"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "demo", loaded.Mode)
	assert.Equal(t, "memory", loaded.Storage.Type)
	assert.Equal(t, "/tmp/seed.yaml", loaded.Storage.SeedFile)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "x"), expandPath("~/x"))
	assert.Equal(t, "/abs/x", expandPath("/abs/x"))
	assert.Equal(t, "", expandPath(""))
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "(not set)", MaskSecret(""))
	assert.Equal(t, "***", MaskSecret("short"))
	assert.Equal(t, "postgre...alth", MaskSecret("postgres://ph@db/pipehealth"))
}
