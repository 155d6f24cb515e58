package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SkeletonSFD/DnD-Project/pkg/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := config.Load(testLogger(), "config")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "default-secret-key-change-me", cfg.Server.Auth.JWTSecret)
	assert.Equal(t, 24*time.Hour, cfg.Server.Auth.TokenTTL)
	assert.Equal(t, 0, cfg.Server.ConnectionLimit.MaxPerUser)
	assert.Equal(t, 60*time.Second, cfg.Transport.ReadTimeout)
	assert.Empty(t, cfg.Database.URL)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	content := []byte(`
server:
  address: ":9999"
  auth:
    jwtSecret: "file-secret"
    tokenTTL: "1h"
  connectionLimit:
    maxPerUser: 3
log:
  level: "debug"
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), content, 0o644))

	cfg, err := config.Load(testLogger(), "config")
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Server.Address)
	assert.Equal(t, "file-secret", cfg.Server.Auth.JWTSecret)
	assert.Equal(t, time.Hour, cfg.Server.Auth.TokenTTL)
	assert.Equal(t, 3, cfg.Server.ConnectionLimit.MaxPerUser)
	assert.Equal(t, "debug", cfg.Log.Level)

	// keys absent from the file keep their defaults
	assert.Equal(t, 60*time.Second, cfg.Transport.ReadTimeout)
}

func TestLoadMalformedFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server: [not: valid"), 0o644))

	_, err := config.Load(testLogger(), "config")
	assert.Error(t, err)
}
