package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBaseEnv(t *testing.T, dir string) {
	t.Helper()
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("APP_ENV", "test")
	t.Setenv("DATABASE_URL", "sqlite://"+filepath.Join(dir, "run.db"))
	t.Setenv("UPLOAD_DIR", filepath.Join(dir, "uploads"))
	t.Setenv("NATS_URL", "")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
}

func TestRun_MissingSecret(t *testing.T) {
	setBaseEnv(t, t.TempDir())
	t.Setenv("JWT_SECRET", "")

	err := run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestRun_UnknownDatabaseScheme(t *testing.T) {
	setBaseEnv(t, t.TempDir())
	t.Setenv("DATABASE_URL", "redis://localhost:6379")

	err := run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initialize database")
}

func TestRun_UploadDirFailureAfterStoreOpened(t *testing.T) {
	dir := t.TempDir()
	setBaseEnv(t, dir)
	blocker := filepath.Join(dir, "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	t.Setenv("UPLOAD_DIR", filepath.Join(blocker, "uploads"))

	err := run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to prepare upload directory")

	// The store was opened and migrated before the failure.
	_, statErr := os.Stat(filepath.Join(dir, "run.db"))
	assert.NoError(t, statErr)
}
