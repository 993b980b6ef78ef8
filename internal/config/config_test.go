package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("PORT", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("APP_ENV", "")
	t.Setenv("MAX_UPLOAD_BYTES", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "5000", cfg.Port)
	assert.Equal(t, "sqlite://postwall.db", cfg.DatabaseURL)
	assert.Equal(t, int64(5<<20), cfg.MaxUploadBytes)
	assert.True(t, cfg.IsLocal())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", " s3cret ")
	t.Setenv("PORT", "8080")
	t.Setenv("APP_ENV", "prod")
	t.Setenv("MAX_UPLOAD_BYTES", "1024")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("RATE_LIMIT_BURST", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.Equal(t, "8080", cfg.Port)
	assert.False(t, cfg.IsLocal())
	assert.Equal(t, int64(1024), cfg.MaxUploadBytes)
	assert.Equal(t, 2.5, cfg.RateLimitRPS)
	assert.Equal(t, 3, cfg.RateLimitBurst)
}

func TestLoad_RequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := Load()
	assert.Error(t, err)
}
