package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := fromViper(newViper())
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "ease_academy", cfg.MongoDatabase)
	assert.Equal(t, 7*24*time.Hour, cfg.JWTExpiration)
	assert.Equal(t, "92", cfg.WahaCountryCode)
	assert.Equal(t, time.Minute, cfg.WorkerInterval)
	assert.Equal(t, "expo", cfg.PushProvider)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("JWT_EXPIRATION", "2h")
	t.Setenv("PUSH_PROVIDER", "FCM")
	t.Setenv("TIMEZONE", "UTC")

	cfg, err := fromViper(newViper())
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 2*time.Hour, cfg.JWTExpiration)
	assert.Equal(t, "fcm", cfg.PushProvider)
	assert.Equal(t, time.UTC, cfg.Location())
}

func TestInvalidTimezone(t *testing.T) {
	t.Setenv("TIMEZONE", "Mars/Olympus")

	_, err := fromViper(newViper())
	assert.Error(t, err)
}

func TestRequireServer(t *testing.T) {
	cfg := &Config{}
	assert.EqualError(t, cfg.RequireServer(), "MONGODB_URI not set")

	cfg.MongoURI = "mongodb://localhost:27017"
	assert.EqualError(t, cfg.RequireServer(), "JWT_SECRET not set")

	cfg.JWTSecret = "secret"
	assert.NoError(t, cfg.RequireServer())
}
