package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, 3, cfg.LoginMaxFailures)
	assert.Equal(t, 5*time.Minute, cfg.LoginBlockWindow)
	assert.Equal(t, 24*time.Hour, cfg.SessionDuration)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example , https://b.example")
	t.Setenv("LOGIN_MAX_FAILURES", "5")
	t.Setenv("LOGIN_BLOCK_WINDOW", "10m")
	t.Setenv("REDIS_TLS", "true")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, 5, cfg.LoginMaxFailures)
	assert.Equal(t, 10*time.Minute, cfg.LoginBlockWindow)
	assert.True(t, cfg.RedisTLS)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("LOGIN_MAX_FAILURES", "many")
	t.Setenv("SESSION_DURATION", "soon")

	cfg := Load()

	assert.Equal(t, 3, cfg.LoginMaxFailures)
	assert.Equal(t, 24*time.Hour, cfg.SessionDuration)
}
