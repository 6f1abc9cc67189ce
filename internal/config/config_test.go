package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"DB_HOST", "SERVER_PORT", "REDIS_ADDR", "CACHE_TTL", "JWT_EXPIRY_HOURS", "MIGRATE_ON_START"} {
		t.Setenv(key, "")
	}
	// t.Setenv registers restoration; unset so defaults apply
	unset(t, "DB_HOST", "SERVER_PORT", "REDIS_ADDR", "CACHE_TTL", "JWT_EXPIRY_HOURS", "MIGRATE_ON_START")

	cfg := Load()

	assert.Equal(t, "localhost", cfg.DBHost)
	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Empty(t, cfg.RedisAddr)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)
	assert.Equal(t, 72*time.Hour, cfg.JWTExpiry)
	assert.True(t, cfg.MigrateOnStart)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("DB_HOST", "postgres")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("CACHE_TTL", "5m")
	t.Setenv("JWT_EXPIRY_HOURS", "1")
	t.Setenv("MIGRATE_ON_START", "false")

	cfg := Load()

	assert.Equal(t, "postgres", cfg.DBHost)
	assert.Equal(t, "redis:6379", cfg.RedisAddr)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.Equal(t, time.Hour, cfg.JWTExpiry)
	assert.False(t, cfg.MigrateOnStart)
}

func TestLoad_InvalidNumbersFallBack(t *testing.T) {
	t.Setenv("REDIS_DB", "two")
	t.Setenv("CACHE_TTL", "soon")
	t.Setenv("MIGRATE_ON_START", "maybe")

	cfg := Load()

	assert.Equal(t, 0, cfg.RedisDB)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)
	assert.True(t, cfg.MigrateOnStart)
}

func unset(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("unset %s: %v", key, err)
		}
	}
}
