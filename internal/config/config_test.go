package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 600*time.Second, cfg.CacheDefaultTTL)
	assert.Equal(t, 2000, cfg.CacheMaxEntries)
	assert.Equal(t, 300*time.Second, cfg.CacheSweepInterval)
	assert.Equal(t, "/run/synocached.sock", cfg.RedisSocket)
	assert.Equal(t, 1000*time.Millisecond, cfg.SlowQueryAfter)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("CACHE_DEFAULT_TTL", "120")
	t.Setenv("CACHE_MAX_ENTRIES", "50")
	t.Setenv("SLOW_QUERY_MS", "250")
	t.Setenv("DB_WAIT_TIMEOUT", "2s")

	cfg := Load()
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 120*time.Second, cfg.CacheDefaultTTL)
	assert.Equal(t, 50, cfg.CacheMaxEntries)
	assert.Equal(t, 250*time.Millisecond, cfg.SlowQueryAfter)
	assert.Equal(t, 2*time.Second, cfg.DBWaitTimeout)
}

func TestLoadIgnoresGarbage(t *testing.T) {
	t.Setenv("CACHE_MAX_ENTRIES", "not-a-number")
	t.Setenv("CACHE_DEFAULT_TTL", "-5")

	cfg := Load()
	assert.Equal(t, 2000, cfg.CacheMaxEntries)
	assert.Equal(t, 600*time.Second, cfg.CacheDefaultTTL)
}
