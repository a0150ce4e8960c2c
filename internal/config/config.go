package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the runtime configuration for the portfolio backend.
// Every field has a sensible default so the server boots with an empty
// environment.
type Config struct {
	Port   string
	DBPath string

	// In-process cache tuning.
	CacheDefaultTTL    time.Duration
	CacheMaxEntries    int
	CacheSweepInterval time.Duration

	// Optional Redis tier.
	RedisSocket string

	// Database pool and query wrapper.
	DBMaxConns     int
	DBWaitTimeout  time.Duration
	SlowQueryAfter time.Duration

	LogLevel string
	LogFile  string
}

// Load reads configuration from environment variables, falling back to
// defaults for anything unset or unparseable.
func Load() Config {
	return Config{
		Port:               envString("PORT", "8080"),
		DBPath:             envString("DB_PATH", "portfolio.db"),
		CacheDefaultTTL:    envDuration("CACHE_DEFAULT_TTL", 600*time.Second),
		CacheMaxEntries:    envInt("CACHE_MAX_ENTRIES", 2000),
		CacheSweepInterval: envDuration("CACHE_SWEEP_INTERVAL", 300*time.Second),
		RedisSocket:        envString("REDIS_SOCKET", "/run/synocached.sock"),
		DBMaxConns:         envInt("DB_MAX_CONNS", 10),
		DBWaitTimeout:      envDuration("DB_WAIT_TIMEOUT", 5*time.Second),
		SlowQueryAfter:     envDuration("SLOW_QUERY_MS", 1000*time.Millisecond),
		LogLevel:           envString("LOG_LEVEL", "info"),
		LogFile:            envString("LOG_FILE", ""),
	}
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// envDuration accepts either a bare number (interpreted in the unit implied
// by the variable's default: seconds for *_TTL/*_INTERVAL, milliseconds for
// *_MS) or any Go duration string like "90s".
func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		unit := time.Second
		if def < time.Second || key == "SLOW_QUERY_MS" {
			unit = time.Millisecond
		}
		return time.Duration(n) * unit
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	return def
}
