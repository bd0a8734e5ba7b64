package config

import (
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
)

func TestLoadMemoryDriver(t *testing.T) {
    t.Setenv("APP_ENV", "test")
    t.Setenv("JWT_SECRET", "s3cret")
    t.Setenv("ACCESS_TOKEN_TTL_MIN", "15")
    t.Setenv("STORAGE_DRIVER", "Memory")
    t.Setenv("SEED_MOVIE_IDS", "550, 551,x,0")
    t.Setenv("RECONCILE_INTERVAL", "30s")
    t.Setenv("ADMIN_EMAIL", " Admin@Example.com ")
    t.Setenv("ADMIN_PASSWORD", "changeme1")

    cfg := Load()
    assert.Equal(t, DriverMemory, cfg.StorageDriver)
    assert.Equal(t, "8080", cfg.Port)
    assert.Equal(t, 15, cfg.AccessTTLMin)
    assert.Equal(t, 520, cfg.MaxSeats)
    assert.Equal(t, []uint64{550, 551}, cfg.SeedMovieIDs)
    assert.Equal(t, 30*time.Second, cfg.ReconcileInterval)
    assert.Empty(t, cfg.DBHost)
    assert.Equal(t, "admin@example.com", cfg.AdminEmail)
}

func TestLoadMySQLDriver(t *testing.T) {
    t.Setenv("APP_ENV", "test")
    t.Setenv("JWT_SECRET", "s3cret")
    t.Setenv("ACCESS_TOKEN_TTL_MIN", "15")
    t.Setenv("STORAGE_DRIVER", "mysql")
    t.Setenv("DB_USER", "app")
    t.Setenv("DB_HOST", "db")
    t.Setenv("DB_NAME", "cinema")

    cfg := Load()
    assert.Equal(t, "3306", cfg.DBPort)
    assert.Equal(t, "cinema", cfg.DBName)
    assert.True(t, cfg.DBMigrate)
}

func TestLoadRateLimitConfigClamps(t *testing.T) {
    t.Setenv("RATE_LIMIT_CAPACITY", "0")
    t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
    t.Setenv("RATE_LIMIT_TTL", "1s")

    c := LoadRateLimitConfig()
    assert.Equal(t, 1, c.Capacity)
    assert.Equal(t, 4*time.Second, c.TTL)

    t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "500us")
    c = LoadRateLimitConfig()
    assert.Equal(t, time.Millisecond, c.RefillInterval)
    assert.EqualValues(t, 1, c.RefillInterval.Milliseconds())
}

func TestLoadCacheConfig(t *testing.T) {
    t.Setenv("CACHE_METHODS", "get, head")
    t.Setenv("CACHE_ENABLED", "off")

    c := LoadCacheConfig()
    assert.False(t, c.Enabled)
    assert.Equal(t, map[string]bool{"GET": true, "HEAD": true}, c.Methods)
    assert.Equal(t, "screenings", c.Prefix)
}
