package config

import "time"

// RateLimitConfig configures the token bucket guarding booking requests.
// Each key starts with Capacity tokens and regains RefillTokens every
// RefillInterval.  KeyStrategy is one of ip, user, ip_route, user_route
// or ip_user_route.
type RateLimitConfig struct {
    Enabled        bool
    Capacity       int
    RefillTokens   int
    RefillInterval time.Duration
    TTL            time.Duration
    KeyStrategy    string
    Prefix         string
}

// LoadRateLimitConfig reads RATE_LIMIT_* variables and clamps them to
// usable values.
func LoadRateLimitConfig() RateLimitConfig {
    def := RateLimitConfig{
        Enabled:        envBool("RATE_LIMIT_ENABLED", true),
        Capacity:       envInt("RATE_LIMIT_CAPACITY", 10),
        RefillTokens:   envInt("RATE_LIMIT_REFILL_TOKENS", 1),
        RefillInterval: envDur("RATE_LIMIT_REFILL_INTERVAL", 6*time.Second),
        TTL:            envDur("RATE_LIMIT_TTL", 10*time.Minute),
        KeyStrategy:    envStr("RATE_LIMIT_KEY_STRATEGY", "user_route"),
        Prefix:         envStr("RATE_LIMIT_PREFIX", "rl"),
    }
    def.Capacity = max(def.Capacity, 1)
    def.RefillTokens = max(def.RefillTokens, 1)
    if def.RefillInterval <= 0 {
        def.RefillInterval = time.Second
    }
    // the bucket script works in whole milliseconds and divides by the interval
    def.RefillInterval = max(def.RefillInterval, time.Millisecond)
    // a bucket must outlive the time it takes to refill completely
    minTTL := time.Duration(def.Capacity/def.RefillTokens+1) * def.RefillInterval
    def.TTL = max(def.TTL, minTTL)
    return def
}
