package middleware

import (
    "bytes"
    "context"
    "crypto/sha1"
    "encoding/json"
    "fmt"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
    "go.uber.org/zap"

    "github.com/iliyamo/screening-reservation/internal/config"
)

// captureWriter records the status and up to limit bytes of the body
// while forwarding everything to the client.
type captureWriter struct {
    http.ResponseWriter
    status    int
    buf       bytes.Buffer
    limit     int
    truncated bool
}

func (cw *captureWriter) WriteHeader(code int) { cw.status = code; cw.ResponseWriter.WriteHeader(code) }

func (cw *captureWriter) Write(b []byte) (int, error) {
    if !cw.truncated {
        if cw.limit > 0 && cw.buf.Len()+len(b) > cw.limit {
            cw.truncated = true
            cw.buf.Reset()
        } else {
            cw.buf.Write(b)
        }
    }
    return cw.ResponseWriter.Write(b)
}

// cachedResponse is the value stored in Redis.
type cachedResponse struct {
    Status int         `json:"status"`
    Header http.Header `json:"header"`
    Body   []byte      `json:"body"`
}

// cacheKey hashes the route (and, for route_query, the query string) under
// the configured prefix so that Purge can drop every entry with one scan.
func cacheKey(cfg config.CacheConfig, c echo.Context) string {
    r := c.Request()
    tail := "route:" + c.Path() + ":path:" + r.URL.Path
    if strings.ToLower(cfg.KeyStrategy) != "route" {
        tail += ":q:" + r.URL.RawQuery
    }
    sum := sha1.Sum([]byte(tail))
    return fmt.Sprintf("%s:%x", cfg.Prefix, sum[:])
}

// NewRedisCache caches successful responses of the screening catalog
// reads.  Only 200 responses that fit in MaxBodyBytes are stored.  It is a
// pass-through when caching is disabled or rdb is nil.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client, log *zap.Logger) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if !cfg.Methods[strings.ToUpper(c.Request().Method)] {
                return next(c)
            }
            ctx := c.Request().Context()
            key := cacheKey(cfg, c)

            if bs, err := rdb.Get(ctx, key).Bytes(); err == nil {
                var cached cachedResponse
                if err := json.Unmarshal(bs, &cached); err == nil {
                    h := c.Response().Header()
                    for k, vals := range cached.Header {
                        if strings.EqualFold(k, echo.HeaderContentLength) {
                            continue
                        }
                        h[k] = vals
                    }
                    h.Set("X-Cache", "HIT")
                    return c.Blob(cached.Status, h.Get(echo.HeaderContentType), cached.Body)
                }
            } else if err != redis.Nil {
                log.Warn("cache read failed", zap.String("key", key), zap.Error(err))
            }

            cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: cfg.MaxBodyBytes}
            c.Response().Writer = cw
            c.Response().Header().Set("X-Cache", "MISS")
            if err := next(c); err != nil {
                return err
            }
            if cw.status != http.StatusOK || cw.truncated {
                return nil
            }

            hdr := c.Response().Header().Clone()
            hdr.Del("X-Cache")
            payload, err := json.Marshal(cachedResponse{Status: cw.status, Header: hdr, Body: cw.buf.Bytes()})
            if err != nil {
                return nil
            }
            // the request context may already be done once the body is written
            wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
            defer cancel()
            if err := rdb.Set(wctx, key, payload, cfg.TTL).Err(); err != nil {
                log.Warn("cache write failed", zap.String("key", key), zap.Error(err))
            }
            return nil
        }
    }
}

// Purge deletes every cached response under prefix.  Catalog writes call
// it so that clients never see a deleted screening or miss a new one for
// longer than the purge takes.
func Purge(ctx context.Context, rdb *redis.Client, prefix string) (int, error) {
    if rdb == nil {
        return 0, nil
    }
    var (
        cursor  uint64
        deleted int
    )
    for {
        keys, next, err := rdb.Scan(ctx, cursor, prefix+":*", 200).Result()
        if err != nil {
            return deleted, err
        }
        if len(keys) > 0 {
            n, err := rdb.Del(ctx, keys...).Result()
            if err != nil {
                return deleted, err
            }
            deleted += int(n)
        }
        if next == 0 {
            return deleted, nil
        }
        cursor = next
    }
}
