package middleware

import (
    "net/http"
    "time"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"
)

// RequestLogger logs one line per request, at error level for 5xx
// responses, debug for the expected refusals of a booking flow, warn for
// other 4xx and info otherwise.
func RequestLogger(log *zap.Logger) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            start := time.Now()
            err := next(c)
            if err != nil {
                // let Echo's error handler pick the status before logging it
                c.Error(err)
            }

            req := c.Request()
            res := c.Response()
            fields := []zap.Field{
                zap.Int("status", res.Status),
                zap.String("method", req.Method),
                zap.String("path", req.URL.Path),
                zap.String("route", c.Path()),
                zap.String("ip", c.RealIP()),
                zap.String("user", userID(c)),
                zap.Duration("latency", time.Since(start)),
                zap.Int64("bytes", res.Size),
            }
            if id := res.Header().Get(echo.HeaderXRequestID); id != "" {
                fields = append(fields, zap.String("request_id", id))
            }
            if err != nil {
                fields = append(fields, zap.Error(err))
            }

            switch {
            case res.Status >= 500:
                log.Error("server error", fields...)
            case expectedOutcome(res.Status):
                log.Debug("request refused", fields...)
            case res.Status >= 400:
                log.Warn("client error", fields...)
            default:
                log.Info("request completed", fields...)
            }
            return nil
        }
    }
}

// expectedOutcome reports statuses a well-behaved client meets in normal
// use: a taken seat or an already cancelled reservation (409), a
// declined card (402) and a missing screening or reservation (404).
func expectedOutcome(status int) bool {
    switch status {
    case http.StatusConflict, http.StatusPaymentRequired, http.StatusNotFound:
        return true
    }
    return false
}
