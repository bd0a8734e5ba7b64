package middleware

// identity.go holds the context keys JWTAuth fills and the helpers that
// read them back.

import (
    "net/http"
    "strconv"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/screening-reservation/internal/model"
)

const (
    ctxUserID = "user_id"
    ctxRole   = "role"
    ctxActor  = "actor"
)

// ActorFrom returns the authenticated caller stored by JWTAuth.
func ActorFrom(c echo.Context) (model.Actor, bool) {
    a, ok := c.Get(ctxActor).(model.Actor)
    return a, ok
}

// userID returns the caller's id as a string, or "anon" for requests
// without a verified token.
func userID(c echo.Context) string {
    if a, ok := ActorFrom(c); ok {
        return strconv.FormatUint(a.UserID, 10)
    }
    return "anon"
}

// deny writes the error body shared with the handlers.
func deny(c echo.Context, status int, kind, msg string) error {
    return c.JSON(status, echo.Map{"kind": kind, "error": msg})
}

func unauthorized(c echo.Context, msg string) error {
    return deny(c, http.StatusUnauthorized, "Unauthorized", msg)
}
