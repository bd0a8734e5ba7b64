package middleware // middleware provides shared request processing for handlers

import (
    "net/http"

    "github.com/labstack/echo/v4"
)

// RequireRole returns a middleware that lets the request through only when
// the actor stored by JWTAuth holds one of roles.  Requests without an
// actor are rejected with 401, requests with another role with 403.
func RequireRole(roles ...string) echo.MiddlewareFunc {
    allowed := make(map[string]bool, len(roles))
    for _, r := range roles {
        allowed[r] = true
    }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            actor, ok := ActorFrom(c)
            if !ok {
                return unauthorized(c, "authentication required")
            }
            if !allowed[actor.Role] {
                return deny(c, http.StatusForbidden, "Forbidden", "insufficient role")
            }
            return next(c)
        }
    }
}
