package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
    "strconv"
    "strings"

    "github.com/golang-jwt/jwt/v5" // JWT library for parsing and validating tokens
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/screening-reservation/internal/model"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token
// and stores the caller as a model.Actor in the request context (see
// ActorFrom).  The raw user_id and role are stored as well.  Tokens must
// be HS256, unexpired, and carry a numeric subject and a known role.
func JWTAuth(secret string) echo.MiddlewareFunc {
    parser := jwt.NewParser(
        jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
        jwt.WithExpirationRequired(),
    )
    keyFunc := func(*jwt.Token) (interface{}, error) { return []byte(secret), nil }

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            auth := c.Request().Header.Get("Authorization")
            if !strings.HasPrefix(auth, "Bearer ") {
                return unauthorized(c, "missing bearer token")
            }
            raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))

            claims := jwt.MapClaims{}
            tok, err := parser.ParseWithClaims(raw, claims, keyFunc)
            if err != nil || !tok.Valid {
                return unauthorized(c, "invalid token")
            }
            actor, ok := actorFromClaims(claims)
            if !ok {
                return unauthorized(c, "invalid claims")
            }

            c.Set(ctxUserID, actor.UserID)
            c.Set(ctxRole, actor.Role)
            c.Set(ctxActor, actor)
            return next(c)
        }
    }
}

// actorFromClaims accepts the subject as a decimal string or a JSON number.
func actorFromClaims(claims jwt.MapClaims) (model.Actor, bool) {
    var id uint64
    switch v := claims["sub"].(type) {
    case string:
        n, err := strconv.ParseUint(v, 10, 64)
        if err != nil {
            return model.Actor{}, false
        }
        id = n
    case float64:
        if v < 1 || v != float64(uint64(v)) {
            return model.Actor{}, false
        }
        id = uint64(v)
    default:
        return model.Actor{}, false
    }
    role, _ := claims["role"].(string)
    if id == 0 || (role != model.RoleUser && role != model.RoleAdmin) {
        return model.Actor{}, false
    }
    return model.Actor{UserID: id, Role: role}, true
}
