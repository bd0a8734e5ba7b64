package handler

import (
	"fmt"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/screening-reservation/internal/middleware"
	"github.com/iliyamo/screening-reservation/internal/model"
	"github.com/iliyamo/screening-reservation/internal/service"
)

// writeError renders err as {"kind", "error"} with the status of its
// kind.  Internal errors are logged and their message is not exposed.
func writeError(c echo.Context, log *zap.Logger, err error) error {
	status := service.StatusOf(err)
	kind := service.KindOf(err)
	msg := err.Error()
	if status >= 500 {
		log.Error("request failed",
			zap.String("kind", kind),
			zap.String("method", c.Request().Method),
			zap.String("path", c.Request().URL.Path),
			zap.Error(err))
		if kind == service.KindInternal {
			msg = "internal error"
		}
	}
	return c.JSON(status, echo.Map{"kind": kind, "error": msg})
}

// actor returns the authenticated caller set by middleware.JWTAuth.
func actor(c echo.Context) (model.Actor, error) {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		return model.Actor{}, fmt.Errorf("%w: no verified access token", service.ErrUnauthorized)
	}
	return a, nil
}

// idParam parses a positive numeric path parameter.
func idParam(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: invalid %s", service.ErrInvalidInput, name)
	}
	return id, nil
}

// intQuery parses an optional non-negative query parameter.
func intQuery(c echo.Context, name string, def int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", service.ErrInvalidInput, name)
	}
	return n, nil
}
