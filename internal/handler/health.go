package handler // declare the package name; contains HTTP handlers

import (
    "net/http"
    "time"

    "github.com/labstack/echo/v4"
)

type healthResp struct {
    Status string    `json:"status"`
    Time   time.Time `json:"time"`
}

// Health reports liveness for load balancers.  It touches no storage so
// a slow database never fails the probe.
func Health(c echo.Context) error {
    return c.JSON(http.StatusOK, healthResp{Status: "ok", Time: time.Now().UTC()})
}
