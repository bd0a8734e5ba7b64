package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/screening-reservation/internal/handler"
	"github.com/iliyamo/screening-reservation/internal/middleware"
	"github.com/iliyamo/screening-reservation/internal/model"
)

// Handlers groups everything the router mounts.
type Handlers struct {
	Auth         *handler.AuthHandler
	Screenings   *handler.ScreeningHandler
	Reservations *handler.ReservationHandler
}

// Middleware groups the optional Redis-backed middlewares.  A nil field
// is skipped.
type Middleware struct {
	Cache     echo.MiddlewareFunc // in front of catalog reads
	RateLimit echo.MiddlewareFunc // in front of booking
}

// RegisterRoutes registers routes that do not require authentication.
// Load balancers use /healthz to verify that the service is up.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// Register mounts every API route on e.
func Register(e *echo.Echo, h Handlers, mw Middleware, jwtSecret string) {
	RegisterRoutes(e)
	RegisterAuth(e, h.Auth, jwtSecret)
	RegisterScreenings(e, h.Screenings, mw, jwtSecret)
	RegisterReservations(e, h.Reservations, mw, jwtSecret)
}

// RegisterAuth registers the account endpoints.  Register and login live
// under /v1/auth; /v1/me needs a valid access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)

	auth := e.Group("/v1", middleware.JWTAuth(jwtSecret))
	auth.GET("/me", a.Me)
}

// RegisterScreenings registers the public catalog reads and the
// administrator-only catalog writes.  Seat availability is never cached.
func RegisterScreenings(e *echo.Echo, s *handler.ScreeningHandler, mw Middleware, jwtSecret string) {
	var cached []echo.MiddlewareFunc
	if mw.Cache != nil {
		cached = append(cached, mw.Cache)
	}
	e.GET("/v1/screenings", s.List, cached...)
	e.GET("/v1/screenings/:id", s.Get, cached...)
	e.GET("/v1/screenings/:id/seats", s.Seats)

	admin := []echo.MiddlewareFunc{
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	}
	e.POST("/v1/screenings", s.Create, admin...)
	e.DELETE("/v1/screenings/:id", s.Delete, admin...)
}

// RegisterReservations registers booking and reservation endpoints.  All
// of them require a valid access token; ownership is checked by the
// reservation engine.
func RegisterReservations(e *echo.Echo, r *handler.ReservationHandler, mw Middleware, jwtSecret string) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleUser, model.RoleAdmin),
	)
	var limited []echo.MiddlewareFunc
	if mw.RateLimit != nil {
		limited = append(limited, mw.RateLimit)
	}
	g.POST("/reservations", r.Create, limited...)
	g.GET("/reservations", r.List)
	g.GET("/reservations/:id", r.Get)
	g.POST("/reservations/:id/cancel", r.Cancel)
	g.DELETE("/reservations/:id", r.Cancel)
	g.GET("/users/:id/reservations", r.ListByUser)
}
