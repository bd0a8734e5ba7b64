package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/screening-reservation/internal/ledger"
	"github.com/iliyamo/screening-reservation/internal/model"
	"github.com/iliyamo/screening-reservation/internal/service"
)

// ScreeningHandler serves the screening catalog and seat availability.
type ScreeningHandler struct {
	Catalog *service.Catalog
	Engine  *service.Engine
	Log     *zap.Logger
}

func NewScreeningHandler(cat *service.Catalog, eng *service.Engine, log *zap.Logger) *ScreeningHandler {
	return &ScreeningHandler{Catalog: cat, Engine: eng, Log: log}
}

type createScreeningReq struct {
	MovieID    uint64      `json:"movie_id"`
	ShowTime   time.Time   `json:"show_time"`
	TotalSeats int         `json:"total_seats"`
	Price      model.Cents `json:"price"`
}

type seatsResp struct {
	ScreeningID    uint64   `json:"screening_id"`
	TotalSeats     int      `json:"total_seats"`
	AvailableCount int      `json:"available_count"`
	TakenCount     int      `json:"taken_count"`
	TakenSeats     []string `json:"taken_seats"`
	AvailableSeats []string `json:"available_seats"`
}

const defaultPageSize = 100

// List returns live screenings ordered by show time.  ?limit and ?offset page.
func (h *ScreeningHandler) List(c echo.Context) error {
	limit, err := intQuery(c, "limit", defaultPageSize)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	offset, err := intQuery(c, "offset", 0)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	list, err := h.Catalog.List(c.Request().Context(), limit, offset)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, list)
}

// Get returns one screening.
func (h *ScreeningHandler) Get(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	s, err := h.Catalog.Get(c.Request().Context(), id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, s)
}

// Seats reports the taken and available seats of a screening.  It is
// never cached: availability changes with every booking.
func (h *ScreeningHandler) Seats(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	snap, err := h.Engine.Availability(c.Request().Context(), id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, toSeatsResp(snap))
}

func toSeatsResp(snap ledger.Snapshot) seatsResp {
	labels := func(seats []model.Seat) []string {
		out := make([]string, len(seats))
		for i, s := range seats {
			out[i] = s.String()
		}
		return out
	}
	return seatsResp{
		ScreeningID:    snap.ScreeningID,
		TotalSeats:     snap.Total,
		AvailableCount: snap.AvailableCount(),
		TakenCount:     snap.TakenCount(),
		TakenSeats:     labels(snap.Taken),
		AvailableSeats: labels(snap.Available),
	}
}

// Create adds a screening (ADMIN).
func (h *ScreeningHandler) Create(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	var req createScreeningReq
	if err := c.Bind(&req); err != nil {
		return writeError(c, h.Log, fmt.Errorf("%w: invalid body", service.ErrInvalidInput))
	}
	s, err := h.Catalog.Create(c.Request().Context(), a, service.ScreeningInput{
		MovieID:    req.MovieID,
		ShowTime:   req.ShowTime,
		TotalSeats: req.TotalSeats,
		Price:      req.Price,
	})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, s)
}

// Delete removes a screening without active reservations (ADMIN).
func (h *ScreeningHandler) Delete(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	id, err := idParam(c, "id")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if err := h.Catalog.Delete(c.Request().Context(), a, id); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}
