package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/screening-reservation/internal/payment"
	"github.com/iliyamo/screening-reservation/internal/service"
)

// ReservationHandler exposes booking, cancellation and reservation reads.
type ReservationHandler struct {
	Engine *service.Engine
	Log    *zap.Logger
}

func NewReservationHandler(eng *service.Engine, log *zap.Logger) *ReservationHandler {
	return &ReservationHandler{Engine: eng, Log: log}
}

type bookReq struct {
	ScreeningID uint64       `json:"screening_id"`
	Seat        string       `json:"seat"`
	SeatNumber  string       `json:"seat_number"` // accepted alias of seat
	Payment     payment.Card `json:"payment"`
}

// Create books one seat for the caller.  The response carries the
// reservation with its payment reference.
func (h *ReservationHandler) Create(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	var req bookReq
	if err := c.Bind(&req); err != nil {
		return writeError(c, h.Log, fmt.Errorf("%w: invalid body", service.ErrInvalidInput))
	}
	seat := req.Seat
	if strings.TrimSpace(seat) == "" {
		seat = req.SeatNumber
	}
	if req.ScreeningID == 0 {
		return writeError(c, h.Log, fmt.Errorf("%w: screening_id is required", service.ErrInvalidInput))
	}
	res, err := h.Engine.Book(c.Request().Context(), a, service.BookRequest{
		ScreeningID: req.ScreeningID,
		Seat:        seat,
		Card:        req.Payment,
	})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, res)
}

// List returns the caller's reservations, newest first.
func (h *ReservationHandler) List(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	list, err := h.Engine.ListReservations(c.Request().Context(), a, a.UserID)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, list)
}

// ListByUser returns the reservations of the user in the path.  Users may
// only ask for themselves; administrators for anyone.
func (h *ReservationHandler) ListByUser(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	uid, err := idParam(c, "id")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	list, err := h.Engine.ListReservations(c.Request().Context(), a, uid)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, list)
}

// Get returns one reservation of the caller.
func (h *ReservationHandler) Get(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	id, err := idParam(c, "id")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	res, err := h.Engine.GetReservation(c.Request().Context(), a, id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Cancel cancels a reservation and frees its seat.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	id, err := idParam(c, "id")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	res, err := h.Engine.Cancel(c.Request().Context(), a, id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, res)
}
