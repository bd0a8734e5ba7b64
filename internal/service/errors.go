// Package service implements the reservation core: the booking and
// cancellation transactions, the screening catalog, startup and periodic
// reconciliation of the seat ledger, and the weekly screening schedule.
package service

import (
	"errors"
	"net/http"
)

// Error kinds exposed to clients.  Every error returned by this package
// wraps exactly one of the sentinels below.
var (
	ErrNotFound              = errors.New("not found")
	ErrInvalidSeat           = errors.New("invalid seat")
	ErrSeatUnavailable       = errors.New("seat unavailable")
	ErrPaymentDeclined       = errors.New("payment declined")
	ErrPaymentFailed         = errors.New("payment failed")
	ErrPersistenceFailure    = errors.New("persistence failure")
	ErrForbidden             = errors.New("forbidden")
	ErrAlreadyCancelled      = errors.New("reservation already cancelled")
	ErrHasActiveReservations = errors.New("screening has active reservations")
	ErrInvalidInput          = errors.New("invalid input")
	ErrScreeningStarted      = errors.New("screening already started")
	ErrUnauthorized          = errors.New("unauthorized")
)

// KindInternal is reported for errors that wrap none of the sentinels.
const KindInternal = "Internal"

var kinds = []struct {
	err    error
	kind   string
	status int
}{
	{ErrNotFound, "NotFound", http.StatusNotFound},
	{ErrInvalidSeat, "InvalidSeat", http.StatusBadRequest},
	{ErrSeatUnavailable, "SeatUnavailable", http.StatusConflict},
	{ErrPaymentDeclined, "PaymentDeclined", http.StatusPaymentRequired},
	{ErrPaymentFailed, "PaymentFailed", http.StatusBadGateway},
	{ErrPersistenceFailure, "PersistenceFailure", http.StatusInternalServerError},
	{ErrForbidden, "Forbidden", http.StatusForbidden},
	{ErrAlreadyCancelled, "AlreadyCancelled", http.StatusConflict},
	{ErrHasActiveReservations, "HasActiveReservations", http.StatusConflict},
	{ErrInvalidInput, "InvalidInput", http.StatusBadRequest},
	{ErrScreeningStarted, "ScreeningStarted", http.StatusConflict},
	{ErrUnauthorized, "Unauthorized", http.StatusUnauthorized},
}

// KindOf returns the machine-readable kind of err, or KindInternal.
func KindOf(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// StatusOf returns the HTTP status code for err.
func StatusOf(err error) int {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.status
		}
	}
	return http.StatusInternalServerError
}
