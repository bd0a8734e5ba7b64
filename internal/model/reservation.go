package model

import "time"

// Reservation statuses.  A reservation moves from active to cancelled
// exactly once and is never deleted.
const (
    StatusActive    = "active"
    StatusCancelled = "cancelled"
)

// Reservation records a single seat booked by a user for a screening.
// It is created only by a successful booking transaction.
//
// Fields:
//  ID          – primary key identifier.
//  ScreeningID – screening the seat belongs to.
//  UserID      – owner of the reservation.
//  Seat        – canonical seat label (e.g. "B2").
//  Status      – active or cancelled.
//  CreatedAt   – creation timestamp.
//  CancelledAt – set only on cancellation.
//  Payment     – reference to the charge that paid for the seat.
type Reservation struct {
    ID          uint64     `json:"id"`                     // reservations.id
    ScreeningID uint64     `json:"screening_id"`           // reservations.screening_id
    UserID      uint64     `json:"user_id"`                // reservations.user_id
    Seat        string     `json:"seat"`                   // reservations.seat_label
    Status      string     `json:"status"`                 // reservations.status
    CreatedAt   time.Time  `json:"created_at"`             // reservations.created_at
    CancelledAt *time.Time `json:"cancelled_at,omitempty"` // reservations.cancelled_at (nullable)
    Payment     PaymentRef `json:"payment"`
}

// Active reports whether the reservation still holds its seat.
func (r Reservation) Active() bool { return r.Status == StatusActive }

// PaymentRef is the part of a payment receipt stored with a
// reservation.  Only the last four digits of the card are kept.
type PaymentRef struct {
    TransactionID string `json:"transaction_id"` // reservations.transaction_id
    AmountCents   Cents  `json:"amount"`         // reservations.amount_cents
    CardLast4     string `json:"card_last4"`     // reservations.card_last4
    Message       string `json:"message,omitempty"` // processor reply, set only on the booking response
}
