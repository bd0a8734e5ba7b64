package queue

import "time"

// ReservationsQueue is the durable queue carrying reservation lifecycle events.
const ReservationsQueue = "reservation.events"

// Event types.
const (
    EventConfirmed = "reservation.confirmed"
    EventCancelled = "reservation.cancelled"
)

// ReservationEvent is published after a reservation is committed or
// cancelled.  It contains enough information for downstream consumers
// to log, notify, or trigger analytics without querying the primary
// database.
type ReservationEvent struct {
    EventID       string    `json:"event_id"`
    Type          string    `json:"type"`
    ReservationID uint64    `json:"reservation_id"`
    UserID        uint64    `json:"user_id"`
    ScreeningID   uint64    `json:"screening_id"`
    Seat          string    `json:"seat"`
    AmountCents   int64     `json:"amount_cents"`
    TransactionID string    `json:"transaction_id"`
    OccurredAt    time.Time `json:"occurred_at"`
}
