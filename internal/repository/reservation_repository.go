package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/screening-reservation/internal/model"
)

// ReservationRepo is the durable reservation store.  Rows are never
// deleted; cancellation flips status and stamps cancelled_at.  The
// reservations table carries a unique key over (screening_id,
// seat_label, active_seat) where active_seat is NULL for cancelled
// rows, so at most one active row per seat can exist.  All timestamp
// fields are stored in UTC.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

const reservationColumns = `id, screening_id, user_id, seat_label, status, created_at, cancelled_at, transaction_id, amount_cents, card_last4`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(s rowScanner) (*model.Reservation, error) {
	var (
		r           model.Reservation
		cancelledAt sql.NullTime
		amount      int64
	)
	if err := s.Scan(&r.ID, &r.ScreeningID, &r.UserID, &r.Seat, &r.Status, &r.CreatedAt, &cancelledAt,
		&r.Payment.TransactionID, &amount, &r.Payment.CardLast4); err != nil {
		return nil, err
	}
	r.Payment.AmountCents = model.Cents(amount)
	if cancelledAt.Valid {
		t := cancelledAt.Time.UTC()
		r.CancelledAt = &t
	}
	r.CreatedAt = r.CreatedAt.UTC()
	return &r, nil
}

// Create inserts an active reservation and populates its ID.  A second
// active reservation for the same seat fails with ErrDuplicateActiveSeat.
func (r *ReservationRepo) Create(ctx context.Context, res *model.Reservation) error {
	const q = `INSERT INTO reservations
               (screening_id, user_id, seat_label, status, created_at, transaction_id, amount_cents, card_last4)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	if res.CreatedAt.IsZero() {
		res.CreatedAt = time.Now().UTC()
	}
	res.Status = model.StatusActive
	result, err := r.db.ExecContext(ctx, q, res.ScreeningID, res.UserID, res.Seat, res.Status,
		res.CreatedAt, res.Payment.TransactionID, int64(res.Payment.AmountCents), res.Payment.CardLast4)
	if err != nil {
		if isDuplicateEntry(err) {
			return ErrDuplicateActiveSeat
		}
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	return nil
}

// GetByID returns a reservation or ErrNotFound.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (*model.Reservation, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id)
	res, err := scanReservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return res, err
}

// ListByUser returns all reservations for the given user, newest first.
// When no reservations exist, an empty slice is returned.
func (r *ReservationRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Reservation, error) {
	return r.list(ctx, `SELECT `+reservationColumns+` FROM reservations
                        WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
}

// ListActiveByScreening returns the active reservations of a screening.
func (r *ReservationRepo) ListActiveByScreening(ctx context.Context, screeningID uint64) ([]model.Reservation, error) {
	return r.list(ctx, `SELECT `+reservationColumns+` FROM reservations
                        WHERE screening_id = ? AND status = 'active' ORDER BY id`, screeningID)
}

func (r *ReservationRepo) list(ctx context.Context, q string, args ...any) ([]model.Reservation, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Reservation, 0)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// CountActiveByScreening returns the number of active reservations.
func (r *ReservationRepo) CountActiveByScreening(ctx context.Context, screeningID uint64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reservations WHERE screening_id = ? AND status = 'active'`, screeningID).Scan(&n)
	return n, err
}

// MarkCancelled performs the only permitted status transition, active
// to cancelled.  It returns ErrNotFound for unknown IDs and
// ErrAlreadyCancelled when the row was cancelled before.
func (r *ReservationRepo) MarkCancelled(ctx context.Context, id uint64, at time.Time) (*model.Reservation, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE reservations SET status = 'cancelled', cancelled_at = ? WHERE id = ? AND status = 'active'`,
		at.UTC(), id)
	if err != nil {
		return nil, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	res, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrAlreadyCancelled
	}
	return res, nil
}
