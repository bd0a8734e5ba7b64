package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/screening-reservation/internal/ledger"
	"github.com/iliyamo/screening-reservation/internal/model"
	"github.com/iliyamo/screening-reservation/internal/payment"
	"github.com/iliyamo/screening-reservation/internal/queue"
	"github.com/iliyamo/screening-reservation/internal/repository"
)

const (
	// persistTimeout bounds store writes that run detached from the
	// caller's context.
	persistTimeout = 10 * time.Second
	publishTimeout = 3 * time.Second
)

// BookRequest asks for one seat of one screening, paid by card.
type BookRequest struct {
	ScreeningID uint64
	Seat        string
	Card        payment.Card
}

// Engine runs the booking and cancellation transactions.  It is the
// only writer of the seat ledger outside reconciliation and screening
// deletion.
type Engine struct {
	reservations ReservationStore
	screenings   ScreeningStore
	ledger       *ledger.Ledger
	payments     payment.Processor
	events       EventPublisher
	log          *zap.Logger
	now          func() time.Time
}

// NewEngine returns an Engine using d.
func NewEngine(d Deps) *Engine {
	d = d.withDefaults()
	return &Engine{
		reservations: d.Reservations,
		screenings:   d.Screenings,
		ledger:       d.Ledger,
		payments:     d.Payments,
		events:       d.Events,
		log:          d.Logger.Named("engine"),
		now:          d.Clock,
	}
}

// Book claims the seat, charges the card and persists the reservation,
// in that order.  A failure at any step releases the claim, so the seat
// is taken afterwards if and only if a reservation was returned.  No
// lock is held while the card is charged.
func (e *Engine) Book(ctx context.Context, actor model.Actor, req BookRequest) (*model.Reservation, error) {
	screening, err := e.screenings.GetByID(ctx, req.ScreeningID)
	if err != nil {
		return nil, storeError("load screening", err)
	}
	if screening.Started(e.now()) {
		return nil, fmt.Errorf("%w: screening %d", ErrScreeningStarted, screening.ID)
	}
	seat, err := model.ParseSeat(req.Seat)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSeat, req.Seat)
	}

	claim, err := e.ledger.TryClaim(screening.ID, seat)
	switch {
	case err == nil:
	case errors.Is(err, ledger.ErrAlreadyTaken):
		e.log.Debug("seat unavailable", zap.Uint64("screening_id", screening.ID), zap.Stringer("seat", seat))
		return nil, fmt.Errorf("%w: %s", ErrSeatUnavailable, seat)
	case errors.Is(err, ledger.ErrInvalidSeat):
		return nil, fmt.Errorf("%w: %s is not in screening %d", ErrInvalidSeat, seat, screening.ID)
	case errors.Is(err, ledger.ErrUnknownScreening):
		return nil, fmt.Errorf("%w: screening %d", ErrNotFound, screening.ID)
	default:
		return nil, err
	}

	receipt, err := e.payments.Charge(ctx, req.Card, screening.PriceCents)
	if err != nil {
		e.abort(claim)
		if errors.Is(err, payment.ErrDeclined) {
			e.log.Debug("payment declined", zap.Uint64("screening_id", screening.ID), zap.Error(err))
			return nil, fmt.Errorf("%w: %v", ErrPaymentDeclined, err)
		}
		e.log.Warn("payment processor failed", zap.Uint64("screening_id", screening.ID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrPaymentFailed, err)
	}

	res := &model.Reservation{
		ScreeningID: screening.ID,
		UserID:      actor.UserID,
		Seat:        seat.String(),
		CreatedAt:   e.now(),
		Payment: model.PaymentRef{
			TransactionID: receipt.TransactionID,
			AmountCents:   receipt.Amount,
			CardLast4:     receipt.CardLast4,
		},
	}
	// the charge went through, so the write must not be abandoned
	// because the caller went away
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := e.reservations.Create(pctx, res); err != nil {
		e.abort(claim)
		e.refund(pctx, receipt.TransactionID)
		if errors.Is(err, repository.ErrDuplicateActiveSeat) {
			e.log.Error("store holds an active reservation the ledger missed",
				zap.Uint64("screening_id", screening.ID), zap.Stringer("seat", seat))
			return nil, fmt.Errorf("%w: %s", ErrSeatUnavailable, seat)
		}
		e.log.Error("persist reservation failed, seat released",
			zap.Uint64("screening_id", screening.ID), zap.Stringer("seat", seat), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}
	if err := claim.Commit(res.ID); err != nil {
		e.log.Error("commit claim failed", zap.Uint64("reservation_id", res.ID), zap.Error(err))
	}
	res.Payment.Message = receipt.Message

	e.log.Info("reservation confirmed",
		zap.Uint64("reservation_id", res.ID),
		zap.Uint64("screening_id", res.ScreeningID),
		zap.Uint64("user_id", res.UserID),
		zap.String("seat", res.Seat))
	e.publish(pctx, queue.EventConfirmed, res)
	return res, nil
}

// Cancel marks the reservation cancelled and then frees its seat.  The
// durable write comes first so that a crash in between leaves the seat
// taken, which the next sweep repairs, rather than free but still
// reserved.
func (e *Engine) Cancel(ctx context.Context, actor model.Actor, id uint64) (*model.Reservation, error) {
	res, err := e.reservations.GetByID(ctx, id)
	if err != nil {
		return nil, storeError("load reservation", err)
	}
	if res.UserID != actor.UserID && !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: reservation %d belongs to another user", ErrForbidden, id)
	}
	if !res.Active() {
		return nil, fmt.Errorf("%w: reservation %d", ErrAlreadyCancelled, id)
	}

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	cancelled, err := e.reservations.MarkCancelled(pctx, id, e.now())
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyCancelled) {
			return nil, fmt.Errorf("%w: reservation %d", ErrAlreadyCancelled, id)
		}
		return nil, storeError("cancel reservation", err)
	}

	fields := []zap.Field{
		zap.Uint64("reservation_id", id),
		zap.Uint64("screening_id", cancelled.ScreeningID),
		zap.String("seat", cancelled.Seat),
	}
	seat, err := model.ParseSeat(cancelled.Seat)
	if err == nil {
		err = e.ledger.Release(cancelled.ScreeningID, seat, id)
	}
	if err != nil {
		// the sweep already released it, or the ledger never held it
		e.log.Warn("release after cancel", append(fields, zap.Error(err))...)
	}
	e.log.Info("reservation cancelled", fields...)
	e.publish(pctx, queue.EventCancelled, cancelled)
	return cancelled, nil
}

// Availability reports the taken and available seats of a screening.
func (e *Engine) Availability(ctx context.Context, screeningID uint64) (ledger.Snapshot, error) {
	if _, err := e.screenings.GetByID(ctx, screeningID); err != nil {
		return ledger.Snapshot{}, storeError("load screening", err)
	}
	snap, err := e.ledger.Snapshot(screeningID)
	if errors.Is(err, ledger.ErrUnknownScreening) {
		return ledger.Snapshot{}, fmt.Errorf("%w: screening %d", ErrNotFound, screeningID)
	}
	return snap, err
}

// GetReservation returns a reservation visible to actor.
func (e *Engine) GetReservation(ctx context.Context, actor model.Actor, id uint64) (*model.Reservation, error) {
	res, err := e.reservations.GetByID(ctx, id)
	if err != nil {
		return nil, storeError("load reservation", err)
	}
	if res.UserID != actor.UserID && !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: reservation %d belongs to another user", ErrForbidden, id)
	}
	return res, nil
}

// ListReservations returns the reservations of userID, newest first.
// Users may list only their own.
func (e *Engine) ListReservations(ctx context.Context, actor model.Actor, userID uint64) ([]model.Reservation, error) {
	if userID != actor.UserID && !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: cannot list reservations of user %d", ErrForbidden, userID)
	}
	list, err := e.reservations.ListByUser(ctx, userID)
	if err != nil {
		return nil, storeError("list reservations", err)
	}
	return list, nil
}

func (e *Engine) abort(claim *ledger.Claim) {
	if err := claim.Abort(); err != nil {
		e.log.Error("abort claim failed",
			zap.Uint64("screening_id", claim.ScreeningID), zap.Stringer("seat", claim.Seat), zap.Error(err))
	}
}

func (e *Engine) refund(ctx context.Context, txn string) {
	r, ok := e.payments.(payment.Refunder)
	if !ok {
		e.log.Error("charge not refunded, processor cannot refund", zap.String("transaction_id", txn))
		return
	}
	if err := r.Refund(ctx, txn); err != nil {
		e.log.Error("refund failed", zap.String("transaction_id", txn), zap.Error(err))
		return
	}
	e.log.Info("charge refunded", zap.String("transaction_id", txn))
}

func (e *Engine) publish(ctx context.Context, typ string, res *model.Reservation) {
	if e.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	ev := queue.ReservationEvent{
		EventID:       uuid.NewString(),
		Type:          typ,
		ReservationID: res.ID,
		UserID:        res.UserID,
		ScreeningID:   res.ScreeningID,
		Seat:          res.Seat,
		AmountCents:   int64(res.Payment.AmountCents),
		TransactionID: res.Payment.TransactionID,
		OccurredAt:    e.now(),
	}
	if err := e.events.Publish(ctx, ev); err != nil {
		e.log.Warn("publish event failed", zap.String("type", typ), zap.Uint64("reservation_id", res.ID), zap.Error(err))
	}
}

// storeError classifies a store error as NotFound or PersistenceFailure.
func storeError(op string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, op)
	}
	return fmt.Errorf("%w: %s: %v", ErrPersistenceFailure, op, err)
}
