package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/iliyamo/screening-reservation/internal/ledger"
	"github.com/iliyamo/screening-reservation/internal/model"
	"github.com/iliyamo/screening-reservation/internal/repository"
)

// Report summarises a reconciliation pass.
type Report struct {
	Screenings int
	Holdings   int
	Released   int
	Restored   int
	Conflicts  int
}

// Reconciler brings the seat ledger in line with the reservation store.
type Reconciler struct {
	reservations ReservationStore
	screenings   ScreeningStore
	ledger       *ledger.Ledger
	log          *zap.Logger
}

func NewReconciler(d Deps) *Reconciler {
	d = d.withDefaults()
	return &Reconciler{
		reservations: d.Reservations,
		screenings:   d.Screenings,
		ledger:       d.Ledger,
		log:          d.Logger.Named("reconcile"),
	}
}

// Rebuild loads every live screening into the ledger together with its
// active reservations.  It must finish before bookings are accepted.
func (r *Reconciler) Rebuild(ctx context.Context) (Report, error) {
	var rep Report
	screenings, err := r.screenings.List(ctx, 0, 0)
	if err != nil {
		return rep, storeError("list screenings", err)
	}
	for _, s := range screenings {
		active, err := r.reservations.ListActiveByScreening(ctx, s.ID)
		if err != nil {
			return rep, storeError("list active reservations", err)
		}
		holdings := make([]ledger.Holding, 0, len(active))
		for _, res := range active {
			seat, err := model.ParseSeat(res.Seat)
			if err != nil {
				r.log.Error("active reservation has malformed seat",
					zap.Uint64("reservation_id", res.ID), zap.String("seat", res.Seat))
				rep.Conflicts++
				continue
			}
			holdings = append(holdings, ledger.Holding{Seat: seat, ReservationID: res.ID})
		}
		for _, h := range r.ledger.Rebuild(s.ID, s.TotalSeats, holdings) {
			r.log.Error("active reservation does not fit the ledger",
				zap.Uint64("screening_id", s.ID),
				zap.Uint64("reservation_id", h.ReservationID),
				zap.Stringer("seat", h.Seat))
			rep.Conflicts++
		}
		rep.Screenings++
		rep.Holdings += len(holdings)
	}
	r.log.Info("ledger rebuilt",
		zap.Int("screenings", rep.Screenings),
		zap.Int("holdings", rep.Holdings),
		zap.Int("conflicts", rep.Conflicts))
	return rep, nil
}

// Sweep repairs drift between ledger and store for every registered
// screening.  Seats bound to reservations the store reports cancelled
// are released; active reservations whose seat is free in the ledger
// are restored.  Each candidate is re-read from the store before the
// ledger is touched, and unsettled claims are left alone.
func (r *Reconciler) Sweep(ctx context.Context) (Report, error) {
	var rep Report
	for _, id := range r.ledger.Screenings() {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		if err := r.sweepScreening(ctx, id, &rep); err != nil {
			return rep, err
		}
		rep.Screenings++
	}
	if rep.Released > 0 || rep.Restored > 0 || rep.Conflicts > 0 {
		r.log.Warn("ledger drift repaired",
			zap.Int("released", rep.Released),
			zap.Int("restored", rep.Restored),
			zap.Int("conflicts", rep.Conflicts))
	}
	return rep, nil
}

func (r *Reconciler) sweepScreening(ctx context.Context, screeningID uint64, rep *Report) error {
	holdings, err := r.ledger.Holdings(screeningID)
	if errors.Is(err, ledger.ErrUnknownScreening) {
		return nil
	}
	if err != nil {
		return err
	}
	rep.Holdings += len(holdings)
	for _, h := range holdings {
		res, err := r.reservations.GetByID(ctx, h.ReservationID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
		case err != nil:
			return storeError("load reservation", err)
		case res.Active():
			continue
		}
		if err := r.ledger.Release(screeningID, h.Seat, h.ReservationID); err == nil {
			r.log.Info("released seat of inactive reservation",
				zap.Uint64("screening_id", screeningID),
				zap.Uint64("reservation_id", h.ReservationID),
				zap.Stringer("seat", h.Seat))
			rep.Released++
		}
	}

	active, err := r.reservations.ListActiveByScreening(ctx, screeningID)
	if err != nil {
		return storeError("list active reservations", err)
	}
	for _, res := range active {
		seat, err := model.ParseSeat(res.Seat)
		if err != nil {
			rep.Conflicts++
			continue
		}
		holder, claimed, err := r.ledger.Holder(screeningID, seat)
		if err != nil {
			rep.Conflicts++
			continue
		}
		if claimed {
			if holder != 0 && holder != res.ID {
				r.log.Error("seat held by a different reservation",
					zap.Uint64("screening_id", screeningID),
					zap.String("seat", res.Seat),
					zap.Uint64("ledger_reservation_id", holder),
					zap.Uint64("store_reservation_id", res.ID))
				rep.Conflicts++
			}
			continue
		}
		current, err := r.reservations.GetByID(ctx, res.ID)
		if err != nil || !current.Active() {
			continue
		}
		if err := r.ledger.Restore(screeningID, seat, res.ID); err == nil {
			r.log.Info("restored seat of active reservation",
				zap.Uint64("screening_id", screeningID),
				zap.Uint64("reservation_id", res.ID),
				zap.String("seat", res.Seat))
			rep.Restored++
		}
	}
	return nil
}
