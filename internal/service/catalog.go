package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/screening-reservation/internal/ledger"
	"github.com/iliyamo/screening-reservation/internal/model"
	"github.com/iliyamo/screening-reservation/internal/repository"
)

// DefaultMaxSeats caps TotalSeats when no limit is configured.
const DefaultMaxSeats = 520

// ScreeningInput is the administrator's request to create a screening.
type ScreeningInput struct {
	MovieID    uint64
	ShowTime   time.Time
	TotalSeats int
	Price      model.Cents
}

// Catalog manages screenings and keeps the seat ledger registered for
// every live one.
type Catalog struct {
	screenings   ScreeningStore
	reservations ReservationStore
	ledger       *ledger.Ledger
	changed      func(ctx context.Context)
	log          *zap.Logger
	now          func() time.Time
	maxSeats     int
}

// NewCatalog returns a Catalog.  maxSeats <= 0 selects DefaultMaxSeats.
func NewCatalog(d Deps, maxSeats int) *Catalog {
	d = d.withDefaults()
	if maxSeats <= 0 {
		maxSeats = DefaultMaxSeats
	}
	return &Catalog{
		screenings:   d.Screenings,
		reservations: d.Reservations,
		ledger:       d.Ledger,
		changed:      d.CatalogChanged,
		log:          d.Logger.Named("catalog"),
		now:          d.Clock,
		maxSeats:     maxSeats,
	}
}

// List returns live screenings ordered by show time.
func (c *Catalog) List(ctx context.Context, limit, offset int) ([]model.Screening, error) {
	if limit < 0 || offset < 0 {
		return nil, fmt.Errorf("%w: limit and offset must not be negative", ErrInvalidInput)
	}
	list, err := c.screenings.List(ctx, limit, offset)
	if err != nil {
		return nil, storeError("list screenings", err)
	}
	return list, nil
}

// Get returns a live screening.
func (c *Catalog) Get(ctx context.Context, id uint64) (*model.Screening, error) {
	s, err := c.screenings.GetByID(ctx, id)
	if err != nil {
		return nil, storeError("load screening", err)
	}
	return s, nil
}

// Create stores a new screening and registers its seats.
func (c *Catalog) Create(ctx context.Context, actor model.Actor, in ScreeningInput) (*model.Screening, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: only administrators create screenings", ErrForbidden)
	}
	if err := c.validate(in); err != nil {
		return nil, err
	}
	s := &model.Screening{
		MovieID:    in.MovieID,
		ShowTime:   in.ShowTime.UTC(),
		TotalSeats: in.TotalSeats,
		PriceCents: in.Price,
		CreatedAt:  c.now(),
	}
	if err := c.screenings.Create(ctx, s); err != nil {
		return nil, storeError("create screening", err)
	}
	c.ledger.Register(s.ID, s.TotalSeats)
	c.log.Info("screening created",
		zap.Uint64("screening_id", s.ID),
		zap.Uint64("movie_id", s.MovieID),
		zap.Time("show_time", s.ShowTime),
		zap.Int("total_seats", s.TotalSeats))
	c.changed(ctx)
	return s, nil
}

func (c *Catalog) validate(in ScreeningInput) error {
	switch {
	case in.MovieID == 0:
		return fmt.Errorf("%w: movie_id is required", ErrInvalidInput)
	case !in.ShowTime.After(c.now()):
		return fmt.Errorf("%w: show_time must be in the future", ErrInvalidInput)
	case in.TotalSeats <= 0 || in.TotalSeats > c.maxSeats:
		return fmt.Errorf("%w: total_seats must be between 1 and %d", ErrInvalidInput, c.maxSeats)
	case in.Price < 0:
		return fmt.Errorf("%w: price must not be negative", ErrInvalidInput)
	}
	return nil
}

// Delete removes a screening that has no active reservations.  The
// ledger is retired first so that no booking can claim a seat while the
// store is checked and updated.
func (c *Catalog) Delete(ctx context.Context, actor model.Actor, id uint64) error {
	if !actor.IsAdmin() {
		return fmt.Errorf("%w: only administrators delete screenings", ErrForbidden)
	}
	if _, err := c.screenings.GetByID(ctx, id); err != nil {
		return storeError("load screening", err)
	}

	retired := true
	switch err := c.ledger.Retire(id); {
	case err == nil:
	case errors.Is(err, ledger.ErrSeatsTaken):
		return fmt.Errorf("%w: screening %d", ErrHasActiveReservations, id)
	case errors.Is(err, ledger.ErrUnknownScreening):
		retired = false
	default:
		return err
	}

	reopen := func() {
		if retired {
			c.ledger.Reopen(id)
		}
	}

	// the ledger holds nothing, so any active row here is drift the
	// sweep has not repaired yet
	active, err := c.reservations.CountActiveByScreening(ctx, id)
	if err != nil {
		reopen()
		return storeError("count active reservations", err)
	}
	if active > 0 {
		reopen()
		c.log.Error("store holds active reservations the ledger missed",
			zap.Uint64("screening_id", id), zap.Int("active", active))
		return fmt.Errorf("%w: screening %d", ErrHasActiveReservations, id)
	}

	if err := c.screenings.Delete(ctx, id, c.now()); err != nil {
		reopen()
		if errors.Is(err, repository.ErrConflict) {
			return fmt.Errorf("%w: screening %d", ErrHasActiveReservations, id)
		}
		return storeError("delete screening", err)
	}
	c.ledger.Forget(id)
	c.log.Info("screening deleted", zap.Uint64("screening_id", id))
	c.changed(ctx)
	return nil
}
