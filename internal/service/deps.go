package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/screening-reservation/internal/ledger"
	"github.com/iliyamo/screening-reservation/internal/model"
	"github.com/iliyamo/screening-reservation/internal/payment"
	"github.com/iliyamo/screening-reservation/internal/queue"
)

// ReservationStore is the durable record of reservations.  It must
// refuse a second active reservation for the same (screening, seat)
// with repository.ErrDuplicateActiveSeat.
type ReservationStore interface {
	Create(ctx context.Context, res *model.Reservation) error
	GetByID(ctx context.Context, id uint64) (*model.Reservation, error)
	ListByUser(ctx context.Context, userID uint64) ([]model.Reservation, error)
	ListActiveByScreening(ctx context.Context, screeningID uint64) ([]model.Reservation, error)
	CountActiveByScreening(ctx context.Context, screeningID uint64) (int, error)
	MarkCancelled(ctx context.Context, id uint64, at time.Time) (*model.Reservation, error)
}

// ScreeningStore is the durable screening catalog.  Deleted screenings
// are invisible to every read.
type ScreeningStore interface {
	Create(ctx context.Context, s *model.Screening) error
	GetByID(ctx context.Context, id uint64) (*model.Screening, error)
	List(ctx context.Context, limit, offset int) ([]model.Screening, error)
	CountUpcoming(ctx context.Context, now time.Time) (int, error)
	ExistsAt(ctx context.Context, movieID uint64, showTime time.Time) (bool, error)
	Delete(ctx context.Context, id uint64, at time.Time) error
}

// EventPublisher delivers reservation lifecycle events.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.ReservationEvent) error
}

// Deps bundles the collaborators shared by the services.  Events,
// CatalogChanged, Logger and Clock are optional.
type Deps struct {
	Reservations ReservationStore
	Screenings   ScreeningStore
	Ledger       *ledger.Ledger
	Payments     payment.Processor
	Events       EventPublisher
	// CatalogChanged runs after a screening is created or deleted, for
	// example to purge cached catalog responses.
	CatalogChanged func(ctx context.Context)
	Logger         *zap.Logger
	Clock          func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.CatalogChanged == nil {
		d.CatalogChanged = func(context.Context) {}
	}
	if d.Clock == nil {
		d.Clock = func() time.Time { return time.Now().UTC() }
	}
	return d
}
