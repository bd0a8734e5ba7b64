package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/iliyamo/screening-reservation/internal/ledger"
	"github.com/iliyamo/screening-reservation/internal/model"
	"github.com/iliyamo/screening-reservation/internal/payment"
	"github.com/iliyamo/screening-reservation/internal/queue"
	"github.com/iliyamo/screening-reservation/internal/repository"
)

var (
	admin = model.Actor{UserID: 1, Role: model.RoleAdmin}
	alice = model.Actor{UserID: 10, Role: model.RoleUser}
	bob   = model.Actor{UserID: 11, Role: model.RoleUser}

	visa = payment.Card{Number: "4111 1111 1111 1111"}
)

type fixture struct {
	store      *repository.MemoryStore
	ledger     *ledger.Ledger
	events     *recordingPublisher
	engine     *Engine
	catalog    *Catalog
	reconciler *Reconciler
	deps       Deps
	now        time.Time
	changes    atomic.Int32
}

type fixtureOption func(*Deps)

func withReservations(rs ReservationStore) fixtureOption {
	return func(d *Deps) { d.Reservations = rs }
}

func withPayments(p payment.Processor) fixtureOption {
	return func(d *Deps) { d.Payments = p }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	f := &fixture{
		store:  repository.NewMemoryStore(),
		ledger: ledger.New(),
		events: &recordingPublisher{},
		now:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	d := Deps{
		Reservations: f.store.Reservations(),
		Screenings:   f.store.Screenings(),
		Ledger:       f.ledger,
		Payments:     payment.NewSimulated(0),
		Events:       f.events,
		Logger:       zaptest.NewLogger(t),
		Clock:        func() time.Time { return f.now },
	}
	d.CatalogChanged = func(context.Context) { f.changes.Add(1) }
	for _, opt := range opts {
		opt(&d)
	}
	f.deps = d
	f.engine = NewEngine(d)
	f.catalog = NewCatalog(d, 0)
	f.reconciler = NewReconciler(d)
	return f
}

// screening creates a screening starting a day from now.
func (f *fixture) screening(t *testing.T, total int) *model.Screening {
	t.Helper()
	s, err := f.catalog.Create(context.Background(), admin, ScreeningInput{
		MovieID:    550,
		ShowTime:   f.now.Add(24 * time.Hour),
		TotalSeats: total,
		Price:      1250,
	})
	require.NoError(t, err)
	return s
}

func (f *fixture) book(actor model.Actor, screeningID uint64, seat string) (*model.Reservation, error) {
	return f.engine.Book(context.Background(), actor, BookRequest{ScreeningID: screeningID, Seat: seat, Card: visa})
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.ReservationEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, ev queue.ReservationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

// failingReservations fails Create with err and delegates everything else.
type failingReservations struct {
	ReservationStore
	err error
}

func (s failingReservations) Create(ctx context.Context, res *model.Reservation) error {
	return s.err
}

// scriptedProcessor answers every charge with the result of charge and
// records refunds.
type scriptedProcessor struct {
	charge func(payment.Card, model.Cents) (payment.Receipt, error)

	mu       sync.Mutex
	refunded []string
}

func (p *scriptedProcessor) Charge(ctx context.Context, card payment.Card, amount model.Cents) (payment.Receipt, error) {
	return p.charge(card, amount)
}

func (p *scriptedProcessor) Refund(ctx context.Context, txn string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refunded = append(p.refunded, txn)
	return nil
}
