// Package ledger keeps the authoritative, in-process record of which
// seats of each screening are taken.  Every seat is a single atomic
// cell; claims and releases are compare-and-swap operations on that
// cell, so two claims on the same seat can never both succeed while
// claims on different seats never contend with each other.
package ledger

import (
	"errors"
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/iliyamo/screening-reservation/internal/model"
)

var (
	// ErrUnknownScreening is returned for screenings that were never
	// registered, were forgotten, or are retired pending deletion.
	ErrUnknownScreening = errors.New("screening not in ledger")
	// ErrInvalidSeat is returned when a seat lies outside the layout.
	ErrInvalidSeat = errors.New("seat outside screening layout")
	// ErrAlreadyTaken is the expected outcome of losing a claim race.
	ErrAlreadyTaken = errors.New("seat already taken")
	// ErrNotTaken is returned when releasing a free seat.
	ErrNotTaken = errors.New("seat not taken")
	// ErrHeldByOther is returned when releasing a seat on behalf of a
	// reservation that does not hold it.
	ErrHeldByOther = errors.New("seat held by another reservation")
	// ErrSeatsTaken blocks retiring a screening that still has claims.
	ErrSeatsTaken = errors.New("screening has taken seats")
	// ErrClaimSettled is returned when a claim is committed or aborted twice.
	ErrClaimSettled = errors.New("claim already settled")
)

// Cell values.  Any other value is the ID of the reservation holding
// the seat.
const (
	free    uint64 = 0
	pending uint64 = math.MaxUint64
)

// Holding binds a seat to the reservation that holds it.
type Holding struct {
	Seat          model.Seat
	ReservationID uint64
}

// Ledger tracks seat occupancy for every registered screening.
type Ledger struct {
	mu      sync.RWMutex
	screens map[uint64]*seatMap
}

type seatMap struct {
	layout model.Layout
	cells  []atomic.Uint64
	taken  atomic.Int64

	// gate is held shared by claims and exclusively by Retire so that a
	// screening cannot be retired while a claim is being placed.
	gate    sync.RWMutex
	retired bool
}

func newSeatMap(total int) *seatMap {
	layout := model.NewLayout(total)
	return &seatMap{layout: layout, cells: make([]atomic.Uint64, layout.Total)}
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{screens: make(map[uint64]*seatMap)}
}

// Register makes a screening with total seats known to the ledger.
// Registering an already known screening is a no-op.
func (l *Ledger) Register(screeningID uint64, total int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.screens[screeningID]; ok {
		return
	}
	l.screens[screeningID] = newSeatMap(total)
}

// Forget drops a screening from the ledger.
func (l *Ledger) Forget(screeningID uint64) {
	l.mu.Lock()
	delete(l.screens, screeningID)
	l.mu.Unlock()
}

// Screenings returns the IDs of all registered screenings in ascending order.
func (l *Ledger) Screenings() []uint64 {
	l.mu.RLock()
	ids := make([]uint64, 0, len(l.screens))
	for id := range l.screens {
		ids = append(ids, id)
	}
	l.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (l *Ledger) lookup(screeningID uint64) (*seatMap, error) {
	l.mu.RLock()
	m, ok := l.screens[screeningID]
	l.mu.RUnlock()
	if !ok {
		return nil, ErrUnknownScreening
	}
	return m, nil
}

func (l *Ledger) cell(screeningID uint64, seat model.Seat) (*seatMap, int, error) {
	m, err := l.lookup(screeningID)
	if err != nil {
		return nil, 0, err
	}
	idx, ok := m.layout.Index(seat)
	if !ok {
		return nil, 0, ErrInvalidSeat
	}
	return m, idx, nil
}

// TryClaim atomically moves a seat from free to claimed.  Exactly one
// of any number of concurrent claims on the same seat succeeds; the
// rest get ErrAlreadyTaken.  The returned Claim must be settled with
// Commit or Abort.
func (l *Ledger) TryClaim(screeningID uint64, seat model.Seat) (*Claim, error) {
	m, idx, err := l.cell(screeningID, seat)
	if err != nil {
		return nil, err
	}
	m.gate.RLock()
	defer m.gate.RUnlock()
	if m.retired {
		return nil, ErrUnknownScreening
	}
	if !m.cells[idx].CompareAndSwap(free, pending) {
		return nil, ErrAlreadyTaken
	}
	m.taken.Add(1)
	return &Claim{ScreeningID: screeningID, Seat: seat, m: m, idx: idx}, nil
}

// Release frees a seat held by reservationID.  It never frees a seat
// held by a different reservation or by an unsettled claim.
func (l *Ledger) Release(screeningID uint64, seat model.Seat, reservationID uint64) error {
	m, idx, err := l.cell(screeningID, seat)
	if err != nil {
		return err
	}
	if reservationID != free && reservationID != pending && m.cells[idx].CompareAndSwap(reservationID, free) {
		m.taken.Add(-1)
		return nil
	}
	if m.cells[idx].Load() == free {
		return ErrNotTaken
	}
	return ErrHeldByOther
}

// Restore marks a free seat as held by reservationID.  It is used by
// reconciliation when the store has an active reservation the ledger
// does not know about.
func (l *Ledger) Restore(screeningID uint64, seat model.Seat, reservationID uint64) error {
	m, idx, err := l.cell(screeningID, seat)
	if err != nil {
		return err
	}
	if !m.cells[idx].CompareAndSwap(free, reservationID) {
		return ErrAlreadyTaken
	}
	m.taken.Add(1)
	return nil
}

// Holder reports the reservation holding a seat.  claimed is true for
// any taken seat; reservationID is 0 while the claim is unsettled.
func (l *Ledger) Holder(screeningID uint64, seat model.Seat) (reservationID uint64, claimed bool, err error) {
	m, idx, err := l.cell(screeningID, seat)
	if err != nil {
		return 0, false, err
	}
	switch v := m.cells[idx].Load(); v {
	case free:
		return 0, false, nil
	case pending:
		return 0, true, nil
	default:
		return v, true, nil
	}
}

// Holdings lists the committed holdings of a screening.  Unsettled
// claims are omitted.
func (l *Ledger) Holdings(screeningID uint64) ([]Holding, error) {
	m, err := l.lookup(screeningID)
	if err != nil {
		return nil, err
	}
	var out []Holding
	for i := range m.cells {
		if v := m.cells[i].Load(); v != free && v != pending {
			out = append(out, Holding{Seat: m.layout.SeatAt(i), ReservationID: v})
		}
	}
	return out, nil
}

// Rebuild replaces a screening's state with the given holdings.  It
// returns the holdings it had to skip because they fall outside the
// layout or collide with an earlier holding for the same seat.
func (l *Ledger) Rebuild(screeningID uint64, total int, holdings []Holding) []Holding {
	m := newSeatMap(total)
	var skipped []Holding
	for _, h := range holdings {
		idx, ok := m.layout.Index(h.Seat)
		if !ok || h.ReservationID == free || h.ReservationID == pending {
			skipped = append(skipped, h)
			continue
		}
		if !m.cells[idx].CompareAndSwap(free, h.ReservationID) {
			skipped = append(skipped, h)
			continue
		}
		m.taken.Add(1)
	}
	l.mu.Lock()
	l.screens[screeningID] = m
	l.mu.Unlock()
	return skipped
}

// Retire stops a screening from accepting new claims.  It fails with
// ErrSeatsTaken while any seat is claimed.  Reopen undoes it.
func (l *Ledger) Retire(screeningID uint64) error {
	m, err := l.lookup(screeningID)
	if err != nil {
		return err
	}
	m.gate.Lock()
	defer m.gate.Unlock()
	if m.taken.Load() > 0 {
		return ErrSeatsTaken
	}
	m.retired = true
	return nil
}

// Reopen lets a retired screening accept claims again.
func (l *Ledger) Reopen(screeningID uint64) {
	m, err := l.lookup(screeningID)
	if err != nil {
		return
	}
	m.gate.Lock()
	m.retired = false
	m.gate.Unlock()
}

// Snapshot is a point-in-time availability report for a screening.
type Snapshot struct {
	ScreeningID uint64
	Total       int
	Taken       []model.Seat
	Available   []model.Seat
}

// TakenCount returns the number of taken seats.
func (s Snapshot) TakenCount() int { return len(s.Taken) }

// AvailableCount returns the number of available seats.
func (s Snapshot) AvailableCount() int { return len(s.Available) }

// Snapshot reports taken and available seats.  It takes no lock beyond
// the registry read lock, so readers never wait on each other or on
// claims.  Each seat is read once, which keeps taken + available equal
// to the total for every snapshot.
func (l *Ledger) Snapshot(screeningID uint64) (Snapshot, error) {
	m, err := l.lookup(screeningID)
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{
		ScreeningID: screeningID,
		Total:       m.layout.Total,
		Taken:       []model.Seat{},
		Available:   make([]model.Seat, 0, m.layout.Total),
	}
	for i := range m.cells {
		seat := m.layout.SeatAt(i)
		if m.cells[i].Load() == free {
			snap.Available = append(snap.Available, seat)
		} else {
			snap.Taken = append(snap.Taken, seat)
		}
	}
	return snap, nil
}

// Claim is a seat taken by TryClaim whose booking has not finished.
// Commit binds it to the persisted reservation; Abort gives the seat
// back.
type Claim struct {
	ScreeningID uint64
	Seat        model.Seat

	m       *seatMap
	idx     int
	settled atomic.Bool
}

// Commit binds the claimed seat to reservationID.
func (c *Claim) Commit(reservationID uint64) error {
	if reservationID == free || reservationID == pending {
		return ErrInvalidSeat
	}
	if !c.settled.CompareAndSwap(false, true) {
		return ErrClaimSettled
	}
	if !c.m.cells[c.idx].CompareAndSwap(pending, reservationID) {
		return ErrNotTaken
	}
	return nil
}

// Abort releases the claimed seat.  It is the compensating action for
// every failed booking.
func (c *Claim) Abort() error {
	if !c.settled.CompareAndSwap(false, true) {
		return ErrClaimSettled
	}
	if !c.m.cells[c.idx].CompareAndSwap(pending, free) {
		return ErrNotTaken
	}
	c.m.taken.Add(-1)
	return nil
}
