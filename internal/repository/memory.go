package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/screening-reservation/internal/model"
	"github.com/iliyamo/screening-reservation/internal/utils"
)

// MemoryStore keeps screenings, reservations and users in process
// memory.  It enforces the same constraints as the MySQL schema,
// including one active reservation per (screening, seat), and is used
// by the memory storage driver and by tests.
type MemoryStore struct {
	mutex sync.RWMutex

	screenings   map[uint64]*model.Screening
	reservations map[uint64]*model.Reservation
	users        map[uint64]*model.User
	// activeSeats indexes active reservations by screening and seat label.
	activeSeats map[seatKey]uint64
	emails      map[string]uint64

	nextScreening   uint64
	nextReservation uint64
	nextUser        uint64
}

type seatKey struct {
	screeningID uint64
	seat        string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		screenings:   make(map[uint64]*model.Screening),
		reservations: make(map[uint64]*model.Reservation),
		users:        make(map[uint64]*model.User),
		activeSeats:  make(map[seatKey]uint64),
		emails:       make(map[string]uint64),
	}
}

// Reservations returns the reservation store view.
func (s *MemoryStore) Reservations() *MemoryReservations { return &MemoryReservations{s} }

// Screenings returns the screening catalog view.
func (s *MemoryStore) Screenings() *MemoryScreenings { return &MemoryScreenings{s} }

// Users returns the user view.
func (s *MemoryStore) Users() *MemoryUsers { return &MemoryUsers{s} }

type MemoryReservations struct{ s *MemoryStore }

func (m *MemoryReservations) Create(ctx context.Context, res *model.Reservation) error {
	s := m.s
	s.mutex.Lock()
	defer s.mutex.Unlock()

	key := seatKey{res.ScreeningID, res.Seat}
	if _, exists := s.activeSeats[key]; exists {
		return ErrDuplicateActiveSeat
	}
	if res.CreatedAt.IsZero() {
		res.CreatedAt = time.Now().UTC()
	}
	s.nextReservation++
	res.ID = s.nextReservation
	res.Status = model.StatusActive
	res.CancelledAt = nil
	stored := *res
	s.reservations[res.ID] = &stored
	s.activeSeats[key] = res.ID
	return nil
}

func (m *MemoryReservations) GetByID(ctx context.Context, id uint64) (*model.Reservation, error) {
	s := m.s
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	res, exists := s.reservations[id]
	if !exists {
		return nil, ErrNotFound
	}
	return cloneReservation(res), nil
}

func (m *MemoryReservations) ListByUser(ctx context.Context, userID uint64) ([]model.Reservation, error) {
	out := m.s.filter(func(r *model.Reservation) bool { return r.UserID == userID })
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (m *MemoryReservations) ListActiveByScreening(ctx context.Context, screeningID uint64) ([]model.Reservation, error) {
	out := m.s.filter(func(r *model.Reservation) bool { return r.ScreeningID == screeningID && r.Active() })
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryReservations) CountActiveByScreening(ctx context.Context, screeningID uint64) (int, error) {
	m.s.mutex.RLock()
	defer m.s.mutex.RUnlock()
	return m.s.countActive(screeningID), nil
}

func (m *MemoryReservations) MarkCancelled(ctx context.Context, id uint64, at time.Time) (*model.Reservation, error) {
	s := m.s
	s.mutex.Lock()
	defer s.mutex.Unlock()

	res, exists := s.reservations[id]
	if !exists {
		return nil, ErrNotFound
	}
	if !res.Active() {
		return nil, ErrAlreadyCancelled
	}
	t := at.UTC()
	res.Status = model.StatusCancelled
	res.CancelledAt = &t
	delete(s.activeSeats, seatKey{res.ScreeningID, res.Seat})
	return cloneReservation(res), nil
}

func (s *MemoryStore) filter(keep func(*model.Reservation) bool) []model.Reservation {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	out := make([]model.Reservation, 0)
	for _, r := range s.reservations {
		if keep(r) {
			out = append(out, *cloneReservation(r))
		}
	}
	return out
}

func (s *MemoryStore) countActive(screeningID uint64) int {
	n := 0
	for key := range s.activeSeats {
		if key.screeningID == screeningID {
			n++
		}
	}
	return n
}

func cloneReservation(r *model.Reservation) *model.Reservation {
	c := *r
	if r.CancelledAt != nil {
		t := *r.CancelledAt
		c.CancelledAt = &t
	}
	return &c
}

type MemoryScreenings struct{ s *MemoryStore }

func (m *MemoryScreenings) Create(ctx context.Context, sc *model.Screening) error {
	s := m.s
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if sc.CreatedAt.IsZero() {
		sc.CreatedAt = time.Now().UTC()
	}
	s.nextScreening++
	sc.ID = s.nextScreening
	stored := *sc
	stored.DeletedAt = nil
	s.screenings[sc.ID] = &stored
	return nil
}

func (m *MemoryScreenings) GetByID(ctx context.Context, id uint64) (*model.Screening, error) {
	s := m.s
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	sc, exists := s.screenings[id]
	if !exists || sc.DeletedAt != nil {
		return nil, ErrNotFound
	}
	c := *sc
	return &c, nil
}

func (m *MemoryScreenings) List(ctx context.Context, limit, offset int) ([]model.Screening, error) {
	s := m.s
	s.mutex.RLock()
	out := make([]model.Screening, 0, len(s.screenings))
	for _, sc := range s.screenings {
		if sc.DeletedAt == nil {
			out = append(out, *sc)
		}
	}
	s.mutex.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].ShowTime.Equal(out[j].ShowTime) {
			return out[i].ShowTime.Before(out[j].ShowTime)
		}
		return out[i].ID < out[j].ID
	})
	if limit <= 0 {
		return out, nil
	}
	if offset >= len(out) {
		return []model.Screening{}, nil
	}
	end := offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], nil
}

func (m *MemoryScreenings) CountUpcoming(ctx context.Context, now time.Time) (int, error) {
	s := m.s
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	n := 0
	for _, sc := range s.screenings {
		if sc.DeletedAt == nil && sc.ShowTime.After(now) {
			n++
		}
	}
	return n, nil
}

func (m *MemoryScreenings) ExistsAt(ctx context.Context, movieID uint64, showTime time.Time) (bool, error) {
	s := m.s
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	for _, sc := range s.screenings {
		if sc.DeletedAt == nil && sc.MovieID == movieID && sc.ShowTime.Equal(showTime) {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryScreenings) Delete(ctx context.Context, id uint64, at time.Time) error {
	s := m.s
	s.mutex.Lock()
	defer s.mutex.Unlock()

	sc, exists := s.screenings[id]
	if !exists || sc.DeletedAt != nil {
		return ErrNotFound
	}
	if s.countActive(id) > 0 {
		return ErrConflict
	}
	t := at.UTC()
	sc.DeletedAt = &t
	return nil
}

type MemoryUsers struct{ s *MemoryStore }

func (m *MemoryUsers) Create(ctx context.Context, email, password, role string, cost int) (uint64, error) {
	email = normalizeEmail(email)
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	s := m.s
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.emails[email]; exists {
		return 0, ErrEmailExists
	}
	s.nextUser++
	u := &model.User{ID: s.nextUser, Email: email, PasswordHash: hash, Role: role, CreatedAt: time.Now().UTC()}
	s.users[u.ID] = u
	s.emails[email] = u.ID
	return u.ID, nil
}

func (m *MemoryUsers) GetByEmail(ctx context.Context, email string) (model.User, error) {
	s := m.s
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	id, exists := s.emails[normalizeEmail(email)]
	if !exists {
		return model.User{}, ErrNotFound
	}
	return *s.users[id], nil
}

func (m *MemoryUsers) GetByID(ctx context.Context, id uint64) (model.User, error) {
	s := m.s
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	u, exists := s.users[id]
	if !exists {
		return model.User{}, ErrNotFound
	}
	return *u, nil
}
