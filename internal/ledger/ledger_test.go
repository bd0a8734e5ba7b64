package ledger

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/screening-reservation/internal/model"
)

func seat(t *testing.T, label string) model.Seat {
	t.Helper()
	s, err := model.ParseSeat(label)
	require.NoError(t, err)
	return s
}

func TestConcurrentClaimsSameSeatExactlyOneWins(t *testing.T) {
	l := New()
	l.Register(1, 12)
	b2 := seat(t, "B2")

	const n = 64
	var wins, lost atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := l.TryClaim(1, b2)
			switch err {
			case nil:
				wins.Add(1)
			case ErrAlreadyTaken:
				lost.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(n-1), lost.Load())
}

func TestConcurrentClaimsDifferentSeatsAllWin(t *testing.T) {
	l := New()
	l.Register(1, 100)
	seats := model.NewLayout(100).Seats()

	var wg sync.WaitGroup
	errs := make(chan error, len(seats))
	for _, s := range seats {
		wg.Add(1)
		go func(s model.Seat) {
			defer wg.Done()
			c, err := l.TryClaim(1, s)
			if err != nil {
				errs <- err
				return
			}
			errs <- c.Commit(uint64(s.Row*100 + s.Col))
		}(s)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	snap, err := l.Snapshot(1)
	require.NoError(t, err)
	assert.Equal(t, 100, snap.TakenCount())
	assert.Equal(t, 0, snap.AvailableCount())
}

func TestClaimValidation(t *testing.T) {
	l := New()
	l.Register(1, 12)

	_, err := l.TryClaim(1, seat(t, "B3"))
	assert.ErrorIs(t, err, ErrInvalidSeat)
	_, err = l.TryClaim(1, seat(t, "C1"))
	assert.ErrorIs(t, err, ErrInvalidSeat)
	_, err = l.TryClaim(2, seat(t, "A1"))
	assert.ErrorIs(t, err, ErrUnknownScreening)
}

func TestAbortReturnsSeat(t *testing.T) {
	l := New()
	l.Register(1, 12)
	a1 := seat(t, "A1")

	c, err := l.TryClaim(1, a1)
	require.NoError(t, err)
	require.NoError(t, c.Abort())
	assert.ErrorIs(t, c.Abort(), ErrClaimSettled)
	assert.ErrorIs(t, c.Commit(9), ErrClaimSettled)

	snap, err := l.Snapshot(1)
	require.NoError(t, err)
	assert.Equal(t, 12, snap.AvailableCount())

	_, err = l.TryClaim(1, a1)
	assert.NoError(t, err)
}

func TestReleaseOnlyByHolder(t *testing.T) {
	l := New()
	l.Register(1, 12)
	a1 := seat(t, "A1")

	c, err := l.TryClaim(1, a1)
	require.NoError(t, err)

	// unsettled claims cannot be released through the cancel path
	assert.ErrorIs(t, l.Release(1, a1, 7), ErrHeldByOther)
	require.NoError(t, c.Commit(7))

	id, claimed, err := l.Holder(1, a1)
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Equal(t, uint64(7), id)

	assert.ErrorIs(t, l.Release(1, a1, 8), ErrHeldByOther)
	require.NoError(t, l.Release(1, a1, 7))
	assert.ErrorIs(t, l.Release(1, a1, 7), ErrNotTaken)

	_, claimed, err = l.Holder(1, a1)
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestReleaseRacingClaimLeavesConsistentState(t *testing.T) {
	l := New()
	l.Register(1, 10)
	a1 := seat(t, "A1")

	for round := 0; round < 200; round++ {
		c, err := l.TryClaim(1, a1)
		require.NoError(t, err)
		resID := uint64(round + 1)
		require.NoError(t, c.Commit(resID))

		var wg sync.WaitGroup
		var claimWon atomic.Bool
		var newClaim *Claim
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, l.Release(1, a1, resID))
		}()
		go func() {
			defer wg.Done()
			if nc, err := l.TryClaim(1, a1); err == nil {
				claimWon.Store(true)
				newClaim = nc
			}
		}()
		wg.Wait()

		snap, err := l.Snapshot(1)
		require.NoError(t, err)
		if claimWon.Load() {
			assert.Equal(t, 1, snap.TakenCount())
			require.NoError(t, newClaim.Abort())
		} else {
			assert.Equal(t, 0, snap.TakenCount())
		}
	}
}

func TestSnapshotConservation(t *testing.T) {
	l := New()
	l.Register(1, 27)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		seats := model.NewLayout(27).Seats()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			if c, err := l.TryClaim(1, seats[i%len(seats)]); err == nil {
				if i%2 == 0 {
					_ = c.Abort()
				} else {
					_ = c.Commit(uint64(i + 1))
					_ = l.Release(1, seats[i%len(seats)], uint64(i+1))
				}
			}
		}
	}()

	for i := 0; i < 500; i++ {
		snap, err := l.Snapshot(1)
		require.NoError(t, err)
		require.Equal(t, 27, snap.AvailableCount()+snap.TakenCount())
	}
	close(stop)
	wg.Wait()
}

func TestRetireBlocksClaims(t *testing.T) {
	l := New()
	l.Register(1, 12)
	a1 := seat(t, "A1")

	c, err := l.TryClaim(1, a1)
	require.NoError(t, err)
	assert.ErrorIs(t, l.Retire(1), ErrSeatsTaken)
	require.NoError(t, c.Abort())

	require.NoError(t, l.Retire(1))
	_, err = l.TryClaim(1, a1)
	assert.ErrorIs(t, err, ErrUnknownScreening)

	l.Reopen(1)
	_, err = l.TryClaim(1, a1)
	assert.NoError(t, err)

	l.Forget(1)
	_, err = l.Snapshot(1)
	assert.ErrorIs(t, err, ErrUnknownScreening)
}

func TestRebuildSkipsConflicts(t *testing.T) {
	l := New()
	skipped := l.Rebuild(3, 12, []Holding{
		{Seat: seat(t, "A1"), ReservationID: 10},
		{Seat: seat(t, "A1"), ReservationID: 11},
		{Seat: seat(t, "B5"), ReservationID: 12},
		{Seat: seat(t, "B2"), ReservationID: 13},
	})
	require.Len(t, skipped, 2)
	assert.Equal(t, uint64(11), skipped[0].ReservationID)
	assert.Equal(t, uint64(12), skipped[1].ReservationID)

	holdings, err := l.Holdings(3)
	require.NoError(t, err)
	assert.Equal(t, []Holding{
		{Seat: seat(t, "A1"), ReservationID: 10},
		{Seat: seat(t, "B2"), ReservationID: 13},
	}, holdings)

	assert.ErrorIs(t, l.Restore(3, seat(t, "A1"), 14), ErrAlreadyTaken)
	require.NoError(t, l.Restore(3, seat(t, "A2"), 14))
	snap, err := l.Snapshot(3)
	require.NoError(t, err)
	assert.Equal(t, 3, snap.TakenCount())
	assert.Equal(t, []uint64{3}, l.Screenings())
}
