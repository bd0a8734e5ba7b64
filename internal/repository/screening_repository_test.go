package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/screening-reservation/internal/model"
)

var screeningCols = []string{"id", "movie_id", "show_time", "total_seats", "price_cents", "created_at"}

func TestScreeningCreateAndGet(t *testing.T) {
	_, repo, mock := newMock(t)
	show := time.Date(2026, 6, 1, 18, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO screenings").
		WithArgs(uint64(550), show, 12, int64(1500), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(5, 1))
	mock.ExpectQuery("SELECT (.+) FROM screenings WHERE id = \\? AND deleted_at IS NULL").WithArgs(uint64(5)).
		WillReturnRows(sqlmock.NewRows(screeningCols).AddRow(5, 550, show, 12, 1500, show.Add(-time.Hour)))

	sc := &model.Screening{MovieID: 550, ShowTime: show, TotalSeats: 12, PriceCents: 1500}
	require.NoError(t, repo.Create(context.Background(), sc))
	assert.Equal(t, uint64(5), sc.ID)

	got, err := repo.GetByID(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, 12, got.TotalSeats)
	assert.Equal(t, model.Cents(1500), got.PriceCents)
	assert.True(t, got.ShowTime.Equal(show))
}

func TestScreeningListPaged(t *testing.T) {
	_, repo, mock := newMock(t)
	show := time.Date(2026, 6, 1, 18, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT (.+) FROM screenings WHERE deleted_at IS NULL ORDER BY show_time ASC, id ASC LIMIT").
		WithArgs(10, 20).
		WillReturnRows(sqlmock.NewRows(screeningCols).
			AddRow(1, 550, show, 100, 1000, show).
			AddRow(2, 551, show.Add(time.Hour), 100, 1250, show))

	list, err := repo.List(context.Background(), 10, 20)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, uint64(551), list[1].MovieID)
}

func TestScreeningDeleteWithActiveReservations(t *testing.T) {
	_, repo, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM screenings WHERE id = \\? AND deleted_at IS NULL FOR UPDATE").WithArgs(uint64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM reservations").WithArgs(uint64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))
	mock.ExpectRollback()

	err := repo.Delete(context.Background(), 5, time.Now())
	assert.ErrorIs(t, err, ErrConflict)
}

func TestScreeningDelete(t *testing.T) {
	_, repo, mock := newMock(t)
	at := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM screenings").WithArgs(uint64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM reservations").WithArgs(uint64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
	mock.ExpectExec("UPDATE screenings SET deleted_at").WithArgs(at, uint64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Delete(context.Background(), 5, at))
}

func TestScreeningDeleteMissing(t *testing.T) {
	_, repo, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM screenings").WithArgs(uint64(6)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	assert.ErrorIs(t, repo.Delete(context.Background(), 6, time.Now()), ErrNotFound)
}

func TestScreeningExistsAt(t *testing.T) {
	_, repo, mock := newMock(t)
	show := time.Date(2026, 6, 1, 18, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT id FROM screenings WHERE movie_id").WithArgs(uint64(550), show).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectQuery("SELECT id FROM screenings WHERE movie_id").WithArgs(uint64(551), show).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	ok, err := repo.ExistsAt(context.Background(), 550, show)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.ExistsAt(context.Background(), 551, show)
	require.NoError(t, err)
	assert.False(t, ok)
}
