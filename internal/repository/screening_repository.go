// Package repository contains data access logic for the screening catalog.
// A screening is a scheduled showing of an externally catalogued movie.
// Screenings are soft-deleted so that reservation history keeps a valid
// reference; deleted rows are invisible to every read in this file.
package repository

import (
	"context"      // context for controlling query lifetime
	"database/sql" // sql provides DB abstraction
	"errors"       // errors for sentinel comparisons
	"time"

	"github.com/iliyamo/screening-reservation/internal/model"
)

// ScreeningRepo manages persistence for screenings.
type ScreeningRepo struct {
	db *sql.DB
}

// NewScreeningRepo constructs a ScreeningRepo with the given DB handle.
func NewScreeningRepo(db *sql.DB) *ScreeningRepo {
	return &ScreeningRepo{db: db}
}

const screeningColumns = `id, movie_id, show_time, total_seats, price_cents, created_at`

func scanScreening(s rowScanner) (*model.Screening, error) {
	var (
		sc    model.Screening
		price int64
	)
	if err := s.Scan(&sc.ID, &sc.MovieID, &sc.ShowTime, &sc.TotalSeats, &price, &sc.CreatedAt); err != nil {
		return nil, err
	}
	sc.PriceCents = model.Cents(price)
	sc.ShowTime = sc.ShowTime.UTC()
	sc.CreatedAt = sc.CreatedAt.UTC()
	return &sc, nil
}

// Create inserts a new screening and assigns the generated ID back to
// the struct.
func (r *ScreeningRepo) Create(ctx context.Context, s *model.Screening) error {
	const q = `INSERT INTO screenings (movie_id, show_time, total_seats, price_cents, created_at) VALUES (?, ?, ?, ?, ?)`
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx, q, s.MovieID, s.ShowTime.UTC(), s.TotalSeats, int64(s.PriceCents), s.CreatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	return nil
}

// GetByID retrieves a live screening by its ID.  It returns ErrNotFound
// if there is no matching row or the screening was deleted.
func (r *ScreeningRepo) GetByID(ctx context.Context, id uint64) (*model.Screening, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+screeningColumns+` FROM screenings WHERE id = ? AND deleted_at IS NULL`, id)
	s, err := scanScreening(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return s, err
}

// List returns live screenings ordered by show time.  A limit of zero
// or less returns every row.
func (r *ScreeningRepo) List(ctx context.Context, limit, offset int) ([]model.Screening, error) {
	q := `SELECT ` + screeningColumns + ` FROM screenings WHERE deleted_at IS NULL ORDER BY show_time ASC, id ASC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ? OFFSET ?`
		args = append(args, limit, offset)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Screening, 0)
	for rows.Next() {
		s, err := scanScreening(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// CountUpcoming returns the number of live screenings after now.
func (r *ScreeningRepo) CountUpcoming(ctx context.Context, now time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM screenings WHERE deleted_at IS NULL AND show_time > ?`, now.UTC()).Scan(&n)
	return n, err
}

// ExistsAt reports whether a live screening of movieID starts at showTime.
func (r *ScreeningRepo) ExistsAt(ctx context.Context, movieID uint64, showTime time.Time) (bool, error) {
	var id uint64
	err := r.db.QueryRowContext(ctx,
		`SELECT id FROM screenings WHERE movie_id = ? AND show_time = ? AND deleted_at IS NULL LIMIT 1`,
		movieID, showTime.UTC()).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// Delete soft-deletes a screening.  The check for active reservations
// and the update run in one transaction with the screening row locked,
// so no reservation can be inserted against it in between.  It returns
// ErrNotFound when the screening does not exist and ErrConflict when
// active reservations still reference it.
func (r *ScreeningRepo) Delete(ctx context.Context, id uint64, at time.Time) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()
	var found uint64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM screenings WHERE id = ? AND deleted_at IS NULL FOR UPDATE`, id).Scan(&found)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	var active int
	if err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reservations WHERE screening_id = ? AND status = 'active'`, id).Scan(&active); err != nil {
		return err
	}
	if active > 0 {
		return ErrConflict
	}
	_, err = tx.ExecContext(ctx, `UPDATE screenings SET deleted_at = ? WHERE id = ?`, at.UTC(), id)
	return err
}
