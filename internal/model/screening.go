package model

import "time"

// Screening represents a scheduled showing of a movie.  The movie
// itself lives in an external catalog and is referenced only by ID.
// A screening's seats are derived from TotalSeats via NewLayout.
//
// Fields:
//  ID         – primary key identifier.
//  MovieID    – external movie reference.
//  ShowTime   – when the screening starts (UTC).
//  TotalSeats – number of seats on sale (positive).
//  PriceCents – ticket price in cents.
//  CreatedAt  – creation timestamp.
//  DeletedAt  – set when an administrator removes the screening.
type Screening struct {
    ID         uint64     `json:"id"`          // screenings.id
    MovieID    uint64     `json:"movie_id"`    // screenings.movie_id
    ShowTime   time.Time  `json:"show_time"`   // screenings.show_time
    TotalSeats int        `json:"total_seats"` // screenings.total_seats
    PriceCents Cents      `json:"price"`       // screenings.price_cents
    CreatedAt  time.Time  `json:"created_at"`  // screenings.created_at
    DeletedAt  *time.Time `json:"-"`           // screenings.deleted_at (nullable)
}

// Layout returns the seat layout of the screening.
func (s Screening) Layout() Layout { return NewLayout(s.TotalSeats) }

// Started reports whether the screening's show time is at or before now.
func (s Screening) Started(now time.Time) bool { return !s.ShowTime.After(now) }
