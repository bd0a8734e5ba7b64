package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/screening-reservation/internal/model"
)

// Weekly schedule parameters.  Each movie gets one showtime per day,
// rotating through the slots; the price follows the slot.
var (
	showtimes = [...]struct {
		hour, minute int
		price        model.Cents
	}{
		{10, 0, 1000},
		{14, 0, 1250},
		{18, 0, 1500},
		{21, 0, 1250},
	}
)

const (
	scheduleDays     = 7
	scheduledSeats   = 100
	minUpcomingShows = 5
)

// Scheduler keeps a week of screenings on sale for a fixed set of movies.
type Scheduler struct {
	catalog    *Catalog
	screenings ScreeningStore
	movieIDs   []uint64
	log        *zap.Logger
}

func NewScheduler(d Deps, catalog *Catalog, movieIDs []uint64) *Scheduler {
	d = d.withDefaults()
	return &Scheduler{
		catalog:    catalog,
		screenings: d.Screenings,
		movieIDs:   movieIDs,
		log:        d.Logger.Named("scheduler"),
	}
}

// EnsureWeek creates screenings for the seven days after now unless at
// least five upcoming screenings already exist.  Screenings that
// already exist for a (movie, show time) pair are skipped.  It returns
// the screenings it created.
func (s *Scheduler) EnsureWeek(ctx context.Context, now time.Time) ([]model.Screening, error) {
	upcoming, err := s.screenings.CountUpcoming(ctx, now)
	if err != nil {
		return nil, storeError("count upcoming screenings", err)
	}
	if upcoming >= minUpcomingShows {
		s.log.Debug("enough upcoming screenings, skipping", zap.Int("upcoming", upcoming))
		return nil, nil
	}
	if len(s.movieIDs) == 0 {
		s.log.Warn("no movies configured, cannot schedule screenings")
		return nil, nil
	}

	system := model.Actor{Role: model.RoleAdmin}
	now = now.UTC()
	var created []model.Screening
	for day := 1; day <= scheduleDays; day++ {
		date := now.AddDate(0, 0, day)
		for i, movieID := range s.movieIDs {
			slot := showtimes[(day+i)%len(showtimes)]
			at := time.Date(date.Year(), date.Month(), date.Day(), slot.hour, slot.minute, 0, 0, time.UTC)
			exists, err := s.screenings.ExistsAt(ctx, movieID, at)
			if err != nil {
				return created, storeError("check screening", err)
			}
			if exists {
				continue
			}
			sc, err := s.catalog.Create(ctx, system, ScreeningInput{
				MovieID:    movieID,
				ShowTime:   at,
				TotalSeats: scheduledSeats,
				Price:      slot.price,
			})
			if err != nil {
				return created, fmt.Errorf("schedule movie %d at %s: %w", movieID, at.Format(time.RFC3339), err)
			}
			created = append(created, *sc)
		}
	}
	if len(created) > 0 {
		s.log.Info("scheduled screenings for the week", zap.Int("created", len(created)))
	}
	return created, nil
}
