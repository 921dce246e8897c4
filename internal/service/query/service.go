// Package query serves the read side: availability counts, seat maps and
// booking lookups. Reads take the event's shared lock, so they never observe
// a half-applied grant, and the two event-scoped read models go through a
// short-TTL cache that the allocation service invalidates after every write.
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/okryvyi/seatwave/internal/domain"
	"github.com/okryvyi/seatwave/internal/ledger"
	"github.com/okryvyi/seatwave/internal/locker"
	redisx "github.com/okryvyi/seatwave/internal/redis"
	"github.com/okryvyi/seatwave/internal/store"
)

const cacheTTL = 5 * time.Second

type Service struct {
	ledger   *ledger.Ledger
	bookings *store.Store
	locks    *locker.Keyed
	cache    *redisx.Cache
	logger   *slog.Logger
}

// New wires the read side. cache may be nil; reads then always hit the
// ledger directly.
func New(led *ledger.Ledger, bookings *store.Store, locks *locker.Keyed, cache *redisx.Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		ledger:   led,
		bookings: bookings,
		locks:    locks,
		cache:    cache,
		logger:   logger,
	}
}

// Availability returns the event's capacity counters.
func (s *Service) Availability(ctx context.Context, eventID int64) (domain.Availability, error) {
	const op = "service.query.Availability"

	load := func(ctx context.Context) (domain.Availability, error) {
		var avail domain.Availability
		err := s.locks.DoRead(eventID, func() error {
			var err error
			avail, err = s.ledger.Counts(eventID)
			return err
		})
		return avail, err
	}

	var (
		avail domain.Availability
		err   error
	)
	if s.cache != nil {
		avail, err = redisx.GetOrSetJSON(ctx, s.cache, redisx.KeyEventAvailability(eventID), cacheTTL, load)
	} else {
		avail, err = load(ctx)
	}
	if err != nil {
		if errors.Is(err, ledger.ErrUnknownEvent) {
			return domain.Availability{}, fmt.Errorf("%s: %w", op, ErrEventNotFound)
		}
		return domain.Availability{}, fmt.Errorf("%s: %w", op, err)
	}

	return avail, nil
}

// SeatMap returns every seat of the event with its price and status, sorted
// by row and position. Bulk-count events have no seat map and return
// ErrNoSeatMap.
func (s *Service) SeatMap(ctx context.Context, eventID int64) ([]domain.SeatView, error) {
	const op = "service.query.SeatMap"

	load := func(ctx context.Context) ([]domain.SeatView, error) {
		var views []domain.SeatView
		err := s.locks.DoRead(eventID, func() error {
			var err error
			views, err = s.ledger.SeatViews(eventID)
			return err
		})
		return views, err
	}

	var (
		views []domain.SeatView
		err   error
	)
	if s.cache != nil {
		views, err = redisx.GetOrSetJSON(ctx, s.cache, redisx.KeyEventSeatMap(eventID), cacheTTL, load)
	} else {
		views, err = load(ctx)
	}
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrUnknownEvent):
			return nil, fmt.Errorf("%s: %w", op, ErrEventNotFound)
		case errors.Is(err, ledger.ErrNoSeatMap):
			return nil, fmt.Errorf("%s: %w", op, ErrNoSeatMap)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return views, nil
}

// GetBooking returns a booking to its owner or to an admin.
func (s *Service) GetBooking(_ context.Context, bookingID, requesterID int64, requesterIsAdmin bool) (domain.Booking, error) {
	const op = "service.query.GetBooking"

	b, err := s.bookings.Get(bookingID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Booking{}, fmt.Errorf("%s: %w", op, ErrBookingNotFound)
		}
		return domain.Booking{}, fmt.Errorf("%s: %w", op, err)
	}

	if !requesterIsAdmin && b.UserID != requesterID {
		return domain.Booking{}, fmt.Errorf("%s: %w", op, ErrForbidden)
	}

	return b, nil
}

// BookingPage is one page of a user's booking history.
type BookingPage struct {
	Bookings []domain.Booking
	Total    int
	Page     int
	Limit    int
}

// ListUserBookings returns the requester's bookings newest first, optionally
// filtered by status.
func (s *Service) ListUserBookings(_ context.Context, userID int64, status *domain.BookingStatus, page, limit int) (BookingPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	bookings, total := s.bookings.ListForUser(userID, status, page, limit)

	return BookingPage{
		Bookings: bookings,
		Total:    total,
		Page:     page,
		Limit:    limit,
	}, nil
}
