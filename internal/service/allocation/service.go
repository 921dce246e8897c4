// Package allocation is the booking state machine: it accepts booking
// requests and cancellations, decides confirmed versus waitlist against the
// seat ledger, and promotes waitlisted bookings in strict FIFO order when a
// cancellation frees capacity.
//
// Every mutating operation runs inside the event's exclusive critical
// section, so no two requests for the same event ever interleave between the
// availability check and the grant. Outbound work (event publishing, cache
// invalidation, ledger snapshot saves) is registered as after-unlock hooks
// and runs on already-committed state, outside the section.
package allocation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/okryvyi/seatwave/internal/domain"
	"github.com/okryvyi/seatwave/internal/ledger"
	"github.com/okryvyi/seatwave/internal/locker"
	"github.com/okryvyi/seatwave/internal/persist"
	redisx "github.com/okryvyi/seatwave/internal/redis"
	"github.com/okryvyi/seatwave/internal/store"
)

// Publisher delivers the two domain events to external subscribers.
type Publisher interface {
	PublishSeatAvailability(ctx context.Context, ev domain.SeatAvailabilityChanged) error
	PublishBookingConfirmed(ctx context.Context, ev domain.BookingConfirmedEvent) error
}

type Service struct {
	ledger   *ledger.Ledger
	bookings *store.Store
	locks    *locker.Keyed
	pub      Publisher
	port     persist.Port
	cache    *redisx.Cache
	logger   *slog.Logger
}

// New wires the engine. pub, port and cache may be nil; the corresponding
// side effect is then skipped.
func New(
	led *ledger.Ledger,
	bookings *store.Store,
	locks *locker.Keyed,
	pub Publisher,
	port persist.Port,
	cache *redisx.Cache,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		ledger:   led,
		bookings: bookings,
		locks:    locks,
		pub:      pub,
		port:     port,
		cache:    cache,
		logger:   logger,
	}
}

// BookingResult reports the outcome of a booking request.
type BookingResult struct {
	Booking domain.Booking
	// UnavailableSeats names the requested labels that were taken, set when
	// the request was waitlisted because of them.
	UnavailableSeats []string
}

func (r *BookingResult) Waitlisted() bool {
	return r.Booking.Status == domain.BookingWaitlist
}

// CancelResult reports the cancelled booking and every waitlist entry the
// freed capacity promoted.
type CancelResult struct {
	Booking  domain.Booking
	Promoted []domain.Booking
}

// InitializeEvent creates the seat ledger for an event. Idempotent: an event
// that already has a ledger keeps its occupancy untouched.
func (s *Service) InitializeEvent(ctx context.Context, eventID int64, capacity int, seatMap bool) error {
	const op = "service.allocation.InitializeEvent"

	err := s.locks.Do(ctx, eventID, func(after func(locker.AfterUnlock)) error {
		created, err := s.ledger.Initialize(eventID, capacity, seatMap)
		if err != nil {
			if errors.Is(err, ledger.ErrInvalidCapacity) {
				return fmt.Errorf("%s: %w", op, ErrInvalidCapacity)
			}
			return fmt.Errorf("%s: %w", op, err)
		}

		if created {
			s.deferSnapshotSave(eventID, after)
		}

		return nil
	})

	return err
}

// ResizeEvent changes an event's capacity under the rules enforced by the
// ledger: grow freely, shrink no further than current occupancy.
func (s *Service) ResizeEvent(ctx context.Context, eventID int64, capacity int) error {
	const op = "service.allocation.ResizeEvent"

	return s.locks.Do(ctx, eventID, func(after func(locker.AfterUnlock)) error {
		if err := s.ledger.Resize(eventID, capacity); err != nil {
			switch {
			case errors.Is(err, ledger.ErrUnknownEvent):
				return fmt.Errorf("%s: %w", op, ErrEventNotFound)
			case errors.Is(err, ledger.ErrInvalidCapacity):
				return fmt.Errorf("%s: %w", op, ErrInvalidCapacity)
			case errors.Is(err, ledger.ErrCapacityBelowOccupied):
				return fmt.Errorf("%s: %w", op, ErrCapacityBelowOccupied)
			}
			return fmt.Errorf("%s: %w", op, err)
		}

		s.deferAvailabilityEvent(eventID, after)
		s.deferSnapshotSave(eventID, after)

		return nil
	})
}

// Book handles a booking request. With seat labels the request is
// all-or-nothing: either every label is granted and the booking confirms, or
// none are and the booking joins the waitlist for exactly those labels.
// Without labels the request books seatCount units, waitlisting when fewer
// are free. A failed grant leaves the ledger untouched.
func (s *Service) Book(ctx context.Context, eventID, userID int64, seatCount int, seatLabels []string) (*BookingResult, error) {
	const op = "service.allocation.Book"

	seatLabels = dedupe(seatLabels)
	if len(seatLabels) > 0 {
		seatCount = len(seatLabels)
	}
	if seatCount < 1 {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidSeatCount)
	}

	var result *BookingResult

	err := s.locks.Do(ctx, eventID, func(after func(locker.AfterUnlock)) error {
		if !s.ledger.Exists(eventID) {
			return fmt.Errorf("%s: %w", op, ErrEventNotFound)
		}

		if _, exists := s.bookings.FindActiveForUser(eventID, userID); exists {
			return fmt.Errorf("%s: %w", op, ErrDuplicateBooking)
		}

		if len(seatLabels) > 0 {
			seatMap, err := s.ledger.SeatMapMode(eventID)
			if err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}
			if !seatMap {
				return fmt.Errorf("%s: %w", op, ErrSeatSelectionUnsupported)
			}

			unknown, err := s.ledger.UnknownLabels(eventID, seatLabels)
			if err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}
			if len(unknown) > 0 {
				return fmt.Errorf("%s: %w", op, &UnknownSeatsError{Labels: unknown})
			}
		}

		booking, err := s.bookings.Create(domain.Booking{
			UserID:         userID,
			EventID:        eventID,
			Status:         domain.BookingWaitlist,
			RequestedSeats: seatLabels,
			SeatCount:      seatCount,
			CreatedAt:      time.Now().UTC(),
		})
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		granted, occupyErr := s.occupy(eventID, booking)

		if occupyErr != nil {
			var unavailable *ledger.UnavailableSeatsError
			var noCapacity *ledger.NoCapacityError

			switch {
			case errors.As(occupyErr, &unavailable):
				result = &BookingResult{Booking: booking, UnavailableSeats: unavailable.Labels}
				return nil
			case errors.As(occupyErr, &noCapacity):
				result = &BookingResult{Booking: booking}
				return nil
			}

			return fmt.Errorf("%s: %w", op, occupyErr)
		}

		confirmed, err := s.confirm(eventID, booking.ID, granted)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		result = &BookingResult{Booking: confirmed}

		s.deferBookingConfirmedEvent(confirmed, after)
		s.deferAvailabilityEvent(eventID, after)
		s.deferSnapshotSave(eventID, after)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// Cancel transitions a booking to its terminal state. Cancelling a confirmed
// booking releases its capacity and synchronously promotes the event's
// waitlist in creation order; the scan stops at the first entry that cannot
// be satisfied, even if a later, smaller entry would fit.
func (s *Service) Cancel(ctx context.Context, bookingID, requesterID int64, requesterIsAdmin bool) (*CancelResult, error) {
	const op = "service.allocation.Cancel"

	booking, err := s.bookings.Get(bookingID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrBookingNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !requesterIsAdmin && booking.UserID != requesterID {
		return nil, fmt.Errorf("%s: %w", op, ErrForbidden)
	}

	var result *CancelResult

	err = s.locks.Do(ctx, booking.EventID, func(after func(locker.AfterUnlock)) error {
		prior, err := s.bookings.Cancel(bookingID)
		if err != nil {
			switch {
			case errors.Is(err, store.ErrAlreadyCancelled):
				return fmt.Errorf("%s: %w", op, ErrAlreadyCancelled)
			case errors.Is(err, store.ErrNotFound):
				return fmt.Errorf("%s: %w", op, ErrBookingNotFound)
			}
			return fmt.Errorf("%s: %w", op, err)
		}

		cancelled := prior
		cancelled.Status = domain.BookingCancelled
		result = &CancelResult{Booking: cancelled}

		// Cancelling a waitlist entry frees nothing, so nothing to promote.
		if prior.Status != domain.BookingConfirmed {
			return nil
		}

		s.release(prior)
		s.deferAvailabilityEvent(prior.EventID, after)

		result.Promoted = s.promote(prior.EventID, after)

		s.deferSnapshotSave(prior.EventID, after)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// occupy grants the booking's requested units and returns the exact labels
// granted (nil for bulk-count events).
func (s *Service) occupy(eventID int64, b domain.Booking) ([]string, error) {
	if len(b.RequestedSeats) > 0 {
		if err := s.ledger.OccupySeats(eventID, b.RequestedSeats, b.ID); err != nil {
			return nil, err
		}
		return b.RequestedSeats, nil
	}

	return s.ledger.OccupyCount(eventID, b.SeatCount, b.ID)
}

// confirm finishes a grant: prices the seats and flips the stored booking to
// confirmed.
func (s *Service) confirm(eventID, bookingID int64, granted []string) (domain.Booking, error) {
	total := 0
	if len(granted) > 0 {
		var err error
		total, err = s.ledger.PriceSum(eventID, granted)
		if err != nil {
			return domain.Booking{}, err
		}
	}

	return s.bookings.SetConfirmed(bookingID, granted, total)
}

// release frees whatever a confirmed booking held. A unit that turns out not
// to be held signals an earlier inconsistency; it is logged and the rest of
// the batch is still released.
func (s *Service) release(b domain.Booking) {
	var err error
	if len(b.SeatLabels) > 0 {
		err = s.ledger.ReleaseSeats(b.EventID, b.SeatLabels)
	} else if b.SeatCount > 0 {
		err = s.ledger.ReleaseCount(b.EventID, b.SeatCount)
	}

	if err != nil {
		var notOccupied *ledger.NotOccupiedError
		if errors.As(err, &notOccupied) {
			s.logger.Warn("cancel released units that were not occupied",
				"booking_id", b.ID,
				"event_id", b.EventID,
				"error", err,
			)
			return
		}

		s.logger.Error("release failed", "booking_id", b.ID, "event_id", b.EventID, "error", err)
	}
}

// promote walks the event's waitlist in creation order, confirming every
// entry that fits and stopping at the first that does not. The scan never
// skips a blocked head in favor of a later, smaller entry: that is the
// fairness policy, even when it leaves free capacity unused.
func (s *Service) promote(eventID int64, after func(locker.AfterUnlock)) []domain.Booking {
	var promoted []domain.Booking

	for _, w := range s.bookings.WaitlistQueue(eventID) {
		granted, err := s.occupy(eventID, w)
		if err != nil {
			break
		}

		confirmed, err := s.confirm(eventID, w.ID, granted)
		if err != nil {
			// The grant cannot stand without the booking flip; hand the
			// units back and stop the scan.
			s.logger.Error("promotion confirm failed", "booking_id", w.ID, "error", err)
			s.release(domain.Booking{EventID: eventID, SeatLabels: granted, SeatCount: w.SeatCount})
			break
		}

		promoted = append(promoted, confirmed)

		s.deferBookingConfirmedEvent(confirmed, after)
		s.deferAvailabilityEvent(eventID, after)
	}

	return promoted
}

// deferAvailabilityEvent captures the availability as of now, inside the
// critical section, and publishes it after unlock.
func (s *Service) deferAvailabilityEvent(eventID int64, after func(locker.AfterUnlock)) {
	avail, err := s.ledger.Availability(eventID)
	if err != nil {
		return
	}
	occupied, _ := s.ledger.OccupiedLabels(eventID)

	ev := domain.SeatAvailabilityChanged{
		EventID:        eventID,
		AvailableSeats: avail,
		OccupiedLabels: occupied,
		TsUnix:         time.Now().Unix(),
	}

	after(func(ctx context.Context) {
		if s.cache != nil {
			_ = s.cache.InvalidateEvent(ctx, eventID)
		}
		if s.pub != nil {
			_ = s.pub.PublishSeatAvailability(ctx, ev)
		}
	})
}

func (s *Service) deferBookingConfirmedEvent(b domain.Booking, after func(locker.AfterUnlock)) {
	ev := domain.BookingConfirmedEvent{
		BookingID:        b.ID,
		EventID:          b.EventID,
		UserID:           b.UserID,
		SeatLabels:       b.SeatLabels,
		SeatCount:        b.SeatCount,
		ConfirmationCode: b.ConfirmationCode,
		TsUnix:           time.Now().Unix(),
	}

	after(func(ctx context.Context) {
		if s.pub != nil {
			_ = s.pub.PublishBookingConfirmed(ctx, ev)
		}
	})
}

// deferSnapshotSave exports the ledger inside the critical section and hands
// the already-consistent snapshot to the persistence port after unlock. A
// failed save is logged; in-process state is authoritative.
func (s *Service) deferSnapshotSave(eventID int64, after func(locker.AfterUnlock)) {
	if s.port == nil {
		return
	}

	snap, err := s.ledger.Export(eventID)
	if err != nil {
		return
	}

	after(func(ctx context.Context) {
		if err := s.port.Save(ctx, snap); err != nil {
			s.logger.Warn("ledger snapshot save failed", "event_id", eventID, "error", err)
		}
	})
}

func dedupe(labels []string) []string {
	if len(labels) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(labels))
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		if _, dup := seen[l]; dup {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}

	return out
}
