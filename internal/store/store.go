// Package store owns the set of booking records. Records are never deleted:
// cancelled bookings stay for history. Every method returns defensive copies
// so callers can never mutate shared state behind the store's back.
package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/okryvyi/seatwave/internal/domain"
)

type Store struct {
	mu       sync.RWMutex
	bookings map[int64]*domain.Booking
	codes    map[string]struct{}
	nextID   int64
}

func New() *Store {
	return &Store{
		bookings: make(map[int64]*domain.Booking),
		codes:    make(map[string]struct{}),
	}
}

// Create assigns a monotonic id and a unique confirmation code, then inserts
// the booking. Every booking carries a code from creation on, waitlisted ones
// included, and keeps it for life. A code collision is regenerated, never
// silently reused. CreatedAt is stamped unless the caller already set it.
func (s *Store) Create(b domain.Booking) (domain.Booking, error) {
	const op = "store.Create"

	s.mu.Lock()
	defer s.mu.Unlock()

	code, err := s.uniqueCode()
	if err != nil {
		return domain.Booking{}, fmt.Errorf("%s: %w", op, err)
	}

	s.nextID++
	b.ID = s.nextID
	b.ConfirmationCode = code
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}

	s.bookings[b.ID] = clone(&b)
	s.codes[code] = struct{}{}

	return b, nil
}

func (s *Store) uniqueCode() (string, error) {
	for {
		code, err := newConfirmationCode()
		if err != nil {
			return "", err
		}
		if _, taken := s.codes[code]; !taken {
			return code, nil
		}
	}
}

// Get returns the booking by id.
func (s *Store) Get(id int64) (domain.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bookings[id]
	if !ok {
		return domain.Booking{}, ErrNotFound
	}

	return *clone(b), nil
}

// FindActiveForUser returns the user's confirmed or waitlisted booking for
// the event, if any. At most one can exist.
func (s *Store) FindActiveForUser(eventID, userID int64) (domain.Booking, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, b := range s.bookings {
		if b.EventID == eventID && b.UserID == userID && b.Status.Active() {
			return *clone(b), true
		}
	}

	return domain.Booking{}, false
}

// WaitlistQueue returns the event's waitlisted bookings in promotion order:
// creation time ascending, id as the tie-break.
func (s *Store) WaitlistQueue(eventID int64) []domain.Booking {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var queue []domain.Booking
	for _, b := range s.bookings {
		if b.EventID == eventID && b.Status == domain.BookingWaitlist {
			queue = append(queue, *clone(b))
		}
	}

	sort.Slice(queue, func(i, j int) bool {
		if !queue[i].CreatedAt.Equal(queue[j].CreatedAt) {
			return queue[i].CreatedAt.Before(queue[j].CreatedAt)
		}
		return queue[i].ID < queue[j].ID
	})

	return queue
}

// Cancel transitions the booking to cancelled and returns the record as it
// was before the transition, so the caller can release whatever it held.
// Cancelled is terminal: cancelling twice fails.
func (s *Store) Cancel(id int64) (domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bookings[id]
	if !ok {
		return domain.Booking{}, ErrNotFound
	}

	if b.Status == domain.BookingCancelled {
		return domain.Booking{}, ErrAlreadyCancelled
	}

	prior := *clone(b)
	b.Status = domain.BookingCancelled

	return prior, nil
}

// SetConfirmed promotes a waitlisted booking to confirmed, attaching the
// granted seat labels and the price computed for them. The confirmation code
// assigned at creation is untouched: promotion never changes a booking's
// token.
func (s *Store) SetConfirmed(id int64, grantedSeats []string, totalPrice int) (domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bookings[id]
	if !ok {
		return domain.Booking{}, ErrNotFound
	}

	if b.Status != domain.BookingWaitlist {
		return domain.Booking{}, ErrNotWaitlisted
	}

	b.Status = domain.BookingConfirmed
	b.SeatLabels = append([]string(nil), grantedSeats...)
	b.RequestedSeats = nil
	b.TotalPrice = totalPrice

	return *clone(b), nil
}

// ListForUser returns one page of the user's bookings, newest first, with the
// total count before paging. A nil status means no filter.
func (s *Store) ListForUser(userID int64, status *domain.BookingStatus, page, limit int) ([]domain.Booking, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	s.mu.RLock()
	var all []domain.Booking
	for _, b := range s.bookings {
		if b.UserID != userID {
			continue
		}
		if status != nil && b.Status != *status {
			continue
		}
		all = append(all, *clone(b))
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})

	total := len(all)
	start := (page - 1) * limit
	if start >= total {
		return nil, total
	}
	end := start + limit
	if end > total {
		end = total
	}

	return all[start:end], total
}

func clone(b *domain.Booking) *domain.Booking {
	cp := *b
	cp.SeatLabels = append([]string(nil), b.SeatLabels...)
	cp.RequestedSeats = append([]string(nil), b.RequestedSeats...)
	return &cp
}
