package allocation

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okryvyi/seatwave/internal/domain"
	"github.com/okryvyi/seatwave/internal/ledger"
	"github.com/okryvyi/seatwave/internal/locker"
	"github.com/okryvyi/seatwave/internal/persist"
	"github.com/okryvyi/seatwave/internal/store"
)

type publisherMock struct {
	mu           sync.Mutex
	availability []domain.SeatAvailabilityChanged
	confirmed    []domain.BookingConfirmedEvent
}

func (m *publisherMock) PublishSeatAvailability(_ context.Context, ev domain.SeatAvailabilityChanged) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.availability = append(m.availability, ev)
	return nil
}

func (m *publisherMock) PublishBookingConfirmed(_ context.Context, ev domain.BookingConfirmedEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.confirmed = append(m.confirmed, ev)
	return nil
}

func (m *publisherMock) confirmedCodes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	codes := make([]string, 0, len(m.confirmed))
	for _, ev := range m.confirmed {
		codes = append(codes, ev.ConfirmationCode)
	}
	return codes
}

func newTestService(t *testing.T) (*Service, *publisherMock, *persist.Memory) {
	t.Helper()

	pub := &publisherMock{}
	port := persist.NewMemory()
	svc := New(
		ledger.New(slog.New(slog.NewTextHandler(io.Discard, nil))),
		store.New(),
		locker.New(),
		pub,
		port,
		nil,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	return svc, pub, port
}

func TestService_InitializeEvent(t *testing.T) {
	svc, _, port := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.InitializeEvent(ctx, 1, 24, true))

	// Re-initializing must not reset occupancy.
	res, err := svc.Book(ctx, 1, 10, 0, []string{"A1"})
	require.NoError(t, err)
	require.Equal(t, domain.BookingConfirmed, res.Booking.Status)

	require.NoError(t, svc.InitializeEvent(ctx, 1, 24, true))

	_, err = svc.Book(ctx, 1, 11, 0, []string{"A1"})
	require.NoError(t, err)

	snap, err := port.Load(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 24, snap.Capacity)

	assert.ErrorIs(t, svc.InitializeEvent(ctx, 2, 0, false), ErrInvalidCapacity)
}

func TestService_ResizeEvent(t *testing.T) {
	svc, pub, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.InitializeEvent(ctx, 1, 12, true))

	res, err := svc.Book(ctx, 1, 10, 3, nil)
	require.NoError(t, err)
	require.Equal(t, domain.BookingConfirmed, res.Booking.Status)

	assert.ErrorIs(t, svc.ResizeEvent(ctx, 1, 2), ErrCapacityBelowOccupied)
	assert.ErrorIs(t, svc.ResizeEvent(ctx, 99, 10), ErrEventNotFound)
	assert.ErrorIs(t, svc.ResizeEvent(ctx, 1, 0), ErrInvalidCapacity)

	require.NoError(t, svc.ResizeEvent(ctx, 1, 36))

	pub.mu.Lock()
	last := pub.availability[len(pub.availability)-1]
	pub.mu.Unlock()
	assert.Equal(t, 33, last.AvailableSeats)
}

func TestService_Book_SeatMap(t *testing.T) {
	svc, pub, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.InitializeEvent(ctx, 1, 24, true))

	res, err := svc.Book(ctx, 1, 10, 0, []string{"A1", "A2"})
	require.NoError(t, err)
	assert.Equal(t, domain.BookingConfirmed, res.Booking.Status)
	assert.Equal(t, []string{"A1", "A2"}, res.Booking.SeatLabels)
	assert.Len(t, res.Booking.ConfirmationCode, 9)
	assert.Equal(t, 240, res.Booking.TotalPrice)

	// A taken label waitlists the whole request, all-or-nothing.
	res, err = svc.Book(ctx, 1, 11, 0, []string{"A2", "B1"})
	require.NoError(t, err)
	assert.Equal(t, domain.BookingWaitlist, res.Booking.Status)
	assert.Equal(t, []string{"A2"}, res.UnavailableSeats)
	assert.Len(t, res.Booking.ConfirmationCode, 9, "waitlisted bookings carry their code from creation")

	// B1 stayed free: the failed request must not hold partial grants.
	res, err = svc.Book(ctx, 1, 12, 0, []string{"B1"})
	require.NoError(t, err)
	assert.Equal(t, domain.BookingConfirmed, res.Booking.Status)

	assert.Len(t, pub.confirmedCodes(), 2)
}

func TestService_Book_UnknownSeat(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.InitializeEvent(ctx, 1, 12, true))

	_, err := svc.Book(ctx, 1, 10, 0, []string{"A1", "Z9"})
	var unknown *UnknownSeatsError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, []string{"Z9"}, unknown.Labels)
}

func TestService_Book_BulkCount(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.InitializeEvent(ctx, 1, 5, false))

	res, err := svc.Book(ctx, 1, 10, 4, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingConfirmed, res.Booking.Status)
	assert.Empty(t, res.Booking.SeatLabels)

	res, err = svc.Book(ctx, 1, 11, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingWaitlist, res.Booking.Status)

	_, err = svc.Book(ctx, 1, 12, 0, nil)
	assert.ErrorIs(t, err, ErrInvalidSeatCount)

	_, err = svc.Book(ctx, 1, 13, 1, []string{"A1"})
	assert.ErrorIs(t, err, ErrSeatSelectionUnsupported)
}

func TestService_Book_WaitlistCarriesConfirmationCode(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.InitializeEvent(ctx, 1, 1, false))

	holder, err := svc.Book(ctx, 1, 10, 1, nil)
	require.NoError(t, err)
	require.Equal(t, domain.BookingConfirmed, holder.Booking.Status)

	// Bookings earn their code at creation, so a waitlisted one already has
	// a display token.
	waitlisted, err := svc.Book(ctx, 1, 11, 1, nil)
	require.NoError(t, err)
	require.Equal(t, domain.BookingWaitlist, waitlisted.Booking.Status)
	assert.Regexp(t, `^[A-Z0-9]{9}$`, waitlisted.Booking.ConfirmationCode)

	// Promotion keeps that same code.
	res, err := svc.Cancel(ctx, holder.Booking.ID, 10, false)
	require.NoError(t, err)
	require.Len(t, res.Promoted, 1)
	assert.Equal(t, waitlisted.Booking.ConfirmationCode, res.Promoted[0].ConfirmationCode)
}

func TestService_Book_Guards(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.InitializeEvent(ctx, 1, 12, true))

	_, err := svc.Book(ctx, 99, 10, 1, nil)
	assert.ErrorIs(t, err, ErrEventNotFound)

	_, err = svc.Book(ctx, 1, 10, 1, nil)
	require.NoError(t, err)

	// One active booking per user per event, waitlisted ones included.
	_, err = svc.Book(ctx, 1, 10, 1, nil)
	assert.ErrorIs(t, err, ErrDuplicateBooking)
}

func TestService_Cancel_Authorization(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.InitializeEvent(ctx, 1, 12, true))

	res, err := svc.Book(ctx, 1, 10, 1, nil)
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, 999, 10, false)
	assert.ErrorIs(t, err, ErrBookingNotFound)

	_, err = svc.Cancel(ctx, res.Booking.ID, 11, false)
	assert.ErrorIs(t, err, ErrForbidden)

	// Admins may cancel anyone's booking.
	cancelled, err := svc.Cancel(ctx, res.Booking.ID, 999, true)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingCancelled, cancelled.Booking.Status)

	_, err = svc.Cancel(ctx, res.Booking.ID, 10, false)
	assert.ErrorIs(t, err, ErrAlreadyCancelled)
}

func TestService_Cancel_WaitlistFreesNothing(t *testing.T) {
	svc, pub, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.InitializeEvent(ctx, 1, 2, false))

	_, err := svc.Book(ctx, 1, 10, 2, nil)
	require.NoError(t, err)

	waitlisted, err := svc.Book(ctx, 1, 11, 1, nil)
	require.NoError(t, err)
	require.Equal(t, domain.BookingWaitlist, waitlisted.Booking.Status)

	blocked, err := svc.Book(ctx, 1, 12, 1, nil)
	require.NoError(t, err)

	before := len(pub.confirmedCodes())

	res, err := svc.Cancel(ctx, waitlisted.Booking.ID, 11, false)
	require.NoError(t, err)
	assert.Empty(t, res.Promoted)

	// No capacity moved, so the remaining waitlist entry stays put.
	got, err := svc.bookings.Get(blocked.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingWaitlist, got.Status)
	assert.Len(t, pub.confirmedCodes(), before)
}

func TestService_Book_ConcurrentNoOverbooking(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	const capacity = 20
	const requests = 60

	require.NoError(t, svc.InitializeEvent(ctx, 1, capacity, false))

	var wg sync.WaitGroup
	results := make([]*BookingResult, requests)
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := svc.Book(ctx, 1, int64(100+i), 1, nil)
			if err == nil {
				results[i] = res
			}
		}(i)
	}
	wg.Wait()

	confirmed := 0
	for _, res := range results {
		require.NotNil(t, res)
		if res.Booking.Status == domain.BookingConfirmed {
			confirmed++
		}
	}
	assert.Equal(t, capacity, confirmed)

	avail, err := svc.ledger.Availability(1)
	require.NoError(t, err)
	assert.Equal(t, 0, avail)
}
