package allocation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okryvyi/seatwave/internal/domain"
)

func TestPromotion_SeatMapWaitlistTakesFreedSeats(t *testing.T) {
	svc, pub, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.InitializeEvent(ctx, 1, 12, true))

	holder, err := svc.Book(ctx, 1, 10, 0, []string{"A1", "A2"})
	require.NoError(t, err)
	require.Equal(t, domain.BookingConfirmed, holder.Booking.Status)

	waiting, err := svc.Book(ctx, 1, 11, 0, []string{"A1", "A2"})
	require.NoError(t, err)
	require.Equal(t, domain.BookingWaitlist, waiting.Booking.Status)

	res, err := svc.Cancel(ctx, holder.Booking.ID, 10, false)
	require.NoError(t, err)

	require.Len(t, res.Promoted, 1)
	promoted := res.Promoted[0]
	assert.Equal(t, waiting.Booking.ID, promoted.ID)
	assert.Equal(t, domain.BookingConfirmed, promoted.Status)
	assert.Equal(t, []string{"A1", "A2"}, promoted.SeatLabels)
	assert.Len(t, promoted.ConfirmationCode, 9)
	assert.NotEqual(t, holder.Booking.ConfirmationCode, promoted.ConfirmationCode)

	// One confirmed event for the original grant, one for the promotion.
	assert.Len(t, pub.confirmedCodes(), 2)
}

func TestPromotion_HeadOfLineBlocks(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.InitializeEvent(ctx, 1, 4, false))

	first, err := svc.Book(ctx, 1, 10, 2, nil)
	require.NoError(t, err)
	require.Equal(t, domain.BookingConfirmed, first.Booking.Status)

	second, err := svc.Book(ctx, 1, 11, 2, nil)
	require.NoError(t, err)
	require.Equal(t, domain.BookingConfirmed, second.Booking.Status)

	// Queue: big(3), small(1), small(1). Only 2 units free after the cancel,
	// so the head blocks and nothing behind it may jump the line.
	big, err := svc.Book(ctx, 1, 20, 3, nil)
	require.NoError(t, err)
	require.Equal(t, domain.BookingWaitlist, big.Booking.Status)

	smallA, err := svc.Book(ctx, 1, 21, 1, nil)
	require.NoError(t, err)
	smallB, err := svc.Book(ctx, 1, 22, 1, nil)
	require.NoError(t, err)

	res, err := svc.Cancel(ctx, first.Booking.ID, 10, false)
	require.NoError(t, err)
	assert.Empty(t, res.Promoted)

	for _, id := range []int64{big.Booking.ID, smallA.Booking.ID, smallB.Booking.ID} {
		got, err := svc.bookings.Get(id)
		require.NoError(t, err)
		assert.Equal(t, domain.BookingWaitlist, got.Status)
	}

	// Freeing the second pair gives 4 units: the head takes 3, the next
	// takes 1, and the queue drains in order until it blocks again.
	res, err = svc.Cancel(ctx, second.Booking.ID, 11, false)
	require.NoError(t, err)

	require.Len(t, res.Promoted, 2)
	assert.Equal(t, big.Booking.ID, res.Promoted[0].ID)
	assert.Equal(t, smallA.Booking.ID, res.Promoted[1].ID)

	got, err := svc.bookings.Get(smallB.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingWaitlist, got.Status)
}

func TestPromotion_CascadeDrainsQueueInOrder(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.InitializeEvent(ctx, 1, 3, false))

	holder, err := svc.Book(ctx, 1, 10, 3, nil)
	require.NoError(t, err)

	var waiting []*BookingResult
	for i := 0; i < 3; i++ {
		res, err := svc.Book(ctx, 1, int64(20+i), 1, nil)
		require.NoError(t, err)
		require.Equal(t, domain.BookingWaitlist, res.Booking.Status)
		waiting = append(waiting, res)
	}

	res, err := svc.Cancel(ctx, holder.Booking.ID, 10, false)
	require.NoError(t, err)

	require.Len(t, res.Promoted, 3)
	for i, w := range waiting {
		assert.Equal(t, w.Booking.ID, res.Promoted[i].ID)
		assert.Equal(t, domain.BookingConfirmed, res.Promoted[i].Status)
	}

	avail, err := svc.ledger.Availability(1)
	require.NoError(t, err)
	assert.Equal(t, 0, avail)
}

func TestPromotion_SeatMapSkipsNothing(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.InitializeEvent(ctx, 1, 12, true))

	a1, err := svc.Book(ctx, 1, 10, 0, []string{"A1"})
	require.NoError(t, err)
	_, err = svc.Book(ctx, 1, 11, 0, []string{"A2"})
	require.NoError(t, err)

	// Head waits on A2 (still taken); a later entry waits on A1.
	headOnA2, err := svc.Book(ctx, 1, 20, 0, []string{"A2"})
	require.NoError(t, err)
	require.Equal(t, domain.BookingWaitlist, headOnA2.Booking.Status)

	wantsA1, err := svc.Book(ctx, 1, 21, 0, []string{"A1"})
	require.NoError(t, err)
	require.Equal(t, domain.BookingWaitlist, wantsA1.Booking.Status)

	// A1 frees, but the head needs A2. The scan stops at the head even
	// though the entry behind it could be satisfied.
	res, err := svc.Cancel(ctx, a1.Booking.ID, 10, false)
	require.NoError(t, err)
	assert.Empty(t, res.Promoted)

	got, err := svc.bookings.Get(wantsA1.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingWaitlist, got.Status)
}

func TestPromotion_RunsWithoutPublisherOrPort(t *testing.T) {
	svc, _, _ := newTestService(t)
	svc.pub = nil
	svc.port = nil
	ctx := context.Background()

	require.NoError(t, svc.InitializeEvent(ctx, 1, 1, false))

	holder, err := svc.Book(ctx, 1, 10, 1, nil)
	require.NoError(t, err)

	waiting, err := svc.Book(ctx, 1, 11, 1, nil)
	require.NoError(t, err)

	res, err := svc.Cancel(ctx, holder.Booking.ID, 10, false)
	require.NoError(t, err)
	require.Len(t, res.Promoted, 1)
	assert.Equal(t, waiting.Booking.ID, res.Promoted[0].ID)
}
