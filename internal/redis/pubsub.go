package redis

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/okryvyi/seatwave/internal/domain"
)

// EventsPubSub fans the core's two domain events out to live subscribers
// (websocket gateways, dashboards). Delivery is fire-and-forget; the
// allocation state is already committed by the time anything is published.
type EventsPubSub struct {
	rdb *redis.Client
}

func NewEventsPubSub(rdb *redis.Client) *EventsPubSub {
	return &EventsPubSub{rdb: rdb}
}

func (p *EventsPubSub) PublishSeatAvailability(ctx context.Context, ev domain.SeatAvailabilityChanged) error {
	b, _ := json.Marshal(ev)
	return p.rdb.Publish(ctx, ChannelSeatUpdates(), b).Err()
}

func (p *EventsPubSub) PublishBookingConfirmed(ctx context.Context, ev domain.BookingConfirmedEvent) error {
	b, _ := json.Marshal(ev)
	return p.rdb.Publish(ctx, ChannelBookingConfirmed(), b).Err()
}

// SubscribeSeatUpdates blocks delivering seat-availability messages to the
// handler until ctx is done.
func (p *EventsPubSub) SubscribeSeatUpdates(ctx context.Context, handler func(ctx context.Context, ev domain.SeatAvailabilityChanged)) error {
	sub := p.rdb.Subscribe(ctx, ChannelSeatUpdates())
	defer sub.Close()

	ch := sub.Channel(redis.WithChannelSize(256))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			if ev, ok := decodeSeatUpdate(m.Payload); ok {
				handler(ctx, ev)
			}
		}
	}
}

// decodeSeatUpdate parses a seat-availability payload, dropping malformed
// messages and ones without an event id.
func decodeSeatUpdate(payload string) (domain.SeatAvailabilityChanged, bool) {
	var ev domain.SeatAvailabilityChanged
	if err := json.Unmarshal([]byte(payload), &ev); err != nil || ev.EventID == 0 {
		return domain.SeatAvailabilityChanged{}, false
	}
	return ev, true
}
