// Package notify delivers the core's domain events to the outside world:
// Redis pub/sub for live subscribers and a durable RabbitMQ queue for the
// notification pipeline. Delivery is best-effort; allocation state is already
// committed when a dispatch runs, and a failed publish never rolls it back.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/okryvyi/seatwave/internal/domain"
	redisx "github.com/okryvyi/seatwave/internal/redis"
)

// QueueBookingConfirmed is consumed by the notification workers that send
// email/SMS/calendar invites.
const QueueBookingConfirmed = "booking.confirmed"

type Dispatcher struct {
	pubsub  *redisx.EventsPubSub
	amqpURL string
	logger  *slog.Logger
}

// NewDispatcher wires the outbound channels. Either channel may be absent:
// a nil pubsub or empty amqpURL simply disables that path.
func NewDispatcher(pubsub *redisx.EventsPubSub, amqpURL string, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}

	return &Dispatcher{
		pubsub:  pubsub,
		amqpURL: amqpURL,
		logger:  logger,
	}
}

func (d *Dispatcher) PublishSeatAvailability(ctx context.Context, ev domain.SeatAvailabilityChanged) error {
	if d.pubsub == nil {
		return nil
	}

	if err := d.pubsub.PublishSeatAvailability(ctx, ev); err != nil {
		d.logger.Warn("seat availability publish failed", "event_id", ev.EventID, "error", err)
		return err
	}

	return nil
}

func (d *Dispatcher) PublishBookingConfirmed(ctx context.Context, ev domain.BookingConfirmedEvent) error {
	if d.pubsub != nil {
		if err := d.pubsub.PublishBookingConfirmed(ctx, ev); err != nil {
			d.logger.Warn("booking confirmed publish failed", "booking_id", ev.BookingID, "error", err)
		}
	}

	if d.amqpURL == "" {
		return nil
	}

	if err := d.publishAMQP(ctx, ev); err != nil {
		d.logger.Warn("booking confirmed queue publish failed", "booking_id", ev.BookingID, "error", err)
		return err
	}

	return nil
}

func (d *Dispatcher) publishAMQP(ctx context.Context, ev domain.BookingConfirmedEvent) error {
	const op = "notify.publishAMQP"

	conn, err := amqp.Dial(d.amqpURL)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = ch.Close() }()

	// Idempotent declare; durable so confirmations survive broker restarts.
	if _, err := ch.QueueDeclare(QueueBookingConfirmed, true, false, false, false, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	if err := ch.PublishWithContext(ctx, "", QueueBookingConfirmed, false, false, pub); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
