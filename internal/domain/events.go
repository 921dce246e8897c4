package domain

// SeatAvailabilityChanged is published whenever an event's free-unit count
// moves: a booking confirmed, a booking cancelled, a waitlist promotion, or
// a capacity resize.
type SeatAvailabilityChanged struct {
	EventID        int64    `json:"event_id"`
	AvailableSeats int      `json:"available_seats"`
	OccupiedLabels []string `json:"occupied_labels,omitempty"`
	TsUnix         int64    `json:"ts_unix"`
}

// BookingConfirmedEvent is published when a booking reaches confirmed status,
// either directly or through waitlist promotion. It carries enough for
// downstream consumers (live clients, notification dispatch) to act without
// querying the core.
type BookingConfirmedEvent struct {
	BookingID        int64    `json:"booking_id"`
	EventID          int64    `json:"event_id"`
	UserID           int64    `json:"user_id"`
	SeatLabels       []string `json:"seat_labels,omitempty"`
	SeatCount        int      `json:"seat_count"`
	ConfirmationCode string   `json:"confirmation_code"`
	TsUnix           int64    `json:"ts_unix"`
}
