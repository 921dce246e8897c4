package domain

import "time"

type BookingStatus string

const (
	BookingConfirmed BookingStatus = "confirmed"
	BookingWaitlist  BookingStatus = "waitlist"
	BookingCancelled BookingStatus = "cancelled"
)

// Active reports whether the status counts toward the one-active-booking-per-user
// rule. Cancelled is terminal and never counts.
func (s BookingStatus) Active() bool {
	return s == BookingConfirmed || s == BookingWaitlist
}

type SeatStatus string

const (
	SeatFree   SeatStatus = "free"
	SeatBooked SeatStatus = "booked"
)

type Seat struct {
	Label    string
	Row      string
	Position int
	Price    int
	// BookingID is the booking currently holding the seat, 0 when free.
	BookingID int64
}

type SeatView struct {
	Label    string     `json:"label"`
	Row      string     `json:"row"`
	Position int        `json:"position"`
	Price    int        `json:"price"`
	Status   SeatStatus `json:"status"`
}

type Booking struct {
	ID      int64         `json:"id"`
	UserID  int64         `json:"user_id"`
	EventID int64         `json:"event_id"`
	Status  BookingStatus `json:"status"`
	// SeatLabels are the seats held by a confirmed seat-map booking.
	SeatLabels []string `json:"seat_labels,omitempty"`
	// RequestedSeats are the labels a waitlisted seat-map booking is queued for.
	RequestedSeats []string `json:"requested_seats,omitempty"`
	SeatCount      int      `json:"seat_count"`
	// TotalPrice is the sum of per-seat prices, zero for bulk-count bookings.
	TotalPrice       int       `json:"total_price"`
	ConfirmationCode string    `json:"confirmation_code"`
	CreatedAt        time.Time `json:"created_at"`
}

type Availability struct {
	EventID   int64 `json:"event_id"`
	Capacity  int   `json:"capacity"`
	Occupied  int   `json:"occupied"`
	Available int   `json:"available"`
}
