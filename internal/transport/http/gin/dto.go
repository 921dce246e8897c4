package httpgin

import (
	"time"

	"github.com/okryvyi/seatwave/internal/domain"
)

type CreateBookingRequest struct {
	EventID   int64    `json:"event_id" binding:"required"`
	SeatCount int      `json:"seat_count" binding:"omitempty,gt=0"`
	Seats     []string `json:"seats" binding:"omitempty,min=1,dive,required"`
}

type CreateEventRequest struct {
	EventID  int64 `json:"event_id" binding:"required"`
	Capacity int   `json:"capacity" binding:"required,gt=0"`
	SeatMap  bool  `json:"seat_map"`
}

type ResizeEventRequest struct {
	Capacity int `json:"capacity" binding:"required,gt=0"`
}

type ErrorResponse struct {
	Error string   `json:"error"`
	Seats []string `json:"seats,omitempty"`
}

type BookingResponse struct {
	ID               int64    `json:"id"`
	EventID          int64    `json:"event_id"`
	UserID           int64    `json:"user_id"`
	Status           string   `json:"status"`
	Seats            []string `json:"seats,omitempty"`
	RequestedSeats   []string `json:"requested_seats,omitempty"`
	SeatCount        int      `json:"seat_count"`
	TotalPrice       int      `json:"total_price"`
	ConfirmationCode string   `json:"confirmation_code,omitempty"`
	CreatedAt        string   `json:"created_at"`
}

func toBookingResponse(b domain.Booking) BookingResponse {
	return BookingResponse{
		ID:               b.ID,
		EventID:          b.EventID,
		UserID:           b.UserID,
		Status:           string(b.Status),
		Seats:            b.SeatLabels,
		RequestedSeats:   b.RequestedSeats,
		SeatCount:        b.SeatCount,
		TotalPrice:       b.TotalPrice,
		ConfirmationCode: b.ConfirmationCode,
		CreatedAt:        b.CreatedAt.Format(time.RFC3339),
	}
}

type CreateBookingResponse struct {
	Booking          BookingResponse `json:"booking"`
	UnavailableSeats []string        `json:"unavailable_seats,omitempty"`
}

type CancelBookingResponse struct {
	Booking  BookingResponse   `json:"booking"`
	Promoted []BookingResponse `json:"promoted,omitempty"`
}

type ListBookingsResponse struct {
	Bookings []BookingResponse `json:"bookings"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	Limit    int               `json:"limit"`
}
