package redis

import "fmt"

const ns = "seatwave:v1"

func KeyEventAvailability(eventID int64) string {
	return fmt.Sprintf("%s:event:%d:availability", ns, eventID)
}

func KeyEventSeatMap(eventID int64) string {
	return fmt.Sprintf("%s:event:%d:seatmap", ns, eventID)
}

func KeyIdemBooking(userID int64, idemKey string) string {
	return fmt.Sprintf("%s:idem:bookings:%d:%s", ns, userID, idemKey)
}

func ChannelSeatUpdates() string {
	return ns + ":seats:changed"
}

func ChannelBookingConfirmed() string {
	return ns + ":bookings:confirmed"
}
