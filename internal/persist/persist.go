// Package persist defines the persistence port for seat ledgers. The core
// stays correct with any implementation behind the port; saves are
// best-effort and never gate in-memory state.
package persist

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("snapshot not found")

// SeatState is the persisted form of a single seat.
type SeatState struct {
	Row       string `json:"row"`
	Position  int    `json:"position"`
	Price     int    `json:"price"`
	BookingID int64  `json:"booking_id,omitempty"`
}

// Snapshot is the persisted form of one event's ledger.
type Snapshot struct {
	EventID  int64 `json:"event_id"`
	Capacity int   `json:"capacity"`
	// Occupied is the unit count held by confirmed bookings. For seat-map
	// events it is derived from Seats and stored for readability only.
	Occupied int `json:"occupied"`
	// Seats is nil for bulk-count events.
	Seats     map[string]SeatState `json:"seats,omitempty"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// Port is implemented by snapshot stores (memory, file, Redis, Postgres).
type Port interface {
	// Load returns the snapshot for one event, or ErrNotFound.
	Load(ctx context.Context, eventID int64) (Snapshot, error)
	// LoadAll returns every stored snapshot, used to warm the ledger at boot.
	LoadAll(ctx context.Context) ([]Snapshot, error)
	// Save stores the snapshot, replacing any previous one for the event.
	Save(ctx context.Context, snap Snapshot) error
}
