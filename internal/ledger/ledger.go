// Package ledger owns per-event seat inventory: capacity, per-seat occupancy
// and per-seat pricing. Each method is individually atomic; composite
// check-then-act sequences (book, cancel, promote) are serialized per event
// by the allocation service, not here.
package ledger

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/okryvyi/seatwave/internal/domain"
	"github.com/okryvyi/seatwave/internal/persist"
)

type Ledger struct {
	mu     sync.RWMutex
	events map[int64]*inventory
	logger *slog.Logger
}

type inventory struct {
	capacity int
	// seats is nil for bulk-count events.
	seats map[string]*domain.Seat
	// occupied tracks bulk-count occupancy. For seat-map events the occupied
	// count is always derived from seat ownership, never stored.
	occupied int
}

func (inv *inventory) seatMapMode() bool { return inv.seats != nil }

func (inv *inventory) occupiedCount() int {
	if inv.seats == nil {
		return inv.occupied
	}

	n := 0
	for _, s := range inv.seats {
		if s.BookingID != 0 {
			n++
		}
	}

	return n
}

func New(logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}

	return &Ledger{
		events: make(map[int64]*inventory),
		logger: logger,
	}
}

// Initialize creates the ledger for an event. It is idempotent: if the event
// already has a ledger, existing occupancy is left untouched and false is
// returned. The generated seat map is a pure function of the capacity, so
// re-initialization can never produce a divergent layout.
func (l *Ledger) Initialize(eventID int64, capacity int, seatMap bool) (bool, error) {
	if capacity < 1 {
		return false, ErrInvalidCapacity
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.events[eventID]; ok {
		return false, nil
	}

	inv := &inventory{capacity: capacity}
	if seatMap {
		inv.seats = generateLayout(capacity)
	}

	l.events[eventID] = inv

	return true, nil
}

// Resize changes an event's capacity. Growing is always allowed; shrinking is
// allowed only down to the currently occupied count. For seat-map events the
// layout is regenerated for the new capacity and existing seat ownership is
// carried over; an occupied seat that would fall off the end blocks the
// shrink.
func (l *Ledger) Resize(eventID int64, capacity int) error {
	if capacity < 1 {
		return ErrInvalidCapacity
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	inv, ok := l.events[eventID]
	if !ok {
		return ErrUnknownEvent
	}

	if !inv.seatMapMode() {
		if capacity < inv.occupied {
			return ErrCapacityBelowOccupied
		}
		inv.capacity = capacity
		return nil
	}

	next := generateLayout(capacity)
	for label, s := range inv.seats {
		if s.BookingID == 0 {
			continue
		}
		ns, found := next[label]
		if !found {
			return ErrCapacityBelowOccupied
		}
		ns.BookingID = s.BookingID
	}

	inv.seats = next
	inv.capacity = capacity

	return nil
}

// SeatMapMode reports whether the event books by named seats.
func (l *Ledger) SeatMapMode(eventID int64) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	inv, ok := l.events[eventID]
	if !ok {
		return false, ErrUnknownEvent
	}

	return inv.seatMapMode(), nil
}

// OccupySeats atomically grants all the given labels to a booking. If any
// label is unknown or already held, nothing is granted and the returned
// UnavailableSeatsError names the offending labels.
func (l *Ledger) OccupySeats(eventID int64, labels []string, bookingID int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	inv, ok := l.events[eventID]
	if !ok {
		return ErrUnknownEvent
	}

	if !inv.seatMapMode() {
		return &UnavailableSeatsError{Labels: append([]string(nil), labels...)}
	}

	var unavailable []string
	for _, label := range labels {
		s, found := inv.seats[label]
		if !found || s.BookingID != 0 {
			unavailable = append(unavailable, label)
		}
	}

	if len(unavailable) > 0 {
		return &UnavailableSeatsError{Labels: unavailable}
	}

	for _, label := range labels {
		inv.seats[label].BookingID = bookingID
	}

	return nil
}

// OccupyCount atomically grants n free units to a booking. For seat-map
// events the n cheapest-ordered free seats (front rows first) are granted and
// their labels returned; for bulk-count events only the counter moves and the
// returned slice is nil. Nothing is granted if fewer than n units are free.
func (l *Ledger) OccupyCount(eventID int64, n int, bookingID int64) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	inv, ok := l.events[eventID]
	if !ok {
		return nil, ErrUnknownEvent
	}

	free := inv.capacity - inv.occupiedCount()
	if free < n {
		return nil, &NoCapacityError{Requested: n, Available: free}
	}

	if !inv.seatMapMode() {
		inv.occupied += n
		return nil, nil
	}

	candidates := make([]*domain.Seat, 0, free)
	for _, s := range inv.seats {
		if s.BookingID == 0 {
			candidates = append(candidates, s)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return seatLess(candidates[i], candidates[j])
	})

	granted := make([]string, 0, n)
	for _, s := range candidates[:n] {
		s.BookingID = bookingID
		granted = append(granted, s.Label)
	}

	return granted, nil
}

// ReleaseSeats frees the given labels. Labels that are unknown or not held
// are skipped, logged, and reported through NotOccupiedError; every label
// that IS held is still released (best-effort batch).
func (l *Ledger) ReleaseSeats(eventID int64, labels []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	inv, ok := l.events[eventID]
	if !ok {
		return ErrUnknownEvent
	}

	var notHeld []string
	for _, label := range labels {
		s, found := inv.seats[label]
		if !found || s.BookingID == 0 {
			notHeld = append(notHeld, label)
			continue
		}
		s.BookingID = 0
	}

	if len(notHeld) > 0 {
		l.logger.Warn("release of seats that were not occupied",
			"event_id", eventID,
			"labels", notHeld,
		)
		return &NotOccupiedError{Labels: notHeld}
	}

	return nil
}

// ReleaseCount frees n bulk units. Releasing more than is occupied frees what
// is held and reports the excess through NotOccupiedError.
func (l *Ledger) ReleaseCount(eventID int64, n int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	inv, ok := l.events[eventID]
	if !ok {
		return ErrUnknownEvent
	}

	freed := n
	if freed > inv.occupied {
		freed = inv.occupied
	}
	inv.occupied -= freed

	if freed < n {
		l.logger.Warn("release of units that were not occupied",
			"event_id", eventID,
			"excess", n-freed,
		)
		return &NotOccupiedError{Count: n - freed}
	}

	return nil
}

// Availability returns the current free-unit count, always derived from
// occupancy.
func (l *Ledger) Availability(eventID int64) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	inv, ok := l.events[eventID]
	if !ok {
		return 0, ErrUnknownEvent
	}

	return inv.capacity - inv.occupiedCount(), nil
}

// Counts returns capacity, occupied and available in one consistent read.
func (l *Ledger) Counts(eventID int64) (domain.Availability, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	inv, ok := l.events[eventID]
	if !ok {
		return domain.Availability{}, ErrUnknownEvent
	}

	occupied := inv.occupiedCount()

	return domain.Availability{
		EventID:   eventID,
		Capacity:  inv.capacity,
		Occupied:  occupied,
		Available: inv.capacity - occupied,
	}, nil
}

// PriceOf returns the immutable price class assigned to a seat at layout
// generation.
func (l *Ledger) PriceOf(eventID int64, label string) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	inv, ok := l.events[eventID]
	if !ok {
		return 0, ErrUnknownEvent
	}

	s, found := inv.seats[label]
	if !found {
		return 0, ErrUnknownSeat
	}

	return s.Price, nil
}

// PriceSum totals the prices of the given labels.
func (l *Ledger) PriceSum(eventID int64, labels []string) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	inv, ok := l.events[eventID]
	if !ok {
		return 0, ErrUnknownEvent
	}

	total := 0
	for _, label := range labels {
		s, found := inv.seats[label]
		if !found {
			return 0, ErrUnknownSeat
		}
		total += s.Price
	}

	return total, nil
}

// UnknownLabels returns the labels that are not part of the event's layout.
func (l *Ledger) UnknownLabels(eventID int64, labels []string) ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	inv, ok := l.events[eventID]
	if !ok {
		return nil, ErrUnknownEvent
	}

	var unknown []string
	for _, label := range labels {
		if _, found := inv.seats[label]; !found {
			unknown = append(unknown, label)
		}
	}

	return unknown, nil
}

// OccupiedLabels returns the labels currently held, sorted front to back.
// Nil for bulk-count events.
func (l *Ledger) OccupiedLabels(eventID int64) ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	inv, ok := l.events[eventID]
	if !ok {
		return nil, ErrUnknownEvent
	}

	if !inv.seatMapMode() {
		return nil, nil
	}

	occupied := make([]*domain.Seat, 0)
	for _, s := range inv.seats {
		if s.BookingID != 0 {
			occupied = append(occupied, s)
		}
	}
	sort.Slice(occupied, func(i, j int) bool {
		return seatLess(occupied[i], occupied[j])
	})

	labels := make([]string, len(occupied))
	for i, s := range occupied {
		labels[i] = s.Label
	}

	return labels, nil
}

// SeatViews returns a point-in-time copy of the seat map, sorted front to
// back, for read-only presentation. Bulk-count events have no seat map and
// return ErrNoSeatMap.
func (l *Ledger) SeatViews(eventID int64) ([]domain.SeatView, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	inv, ok := l.events[eventID]
	if !ok {
		return nil, ErrUnknownEvent
	}

	if !inv.seatMapMode() {
		return nil, ErrNoSeatMap
	}

	views := make([]domain.SeatView, 0, len(inv.seats))
	for _, s := range inv.seats {
		status := domain.SeatFree
		if s.BookingID != 0 {
			status = domain.SeatBooked
		}
		views = append(views, domain.SeatView{
			Label:    s.Label,
			Row:      s.Row,
			Position: s.Position,
			Price:    s.Price,
			Status:   status,
		})
	}
	sort.Slice(views, func(i, j int) bool {
		return rowPosLess(views[i].Row, views[i].Position, views[j].Row, views[j].Position)
	})

	return views, nil
}

// Export captures the event's ledger for the persistence port.
func (l *Ledger) Export(eventID int64) (persist.Snapshot, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	inv, ok := l.events[eventID]
	if !ok {
		return persist.Snapshot{}, ErrUnknownEvent
	}

	snap := persist.Snapshot{
		EventID:   eventID,
		Capacity:  inv.capacity,
		Occupied:  inv.occupiedCount(),
		UpdatedAt: time.Now().UTC(),
	}

	if inv.seatMapMode() {
		snap.Seats = make(map[string]persist.SeatState, len(inv.seats))
		for label, s := range inv.seats {
			snap.Seats[label] = persist.SeatState{
				Row:       s.Row,
				Position:  s.Position,
				Price:     s.Price,
				BookingID: s.BookingID,
			}
		}
	}

	return snap, nil
}

// Restore seeds an event's ledger from a persisted snapshot, replacing any
// in-memory state for that event. Used at process start.
func (l *Ledger) Restore(snap persist.Snapshot) error {
	if snap.Capacity < 1 {
		return ErrInvalidCapacity
	}

	inv := &inventory{capacity: snap.Capacity}

	if snap.Seats != nil {
		inv.seats = make(map[string]*domain.Seat, len(snap.Seats))
		for label, s := range snap.Seats {
			inv.seats[label] = &domain.Seat{
				Label:     label,
				Row:       s.Row,
				Position:  s.Position,
				Price:     s.Price,
				BookingID: s.BookingID,
			}
		}
	} else {
		inv.occupied = snap.Occupied
	}

	l.mu.Lock()
	l.events[snap.EventID] = inv
	l.mu.Unlock()

	return nil
}

// Exists reports whether the event has a ledger.
func (l *Ledger) Exists(eventID int64) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	_, ok := l.events[eventID]

	return ok
}

// seatLess orders seats front to back: row A before B, Z before AA, and
// within a row by position.
func seatLess(a, b *domain.Seat) bool {
	return rowPosLess(a.Row, a.Position, b.Row, b.Position)
}

func rowPosLess(rowA string, posA int, rowB string, posB int) bool {
	if rowA != rowB {
		if len(rowA) != len(rowB) {
			return len(rowA) < len(rowB)
		}
		return rowA < rowB
	}

	return posA < posB
}
