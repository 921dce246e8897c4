package persist

import (
	"context"
	"sync"
)

// Memory is the in-process Port used by tests and by deployments that accept
// losing ledgers on restart.
type Memory struct {
	mu    sync.RWMutex
	snaps map[int64]Snapshot
}

func NewMemory() *Memory {
	return &Memory{snaps: make(map[int64]Snapshot)}
}

func (m *Memory) Load(_ context.Context, eventID int64) (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap, ok := m.snaps[eventID]
	if !ok {
		return Snapshot{}, ErrNotFound
	}

	return cloneSnapshot(snap), nil
}

func (m *Memory) LoadAll(_ context.Context) ([]Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Snapshot, 0, len(m.snaps))
	for _, snap := range m.snaps {
		out = append(out, cloneSnapshot(snap))
	}

	return out, nil
}

func (m *Memory) Save(_ context.Context, snap Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.snaps[snap.EventID] = cloneSnapshot(snap)

	return nil
}

func cloneSnapshot(snap Snapshot) Snapshot {
	if snap.Seats == nil {
		return snap
	}

	seats := make(map[string]SeatState, len(snap.Seats))
	for k, v := range snap.Seats {
		seats[k] = v
	}
	snap.Seats = seats

	return snap
}
