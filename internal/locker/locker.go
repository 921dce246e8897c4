// Package locker serializes mutating operations per event. Operations on
// different events proceed in parallel; operations on the same event take an
// exclusive critical section. Side effects that must not run inside the
// section (publishing, persistence flushes) are registered as after-unlock
// hooks and executed once the section is released.
package locker

import (
	"context"
	"sync"
)

// AfterUnlock is a side effect deferred past the critical section. Hooks run
// in registration order, after the lock is released, and only when the
// guarded function returned nil.
type AfterUnlock func(ctx context.Context)

type Keyed struct {
	mu    sync.Mutex
	locks map[int64]*sync.RWMutex
}

func New() *Keyed {
	return &Keyed{locks: make(map[int64]*sync.RWMutex)}
}

func (k *Keyed) get(id int64) *sync.RWMutex {
	k.mu.Lock()
	defer k.mu.Unlock()

	m, ok := k.locks[id]
	if !ok {
		m = &sync.RWMutex{}
		k.locks[id] = m
	}

	return m
}

// Do runs fn inside the event's exclusive section. Hooks registered through
// after run once the section is released, if fn succeeded.
func (k *Keyed) Do(ctx context.Context, id int64, fn func(after func(AfterUnlock)) error) error {
	m := k.get(id)

	var hooks []AfterUnlock

	m.Lock()
	err := fn(func(h AfterUnlock) {
		hooks = append(hooks, h)
	})
	m.Unlock()

	if err != nil {
		return err
	}

	for _, h := range hooks {
		h(ctx)
	}

	return nil
}

// DoRead runs fn inside the event's shared section, so readers never observe
// a torn write but do not block each other.
func (k *Keyed) DoRead(id int64, fn func() error) error {
	m := k.get(id)

	m.RLock()
	defer m.RUnlock()

	return fn()
}
