// Package redis stores one ledger snapshot per key. Useful when the process
// already depends on Redis and durability beyond it is not required.
package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/okryvyi/seatwave/internal/persist"
)

const ns = "seatwave:v1:ledger"

func key(eventID int64) string {
	return fmt.Sprintf("%s:%d", ns, eventID)
}

type Store struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func (s *Store) Load(ctx context.Context, eventID int64) (persist.Snapshot, error) {
	const op = "persist.redis.Load"

	raw, err := s.rdb.Get(ctx, key(eventID)).Result()
	if err == redis.Nil {
		return persist.Snapshot{}, fmt.Errorf("%s: %w", op, persist.ErrNotFound)
	}
	if err != nil {
		return persist.Snapshot{}, fmt.Errorf("%s: %w", op, err)
	}

	var snap persist.Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return persist.Snapshot{}, fmt.Errorf("%s: %w", op, err)
	}

	return snap, nil
}

func (s *Store) LoadAll(ctx context.Context) ([]persist.Snapshot, error) {
	const op = "persist.redis.LoadAll"

	var out []persist.Snapshot

	iter := s.rdb.Scan(ctx, 0, ns+":*", 100).Iterator()
	for iter.Next(ctx) {
		raw, err := s.rdb.Get(ctx, iter.Val()).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		var snap persist.Snapshot
		if err := json.Unmarshal([]byte(raw), &snap); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, snap)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

func (s *Store) Save(ctx context.Context, snap persist.Snapshot) error {
	const op = "persist.redis.Save"

	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.rdb.Set(ctx, key(snap.EventID), raw, 0).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
