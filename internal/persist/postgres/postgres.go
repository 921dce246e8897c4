// Package postgres stores ledger snapshots in a single jsonb-backed table.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okryvyi/seatwave/internal/persist"
)

type Config struct {
	DSN      string
	MaxConns int32
}

type Store struct {
	pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS seat_ledgers (
	event_id   BIGINT PRIMARY KEY,
	state      JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

func New(ctx context.Context, cfg Config) (*Store, error) {
	const op = "persist.postgres.New"

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ctxPing, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Load(ctx context.Context, eventID int64) (persist.Snapshot, error) {
	const op = "persist.postgres.Load"

	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT state FROM seat_ledgers WHERE event_id = $1`,
		eventID,
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return persist.Snapshot{}, fmt.Errorf("%s: %w", op, persist.ErrNotFound)
		}
		return persist.Snapshot{}, fmt.Errorf("%s: %w", op, err)
	}

	var snap persist.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return persist.Snapshot{}, fmt.Errorf("%s: %w", op, err)
	}

	return snap, nil
}

func (s *Store) LoadAll(ctx context.Context) ([]persist.Snapshot, error) {
	const op = "persist.postgres.LoadAll"

	rows, err := s.pool.Query(ctx, `SELECT state FROM seat_ledgers ORDER BY event_id`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []persist.Snapshot
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		var snap persist.Snapshot
		if err := json.Unmarshal(raw, &snap); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

func (s *Store) Save(ctx context.Context, snap persist.Snapshot) error {
	const op = "persist.postgres.Save"

	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO seat_ledgers (event_id, state, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (event_id)
		DO UPDATE SET state = EXCLUDED.state, updated_at = now()`,
		snap.EventID, raw,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
