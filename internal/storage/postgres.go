package storage

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps the blob in a single jsonb row. The ledger is a
// single-writer whole-blob store, so one row is the honest schema.
type PostgresStore struct {
	Pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{Pool: pool}
}

// EnsureSchema creates the state table if missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS bot_state (
			id   smallint PRIMARY KEY CHECK (id = 1),
			data jsonb NOT NULL
		)`)
	return err
}

func (s *PostgresStore) Load(ctx context.Context) (*Data, error) {
	var raw []byte
	err := s.Pool.QueryRow(ctx, `SELECT data FROM bot_state WHERE id = 1`).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return NewData(), nil
	}
	if err != nil {
		return nil, err
	}
	d := NewData()
	if err := json.Unmarshal(raw, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *PostgresStore) Save(ctx context.Context, d *Data) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return err
	}
	_, err = s.Pool.Exec(ctx, `
		INSERT INTO bot_state (id, data) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data`, raw)
	return err
}
