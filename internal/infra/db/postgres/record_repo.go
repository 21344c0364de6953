// File: internal/infra/db/postgres/record_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"gemini-chat-gateway/internal/domain"
	"gemini-chat-gateway/internal/domain/ports/repository"
)

var _ repository.RecordRepository = (*RecordRepo)(nil)

// RecordRepo persists session records as one jsonb row per session key.
// Writes are plain upserts; the gateway's contract is last-write-wins.
type RecordRepo struct {
	pool *pgxpool.Pool
}

func NewRecordRepo(pool *pgxpool.Pool) *RecordRepo {
	return &RecordRepo{pool: pool}
}

// Migrate creates the backing table. Called once at startup.
func (r *RecordRepo) Migrate(ctx context.Context) error {
	const q = `
CREATE TABLE IF NOT EXISTS session_records (
  session_key TEXT PRIMARY KEY,
  record      JSONB NOT NULL,
  updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`
	if _, err := r.pool.Exec(ctx, q); err != nil {
		return fmt.Errorf("migrate session_records: %w", err)
	}
	return nil
}

func (r *RecordRepo) Get(ctx context.Context, key string) ([]byte, error) {
	const q = `SELECT record FROM session_records WHERE session_key=$1;`
	var data []byte
	if err := r.pool.QueryRow(ctx, q, key).Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get record: %w", err)
	}
	return data, nil
}

func (r *RecordRepo) Put(ctx context.Context, key string, data []byte) error {
	const q = `
INSERT INTO session_records (session_key, record, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (session_key) DO UPDATE SET
  record = EXCLUDED.record,
  updated_at = NOW();`
	if _, err := r.pool.Exec(ctx, q, key, data); err != nil {
		return fmt.Errorf("put record: %w", err)
	}
	return nil
}
