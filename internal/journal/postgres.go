package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists the pending-work journal in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS pending_jobs (
			id TEXT PRIMARY KEY,
			call_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			in_path TEXT NOT NULL,
			out_path TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_pending_jobs_created ON pending_jobs (created_at);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) SavePending(ctx context.Context, entry Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO pending_jobs (id, call_id, kind, in_path, out_path, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO NOTHING`,
		entry.ID,
		entry.CallID,
		entry.Kind,
		entry.InPath,
		entry.OutPath,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save pending job: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeletePending(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM pending_jobs WHERE id=$1`, id); err != nil {
		return fmt.Errorf("delete pending job: %w", err)
	}
	return nil
}

// ListPending returns entries oldest first so replay preserves the original
// enqueue order.
func (s *PostgresStore) ListPending(ctx context.Context) ([]Entry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, call_id, kind, in_path, out_path, created_at
		 FROM pending_jobs ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("query pending jobs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.CallID, &e.Kind, &e.InPath, &e.OutPath, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan pending job: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending jobs: %w", err)
	}
	return entries, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
