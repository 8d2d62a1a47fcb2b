package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"certtrail/internal/authz"
	"certtrail/pkg/platform/sentinel"
)

const Schema = `
CREATE TABLE IF NOT EXISTS registered_callers (
	id            TEXT PRIMARY KEY,
	registered_at TIMESTAMPTZ NOT NULL
);
`

// PostgresStore persists registered callers through database/sql and lib/pq.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("migrate registered_callers: %w", classify(err))
	}
	return nil
}

// CreateIfAbsent inserts in one statement; zero affected rows means the ID
// was already taken.
func (s *PostgresStore) CreateIfAbsent(ctx context.Context, caller authz.RegisteredCaller) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO registered_callers (id, registered_at)
		VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING
	`, caller.ID, caller.RegisteredAt)
	if err != nil {
		return fmt.Errorf("register caller: %w", classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("register caller: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("register caller %s: %w", caller.ID, sentinel.ErrConflict)
	}
	return nil
}

func (s *PostgresStore) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM registered_callers WHERE id = $1)`, id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("lookup caller: %w", classify(err))
	}
	return exists, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]authz.RegisteredCaller, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, registered_at FROM registered_callers ORDER BY registered_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list callers: %w", classify(err))
	}
	defer rows.Close()

	out := []authz.RegisteredCaller{}
	for rows.Next() {
		var c authz.RegisteredCaller
		if err := rows.Scan(&c.ID, &c.RegisteredAt); err != nil {
			return nil, fmt.Errorf("list callers: %w", err)
		}
		c.RegisteredAt = c.RegisteredAt.UTC()
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list callers: %w", err)
	}
	return out, nil
}

// classify marks connection-class failures (SQLSTATE 08xxx) as unavailable.
func classify(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Class() == "08" {
		return fmt.Errorf("%w: %v", sentinel.ErrUnavailable, err)
	}
	return err
}
