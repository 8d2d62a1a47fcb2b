// Package postgres is the PostgreSQL trail backend built on pgx. Digest
// uniqueness is enforced by a unique index, so concurrent duplicate inserts
// resolve inside the database.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"certtrail/internal/trail"
	"certtrail/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

// insertLockKey names the transaction-scoped advisory lock that serializes
// inserts across every connection and instance sharing the database.
const insertLockKey int64 = 0x636572747472

// Schema creates the records table and its lookup indexes. seq fixes the
// insertion order independently of clock resolution. payload is JSON rather
// than JSONB so the stored bytes come back exactly as written.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_records (
	seq                BIGSERIAL PRIMARY KEY,
	id                 UUID        NOT NULL,
	subject_id         TEXT        NOT NULL,
	action             TEXT        NOT NULL,
	caller_fingerprint TEXT        NOT NULL,
	digest             CHAR(64)    NOT NULL,
	payload            JSON,
	author_id          TEXT        NOT NULL,
	created_at         TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS audit_records_digest_key ON audit_records (digest);
CREATE INDEX IF NOT EXISTS audit_records_subject_idx ON audit_records (subject_id, seq);
CREATE INDEX IF NOT EXISTS audit_records_action_idx ON audit_records (action, seq);
CREATE INDEX IF NOT EXISTS audit_records_fingerprint_idx ON audit_records (caller_fingerprint, seq);
ALTER TABLE audit_records ALTER COLUMN payload TYPE JSON USING payload::text::json;
`

const selectColumns = `id, subject_id, action, caller_fingerprint, digest, payload, author_id, created_at`

// DB is the subset of pgxpool.Pool the store needs.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements trail.Store on PostgreSQL.
type Store struct {
	db    DB
	clock func() time.Time
}

func New(db DB) *Store {
	return &Store{db: db, clock: time.Now}
}

// Migrate applies Schema. It is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("migrate audit_records: %w", err)
	}
	return nil
}

// Insert relies on the unique digest index for atomicity. Inserts are
// serialized by an advisory lock held until commit, so seq order and
// created_at order agree: created_at is clamped to the newest row's value,
// read through the primary key rather than a scan.
func (s *Store) Insert(ctx context.Context, rec trail.Record) (stored *trail.Record, err error) {
	if err := trail.ValidateRecord(rec); err != nil {
		return nil, err
	}
	var payload any
	if len(rec.Payload) > 0 {
		payload = string(rec.Payload)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("insert record: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, insertLockKey); err != nil {
		return nil, fmt.Errorf("insert record: lock: %w", err)
	}

	query := `
		INSERT INTO audit_records (id, subject_id, action, caller_fingerprint, digest, payload, author_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6::json, $7,
			GREATEST($8::timestamptz, COALESCE(
				(SELECT created_at FROM audit_records ORDER BY seq DESC LIMIT 1), $8::timestamptz)))
		RETURNING ` + selectColumns
	stored, err = scanRecord(tx.QueryRow(ctx, query,
		rec.ID,
		rec.SubjectID,
		string(rec.Action),
		rec.CallerFingerprint,
		rec.Digest,
		payload,
		rec.AuthorID,
		s.clock().UTC(),
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, fmt.Errorf("insert record %s: %w", rec.Digest, sentinel.ErrConflict)
		}
		return nil, fmt.Errorf("insert record: %w", err)
	}
	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("insert record: commit: %w", err)
	}
	return stored, nil
}

func (s *Store) FindBySubject(ctx context.Context, subjectID string) ([]trail.Record, error) {
	return s.list(ctx, "find by subject", `WHERE subject_id = $1`, subjectID)
}

func (s *Store) FindByAction(ctx context.Context, action trail.Action) ([]trail.Record, error) {
	return s.list(ctx, "find by action", `WHERE action = $1`, string(action))
}

func (s *Store) FindByFingerprint(ctx context.Context, fingerprint string) ([]trail.Record, error) {
	return s.list(ctx, "find by fingerprint", `WHERE caller_fingerprint = $1`, fingerprint)
}

func (s *Store) FindByDigest(ctx context.Context, digest string) (*trail.Record, error) {
	query := `SELECT ` + selectColumns + ` FROM audit_records WHERE digest = $1`
	rec, err := scanRecord(s.db.QueryRow(ctx, query, digest))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find by digest: %w", err)
	}
	return rec, nil
}

func (s *Store) All(ctx context.Context) ([]trail.Record, error) {
	return s.list(ctx, "list all", "")
}

func (s *Store) list(ctx context.Context, op, where string, args ...any) ([]trail.Record, error) {
	query := `SELECT ` + selectColumns + ` FROM audit_records ` + where + ` ORDER BY seq`
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := []trail.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func scanRecord(row pgx.Row) (*trail.Record, error) {
	var (
		rec     trail.Record
		action  string
		payload []byte
	)
	if err := row.Scan(
		&rec.ID,
		&rec.SubjectID,
		&action,
		&rec.CallerFingerprint,
		&rec.Digest,
		&payload,
		&rec.AuthorID,
		&rec.CreatedAt,
	); err != nil {
		return nil, err
	}
	rec.Action = trail.Action(action)
	if len(payload) > 0 {
		rec.Payload = json.RawMessage(payload)
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	return &rec, nil
}
