// Package sqlite is the embedded trail backend for single-node deployments.
// It uses the pure-Go modernc driver and serializes writers on one connection.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"certtrail/internal/trail"
	"certtrail/pkg/platform/sentinel"
)

const schema = `
CREATE TABLE IF NOT EXISTS audit_records (
	seq                INTEGER PRIMARY KEY AUTOINCREMENT,
	id                 TEXT    NOT NULL,
	subject_id         TEXT    NOT NULL,
	action             TEXT    NOT NULL,
	caller_fingerprint TEXT    NOT NULL,
	digest             TEXT    NOT NULL,
	payload            TEXT,
	author_id          TEXT    NOT NULL,
	created_at         INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS audit_records_digest_key ON audit_records (digest);
CREATE INDEX IF NOT EXISTS audit_records_subject_idx ON audit_records (subject_id, seq);
CREATE INDEX IF NOT EXISTS audit_records_action_idx ON audit_records (action, seq);
CREATE INDEX IF NOT EXISTS audit_records_fingerprint_idx ON audit_records (caller_fingerprint, seq);
`

const selectColumns = `id, subject_id, action, caller_fingerprint, digest, payload, author_id, created_at`

// Store implements trail.Store on SQLite. created_at is kept as unix nanoseconds.
type Store struct {
	db    *sql.DB
	clock func() time.Time
}

// Open opens (or creates) the database at path and applies the schema.
// Use ":memory:" for an ephemeral database.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configure sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate audit_records: %w", err)
	}
	return &Store{db: db, clock: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Insert clamps created_at to the newest row's value, read through the
// primary key. The statement runs under SQLite's single writer lock, so seq
// order and created_at order agree even across processes sharing the file.
func (s *Store) Insert(ctx context.Context, rec trail.Record) (*trail.Record, error) {
	if err := trail.ValidateRecord(rec); err != nil {
		return nil, err
	}
	var payload sql.NullString
	if len(rec.Payload) > 0 {
		payload = sql.NullString{String: string(rec.Payload), Valid: true}
	}
	now := s.clock().UTC().UnixNano()
	query := `
		INSERT INTO audit_records (id, subject_id, action, caller_fingerprint, digest, payload, author_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, MAX(?, COALESCE((SELECT created_at FROM audit_records ORDER BY seq DESC LIMIT 1), ?)))
		RETURNING ` + selectColumns
	stored, err := scanRecord(s.db.QueryRowContext(ctx, query,
		rec.ID.String(),
		rec.SubjectID,
		string(rec.Action),
		rec.CallerFingerprint,
		rec.Digest,
		payload,
		rec.AuthorID,
		now, now,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("insert record %s: %w", rec.Digest, sentinel.ErrConflict)
		}
		return nil, fmt.Errorf("insert record: %w", err)
	}
	return stored, nil
}

func (s *Store) FindBySubject(ctx context.Context, subjectID string) ([]trail.Record, error) {
	return s.list(ctx, "find by subject", `WHERE subject_id = ?`, subjectID)
}

func (s *Store) FindByAction(ctx context.Context, action trail.Action) ([]trail.Record, error) {
	return s.list(ctx, "find by action", `WHERE action = ?`, string(action))
}

func (s *Store) FindByFingerprint(ctx context.Context, fingerprint string) ([]trail.Record, error) {
	return s.list(ctx, "find by fingerprint", `WHERE caller_fingerprint = ?`, fingerprint)
}

func (s *Store) FindByDigest(ctx context.Context, digest string) (*trail.Record, error) {
	query := `SELECT ` + selectColumns + ` FROM audit_records WHERE digest = ?`
	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, digest))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
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
	rows, err := s.db.QueryContext(ctx, query, args...)
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

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*trail.Record, error) {
	var (
		rec       trail.Record
		id        string
		action    string
		payload   sql.NullString
		createdAt int64
	)
	if err := row.Scan(&id, &rec.SubjectID, &action, &rec.CallerFingerprint, &rec.Digest, &payload, &rec.AuthorID, &createdAt); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse record id: %w", err)
	}
	rec.ID = parsed
	rec.Action = trail.Action(action)
	if payload.Valid {
		rec.Payload = json.RawMessage(payload.String)
	}
	rec.CreatedAt = time.Unix(0, createdAt).UTC()
	return &rec, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT
	}
	return false
}
