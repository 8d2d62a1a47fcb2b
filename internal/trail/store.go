package trail

import (
	"context"
)

// Store is the append-only record store. Implementations guarantee that the
// digest uniqueness check and the write are atomic: among concurrent inserts
// sharing a digest exactly one succeeds and the rest fail with
// sentinel.ErrConflict. Reads return records in insertion order, oldest first.
//
// The store has no notion of caller identity; authorization happens upstream.
// It checks only the digest's shape, never its binding: callers must set
// Digest to hashbind.Binder.Bind(SubjectID, Action, CallerFingerprint)
// before Insert. engine.Service.Register is the only writer that does so.
type Store interface {
	// Insert validates and appends rec, assigning CreatedAt. The returned
	// record is the stored copy.
	Insert(ctx context.Context, rec Record) (*Record, error)
	FindBySubject(ctx context.Context, subjectID string) ([]Record, error)
	FindByAction(ctx context.Context, action Action) ([]Record, error)
	FindByFingerprint(ctx context.Context, fingerprint string) ([]Record, error)
	// FindByDigest returns sentinel.ErrNotFound when no record carries digest.
	FindByDigest(ctx context.Context, digest string) (*Record, error)
	All(ctx context.Context) ([]Record, error)
}

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 100
)

// Page slices records for list endpoints. limit is clamped to [1, MaxPageLimit]
// with DefaultPageLimit for zero; a negative offset is treated as zero.
func Page(records []Record, limit, offset int) []Record {
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(records) {
		return []Record{}
	}
	end := offset + limit
	if end > len(records) {
		end = len(records)
	}
	return records[offset:end]
}
