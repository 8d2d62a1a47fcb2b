// Package memory is the in-process trail backend. It keeps the primary record
// list plus one index per lookup key under a single lock.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"certtrail/internal/trail"
	"certtrail/pkg/platform/sentinel"
)

// InMemory implements trail.Store.
type InMemory struct {
	mu            sync.RWMutex
	records       []trail.Record
	bySubject     map[string][]int
	byAction      map[trail.Action][]int
	byFingerprint map[string][]int
	byDigest      map[string]int
	clock         func() time.Time
	lastCreatedAt time.Time
}

type Option func(*InMemory)

// WithClock overrides the time source used for CreatedAt.
func WithClock(clock func() time.Time) Option {
	return func(s *InMemory) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func New(opts ...Option) *InMemory {
	s := &InMemory{
		bySubject:     make(map[string][]int),
		byAction:      make(map[trail.Action][]int),
		byFingerprint: make(map[string][]int),
		byDigest:      make(map[string]int),
		clock:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Insert checks digest uniqueness and appends under the same write lock.
func (s *InMemory) Insert(_ context.Context, rec trail.Record) (*trail.Record, error) {
	if err := trail.ValidateRecord(rec); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byDigest[rec.Digest]; exists {
		return nil, fmt.Errorf("insert record %s: %w", rec.Digest, sentinel.ErrConflict)
	}

	now := s.clock().UTC()
	if now.Before(s.lastCreatedAt) {
		now = s.lastCreatedAt
	}
	s.lastCreatedAt = now

	stored := rec.Clone()
	stored.CreatedAt = now

	idx := len(s.records)
	s.records = append(s.records, stored)
	s.bySubject[stored.SubjectID] = append(s.bySubject[stored.SubjectID], idx)
	s.byAction[stored.Action] = append(s.byAction[stored.Action], idx)
	s.byFingerprint[stored.CallerFingerprint] = append(s.byFingerprint[stored.CallerFingerprint], idx)
	s.byDigest[stored.Digest] = idx

	out := stored.Clone()
	return &out, nil
}

func (s *InMemory) FindBySubject(_ context.Context, subjectID string) ([]trail.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(s.bySubject[subjectID]), nil
}

func (s *InMemory) FindByAction(_ context.Context, action trail.Action) ([]trail.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(s.byAction[action]), nil
}

func (s *InMemory) FindByFingerprint(_ context.Context, fingerprint string) ([]trail.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(s.byFingerprint[fingerprint]), nil
}

func (s *InMemory) FindByDigest(_ context.Context, digest string) (*trail.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.byDigest[digest]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	rec := s.records[idx].Clone()
	return &rec, nil
}

func (s *InMemory) All(_ context.Context) ([]trail.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]trail.Record, len(s.records))
	for i, rec := range s.records {
		out[i] = rec.Clone()
	}
	return out, nil
}

// collect must be called with the lock held.
func (s *InMemory) collect(positions []int) []trail.Record {
	out := make([]trail.Record, 0, len(positions))
	for _, idx := range positions {
		out = append(out, s.records[idx].Clone())
	}
	return out
}
