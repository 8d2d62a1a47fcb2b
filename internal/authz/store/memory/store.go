package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"certtrail/internal/authz"
	"certtrail/pkg/platform/sentinel"
)

// InMemory implements authz.CallerStore.
type InMemory struct {
	mu      sync.RWMutex
	callers map[string]authz.RegisteredCaller
}

func New() *InMemory {
	return &InMemory{callers: make(map[string]authz.RegisteredCaller)}
}

func (s *InMemory) CreateIfAbsent(_ context.Context, caller authz.RegisteredCaller) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.callers[caller.ID]; ok {
		return fmt.Errorf("register caller %s: %w", caller.ID, sentinel.ErrConflict)
	}
	s.callers[caller.ID] = caller
	return nil
}

func (s *InMemory) Exists(_ context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.callers[id]
	return ok, nil
}

func (s *InMemory) List(_ context.Context) ([]authz.RegisteredCaller, error) {
	s.mu.RLock()
	out := make([]authz.RegisteredCaller, 0, len(s.callers))
	for _, c := range s.callers {
		out = append(out, c)
	}
	s.mu.RUnlock()
	sortCallers(out)
	return out, nil
}

func sortCallers(callers []authz.RegisteredCaller) {
	sort.Slice(callers, func(i, j int) bool {
		if callers[i].RegisteredAt.Equal(callers[j].RegisteredAt) {
			return callers[i].ID < callers[j].ID
		}
		return callers[i].RegisteredAt.Before(callers[j].RegisteredAt)
	})
}
