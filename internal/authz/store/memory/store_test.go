package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"certtrail/internal/authz"
	"certtrail/pkg/platform/sentinel"
)

type CallerStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func TestCallerStoreSuite(t *testing.T) {
	suite.Run(t, new(CallerStoreSuite))
}

func (s *CallerStoreSuite) SetupTest() {
	s.store = New()
	s.ctx = context.Background()
}

func (s *CallerStoreSuite) TestCreateIfAbsent() {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.Require().NoError(s.store.CreateIfAbsent(s.ctx, authz.RegisteredCaller{ID: "svc-b", RegisteredAt: now}))
	s.Require().NoError(s.store.CreateIfAbsent(s.ctx, authz.RegisteredCaller{ID: "svc-a", RegisteredAt: now.Add(time.Second)}))

	err := s.store.CreateIfAbsent(s.ctx, authz.RegisteredCaller{ID: "svc-b", RegisteredAt: now})
	s.ErrorIs(err, sentinel.ErrConflict)

	ok, err := s.store.Exists(s.ctx, "svc-a")
	s.Require().NoError(err)
	s.True(ok)

	ok, err = s.store.Exists(s.ctx, "svc-z")
	s.Require().NoError(err)
	s.False(ok)

	callers, err := s.store.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(callers, 2)
	s.Equal("svc-b", callers[0].ID)
	s.Equal("svc-a", callers[1].ID)
}

func (s *CallerStoreSuite) TestConcurrentRegistration() {
	const goroutines = 50
	var wg sync.WaitGroup
	var successCount, conflictCount atomic.Int32
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.CreateIfAbsent(s.ctx, authz.RegisteredCaller{ID: "svc-race", RegisteredAt: time.Now()})
			if err == nil {
				successCount.Add(1)
			} else if errors.Is(err, sentinel.ErrConflict) {
				conflictCount.Add(1)
			}
		}()
	}
	wg.Wait()
	s.Equal(int32(1), successCount.Load())
	s.Equal(int32(goroutines-1), conflictCount.Load())
}
