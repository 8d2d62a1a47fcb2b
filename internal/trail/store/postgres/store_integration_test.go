//go:build integration

package postgres_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"certtrail/internal/hashbind"
	"certtrail/internal/trail"
	"certtrail/internal/trail/store/postgres"
	"certtrail/pkg/platform/sentinel"
	"certtrail/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *postgres.Store
	binder   hashbind.Binder
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = postgres.New(s.postgres.Pool)
	s.Require().NoError(s.store.Migrate(context.Background()))
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "audit_records"))
}

func (s *PostgresStoreSuite) newRecord(subject string, action trail.Action, fingerprint string) trail.Record {
	return trail.Record{
		ID:                uuid.New(),
		SubjectID:         subject,
		Action:            action,
		CallerFingerprint: fingerprint,
		Digest:            s.binder.Bind(subject, string(action), fingerprint),
		AuthorID:          "svc-a",
	}
}

func (s *PostgresStoreSuite) TestInsertAndFind() {
	ctx := context.Background()
	rec := s.newRecord("U1", trail.ActionUpdate, "F1")
	rec.Payload = json.RawMessage(`{"floor":3}`)

	stored, err := s.store.Insert(ctx, rec)
	s.Require().NoError(err)
	s.Equal(rec.ID, stored.ID)
	s.JSONEq(`{"floor":3}`, string(stored.Payload))

	_, err = s.store.Insert(ctx, s.newRecord("U1", trail.ActionUpdate, "F1"))
	s.ErrorIs(err, sentinel.ErrConflict)

	found, err := s.store.FindByDigest(ctx, rec.Digest)
	s.Require().NoError(err)
	s.Equal(trail.ActionUpdate, found.Action)
	s.Equal(stored.CreatedAt, found.CreatedAt)

	_, err = s.store.FindByDigest(ctx, s.binder.Bind("U404", "create", "F1"))
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestSecondaryIndexesKeepInsertionOrder() {
	ctx := context.Background()
	inputs := []trail.Record{
		s.newRecord("U1", trail.ActionCreate, "F1"),
		s.newRecord("U2", trail.ActionCreate, "F2"),
		s.newRecord("U1", trail.ActionDelete, "F2"),
	}
	for _, r := range inputs {
		_, err := s.store.Insert(ctx, r)
		s.Require().NoError(err)
	}

	bySubject, err := s.store.FindBySubject(ctx, "U1")
	s.Require().NoError(err)
	s.Require().Len(bySubject, 2)
	s.Equal(inputs[0].ID, bySubject[0].ID)
	s.Equal(inputs[2].ID, bySubject[1].ID)
	s.Nil(bySubject[0].Payload)

	byAction, err := s.store.FindByAction(ctx, trail.ActionCreate)
	s.Require().NoError(err)
	s.Len(byAction, 2)

	byFingerprint, err := s.store.FindByFingerprint(ctx, "F2")
	s.Require().NoError(err)
	s.Len(byFingerprint, 2)

	all, err := s.store.All(ctx)
	s.Require().NoError(err)
	s.Require().Len(all, 3)
	for i := 1; i < len(all); i++ {
		s.False(all[i].CreatedAt.Before(all[i-1].CreatedAt))
	}
}

// TestConcurrentInsertSameDigest verifies the unique index admits exactly one
// of many racing inserts.
func (s *PostgresStoreSuite) TestConcurrentInsertSameDigest() {
	ctx := context.Background()
	const goroutines = 50

	var wg sync.WaitGroup
	var successCount, conflictCount atomic.Int32
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.Insert(ctx, s.newRecord("U1", trail.ActionUpdate, "F1"))
			if err == nil {
				successCount.Add(1)
			} else if errors.Is(err, sentinel.ErrConflict) {
				conflictCount.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successCount.Load(), "exactly one insert should succeed")
	s.Equal(int32(goroutines-1), conflictCount.Load(), "all others should conflict")
}

func (s *PostgresStoreSuite) TestPayloadBytesRoundTripExactly() {
	ctx := context.Background()
	raw := `{ "z":1,  "a" : [1, 2.50],"a":"dup" }`
	rec := s.newRecord("U1", trail.ActionCreate, "F1")
	rec.Payload = json.RawMessage(raw)

	stored, err := s.store.Insert(ctx, rec)
	s.Require().NoError(err)
	s.Equal(raw, string(stored.Payload))

	found, err := s.store.FindByDigest(ctx, rec.Digest)
	s.Require().NoError(err)
	s.Equal(raw, string(found.Payload))
}

// TestConcurrentInsertsKeepCreatedAtOrdered checks that racing inserts of
// distinct records never produce a created_at older than an earlier seq.
func (s *PostgresStoreSuite) TestConcurrentInsertsKeepCreatedAtOrdered() {
	ctx := context.Background()
	const goroutines = 40

	var wg sync.WaitGroup
	errs := make(chan error, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.store.Insert(ctx, s.newRecord(fmt.Sprintf("U%d", i), trail.ActionCreate, "F1"))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.Require().NoError(err)
	}

	all, err := s.store.All(ctx)
	s.Require().NoError(err)
	s.Require().Len(all, goroutines)
	for i := 1; i < len(all); i++ {
		s.False(all[i].CreatedAt.Before(all[i-1].CreatedAt),
			"record %d created_at %s precedes record %d created_at %s",
			i, all[i].CreatedAt, i-1, all[i-1].CreatedAt)
	}
}
