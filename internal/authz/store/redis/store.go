// Package redis keeps the registered caller set in a single Redis hash.
// HSETNX gives atomic create-if-absent without a read-modify-write.
package redis

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"certtrail/internal/authz"
	"certtrail/pkg/platform/sentinel"
)

const DefaultKey = "certtrail:callers"

// RedisStore implements authz.CallerStore. Field = caller ID, value =
// registration time in RFC 3339.
type RedisStore struct {
	client redis.Cmdable
	key    string
}

func New(client redis.Cmdable, key string) *RedisStore {
	if key == "" {
		key = DefaultKey
	}
	return &RedisStore{client: client, key: key}
}

func (s *RedisStore) CreateIfAbsent(ctx context.Context, caller authz.RegisteredCaller) error {
	set, err := s.client.HSetNX(ctx, s.key, caller.ID, caller.RegisteredAt.UTC().Format(time.RFC3339Nano)).Result()
	if err != nil {
		return fmt.Errorf("register caller: %w: %v", sentinel.ErrUnavailable, err)
	}
	if !set {
		return fmt.Errorf("register caller %s: %w", caller.ID, sentinel.ErrConflict)
	}
	return nil
}

func (s *RedisStore) Exists(ctx context.Context, id string) (bool, error) {
	ok, err := s.client.HExists(ctx, s.key, id).Result()
	if err != nil {
		return false, fmt.Errorf("lookup caller: %w: %v", sentinel.ErrUnavailable, err)
	}
	return ok, nil
}

func (s *RedisStore) List(ctx context.Context) ([]authz.RegisteredCaller, error) {
	entries, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("list callers: %w: %v", sentinel.ErrUnavailable, err)
	}
	out := make([]authz.RegisteredCaller, 0, len(entries))
	for id, raw := range entries {
		at, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("decode caller %s: %w", id, err)
		}
		out = append(out, authz.RegisteredCaller{ID: id, RegisteredAt: at})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RegisteredAt.Equal(out[j].RegisteredAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].RegisteredAt.Before(out[j].RegisteredAt)
	})
	return out, nil
}
