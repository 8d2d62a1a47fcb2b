package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"

	"certtrail/internal/authz"
	authzmemory "certtrail/internal/authz/store/memory"
	authzpostgres "certtrail/internal/authz/store/postgres"
	authzredis "certtrail/internal/authz/store/redis"
	"certtrail/internal/platform/config"
	"certtrail/internal/platform/kafka"
	"certtrail/internal/platform/redis"
	"certtrail/internal/trail"
	trailmemory "certtrail/internal/trail/store/memory"
	trailpostgres "certtrail/internal/trail/store/postgres"
	trailsqlite "certtrail/internal/trail/store/sqlite"
	"certtrail/pkg/platform/circuit"
)

// infra owns every external resource so shutdown releases them in one place.
type infra struct {
	records   trail.Store
	callers   authz.CallerStore
	publisher *kafka.GuardedPublisher

	closers []func()
}

func (i *infra) Close() {
	for j := len(i.closers) - 1; j >= 0; j-- {
		i.closers[j]()
	}
}

func openInfra(ctx context.Context, cfg config.Server, log *slog.Logger) (*infra, error) {
	in := &infra{}
	if err := in.openStores(ctx, cfg, log); err != nil {
		in.Close()
		return nil, err
	}
	if err := in.openCallerCache(ctx, cfg, log); err != nil {
		in.Close()
		return nil, err
	}
	if err := in.openPublisher(ctx, cfg, log); err != nil {
		in.Close()
		return nil, err
	}
	return in, nil
}

func (i *infra) openStores(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		i.closers = append(i.closers, pool.Close)
		if err := pool.Ping(ctx); err != nil {
			return fmt.Errorf("ping postgres: %w", err)
		}
		records := trailpostgres.New(pool)
		if err := records.Migrate(ctx); err != nil {
			return err
		}

		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		i.closers = append(i.closers, func() { _ = db.Close() })
		callers := authzpostgres.NewPostgres(db)
		if err := callers.Migrate(ctx); err != nil {
			return err
		}
		i.records, i.callers = records, callers
		log.InfoContext(ctx, "using postgres stores")

	case config.BackendSQLite:
		records, err := trailsqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return err
		}
		i.closers = append(i.closers, func() { _ = records.Close() })
		i.records, i.callers = records, authzmemory.New()
		log.InfoContext(ctx, "using sqlite trail store", "path", cfg.SQLitePath)

	default:
		i.records, i.callers = trailmemory.New(), authzmemory.New()
		log.WarnContext(ctx, "using in-memory stores; the trail is lost on restart")
	}
	return nil
}

// openCallerCache moves the caller registry to Redis when configured, so
// several instances share one registry.
func (i *infra) openCallerCache(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	client, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if client == nil {
		return nil
	}
	i.closers = append(i.closers, func() { _ = client.Close() })
	i.callers = authzredis.New(client, authzredis.DefaultKey)
	log.InfoContext(ctx, "using redis caller registry")
	return nil
}

func (i *infra) openPublisher(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil
	}
	pub, err := kafka.NewPublisher(cfg.Kafka)
	if err != nil {
		return err
	}
	i.closers = append(i.closers, pub.Close)
	if err := pub.EnsureTopic(ctx); err != nil {
		return err
	}
	i.publisher = kafka.NewGuardedPublisher(pub, circuit.New("kafka", circuit.WithCooldown(30*time.Second)), log)
	log.InfoContext(ctx, "publishing records", "topic", cfg.Kafka.Topic)
	return nil
}
