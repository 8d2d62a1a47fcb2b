package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"certtrail/internal/authz"
	"certtrail/internal/engine"
	"certtrail/internal/hashbind"
	"certtrail/internal/identity"
	"certtrail/internal/platform/config"
	"certtrail/internal/platform/httpserver"
	"certtrail/internal/platform/logger"
	"certtrail/internal/platform/metrics"
	httptransport "certtrail/internal/transport/http"
)

// main wires dependencies and keeps the server lifecycle small. Business
// logic lives in the internal packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	m := metrics.New()

	algorithm, err := hashbind.ParseAlgorithm(cfg.HashAlgorithm)
	if err != nil {
		return err
	}
	binder := hashbind.New(algorithm)

	infra, err := openInfra(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer infra.Close()

	gate, err := authz.New(cfg.ControllerID, infra.callers, authz.WithLogger(log), authz.WithMetrics(m))
	if err != nil {
		return err
	}
	if cfg.BootstrapID != "" {
		if err := gate.Bootstrap(ctx, cfg.BootstrapID); err != nil {
			return err
		}
		log.InfoContext(ctx, "bootstrap service registered", "service_id", cfg.BootstrapID)
	}

	engineOpts := []engine.Option{
		engine.WithLogger(log),
		engine.WithMetrics(m),
		engine.WithReadRetry(cfg.ReadRetries, 50*time.Millisecond),
		engine.WithMaxPayloadBytes(cfg.MaxPayloadBytes),
	}
	if infra.publisher != nil {
		engineOpts = append(engineOpts, engine.WithPublisher(infra.publisher))
	}
	svc := engine.New(infra.records, gate, binder, engineOpts...)

	sweeper := engine.NewIntegritySweeper(infra.records, binder,
		engine.WithSweepLogger(log), engine.WithSweepMetrics(m))
	if err := sweeper.Start(cfg.SweepSchedule); err != nil {
		return err
	}

	mode, _ := identity.ParseMode(cfg.CertMode)
	extractor, err := identity.New(mode, identity.WithDevelopment(cfg.IsDevelopment()), identity.WithLogger(log))
	if err != nil {
		return err
	}

	callerOf := httptransport.FingerprintCaller
	if cfg.CallerSource == config.CallerSourceService {
		callerOf = httptransport.ServiceCaller(cfg.ServiceID)
	}
	router := httptransport.NewRouter(httptransport.RouterConfig{
		Handler:      httptransport.NewHandler(svc, log, callerOf),
		Extractor:    extractor,
		Logger:       log,
		Metrics:      m,
		MaxBodyBytes: int64(cfg.MaxPayloadBytes) + 4<<10,
	})

	srv := httpserver.New(cfg.Addr, router)
	useTLS := mode == identity.ModeDirect
	if useTLS {
		tlsCfg, err := httpserver.TLSConfig(cfg.TLS)
		if err != nil {
			return err
		}
		srv.TLSConfig = tlsCfg
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.InfoContext(ctx, "starting certtrail",
			"addr", cfg.Addr,
			"cert_mode", mode,
			"caller_source", cfg.CallerSource,
			"store_backend", cfg.StoreBackend,
			"hash_algorithm", binder.Algorithm(),
		)
		var err error
		if useTLS {
			err = srv.ListenAndServeTLS(cfg.TLS.CertPath, cfg.TLS.KeyPath)
		} else {
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		sweeper.Stop(shutdownCtx)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		log.Info("server shut down")
		return nil
	})
	return g.Wait()
}
