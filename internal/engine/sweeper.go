package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"certtrail/internal/hashbind"
	"certtrail/internal/platform/metrics"
	"certtrail/internal/trail"
)

// IntegritySweeper periodically re-binds every stored record and reports any
// whose digest no longer matches its own fields.
type IntegritySweeper struct {
	store   trail.Store
	binder  *hashbind.Binder
	logger  *slog.Logger
	metrics *metrics.Metrics
	timeout time.Duration

	mu   sync.Mutex
	cron *cron.Cron
	last *SweepReport
}

type SweeperOption func(*IntegritySweeper)

func WithSweepLogger(logger *slog.Logger) SweeperOption {
	return func(w *IntegritySweeper) {
		w.logger = logger
	}
}

func WithSweepMetrics(m *metrics.Metrics) SweeperOption {
	return func(w *IntegritySweeper) {
		w.metrics = m
	}
}

// WithSweepTimeout bounds a single scheduled sweep.
func WithSweepTimeout(d time.Duration) SweeperOption {
	return func(w *IntegritySweeper) {
		w.timeout = d
	}
}

func NewIntegritySweeper(store trail.Store, binder *hashbind.Binder, opts ...SweeperOption) *IntegritySweeper {
	if binder == nil {
		binder = hashbind.New(hashbind.SHA256)
	}
	w := &IntegritySweeper{store: store, binder: binder, timeout: 5 * time.Minute}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Sweep checks every record once.
func (w *IntegritySweeper) Sweep(ctx context.Context) (*SweepReport, error) {
	start := time.Now()
	records, err := w.store.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load records for sweep: %w", err)
	}

	report := &SweepReport{Checked: len(records)}
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !w.binder.Verify(rec.Fields(), rec.SubjectID, string(rec.Action), rec.CallerFingerprint) {
			report.Mismatches = append(report.Mismatches, rec)
			if w.logger != nil {
				w.logger.ErrorContext(ctx, "trail record digest mismatch",
					"record_id", rec.ID.String(),
					"digest", rec.Digest,
					"subject_id", rec.SubjectID,
				)
			}
		}
	}

	w.metrics.AddIntegrityMismatches(len(report.Mismatches))
	w.metrics.ObserveSweepDuration(time.Since(start).Seconds())

	w.mu.Lock()
	w.last = report
	w.mu.Unlock()

	if w.logger != nil {
		w.logger.InfoContext(ctx, "integrity sweep finished",
			"checked", report.Checked,
			"mismatches", len(report.Mismatches),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
	return report, nil
}

// LastReport returns the outcome of the most recent sweep, if any.
func (w *IntegritySweeper) LastReport() *SweepReport {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}

// Start schedules Sweep with a standard five-field cron spec or a descriptor
// such as "@hourly". An empty schedule disables sweeping.
func (w *IntegritySweeper) Start(schedule string) error {
	if schedule == "" {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cron != nil {
		return fmt.Errorf("integrity sweeper already started")
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(schedule, w.runScheduled); err != nil {
		return fmt.Errorf("parse sweep schedule %q: %w", schedule, err)
	}
	c.Start()
	w.cron = c
	return nil
}

// Stop halts scheduling and waits for a running sweep or ctx, whichever ends first.
func (w *IntegritySweeper) Stop(ctx context.Context) {
	w.mu.Lock()
	c := w.cron
	w.cron = nil
	w.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
}

func (w *IntegritySweeper) runScheduled() {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()
	if _, err := w.Sweep(ctx); err != nil && w.logger != nil {
		w.logger.ErrorContext(ctx, "integrity sweep failed", "error", err)
	}
}
