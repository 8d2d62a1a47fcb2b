package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"certtrail/internal/trail"
	"certtrail/pkg/platform/circuit"
)

// ErrCircuitOpen is returned without contacting the broker while the breaker
// is open.
var ErrCircuitOpen = errors.New("kafka publisher circuit open")

// Sink is anything that can publish a committed record.
type Sink interface {
	Publish(ctx context.Context, rec trail.Record) error
}

// GuardedPublisher stops calling a failing broker for a cooldown period so
// that writes do not each wait out a delivery timeout.
type GuardedPublisher struct {
	next    Sink
	breaker *circuit.Breaker
	logger  *slog.Logger
}

func NewGuardedPublisher(next Sink, breaker *circuit.Breaker, logger *slog.Logger) *GuardedPublisher {
	if breaker == nil {
		breaker = circuit.New("kafka")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GuardedPublisher{next: next, breaker: breaker, logger: logger}
}

func (g *GuardedPublisher) Publish(ctx context.Context, rec trail.Record) error {
	if !g.breaker.Allow() {
		return fmt.Errorf("publish record %s: %w", rec.ID, ErrCircuitOpen)
	}
	err := g.next.Publish(ctx, rec)
	if err != nil {
		if _, change := g.breaker.RecordFailure(); change.Opened {
			g.logger.WarnContext(ctx, "publisher circuit opened",
				"breaker", g.breaker.Name(),
				"error", err,
			)
		}
		return err
	}
	if _, change := g.breaker.RecordSuccess(); change.Closed {
		g.logger.InfoContext(ctx, "publisher circuit closed", "breaker", g.breaker.Name())
	}
	return nil
}
