package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"certtrail/internal/trail"
	"certtrail/pkg/platform/circuit"
)

type stubSink struct {
	calls int
	err   error
}

func (s *stubSink) Publish(context.Context, trail.Record) error {
	s.calls++
	return s.err
}

func TestGuardedPublisher(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	breaker := circuit.New("kafka",
		circuit.WithFailureThreshold(2),
		circuit.WithCooldown(time.Minute),
		circuit.WithClock(func() time.Time { return now }),
	)
	sink := &stubSink{err: errors.New("broker down")}
	pub := NewGuardedPublisher(sink, breaker, logger)

	require.Error(t, pub.Publish(ctx, trail.Record{}))
	require.Error(t, pub.Publish(ctx, trail.Record{}))
	assert.True(t, breaker.IsOpen())

	err := pub.Publish(ctx, trail.Record{})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 2, sink.calls, "open circuit does not reach the broker")

	sink.err = nil
	now = now.Add(time.Minute)
	require.NoError(t, pub.Publish(ctx, trail.Record{}))
	assert.False(t, breaker.IsOpen())
	assert.Equal(t, 3, sink.calls)
}
