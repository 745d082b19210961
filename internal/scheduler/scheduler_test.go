package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunFiresTicksUntilCancelled(t *testing.T) {
	s := New(Options{Interval: 20 * time.Millisecond}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	var ticks atomic.Int64

	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, func(ctx context.Context, tick time.Time) error {
			if ticks.Add(1) >= 3 {
				cancel()
			}
			return nil
		})
	}()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancellation")
	}
	assert.GreaterOrEqual(t, ticks.Load(), int64(3))
}

func TestRunContinuesAfterTickError(t *testing.T) {
	s := New(Options{Interval: 20 * time.Millisecond}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	var ticks atomic.Int64

	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, func(ctx context.Context, tick time.Time) error {
			if ticks.Add(1) >= 2 {
				cancel()
			}
			return errors.New("boom")
		})
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not survive tick errors")
	}
	assert.GreaterOrEqual(t, ticks.Load(), int64(2), "errors must not stop the loop")
}

func TestRunStopsDuringStartupDelay(t *testing.T) {
	s := New(Options{Interval: time.Minute, StartupDelay: time.Hour}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, func(ctx context.Context, tick time.Time) error { return nil })
	}()

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler ignored cancellation during startup delay")
	}
}

func TestNextTickAlignment(t *testing.T) {
	s := New(Options{Interval: 5 * time.Minute, AlignToStart: true}, zerolog.Nop())

	now := time.Date(2025, 3, 1, 12, 2, 30, 0, time.UTC)
	next := s.nextTick(now)
	assert.Equal(t, time.Date(2025, 3, 1, 12, 5, 0, 0, time.UTC), next)

	// Already on a boundary: advance to the following one.
	onBoundary := time.Date(2025, 3, 1, 12, 5, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 3, 1, 12, 10, 0, 0, time.UTC), s.nextTick(onBoundary))

	unaligned := New(Options{Interval: 5 * time.Minute}, zerolog.Nop())
	assert.Equal(t, now.Add(5*time.Minute), unaligned.nextTick(now))
}
