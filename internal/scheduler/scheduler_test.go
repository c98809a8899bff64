package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerRunsJobRepeatedly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runs atomic.Int32
	var s Scheduler
	s.Add(Job{
		Name:     "tick",
		Interval: 5 * time.Millisecond,
		Run: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	})
	s.Start(ctx)

	require.Eventually(t, func() bool { return runs.Load() >= 3 },
		2*time.Second, 5*time.Millisecond)
	cancel()
	s.Wait()
}

func TestSchedulerSurvivesJobErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runs atomic.Int32
	var s Scheduler
	s.Add(Job{
		Name:     "flaky",
		Interval: 5 * time.Millisecond,
		Run: func(ctx context.Context) error {
			runs.Add(1)
			return errors.New("boom")
		},
	})
	s.Start(ctx)

	// Errors are logged, never fatal: the loop keeps iterating.
	require.Eventually(t, func() bool { return runs.Load() >= 3 },
		2*time.Second, 5*time.Millisecond)
	cancel()
	s.Wait()
}

func TestSchedulerStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var runs atomic.Int32
	var s Scheduler
	s.Add(Job{
		Name:     "once",
		Interval: time.Hour,
		Run: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	})
	s.Start(ctx)

	require.Eventually(t, func() bool { return runs.Load() == 1 },
		2*time.Second, 5*time.Millisecond)
	cancel()
	s.Wait()
	assert.Equal(t, int32(1), runs.Load())
}

func TestSchedulerJobsAreIndependent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var a, b atomic.Int32
	var s Scheduler
	s.Add(Job{Name: "a", Interval: 5 * time.Millisecond, Run: func(ctx context.Context) error {
		a.Add(1)
		return nil
	}})
	s.Add(Job{Name: "b", Interval: time.Hour, Run: func(ctx context.Context) error {
		b.Add(1)
		// Job B stalling must not stop job A.
		<-ctx.Done()
		return ctx.Err()
	}})
	s.Start(ctx)

	require.Eventually(t, func() bool { return a.Load() >= 3 && b.Load() == 1 },
		2*time.Second, 5*time.Millisecond)
	cancel()
	s.Wait()
}
