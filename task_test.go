package bc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpawnRunsEagerlyToCompletionWithoutRun(t *testing.T) {
	sched, err := NewScheduler()
	require.NoError(t, err)
	defer sched.Close()

	task := Spawn(context.Background(), sched, func(ctx context.Context) (int, error) {
		return 42, nil
	})

	assert.True(t, task.Done())
	result, err := task.Result()
	assert.NoError(t, err)
	assert.Equal(t, 42, result)
}

func TestAwaitCascadesThroughSleep(t *testing.T) {
	sched, err := NewScheduler()
	require.NoError(t, err)
	defer sched.Close()

	root := Spawn(context.Background(), sched, func(ctx context.Context) (int, error) {
		child := Spawn(ctx, sched, func(ctx context.Context) (int, error) {
			if err := Sleep(ctx, sched, 10*time.Millisecond); err != nil {
				return 0, err
			}
			return 41, nil
		})
		result, err := Await(ctx, child)
		if err != nil {
			return 0, err
		}
		return result + 1, nil
	})

	require.NoError(t, sched.Run())
	result, err := root.Result()
	require.NoError(t, err)
	assert.Equal(t, 42, result)
}

func TestAwaitOnAlreadyDoneTaskDoesNotSuspend(t *testing.T) {
	sched, err := NewScheduler()
	require.NoError(t, err)
	defer sched.Close()

	root := Spawn(context.Background(), sched, func(ctx context.Context) (int, error) {
		child := Spawn(ctx, sched, func(ctx context.Context) (int, error) {
			return 7, nil
		})
		// child is already Done by the time Spawn returns (eager execution).
		return Await(ctx, child)
	})

	assert.True(t, root.Done())
	result, err := root.Result()
	require.NoError(t, err)
	assert.Equal(t, 7, result)
}

func TestSleepCancelledByContextReturnsPromptly(t *testing.T) {
	// A short default slice bounds how long Run's timer-only sleep path can
	// take to notice the cancellation below, instead of waiting out the
	// full (long) timer duration.
	sched, err := NewScheduler(WithDefaultSlice(10 * time.Millisecond))
	require.NoError(t, err)
	defer sched.Close()

	ctx, cancel := context.WithCancel(context.Background())

	root := Spawn(ctx, sched, func(ctx context.Context) (struct{}, error) {
		err := Sleep(ctx, sched, time.Hour)
		return struct{}{}, err
	})

	cancel()
	require.NoError(t, sched.Run())

	_, err = root.Result()
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, sched.coroCountSnapshot())
}
