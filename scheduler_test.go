package bc

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestRunReturnsWhenCoroCountReachesZero(t *testing.T) {
	sched, err := NewScheduler()
	require.NoError(t, err)
	defer sched.Close()

	done := make(chan struct{})
	Spawn(context.Background(), sched, func(ctx context.Context) (struct{}, error) {
		if err := Sleep(ctx, sched, 5*time.Millisecond); err != nil {
			return struct{}{}, err
		}
		close(done)
		return struct{}{}, nil
	})

	require.NoError(t, sched.Run())
	select {
	case <-done:
	default:
		t.Fatal("Run returned before the sleeping task completed")
	}
	assert.Equal(t, 0, sched.coroCountSnapshot())
}

// TestSleepOrderingAcrossConcurrentTasks exercises the scenario of three
// tasks sleeping for different durations appending their id to a shared log
// in deadline order, and checks the whole run finishes well under the
// longest duration plus a generous scheduling slice.
func TestSleepOrderingAcrossConcurrentTasks(t *testing.T) {
	sched, err := NewScheduler(WithDefaultSlice(10 * time.Millisecond))
	require.NoError(t, err)
	defer sched.Close()

	var mu sync.Mutex
	var log []int

	spawnSleeper := func(id int, d time.Duration) {
		Spawn(context.Background(), sched, func(ctx context.Context) (struct{}, error) {
			if err := Sleep(ctx, sched, d); err != nil {
				return struct{}{}, err
			}
			mu.Lock()
			log = append(log, id)
			mu.Unlock()
			return struct{}{}, nil
		})
	}

	spawnSleeper(100, 100*time.Millisecond)
	spawnSleeper(200, 200*time.Millisecond)
	spawnSleeper(50, 50*time.Millisecond)

	start := time.Now()
	require.NoError(t, sched.Run())
	elapsed := time.Since(start)

	assert.Equal(t, []int{50, 100, 200}, log)
	assert.Less(t, elapsed, 500*time.Millisecond)
}

// TestFdWaitersFireInRegistrationOrder exercises P2: multiple tasks parked
// on the same fd for the same readiness observe it in the order they
// registered, not the order their goroutines happen to be scheduled by the
// Go runtime.
func TestFdWaitersFireInRegistrationOrder(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	rfd := int(r.Fd())
	require.NoError(t, unix.SetNonblock(rfd, true))

	sched, err := NewScheduler()
	require.NoError(t, err)
	defer sched.Close()

	var mu sync.Mutex
	var order []int

	started := make(chan struct{}, 3)
	spawnWaiter := func(id int) {
		Spawn(context.Background(), sched, func(ctx context.Context) (struct{}, error) {
			started <- struct{}{}
			if _, err := waitFd(ctx, sched, rfd, EventRead); err != nil {
				return struct{}{}, err
			}
			mu.Lock()
			order = append(order, id)
			mu.Unlock()
			return struct{}{}, nil
		})
	}

	spawnWaiter(1)
	spawnWaiter(2)
	spawnWaiter(3)
	for i := 0; i < 3; i++ {
		<-started
	}

	_, werr := w.Write([]byte("x"))
	require.NoError(t, werr)

	require.NoError(t, sched.Run())
	assert.Equal(t, []int{1, 2, 3}, order)
}

// TestCancelDuringDispatchDoesNotResurrectWaiter is a regression test for a
// race between dispatchFd and a concurrent registration.Cancel on a waiter
// whose interest does not match the observed event: dispatchFd detaches the
// fd's waiter list before evaluating it, so Cancel's table removal lands on
// a list the entry no longer owns (a no-op) — what stops dispatchFd from
// re-splicing the (already cancelled, already coroCount-decremented) waiter
// back into the table is the w.fired check under the same mutex, here the
// one dropFiredSurvivors makes at the final commit, since the waiter was
// queued as a survivor before Cancel ran.
func TestCancelDuringDispatchDoesNotResurrectWaiter(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	rfd := int(r.Fd())
	require.NoError(t, unix.SetNonblock(rfd, true))

	sched, err := NewScheduler()
	require.NoError(t, err)
	defer sched.Close()

	var readCalled bool
	readReg := sched.postFd(rfd, EventRead, nil, func() { readCalled = true })

	// writeReg's continuation blocks dispatchFd mid-iteration, widening the
	// window between readReg (registered first, interest doesn't match the
	// observed EventWrite, so it takes the "requeue as survivor" path) being
	// provisionally queued and dispatchFd's final commit.
	release := make(chan struct{})
	sched.postFd(rfd, EventWrite, nil, func() { <-release })

	dispatchDone := make(chan struct{})
	go func() {
		sched.dispatchFd(rfd, EventWrite)
		close(dispatchDone)
	}()

	time.Sleep(10 * time.Millisecond)
	cancelled := readReg.Cancel()
	close(release)
	<-dispatchDone

	assert.True(t, cancelled, "Cancel should win the race against the still-pending requeue")
	assert.False(t, readCalled, "a non-matching waiter must never be resumed")
	assert.Equal(t, 0, sched.fdWaiterCount(), "the cancelled waiter must not survive back into the fd table")
	assert.Equal(t, 0, sched.coroCountSnapshot())
}
