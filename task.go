package bc

import (
	"context"
	"sync"
)

// taskHandle is the goroutine-rendezvous primitive that stands in for a
// stackless coroutine frame: exactly one goroutine is ever the "active
// baton" holder across a Task tree at a time, even though every Task body
// runs on its own goroutine.
//
// resumeSignal wakes the owning goroutine; yieldSignal is sent by the owning
// goroutine every time it relinquishes the baton, whether by suspending
// again or by completing, so whichever goroutine called resume knows it is
// safe to proceed. Both are unbuffered: the handshake only ever has one
// sender and one receiver in flight at a time by construction (see park).
type taskHandle struct {
	resumeSignal chan struct{}
	yieldSignal  chan struct{}
}

func newTaskHandle() *taskHandle {
	return &taskHandle{
		resumeSignal: make(chan struct{}),
		yieldSignal:  make(chan struct{}),
	}
}

// resume is the Continuation used wherever h needs to be woken: by the
// scheduler firing a timer or fd waiter, or by a child Task's completion
// resuming its parent. It blocks until h's goroutine has re-suspended or
// completed, reproducing the single-threaded-cooperative semantics the
// original coroutine's symmetric transfer gives for free.
func (h *taskHandle) resume() {
	h.resumeSignal <- struct{}{}
	<-h.yieldSignal
}

// park is called from h's own goroutine at a suspension point, immediately
// after the caller has arranged for something to wake h next (a timer, an
// fd waiter, or a parent link on another Task). It reports the suspension
// to whoever is currently resuming h, then waits either to be woken or for
// ctx to be cancelled.
//
// disarm is invoked only on the ctx.Done() path. It must report whether it
// genuinely prevented the pending wake (true) or lost the race because the
// scheduler had already committed to firing it (false) — in the latter case
// park still waits for that resumeSignal to arrive, so the resumer (whose
// Continuation call is blocked sending it) is never left hanging.
func (h *taskHandle) park(ctx context.Context, disarm func() bool) error {
	h.yieldSignal <- struct{}{}
	select {
	case <-h.resumeSignal:
		return nil
	case <-ctx.Done():
		if disarm() {
			return ctx.Err()
		}
		<-h.resumeSignal
		return nil
	}
}

type taskHandleKeyType struct{}

var taskHandleKey taskHandleKeyType

func withTaskHandle(ctx context.Context, h *taskHandle) context.Context {
	return context.WithValue(ctx, taskHandleKey, h)
}

func taskHandleFromContext(ctx context.Context) *taskHandle {
	h, _ := ctx.Value(taskHandleKey).(*taskHandle)
	return h
}

// Task is the Go counterpart of the original coroutine's promise_type:
// a single-assignment result slot of type T, settled exactly once, with at
// most one parent allowed to await it (§3 Task, invariant 5).
//
// Every Task body runs on its own goroutine from the moment Spawn is
// called, but taskHandle's rendezvous protocol ensures only one such
// goroutine is ever actually running at a time — the rest are parked in
// park's select, which is indistinguishable, from the outside, from a
// suspended coroutine frame.
type Task[T any] struct {
	handle *taskHandle
	sched  *Scheduler

	mu     sync.Mutex
	done   bool
	result T
	err    error
	parent Continuation
}

// Spawn starts fn on its own goroutine and runs it eagerly up to its first
// suspension or completion, mirroring a coroutine whose initial_suspend
// never actually suspends. The returned Task can be awaited from another
// Task's body with Await, or, once sched.Run has returned, read directly
// with Result.
func Spawn[T any](ctx context.Context, sched *Scheduler, fn func(context.Context) (T, error)) *Task[T] {
	t := &Task[T]{handle: newTaskHandle(), sched: sched}
	taskCtx := withTaskHandle(ctx, t.handle)

	go func() {
		result, err := fn(taskCtx)
		t.complete(result, err)
	}()

	<-t.handle.yieldSignal
	return t
}

func (t *Task[T]) snapshot() (done bool, result T, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done, t.result, t.err
}

// setParent installs c as the Continuation run when t settles. Invariant 5
// permits at most one caller to do this over t's lifetime.
func (t *Task[T]) setParent(c Continuation) {
	t.mu.Lock()
	t.parent = c
	t.mu.Unlock()
}

// clearParent removes the parent link if it is still armed, reporting
// whether it did so. It is the disarm half of the cancellation race an
// awaiting Task runs when its own context is cancelled while parked in
// Await: false means complete has already claimed the link and is in the
// process of resuming the parent, so the caller must still wait for that.
func (t *Task[T]) clearParent() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.parent == nil {
		return false
	}
	t.parent = nil
	return true
}

func (t *Task[T]) claimParent() Continuation {
	t.mu.Lock()
	p := t.parent
	t.parent = nil
	t.mu.Unlock()
	return p
}

// complete settles t exactly once, cascades into the parent (if any) before
// returning, and finally releases whoever is currently resuming t — this is
// the Go analogue of the original's final_suspend symmetric transfer into
// the awaiting coroutine_handle.
func (t *Task[T]) complete(result T, err error) {
	t.mu.Lock()
	t.result = result
	t.err = err
	t.done = true
	t.mu.Unlock()

	if p := t.claimParent(); p != nil {
		p()
	}
	t.handle.yieldSignal <- struct{}{}
}

// Done reports whether t has settled.
func (t *Task[T]) Done() bool {
	done, _, _ := t.snapshot()
	return done
}

// Result returns t's settled value and error. It is meant to be called
// after sched.Run has returned, when P1 guarantees every reachable Task has
// settled; calling it on a still-running Task returns the zero value.
func (t *Task[T]) Result() (T, error) {
	_, result, err := t.snapshot()
	return result, err
}

// Await suspends the calling Task until child settles, returning its result
// and error. It must be called from inside a Task body started by Spawn;
// calling it from any other goroutine is a programmer error.
func Await[T any](ctx context.Context, child *Task[T]) (T, error) {
	if done, result, err := child.snapshot(); done {
		return result, err
	}

	self := taskHandleFromContext(ctx)
	if self == nil {
		panic(&InvariantViolation{Message: "bc.Await called outside a running Task"})
	}

	child.setParent(self.resume)
	if err := self.park(ctx, child.clearParent); err != nil {
		var zero T
		return zero, err
	}

	_, result, err := child.snapshot()
	return result, err
}
