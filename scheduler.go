package bc

import (
	"container/heap"
	"container/list"
	"sync"
	"time"
)

// registration is the handle returned by postTimer/postFd. Cancel purges
// the registration from whichever table still holds it, so a dropped Task
// never leaves a dangling continuation behind (§5 cancellation, §9 Open
// Question resolution). It is idempotent and safe to call more than once,
// including after the waiter has already fired normally.
//
// Cancel reports whether it genuinely removed a still-pending registration.
// false means it lost the race: the scheduler had already committed to
// firing this waiter's Continuation (under mu, before Cancel observed it),
// so the caller must still wait for that Continuation to arrive rather than
// treat the operation as cancelled.
type registration struct {
	cancel func() bool
}

func (r *registration) Cancel() bool {
	if r == nil || r.cancel == nil {
		return false
	}
	return r.cancel()
}

// Scheduler owns the run loop, the timer heap, the per-fd waiter table, and
// the Poller (§4.B). Only Run's own goroutine ever touches these without
// the mutex; mu exists solely so that a Task's governing context.Context can
// be cancelled from a foreign goroutine (context.WithTimeout's internal
// timer, or a caller invoking its own CancelFunc) and still safely purge
// that task's registration. The normal drain/dispatch path never contends
// on mu in practice, since cancellation is rare relative to ordinary
// readiness and timer fires — see DESIGN.md for why this is the one
// deliberate departure from "no locks in the core's hot path".
type Scheduler struct {
	mu        sync.Mutex
	timers    timerHeap
	fds       *fdTable
	poller    *poller
	coroCount int
	seq       uint64

	opts schedulerOptions

	closeOnce sync.Once
}

// NewScheduler constructs a Scheduler with its own epoll instance. The
// returned Scheduler is ready for post_timer/post_fd registrations and
// Run().
func NewScheduler(opts ...SchedulerOption) (*Scheduler, error) {
	o := resolveSchedulerOptions(opts)
	p, err := newPoller(o.pollerSize)
	if err != nil {
		return nil, err
	}
	return &Scheduler{
		fds:    newFdTable(),
		poller: p,
		opts:   o,
	}, nil
}

// Logger returns the scheduler's configured diagnostic sink.
func (s *Scheduler) Logger() Logger { return s.opts.logger }

// Close releases the underlying epoll fd. Run must not be called again
// afterwards.
func (s *Scheduler) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.poller.Close()
	})
	return err
}

var (
	defaultSchedulerOnce sync.Once
	defaultScheduler     *Scheduler
	defaultSchedulerErr  error
)

// DefaultScheduler returns a process-wide lazily-constructed Scheduler,
// built with default options on first use under sync.Once, following the
// same lazy-singleton shape as the teacher package's default loop/logger
// globals (§9 "global singletons" resolution).
func DefaultScheduler() (*Scheduler, error) {
	defaultSchedulerOnce.Do(func() {
		defaultScheduler, defaultSchedulerErr = NewScheduler()
	})
	return defaultScheduler, defaultSchedulerErr
}

func (s *Scheduler) nextSeq() uint64 {
	s.seq++
	return s.seq
}

// postTimer enqueues a timer continuation for deadline (§4.B post_timer).
// Increments coro_count per invariant 1.
func (s *Scheduler) postTimer(deadline time.Time, cont Continuation) *registration {
	s.mu.Lock()
	node := &timerNode{deadline: deadline, seq: s.nextSeq(), cont: cont}
	heap.Push(&s.timers, node)
	s.coroCount++
	s.mu.Unlock()

	return &registration{cancel: func() bool {
		s.mu.Lock()
		if node.index < 0 {
			s.mu.Unlock()
			return false
		}
		removeNode(&s.timers, node)
		s.coroCount--
		s.mu.Unlock()
		return true
	}}
}

// postFd appends a Continuation-kind waiter to fd's list (§4.B post_fd),
// recomputes the union interest mask, and updates the poller subscription.
func (s *Scheduler) postFd(fd int, interest EventMask, revent *EventMask, cont Continuation) *registration {
	return s.postFdWaiter(fd, &fdWaiter{interest: interest, revent: revent, cont: cont})
}

// postFdProxy is the Proxy-kind counterpart, used only by Accept (§4.D).
func (s *Scheduler) postFdProxy(fd int, interest EventMask, proxy Proxy) *registration {
	return s.postFdWaiter(fd, &fdWaiter{interest: interest, proxy: proxy})
}

func (s *Scheduler) postFdWaiter(fd int, w *fdWaiter) *registration {
	s.mu.Lock()
	elem, union := s.fds.add(fd, w)
	_ = s.poller.subscribe(fd, union)
	s.coroCount++
	s.mu.Unlock()

	return &registration{cancel: func() bool {
		s.mu.Lock()
		if w.fired {
			s.mu.Unlock()
			return false
		}
		w.fired = true
		union, _ := s.fds.remove(fd, elem)
		_ = s.poller.subscribe(fd, union)
		s.coroCount--
		s.mu.Unlock()
		return true
	}}
}

// Run drives the loop to quiescence (§4.B). It returns when coro_count
// reaches zero (P1), or immediately with a fatal poller error if the
// notifier itself fails (§4.A: "errors other than interruption are
// fatal and propagate out of the loop").
func (s *Scheduler) Run() error {
	for {
		s.drainExpiredTimers()

		if s.coroCountSnapshot() == 0 {
			return nil
		}

		slice := s.computeSlice()

		if s.fdWaiterCount() > 0 {
			if err := s.poller.poll(slice, s.dispatchFd); err != nil {
				logf(s.opts.logger, LevelError, "scheduler.run", "poller error", err)
				return err
			}
		} else {
			time.Sleep(slice)
		}
	}
}

func (s *Scheduler) coroCountSnapshot() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.coroCount
}

func (s *Scheduler) fdWaiterCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fds.count()
}

// drainExpiredTimers repeatedly pops and resumes every timer whose deadline
// has passed, re-checking after each full sweep since a resumed
// continuation may post new work whose deadline is already due (§4.B step
// 1).
func (s *Scheduler) drainExpiredTimers() {
	for {
		ran := false
		for {
			now := time.Now()
			s.mu.Lock()
			node := s.timers.peek()
			if node == nil || node.deadline.After(now) {
				s.mu.Unlock()
				break
			}
			heap.Pop(&s.timers)
			node.index = -1
			s.coroCount--
			s.mu.Unlock()

			node.cont()
			ran = true
		}
		if !ran {
			return
		}
	}
}

// computeSlice implements §4.B step 2: default 1s, shrunk to the next
// timer's remaining duration if one is due within that window.
func (s *Scheduler) computeSlice() time.Duration {
	s.mu.Lock()
	node := s.timers.peek()
	s.mu.Unlock()

	slice := s.opts.defaultSlice
	if node == nil {
		return slice
	}
	now := time.Now()
	if node.deadline.After(now.Add(slice)) {
		return slice
	}
	d := node.deadline.Sub(now)
	if d < 0 {
		d = 0
	}
	return d
}

// dispatchFd implements the per-fd dispatch algorithm in §4.B: detach the
// waiter list, evaluate each waiter against the observed event set in
// registration order, and splice survivors back to the head of the table
// so that registrations made by resumed code during this very dispatch are
// ordered after the ones that were already pending.
func (s *Scheduler) dispatchFd(fd int, observed EventMask) {
	s.mu.Lock()
	local := s.fds.detach(fd)
	s.mu.Unlock()

	survivors := list.New()
	for el := local.Front(); el != nil; el = el.Next() {
		w := el.Value.(*fdWaiter)

		if w.interest&observed == 0 {
			// Even a non-matching waiter must be claimed under mu before it
			// can be requeued: a concurrent registration.Cancel may have
			// already fired it (and removed it from the *old* list that
			// detach swapped out from under it, a no-op on this detached
			// copy), in which case re-adding it to survivors would
			// resurrect a waiter Cancel already accounted for in coroCount.
			s.mu.Lock()
			if w.fired {
				s.mu.Unlock()
				continue
			}
			survivors.PushBack(w)
			s.mu.Unlock()
			continue
		}

		s.mu.Lock()
		if w.fired {
			// lost the claim to a concurrent registration.Cancel; that path
			// already accounted for this waiter, so drop it here.
			s.mu.Unlock()
			continue
		}
		w.fired = true
		s.mu.Unlock()

		if w.revent != nil {
			*w.revent = observed
		}

		switch {
		case w.cont != nil:
			s.coroDecrement()
			w.cont()
		case w.proxy != nil:
			if finished := w.proxy(observed); finished {
				s.coroDecrement()
			} else {
				s.mu.Lock()
				w.fired = false
				s.mu.Unlock()
				survivors.PushBack(w)
			}
		}
	}

	s.mu.Lock()
	dropFiredSurvivors(survivors)
	union := s.fds.prependSurvivors(fd, survivors)
	_ = s.poller.subscribe(fd, union)
	s.mu.Unlock()
}

// dropFiredSurvivors removes any waiter from survivors that a concurrent
// registration.Cancel claimed (fired==true) after dispatchFd had already
// decided to requeue it but before this final commit — called with mu held,
// the single point where the survivors list and the fd table are merged, so
// no further Cancel can race past it.
func dropFiredSurvivors(survivors *list.List) {
	for el := survivors.Front(); el != nil; {
		next := el.Next()
		if el.Value.(*fdWaiter).fired {
			survivors.Remove(el)
		}
		el = next
	}
}

// abortFd force-fails every waiter currently registered on fd with a
// synthetic EventError observation, then drops fd from the poller
// entirely. Used when a socket closes out from under still-parked
// awaiters — most notably a listening socket closed while a Task is
// parked in Accept (§8 scenario 3) — since a closed fd is silently
// dropped by the kernel's own interest set and would otherwise never
// generate the readiness event the waiter is registered for.
func (s *Scheduler) abortFd(fd int) {
	s.mu.Lock()
	local := s.fds.detach(fd)
	_ = s.poller.subscribe(fd, EventNone)
	s.mu.Unlock()

	for el := local.Front(); el != nil; el = el.Next() {
		w := el.Value.(*fdWaiter)

		s.mu.Lock()
		if w.fired {
			s.mu.Unlock()
			continue
		}
		w.fired = true
		s.mu.Unlock()

		if w.revent != nil {
			*w.revent = EventError
		}
		switch {
		case w.cont != nil:
			s.coroDecrement()
			w.cont()
		case w.proxy != nil:
			w.proxy(EventError)
			s.coroDecrement()
		}
	}
}

func (s *Scheduler) coroDecrement() {
	s.mu.Lock()
	s.coroCount--
	s.mu.Unlock()
}
