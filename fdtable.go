package bc

import "container/list"

// fdWaiter is one registration in the scheduler's per-fd waiter list: §3
// FdWaiter. Exactly one of cont or proxy is set, selecting the dispatch
// rule used in scheduler.go's per-fd dispatch step.
type fdWaiter struct {
	interest EventMask
	revent   *EventMask // written by the dispatcher before cont is invoked
	cont     Continuation
	proxy    Proxy

	// fired is the fd-waiter analogue of timerNode.index's "already popped"
	// sentinel: it lets dispatchFd and a racing registration.Cancel agree on
	// which of them gets to act, guarded by Scheduler.mu, so a waiter is
	// never both resumed and cancelled.
	fired bool
}

// fdEntry is one slot of the FdTable: the ordered waiter list for a single
// fd, plus the cached union of all waiters' interest masks (§3 invariant 2,
// P7). Using container/list mirrors the FIFO reader/writer lists used by
// the gaio-derived watcher in the retrieved pack, adapted here to a single
// ordered list per fd rather than split reader/writer lists, since waiters
// already carry their own interest mask.
//
// waiters is a *list.List rather than a value: container/list elements hold
// pointers back into their owning list, so a list must never be copied
// after its first use. detach swaps the pointer rather than copying it.
type fdEntry struct {
	waiters *list.List
	union   EventMask
}

func newFdEntry() *fdEntry {
	return &fdEntry{waiters: list.New()}
}

// fdTable is a dense sequence indexed by raw fd (§3 FdTable), growing by
// doubling (to the next power of two) on demand, the same growth policy the
// original scheduler's poller::adjust_size_ uses for its focus_/evs_
// vectors.
type fdTable struct {
	entries []*fdEntry
}

func newFdTable() *fdTable {
	return &fdTable{}
}

func nextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func (t *fdTable) ensure(fd int) *fdEntry {
	if fd < len(t.entries) {
		if t.entries[fd] == nil {
			t.entries[fd] = newFdEntry()
		}
		return t.entries[fd]
	}
	newLen := nextPowerOfTwo(fd + 1)
	grown := make([]*fdEntry, newLen)
	copy(grown, t.entries)
	t.entries = grown
	t.entries[fd] = newFdEntry()
	return t.entries[fd]
}

func (t *fdTable) get(fd int) *fdEntry {
	if fd < 0 || fd >= len(t.entries) {
		return nil
	}
	return t.entries[fd]
}

// add appends w to fd's waiter list in registration order and recomputes
// the union mask, returning the new union so the caller can update the
// poller subscription.
func (t *fdTable) add(fd int, w *fdWaiter) (elem *list.Element, union EventMask) {
	e := t.ensure(fd)
	elem = e.waiters.PushBack(w)
	e.union |= w.interest
	return elem, e.union
}

// remove detaches elem from fd's waiter list (used by cancellation) and
// recomputes the union mask.
func (t *fdTable) remove(fd int, elem *list.Element) (union EventMask, empty bool) {
	e := t.get(fd)
	if e == nil {
		return 0, true
	}
	e.waiters.Remove(elem)
	e.union = recomputeUnion(e)
	return e.union, e.waiters.Len() == 0
}

func recomputeUnion(e *fdEntry) EventMask {
	var u EventMask
	for el := e.waiters.Front(); el != nil; el = el.Next() {
		u |= el.Value.(*fdWaiter).interest
	}
	return u
}

// detach splices fd's current waiter list out to a standalone list,
// leaving the table's entry empty, so that re-registration performed by a
// resumed waiter during dispatch does not interleave with the list being
// iterated (§4.B "detach the waiter list... so re-registration... does not
// interleave").
func (t *fdTable) detach(fd int) *list.List {
	e := t.get(fd)
	if e == nil {
		return list.New()
	}
	local := e.waiters
	e.waiters = list.New()
	e.union = 0
	return local
}

// prependSurvivors splices survivors to the head of fd's current waiter
// list (which may already hold new entries added by continuations that ran
// during this very dispatch) and returns the recomputed union mask.
func (t *fdTable) prependSurvivors(fd int, survivors *list.List) EventMask {
	e := t.ensure(fd)
	if survivors.Len() > 0 {
		newlyAdded := e.waiters
		e.waiters = survivors
		e.waiters.PushBackList(newlyAdded)
	}
	e.union = recomputeUnion(e)
	return e.union
}

// count returns the total number of waiters across every fd, the Σ term of
// invariant 1.
func (t *fdTable) count() int {
	n := 0
	for _, e := range t.entries {
		if e != nil {
			n += e.waiters.Len()
		}
	}
	return n
}
