package bc

// Continuation is a resumable handle: invoking it hands control to whichever
// parked goroutine registered it, and blocks until that goroutine (and
// anything it transitively resumes via a Task parent link) suspends again
// or runs to completion. See task.go for why this call is synchronous.
type Continuation func()

// Proxy performs a single in-reactor step when its fd becomes ready,
// without first handing control to a parked goroutine. It is used only by
// Accept (§4.D), which must observe the accept(2) return value itself to
// decide whether the readiness was genuine.
//
// Proxy returns true if it has fully serviced its waiter — in which case it
// is responsible for having already invoked the waiter's Continuation
// itself before returning — or false if the readiness was spurious or
// partial and the waiter should remain registered, unevaluated, for the
// next readiness notification.
type Proxy func(observed EventMask) bool
