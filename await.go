package bc

import (
	"context"
	"time"

	"golang.org/x/sys/unix"
)

// Sleep suspends the calling Task until d has elapsed (§4.D sleep), posting
// a timer continuation and parking on it.
func Sleep(ctx context.Context, sched *Scheduler, d time.Duration) error {
	self := requireSelf(ctx)
	reg := sched.postTimer(time.Now().Add(d), self.resume)
	return self.park(ctx, reg.Cancel)
}

// waitFd suspends the calling Task until fd reports the requested interest
// and returns the observed event set the dispatcher recorded before
// resuming it (§4.D read/write/connect all build on this).
func waitFd(ctx context.Context, sched *Scheduler, fd int, interest EventMask) (EventMask, error) {
	self := requireSelf(ctx)
	var revent EventMask
	reg := sched.postFd(fd, interest, &revent, self.resume)
	if err := self.park(ctx, reg.Cancel); err != nil {
		return 0, err
	}
	return revent, nil
}

func requireSelf(ctx context.Context) *taskHandle {
	self := taskHandleFromContext(ctx)
	if self == nil {
		panic(&InvariantViolation{Message: "bc: awaiter used outside a running Task"})
	}
	return self
}

// readInterest and writeInterest are the event sets the read and write
// awaiters subscribe to: the requested direction plus the conditions that
// can terminate it early.
const readInterest = EventRead | EventError | EventHangup | EventRDHangup
const writeInterest = EventWrite | EventError | EventHangup

// read performs one non-blocking read(2), suspending first until fd is
// readable. It implements the §9 Open Question resolution for hangup
// races: a read is always attempted before hangup is trusted, and only a
// zero-byte result in the presence of HANGUP/RDHANGUP is reported as
// closed_by_peer — bytes already buffered by the peer are always drained
// first.
func read(ctx context.Context, sched *Scheduler, fd int, buf []byte) (int, error) {
	revent, err := waitFd(ctx, sched, fd, readInterest)
	if err != nil {
		return 0, err
	}
	if revent&EventError != 0 {
		return 0, newError(CodeEpollError, "read: error condition on fd", nil)
	}

	n, rerr := unix.Read(fd, buf)
	if rerr != nil {
		if isTransient(rerr) {
			return 0, nil
		}
		return 0, wrapErrno(rerr)
	}
	if n == 0 && revent&(EventHangup|EventRDHangup) != 0 {
		return 0, newError(CodeClosedByPeer, "read: peer closed the connection", nil)
	}
	return n, nil
}

// write performs one non-blocking write(2), suspending first until fd is
// writable.
func write(ctx context.Context, sched *Scheduler, fd int, buf []byte) (int, error) {
	revent, err := waitFd(ctx, sched, fd, writeInterest)
	if err != nil {
		return 0, err
	}
	if revent&EventError != 0 {
		return 0, newError(CodeEpollError, "write: error condition on fd", nil)
	}
	if revent&EventHangup != 0 {
		return 0, newError(CodeClosedByPeer, "write: peer closed the connection", nil)
	}

	n, werr := unix.Write(fd, buf)
	if werr != nil {
		if isTransient(werr) {
			return 0, nil
		}
		if werr == unix.EPIPE {
			return 0, newError(CodeClosedByPeer, "write: broken pipe", nil)
		}
		return 0, wrapErrno(werr)
	}
	return n, nil
}

// connect drives a non-blocking connect(2) to completion: the initial call
// is issued synchronously (possibly returning EINPROGRESS), then the Task
// suspends until the fd is writable, at which point SO_ERROR is consulted
// to distinguish success from a failed connection attempt. Grounded in the
// original client socket's synchronous-connect-then-await pattern.
func connect(ctx context.Context, sched *Scheduler, fd int, sa unix.Sockaddr) error {
	err := unix.Connect(fd, sa)
	if err == nil {
		return nil
	}
	if err != unix.EINPROGRESS {
		return wrapErrno(err)
	}

	if _, werr := waitFd(ctx, sched, fd, EventWrite|EventError|EventHangup); werr != nil {
		return werr
	}

	errno, serr := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if serr != nil {
		return wrapErrno(serr)
	}
	if errno != 0 {
		return wrapErrno(unix.Errno(errno))
	}
	return nil
}

// accept is the Proxy-based awaiter (§4.D accept): unlike read/write/sleep,
// the accept4(2) call itself runs on the scheduler's own goroutine during
// dispatch, because only the syscall's return value can distinguish a
// genuine new connection from a readiness notification that another
// concurrent acceptor already drained.
func accept(ctx context.Context, sched *Scheduler, fd int) (int, unix.Sockaddr, error) {
	self := requireSelf(ctx)

	var (
		newFd   int
		newAddr unix.Sockaddr
		acceptErr error
	)

	proxy := func(observed EventMask) bool {
		if observed&EventError != 0 {
			acceptErr = newError(CodeEpollError, "accept: error condition on listening fd", nil)
			self.resume()
			return true
		}
		clientFd, clientAddr, err := unix.Accept4(fd, unix.SOCK_CLOEXEC|unix.SOCK_NONBLOCK)
		switch {
		case err == nil:
			newFd, newAddr = clientFd, clientAddr
		case isTransient(err):
			return false
		default:
			acceptErr = wrapErrno(err)
		}
		self.resume()
		return true
	}

	reg := sched.postFdProxy(fd, EventRead, proxy)
	if err := self.park(ctx, reg.Cancel); err != nil {
		return 0, nil, err
	}
	return newFd, newAddr, acceptErr
}
