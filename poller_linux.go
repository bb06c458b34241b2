//go:build linux

package bc

import (
	"time"

	"golang.org/x/sys/unix"
)

// poller is a thin wrapper over epoll (§4.A). It maintains focus, the
// kernel's current per-fd interest mask, so that subscribe calls can compute
// ADD/MOD/DEL in O(1) by comparing old vs new, the same scheme as the
// original scheduler.cpp's poller::subscribe.
//
// focus grows like a vector via adjust_size_ in the original: round up to
// the next power of two on demand, mirroring fdTable's growth policy so
// both structures stay roughly in step with the highest fd in use.
type poller struct {
	epfd   int
	focus  []EventMask
	events []unix.EpollEvent
}

func newPoller(initialEventCap int) (*poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, &SetupError{Op: "epoll_create1", Cause: wrapErrno(err)}
	}
	if initialEventCap <= 0 {
		initialEventCap = 64
	}
	return &poller{
		epfd:   epfd,
		events: make([]unix.EpollEvent, initialEventCap),
	}, nil
}

func (p *poller) Close() error {
	return unix.Close(p.epfd)
}

func (p *poller) focusAt(fd int) EventMask {
	if fd < 0 || fd >= len(p.focus) {
		return EventNone
	}
	return p.focus[fd]
}

func (p *poller) growFocus(fd int) {
	if fd < len(p.focus) {
		return
	}
	newLen := nextPowerOfTwo(fd + 1)
	grown := make([]EventMask, newLen)
	copy(grown, p.focus)
	p.focus = grown
}

// subscribe sets the kernel interest for fd to exactly mask (§4.A).
// mask == 0 means "no longer interested"; if fd was unknown this is a
// no-op. Idempotent when mask is unchanged from the current focus (R1).
func (p *poller) subscribe(fd int, mask EventMask) error {
	old := p.focusAt(fd)
	if mask == old {
		return nil
	}
	p.growFocus(fd)

	switch {
	case mask == EventNone:
		p.focus[fd] = EventNone
		if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
			return wrapErrno(err)
		}
		return nil
	case old == EventNone:
		p.focus[fd] = mask
		ev := unix.EpollEvent{Events: uint32(mask), Fd: int32(fd)}
		if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
			return wrapErrno(err)
		}
		return nil
	default:
		p.focus[fd] = mask
		ev := unix.EpollEvent{Events: uint32(mask), Fd: int32(fd)}
		if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
			return wrapErrno(err)
		}
		return nil
	}
}

// poll blocks up to timeout (negative: returns immediately without
// blocking), invoking yield once per (fd, observed_events) pair reported by
// the kernel. Interrupted waits return nil, not an error (§4.A). Other
// errors are fatal and propagate to the caller (the scheduler's run loop).
func (p *poller) poll(timeout time.Duration, yield func(fd int, observed EventMask)) error {
	if timeout < 0 {
		return nil
	}

	ms := -1
	if timeout >= 0 {
		ms = int(timeout / time.Millisecond)
		if timeout > 0 && ms == 0 {
			ms = 1 // round sub-millisecond positive slices up, never busy-loop
		}
	}

	n, err := unix.EpollWait(p.epfd, p.events, ms)
	if err != nil {
		if err == unix.EINTR {
			return nil
		}
		return wrapErrno(err)
	}

	for i := 0; i < n; i++ {
		ev := p.events[i]
		yield(int(ev.Fd), EventMask(ev.Events))
	}

	if n == len(p.events) {
		p.events = make([]unix.EpollEvent, len(p.events)*2)
	}
	return nil
}
