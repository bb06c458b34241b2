//go:build linux

package bc

import "golang.org/x/sys/unix"

// EventMask is a bitmask of readiness events. Values are chosen to match the
// host notifier's constants directly (epoll on Linux); callers should treat
// them as opaque bits, combined with bitwise OR/AND, rather than depending
// on their numeric value.
type EventMask uint32

const (
	EventNone     EventMask = 0
	EventRead     EventMask = EventMask(unix.EPOLLIN)
	EventWrite    EventMask = EventMask(unix.EPOLLOUT)
	EventError    EventMask = EventMask(unix.EPOLLERR)
	EventHangup   EventMask = EventMask(unix.EPOLLHUP)
	EventRDHangup EventMask = EventMask(unix.EPOLLRDHUP)
)

func (m EventMask) String() string {
	if m == EventNone {
		return "NONE"
	}
	s := ""
	add := func(bit EventMask, name string) {
		if m&bit != 0 {
			if s != "" {
				s += "|"
			}
			s += name
		}
	}
	add(EventRead, "READ")
	add(EventWrite, "WRITE")
	add(EventError, "ERROR")
	add(EventHangup, "HANGUP")
	add(EventRDHangup, "RDHANGUP")
	return s
}
