package bc

import (
	"context"
	"sync"

	"golang.org/x/sys/unix"
)

// Protocol selects the socket type: stream (TCP-like) or datagram
// (UDP-like). Both share the same awaiter surface (§6).
type Protocol int

const (
	TCP Protocol = iota
	UDP
)

func (p Protocol) sockType() int {
	if p == UDP {
		return unix.SOCK_DGRAM
	}
	return unix.SOCK_STREAM
}

// Role tracks a Socket's place in the lifecycle described by §3's data
// model: a fresh Socket is Undetermined until bind/listen makes it a
// Server, or connect/accept makes it a Peer.
type Role int

const (
	RoleUndetermined Role = iota
	RoleServer
	RolePeer
)

// Socket is a non-blocking fd holder (§4.E). Creation is deferred until the
// domain is known, from whichever of Bind/Connect runs first. Always used
// through a *Socket: Go has no move constructors, so — unlike the source's
// move-only value type — there is exactly one owning pointer for the
// lifetime of the fd, and Close is idempotent via sync.Once rather than by
// emulating a moved-from zero state.
type Socket struct {
	sched *Scheduler

	mu       sync.Mutex
	fd       int
	domain   Domain
	protocol Protocol
	role     Role
	created  bool
	closed   bool

	closeOnce sync.Once
}

// NewSocket returns a Socket bound to sched but without an underlying fd
// yet; the fd is created lazily, once Bind or Connect determines the
// address family.
func NewSocket(sched *Scheduler, protocol Protocol) *Socket {
	return &Socket{sched: sched, protocol: protocol}
}

// wrapPeerSocket adapts an already-open, already-nonblocking fd (from
// accept4) into a Socket inheriting the listening socket's domain and
// protocol (§4.D accept: "wraps the new fd as a Peer socket with inherited
// domain").
func wrapPeerSocket(sched *Scheduler, fd int, domain Domain, protocol Protocol) *Socket {
	return &Socket{
		sched:    sched,
		fd:       fd,
		domain:   domain,
		protocol: protocol,
		role:     RolePeer,
		created:  true,
	}
}

func (s *Socket) ensureCreated(domain Domain) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.created {
		if s.domain != domain {
			return newError(CodeInvalidArgument, "socket already created for a different domain", nil)
		}
		return nil
	}
	family := unix.AF_INET
	if domain == DomainIPv6 {
		family = unix.AF_INET6
	}
	fd, err := unix.Socket(family, s.protocol.sockType()|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return &SetupError{Op: "socket", Cause: wrapErrno(err)}
	}
	s.fd = fd
	s.domain = domain
	s.created = true
	return nil
}

// Fd returns the underlying file descriptor. Only meaningful once the
// Socket has been created (after Bind, Connect, or as a value returned by
// Accept).
func (s *Socket) Fd() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fd
}

// Domain returns the address family the Socket was created with, or
// DomainIPv4 if it has not been created yet.
func (s *Socket) Domain() Domain {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.domain
}

// Role returns the Socket's current lifecycle role.
func (s *Socket) Role() Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.role
}

// Bind creates the fd (if needed), sets SO_REUSEADDR, and binds to addr.
func (s *Socket) Bind(addr SocketAddress) error {
	if err := s.ensureCreated(addr.Domain()); err != nil {
		return err
	}
	fd := s.Fd()
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return &SetupError{Op: "setsockopt(SO_REUSEADDR)", Cause: wrapErrno(err)}
	}
	if err := unix.Bind(fd, addr.sockaddr()); err != nil {
		return &SetupError{Op: "bind", Cause: wrapErrno(err)}
	}
	return nil
}

// Listen transitions the Socket to the Server role (§4.E).
func (s *Socket) Listen(backlog int) error {
	if err := unix.Listen(s.Fd(), backlog); err != nil {
		return &SetupError{Op: "listen", Cause: wrapErrno(err)}
	}
	s.mu.Lock()
	s.role = RoleServer
	s.mu.Unlock()
	return nil
}

// Connect creates the fd (if needed) and drives a non-blocking connect(2)
// to completion, suspending the calling Task until the connection settles
// (§4.D connect). On success the Socket transitions to the Peer role.
func (s *Socket) Connect(ctx context.Context, addr SocketAddress) error {
	if err := s.ensureCreated(addr.Domain()); err != nil {
		return err
	}
	if err := connect(ctx, s.sched, s.Fd(), addr.sockaddr()); err != nil {
		return err
	}
	s.mu.Lock()
	s.role = RolePeer
	s.mu.Unlock()
	return nil
}

// Accept suspends the calling Task until a new connection arrives on a
// Server-role Socket, returning it as a Peer-role Socket (§4.D accept).
func (s *Socket) Accept(ctx context.Context) (*Socket, error) {
	fd, sa, err := accept(ctx, s.sched, s.Fd())
	if err != nil {
		return nil, err
	}
	domain := s.Domain()
	if sa != nil {
		if resolved, aerr := addressFromSockaddr(sa); aerr == nil {
			domain = resolved.Domain()
		}
	}
	return wrapPeerSocket(s.sched, fd, domain, s.protocol), nil
}

// Read suspends the calling Task until the socket is readable and performs
// one non-blocking read into buf (§4.D read).
func (s *Socket) Read(ctx context.Context, buf []byte) (int, error) {
	return read(ctx, s.sched, s.Fd(), buf)
}

// Write suspends the calling Task until the socket is writable and
// performs one non-blocking write of buf (§4.D write). Callers that need to
// commit an entire buffer must loop, accumulating partial writes
// themselves — the awaiter surface only ever performs one syscall.
func (s *Socket) Write(ctx context.Context, buf []byte) (int, error) {
	return write(ctx, s.sched, s.Fd(), buf)
}

// Close unsubscribes the fd from the scheduler's poller, then closes it
// (§3 invariant 4, §4.E destructor). Idempotent and safe to call more than
// once; never panics.
func (s *Socket) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		fd := s.fd
		created := s.created
		s.closed = true
		s.mu.Unlock()
		if !created {
			return
		}
		s.sched.abortFd(fd)
		err = unix.Close(fd)
	})
	return err
}
