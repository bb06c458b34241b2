package bc

import (
	"context"
)

// serverBacklog mirrors the original server<Protocol, Domain>'s fixed
// s_backlog of 100 pending connections.
const serverBacklog = 100

// Server owns a listening Socket and runs an accept loop as a root
// Task[struct{}], spawning one child Task per accepted peer and reaping
// completed children every iteration — the Go shape of the original
// server.hpp's run_/clients_ design (§2.3 SUPPLEMENTED FEATURES).
type Server[P any] struct {
	sched   *Scheduler
	sock    *Socket
	handler func(ctx context.Context, peer *Socket) (P, error)

	clients []*Task[P]
}

// NewServer binds and listens on addr, ready to be started with Run.
func NewServer[P any](sched *Scheduler, protocol Protocol, addr SocketAddress, handler func(ctx context.Context, peer *Socket) (P, error)) (*Server[P], error) {
	sock := NewSocket(sched, protocol)
	if err := sock.Bind(addr); err != nil {
		return nil, err
	}
	if err := sock.Listen(serverBacklog); err != nil {
		sock.Close()
		return nil, err
	}
	return &Server[P]{sched: sched, sock: sock, handler: handler}, nil
}

// Run spawns the accept loop as a root Task and returns it. The loop
// accepts connections until ctx is cancelled or the listening socket is
// closed, spawning one child Task per peer via the Server's handler and
// reaping finished children on each pass, exactly as the original
// run_() method scans clients_ every iteration.
func (srv *Server[P]) Run(ctx context.Context) *Task[struct{}] {
	return Spawn(ctx, srv.sched, func(ctx context.Context) (struct{}, error) {
		for {
			peer, err := srv.sock.Accept(ctx)
			if err != nil {
				return struct{}{}, err
			}
			srv.clients = append(srv.clients, Spawn(ctx, srv.sched, func(ctx context.Context) (P, error) {
				return srv.handler(ctx, peer)
			}))
			srv.reapClients()
		}
	})
}

func (srv *Server[P]) reapClients() {
	alive := srv.clients[:0]
	for _, c := range srv.clients {
		if !c.Done() {
			alive = append(alive, c)
		}
	}
	srv.clients = alive
}

// Close closes the listening socket. Before the fd is closed, any parked
// Accept is failed at once with epoll_error, so the accept loop's root Task
// settles (§8 scenario 3: accept cancellation via close).
func (srv *Server[P]) Close() error {
	return srv.sock.Close()
}
