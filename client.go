package bc

import "context"

// Client connects a Socket and hands it to a user-supplied handler Task,
// mirroring the original client.hpp's async_connect-then-spawn shape
// (§2.3 SUPPLEMENTED FEATURES).
type Client[P any] struct {
	sched *Scheduler
}

// NewClient returns a Client bound to sched, ready to Dial.
func NewClient[P any](sched *Scheduler) *Client[P] {
	return &Client[P]{sched: sched}
}

// Dial connects to addr and, on success, spawns handler against the
// resulting Peer-role Socket as a root Task. The returned Task settles with
// the handler's result, or with the connect error if the connection never
// completes.
func (c *Client[P]) Dial(ctx context.Context, protocol Protocol, addr SocketAddress, handler func(ctx context.Context, peer *Socket) (P, error)) *Task[P] {
	return Spawn(ctx, c.sched, func(ctx context.Context) (P, error) {
		sock := NewSocket(c.sched, protocol)
		if err := sock.Connect(ctx, addr); err != nil {
			var zero P
			return zero, err
		}
		return handler(ctx, sock)
	})
}
