// Package bc implements a single-threaded asynchronous I/O runtime: a
// cooperative task scheduler paired with a readiness-based reactor and a set
// of awaitable socket primitives.
//
// # Architecture
//
// A [Scheduler] owns one run loop ([Scheduler.Run]) that multiplexes any
// number of [Task] values over a small epoll-managed set of file
// descriptors, resuming each task when the kernel reports its descriptor
// ready, or when a [Sleep] deadline expires. There is no preemption: a task
// only ever suspends at an explicit awaiter (Sleep, Socket.Accept,
// Socket.Read, Socket.Write, Socket.Connect, or [Await]ing another Task).
//
// Go has no native stackless coroutines, so suspension is emulated: every
// [Task] runs its body on its own goroutine, and a strict rendezvous-channel
// handoff protocol guarantees that only one goroutine is ever actively
// running scheduler-owned state at a time. See task.go for the mechanics.
//
// # Platform Support
//
// I/O polling is implemented with Linux epoll via golang.org/x/sys/unix; see
// poller_linux.go.
//
// # Usage
//
//	sched, err := bc.NewScheduler()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	root := bc.Spawn(context.Background(), sched, func(ctx context.Context) (struct{}, error) {
//	    addr, err := bc.NewSocketAddress("127.0.0.1", 9000)
//	    if err != nil {
//	        return struct{}{}, err
//	    }
//	    sock := bc.NewSocket(sched, bc.TCP)
//	    if err := sock.Connect(ctx, addr); err != nil {
//	        return struct{}{}, err
//	    }
//	    defer sock.Close()
//
//	    _, err = sock.Write(ctx, []byte("hello"))
//	    return struct{}{}, err
//	})
//
//	if err := sched.Run(); err != nil {
//	    log.Fatal(err)
//	}
//	_, err = root.Result()
package bc
