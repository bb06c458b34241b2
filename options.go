package bc

import "time"

// schedulerOptions holds the resolved configuration for a Scheduler.
// Unexported, mutated only by applying SchedulerOption values in order —
// mirrors the teacher package's loopOptions/LoopOption pattern.
type schedulerOptions struct {
	defaultSlice time.Duration
	logger       Logger
	pollerSize   int
}

func defaultSchedulerOptions() schedulerOptions {
	return schedulerOptions{
		defaultSlice: time.Second,
		logger:       getGlobalLogger(),
		pollerSize:   64,
	}
}

// SchedulerOption configures a Scheduler at construction time.
type SchedulerOption interface {
	apply(*schedulerOptions)
}

type schedulerOptionFunc func(*schedulerOptions)

func (f schedulerOptionFunc) apply(o *schedulerOptions) { f(o) }

// WithDefaultSlice overrides the 1s default poll slice used by the run loop
// when no timer is due sooner (§4.B step 2).
func WithDefaultSlice(d time.Duration) SchedulerOption {
	return schedulerOptionFunc(func(o *schedulerOptions) {
		if d > 0 {
			o.defaultSlice = d
		}
	})
}

// WithLogger overrides the scheduler's diagnostic sink. Passing nil resets
// it to a NoOpLogger.
func WithLogger(l Logger) SchedulerOption {
	return schedulerOptionFunc(func(o *schedulerOptions) {
		if l == nil {
			l = NoOpLogger{}
		}
		o.logger = l
	})
}

// WithPollerSize seeds the initial epoll event buffer capacity. The buffer
// still grows on demand; this only avoids early reallocations for workloads
// known to register many fds up front.
func WithPollerSize(n int) SchedulerOption {
	return schedulerOptionFunc(func(o *schedulerOptions) {
		if n > 0 {
			o.pollerSize = n
		}
	})
}

func resolveSchedulerOptions(opts []SchedulerOption) schedulerOptions {
	o := defaultSchedulerOptions()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.apply(&o)
	}
	return o
}
