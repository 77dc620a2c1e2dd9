// Package task provides the cooperative stepping primitive that stack
// lifecycle operations run on. A Runner executes one long-lived function in
// the background while the caller polls Step from its own scheduling loop;
// Step never blocks, which lets one loop interleave progress across many
// sibling operations without dedicating a goroutine-per-poller.
package task

import (
	"context"
	"time"

	"github.com/zhangknight/heat/internal/ctxlog"
)

// Task is a cancellable, resumable unit of asynchronous work. Start begins
// execution without blocking; Step advances the caller's view by one
// scheduling quantum and returns true exactly once the work has reached a
// terminal state. The caller owns the repetition loop.
type Task interface {
	Start(timeout time.Duration)
	Step() bool
}

// Func is the body of a task. It must honor ctx cancellation; exceeding the
// deadline bound at Start surfaces as ctx expiry inside the function.
type Func func(ctx context.Context) error

// Runner is the polling-future implementation of Task. It is owned by a
// single caller for the duration of one lifecycle action and must not be
// shared across goroutines.
type Runner struct {
	name string
	fn   Func
	ctx  context.Context

	cancel context.CancelFunc
	done   chan struct{}
	// err is written by the background goroutine before done is closed and
	// read by the caller only after Step has returned true.
	err      error
	finished bool
}

// NewRunner wraps fn into a Runner. The context carries the logger and the
// caller's cancellation scope; the name identifies the task in logs.
func NewRunner(ctx context.Context, name string, fn Func) *Runner {
	return &Runner{name: name, fn: fn, ctx: ctx}
}

// Start launches the task in the background. A positive timeout bounds the
// task with a deadline; zero leaves it bounded only by the parent context.
// Start must be called exactly once, before any call to Step.
func (r *Runner) Start(timeout time.Duration) {
	logger := ctxlog.FromContext(r.ctx).With("task", r.name)

	ctx := r.ctx
	if timeout > 0 {
		ctx, r.cancel = context.WithTimeout(ctx, timeout)
	} else {
		ctx, r.cancel = context.WithCancel(ctx)
	}

	r.done = make(chan struct{})
	logger.Debug("Task started.", "timeout", timeout)
	go func() {
		r.err = r.fn(ctx)
		close(r.done)
	}()
}

// Step reports whether the task has reached a terminal state. It never
// blocks. It returns true on the first call after the task finished and on
// every call thereafter; callers are expected to stop polling once it does.
func (r *Runner) Step() bool {
	if r.done == nil {
		return false
	}
	if r.finished {
		return true
	}
	select {
	case <-r.done:
		r.finished = true
		if r.cancel != nil {
			r.cancel()
		}
		ctxlog.FromContext(r.ctx).Debug("Task finished.", "task", r.name, "error", r.err)
		return true
	default:
		return false
	}
}

// Err returns the task's terminal error. It is only meaningful after Step
// has returned true.
func (r *Runner) Err() error {
	if !r.finished {
		return nil
	}
	return r.err
}

// Cancel aborts a running task. The task observes the cancellation through
// its context and still reports done through Step.
func (r *Runner) Cancel() {
	if r.cancel != nil {
		r.cancel()
	}
}
