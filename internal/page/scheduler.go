// Package page holds the host-side model of the chat page: a cooperative
// scheduler, the page session and page-load contexts, the DOM capability
// port, and the injection, watcher and connectivity state machines that run
// against it when the driver strategy is selected.
package page

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Timer is a pending scheduled callback.
type Timer interface {
	// Stop prevents the callback from running. It reports whether the call
	// stopped the callback before it ran.
	Stop() bool
}

// Scheduler runs callbacks after a delay. Implementations must run all
// callbacks one at a time so state machines need no locking.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

// Loop is a single-goroutine cooperative scheduler. Callbacks never run
// concurrently with each other.
type Loop struct {
	tasks  chan func()
	logger *slog.Logger

	once sync.Once
	done chan struct{}
}

// NewLoop creates a loop. Call Run to start processing.
func NewLoop(logger *slog.Logger) *Loop {
	return &Loop{
		tasks:  make(chan func(), 64),
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Run processes callbacks until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) {
	defer l.once.Do(func() { close(l.done) })
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-l.tasks:
			l.run(fn)
		}
	}
}

func (l *Loop) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("page loop callback panicked", "panic", r)
		}
	}()
	fn()
}

// Post queues fn to run on the loop. It reports false once the loop stopped.
func (l *Loop) Post(fn func()) bool {
	// A stopped loop still has buffer space, so done must win over the send.
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case <-l.done:
		return false
	case l.tasks <- fn:
		return true
	}
}

// AfterFunc schedules fn on the loop after d.
func (l *Loop) AfterFunc(d time.Duration, fn func()) Timer {
	t := &loopTimer{}
	t.timer = time.AfterFunc(d, func() {
		l.Post(func() {
			if t.fired.CompareAndSwap(false, true) {
				fn()
			}
		})
	})
	return t
}

type loopTimer struct {
	timer *time.Timer
	fired atomic.Bool
}

// Stop also cancels a callback that was already queued but has not run yet.
func (t *loopTimer) Stop() bool {
	t.timer.Stop()
	return t.fired.CompareAndSwap(false, true)
}
