package page

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Load is the state scoped to one page load: its timers, the load signal and
// the watcher session flag. Teardown discards all of it, the same way a
// navigation wipes the page's own script state.
type Load struct {
	id     uint64
	url    string
	ctx    context.Context
	cancel context.CancelFunc
	sched  Scheduler

	mu          sync.Mutex
	timers      map[*loadTimer]struct{}
	loaded      bool
	loadWaiters []func()
	watching    bool
	closed      bool
}

func newLoad(parent context.Context, id uint64, url string, sched Scheduler) *Load {
	ctx, cancel := context.WithCancel(parent)
	return &Load{
		id:     id,
		url:    url,
		ctx:    ctx,
		cancel: cancel,
		sched:  sched,
		timers: make(map[*loadTimer]struct{}),
	}
}

// ID identifies the load within its session.
func (l *Load) ID() uint64 { return l.id }

// URL is the main-frame URL the load was created for.
func (l *Load) URL() string { return l.url }

// Context is cancelled on teardown.
func (l *Load) Context() context.Context { return l.ctx }

// Closed reports whether the load was torn down.
func (l *Load) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// AfterFunc schedules fn on the session scheduler. The timer is stopped on
// teardown, and fn is skipped if the load is gone by the time it fires.
func (l *Load) AfterFunc(d time.Duration, fn func()) Timer {
	lt := &loadTimer{load: l}
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return stoppedTimer{}
	}
	l.timers[lt] = struct{}{}
	l.mu.Unlock()

	inner := l.sched.AfterFunc(d, func() {
		l.mu.Lock()
		_, live := l.timers[lt]
		delete(l.timers, lt)
		closed := l.closed
		l.mu.Unlock()
		if live && !closed {
			fn()
		}
	})

	l.mu.Lock()
	lt.inner = inner
	closed := l.closed
	l.mu.Unlock()
	if closed {
		inner.Stop()
	}
	return lt
}

// Loaded reports whether the load event has been observed.
func (l *Load) Loaded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loaded
}

// OnLoad runs fn on the scheduler once the load event is observed. If the
// page is already loaded fn is scheduled immediately.
func (l *Load) OnLoad(fn func()) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	if !l.loaded {
		l.loadWaiters = append(l.loadWaiters, fn)
		l.mu.Unlock()
		return
	}
	l.mu.Unlock()
	l.AfterFunc(0, fn)
}

// MarkLoaded records the load event and releases OnLoad waiters.
func (l *Load) MarkLoaded() {
	l.mu.Lock()
	if l.closed || l.loaded {
		l.mu.Unlock()
		return
	}
	l.loaded = true
	waiters := l.loadWaiters
	l.loadWaiters = nil
	l.mu.Unlock()

	for _, fn := range waiters {
		l.AfterFunc(0, fn)
	}
}

// AcquireWatcher claims the watcher session. It returns false while another
// watcher is active on this load.
func (l *Load) AcquireWatcher() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed || l.watching {
		return false
	}
	l.watching = true
	return true
}

// ReleaseWatcher frees the watcher session.
func (l *Load) ReleaseWatcher() {
	l.mu.Lock()
	l.watching = false
	l.mu.Unlock()
}

// Watching reports whether a watcher holds the session.
func (l *Load) Watching() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.watching
}

// Teardown stops every pending timer, releases the watcher session and
// cancels the load context. It is idempotent.
func (l *Load) Teardown() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	inners := make([]Timer, 0, len(l.timers))
	for t := range l.timers {
		if t.inner != nil {
			inners = append(inners, t.inner)
		}
	}
	l.timers = make(map[*loadTimer]struct{})
	l.loadWaiters = nil
	l.watching = false
	l.mu.Unlock()

	for _, t := range inners {
		t.Stop()
	}
	l.cancel()
}

type loadTimer struct {
	load  *Load
	inner Timer
}

func (t *loadTimer) Stop() bool {
	t.load.mu.Lock()
	_, live := t.load.timers[t]
	delete(t.load.timers, t)
	inner := t.inner
	t.load.mu.Unlock()
	if inner != nil {
		inner.Stop()
	}
	return live
}

type stoppedTimer struct{}

func (stoppedTimer) Stop() bool { return false }

// Session spans the lifetime of the browser tab. It owns the current page
// load and survives navigations and reloads.
type Session struct {
	ctx    context.Context
	sched  Scheduler
	logger *slog.Logger

	mu      sync.Mutex
	nextID  uint64
	current *Load
}

// NewSession creates a session whose first load is for initialURL.
func NewSession(ctx context.Context, sched Scheduler, initialURL string, logger *slog.Logger) *Session {
	s := &Session{ctx: ctx, sched: sched, logger: logger}
	s.current = newLoad(ctx, 1, initialURL, sched)
	s.nextID = 1
	return s
}

// Current returns the live page load.
func (s *Session) Current() *Load {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Navigated tears down the current load and starts a new one for url.
func (s *Session) Navigated(url string) *Load {
	s.mu.Lock()
	prev := s.current
	s.nextID++
	next := newLoad(s.ctx, s.nextID, url, s.sched)
	s.current = next
	s.mu.Unlock()

	if prev != nil {
		prev.Teardown()
	}
	s.logger.Debug("page load started", "load", next.id, "url", url)
	return next
}

// Close tears down the current load.
func (s *Session) Close() {
	s.mu.Lock()
	cur := s.current
	s.mu.Unlock()
	if cur != nil {
		cur.Teardown()
	}
}
