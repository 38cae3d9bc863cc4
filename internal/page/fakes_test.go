package page

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"chatpilot/internal/script"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeScheduler is a virtual clock. Callbacks run on the test goroutine
// inside Advance, in due-time order, FIFO for equal times.
type fakeScheduler struct {
	now   time.Duration
	seq   int
	queue []*fakeTimer
}

type fakeTimer struct {
	due     time.Duration
	seq     int
	fn      func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

func newFakeScheduler() *fakeScheduler { return &fakeScheduler{} }

func (s *fakeScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	s.seq++
	t := &fakeTimer{due: s.now + d, seq: s.seq, fn: fn}
	s.queue = append(s.queue, t)
	return t
}

// Advance moves the clock forward by d, running every callback that becomes
// due, including ones scheduled by earlier callbacks.
func (s *fakeScheduler) Advance(d time.Duration) {
	target := s.now + d
	for {
		next := s.nextDue(target)
		if next == nil {
			break
		}
		s.now = next.due
		next.fired = true
		next.fn()
	}
	s.now = target
}

func (s *fakeScheduler) nextDue(limit time.Duration) *fakeTimer {
	live := s.queue[:0]
	for _, t := range s.queue {
		if !t.stopped && !t.fired {
			live = append(live, t)
		}
	}
	s.queue = live
	sort.SliceStable(s.queue, func(i, j int) bool {
		if s.queue[i].due != s.queue[j].due {
			return s.queue[i].due < s.queue[j].due
		}
		return s.queue[i].seq < s.queue[j].seq
	})
	if len(s.queue) == 0 || s.queue[0].due > limit {
		return nil
	}
	return s.queue[0]
}

// Pending counts live timers.
func (s *fakeScheduler) Pending() int {
	n := 0
	for _, t := range s.queue {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// fakeDOM matches selectors against a fixed set of present selectors.
type fakeDOM struct {
	mu       sync.Mutex
	present  map[string]ElementInfo
	queryErr error
	failOn   map[string]error // method name -> error

	calls      []string
	queries    map[string]int // first selector of chain -> count
	signals    PageSignals
	sigErr     error
	sw         bool
	reloads    int
	streamSeq  []bool // consumed by stream-indicator queries
	streamErrs []bool // true at index i makes check i fail
	streamIdx  int
}

var errFake = errors.New("fake failure")

func newFakeDOM() *fakeDOM {
	return &fakeDOM{
		present: make(map[string]ElementInfo),
		failOn:  make(map[string]error),
		queries: make(map[string]int),
	}
}

func (f *fakeDOM) add(selector string, info ElementInfo) {
	f.present[selector] = info
}

func (f *fakeDOM) record(call string) error {
	f.calls = append(f.calls, call)
	if err, ok := f.failOn[call]; ok {
		return err
	}
	return nil
}

func (f *fakeDOM) Query(_ context.Context, chain script.SelectorChain) (ElementInfo, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(chain) > 0 {
		f.queries[chain[0]]++
	}
	if f.streamSeq != nil && len(chain) > 0 && chain[0] == script.DefaultChains().StreamIndicator[0] {
		i := f.streamIdx
		f.streamIdx++
		if i < len(f.streamErrs) && f.streamErrs[i] {
			return ElementInfo{}, false, errFake
		}
		if i < len(f.streamSeq) {
			return ElementInfo{Handle: "stop"}, f.streamSeq[i], nil
		}
		return ElementInfo{}, false, nil
	}
	if f.queryErr != nil {
		return ElementInfo{}, false, f.queryErr
	}
	for _, sel := range chain {
		if info, ok := f.present[sel]; ok {
			return info, true, nil
		}
	}
	return ElementInfo{}, false, nil
}

func (f *fakeDOM) Focus(_ context.Context, h Handle) error {
	return f.record("focus:" + string(h))
}

func (f *fakeDOM) SetEditable(_ context.Context, h Handle) error {
	return f.record("editable:" + string(h))
}

func (f *fakeDOM) Clear(_ context.Context, h Handle) error {
	return f.record("clear:" + string(h))
}

func (f *fakeDOM) InsertText(_ context.Context, h Handle, text string) error {
	return f.record("insert:" + string(h) + ":" + text)
}

func (f *fakeDOM) AppendText(_ context.Context, h Handle, text string) error {
	return f.record("append:" + string(h) + ":" + text)
}

func (f *fakeDOM) SetValue(_ context.Context, h Handle, text string) error {
	return f.record("value:" + string(h) + ":" + text)
}

func (f *fakeDOM) Dispatch(_ context.Context, h Handle, ev DOMEvent) error {
	name := ev.Type
	if ev.Key != "" {
		name += "(" + ev.Key + ")"
	}
	if ev.Data != "" {
		name += "[" + ev.Data + "]"
	}
	return f.record("dispatch:" + string(h) + ":" + name)
}

func (f *fakeDOM) Click(_ context.Context, h Handle) error {
	return f.record("click:" + string(h))
}

func (f *fakeDOM) Signals(_ context.Context, _ script.SelectorChain) (PageSignals, error) {
	return f.signals, f.sigErr
}

func (f *fakeDOM) ServiceWorkerRegistered(_ context.Context) (bool, error) {
	return f.sw, nil
}

func (f *fakeDOM) Reload(_ context.Context) error {
	f.reloads++
	return f.record("reload")
}

type memoryGuardStore struct {
	counts map[string]int
	err    error
}

func newMemoryGuardStore() *memoryGuardStore {
	return &memoryGuardStore{counts: make(map[string]int)}
}

func (m *memoryGuardStore) GetCount(_ context.Context, key string) (int, error) {
	return m.counts[key], m.err
}

func (m *memoryGuardStore) SetCount(_ context.Context, key string, n int) error {
	if m.err != nil {
		return m.err
	}
	m.counts[key] = n
	return nil
}

func (m *memoryGuardStore) Clear(_ context.Context, key string) error {
	if m.err != nil {
		return m.err
	}
	delete(m.counts, key)
	return nil
}

type fakeNav struct {
	offline int
	chat    int
}

func (n *fakeNav) NavigateToOffline(context.Context) error {
	n.offline++
	return nil
}

func (n *fakeNav) NavigateToChat(context.Context) error {
	n.chat++
	return nil
}
