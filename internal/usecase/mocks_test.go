package usecase

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"

	"chatpilot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- Mocks ---

type mockWindows struct {
	mu       sync.Mutex
	calls    []string
	visible  map[domain.Window]bool
	focused  bool
	focusErr error
	errs     map[string]error // keyed by "op:window"
}

func newMockWindows() *mockWindows {
	return &mockWindows{visible: map[domain.Window]bool{}, errs: map[string]error{}}
}

func (m *mockWindows) record(op string, w domain.Window, extra string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	call := op + ":" + string(w)
	if extra != "" {
		call += ":" + extra
	}
	m.calls = append(m.calls, call)
	return m.errs[op+":"+string(w)]
}

func (m *mockWindows) Show(_ context.Context, w domain.Window) error {
	err := m.record("show", w, "")
	if err == nil {
		m.mu.Lock()
		m.visible[w] = true
		m.mu.Unlock()
	}
	return err
}

func (m *mockWindows) Hide(_ context.Context, w domain.Window) error {
	err := m.record("hide", w, "")
	if err == nil {
		m.mu.Lock()
		m.visible[w] = false
		m.mu.Unlock()
	}
	return err
}

func (m *mockWindows) Focus(_ context.Context, w domain.Window) error {
	return m.record("focus", w, "")
}

func (m *mockWindows) Navigate(_ context.Context, w domain.Window, url string) error {
	return m.record("navigate", w, url)
}

func (m *mockWindows) IsVisible(_ context.Context, w domain.Window) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.visible[w], nil
}

func (m *mockWindows) IsFocused(_ context.Context, _ domain.Window) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.focused, m.focusErr
}

func (m *mockWindows) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

type mockScripts struct {
	mu      sync.Mutex
	scripts []string
	err     error
}

func (m *mockScripts) Evaluate(_ context.Context, _ domain.Window, js string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts = append(m.scripts, js)
	return m.err
}

func (m *mockScripts) Scripts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.scripts...)
}

type mockKV struct {
	mu       sync.Mutex
	data     map[string]json.RawMessage
	flushed  int
	getErr   error
	flushErr error
}

func newMockKV() *mockKV { return &mockKV{data: map[string]json.RawMessage{}} }

func (m *mockKV) Get(_ context.Context, key string) (json.RawMessage, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *mockKV) Set(_ context.Context, key string, value json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *mockKV) Flush(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.flushErr != nil {
		return m.flushErr
	}
	m.flushed++
	return nil
}

type mockNotifier struct {
	mu   sync.Mutex
	sent []domain.Notification
	err  error
}

func (m *mockNotifier) Notify(_ context.Context, n domain.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, n)
	return m.err
}

func (m *mockNotifier) Sent() []domain.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Notification(nil), m.sent...)
}

type mockOpener struct {
	opened []string
	err    error
}

func (m *mockOpener) Open(url string) error {
	m.opened = append(m.opened, url)
	return m.err
}

// mockDriver records driver calls. With online set it also handles the
// online transition.
type mockDriver struct {
	mu        sync.Mutex
	calls     []string
	injectErr error
	watchErr  error
}

func (m *mockDriver) add(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

func (m *mockDriver) Inject(_ context.Context, req domain.InjectionRequest, runID string) error {
	m.add("inject:" + runID + ":" + req.Message)
	return m.injectErr
}

func (m *mockDriver) Watch(context.Context) error {
	m.add("watch")
	return m.watchErr
}

func (m *mockDriver) MonitorConnectivity(context.Context) error {
	m.add("monitor")
	return nil
}

func (m *mockDriver) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

type mockOnlineDriver struct {
	mockDriver
	online chan string
}

func (m *mockOnlineDriver) OnOnline(_ context.Context, url string) error {
	m.online <- url
	return nil
}

// recordingWait records requested waits without sleeping.
type recordingWait struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (r *recordingWait) Wait(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.waits = append(r.waits, d)
	return nil
}
