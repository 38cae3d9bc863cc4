package browser

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatpilot/internal/domain"
	"chatpilot/internal/page"
	"chatpilot/internal/usecase/eventbus"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingInvoker struct {
	mu    sync.Mutex
	calls []string
	args  []json.RawMessage
	err   error
}

func (r *recordingInvoker) Invoke(_ context.Context, name string, payload json.RawMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, name)
	r.args = append(r.args, payload)
	return r.err
}

type recordingObserver struct {
	navigated []string
	loaded    []string
}

func (o *recordingObserver) Navigated(url string) { o.navigated = append(o.navigated, url) }
func (o *recordingObserver) Loaded(url string)    { o.loaded = append(o.loaded, url) }

func TestDecodeMessage(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Message
		wantErr bool
	}{
		{
			name: "event with payload",
			raw:  `{"kind":"event","name":"inject-result","payload":{"success":true,"error":null}}`,
			want: Message{Kind: KindEvent, Name: "inject-result", Payload: json.RawMessage(`{"success":true,"error":null}`)},
		},
		{
			name: "invoke without payload",
			raw:  `{"kind":"invoke","name":"navigate_to_offline"}`,
			want: Message{Kind: KindInvoke, Name: "navigate_to_offline", Payload: json.RawMessage(`{}`)},
		},
		{name: "not json", raw: `kind=event`, wantErr: true},
		{name: "unknown kind", raw: `{"kind":"call","name":"x"}`, wantErr: true},
		{name: "missing name", raw: `{"kind":"event"}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeMessage(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRelayPublishesPageEvents(t *testing.T) {
	bus := eventbus.New(testLogger())
	defer bus.Close()
	got := make(chan domain.Event, 1)
	bus.Subscribe(domain.ChannelResponseComplete, func(_ context.Context, e domain.Event) { got <- e })

	r := NewRelay(context.Background(), bus, &recordingInvoker{}, testLogger())
	require.NoError(t, r.HandleMessage(context.Background(), `{"kind":"event","name":"response-complete","payload":{}}`))

	select {
	case e := <-got:
		assert.Equal(t, string(domain.WindowMain), e.Window)
		assert.JSONEq(t, `{}`, string(e.Payload))
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestRelayRejectsHostOnlyChannels(t *testing.T) {
	bus := eventbus.New(testLogger())
	defer bus.Close()
	r := NewRelay(context.Background(), bus, &recordingInvoker{}, testLogger())

	err := r.HandleMessage(context.Background(), `{"kind":"event","name":"settings-changed","payload":{}}`)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRelayForwardsInvokes(t *testing.T) {
	inv := &recordingInvoker{}
	r := NewRelay(context.Background(), eventbus.New(testLogger()), inv, testLogger())

	require.NoError(t, r.HandleMessage(context.Background(),
		`{"kind":"invoke","name":"open_external_link","payload":{"url":"https://example.com"}}`))
	assert.Equal(t, []string{"open_external_link"}, inv.calls)
	assert.JSONEq(t, `{"url":"https://example.com"}`, string(inv.args[0]))

	inv.err = domain.ErrInvalidExternalURL
	err := r.HandleMessage(context.Background(), `{"kind":"invoke","name":"open_external_link","payload":{"url":"javascript:x"}}`)
	assert.ErrorIs(t, err, domain.ErrInvalidExternalURL)
}

func TestRelayTracksPageLoads(t *testing.T) {
	bus := eventbus.New(testLogger())
	defer bus.Close()
	loaded := make(chan domain.PageLoaded, 1)
	bus.Subscribe(domain.ChannelPageLoaded, func(_ context.Context, e domain.Event) {
		var p domain.PageLoaded
		_ = e.Decode(&p)
		loaded <- p
	})

	obs := &recordingObserver{}
	r := NewRelay(context.Background(), bus, &recordingInvoker{}, testLogger(), obs)
	r.FrameNavigated("https://www.kimi.com/chat/1")
	r.LoadFired(context.Background())

	assert.Equal(t, "https://www.kimi.com/chat/1", r.URL())
	assert.Equal(t, []string{"https://www.kimi.com/chat/1"}, obs.navigated)
	assert.Equal(t, []string{"https://www.kimi.com/chat/1"}, obs.loaded)
	select {
	case p := <-loaded:
		assert.Equal(t, "https://www.kimi.com/chat/1", p.URL)
	case <-time.After(2 * time.Second):
		t.Fatal("page-loaded not emitted")
	}
}

type noopTimer struct{}

func (noopTimer) Stop() bool { return false }

type manualScheduler struct{ fns []func() }

func (s *manualScheduler) AfterFunc(_ time.Duration, fn func()) page.Timer {
	s.fns = append(s.fns, fn)
	return noopTimer{}
}

func TestSessionObserver(t *testing.T) {
	sess := page.NewSession(context.Background(), &manualScheduler{}, "about:blank", testLogger())
	first := sess.Current()
	obs := SessionObserver{Session: sess}

	obs.Navigated("https://www.kimi.com/")
	assert.True(t, first.Closed())
	assert.Equal(t, "https://www.kimi.com/", sess.Current().URL())

	obs.Loaded("https://www.kimi.com/")
	assert.True(t, sess.Current().Loaded())
}
