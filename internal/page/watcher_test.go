package page

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatpilot/internal/script"
)

type watchHarness struct {
	sched     *fakeScheduler
	session   *Session
	dom       *fakeDOM
	completes int
	watcher   *Watcher
}

func newWatchHarness(profile script.TimeoutProfile) *watchHarness {
	h := &watchHarness{sched: newFakeScheduler(), dom: newFakeDOM()}
	h.session = NewSession(context.Background(), h.sched, "https://www.kimi.com/", testLogger())
	h.watcher = NewWatcher(h.dom, profile, script.DefaultChains(), func() { h.completes++ }, testLogger())
	return h
}

func TestWatcherFiresOnceOnStreamingEdge(t *testing.T) {
	h := newWatchHarness(script.DefaultProfile())
	h.dom.streamSeq = []bool{false, true, true, false}

	require.True(t, h.watcher.Start(h.session.Current()))

	h.sched.Advance(2 * time.Second) // tick 1: idle
	h.sched.Advance(500 * time.Millisecond)
	h.sched.Advance(500 * time.Millisecond) // ticks 2 and 3: streaming
	assert.Equal(t, 0, h.completes)

	h.sched.Advance(500 * time.Millisecond) // tick 4: indicator gone
	assert.Equal(t, 1, h.completes)
	assert.False(t, h.session.Current().Watching())

	h.sched.Advance(time.Minute)
	assert.Equal(t, 1, h.completes)
	assert.Equal(t, 0, h.sched.Pending())
}

func TestWatcherIgnoresIdlePage(t *testing.T) {
	h := newWatchHarness(script.DefaultProfile())
	h.dom.streamSeq = []bool{false, false, false}

	h.watcher.Start(h.session.Current())
	h.sched.Advance(10 * time.Second)

	assert.Equal(t, 0, h.completes)
	assert.True(t, h.session.Current().Watching(), "still polling within the check budget")
}

func TestWatcherSingleSessionPerLoad(t *testing.T) {
	h := newWatchHarness(script.DefaultProfile())
	h.dom.streamSeq = []bool{true, false}

	load := h.session.Current()
	require.True(t, h.watcher.Start(load))
	assert.False(t, h.watcher.Start(load))

	h.sched.Advance(3 * time.Second)
	assert.Equal(t, 1, h.completes, "the duplicate start did not add a second poller")
	assert.True(t, h.watcher.Start(load), "a finished watch frees the session")
}

func TestWatcherGivesUpSilentlyAfterMaxChecks(t *testing.T) {
	profile := script.DefaultProfile()
	profile.MaxWatcherChecks = 3
	h := newWatchHarness(profile)
	h.dom.streamSeq = []bool{true, true, true, true, true}

	load := h.session.Current()
	h.watcher.Start(load)
	h.sched.Advance(2*time.Second + 3*500*time.Millisecond)

	assert.Equal(t, 0, h.completes)
	assert.False(t, load.Watching())
	assert.Equal(t, 3, h.dom.queries[script.DefaultChains().StreamIndicator[0]])
	assert.True(t, h.watcher.Start(load))
}

func TestWatcherProbeErrorCountsAsCheck(t *testing.T) {
	profile := script.DefaultProfile()
	profile.MaxWatcherChecks = 2
	h := newWatchHarness(profile)
	h.dom.streamSeq = []bool{false, false}
	h.dom.streamErrs = []bool{true, true}

	load := h.session.Current()
	h.watcher.Start(load)
	h.sched.Advance(3 * time.Second)

	assert.False(t, load.Watching())
	assert.Equal(t, 0, h.completes)
}

func TestWatcherProbeErrorKeepsLatch(t *testing.T) {
	h := newWatchHarness(script.DefaultProfile())
	h.dom.streamSeq = []bool{true, false, false}
	h.dom.streamErrs = []bool{false, true}

	h.watcher.Start(h.session.Current())
	h.sched.Advance(2*time.Second + 500*time.Millisecond)
	assert.Equal(t, 0, h.completes, "a failed check is not an idle observation")

	h.sched.Advance(500 * time.Millisecond)
	assert.Equal(t, 1, h.completes)
}

func TestWatcherStopsOnNavigation(t *testing.T) {
	h := newWatchHarness(script.DefaultProfile())
	h.dom.streamSeq = []bool{true, false}

	h.watcher.Start(h.session.Current())
	h.sched.Advance(2 * time.Second)
	next := h.session.Navigated("https://www.kimi.com/chat/abc")
	h.sched.Advance(time.Minute)

	assert.Equal(t, 0, h.completes)
	assert.True(t, h.watcher.Start(next), "the new load has its own watcher session")
}
