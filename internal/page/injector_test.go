package page

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatpilot/internal/domain"
	"chatpilot/internal/script"
)

type injectHarness struct {
	sched    *fakeScheduler
	session  *Session
	dom      *fakeDOM
	outcomes []domain.InjectionOutcome
	injector *Injector
}

func newInjectHarness(t *testing.T, profile script.TimeoutProfile) *injectHarness {
	t.Helper()
	h := &injectHarness{sched: newFakeScheduler(), dom: newFakeDOM()}
	h.session = NewSession(context.Background(), h.sched, "https://www.kimi.com/", testLogger())
	h.injector = NewInjector(h.dom, profile, script.DefaultChains(), func(o domain.InjectionOutcome) {
		h.outcomes = append(h.outcomes, o)
	}, testLogger())
	return h
}

func (h *injectHarness) start(msg string) *Run {
	return h.injector.Start(h.session.Current(), domain.InjectionRequest{Message: msg}, "run-1")
}

func TestInjectMarkedEditorHappyPath(t *testing.T) {
	h := newInjectHarness(t, script.DefaultProfile())
	h.session.Current().MarkLoaded()
	h.dom.add(".chat-input-editor", ElementInfo{Handle: "in", Marked: true, Editable: true})
	h.dom.add(".send-button-container:not(.disabled)", ElementInfo{Handle: "send"})

	run := h.start("hello")
	h.sched.Advance(0)
	assert.Equal(t, StateAwaitSettle, run.State())

	h.sched.Advance(200 * time.Millisecond)
	assert.Equal(t, StateFilling, run.State(), "waiting on the focus delay")
	assert.Equal(t, []string{"editable:in", "focus:in"}, h.dom.calls)

	h.sched.Advance(50 * time.Millisecond)
	assert.Equal(t, StateAwaitSubmitDelay, run.State())

	h.sched.Advance(300 * time.Millisecond)
	require.Len(t, h.outcomes, 1)
	assert.True(t, h.outcomes[0].Success)
	assert.Equal(t, "run-1", h.outcomes[0].Run)
	assert.Equal(t, StateSucceeded, run.State())
	assert.Equal(t, []string{
		"editable:in", "focus:in", "clear:in", "insert:in:hello", "dispatch:in:input", "click:send",
	}, h.dom.calls)

	// The global timer was cancelled with the terminal transition.
	h.sched.Advance(10 * time.Second)
	assert.Len(t, h.outcomes, 1)
	assert.Equal(t, 0, h.sched.Pending())
}

func TestInjectRichEditorFill(t *testing.T) {
	h := newInjectHarness(t, script.DefaultProfile())
	h.session.Current().MarkLoaded()
	h.dom.add(`div[contenteditable="true"]`, ElementInfo{Handle: "ce", Editable: true})
	h.dom.add(`button[type="submit"]`, ElementInfo{Handle: "btn"})

	h.start("hi")
	h.sched.Advance(time.Second)

	require.Len(t, h.outcomes, 1)
	assert.True(t, h.outcomes[0].Success)
	assert.Equal(t, []string{
		"focus:ce", "clear:ce", "append:ce:hi", "dispatch:ce:input[hi]", "click:btn",
	}, h.dom.calls)
}

func TestInjectPlainInputFill(t *testing.T) {
	h := newInjectHarness(t, script.DefaultProfile())
	h.session.Current().MarkLoaded()
	h.dom.add("textarea", ElementInfo{Handle: "ta"})
	h.dom.add("form button:last-of-type", ElementInfo{Handle: "last"})

	h.start("msg")
	h.sched.Advance(time.Second)

	require.Len(t, h.outcomes, 1)
	assert.Equal(t, []string{
		"value:ta:msg", "dispatch:ta:input", "dispatch:ta:change", "focus:ta", "click:last",
	}, h.dom.calls)
}

func TestInjectChainPriority(t *testing.T) {
	h := newInjectHarness(t, script.DefaultProfile())
	h.session.Current().MarkLoaded()
	h.dom.add("textarea", ElementInfo{Handle: "low"})
	h.dom.add(`textarea[placeholder*="Ask"]`, ElementInfo{Handle: "high"})

	h.start("x")
	h.sched.Advance(time.Second)

	require.Len(t, h.outcomes, 1)
	assert.Contains(t, h.dom.calls, "value:high:x")
	assert.NotContains(t, h.dom.calls, "value:low:x")
}

func TestInjectEnterFallbackWithoutSendButton(t *testing.T) {
	h := newInjectHarness(t, script.DefaultProfile())
	h.session.Current().MarkLoaded()
	h.dom.add("textarea", ElementInfo{Handle: "ta"})

	h.start("x")
	h.sched.Advance(time.Second)

	require.Len(t, h.outcomes, 1)
	assert.True(t, h.outcomes[0].Success, "missing send control still reports success")
	assert.Equal(t, "dispatch:ta:keydown(Enter)", h.dom.calls[len(h.dom.calls)-1])
}

func TestInjectRetryBoundIsExact(t *testing.T) {
	profile := script.DefaultProfile()
	h := newInjectHarness(t, profile)
	h.session.Current().MarkLoaded()

	run := h.start("x")
	h.sched.Advance(profile.InjectionTotal)

	require.Len(t, h.outcomes, 1)
	assert.False(t, h.outcomes[0].Success)
	assert.Equal(t, "could not find chat input after 15 attempts", h.outcomes[0].ErrorMessage())
	assert.Equal(t, profile.MaxRetries, h.dom.queries[".chat-input-editor"])
	assert.Equal(t, profile.MaxRetries, run.Queries())

	h.sched.Advance(time.Minute)
	assert.Len(t, h.outcomes, 1)
	assert.Equal(t, profile.MaxRetries, h.dom.queries[".chat-input-editor"])
}

func TestInjectRetryFindsLateElement(t *testing.T) {
	h := newInjectHarness(t, script.DefaultProfile())
	h.session.Current().MarkLoaded()

	run := h.start("x")
	h.sched.Advance(200 * time.Millisecond) // first query misses
	h.sched.Advance(300 * time.Millisecond) // second query misses
	require.Equal(t, 2, run.Queries())

	h.dom.add("textarea", ElementInfo{Handle: "ta"})
	h.sched.Advance(time.Second)
	require.Len(t, h.outcomes, 1)
	assert.True(t, h.outcomes[0].Success)
	assert.Equal(t, 3, run.Queries())
}

func TestInjectTimeoutWhileAwaitingLoad(t *testing.T) {
	profile := script.DefaultProfile()
	profile.InjectionTotal = 100 * time.Millisecond
	h := newInjectHarness(t, profile)
	h.dom.add("textarea", ElementInfo{Handle: "ta"})

	run := h.start("x")
	h.sched.Advance(0)
	assert.Equal(t, StateAwaitPageLoad, run.State())

	h.sched.Advance(100 * time.Millisecond)
	require.Len(t, h.outcomes, 1)
	assert.Equal(t, "message injection timed out after 100ms", h.outcomes[0].ErrorMessage())

	h.sched.Advance(time.Minute)
	assert.Len(t, h.outcomes, 1)
	assert.Zero(t, h.dom.queries[".chat-input-editor"], "no query after the run terminated")
}

func TestInjectLoadSignalBeatsFallback(t *testing.T) {
	h := newInjectHarness(t, script.DefaultProfile())

	run := h.start("x")
	h.sched.Advance(0)
	require.Equal(t, StateAwaitPageLoad, run.State())

	h.sched.Advance(100 * time.Millisecond)
	h.session.Current().MarkLoaded()
	h.sched.Advance(0)
	assert.Equal(t, StateAwaitSettle, run.State())

	h.sched.Advance(200 * time.Millisecond)
	assert.Equal(t, 1, run.Queries(), "searching starts at load+settle, before the fallback")

	// The fallback firing later does not restart the flow.
	h.sched.Advance(400 * time.Millisecond)
	assert.Equal(t, 2, run.Queries())
}

func TestInjectFallbackWithoutLoadSignal(t *testing.T) {
	h := newInjectHarness(t, script.DefaultProfile())
	run := h.start("x")
	h.sched.Advance(500 * time.Millisecond)
	assert.Equal(t, StateAwaitSettle, run.State())
}

func TestInjectTimerRacingSubmitEmitsOnce(t *testing.T) {
	profile := script.DefaultProfile()
	// Plain input: settle 200ms + submit delay 300ms lands exactly on the deadline.
	profile.InjectionTotal = 500 * time.Millisecond
	h := newInjectHarness(t, profile)
	h.session.Current().MarkLoaded()
	h.dom.add("textarea", ElementInfo{Handle: "ta"})
	h.dom.add(`button[type="submit"]`, ElementInfo{Handle: "btn"})

	h.start("x")
	h.sched.Advance(time.Second)

	require.Len(t, h.outcomes, 1)
	assert.False(t, h.outcomes[0].Success)
	assert.True(t, strings.HasPrefix(h.outcomes[0].ErrorMessage(), "message injection timed out"))
	assert.NotContains(t, h.dom.calls, "click:btn")
}

func TestInjectFillErrorFails(t *testing.T) {
	h := newInjectHarness(t, script.DefaultProfile())
	h.session.Current().MarkLoaded()
	h.dom.add(`div[contenteditable="true"]`, ElementInfo{Handle: "ce", Editable: true})
	h.dom.failOn["clear:ce"] = errFake

	h.start("x")
	h.sched.Advance(10 * time.Second)

	require.Len(t, h.outcomes, 1)
	assert.Equal(t, "failed to set message: fake failure", h.outcomes[0].ErrorMessage())
	assert.Equal(t, 0, h.sched.Pending())
}

func TestInjectQueryErrorFails(t *testing.T) {
	h := newInjectHarness(t, script.DefaultProfile())
	h.session.Current().MarkLoaded()
	h.dom.queryErr = errFake

	h.start("x")
	h.sched.Advance(10 * time.Second)

	require.Len(t, h.outcomes, 1)
	assert.Equal(t, "failed to query chat input: fake failure", h.outcomes[0].ErrorMessage())
}

func TestInjectNavigationDiscardsRun(t *testing.T) {
	h := newInjectHarness(t, script.DefaultProfile())
	h.session.Current().MarkLoaded()

	h.start("x")
	h.sched.Advance(300 * time.Millisecond)
	h.session.Navigated("https://www.kimi.com/bot")
	h.sched.Advance(time.Minute)

	assert.Empty(t, h.outcomes, "a torn-down page load reports nothing")
	assert.Equal(t, 0, h.sched.Pending())
}

func TestModalityOf(t *testing.T) {
	assert.Equal(t, "marked-editor", ModalityOf(ElementInfo{Marked: true, Editable: true}).Name())
	assert.Equal(t, "rich-editor", ModalityOf(ElementInfo{Editable: true}).Name())
	assert.Equal(t, "plain-input", ModalityOf(ElementInfo{}).Name())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "searching", StateSearching.String())
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StateSubmitting.Terminal())
}
