package browser

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatpilot/internal/page"
	"chatpilot/internal/script"
)

// fakeRuntime records evaluated expressions and answers with canned JSON.
type fakeRuntime struct {
	exprs   []string
	result  string
	err     error
	reloads int
}

func (f *fakeRuntime) Eval(_ context.Context, expr string, out any) error {
	f.exprs = append(f.exprs, expr)
	if f.err != nil {
		return f.err
	}
	if out != nil && f.result != "" {
		return json.Unmarshal([]byte(f.result), out)
	}
	return nil
}

func (f *fakeRuntime) EvalAsync(ctx context.Context, expr string, out any) error {
	return f.Eval(ctx, expr, out)
}

func (f *fakeRuntime) Reload(context.Context) error {
	f.reloads++
	return f.err
}

func TestDOMQuery(t *testing.T) {
	rt := &fakeRuntime{result: `{"found":true,"handle":"7","marked":true,"editable":true}`}
	d := NewDOM(rt, script.DefaultChains())

	el, found, err := d.Query(context.Background(), script.SelectorChain{".a", `div[x="y"]`})
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, page.ElementInfo{Handle: "7", Marked: true, Editable: true}, el)

	require.Len(t, rt.exprs, 1)
	assert.Contains(t, rt.exprs[0], `[".a","div[x=\"y\"]"]`)
	assert.Contains(t, rt.exprs[0], `"chat-input-editor"`)
	assert.Contains(t, rt.exprs[0], `"`+HandleAttr+`"`)
}

func TestDOMQueryMiss(t *testing.T) {
	rt := &fakeRuntime{result: `{"found":false}`}
	_, found, err := NewDOM(rt, script.DefaultChains()).Query(context.Background(), script.SelectorChain{".a"})
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDOMQueryError(t *testing.T) {
	rt := &fakeRuntime{err: assert.AnError}
	_, _, err := NewDOM(rt, script.DefaultChains()).Query(context.Background(), script.SelectorChain{".a"})
	assert.ErrorIs(t, err, assert.AnError)
}

func TestDOMTextIsPassedAsLiteral(t *testing.T) {
	rt := &fakeRuntime{}
	d := NewDOM(rt, script.DefaultChains())
	msg := "it's `tricky` ${x}\n\"quoted\""

	require.NoError(t, d.InsertText(context.Background(), "3", msg))
	require.NoError(t, d.SetValue(context.Background(), "3", msg))
	require.NoError(t, d.AppendText(context.Background(), "3", msg))

	lit, _ := json.Marshal(msg)
	for _, expr := range rt.exprs {
		assert.Contains(t, expr, string(lit))
		assert.Contains(t, expr, `"3"`)
	}
}

func TestDOMDispatchVariants(t *testing.T) {
	rt := &fakeRuntime{}
	d := NewDOM(rt, script.DefaultChains())
	ctx := context.Background()

	require.NoError(t, d.Dispatch(ctx, "1", page.DOMEvent{Type: "keydown", Key: "Enter"}))
	require.NoError(t, d.Dispatch(ctx, "1", page.DOMEvent{Type: "input", InputType: "insertText", Data: "x"}))
	require.NoError(t, d.Dispatch(ctx, "1", page.DOMEvent{Type: "change"}))

	assert.Contains(t, rt.exprs[0], "KeyboardEvent")
	assert.Contains(t, rt.exprs[1], "InputEvent")
	assert.Contains(t, rt.exprs[2], "new Event(")
	assert.True(t, strings.Contains(rt.exprs[2], `"type":"change"`))
}

func TestDOMSignals(t *testing.T) {
	rt := &fakeRuntime{result: `{"url":"https://www.kimi.com/","online":true,"title":"Kimi","hasBody":true,"bodyTextLen":12,"healthy":true}`}
	s, err := NewDOM(rt, script.DefaultChains()).Signals(context.Background(), script.SelectorChain{"[data-sidebar]"})
	require.NoError(t, err)
	assert.Equal(t, page.PageSignals{
		URL: "https://www.kimi.com/", Online: true, Title: "Kimi", HasBody: true, BodyTextLen: 12, HealthyMarker: true,
	}, s)
	assert.Contains(t, rt.exprs[0], `["[data-sidebar]"]`)
}

func TestDOMServiceWorkerAndReload(t *testing.T) {
	rt := &fakeRuntime{result: `true`}
	d := NewDOM(rt, script.DefaultChains())

	ok, err := d.ServiceWorkerRegistered(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, d.Reload(context.Background()))
	assert.Equal(t, 1, rt.reloads)
}

func TestSessionStorageGuard(t *testing.T) {
	rt := &fakeRuntime{result: `2`}
	s := NewSessionStorage(rt)
	ctx := context.Background()

	n, err := s.GetCount(ctx, "__kimi_sw_reload")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, s.SetCount(ctx, "__kimi_sw_reload", 3))
	require.NoError(t, s.Clear(ctx, "__kimi_sw_reload"))

	assert.Contains(t, rt.exprs[1], `sessionStorage.setItem("__kimi_sw_reload", "3")`)
	assert.Contains(t, rt.exprs[2], `sessionStorage.removeItem("__kimi_sw_reload")`)
}
