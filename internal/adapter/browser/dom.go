package browser

import (
	"context"
	"encoding/json"
	"fmt"

	"chatpilot/internal/domain"
	"chatpilot/internal/page"
	"chatpilot/internal/script"
)

// Runtime is the slice of the tab the page-level adapters evaluate against.
// *Chrome implements it.
type Runtime interface {
	Eval(ctx context.Context, expr string, out any) error
	EvalAsync(ctx context.Context, expr string, out any) error
	Reload(ctx context.Context) error
}

// HandleAttr tags elements returned by Query so later calls on the same page
// load can find them again.
const HandleAttr = "data-chatpilot-handle"

// DOM implements page.DOM with small evaluated snippets.
type DOM struct {
	rt          Runtime
	editorClass string
}

// NewDOM creates the CDP-backed DOM port.
func NewDOM(rt Runtime, chains script.Chains) *DOM {
	return &DOM{rt: rt, editorClass: chains.EditorClass}
}

var _ page.DOM = (*DOM)(nil)

func literal(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

type queryResult struct {
	Found    bool   `json:"found"`
	Handle   string `json:"handle"`
	Marked   bool   `json:"marked"`
	Editable bool   `json:"editable"`
}

const queryJS = `(function(sels, cls, attr) {
  for (const s of sels) {
    const el = document.querySelector(s);
    if (!el) continue;
    let h = el.getAttribute(attr);
    if (!h) {
      window.__chatpilotHandle = (window.__chatpilotHandle || 0) + 1;
      h = String(window.__chatpilotHandle);
      el.setAttribute(attr, h);
    }
    return {found: true, handle: h, marked: el.classList.contains(cls), editable: el.isContentEditable};
  }
  return {found: false, handle: "", marked: false, editable: false};
})(%s, %s, %s)`

// Query returns the first element matching the chain, in chain order.
func (d *DOM) Query(ctx context.Context, chain script.SelectorChain) (page.ElementInfo, bool, error) {
	var res queryResult
	expr := fmt.Sprintf(queryJS, literal([]string(chain)), literal(d.editorClass), literal(HandleAttr))
	if err := d.rt.Eval(ctx, expr, &res); err != nil {
		return page.ElementInfo{}, false, domain.WrapOp("DOM.Query", err)
	}
	if !res.Found {
		return page.ElementInfo{}, false, nil
	}
	return page.ElementInfo{Handle: page.Handle(res.Handle), Marked: res.Marked, Editable: res.Editable}, true, nil
}

// onElement wraps body in a function receiving the element for h. A stale
// handle throws, which surfaces as an evaluation error.
func onElement(h page.Handle, body string, args ...any) string {
	params := ""
	values := ""
	for i, a := range args {
		params += fmt.Sprintf(", a%d", i)
		values += ", " + literal(a)
	}
	return fmt.Sprintf(`(function(h%s) {
  const el = document.querySelector('[%s="' + h + '"]');
  if (!el) throw new Error('stale element handle ' + h);
  %s
})(%s%s)`, params, HandleAttr, body, literal(string(h)), values)
}

func (d *DOM) exec(ctx context.Context, op string, expr string) error {
	return domain.WrapOp(op, d.rt.Eval(ctx, expr, nil))
}

func (d *DOM) Focus(ctx context.Context, h page.Handle) error {
	return d.exec(ctx, "DOM.Focus", onElement(h, `el.focus();`))
}

func (d *DOM) SetEditable(ctx context.Context, h page.Handle) error {
	return d.exec(ctx, "DOM.SetEditable", onElement(h, `el.setAttribute('contenteditable', 'true');`))
}

func (d *DOM) Clear(ctx context.Context, h page.Handle) error {
	return d.exec(ctx, "DOM.Clear", onElement(h,
		`if (el.isContentEditable) { el.innerHTML = ''; } else { el.value = ''; }`))
}

func (d *DOM) InsertText(ctx context.Context, h page.Handle, text string) error {
	return d.exec(ctx, "DOM.InsertText", onElement(h,
		`el.focus(); document.execCommand('insertText', false, a0);`, text))
}

func (d *DOM) AppendText(ctx context.Context, h page.Handle, text string) error {
	return d.exec(ctx, "DOM.AppendText", onElement(h, `el.appendChild(document.createTextNode(a0));
  const range = document.createRange();
  range.selectNodeContents(el);
  range.collapse(false);
  const sel = window.getSelection();
  sel.removeAllRanges();
  sel.addRange(range);`, text))
}

func (d *DOM) SetValue(ctx context.Context, h page.Handle, text string) error {
	return d.exec(ctx, "DOM.SetValue", onElement(h, `const proto = el instanceof HTMLTextAreaElement
    ? HTMLTextAreaElement.prototype : HTMLInputElement.prototype;
  const desc = Object.getOwnPropertyDescriptor(proto, 'value');
  if (desc && desc.set) { desc.set.call(el, a0); } else { el.value = a0; }`, text))
}

func (d *DOM) Dispatch(ctx context.Context, h page.Handle, ev page.DOMEvent) error {
	var body string
	switch {
	case ev.Type == "keydown":
		body = `el.dispatchEvent(new KeyboardEvent('keydown', {key: a0.key, code: a0.key, keyCode: 13, which: 13, bubbles: true, cancelable: true}));`
	case ev.InputType != "":
		body = `el.dispatchEvent(new InputEvent(a0.type, {inputType: a0.inputType, data: a0.data, bubbles: true, cancelable: true}));`
	default:
		body = `el.dispatchEvent(new Event(a0.type, {bubbles: true}));`
	}
	payload := map[string]string{"type": ev.Type, "inputType": ev.InputType, "data": ev.Data, "key": ev.Key}
	return d.exec(ctx, "DOM.Dispatch", onElement(h, body, payload))
}

func (d *DOM) Click(ctx context.Context, h page.Handle) error {
	return d.exec(ctx, "DOM.Click", onElement(h, `el.click();`))
}

type signalsResult struct {
	URL         string `json:"url"`
	Online      bool   `json:"online"`
	Title       string `json:"title"`
	HasBody     bool   `json:"hasBody"`
	BodyTextLen int    `json:"bodyTextLen"`
	Healthy     bool   `json:"healthy"`
}

const signalsJS = `(function(healthy) {
  return {
    url: window.location.href,
    online: navigator.onLine,
    title: document.title,
    hasBody: !!document.body,
    bodyTextLen: document.body ? document.body.innerText.length : 0,
    healthy: healthy.some(function(s) { return !!document.querySelector(s); })
  };
})(%s)`

func (d *DOM) Signals(ctx context.Context, healthy script.SelectorChain) (page.PageSignals, error) {
	var res signalsResult
	if err := d.rt.Eval(ctx, fmt.Sprintf(signalsJS, literal([]string(healthy))), &res); err != nil {
		return page.PageSignals{}, domain.WrapOp("DOM.Signals", err)
	}
	return page.PageSignals{
		URL:           res.URL,
		Online:        res.Online,
		Title:         res.Title,
		HasBody:       res.HasBody,
		BodyTextLen:   res.BodyTextLen,
		HealthyMarker: res.Healthy,
	}, nil
}

const serviceWorkerJS = `(async function() {
  if (!('serviceWorker' in navigator)) return false;
  try {
    const regs = await navigator.serviceWorker.getRegistrations();
    return regs.length > 0;
  } catch (e) {
    return false;
  }
})()`

func (d *DOM) ServiceWorkerRegistered(ctx context.Context) (bool, error) {
	var registered bool
	if err := d.rt.EvalAsync(ctx, serviceWorkerJS, &registered); err != nil {
		return false, domain.WrapOp("DOM.ServiceWorkerRegistered", err)
	}
	return registered, nil
}

func (d *DOM) Reload(ctx context.Context) error {
	return domain.WrapOp("DOM.Reload", d.rt.Reload(ctx))
}

// SessionStorage backs the reload guard with the tab's sessionStorage, which
// survives reloads of the tab but not the tab itself.
type SessionStorage struct {
	rt Runtime
}

// NewSessionStorage creates the guard store.
func NewSessionStorage(rt Runtime) *SessionStorage { return &SessionStorage{rt: rt} }

var _ page.GuardStore = (*SessionStorage)(nil)

func (s *SessionStorage) GetCount(ctx context.Context, key string) (int, error) {
	var n int
	expr := fmt.Sprintf(`(parseInt(sessionStorage.getItem(%s) || '0', 10) || 0)`, literal(key))
	if err := s.rt.Eval(ctx, expr, &n); err != nil {
		return 0, domain.WrapOp("SessionStorage.GetCount", err)
	}
	return n, nil
}

func (s *SessionStorage) SetCount(ctx context.Context, key string, n int) error {
	expr := fmt.Sprintf(`sessionStorage.setItem(%s, %s)`, literal(key), literal(fmt.Sprint(n)))
	return domain.WrapOp("SessionStorage.SetCount", s.rt.Eval(ctx, expr, nil))
}

func (s *SessionStorage) Clear(ctx context.Context, key string) error {
	expr := fmt.Sprintf(`sessionStorage.removeItem(%s)`, literal(key))
	return domain.WrapOp("SessionStorage.Clear", s.rt.Eval(ctx, expr, nil))
}
