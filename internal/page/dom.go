package page

import (
	"context"

	"chatpilot/internal/script"
)

// Handle refers to an element located by a previous Query on the same page
// load.
type Handle string

// ElementInfo is what a query learns about the matched element.
type ElementInfo struct {
	Handle   Handle
	Marked   bool // carries the designated editor class
	Editable bool // contenteditable
}

// DOMEvent is a synthetic event dispatched on an element.
type DOMEvent struct {
	Type      string // "input", "change" or "keydown"
	InputType string
	Data      string
	Key       string
}

var (
	eventInput      = DOMEvent{Type: "input"}
	eventChange     = DOMEvent{Type: "change"}
	eventEnterPress = DOMEvent{Type: "keydown", Key: "Enter"}
)

func insertTextEvent(text string) DOMEvent {
	return DOMEvent{Type: "input", InputType: "insertText", Data: text}
}

// PageSignals are the observations the connectivity heuristic classifies.
type PageSignals struct {
	URL           string
	Online        bool
	Title         string
	HasBody       bool
	BodyTextLen   int
	HealthyMarker bool
}

// DOM is the capability surface the state machines need from a page. The
// browser adapter implements it over CDP; tests use an in-memory fake.
type DOM interface {
	// Query returns the first element matching the chain, in chain order.
	Query(ctx context.Context, chain script.SelectorChain) (ElementInfo, bool, error)
	Focus(ctx context.Context, h Handle) error
	SetEditable(ctx context.Context, h Handle) error
	Clear(ctx context.Context, h Handle) error
	// InsertText uses the platform insert-text command at the caret.
	InsertText(ctx context.Context, h Handle, text string) error
	// AppendText appends a text node and collapses the caret to the end.
	AppendText(ctx context.Context, h Handle, text string) error
	// SetValue assigns through the native value setter.
	SetValue(ctx context.Context, h Handle, text string) error
	Dispatch(ctx context.Context, h Handle, ev DOMEvent) error
	Click(ctx context.Context, h Handle) error

	Signals(ctx context.Context, healthy script.SelectorChain) (PageSignals, error)
	ServiceWorkerRegistered(ctx context.Context) (bool, error)
	Reload(ctx context.Context) error
}

// Modality is the kind of input element found by Searching. Each variant
// carries its own fill procedure.
type Modality interface {
	Name() string
	fill(r *run, el ElementInfo)
}

// MarkedEditor is the application's own rich editor.
type MarkedEditor struct{}

// RichEditor is any other contenteditable element.
type RichEditor struct{}

// PlainInput is a textarea or input element.
type PlainInput struct{}

func (MarkedEditor) Name() string { return "marked-editor" }
func (RichEditor) Name() string   { return "rich-editor" }
func (PlainInput) Name() string   { return "plain-input" }

// ModalityOf classifies a queried element.
func ModalityOf(el ElementInfo) Modality {
	switch {
	case el.Marked:
		return MarkedEditor{}
	case el.Editable:
		return RichEditor{}
	default:
		return PlainInput{}
	}
}

func (MarkedEditor) fill(r *run, el ElementInfo) {
	ctx := r.load.Context()
	if err := r.dom.SetEditable(ctx, el.Handle); err != nil {
		r.fillFailed(err)
		return
	}
	if err := r.dom.Focus(ctx, el.Handle); err != nil {
		r.fillFailed(err)
		return
	}
	r.after(r.in.profile.FocusDelay, func() {
		if err := r.dom.Clear(ctx, el.Handle); err != nil {
			r.fillFailed(err)
			return
		}
		if err := r.dom.InsertText(ctx, el.Handle, r.req.Message); err != nil {
			r.fillFailed(err)
			return
		}
		if err := r.dom.Dispatch(ctx, el.Handle, eventInput); err != nil {
			r.fillFailed(err)
			return
		}
		r.scheduleSubmit(el)
	})
}

func (RichEditor) fill(r *run, el ElementInfo) {
	ctx := r.load.Context()
	steps := []func() error{
		func() error { return r.dom.Focus(ctx, el.Handle) },
		func() error { return r.dom.Clear(ctx, el.Handle) },
		func() error { return r.dom.AppendText(ctx, el.Handle, r.req.Message) },
		func() error { return r.dom.Dispatch(ctx, el.Handle, insertTextEvent(r.req.Message)) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			r.fillFailed(err)
			return
		}
	}
	r.scheduleSubmit(el)
}

func (PlainInput) fill(r *run, el ElementInfo) {
	ctx := r.load.Context()
	steps := []func() error{
		func() error { return r.dom.SetValue(ctx, el.Handle, r.req.Message) },
		func() error { return r.dom.Dispatch(ctx, el.Handle, eventInput) },
		func() error { return r.dom.Dispatch(ctx, el.Handle, eventChange) },
		func() error { return r.dom.Focus(ctx, el.Handle) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			r.fillFailed(err)
			return
		}
	}
	r.scheduleSubmit(el)
}
