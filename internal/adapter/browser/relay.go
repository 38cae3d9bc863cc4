package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"chatpilot/internal/domain"
	"chatpilot/internal/page"
	"chatpilot/internal/script"

	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/tidwall/gjson"
)

// BindingName is the CDP runtime binding the bridge script calls.
const BindingName = "__chatpilotHost"

// Message kinds sent by the bridge.
const (
	KindEvent  = "event"
	KindInvoke = "invoke"
)

// Message is one decoded bridge call.
type Message struct {
	Kind    string
	Name    string
	Payload json.RawMessage
}

// DecodeMessage parses a bridge payload of the form
// {"kind": "event"|"invoke", "name": "...", "payload": {...}}.
func DecodeMessage(raw string) (Message, error) {
	if !gjson.Valid(raw) {
		return Message{}, domain.NewDomainError("DecodeMessage", domain.ErrInvalidInput, "payload is not valid JSON")
	}
	fields := gjson.GetMany(raw, "kind", "name", "payload")
	m := Message{Kind: fields[0].String(), Name: fields[1].String()}
	if m.Kind != KindEvent && m.Kind != KindInvoke {
		return Message{}, domain.NewDomainError("DecodeMessage", domain.ErrInvalidInput,
			fmt.Sprintf("unknown message kind %q", m.Kind))
	}
	if m.Name == "" {
		return Message{}, domain.NewDomainError("DecodeMessage", domain.ErrInvalidInput, "message name is empty")
	}
	if fields[2].Exists() {
		m.Payload = json.RawMessage(fields[2].Raw)
	} else {
		m.Payload = json.RawMessage(`{}`)
	}
	return m, nil
}

// pageChannels are the channels page scripts may emit on.
var pageChannels = map[domain.Channel]bool{
	domain.ChannelInjectResult:     true,
	domain.ChannelResponseComplete: true,
	domain.ChannelNetworkOnline:    true,
	domain.ChannelNetworkOffline:   true,
}

// Invoker executes page-originated commands on the host.
type Invoker interface {
	Invoke(ctx context.Context, name string, payload json.RawMessage) error
}

// PageObserver follows main-frame navigations and load events.
type PageObserver interface {
	Navigated(url string)
	Loaded(url string)
}

// Relay carries page-originated messages to the host and tracks the main
// frame's page loads.
type Relay struct {
	bus       domain.EventBus
	invoker   Invoker
	logger    *slog.Logger
	ctx       context.Context
	observers []PageObserver

	mu  sync.Mutex
	url string
}

// NewRelay creates a relay. ctx bounds the handlers it spawns.
func NewRelay(ctx context.Context, bus domain.EventBus, invoker Invoker, logger *slog.Logger, observers ...PageObserver) *Relay {
	return &Relay{bus: bus, invoker: invoker, logger: logger, ctx: ctx, observers: observers}
}

// Install registers the binding, injects the bridge into every new document
// and the current one, and starts listening for tab events.
func (r *Relay) Install(ctx context.Context, c *Chrome) error {
	bridge := script.BridgeScript(BindingName)
	err := c.Run(ctx, chromedp.ActionFunc(func(actx context.Context) error {
		if err := runtime.AddBinding(BindingName).Do(actx); err != nil {
			return fmt.Errorf("add binding: %w", err)
		}
		if _, err := cdppage.AddScriptToEvaluateOnNewDocument(bridge).Do(actx); err != nil {
			return fmt.Errorf("add bridge script: %w", err)
		}
		return nil
	}))
	if err != nil {
		return domain.WrapOp("Relay.Install", err)
	}
	if err := c.Eval(ctx, bridge, nil); err != nil {
		r.logger.Debug("bridge injection into current document failed", "error", err)
	}
	c.Listen(r.onTargetEvent)
	return nil
}

// URL returns the last main-frame URL seen.
func (r *Relay) URL() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.url
}

// onTargetEvent runs on the CDP reader goroutine and must not block.
func (r *Relay) onTargetEvent(ev any) {
	switch ev := ev.(type) {
	case *runtime.EventBindingCalled:
		if ev.Name != BindingName {
			return
		}
		go func() {
			if err := r.HandleMessage(r.ctx, ev.Payload); err != nil {
				r.logger.Warn("bridge message rejected", "error", err)
			}
		}()
	case *cdppage.EventFrameNavigated:
		if ev.Frame == nil || ev.Frame.ParentID != "" {
			return
		}
		r.FrameNavigated(ev.Frame.URL)
	case *cdppage.EventLoadEventFired:
		r.LoadFired(r.ctx)
	}
}

// HandleMessage decodes and dispatches one bridge payload.
func (r *Relay) HandleMessage(ctx context.Context, raw string) error {
	msg, err := DecodeMessage(raw)
	if err != nil {
		return err
	}
	switch msg.Kind {
	case KindEvent:
		ch := domain.Channel(msg.Name)
		if !pageChannels[ch] {
			return domain.NewDomainError("Relay.HandleMessage", domain.ErrInvalidInput,
				fmt.Sprintf("page may not emit on %q", msg.Name))
		}
		r.bus.Publish(ctx, domain.Event{
			Channel:   ch,
			Timestamp: time.Now(),
			Window:    string(domain.WindowMain),
			Payload:   msg.Payload,
		})
		return nil
	default:
		r.logger.Debug("page invoked host command", "command", msg.Name)
		return r.invoker.Invoke(ctx, msg.Name, msg.Payload)
	}
}

// FrameNavigated records a main-frame navigation.
func (r *Relay) FrameNavigated(url string) {
	r.mu.Lock()
	r.url = url
	r.mu.Unlock()
	for _, o := range r.observers {
		o.Navigated(url)
	}
}

// LoadFired records the main frame's load event and announces it on the bus.
func (r *Relay) LoadFired(ctx context.Context) {
	url := r.URL()
	for _, o := range r.observers {
		o.Loaded(url)
	}
	if err := r.bus.Emit(ctx, domain.ChannelPageLoaded, domain.PageLoaded{URL: url}); err != nil {
		r.logger.Warn("emit page-loaded failed", "error", err)
	}
}

// SessionObserver keeps a page session in step with the tab's navigations.
type SessionObserver struct {
	Session *page.Session
}

func (s SessionObserver) Navigated(url string) { s.Session.Navigated(url) }

func (s SessionObserver) Loaded(string) { s.Session.Current().MarkLoaded() }
