package domain

import (
	"context"
	"encoding/json"
	"time"
)

// Channel names an event stream on the bus. Page-originated channels keep the
// names the content scripts emit on.
type Channel string

const (
	ChannelInjectResult     Channel = "inject-result"
	ChannelResponseComplete Channel = "response-complete"
	ChannelSettingsChanged  Channel = "settings-changed"
	ChannelLauncherShown    Channel = "launcher-shown"
	ChannelPageLoaded       Channel = "page-loaded"
	ChannelNetworkOnline    Channel = "network-online"
	ChannelNetworkOffline   Channel = "network-offline"
)

// Event is the envelope published on the event bus.
type Event struct {
	Channel   Channel         `json:"channel"`
	Timestamp time.Time       `json:"timestamp"`
	Window    string          `json:"window,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Decode unmarshals the payload into v. An empty payload leaves v untouched.
func (e Event) Decode(v any) error {
	if len(e.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(e.Payload, v)
}

// EventHandler is a callback invoked when an event is received.
type EventHandler func(ctx context.Context, event Event)

// EventBus carries host-to-listener and page-to-host events. There is no
// request/response over it: emitters never wait for a reply.
type EventBus interface {
	// Emit marshals payload and delivers it to the channel's subscribers.
	Emit(ctx context.Context, channel Channel, payload any) error
	// Publish delivers an already-built envelope.
	Publish(ctx context.Context, event Event)
	// Subscribe registers a handler for one channel. Returns an unsubscribe function.
	Subscribe(channel Channel, handler EventHandler) func()
	// SubscribeAll registers a handler that receives every event.
	SubscribeAll(handler EventHandler) func()
	// Close drains in-flight handlers and prevents new publishes.
	Close()
}

// PageLoaded is the payload of ChannelPageLoaded.
type PageLoaded struct {
	URL string `json:"url"`
}
