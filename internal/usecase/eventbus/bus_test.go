package eventbus

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"chatpilot/internal/domain"
)

func newTestBus() *Bus {
	return New(slog.Default())
}

func newEvent(ch domain.Channel) domain.Event {
	return domain.Event{Channel: ch, Timestamp: time.Now()}
}

func TestPublishSubscribe(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	bus.Subscribe(domain.ChannelResponseComplete, func(_ context.Context, e domain.Event) {
		if e.Channel == domain.ChannelResponseComplete {
			got.Add(1)
		}
	})

	bus.Publish(context.Background(), newEvent(domain.ChannelResponseComplete))
	bus.Close() // drain
	if got.Load() != 1 {
		t.Fatalf("expected 1, got %d", got.Load())
	}
}

func TestSubscribeAll(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	bus.SubscribeAll(func(_ context.Context, _ domain.Event) {
		got.Add(1)
	})

	bus.Publish(context.Background(), newEvent(domain.ChannelResponseComplete))
	bus.Publish(context.Background(), newEvent(domain.ChannelInjectResult))
	bus.Close()

	if got.Load() != 2 {
		t.Fatalf("expected 2, got %d", got.Load())
	}
}

func TestUnsubscribe(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	unsub := bus.Subscribe(domain.ChannelResponseComplete, func(_ context.Context, _ domain.Event) {
		got.Add(1)
	})

	bus.Publish(context.Background(), newEvent(domain.ChannelResponseComplete))
	bus.Close()
	if got.Load() != 1 {
		t.Fatalf("expected 1 before unsub, got %d", got.Load())
	}

	// Re-create bus since Close was called
	bus = newTestBus()
	unsub2 := bus.Subscribe(domain.ChannelResponseComplete, func(_ context.Context, _ domain.Event) {
		got.Add(1)
	})
	_ = unsub // original unsub for old bus

	unsub2()
	bus.Publish(context.Background(), newEvent(domain.ChannelResponseComplete))
	bus.Close()

	if got.Load() != 1 {
		t.Fatalf("expected still 1 after unsub, got %d", got.Load())
	}
}

func TestConcurrentPublish(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	bus.Subscribe(domain.ChannelResponseComplete, func(_ context.Context, _ domain.Event) {
		got.Add(1)
	})

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Publish(context.Background(), newEvent(domain.ChannelResponseComplete))
		}()
	}
	wg.Wait()
	bus.Close()

	if got.Load() != 100 {
		t.Fatalf("expected 100, got %d", got.Load())
	}
}

func TestPanicRecovery(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	// First subscriber panics
	bus.Subscribe(domain.ChannelResponseComplete, func(_ context.Context, _ domain.Event) {
		panic("boom")
	})
	// Second subscriber should still fire
	bus.Subscribe(domain.ChannelResponseComplete, func(_ context.Context, _ domain.Event) {
		got.Add(1)
	})

	bus.Publish(context.Background(), newEvent(domain.ChannelResponseComplete))
	bus.Close()

	if got.Load() != 1 {
		t.Fatalf("expected 1 (second handler), got %d", got.Load())
	}
}

func TestCloseDrainsAndRejectsNew(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	bus.Subscribe(domain.ChannelResponseComplete, func(_ context.Context, _ domain.Event) {
		time.Sleep(50 * time.Millisecond)
		got.Add(1)
	})

	bus.Publish(context.Background(), newEvent(domain.ChannelResponseComplete))
	bus.Close() // should block until the handler finishes

	if got.Load() != 1 {
		t.Fatalf("expected handler to have run, got %d", got.Load())
	}

	// After close, new publishes should be no-ops
	bus.Publish(context.Background(), newEvent(domain.ChannelResponseComplete))
	// Wait a bit to see if spurious delivery happens
	time.Sleep(20 * time.Millisecond)
	if got.Load() != 1 {
		t.Fatalf("expected no delivery after close, got %d", got.Load())
	}
}

func TestEmitMarshalsPayload(t *testing.T) {
	bus := newTestBus()

	var mu sync.Mutex
	var got []domain.Event
	bus.Subscribe(domain.ChannelInjectResult, func(_ context.Context, e domain.Event) {
		mu.Lock()
		got = append(got, e)
		mu.Unlock()
	})

	if err := bus.Emit(context.Background(), domain.ChannelInjectResult, domain.Failed("r1", "boom")); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if err := bus.Emit(context.Background(), domain.ChannelInjectResult, nil); err != nil {
		t.Fatalf("Emit nil: %v", err)
	}
	bus.Close()

	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	for _, e := range got {
		if e.Timestamp.IsZero() {
			t.Error("timestamp not set")
		}
		var o domain.InjectionOutcome
		if err := e.Decode(&o); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if string(e.Payload) == "{}" {
			continue
		}
		if o.Success || o.ErrorMessage() != "boom" || o.Run != "r1" {
			t.Errorf("unexpected outcome %+v", o)
		}
	}
}

func TestEmitRejectsUnmarshalable(t *testing.T) {
	bus := newTestBus()
	defer bus.Close()
	if err := bus.Emit(context.Background(), domain.ChannelPageLoaded, func() {}); err == nil {
		t.Fatal("expected marshal error")
	}
}

func TestChannelsAreIsolated(t *testing.T) {
	bus := newTestBus()

	var got atomic.Int32
	bus.Subscribe(domain.ChannelResponseComplete, func(_ context.Context, _ domain.Event) {
		got.Add(1)
	})
	bus.Publish(context.Background(), newEvent(domain.ChannelInjectResult))
	bus.Close()

	if got.Load() != 0 {
		t.Fatalf("expected no delivery across channels, got %d", got.Load())
	}
}
