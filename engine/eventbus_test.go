package engine

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"rankview/core"
)

func TestEventBusSync(t *testing.T) {
	bus := NewEventBus(DispatchSync)
	count := 0
	bus.Subscribe(core.EventLoggedOut, func(ctx context.Context, e core.Event) { count++ })
	bus.Publish(context.Background(), core.NewLoggedOut("u"))
	bus.Publish(context.Background(), core.NewProfileChanged(nil, ""))
	if count != 1 {
		t.Fatalf("want 1 got %d", count)
	}
}

func TestEventBusSubscribeAllAndUnsubscribe(t *testing.T) {
	bus := NewEventBus(DispatchSync)
	count := 0
	unsubscribe := bus.SubscribeAll(func(ctx context.Context, e core.Event) { count++ })
	bus.Publish(context.Background(), core.NewLoggedOut("u"))
	bus.Publish(context.Background(), core.NewCommandFailed("refresh", nil))
	unsubscribe()
	bus.Publish(context.Background(), core.NewLoggedOut("u"))
	if count != 2 {
		t.Fatalf("want 2 got %d", count)
	}
}

func TestEventBusAsync(t *testing.T) {
	bus := NewEventBus(DispatchAsync)
	defer bus.Close()
	ch := make(chan struct{})
	bus.Subscribe(core.EventLoggedOut, func(ctx context.Context, e core.Event) { close(ch) })
	bus.Publish(context.Background(), core.NewLoggedOut("u"))
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("timeout")
	}
}

func TestEventBusCloseDrainsQueue(t *testing.T) {
	bus := NewEventBus(DispatchAsync)
	var delivered atomic.Int64
	bus.SubscribeAll(func(ctx context.Context, e core.Event) { delivered.Add(1) })
	for i := 0; i < 100; i++ {
		bus.Publish(context.Background(), core.NewLoggedOut("u"))
	}
	bus.Close()
	if got := delivered.Load() + bus.Dropped(); got != 100 {
		t.Fatalf("want 100 delivered or dropped, got %d", got)
	}
	before := bus.Dropped()
	bus.Publish(context.Background(), core.NewLoggedOut("u"))
	if bus.Dropped() != before+1 {
		t.Fatal("publish after close must be dropped")
	}
}

func TestEventBusAsyncKeepsPublishOrder(t *testing.T) {
	bus := NewEventBus(DispatchAsync)
	var got []uint64
	bus.SubscribeAll(func(ctx context.Context, e core.Event) {
		if e.Version%3 == 0 {
			time.Sleep(time.Millisecond)
		}
		got = append(got, e.Version)
	})
	for v := uint64(1); v <= 50; v++ {
		bus.Publish(context.Background(), core.NewProfileChanged(nil, "").WithVersion(v))
	}
	bus.Close()
	if len(got) != 50 {
		t.Fatalf("want 50 events, got %d", len(got))
	}
	for i, v := range got {
		if v != uint64(i+1) {
			t.Fatalf("event %d delivered with version %d: %v", i, v, got)
		}
	}
}
