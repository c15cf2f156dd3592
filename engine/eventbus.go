package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"rankview/core"
)

type DispatchMode int

const (
	DispatchSync DispatchMode = iota
	DispatchAsync
)

// anyEvent is the subscription key for handlers interested in every event type.
const anyEvent core.EventType = "*"

type subscription struct {
	id  int64
	typ core.EventType
	fn  func(context.Context, core.Event)
}

// EventBus provides thread-safe pub/sub with sync and async dispatch.
// Async dispatch runs a single worker, so handlers observe events in the order
// they were published.
type EventBus struct {
	mode       DispatchMode
	mu         sync.RWMutex
	subs       map[core.EventType]map[int64]subscription
	nextID     int64
	asyncQueue chan core.Event
	wg         sync.WaitGroup
	quit       chan struct{}
	closeOnce  sync.Once
	dropped    atomic.Int64
}

func NewEventBus(mode DispatchMode) *EventBus {
	eb := &EventBus{
		mode:       mode,
		subs:       make(map[core.EventType]map[int64]subscription),
		asyncQueue: make(chan core.Event, 2048),
		quit:       make(chan struct{}),
	}
	if mode == DispatchAsync {
		eb.startWorker()
	}
	return eb
}

func (e *EventBus) startWorker() {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		for {
			select {
			case ev := <-e.asyncQueue:
				e.dispatchSync(context.Background(), ev)
			case <-e.quit:
				// deliver what is already queued before exiting
				for {
					select {
					case ev := <-e.asyncQueue:
						e.dispatchSync(context.Background(), ev)
					default:
						return
					}
				}
			}
		}
	}()
}

// Close stops the async worker after the queue has been drained.
func (e *EventBus) Close() {
	e.closeOnce.Do(func() {
		close(e.quit)
		e.wg.Wait()
	})
}

// Subscribe registers a handler for an event type. Returns unsubscribe func.
func (e *EventBus) Subscribe(typ core.EventType, handler func(context.Context, core.Event)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	id := e.nextID
	if e.subs[typ] == nil {
		e.subs[typ] = make(map[int64]subscription)
	}
	e.subs[typ][id] = subscription{id: id, typ: typ, fn: handler}
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if m := e.subs[typ]; m != nil {
			delete(m, id)
		}
	}
}

// SubscribeAll registers a handler receiving every event type.
func (e *EventBus) SubscribeAll(handler func(context.Context, core.Event)) func() {
	return e.Subscribe(anyEvent, handler)
}

// Publish sends an event to subscribers.
func (e *EventBus) Publish(ctx context.Context, ev core.Event) {
	if e.mode == DispatchAsync {
		select {
		case <-e.quit:
			e.dropped.Add(1)
			return
		default:
		}
		select {
		case e.asyncQueue <- ev:
		default:
			// drop if queue full to keep the publishing controller loop responsive
			if n := e.dropped.Add(1); n&(n-1) == 0 {
				slog.Warn("event bus queue full, dropping events", "type", ev.Type, "dropped", n)
			}
		}
		return
	}
	e.dispatchSync(ctx, ev)
}

// Dropped reports how many events were discarded by async dispatch.
func (e *EventBus) Dropped() int64 { return e.dropped.Load() }

func (e *EventBus) dispatchSync(ctx context.Context, ev core.Event) {
	e.mu.RLock()
	handlers := make([]func(context.Context, core.Event), 0, len(e.subs[ev.Type])+len(e.subs[anyEvent]))
	for _, s := range e.subs[ev.Type] {
		handlers = append(handlers, s.fn)
	}
	for _, s := range e.subs[anyEvent] {
		handlers = append(handlers, s.fn)
	}
	e.mu.RUnlock()
	for _, h := range handlers {
		h(ctx, ev)
	}
}
