// Package viewstate implements a controller that owns an observable piece of view
// state and serializes every mutation onto a single apply loop.
//
// Commands (Initialize, Refresh, ChangeSelection, Exec, AcknowledgeError) never
// block on I/O. Fetches and operations run on background goroutines and post their
// results back to the loop, which is the only goroutine that touches the state.
// Each applied change is published as an immutable State snapshot to Snapshot
// readers, channel subscribers and OnChange hooks.
package viewstate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// FetchFunc loads the data for a selection.
type FetchFunc[T any, S any] func(ctx context.Context, sel S) (T, error)

// Mutation edits a working copy of the state on the apply loop.
type Mutation[T any, S any] func(*State[T, S])

// OpFunc runs off the loop and returns a mutation to apply, or an error.
// A nil mutation means the operation has no local effect.
type OpFunc[T any, S any] func(ctx context.Context) (Mutation[T, S], error)

type message struct {
	apply func()
	task  *Task
}

// Controller owns a State[T, S]. Construct it with New and release it with Close.
type Controller[T any, S any] struct {
	cfg     settings
	fetch   FetchFunc[T, S]
	initial S
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	inbox  chan message
	done   chan struct{}
	wg     sync.WaitGroup

	postMu sync.RWMutex
	closed bool
	once   sync.Once

	// owned by the apply loop
	state    State[T, S]
	issued   uint64
	inflight int

	snap atomic.Pointer[State[T, S]]

	subMu  sync.Mutex
	subs   map[int]chan State[T, S]
	nextID int
	hooks  []func(State[T, S])
}

// New creates a controller and starts its apply loop. initial is the default
// selection used by Initialize. No fetch is issued until a command asks for one.
func New[T any, S any](fetch FetchFunc[T, S], initial S, opts ...Option) *Controller[T, S] {
	if fetch == nil {
		panic("viewstate.New requires a non-nil fetch func")
	}
	st := defaultSettings()
	for _, o := range opts {
		o(&st)
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller[T, S]{
		cfg:     st,
		fetch:   fetch,
		initial: initial,
		logger:  st.logger.With("controller", st.name),
		ctx:     ctx,
		cancel:  cancel,
		inbox:   make(chan message, st.inboxSize),
		done:    make(chan struct{}),
		subs:    make(map[int]chan State[T, S]),
	}
	c.state.Selection = initial
	c.state.DataSelection = initial
	first := c.state
	c.snap.Store(&first)
	go c.run()
	return c
}

func (c *Controller[T, S]) run() {
	defer close(c.done)
	for {
		select {
		case m := <-c.inbox:
			m.apply()
		case <-c.ctx.Done():
			return
		}
	}
}

// post hands a message to the apply loop. It returns false once the controller
// is closed. It must not be called from the loop itself with a full inbox.
func (c *Controller[T, S]) post(m message) bool {
	c.postMu.RLock()
	defer c.postMu.RUnlock()
	if c.closed {
		return false
	}
	c.inbox <- m
	return true
}

func (c *Controller[T, S]) submit(t *Task, fn func()) {
	if !c.post(message{apply: fn, task: t}) {
		t.finish(ErrClosed)
	}
}

// Initialize resets the selection to the default and issues a fetch.
func (c *Controller[T, S]) Initialize() *Task {
	t := newTask("initialize")
	c.submit(t, func() {
		c.state.Selection = c.initial
		c.startFetch(t)
	})
	return t
}

// Refresh issues a fetch for the current selection. Overlapping refreshes are
// not deduplicated; the race policy decides which result sticks.
func (c *Controller[T, S]) Refresh() *Task {
	t := newTask("refresh")
	c.submit(t, func() { c.startFetch(t) })
	return t
}

// ChangeSelection stores sel and then refreshes.
func (c *Controller[T, S]) ChangeSelection(sel S) *Task {
	t := newTask("change_selection")
	c.submit(t, func() {
		c.state.Selection = sel
		c.startFetch(t)
	})
	return t
}

// Exec runs op off the loop without touching Loading. On success the returned
// mutation is applied atomically; on failure the error is logged and stored in
// the error slot while Data stays unchanged.
func (c *Controller[T, S]) Exec(name string, op OpFunc[T, S]) *Task {
	t := newTask(name)
	c.submit(t, func() {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			mut, err := c.safeOp(op)
			c.submit(t, func() { c.applyOp(t, mut, err) })
		}()
	})
	return t
}

// AcknowledgeError clears the error slot.
func (c *Controller[T, S]) AcknowledgeError() *Task {
	t := newTask("acknowledge_error")
	c.submit(t, func() {
		if c.state.Err != nil {
			c.state.Err = nil
			c.publish()
		}
		t.finish(nil)
	})
	return t
}

// Snapshot returns the latest published state.
func (c *Controller[T, S]) Snapshot() State[T, S] {
	return *c.snap.Load()
}

// Subscribe returns a channel receiving every published snapshot, starting with
// the current one. When the buffer is full the oldest pending snapshot is
// dropped, so the newest one is always delivered.
func (c *Controller[T, S]) Subscribe(buffer int) (int, <-chan State[T, S]) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan State[T, S], buffer)
	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.nextID++
	id := c.nextID
	if c.subs == nil {
		close(ch)
		return id, ch
	}
	ch <- c.Snapshot()
	c.subs[id] = ch
	return id, ch
}

// Unsubscribe removes and closes a subscription.
func (c *Controller[T, S]) Unsubscribe(id int) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	if ch, ok := c.subs[id]; ok {
		delete(c.subs, id)
		close(ch)
	}
}

// OnChange registers fn to be called on the apply loop after every publish.
// fn must not block and must not call Close.
func (c *Controller[T, S]) OnChange(fn func(State[T, S])) {
	if fn == nil {
		return
	}
	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.hooks = append(c.hooks, fn)
}

// Done is closed once the apply loop has exited.
func (c *Controller[T, S]) Done() <-chan struct{} { return c.done }

// Close stops the loop, cancels in-flight fetches and closes all subscriptions.
// Pending and later commands complete with ErrClosed.
func (c *Controller[T, S]) Close() {
	c.once.Do(func() {
		c.postMu.Lock()
		c.closed = true
		c.postMu.Unlock()

		c.cancel()
		<-c.done
		c.wg.Wait()
		c.drain()

		c.subMu.Lock()
		for id, ch := range c.subs {
			delete(c.subs, id)
			close(ch)
		}
		c.subs = nil
		c.subMu.Unlock()
	})
}

func (c *Controller[T, S]) drain() {
	for {
		select {
		case m := <-c.inbox:
			if m.task != nil {
				m.task.finish(ErrClosed)
			}
		default:
			return
		}
	}
}

func (c *Controller[T, S]) startFetch(t *Task) {
	c.issued++
	gen := c.issued
	sel := c.state.Selection
	c.inflight++
	c.state.Loading = true
	c.publish()

	ctx, cancel := c.ctx, context.CancelFunc(func() {})
	if c.cfg.fetchTimeout > 0 {
		ctx, cancel = context.WithTimeout(c.ctx, c.cfg.fetchTimeout)
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()
		start := time.Now()
		data, err := c.safeFetch(ctx, sel)
		c.logger.Debug("fetch completed", "command", t.name, "task", t.id, "generation", gen, "elapsed", time.Since(start))
		c.submit(t, func() { c.applyFetch(t, gen, sel, data, err) })
	}()
}

func (c *Controller[T, S]) applyFetch(t *Task, gen uint64, sel S, data T, err error) {
	c.inflight--
	c.state.Loading = c.inflight > 0

	switch {
	case c.cfg.policy == LatestIssuedWins && gen != c.issued:
		c.logger.Debug("discarding stale fetch", "generation", gen, "latest", c.issued, "error", err)
		err = ErrSuperseded
	case err != nil:
		c.logger.Error("fetch failed", "command", t.name, "generation", gen, "error", err)
		c.recordError(t.name, err)
	default:
		c.state.Data = data
		c.state.DataSelection = sel
		c.state.Generation = gen
		c.state.UpdatedAt = c.cfg.now()
	}
	c.publish()
	t.finish(err)
}

func (c *Controller[T, S]) applyOp(t *Task, mut Mutation[T, S], err error) {
	if err == nil && mut != nil {
		next := c.state
		if err = c.safeMutate(mut, &next); err == nil {
			next.UpdatedAt = c.cfg.now()
			c.state = next
			c.publish()
		}
	}
	if err != nil {
		c.logger.Error("command failed", "command", t.name, "task", t.id, "error", err)
		if !c.cfg.silent[t.name] {
			c.recordError(t.name, err)
			c.publish()
		}
	}
	t.finish(err)
}

func (c *Controller[T, S]) recordError(command string, err error) {
	c.state.Err = &CommandError{Command: command, Err: err}
}

func (c *Controller[T, S]) publish() {
	c.state.Version++
	snap := c.state
	c.snap.Store(&snap)

	c.subMu.Lock()
	for _, ch := range c.subs {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
	hooks := c.hooks
	c.subMu.Unlock()

	for _, h := range hooks {
		h(snap)
	}
}

func (c *Controller[T, S]) safeFetch(ctx context.Context, sel S) (data T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fetch panicked: %v", r)
		}
	}()
	return c.fetch(ctx, sel)
}

func (c *Controller[T, S]) safeOp(op OpFunc[T, S]) (mut Mutation[T, S], err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("operation panicked: %v", r)
		}
	}()
	return op(c.ctx)
}

func (c *Controller[T, S]) safeMutate(mut Mutation[T, S], next *State[T, S]) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("mutation panicked: %v", r)
		}
	}()
	mut(next)
	return nil
}
