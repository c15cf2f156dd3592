// Package viewkit assembles an engine.Service from functional options.
package viewkit

import (
	"context"
	"log/slog"
	"time"

	"rankview/adapters/memory"
	"rankview/auth"
	"rankview/core"
	"rankview/engine"
	"rankview/leaderboard"
	"rankview/realtime"
	"rankview/viewstate"
)

// Option configures the service builder.
type Option func(*config)

type config struct {
	source engine.LeaderboardSource
	auth   engine.AuthService
	mode   engine.DispatchMode
	view   engine.ViewOptions
	hub    *realtime.Hub
	hooks  []func(context.Context, core.Event)
}

// WithSource sets the leaderboard data source.
func WithSource(s engine.LeaderboardSource) Option { return func(c *config) { c.source = s } }

// WithAuth sets the auth service behind the profile view.
func WithAuth(a engine.AuthService) Option { return func(c *config) { c.auth = a } }

// WithDispatchMode selects sync or async event dispatch.
func WithDispatchMode(m engine.DispatchMode) Option { return func(c *config) { c.mode = m } }

// WithViewOptions replaces all view options at once.
func WithViewOptions(o engine.ViewOptions) Option { return func(c *config) { c.view = o } }

func WithDefaultTimeFrame(tf core.TimeFrame) Option {
	return func(c *config) { c.view.DefaultTimeFrame = tf }
}

func WithRacePolicy(p viewstate.RacePolicy) Option { return func(c *config) { c.view.RacePolicy = p } }

func WithFetchTimeout(d time.Duration) Option { return func(c *config) { c.view.FetchTimeout = d } }

func WithLimit(n int) Option { return func(c *config) { c.view.Limit = n } }

// WithQuietProfileUpdates keeps failed profile edits out of the error slot.
func WithQuietProfileUpdates() Option { return func(c *config) { c.view.QuietProfileUpdates = true } }

func WithLogger(l *slog.Logger) Option { return func(c *config) { c.view.Logger = l } }

// WithRealtime wires a realtime hub to receive all view events.
func WithRealtime(h *realtime.Hub) Option { return func(c *config) { c.hub = h } }

// WithEventHook registers a handler for every event, e.g. analytics or webhooks.
func WithEventHook(fn func(context.Context, core.Event)) Option {
	return func(c *config) {
		if fn != nil {
			c.hooks = append(c.hooks, fn)
		}
	}
}

// New builds a configured Service. If not provided, defaults are used:
//   - source: mock leaderboard with the default latency
//   - auth: session service over an in-memory store seeded with demo profiles
//   - dispatch: async
func New(opts ...Option) *engine.Service {
	cfg := &config{mode: engine.DispatchAsync}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.source == nil {
		cfg.source = leaderboard.NewMockSource(leaderboard.DefaultMockDelay)
	}
	if cfg.auth == nil {
		cfg.auth = auth.NewSessionService(memory.New(auth.DemoProfiles()...), auth.WithLogger(cfg.view.Logger))
	}
	bus := engine.NewEventBus(cfg.mode)
	// subscriptions go in before the views exist so the initial loads are seen
	if cfg.hub != nil {
		bus.SubscribeAll(cfg.hub.Broadcast)
	}
	for _, h := range cfg.hooks {
		bus.SubscribeAll(h)
	}
	return engine.NewService(cfg.source, cfg.auth, bus, cfg.view)
}
