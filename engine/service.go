package engine

import (
	"context"

	"golang.org/x/sync/errgroup"

	"rankview/core"
)

// Service wires the event bus and both view models into one unit.
type Service struct {
	bus         *EventBus
	leaderboard *Leaderboard
	profile     *Profile
}

// NewService builds both view models over a shared bus; each starts its initial load.
func NewService(source LeaderboardSource, auth AuthService, bus *EventBus, opts ViewOptions) *Service {
	if source == nil || auth == nil || bus == nil {
		panic("NewService requires non-nil source, auth, and bus")
	}
	return &Service{
		bus:         bus,
		leaderboard: NewLeaderboard(source, bus, opts),
		profile:     NewProfile(auth, bus, opts),
	}
}

// Leaderboard returns the leaderboard view model.
func (s *Service) Leaderboard() *Leaderboard { return s.leaderboard }

// Profile returns the profile view model.
func (s *Service) Profile() *Profile { return s.profile }

// Subscribe convenience method.
func (s *Service) Subscribe(typ core.EventType, handler func(context.Context, core.Event)) func() {
	return s.bus.Subscribe(typ, handler)
}

// SubscribeAll registers a handler for every event type.
func (s *Service) SubscribeAll(handler func(context.Context, core.Event)) func() {
	return s.bus.SubscribeAll(handler)
}

// WaitReady blocks until both initial loads have completed.
func (s *Service) WaitReady(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.leaderboard.Ready().Wait(ctx) })
	g.Go(func() error { return s.profile.Ready().Wait(ctx) })
	return g.Wait()
}

// Close tears down both view models, then the bus.
func (s *Service) Close() {
	s.leaderboard.Close()
	s.profile.Close()
	s.bus.Close()
}
