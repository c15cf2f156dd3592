package viewstate

import (
	"log/slog"
	"time"
)

// Option configures a Controller.
type Option func(*settings)

type settings struct {
	name         string
	policy       RacePolicy
	logger       *slog.Logger
	inboxSize    int
	fetchTimeout time.Duration
	now          func() time.Time
	silent       map[string]bool
}

func defaultSettings() settings {
	return settings{
		name:      "viewstate",
		policy:    LastCompletionWins,
		logger:    slog.Default(),
		inboxSize: 64,
		now:       time.Now,
	}
}

// WithName sets the controller name used in logs and command errors.
func WithName(name string) Option {
	return func(s *settings) {
		if name != "" {
			s.name = name
		}
	}
}

// WithRacePolicy selects how overlapping fetches are reconciled.
func WithRacePolicy(p RacePolicy) Option { return func(s *settings) { s.policy = p } }

// WithLogger sets the logger (defaults to slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithInboxSize sets the apply loop's queue capacity.
func WithInboxSize(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.inboxSize = n
		}
	}
}

// WithFetchTimeout bounds each fetch; zero means no timeout.
func WithFetchTimeout(d time.Duration) Option { return func(s *settings) { s.fetchTimeout = d } }

// WithSilentCommands makes failures of the named Exec commands log-only: the
// task still completes with the error, but the error slot is left alone and no
// snapshot is published.
func WithSilentCommands(names ...string) Option {
	return func(s *settings) {
		for _, n := range names {
			if s.silent == nil {
				s.silent = make(map[string]bool)
			}
			s.silent[n] = true
		}
	}
}

// WithClock overrides the time source for UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}
