package engine

import (
	"log/slog"
	"time"

	"rankview/core"
	"rankview/viewstate"
)

// ViewOptions configures the leaderboard and profile view models.
type ViewOptions struct {
	// DefaultTimeFrame is the leaderboard selection used by Initialize.
	DefaultTimeFrame core.TimeFrame
	// RacePolicy reconciles overlapping leaderboard fetches.
	RacePolicy viewstate.RacePolicy
	// FetchTimeout bounds each data-source call; zero disables it.
	FetchTimeout time.Duration
	// Limit truncates leaderboards to the top N rows; zero keeps everything.
	Limit int
	// QuietProfileUpdates keeps failed profile edits out of the error slot and
	// off the bus; they are only logged and returned from the task.
	QuietProfileUpdates bool
	Logger              *slog.Logger
}

func (o ViewOptions) controllerOptions(name string) []viewstate.Option {
	return []viewstate.Option{
		viewstate.WithName(name),
		viewstate.WithRacePolicy(o.RacePolicy),
		viewstate.WithFetchTimeout(o.FetchTimeout),
		viewstate.WithLogger(o.Logger),
	}
}

func (o ViewOptions) profileOptions() []viewstate.Option {
	opts := o.controllerOptions("profile")
	if o.QuietProfileUpdates {
		opts = append(opts, viewstate.WithSilentCommands(updateProfileCommand))
	}
	return opts
}

func (o ViewOptions) defaultTimeFrame() core.TimeFrame {
	if o.DefaultTimeFrame.Valid() {
		return o.DefaultTimeFrame
	}
	return core.DefaultTimeFrame
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
