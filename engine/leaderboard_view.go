package engine

import (
	"context"
	"errors"
	"fmt"

	"rankview/core"
	"rankview/viewstate"
)

// LeaderboardState is the observable leaderboard snapshot.
type LeaderboardState = viewstate.State[[]core.LeaderboardEntry, core.TimeFrame]

// Leaderboard is the view model behind a leaderboard screen.
type Leaderboard struct {
	ctrl    *viewstate.Controller[[]core.LeaderboardEntry, core.TimeFrame]
	bus     *EventBus
	ready   *viewstate.Task
	lastErr error
}

// NewLeaderboard builds the view model and triggers the initial fetch.
func NewLeaderboard(source LeaderboardSource, bus *EventBus, opts ViewOptions) *Leaderboard {
	if source == nil || bus == nil {
		panic("NewLeaderboard requires non-nil source and bus")
	}
	limit := opts.Limit
	fetch := func(ctx context.Context, tf core.TimeFrame) ([]core.LeaderboardEntry, error) {
		entries, err := source.Fetch(ctx, tf)
		if err != nil {
			return nil, fmt.Errorf("fetch %s leaderboard: %w", tf, err)
		}
		if limit > 0 && len(entries) > limit {
			entries = entries[:limit]
		}
		return entries, nil
	}
	lb := &Leaderboard{
		ctrl: viewstate.New(fetch, opts.defaultTimeFrame(), opts.controllerOptions("leaderboard")...),
		bus:  bus,
	}
	lb.ctrl.OnChange(lb.publish)
	lb.ready = lb.Initialize()
	return lb
}

// publish runs on the controller loop.
func (l *Leaderboard) publish(st LeaderboardState) {
	ctx := context.Background()
	if st.Err != nil && st.Err != l.lastErr {
		var cmdErr *viewstate.CommandError
		command := "leaderboard"
		if errors.As(st.Err, &cmdErr) {
			command = "leaderboard." + cmdErr.Command
		}
		l.bus.Publish(ctx, core.NewCommandFailed(command, st.Err))
	}
	l.lastErr = st.Err
	ev := core.NewLeaderboardChanged(st.Selection, st.Data, st.Loading, st.Generation, errorString(st.Err))
	l.bus.Publish(ctx, ev.WithDataTimeFrame(st.DataSelection).WithVersion(st.Version))
}

// Ready is the task of the fetch issued at construction.
func (l *Leaderboard) Ready() *viewstate.Task { return l.ready }

// Initialize sets loading and fetches the default timeframe.
func (l *Leaderboard) Initialize() *viewstate.Task { return l.ctrl.Initialize() }

// Refresh refetches the current timeframe.
func (l *Leaderboard) Refresh() *viewstate.Task { return l.ctrl.Refresh() }

// ChangeTimeFrame switches the timeframe and refreshes. Unknown timeframes are
// rejected without touching the state.
func (l *Leaderboard) ChangeTimeFrame(tf core.TimeFrame) *viewstate.Task {
	if !tf.Valid() {
		return viewstate.FailedTask("change_timeframe", fmt.Errorf("%w: %q", core.ErrInvalidTimeFrame, tf))
	}
	return l.ctrl.ChangeSelection(tf)
}

// AcknowledgeError clears the error slot.
func (l *Leaderboard) AcknowledgeError() *viewstate.Task { return l.ctrl.AcknowledgeError() }

// Snapshot returns the current state with a private copy of the entries.
func (l *Leaderboard) Snapshot() LeaderboardState {
	st := l.ctrl.Snapshot()
	st.Data = core.CloneEntries(st.Data)
	return st
}

// Subscribe streams snapshots; see viewstate.Controller.Subscribe.
func (l *Leaderboard) Subscribe(buffer int) (int, <-chan LeaderboardState) {
	return l.ctrl.Subscribe(buffer)
}

// Unsubscribe closes the snapshot stream registered under id.
func (l *Leaderboard) Unsubscribe(id int) { l.ctrl.Unsubscribe(id) }

// Close cancels in-flight fetches and stops the controller loop.
func (l *Leaderboard) Close() { l.ctrl.Close() }
