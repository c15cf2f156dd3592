// Package leaderboard provides leaderboard data sources for the leaderboard view.
package leaderboard

import (
	"context"

	"rankview/core"
)

// Entry is a score held by a Board.
type Entry struct {
	User  core.UserID
	Name  string
	Score int64
}

// Board abstracts an ordered score table.
type Board interface {
	Upsert(e Entry)
	Remove(user core.UserID)
	TopN(n int) []Entry
	Get(user core.UserID) (Entry, bool)
	Rank(user core.UserID) (int, bool)
	Len() int
}

// Source loads the ranked entries for a timeframe.
type Source interface {
	Fetch(ctx context.Context, tf core.TimeFrame) ([]core.LeaderboardEntry, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, tf core.TimeFrame) ([]core.LeaderboardEntry, error)

func (f SourceFunc) Fetch(ctx context.Context, tf core.TimeFrame) ([]core.LeaderboardEntry, error) {
	return f(ctx, tf)
}

// ToLeaderboard converts board entries to ranked rows.
func ToLeaderboard(entries []Entry) []core.LeaderboardEntry {
	out := make([]core.LeaderboardEntry, 0, len(entries))
	for i, e := range entries {
		name := e.Name
		if name == "" {
			name = string(e.User)
		}
		out = append(out, core.LeaderboardEntry{Rank: i + 1, UserID: e.User, DisplayName: name, Score: e.Score})
	}
	return out
}
