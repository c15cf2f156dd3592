package leaderboard

import (
	"context"
	"time"

	"rankview/core"
)

// DefaultMockDelay is the artificial latency of MockSource.
const DefaultMockDelay = 500 * time.Millisecond

// MockSource serves canned leaderboards after a fixed delay. It never fails
// unless ctx is cancelled while it waits.
type MockSource struct {
	Delay time.Duration
	Data  map[core.TimeFrame][]core.LeaderboardEntry
}

// NewMockSource returns a MockSource with the default canned data.
func NewMockSource(delay time.Duration) *MockSource {
	return &MockSource{Delay: delay, Data: MockData()}
}

// MockData returns placeholder standings for every timeframe.
func MockData() map[core.TimeFrame][]core.LeaderboardEntry {
	row := func(id, name string, score int64) core.LeaderboardEntry {
		return core.LeaderboardEntry{UserID: core.UserID(id), DisplayName: name, Score: score}
	}
	return map[core.TimeFrame][]core.LeaderboardEntry{
		core.TimeFrameDaily: core.RankEntries([]core.LeaderboardEntry{
			row("bob", "Bob", 42), row("alice", "Alice", 35), row("carl", "Carl", 12),
		}),
		core.TimeFrameWeekly: core.RankEntries([]core.LeaderboardEntry{
			row("alice", "Alice", 100), row("bob", "Bob", 90), row("carl", "Carl", 80),
		}),
		core.TimeFrameMonthly: core.RankEntries([]core.LeaderboardEntry{
			row("carl", "Carl", 410), row("alice", "Alice", 385), row("bob", "Bob", 290), row("dana", "Dana", 120),
		}),
		core.TimeFrameAllTime: core.RankEntries([]core.LeaderboardEntry{
			row("alice", "Alice", 5120), row("carl", "Carl", 4870), row("bob", "Bob", 3990), row("dana", "Dana", 760), row("eve", "Eve", 220),
		}),
	}
}

func (m *MockSource) Fetch(ctx context.Context, tf core.TimeFrame) ([]core.LeaderboardEntry, error) {
	if m.Delay > 0 {
		timer := time.NewTimer(m.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return core.CloneEntries(m.Data[tf]), nil
}

var _ Source = (*MockSource)(nil)
