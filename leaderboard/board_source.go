package leaderboard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"rankview/core"
)

// BoardSource keeps one in-memory Board per timeframe. Each board belongs to
// the current period of its timeframe (see core.PeriodKey) and starts empty
// once that period is over.
type BoardSource struct {
	mu     sync.Mutex
	boards map[core.TimeFrame]*periodBoard
	limit  int
	now    func() time.Time
}

type periodBoard struct {
	period string
	list   *SkipList
}

// BoardOption configures a BoardSource.
type BoardOption func(*BoardSource)

// WithClock replaces time.Now when deciding the current period.
func WithClock(now func() time.Time) BoardOption {
	return func(b *BoardSource) { b.now = now }
}

// NewBoardSource creates an empty source returning at most limit rows per fetch.
func NewBoardSource(limit int, opts ...BoardOption) *BoardSource {
	if limit <= 0 {
		limit = 50
	}
	b := &BoardSource{boards: map[core.TimeFrame]*periodBoard{}, limit: limit, now: time.Now}
	for _, o := range opts {
		o(b)
	}
	return b
}

// board returns the skip list of the running period, rolling over a stale one.
func (b *BoardSource) board(tf core.TimeFrame) *SkipList {
	period := core.PeriodKey(tf, b.now())
	b.mu.Lock()
	defer b.mu.Unlock()
	pb, ok := b.boards[tf]
	if !ok || pb.period != period {
		pb = &periodBoard{period: period, list: NewSkipList()}
		b.boards[tf] = pb
	}
	return pb.list
}

// RecordScore adds delta to the user's score in the current period of every
// timeframe.
func (b *BoardSource) RecordScore(_ context.Context, user core.UserID, name string, delta int64) error {
	normalized, err := core.NormalizeUserID(user)
	if err != nil {
		return err
	}
	for _, tf := range core.TimeFrames() {
		b.board(tf).Add(normalized, name, delta)
	}
	return nil
}

// Set replaces the user's score in the current period of a single timeframe.
func (b *BoardSource) Set(tf core.TimeFrame, e Entry) error {
	if !tf.Valid() {
		return fmt.Errorf("%w: %q", core.ErrInvalidTimeFrame, tf)
	}
	b.board(tf).Upsert(e)
	return nil
}

// Reset drops every score of a timeframe's current period.
func (b *BoardSource) Reset(tf core.TimeFrame) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.boards, tf)
}

func (b *BoardSource) Fetch(ctx context.Context, tf core.TimeFrame) ([]core.LeaderboardEntry, error) {
	if !tf.Valid() {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidTimeFrame, tf)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ToLeaderboard(b.board(tf).TopN(b.limit)), nil
}

var _ Source = (*BoardSource)(nil)
