package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"rankview/core"
)

// Store persists profiles and leaderboard scores to a single JSON file.
// Suitable for demos and small deployments. Each timeframe keeps only the
// board of its current period (core.PeriodKey).
type Store struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
	// in-memory cache for speed
	data document
}

type document struct {
	Profiles map[core.UserID]core.User `json:"profiles"`
	Boards   map[core.TimeFrame]*board `json:"boards"`
}

type board struct {
	Period string                    `json:"period"`
	Lines  map[core.UserID]scoreLine `json:"lines"`
}

type scoreLine struct {
	Name  string `json:"name,omitempty"`
	Score int64  `json:"score"`
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now for periods and timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(path string, opts ...Option) (*Store, error) {
	s := &Store{path: path, now: time.Now, data: document{
		Profiles: map[core.UserID]core.User{},
		Boards:   map[core.TimeFrame]*board{},
	}}
	for _, o := range opts {
		o(s)
	}
	if err := s.load(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) load() error {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	var doc document
	if err := json.Unmarshal(b, &doc); err != nil {
		return fmt.Errorf("decode %s: %w", s.path, err)
	}
	for k, v := range doc.Profiles {
		s.data.Profiles[k] = v
	}
	for tf, b := range doc.Boards {
		if !tf.Valid() || b == nil {
			continue
		}
		s.data.Boards[tf] = b
	}
	return nil
}

func (s *Store) persist() error {
	tmp := s.path + ".tmp"
	b, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *Store) GetProfile(_ context.Context, user core.UserID) (core.User, error) {
	id, err := core.NormalizeUserID(user)
	if err != nil {
		return core.User{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.data.Profiles[id]
	if !ok {
		return core.User{}, fmt.Errorf("profile %s: %w", id, core.ErrNotFound)
	}
	return u.Clone(), nil
}

func (s *Store) SaveProfile(_ context.Context, u core.User) error {
	id, err := core.NormalizeUserID(u.ID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u = u.Clone()
	u.ID = id
	now := s.now().UTC()
	if prev, ok := s.data.Profiles[id]; ok && u.CreatedAt.IsZero() {
		u.CreatedAt = prev.CreatedAt
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = now
	}
	s.data.Profiles[id] = u
	return s.persist()
}

// current returns the board of tf's running period, or nil when the stored
// one belongs to a finished period.
func (s *Store) current(tf core.TimeFrame) *board {
	b := s.data.Boards[tf]
	if b == nil || b.Period != core.PeriodKey(tf, s.now()) {
		return nil
	}
	return b
}

// RecordScore adds delta to the user's score in the current period of every
// timeframe.
func (s *Store) RecordScore(ctx context.Context, user core.UserID, name string, delta int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	id, err := core.NormalizeUserID(user)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tf := range core.TimeFrames() {
		b := s.current(tf)
		if b == nil {
			b = &board{Period: core.PeriodKey(tf, s.now()), Lines: map[core.UserID]scoreLine{}}
			s.data.Boards[tf] = b
		}
		line := b.Lines[id]
		if name != "" {
			line.Name = name
		}
		line.Score += delta
		b.Lines[id] = line
	}
	return s.persist()
}

// Fetch returns the ranked scores recorded for tf in its current period.
func (s *Store) Fetch(ctx context.Context, tf core.TimeFrame) ([]core.LeaderboardEntry, error) {
	if !tf.Valid() {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidTimeFrame, tf)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var lines map[core.UserID]scoreLine
	if b := s.current(tf); b != nil {
		lines = b.Lines
	}
	out := make([]core.LeaderboardEntry, 0, len(lines))
	for id, l := range lines {
		out = append(out, core.LeaderboardEntry{UserID: id, DisplayName: l.Name, Score: l.Score})
	}
	return core.RankEntries(out), nil
}
