package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"rankview/core"

	"github.com/redis/go-redis/v9"
)

// Config holds Redis connection configuration
type Config struct {
	Addr         string        `json:"addr" yaml:"addr" toml:"addr" env:"RANKVIEW_REDIS_ADDR"`
	Password     string        `json:"password" yaml:"password" toml:"password" env:"RANKVIEW_REDIS_PASSWORD"`
	DB           int           `json:"db" yaml:"db" toml:"db" env:"RANKVIEW_REDIS_DB"`
	PoolSize     int           `json:"pool_size" yaml:"pool_size" toml:"pool_size" env:"RANKVIEW_REDIS_POOL_SIZE"`
	MinIdleConns int           `json:"min_idle_conns" yaml:"min_idle_conns" toml:"min_idle_conns" env:"RANKVIEW_REDIS_MIN_IDLE_CONNS"`
	DialTimeout  time.Duration `json:"dial_timeout" yaml:"dial_timeout" toml:"dial_timeout" env:"RANKVIEW_REDIS_DIAL_TIMEOUT"`
	ReadTimeout  time.Duration `json:"read_timeout" yaml:"read_timeout" toml:"read_timeout" env:"RANKVIEW_REDIS_READ_TIMEOUT"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout" toml:"write_timeout" env:"RANKVIEW_REDIS_WRITE_TIMEOUT"`
	// Prefix namespaces every key, e.g. "rankview:".
	Prefix string `json:"prefix" yaml:"prefix" toml:"prefix" env:"RANKVIEW_REDIS_PREFIX"`
}

// DefaultConfig returns sensible defaults for Redis configuration
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Store keeps leaderboards and profiles in Redis.
// Data structure:
// - {prefix}leaderboard:{timeframe}:{period} -> sorted set of user ids by score,
//   period as in core.PeriodKey; rolling periods expire after boardTTL
// - {prefix}leaderboard:names -> hash of user id to display name
// - {prefix}user:{user_id}:profile -> JSON blob of core.User
type Store struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now when picking the current period.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// boardTTL keeps a finished period readable for a while before Redis drops it.
func boardTTL(tf core.TimeFrame) time.Duration {
	switch tf {
	case core.TimeFrameDaily:
		return 48 * time.Hour
	case core.TimeFrameWeekly:
		return 15 * 24 * time.Hour
	case core.TimeFrameMonthly:
		return 62 * 24 * time.Hour
	}
	return 0
}

// New creates a new Redis-backed storage with the provided configuration
func New(config Config, opts ...Option) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewWithClient(client, config.Prefix, opts...), nil
}

// NewWithClient creates a Store using an existing Redis client (useful for testing)
func NewWithClient(client *redis.Client, prefix string, opts ...Option) *Store {
	s := &Store{client: client, prefix: prefix, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) boardKey(tf core.TimeFrame) string {
	now := time.Now
	if s.now != nil {
		now = s.now
	}
	return fmt.Sprintf("%sleaderboard:%s:%s", s.prefix, tf, core.PeriodKey(tf, now()))
}

func (s *Store) namesKey() string {
	return s.prefix + "leaderboard:names"
}

func (s *Store) profileKey(userID core.UserID) string {
	return fmt.Sprintf("%suser:%s:profile", s.prefix, userID)
}

// Lua script adding the same delta to every timeframe board in one round trip.
// KEYS[1] is the names hash, KEYS[2..n] the boards; ARGV[4..] holds the TTL in
// seconds of each board, 0 for none.
var recordScoreScript = redis.NewScript(`
	local member = ARGV[1]
	local delta = tonumber(ARGV[2])
	local name = ARGV[3]
	if name ~= '' then
		redis.call('HSET', KEYS[1], member, name)
	end
	for i = 2, #KEYS do
		redis.call('ZINCRBY', KEYS[i], delta, member)
		local ttl = tonumber(ARGV[i + 2])
		if ttl and ttl > 0 then
			redis.call('EXPIRE', KEYS[i], ttl)
		end
	end
	return #KEYS - 1
`)

// RecordScore atomically adds delta to the user's score on the current period
// board of every timeframe.
func (s *Store) RecordScore(ctx context.Context, userID core.UserID, name string, delta int64) error {
	if delta == 0 {
		return errors.New("delta cannot be zero")
	}
	id, err := core.NormalizeUserID(userID)
	if err != nil {
		return err
	}
	keys := []string{s.namesKey()}
	args := []any{string(id), delta, name}
	for _, tf := range core.TimeFrames() {
		keys = append(keys, s.boardKey(tf))
		args = append(args, int64(boardTTL(tf)/time.Second))
	}
	if err := recordScoreScript.Run(ctx, s.client, keys, args...).Err(); err != nil {
		return fmt.Errorf("failed to record score: %w", err)
	}
	return nil
}

// ResetTimeFrame drops the current period's board of tf.
func (s *Store) ResetTimeFrame(ctx context.Context, tf core.TimeFrame) error {
	if !tf.Valid() {
		return fmt.Errorf("%w: %q", core.ErrInvalidTimeFrame, tf)
	}
	return s.client.Del(ctx, s.boardKey(tf)).Err()
}

// Fetch reads the current period's board for tf, highest score first.
func (s *Store) Fetch(ctx context.Context, tf core.TimeFrame) ([]core.LeaderboardEntry, error) {
	if !tf.Valid() {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidTimeFrame, tf)
	}
	members, err := s.client.ZRevRangeWithScores(ctx, s.boardKey(tf), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read leaderboard: %w", err)
	}
	if len(members) == 0 {
		return []core.LeaderboardEntry{}, nil
	}

	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = fmt.Sprint(m.Member)
	}
	names, err := s.client.HMGet(ctx, s.namesKey(), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read display names: %w", err)
	}

	entries := make([]core.LeaderboardEntry, len(members))
	for i, m := range members {
		e := core.LeaderboardEntry{UserID: core.UserID(ids[i]), Score: int64(m.Score)}
		if n, ok := names[i].(string); ok {
			e.DisplayName = n
		}
		entries[i] = e
	}
	return core.RankEntries(entries), nil
}

// GetProfile loads a stored profile.
func (s *Store) GetProfile(ctx context.Context, userID core.UserID) (core.User, error) {
	id, err := core.NormalizeUserID(userID)
	if err != nil {
		return core.User{}, err
	}
	data, err := s.client.Get(ctx, s.profileKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return core.User{}, fmt.Errorf("profile %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.User{}, fmt.Errorf("failed to get profile: %w", err)
	}
	var u core.User
	if err := json.Unmarshal(data, &u); err != nil {
		return core.User{}, fmt.Errorf("failed to decode profile: %w", err)
	}
	return u, nil
}

// SaveProfile stores the profile, keeping the original creation time.
func (s *Store) SaveProfile(ctx context.Context, u core.User) error {
	id, err := core.NormalizeUserID(u.ID)
	if err != nil {
		return err
	}
	u.ID = id
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		if prev, err := s.GetProfile(ctx, id); err == nil {
			u.CreatedAt = prev.CreatedAt
		} else {
			u.CreatedAt = now
		}
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = now
	}
	data, err := json.Marshal(u)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.profileKey(id), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}
