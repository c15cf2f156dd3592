// Package sqlx stores leaderboards and profiles in a SQL database through jmoiron/sqlx.
// Postgres, MySQL and SQLite are supported; queries are written with ? and rebound
// for the active driver.
package sqlx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"rankview/core"
)

// Driver names a supported SQL dialect.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverMySQL    Driver = "mysql"
	DriverSQLite   Driver = "sqlite"
)

// Config holds SQL connection settings.
type Config struct {
	Driver          Driver        `json:"driver" yaml:"driver" toml:"driver" env:"RANKVIEW_SQL_DRIVER"`
	DSN             string        `json:"dsn" yaml:"dsn" toml:"dsn" env:"RANKVIEW_SQL_DSN"`
	MaxOpenConns    int           `json:"max_open_conns" yaml:"max_open_conns" toml:"max_open_conns" env:"RANKVIEW_SQL_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `json:"max_idle_conns" yaml:"max_idle_conns" toml:"max_idle_conns" env:"RANKVIEW_SQL_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime" toml:"conn_max_lifetime" env:"RANKVIEW_SQL_CONN_MAX_LIFETIME"`
	// AutoMigrate creates the tables on startup.
	AutoMigrate bool `json:"auto_migrate" yaml:"auto_migrate" toml:"auto_migrate" env:"RANKVIEW_SQL_AUTO_MIGRATE"`
}

func DefaultConfig() Config {
	return Config{
		Driver:          DriverPostgres,
		DSN:             "postgres://localhost:5432/rankview?sslmode=disable",
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		AutoMigrate:     true,
	}
}

// Store implements leaderboard and profile persistence on SQL.
// Tables:
// - leaderboard_scores(timeframe, period, user_id, display_name, score, updated_at),
//   period as in core.PeriodKey; rows of finished periods are pruned on write
// - user_profiles(user_id, email, username, full_name, bio, avatar_url, created_at, updated_at)
type Store struct {
	db     *sqlx.DB
	driver Driver
	now    func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now for periods and timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New opens a connection pool and optionally migrates the schema.
func New(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	switch cfg.Driver {
	case DriverPostgres, DriverMySQL, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", cfg.Driver)
	}
	db, err := sqlx.ConnectContext(ctx, string(cfg.Driver), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Driver, err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	s := NewWithDB(db, cfg.Driver, opts...)
	if cfg.AutoMigrate {
		if err := s.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

// NewWithDB wraps an existing handle (useful for testing).
func NewWithDB(db *sqlx.DB, driver Driver, opts ...Option) *Store {
	s := &Store{db: db, driver: driver, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) schema() []string {
	text := "TEXT"
	if s.driver == DriverMySQL {
		text = "VARCHAR(255)"
	}
	ts := "TIMESTAMP"
	if s.driver == DriverMySQL {
		ts = "DATETIME(6)"
	}
	return []string{
		`CREATE TABLE IF NOT EXISTS leaderboard_scores (
			timeframe VARCHAR(16) NOT NULL,
			period VARCHAR(16) NOT NULL,
			user_id ` + text + ` NOT NULL,
			display_name ` + text + ` NOT NULL DEFAULT '',
			score BIGINT NOT NULL DEFAULT 0,
			updated_at ` + ts + ` NOT NULL,
			PRIMARY KEY (timeframe, period, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS user_profiles (
			user_id ` + text + ` NOT NULL PRIMARY KEY,
			email ` + text + ` NOT NULL DEFAULT '',
			username ` + text + ` NOT NULL DEFAULT '',
			full_name ` + text + ` NOT NULL DEFAULT '',
			bio ` + text + `,
			avatar_url ` + text + ` NOT NULL DEFAULT '',
			created_at ` + ts + ` NOT NULL,
			updated_at ` + ts + ` NOT NULL
		)`,
	}
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range s.schema() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// RecordScore adds delta to the user's score in the current period of every
// timeframe in one transaction.
func (s *Store) RecordScore(ctx context.Context, userID core.UserID, name string, delta int64) error {
	if delta == 0 {
		return errors.New("delta cannot be zero")
	}
	id, err := core.NormalizeUserID(userID)
	if err != nil {
		return err
	}
	now := s.now().UTC()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, tf := range core.TimeFrames() {
		period := core.PeriodKey(tf, now)
		if _, err := tx.ExecContext(ctx,
			tx.Rebind(`DELETE FROM leaderboard_scores WHERE timeframe = ? AND period <> ?`), tf, period); err != nil {
			return fmt.Errorf("prune %s scores: %w", tf, err)
		}
		var current struct {
			Name  string `db:"display_name"`
			Score int64  `db:"score"`
		}
		err := tx.GetContext(ctx, &current,
			tx.Rebind(`SELECT display_name, score FROM leaderboard_scores WHERE timeframe = ? AND period = ? AND user_id = ?`), tf, period, id)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			_, err = tx.ExecContext(ctx,
				tx.Rebind(`INSERT INTO leaderboard_scores (timeframe, period, user_id, display_name, score, updated_at) VALUES (?, ?, ?, ?, ?, ?)`),
				tf, period, id, name, delta, now)
		case err == nil:
			next := name
			if next == "" {
				next = current.Name
			}
			_, err = tx.ExecContext(ctx,
				tx.Rebind(`UPDATE leaderboard_scores SET display_name = ?, score = ?, updated_at = ? WHERE timeframe = ? AND period = ? AND user_id = ?`),
				next, current.Score+delta, now, tf, period, id)
		}
		if err != nil {
			return fmt.Errorf("record %s score: %w", tf, err)
		}
	}
	return tx.Commit()
}

// ResetTimeFrame clears every period of one timeframe.
func (s *Store) ResetTimeFrame(ctx context.Context, tf core.TimeFrame) error {
	if !tf.Valid() {
		return fmt.Errorf("%w: %q", core.ErrInvalidTimeFrame, tf)
	}
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM leaderboard_scores WHERE timeframe = ?`), tf)
	return err
}

type scoreRow struct {
	UserID      string `db:"user_id"`
	DisplayName string `db:"display_name"`
	Score       int64  `db:"score"`
}

// Fetch returns the ranked board of tf's current period.
func (s *Store) Fetch(ctx context.Context, tf core.TimeFrame) ([]core.LeaderboardEntry, error) {
	if !tf.Valid() {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidTimeFrame, tf)
	}
	var rows []scoreRow
	err := s.db.SelectContext(ctx, &rows,
		s.db.Rebind(`SELECT user_id, display_name, score FROM leaderboard_scores WHERE timeframe = ? AND period = ? ORDER BY score DESC, user_id ASC`),
		tf, core.PeriodKey(tf, s.now()))
	if err != nil {
		return nil, fmt.Errorf("failed to read leaderboard: %w", err)
	}
	entries := make([]core.LeaderboardEntry, len(rows))
	for i, r := range rows {
		entries[i] = core.LeaderboardEntry{UserID: core.UserID(r.UserID), DisplayName: r.DisplayName, Score: r.Score}
	}
	return core.RankEntries(entries), nil
}

type profileRow struct {
	UserID    string         `db:"user_id"`
	Email     string         `db:"email"`
	Username  string         `db:"username"`
	FullName  string         `db:"full_name"`
	Bio       sql.NullString `db:"bio"`
	AvatarURL string         `db:"avatar_url"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

func (r profileRow) user() core.User {
	u := core.User{
		ID:        core.UserID(r.UserID),
		Email:     r.Email,
		Username:  r.Username,
		FullName:  r.FullName,
		AvatarURL: r.AvatarURL,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
	if r.Bio.Valid {
		u.Bio = core.StringPtr(r.Bio.String)
	}
	return u
}

func (s *Store) GetProfile(ctx context.Context, userID core.UserID) (core.User, error) {
	id, err := core.NormalizeUserID(userID)
	if err != nil {
		return core.User{}, err
	}
	var row profileRow
	err = s.db.GetContext(ctx, &row, s.db.Rebind(
		`SELECT user_id, email, username, full_name, bio, avatar_url, created_at, updated_at FROM user_profiles WHERE user_id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, fmt.Errorf("profile %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.User{}, fmt.Errorf("failed to get profile: %w", err)
	}
	return row.user(), nil
}

// SaveProfile inserts or updates a profile; created_at is set once.
func (s *Store) SaveProfile(ctx context.Context, u core.User) error {
	id, err := core.NormalizeUserID(u.ID)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = now
	}
	var bio sql.NullString
	if u.Bio != nil {
		bio = sql.NullString{String: *u.Bio, Valid: true}
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists bool
	if err := tx.GetContext(ctx, &exists,
		tx.Rebind(`SELECT EXISTS(SELECT 1 FROM user_profiles WHERE user_id = ?)`), id); err != nil {
		return fmt.Errorf("failed to check profile: %w", err)
	}
	if exists {
		_, err = tx.ExecContext(ctx, tx.Rebind(
			`UPDATE user_profiles SET email = ?, username = ?, full_name = ?, bio = ?, avatar_url = ?, updated_at = ? WHERE user_id = ?`),
			u.Email, u.Username, u.FullName, bio, u.AvatarURL, u.UpdatedAt, id)
	} else {
		created := u.CreatedAt
		if created.IsZero() {
			created = now
		}
		_, err = tx.ExecContext(ctx, tx.Rebind(
			`INSERT INTO user_profiles (user_id, email, username, full_name, bio, avatar_url, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
			id, u.Email, u.Username, u.FullName, bio, u.AvatarURL, created, u.UpdatedAt)
	}
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return tx.Commit()
}
