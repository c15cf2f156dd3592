package sqlx_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	libsqlx "github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	storage "rankview/adapters/sqlx"
	"rankview/core"
)

// fixedNow is the clock of every mock store: Friday 2026-10-16.
var fixedNow = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

func newMockStore(t *testing.T) (*storage.Store, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	xdb := storage.NewWithDB(libsqlx.NewDb(db, "postgres"), storage.DriverPostgres,
		storage.WithClock(func() time.Time { return fixedNow }))
	cleanup := func() {
		_ = db.Close()
	}
	return xdb, mock, cleanup
}

func TestSQLMock_RecordScore_InsertThenUpdate(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	ctx := context.Background()
	user := core.UserID("u1")

	periods := map[core.TimeFrame]string{
		core.TimeFrameDaily:   "2026-10-16",
		core.TimeFrameWeekly:  "2026-W42",
		core.TimeFrameMonthly: "2026-10",
		core.TimeFrameAllTime: "all",
	}

	mock.ExpectBegin()
	for i, tf := range core.TimeFrames() {
		period := periods[tf]
		mock.ExpectExec(`DELETE FROM leaderboard_scores WHERE timeframe = \$1 AND period <> \$2`).
			WithArgs(tf, period).
			WillReturnResult(sqlmock.NewResult(0, 0))
		q := mock.ExpectQuery(`SELECT display_name, score FROM leaderboard_scores WHERE timeframe = \$1 AND period = \$2 AND user_id = \$3`).
			WithArgs(tf, period, user)
		if i == 0 {
			q.WillReturnError(sql.ErrNoRows)
			mock.ExpectExec(`INSERT INTO leaderboard_scores`).
				WithArgs(tf, period, user, "User One", int64(10), sqlmock.AnyArg()).
				WillReturnResult(sqlmock.NewResult(1, 1))
			continue
		}
		q.WillReturnRows(sqlmock.NewRows([]string{"display_name", "score"}).AddRow("Old", 5))
		mock.ExpectExec(`UPDATE leaderboard_scores SET`).
			WithArgs("User One", int64(15), sqlmock.AnyArg(), tf, period, user).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	require.NoError(t, store.RecordScore(ctx, "U1", "User One", 10))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_RecordScore_RollsBackOnError(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM leaderboard_scores`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT display_name, score FROM leaderboard_scores`).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := store.RecordScore(context.Background(), "u1", "", 3)
	require.Error(t, err)
	require.Contains(t, err.Error(), "connection reset")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_Fetch(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT user_id, display_name, score FROM leaderboard_scores WHERE timeframe = \$1 AND period = \$2 ORDER BY score DESC`).
		WithArgs(core.TimeFrameWeekly, "2026-W42").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "display_name", "score"}).
			AddRow("alice", "Alice", 100).
			AddRow("bob", "Bob", 90).
			AddRow("carl", "", 80))

	entries, err := store.Fetch(context.Background(), core.TimeFrameWeekly)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, 1, entries[0].Rank)
	require.Equal(t, "Alice", entries[0].DisplayName)
	require.Equal(t, "carl", entries[2].DisplayName)
	require.Equal(t, 3, entries[2].Rank)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_Fetch_InvalidTimeFrame(t *testing.T) {
	store, _, cleanup := newMockStore(t)
	defer cleanup()

	_, err := store.Fetch(context.Background(), "yearly")
	require.ErrorIs(t, err, core.ErrInvalidTimeFrame)
}

func TestSQLMock_GetProfile(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	mock.ExpectQuery(`SELECT user_id, email, username, full_name, bio, avatar_url, created_at, updated_at FROM user_profiles`).
		WithArgs(core.UserID("alice")).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "email", "username", "full_name", "bio", "avatar_url", "created_at", "updated_at"}).
			AddRow("alice", "alice@example.com", "alice", "Alice Doe", nil, "", created, created))

	u, err := store.GetProfile(context.Background(), "Alice")
	require.NoError(t, err)
	require.Equal(t, "Alice Doe", u.FullName)
	require.Nil(t, u.Bio)
	require.True(t, created.Equal(u.CreatedAt))

	mock.ExpectQuery(`FROM user_profiles`).
		WithArgs(core.UserID("ghost")).
		WillReturnError(sql.ErrNoRows)
	_, err = store.GetProfile(context.Background(), "ghost")
	require.ErrorIs(t, err, core.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_SaveProfile_Insert(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	user := core.UserID("u1")

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(user).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(`INSERT INTO user_profiles`).
		WithArgs(user, "", "", "User One", "hello", "", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, store.SaveProfile(context.Background(), core.User{ID: user, FullName: "User One", Bio: core.StringPtr("hello")}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_SaveProfile_Update(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	user := core.UserID("u1")

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(user).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectExec(`UPDATE user_profiles SET`).
		WithArgs("", "", "Renamed", nil, "", sqlmock.AnyArg(), user).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, store.SaveProfile(context.Background(), core.User{ID: user, FullName: "Renamed"}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_RecordScore_ZeroDelta(t *testing.T) {
	store, _, cleanup := newMockStore(t)
	defer cleanup()

	err := store.RecordScore(context.Background(), "u1", "", 0)
	require.Error(t, err)
}
