package sqlx_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storage "rankview/adapters/sqlx"
	"rankview/core"
)

func TestSQLite_PeriodRollover(t *testing.T) {
	now := time.Date(2026, 10, 30, 9, 0, 0, 0, time.UTC)
	ctx := context.Background()
	store, err := storage.New(ctx, storage.Config{
		Driver:      storage.DriverSQLite,
		DSN:         filepath.Join(t.TempDir(), "scores.db"),
		AutoMigrate: true,
	}, storage.WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.RecordScore(ctx, "alice", "Alice", 50))
	require.NoError(t, store.RecordScore(ctx, "alice", "", 10))

	daily, err := store.Fetch(ctx, core.TimeFrameDaily)
	require.NoError(t, err)
	require.Len(t, daily, 1)
	assert.Equal(t, int64(60), daily[0].Score)
	assert.Equal(t, "Alice", daily[0].DisplayName)

	now = time.Date(2026, 11, 2, 9, 0, 0, 0, time.UTC) // new day, week and month
	require.NoError(t, store.RecordScore(ctx, "bob", "Bob", 5))

	for _, tf := range []core.TimeFrame{core.TimeFrameDaily, core.TimeFrameWeekly, core.TimeFrameMonthly} {
		entries, err := store.Fetch(ctx, tf)
		require.NoError(t, err)
		require.Len(t, entries, 1, tf)
		assert.Equal(t, core.UserID("bob"), entries[0].UserID, tf)
	}

	all, err := store.Fetch(ctx, core.TimeFrameAllTime)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, core.UserID("alice"), all[0].UserID)
	assert.Equal(t, int64(60), all[0].Score)
}
