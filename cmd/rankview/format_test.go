package main

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"rankview/core"
)

func TestPrintLeaderboard(t *testing.T) {
	entries := core.RankEntries([]core.LeaderboardEntry{
		{UserID: "alice", DisplayName: "Alice", Score: 5120},
		{UserID: "bob", DisplayName: "Bob", Score: 3990},
	})
	var buf bytes.Buffer
	printLeaderboard(&buf, core.TimeFrameAllTime, entries, false, "", time.Now().Add(-2*time.Minute))

	out := buf.String()
	assert.Contains(t, out, "all_time leaderboard, updated 2 minutes ago")
	assert.Contains(t, out, "1st")
	assert.Contains(t, out, "2nd")
	assert.Contains(t, out, "5,120")
	assert.NotContains(t, out, "error:")
}

func TestPrintLeaderboardEmptyWithError(t *testing.T) {
	var buf bytes.Buffer
	printLeaderboard(&buf, core.TimeFrameDaily, nil, true, "fetch daily leaderboard: boom", time.Time{})

	out := buf.String()
	assert.Contains(t, out, "daily leaderboard (loading)\n")
	assert.Contains(t, out, "error: fetch daily leaderboard: boom")
	assert.Contains(t, out, "no entries")
}

func TestPrintProfile(t *testing.T) {
	var buf bytes.Buffer
	printProfile(&buf, nil, "")
	assert.Equal(t, "profile: not signed in\n", buf.String())

	buf.Reset()
	u := &core.User{ID: "alice", FullName: "Alice Martin", Bio: core.StringPtr("hi")}
	printProfile(&buf, u, "update_profile: full_name cannot be empty")
	assert.Contains(t, buf.String(), `profile: Alice Martin (alice), "hi"`)
	assert.Contains(t, buf.String(), "error: update_profile: full_name cannot be empty")
}

func TestDescribeEvent(t *testing.T) {
	lb := core.NewLeaderboardChanged(core.TimeFrameWeekly, []core.LeaderboardEntry{
		{Rank: 1, UserID: "alice", DisplayName: "Alice", Score: 1000},
	}, false, 3, "")
	assert.Contains(t, describeEvent(lb), "leaderboard_changed timeframe=weekly entries=1 loading=false leader=Alice(1,000)")

	assert.Contains(t, describeEvent(core.NewProfileChanged(nil, "")), "profile_changed signed_out")
	assert.Contains(t, describeEvent(core.NewLoggedOut("bob")), "logged_out user=bob")

	switching := core.NewLeaderboardChanged(core.TimeFrameMonthly, nil, true, 4, "").WithDataTimeFrame(core.TimeFrameWeekly)
	assert.Contains(t, describeEvent(switching), "timeframe=monthly entries=0 loading=true showing=weekly")
	assert.NotContains(t, describeEvent(lb), "showing=")

	updated := describeEvent(core.NewProfileUpdated(&core.User{ID: "alice", FullName: "Alice Cooper"}))
	assert.Contains(t, updated, `profile_updated user=alice name="Alice Cooper"`)

	failed := describeEvent(core.NewCommandFailed("profile.update_profile", errors.New("bad name")))
	assert.Contains(t, failed, "command=profile.update_profile")
	assert.Contains(t, failed, `error="bad name"`)
}

func TestParseEventTypes(t *testing.T) {
	types, err := parseEventTypes([]string{"leaderboard_changed", " logged_out ", "", "profile_updated"})
	assert.NoError(t, err)
	assert.Equal(t, []core.EventType{core.EventLeaderboardChanged, core.EventLoggedOut, core.EventProfileUpdated}, types)

	_, err = parseEventTypes([]string{"score_added"})
	assert.Error(t, err)
}
