package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// UserID uniquely identifies a user.
type UserID string

// TimeFrame selects which leaderboard window to fetch.
type TimeFrame string

const (
	TimeFrameDaily   TimeFrame = "daily"
	TimeFrameWeekly  TimeFrame = "weekly"
	TimeFrameMonthly TimeFrame = "monthly"
	TimeFrameAllTime TimeFrame = "all_time"
)

// DefaultTimeFrame is used when a leaderboard is initialized without a selection.
const DefaultTimeFrame = TimeFrameWeekly

// TimeFrames lists every supported timeframe in display order.
func TimeFrames() []TimeFrame {
	return []TimeFrame{TimeFrameDaily, TimeFrameWeekly, TimeFrameMonthly, TimeFrameAllTime}
}

// ParseTimeFrame accepts the canonical names plus a few common aliases.
func ParseTimeFrame(s string) (TimeFrame, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "daily", "day", "today":
		return TimeFrameDaily, nil
	case "weekly", "week":
		return TimeFrameWeekly, nil
	case "monthly", "month":
		return TimeFrameMonthly, nil
	case "all_time", "alltime", "all-time", "all":
		return TimeFrameAllTime, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidTimeFrame, s)
}

// Valid reports whether tf is one of the supported timeframes.
func (tf TimeFrame) Valid() bool {
	switch tf {
	case TimeFrameDaily, TimeFrameWeekly, TimeFrameMonthly, TimeFrameAllTime:
		return true
	}
	return false
}

// PeriodKey names the window of tf that contains t, in UTC: "2026-10-16",
// "2026-W42", "2026-10", or "all" for all_time. Scores recorded in one
// window do not carry over into the next.
func PeriodKey(tf TimeFrame, t time.Time) string {
	t = t.UTC()
	switch tf {
	case TimeFrameDaily:
		return t.Format("2006-01-02")
	case TimeFrameWeekly:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	case TimeFrameMonthly:
		return t.Format("2006-01")
	}
	return "all"
}

// LeaderboardEntry is one ranked row of a leaderboard.
type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	UserID      UserID `json:"user_id"`
	DisplayName string `json:"display_name"`
	Score       int64  `json:"score"`
}

// RankEntries orders entries by score desc then user id asc and assigns 1-based ranks.
// The input slice is not modified.
func RankEntries(in []LeaderboardEntry) []LeaderboardEntry {
	out := make([]LeaderboardEntry, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score == out[j].Score {
			return out[i].UserID < out[j].UserID
		}
		return out[i].Score > out[j].Score
	})
	for i := range out {
		out[i].Rank = i + 1
		if out[i].DisplayName == "" {
			out[i].DisplayName = string(out[i].UserID)
		}
	}
	return out
}

// CloneEntries returns a copy of entries, preserving nil.
func CloneEntries(in []LeaderboardEntry) []LeaderboardEntry {
	if in == nil {
		return nil
	}
	out := make([]LeaderboardEntry, len(in))
	copy(out, in)
	return out
}

// User is the authenticated user's profile as reported by the auth service.
type User struct {
	ID        UserID    `json:"id"`
	Email     string    `json:"email,omitempty"`
	Username  string    `json:"username,omitempty"`
	FullName  string    `json:"full_name"`
	Bio       *string   `json:"bio,omitempty"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy so snapshots never share the Bio pointer.
func (u User) Clone() User {
	cp := u
	if u.Bio != nil {
		b := *u.Bio
		cp.Bio = &b
	}
	return cp
}

// DisplayName prefers the full name, then the username, then the id.
func (u User) DisplayName() string {
	if strings.TrimSpace(u.FullName) != "" {
		return u.FullName
	}
	if u.Username != "" {
		return u.Username
	}
	return string(u.ID)
}

// NormalizeUserID trims and lowercases user identifiers.
func NormalizeUserID(id UserID) (UserID, error) {
	s := strings.TrimSpace(string(id))
	if s == "" {
		return "", errors.New("empty user id")
	}
	return UserID(strings.ToLower(s)), nil
}

// StringPtr is a small helper for optional string fields.
func StringPtr(s string) *string { return &s }
