package engine

import (
	"context"

	"rankview/core"
)

//go:generate mockgen -destination=mock_engine_test.go -package=engine . LeaderboardSource,AuthService

// LeaderboardSource loads the ranked entries for a timeframe.
type LeaderboardSource interface {
	Fetch(ctx context.Context, tf core.TimeFrame) ([]core.LeaderboardEntry, error)
}

// AuthService is the authentication backend the profile view mirrors.
// CurrentUser is a synchronous read of the cached session.
type AuthService interface {
	CurrentUser() (*core.User, bool)
	UpdateProfile(ctx context.Context, fullName string, bio *string) error
	Logout(ctx context.Context) error
}

// SessionStarter is implemented by auth services that can open a session.
type SessionStarter interface {
	Login(ctx context.Context, user core.UserID) error
}

// ProfileStore abstracts persistence of user profiles.
type ProfileStore interface {
	GetProfile(ctx context.Context, user core.UserID) (core.User, error)
	SaveProfile(ctx context.Context, u core.User) error
}

// ScoreRecorder is implemented by leaderboard sources that accept new scores.
type ScoreRecorder interface {
	RecordScore(ctx context.Context, user core.UserID, name string, delta int64) error
}
