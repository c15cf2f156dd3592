package auth

import (
	"time"

	"rankview/core"
)

// DemoProfiles returns the profiles matching the mock leaderboard rows.
func DemoProfiles() []core.User {
	joined := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	return []core.User{
		{ID: "alice", Email: "alice@example.com", Username: "alice", FullName: "Alice Martin", Bio: core.StringPtr("Weekly champion."), CreatedAt: joined, UpdatedAt: joined},
		{ID: "bob", Email: "bob@example.com", Username: "bob", FullName: "Bob Chen", CreatedAt: joined, UpdatedAt: joined},
		{ID: "carl", Email: "carl@example.com", Username: "carl", FullName: "Carl Novak", CreatedAt: joined, UpdatedAt: joined},
	}
}
