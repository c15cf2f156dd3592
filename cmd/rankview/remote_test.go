package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mem "rankview/adapters/memory"
	"rankview/api/httpapi"
	"rankview/auth"
	"rankview/engine"
	"rankview/leaderboard"
	"rankview/realtime"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	board := leaderboard.NewBoardSource(10)
	ctx := context.Background()
	require.NoError(t, board.RecordScore(ctx, "alice", "Alice Martin", 100))
	require.NoError(t, board.RecordScore(ctx, "bob", "Bob Chen", 90))

	hub := realtime.NewHub()
	bus := engine.NewEventBus(engine.DispatchSync)
	bus.SubscribeAll(hub.Broadcast)
	svc := engine.NewService(board, auth.NewSessionService(mem.New(auth.DemoProfiles()...)), bus, engine.ViewOptions{})

	srv := httptest.NewServer(httpapi.NewMux(svc, hub, httpapi.Options{
		PathPrefix: "/api",
		APIKeys:    []string{"k1"},
		Scores:     board,
	}))
	t.Cleanup(func() {
		srv.Close()
		hub.Close()
		svc.Close()
	})
	return srv
}

// execute runs the root command against srv and returns its output.
func execute(t *testing.T, srv *httptest.Server, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(append([]string{"--server", srv.URL + "/api", "--api-key", "k1"}, args...))
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestRemoteLeaderboardAndScore(t *testing.T) {
	srv := newTestServer(t)

	out, err := execute(t, srv, "score", "carl", "250", "--name", "Carl Novak")
	require.NoError(t, err)
	assert.Contains(t, out, "Carl Novak")
	assert.Contains(t, out, "250")

	out, err = execute(t, srv, "leaderboard")
	require.NoError(t, err)
	assert.Contains(t, out, "1st")
	assert.Contains(t, out, "Carl Novak")

	_, err = execute(t, srv, "score", "carl", "lots")
	assert.Error(t, err)
}

func TestRemoteSessionCommands(t *testing.T) {
	srv := newTestServer(t)

	out, err := execute(t, srv, "login", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "profile: Alice Martin (alice)")

	out, err = execute(t, srv, "profile")
	require.NoError(t, err)
	assert.Contains(t, out, "Alice Martin")

	out, err = execute(t, srv, "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "profile:")
}

func TestRemoteRejectsBadAPIKey(t *testing.T) {
	srv := newTestServer(t)
	_, err := execute(t, srv, "--api-key", "nope", "login", "alice")
	assert.Error(t, err)
}
