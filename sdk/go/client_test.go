package sdk

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mem "rankview/adapters/memory"
	"rankview/api/httpapi"
	"rankview/auth"
	"rankview/core"
	"rankview/engine"
	"rankview/leaderboard"
	"rankview/realtime"
)

// newTestServer runs the real API over an in-memory board and session service.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	board := leaderboard.NewBoardSource(10)
	ctx := context.Background()
	require.NoError(t, board.RecordScore(ctx, "alice", "Alice", 100))
	require.NoError(t, board.RecordScore(ctx, "bob", "Bob", 90))

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

func TestClient_LeaderboardFlow(t *testing.T) {
	srv := newTestServer(t)
	client, err := NewClient(srv.URL+"/api/", WithAPIKey("k1"))
	require.NoError(t, err)
	ctx := context.Background()

	health, err := client.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "healthy", health.Status)

	lb, err := client.RefreshWait(ctx)
	require.NoError(t, err)
	require.Len(t, lb.Entries, 2)
	assert.Equal(t, "Alice", lb.Entries[0].DisplayName)

	task, err := client.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, "refresh", task.Command)

	lb, err = client.ChangeTimeFrame(ctx, core.TimeFrameDaily)
	require.NoError(t, err)
	assert.Equal(t, core.TimeFrameDaily, lb.TimeFrame)

	lb, err = client.RecordScore(ctx, "bob", "", 20)
	require.NoError(t, err)
	assert.Equal(t, core.UserID("bob"), lb.Entries[0].UserID)

	_, err = client.ChangeTimeFrame(ctx, "yearly")
	require.Error(t, err)
	assert.True(t, IsCode(err, "invalid_timeframe"))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)

	_, err = client.RecordScore(ctx, " ", "", 1)
	assert.ErrorIs(t, err, ErrEmptyUserID)
}

func TestClient_ProfileFlow(t *testing.T) {
	srv := newTestServer(t)
	client, err := NewClient(srv.URL+"/api", WithAuthToken("k1"))
	require.NoError(t, err)
	ctx := context.Background()

	p, err := client.Profile(ctx)
	require.NoError(t, err)
	assert.Nil(t, p.Profile)

	p, err = client.Login(ctx, "carl")
	require.NoError(t, err)
	require.NotNil(t, p.Profile)
	assert.Equal(t, "Carl Novak", p.Profile.FullName)

	bio := "ranked"
	p, err = client.UpdateProfile(ctx, "Carl N.", &bio)
	require.NoError(t, err)
	assert.Equal(t, "Carl N.", p.Profile.FullName)

	_, err = client.UpdateProfile(ctx, "", nil)
	assert.True(t, IsCode(err, "validation"))

	p, err = client.AcknowledgeProfileError(ctx)
	require.NoError(t, err)
	assert.Empty(t, p.Error)

	_, err = client.Logout(ctx)
	require.NoError(t, err)
}

func TestClient_Unauthorized(t *testing.T) {
	srv := newTestServer(t)
	client, err := NewClient(srv.URL + "/api")
	require.NoError(t, err)

	_, err = client.Leaderboard(context.Background())
	assert.True(t, IsCode(err, "unauthorized"))
}

func TestClient_SubscribeEvents(t *testing.T) {
	srv := newTestServer(t)
	client, err := NewClient(srv.URL+"/api", WithAPIKey("k1"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	events, err := client.SubscribeEvents(ctx, core.EventLeaderboardChanged)
	require.NoError(t, err)

	// the stream starts from the current state
	select {
	case evt := <-events:
		assert.Equal(t, core.EventLeaderboardChanged, evt.Type)
	case <-ctx.Done():
		t.Fatal("timed out waiting for initial event")
	}

	_, err = client.ChangeTimeFrame(ctx, core.TimeFrameMonthly)
	require.NoError(t, err)
	for {
		select {
		case evt := <-events:
			if evt.TimeFrame == core.TimeFrameMonthly && !evt.Loading {
				return
			}
		case <-ctx.Done():
			t.Fatal("timed out waiting for monthly event")
		}
	}
}

func TestDeriveWSURL(t *testing.T) {
	assert.Equal(t, "ws://localhost:8080/api/ws", deriveWSURL("http://localhost:8080/api"))
	assert.Equal(t, "wss://example.com/ws", deriveWSURL("https://example.com"))
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	_, err := NewClient("  ")
	assert.Error(t, err)
}
