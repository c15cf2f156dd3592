package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"rankview/core"
	"rankview/leaderboard"
	"rankview/viewstate"
)

func waitTask(t *testing.T, task *viewstate.Task) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	err := task.Wait(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded, "task %s did not complete", task.Name())
	return err
}

func names(entries []core.LeaderboardEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.DisplayName)
	}
	return out
}

func rows(names ...string) []core.LeaderboardEntry {
	entries := make([]core.LeaderboardEntry, 0, len(names))
	for i, n := range names {
		entries = append(entries, core.LeaderboardEntry{UserID: core.UserID(n), DisplayName: n, Score: int64(100 - i)})
	}
	return core.RankEntries(entries)
}

// fetchGate hands every Fetch call to the test, which decides when and how it returns.
type fetchGate struct {
	calls chan *fetchCall
}

type fetchCall struct {
	tf    core.TimeFrame
	reply chan []core.LeaderboardEntry
}

func newFetchGate() *fetchGate { return &fetchGate{calls: make(chan *fetchCall, 8)} }

func (g *fetchGate) fetch(ctx context.Context, tf core.TimeFrame) ([]core.LeaderboardEntry, error) {
	c := &fetchCall{tf: tf, reply: make(chan []core.LeaderboardEntry, 1)}
	g.calls <- c
	select {
	case e := <-c.reply:
		return e, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (g *fetchGate) next(t *testing.T) *fetchCall {
	t.Helper()
	select {
	case c := <-g.calls:
		return c
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for fetch")
		return nil
	}
}

// fakeAuth is a stateful in-memory AuthService with optional login support.
type fakeAuth struct {
	mu        sync.Mutex
	users     map[core.UserID]core.User
	current   core.UserID
	updateErr error
}

func newFakeAuth(users ...core.User) *fakeAuth {
	f := &fakeAuth{users: map[core.UserID]core.User{}}
	for _, u := range users {
		f.users[u.ID] = u
	}
	if len(users) > 0 {
		f.current = users[0].ID
	}
	return f
}

func (f *fakeAuth) CurrentUser() (*core.User, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[f.current]
	if !ok {
		return nil, false
	}
	return &u, true
}

func (f *fakeAuth) UpdateProfile(_ context.Context, fullName string, bio *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	u, ok := f.users[f.current]
	if !ok {
		return core.NewAuthError("update_profile", core.AuthCodeNoSession, core.ErrNoSession)
	}
	f.users[u.ID] = core.ProfileUpdate{FullName: fullName, Bio: bio}.Apply(u)
	return nil
}

func (f *fakeAuth) Logout(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = ""
	return nil
}

func (f *fakeAuth) Login(_ context.Context, user core.UserID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[user]; !ok {
		return core.NewAuthError("login", core.AuthCodeNotFound, core.ErrNotFound)
	}
	f.current = user
	return nil
}

func alice() core.User {
	return core.User{ID: "alice", Email: "alice@example.com", Username: "alice", FullName: "Alice Doe"}
}

func TestLeaderboardRefreshLoadsWeeklyStandings(t *testing.T) {
	bus := NewEventBus(DispatchSync)
	t.Cleanup(bus.Close)
	lb := NewLeaderboard(leaderboard.NewMockSource(10*time.Millisecond), bus, ViewOptions{})
	t.Cleanup(lb.Close)

	require.NoError(t, waitTask(t, lb.Ready()))
	require.NoError(t, waitTask(t, lb.Refresh()))

	st := lb.Snapshot()
	assert.False(t, st.Loading)
	assert.Equal(t, core.TimeFrameWeekly, st.Selection)
	assert.Equal(t, []string{"Alice", "Bob", "Carl"}, names(st.Data))
	assert.Equal(t, []int{1, 2, 3}, []int{st.Data[0].Rank, st.Data[1].Rank, st.Data[2].Rank})
	assert.NoError(t, st.Err)
}

func TestLeaderboardLastCompletionWins(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := NewMockLeaderboardSource(ctrl)
	g := newFetchGate()
	src.EXPECT().Fetch(gomock.Any(), gomock.Any()).DoAndReturn(g.fetch).Times(3)

	bus := NewEventBus(DispatchSync)
	t.Cleanup(bus.Close)
	lb := NewLeaderboard(src, bus, ViewOptions{})
	t.Cleanup(lb.Close)

	g.next(t).reply <- rows("Alice", "Bob", "Carl")
	require.NoError(t, waitTask(t, lb.Ready()))

	first := lb.ChangeTimeFrame(core.TimeFrameMonthly)
	second := lb.ChangeTimeFrame(core.TimeFrameMonthly)
	slow, fast := g.next(t), g.next(t)
	assert.Equal(t, core.TimeFrameMonthly, slow.tf)
	assert.Equal(t, core.TimeFrameMonthly, fast.tf)

	fast.reply <- rows("Fast")
	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]string{"Fast"}, names(lb.Snapshot().Data))
	}, 3*time.Second, 5*time.Millisecond)
	assert.True(t, lb.Snapshot().Loading, "loading must stay set while a fetch is in flight")

	slow.reply <- rows("Slow")
	require.NoError(t, waitTask(t, first))
	require.NoError(t, waitTask(t, second))

	st := lb.Snapshot()
	assert.Equal(t, []string{"Slow"}, names(st.Data), "the result that completed last is kept")
	assert.False(t, st.Loading)
}

func TestLeaderboardLatestIssuedWins(t *testing.T) {
	g := newFetchGate()
	bus := NewEventBus(DispatchSync)
	t.Cleanup(bus.Close)
	lb := NewLeaderboard(leaderboard.SourceFunc(g.fetch), bus, ViewOptions{RacePolicy: viewstate.LatestIssuedWins})
	t.Cleanup(lb.Close)

	g.next(t).reply <- rows("Alice")
	require.NoError(t, waitTask(t, lb.Ready()))

	first := lb.ChangeTimeFrame(core.TimeFrameDaily)
	stale := g.next(t)
	second := lb.ChangeTimeFrame(core.TimeFrameMonthly)
	latest := g.next(t)

	latest.reply <- rows("Monthly")
	require.NoError(t, waitTask(t, second))
	stale.reply <- rows("Daily")
	assert.ErrorIs(t, waitTask(t, first), viewstate.ErrSuperseded)

	st := lb.Snapshot()
	assert.Equal(t, []string{"Monthly"}, names(st.Data))
	assert.Equal(t, core.TimeFrameMonthly, st.DataSelection)
	assert.False(t, st.Loading)
	assert.NoError(t, st.Err)
}

func TestChangeTimeFrameRejectsUnknownValue(t *testing.T) {
	bus := NewEventBus(DispatchSync)
	t.Cleanup(bus.Close)
	lb := NewLeaderboard(leaderboard.NewMockSource(0), bus, ViewOptions{})
	t.Cleanup(lb.Close)
	require.NoError(t, waitTask(t, lb.Ready()))

	before := lb.Snapshot()
	err := waitTask(t, lb.ChangeTimeFrame("yearly"))
	assert.ErrorIs(t, err, core.ErrInvalidTimeFrame)

	after := lb.Snapshot()
	assert.Equal(t, before.Version, after.Version)
	assert.Equal(t, core.TimeFrameWeekly, after.Selection)
}

func TestLeaderboardFailurePublishesCommandFailed(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := NewMockLeaderboardSource(ctrl)
	boom := errors.New("backend down")
	gomock.InOrder(
		src.EXPECT().Fetch(gomock.Any(), core.TimeFrameWeekly).Return(rows("Alice", "Bob"), nil),
		src.EXPECT().Fetch(gomock.Any(), core.TimeFrameWeekly).Return(nil, boom),
	)

	bus := NewEventBus(DispatchSync)
	t.Cleanup(bus.Close)
	var mu sync.Mutex
	var failed []core.Event
	bus.Subscribe(core.EventCommandFailed, func(_ context.Context, ev core.Event) {
		mu.Lock()
		failed = append(failed, ev)
		mu.Unlock()
	})

	lb := NewLeaderboard(src, bus, ViewOptions{})
	t.Cleanup(lb.Close)
	require.NoError(t, waitTask(t, lb.Ready()))

	err := waitTask(t, lb.Refresh())
	require.ErrorIs(t, err, boom)

	st := lb.Snapshot()
	assert.Equal(t, []string{"Alice", "Bob"}, names(st.Data))
	assert.False(t, st.Loading)
	require.Error(t, st.Err)
	assert.ErrorIs(t, st.Err, boom)

	mu.Lock()
	require.Len(t, failed, 1)
	assert.Equal(t, "leaderboard.refresh", failed[0].Command)
	assert.Contains(t, failed[0].Error, "backend down")
	mu.Unlock()

	require.NoError(t, waitTask(t, lb.AcknowledgeError()))
	assert.NoError(t, lb.Snapshot().Err)
}

func TestLeaderboardLimitAndSnapshotIsolation(t *testing.T) {
	bus := NewEventBus(DispatchSync)
	t.Cleanup(bus.Close)
	lb := NewLeaderboard(leaderboard.NewMockSource(0), bus, ViewOptions{Limit: 2, DefaultTimeFrame: core.TimeFrameAllTime})
	t.Cleanup(lb.Close)
	require.NoError(t, waitTask(t, lb.Ready()))

	st := lb.Snapshot()
	require.Len(t, st.Data, 2)
	assert.Equal(t, []string{"Alice", "Carl"}, names(st.Data))

	st.Data[0].DisplayName = "mutated"
	assert.Equal(t, "Alice", lb.Snapshot().Data[0].DisplayName)
}

func TestLeaderboardPublishesChangeEvents(t *testing.T) {
	bus := NewEventBus(DispatchSync)
	t.Cleanup(bus.Close)
	var mu sync.Mutex
	var events []core.Event
	bus.Subscribe(core.EventLeaderboardChanged, func(_ context.Context, ev core.Event) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})

	lb := NewLeaderboard(leaderboard.NewMockSource(0), bus, ViewOptions{})
	t.Cleanup(lb.Close)
	require.NoError(t, waitTask(t, lb.Ready()))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 2)
	assert.True(t, events[0].Loading)
	assert.Empty(t, events[0].Entries)
	assert.False(t, events[1].Loading)
	assert.Equal(t, core.TimeFrameWeekly, events[1].TimeFrame)
	assert.Equal(t, core.TimeFrameWeekly, events[1].DataTimeFrame)
	assert.Len(t, events[1].Entries, 3)
	assert.Less(t, events[0].Version, events[1].Version)
}

func TestLeaderboardAsyncEventsEndWithSettledSnapshot(t *testing.T) {
	bus := NewEventBus(DispatchAsync)
	var mu sync.Mutex
	var events []core.Event
	bus.Subscribe(core.EventLeaderboardChanged, func(_ context.Context, ev core.Event) {
		if ev.Loading {
			time.Sleep(time.Millisecond)
		}
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})

	lb := NewLeaderboard(leaderboard.NewMockSource(0), bus, ViewOptions{})
	require.NoError(t, waitTask(t, lb.Ready()))
	for i := 0; i < 5; i++ {
		require.NoError(t, waitTask(t, lb.Refresh()))
	}
	lb.Close()
	bus.Close()

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.False(t, last.Loading, "a loading event must not arrive after the settled one")
	assert.Equal(t, lb.Snapshot().Version, last.Version)
	for i := 1; i < len(events); i++ {
		assert.Less(t, events[i-1].Version, events[i].Version, "event %d out of order", i)
	}
}

func TestLeaderboardEventCarriesSelectionAndDataTimeFrame(t *testing.T) {
	g := newFetchGate()
	bus := NewEventBus(DispatchSync)
	t.Cleanup(bus.Close)
	var mu sync.Mutex
	var events []core.Event
	bus.Subscribe(core.EventLeaderboardChanged, func(_ context.Context, ev core.Event) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})
	lb := NewLeaderboard(leaderboard.SourceFunc(g.fetch), bus, ViewOptions{})
	t.Cleanup(lb.Close)

	g.next(t).reply <- rows("Alice", "Bob")
	require.NoError(t, waitTask(t, lb.Ready()))

	task := lb.ChangeTimeFrame(core.TimeFrameMonthly)
	call := g.next(t)
	mu.Lock()
	switching := events[len(events)-1]
	mu.Unlock()
	assert.True(t, switching.Loading)
	assert.Equal(t, core.TimeFrameMonthly, switching.TimeFrame)
	assert.Equal(t, core.TimeFrameWeekly, switching.DataTimeFrame, "entries still belong to the weekly board")
	assert.Equal(t, []string{"Alice", "Bob"}, names(switching.Entries))

	call.reply <- rows("Carl")
	require.NoError(t, waitTask(t, task))
	mu.Lock()
	settled := events[len(events)-1]
	mu.Unlock()
	assert.Equal(t, core.TimeFrameMonthly, settled.TimeFrame)
	assert.Equal(t, core.TimeFrameMonthly, settled.DataTimeFrame)
}

func TestProfileUpdateFailureLeavesDataUnchanged(t *testing.T) {
	ctrl := gomock.NewController(t)
	auth := NewMockAuthService(ctrl)
	u := alice()
	auth.EXPECT().CurrentUser().Return(&u, true).AnyTimes()
	auth.EXPECT().UpdateProfile(gomock.Any(), "X", gomock.Nil()).
		Return(core.NewAuthError("update_profile", core.AuthCodeUnavailable, errors.New("backend rejected"))).Times(1)

	bus := NewEventBus(DispatchSync)
	t.Cleanup(bus.Close)
	var updates atomic.Int64
	bus.Subscribe(core.EventProfileUpdated, func(context.Context, core.Event) { updates.Add(1) })
	p := NewProfile(auth, bus, ViewOptions{})
	t.Cleanup(p.Close)
	require.NoError(t, waitTask(t, p.Ready()))
	before := p.Snapshot()

	var err error
	require.NotPanics(t, func() { err = waitTask(t, p.UpdateProfile("X", nil)) })
	var authErr *core.AuthError
	require.ErrorAs(t, err, &authErr)

	after := p.Snapshot()
	require.NotNil(t, after.Data)
	assert.Equal(t, before.Data, after.Data)
	assert.Zero(t, updates.Load(), "a rejected edit is not a profile update")
	assert.False(t, after.Loading)
	require.Error(t, after.Err)
	assert.ErrorAs(t, after.Err, &authErr)
}

func TestQuietProfileUpdateFailureIsNotSurfaced(t *testing.T) {
	auth := newFakeAuth(alice())
	auth.updateErr = core.NewAuthError("update_profile", core.AuthCodeUnavailable, errors.New("backend rejected"))
	bus := NewEventBus(DispatchSync)
	t.Cleanup(bus.Close)
	var published atomic.Int64
	bus.SubscribeAll(func(context.Context, core.Event) { published.Add(1) })
	p := NewProfile(auth, bus, ViewOptions{QuietProfileUpdates: true})
	t.Cleanup(p.Close)
	require.NoError(t, waitTask(t, p.Ready()))
	before := p.Snapshot()
	seen := published.Load()

	var authErr *core.AuthError
	require.ErrorAs(t, waitTask(t, p.UpdateProfile("X", nil)), &authErr)

	after := p.Snapshot()
	assert.Equal(t, before.Data, after.Data)
	assert.NoError(t, after.Err)
	assert.False(t, after.Loading)
	assert.Equal(t, seen, published.Load(), "nothing reaches the bus")
}

func TestProfileUpdateSuccessRepublishes(t *testing.T) {
	auth := newFakeAuth(alice())
	bus := NewEventBus(DispatchSync)
	t.Cleanup(bus.Close)
	var mu sync.Mutex
	var updated []core.Event
	bus.Subscribe(core.EventProfileUpdated, func(_ context.Context, ev core.Event) {
		mu.Lock()
		updated = append(updated, ev)
		mu.Unlock()
	})
	p := NewProfile(auth, bus, ViewOptions{})
	t.Cleanup(p.Close)
	require.NoError(t, waitTask(t, p.Ready()))
	require.NoError(t, waitTask(t, p.Reload()))

	require.NoError(t, waitTask(t, p.UpdateProfile("Alice Cooper", core.StringPtr("hello"))))

	mu.Lock()
	require.Len(t, updated, 1)
	assert.Equal(t, core.UserID("alice"), updated[0].UserID)
	require.NotNil(t, updated[0].Profile)
	assert.Equal(t, "Alice Cooper", updated[0].Profile.FullName)
	mu.Unlock()

	st := p.Snapshot()
	require.NotNil(t, st.Data)
	assert.Equal(t, "Alice Cooper", st.Data.FullName)
	require.NotNil(t, st.Data.Bio)
	assert.Equal(t, "hello", *st.Data.Bio)
	assert.False(t, st.Loading)
}

func TestLogoutThenInitializeClearsProfile(t *testing.T) {
	auth := newFakeAuth(alice())
	bus := NewEventBus(DispatchSync)
	t.Cleanup(bus.Close)
	var mu sync.Mutex
	var loggedOut []core.Event
	bus.Subscribe(core.EventLoggedOut, func(_ context.Context, ev core.Event) {
		mu.Lock()
		loggedOut = append(loggedOut, ev)
		mu.Unlock()
	})

	p := NewProfile(auth, bus, ViewOptions{})
	t.Cleanup(p.Close)
	require.NoError(t, waitTask(t, p.Ready()))
	require.NotNil(t, p.Snapshot().Data)

	require.NoError(t, waitTask(t, p.Logout()))
	assert.NotNil(t, p.Snapshot().Data, "logout applies no local state")

	require.NoError(t, waitTask(t, p.Initialize()))
	assert.Nil(t, p.Snapshot().Data)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, loggedOut, 1)
	assert.Equal(t, core.UserID("alice"), loggedOut[0].UserID)
}

func TestProfileLogin(t *testing.T) {
	bob := core.User{ID: "bob", FullName: "Bob Ross"}
	auth := newFakeAuth(alice(), bob)
	bus := NewEventBus(DispatchSync)
	t.Cleanup(bus.Close)
	p := NewProfile(auth, bus, ViewOptions{})
	t.Cleanup(p.Close)
	require.NoError(t, waitTask(t, p.Ready()))

	require.NoError(t, waitTask(t, p.Login("bob")))
	require.NotNil(t, p.Snapshot().Data)
	assert.Equal(t, core.UserID("bob"), p.Snapshot().Data.ID)

	err := waitTask(t, p.Login("nobody"))
	assert.True(t, core.IsAuthCode(err, core.AuthCodeNotFound))
	assert.Equal(t, core.UserID("bob"), p.Snapshot().Data.ID)
}

func TestProfileLoginUnsupported(t *testing.T) {
	ctrl := gomock.NewController(t)
	auth := NewMockAuthService(ctrl)
	auth.EXPECT().CurrentUser().Return(nil, false).AnyTimes()

	bus := NewEventBus(DispatchSync)
	t.Cleanup(bus.Close)
	p := NewProfile(auth, bus, ViewOptions{})
	t.Cleanup(p.Close)
	require.NoError(t, waitTask(t, p.Ready()))
	assert.Nil(t, p.Snapshot().Data)

	assert.ErrorIs(t, waitTask(t, p.Login("alice")), ErrLoginUnsupported)
}

func TestServiceWaitReadyAndClose(t *testing.T) {
	svc := NewService(leaderboard.NewMockSource(5*time.Millisecond), newFakeAuth(alice()), NewEventBus(DispatchAsync), ViewOptions{})

	var mu sync.Mutex
	seen := map[core.EventType]int{}
	svc.SubscribeAll(func(_ context.Context, ev core.Event) {
		mu.Lock()
		seen[ev.Type]++
		mu.Unlock()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, svc.WaitReady(ctx))
	assert.Len(t, svc.Leaderboard().Snapshot().Data, 3)
	assert.Equal(t, core.UserID("alice"), svc.Profile().Snapshot().Data.ID)

	svc.Close()
	assert.ErrorIs(t, waitTask(t, svc.Leaderboard().Refresh()), viewstate.ErrClosed)
	assert.ErrorIs(t, waitTask(t, svc.Profile().Reload()), viewstate.ErrClosed)
}
