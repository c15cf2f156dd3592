package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	wsadapter "rankview/adapters/websocket"
	"rankview/core"
	"rankview/engine"
	"rankview/realtime"
	"rankview/viewstate"
)

// Options configures the HTTP API surface.
type Options struct {
	// PathPrefix, if set, is prepended to all routes (e.g., "/api").
	PathPrefix string
	// AllowCORSOrigin, if non-empty, enables basic CORS with the given origin (use "*" for any).
	AllowCORSOrigin string
	// APIKeys, if non-empty, enables static API key auth via Authorization: Bearer or X-API-Key.
	APIKeys []string
	// RateLimitEnabled toggles rate limiting.
	RateLimitEnabled bool
	// RateLimitRPM is the allowed requests per minute per client key.
	RateLimitRPM int
	// RateLimitBurst defines burst capacity.
	RateLimitBurst int
	// RateLimitIdle evicts a client's limiter after this long without requests.
	RateLimitIdle time.Duration
	// WaitTimeout caps how long ?wait=true requests block on a command.
	WaitTimeout time.Duration
	// Scores, if set, enables POST {prefix}/scores.
	Scores engine.ScoreRecorder
	// Stats, if set, is mounted at {prefix}{StatsPath} for GET and DELETE.
	Stats     http.Handler
	StatsPath string
	// StreamBuffer is the per-connection WebSocket buffer.
	StreamBuffer int
	Logger       *slog.Logger
}

type api struct {
	svc    *engine.Service
	opts   Options
	logger *slog.Logger
}

// NewMux builds an http.Handler exposing the view models over REST and a WebSocket stream.
// Routes:
//   - GET    {prefix}/healthz
//   - GET    {prefix}/leaderboard
//   - POST   {prefix}/leaderboard/refresh
//   - PUT    {prefix}/leaderboard/timeframe/{timeframe}
//   - DELETE {prefix}/leaderboard/error
//   - GET    {prefix}/profile
//   - PATCH  {prefix}/profile
//   - DELETE {prefix}/profile/error
//   - POST   {prefix}/session/login
//   - POST   {prefix}/session/logout
//   - POST   {prefix}/scores
//   - GET    {prefix}/stats
//   - WS     {prefix}/ws
//
// Command routes answer 202 with the task id, or block until the command
// settles and return the resulting snapshot when called with ?wait=true.
func NewMux(svc *engine.Service, hub *realtime.Hub, opts Options) http.Handler {
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = 10 * time.Second
	}
	a := &api{svc: svc, opts: opts, logger: opts.Logger}
	if a.logger == nil {
		a.logger = slog.Default()
	}

	root := mux.NewRouter()
	r := root
	if p := trimPrefix(opts.PathPrefix); p != "" {
		r = root.PathPrefix(p).Subrouter()
	}
	r.HandleFunc("/healthz", a.health).Methods(http.MethodGet)

	r.HandleFunc("/leaderboard", a.getLeaderboard).Methods(http.MethodGet)
	r.HandleFunc("/leaderboard/refresh", a.refreshLeaderboard).Methods(http.MethodPost)
	r.HandleFunc("/leaderboard/timeframe/{timeframe}", a.changeTimeFrame).Methods(http.MethodPut)
	r.HandleFunc("/leaderboard/error", a.ackLeaderboardError).Methods(http.MethodDelete)

	r.HandleFunc("/profile", a.getProfile).Methods(http.MethodGet)
	r.HandleFunc("/profile", a.updateProfile).Methods(http.MethodPatch)
	r.HandleFunc("/profile/error", a.ackProfileError).Methods(http.MethodDelete)
	r.HandleFunc("/session/login", a.login).Methods(http.MethodPost)
	r.HandleFunc("/session/logout", a.logout).Methods(http.MethodPost)

	if opts.Scores != nil {
		r.HandleFunc("/scores", a.recordScore).Methods(http.MethodPost)
	}

	if opts.Stats != nil {
		path := opts.StatsPath
		if path == "" {
			path = "/stats"
		}
		r.Handle(path, opts.Stats).Methods(http.MethodGet, http.MethodDelete)
	}

	// WebSocket events
	if hub != nil {
		r.Handle("/ws", wsadapter.Handler(hub, wsadapter.Options{
			Buffer:  opts.StreamBuffer,
			Initial: a.initialEvents,
			Logger:  a.logger,
		}))
	}

	root.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "route not found", nil)
	})
	root.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed", nil)
	})

	var handler http.Handler = root
	if opts.AllowCORSOrigin != "" {
		handler = withCORS(handler, opts.AllowCORSOrigin)
	}
	if len(opts.APIKeys) > 0 {
		handler = withAPIKeyAuth(handler, opts.APIKeys)
	}
	if opts.RateLimitEnabled && opts.RateLimitRPM > 0 && opts.RateLimitBurst > 0 {
		handler = withRateLimit(handler, opts.RateLimitRPM, opts.RateLimitBurst, opts.RateLimitIdle)
	}
	return handler
}

// LeaderboardView is the JSON rendering of a leaderboard snapshot.
type LeaderboardView struct {
	TimeFrame     core.TimeFrame          `json:"timeframe"`
	DataTimeFrame core.TimeFrame          `json:"data_timeframe"`
	Entries       []core.LeaderboardEntry `json:"entries"`
	Loading       bool                    `json:"loading"`
	Error         string                  `json:"error,omitempty"`
	Generation    uint64                  `json:"generation"`
	Version       uint64                  `json:"version"`
	UpdatedAt     *time.Time              `json:"updated_at,omitempty"`
}

// ProfileView is the JSON rendering of a profile snapshot.
type ProfileView struct {
	Profile   *core.User `json:"profile"`
	Loading   bool       `json:"loading"`
	Error     string     `json:"error,omitempty"`
	Version   uint64     `json:"version"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// TaskAccepted is returned by command routes called without ?wait=true.
type TaskAccepted struct {
	TaskID  string `json:"task_id"`
	Command string `json:"command"`
}

func leaderboardView(st engine.LeaderboardState) LeaderboardView {
	v := LeaderboardView{
		TimeFrame:     st.Selection,
		DataTimeFrame: st.DataSelection,
		Entries:       st.Data,
		Loading:       st.Loading,
		Error:         errString(st.Err),
		Generation:    st.Generation,
		Version:       st.Version,
		UpdatedAt:     timePtr(st.UpdatedAt),
	}
	if v.Entries == nil {
		v.Entries = []core.LeaderboardEntry{}
	}
	return v
}

func profileView(st engine.ProfileState) ProfileView {
	return ProfileView{
		Profile:   st.Data,
		Loading:   st.Loading,
		Error:     errString(st.Err),
		Version:   st.Version,
		UpdatedAt: timePtr(st.UpdatedAt),
	}
}

func (a *api) initialEvents() []core.Event {
	lb := a.svc.Leaderboard().Snapshot()
	p := a.svc.Profile().Snapshot()
	return []core.Event{
		core.NewLeaderboardChanged(lb.Selection, lb.Data, lb.Loading, lb.Generation, errString(lb.Err)).
			WithDataTimeFrame(lb.DataSelection).WithVersion(lb.Version),
		core.NewProfileChanged(p.Data, errString(p.Err)).WithVersion(p.Version),
	}
}

// health reports the view models' state. A populated error slot degrades but
// does not fail the check.
func (a *api) health(w http.ResponseWriter, _ *http.Request) {
	lb := a.svc.Leaderboard().Snapshot()
	p := a.svc.Profile().Snapshot()
	check := func(err error) string {
		if err != nil {
			return "error: " + err.Error()
		}
		return "ok"
	}
	status := "healthy"
	if lb.Err != nil || p.Err != nil {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": status,
		"checks": map[string]any{
			"leaderboard": check(lb.Err),
			"profile":     check(p.Err),
		},
	})
}

func (a *api) getLeaderboard(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, leaderboardView(a.svc.Leaderboard().Snapshot()))
}

func (a *api) refreshLeaderboard(w http.ResponseWriter, r *http.Request) {
	a.respondTask(w, r, a.svc.Leaderboard().Refresh(), a.leaderboardSnapshot)
}

func (a *api) changeTimeFrame(w http.ResponseWriter, r *http.Request) {
	tf, err := core.ParseTimeFrame(mux.Vars(r)["timeframe"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_timeframe", err.Error(), core.TimeFrames())
		return
	}
	a.respondTask(w, r, a.svc.Leaderboard().ChangeTimeFrame(tf), a.leaderboardSnapshot)
}

func (a *api) ackLeaderboardError(w http.ResponseWriter, r *http.Request) {
	a.respondSync(w, r, a.svc.Leaderboard().AcknowledgeError(), a.leaderboardSnapshot)
}

func (a *api) getProfile(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, profileView(a.svc.Profile().Snapshot()))
}

type profileRequest struct {
	FullName *string `json:"full_name"`
	Bio      *string `json:"bio"`
}

func (a *api) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error(), nil)
		return
	}
	if req.FullName == nil {
		writeError(w, http.StatusBadRequest, "validation", "full_name is required", nil)
		return
	}
	a.respondTask(w, r, a.svc.Profile().UpdateProfile(*req.FullName, req.Bio), a.profileSnapshot)
}

func (a *api) ackProfileError(w http.ResponseWriter, r *http.Request) {
	a.respondSync(w, r, a.svc.Profile().AcknowledgeError(), a.profileSnapshot)
}

type loginRequest struct {
	UserID core.UserID `json:"user_id"`
}

func (a *api) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error(), nil)
		return
	}
	user, err := core.NormalizeUserID(req.UserID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_user", err.Error(), nil)
		return
	}
	a.respondTask(w, r, a.svc.Profile().Login(user), a.profileSnapshot)
}

func (a *api) logout(w http.ResponseWriter, r *http.Request) {
	a.respondTask(w, r, a.svc.Profile().Logout(), a.profileSnapshot)
}

type scoreRequest struct {
	UserID core.UserID `json:"user_id"`
	Name   string      `json:"name"`
	Delta  int64       `json:"delta"`
}

// recordScore writes to the score store and then refreshes the leaderboard.
func (a *api) recordScore(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error(), nil)
		return
	}
	user, err := core.NormalizeUserID(req.UserID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_user", err.Error(), nil)
		return
	}
	if req.Delta == 0 {
		writeError(w, http.StatusBadRequest, "invalid_delta", "delta must be a non-zero integer", nil)
		return
	}
	if err := a.opts.Scores.RecordScore(r.Context(), user, req.Name, req.Delta); err != nil {
		a.logger.Error("record score failed", "user", user, "error", err)
		writeError(w, http.StatusBadGateway, "record_failed", err.Error(), nil)
		return
	}
	a.respondTask(w, r, a.svc.Leaderboard().Refresh(), a.leaderboardSnapshot)
}

func (a *api) leaderboardSnapshot() any { return leaderboardView(a.svc.Leaderboard().Snapshot()) }

func (a *api) profileSnapshot() any { return profileView(a.svc.Profile().Snapshot()) }

// respondTask answers 202 for fire-and-forget calls. A task that has already
// failed, or any task with ?wait=true, is reported with its outcome.
func (a *api) respondTask(w http.ResponseWriter, r *http.Request, task *viewstate.Task, snapshot func() any) {
	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))
	if !wait {
		select {
		case <-task.Done():
			if task.Err() != nil {
				a.writeTaskError(w, task)
				return
			}
		default:
		}
		writeJSON(w, http.StatusAccepted, TaskAccepted{TaskID: task.ID(), Command: task.Name()})
		return
	}
	a.respondSync(w, r, task, snapshot)
}

func (a *api) respondSync(w http.ResponseWriter, r *http.Request, task *viewstate.Task, snapshot func() any) {
	ctx, cancel := context.WithTimeout(r.Context(), a.opts.WaitTimeout)
	defer cancel()
	if err := task.Wait(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			writeError(w, http.StatusGatewayTimeout, "timeout", "command did not settle in time",
				TaskAccepted{TaskID: task.ID(), Command: task.Name()})
			return
		}
		a.writeTaskError(w, task)
		return
	}
	writeJSON(w, http.StatusOK, snapshot())
}

func (a *api) writeTaskError(w http.ResponseWriter, task *viewstate.Task) {
	err := task.Err()
	status, code := classify(err)
	details := TaskAccepted{TaskID: task.ID(), Command: task.Name()}
	writeError(w, status, code, err.Error(), details)
}

// classify maps command errors to HTTP status codes.
func classify(err error) (int, string) {
	var authErr *core.AuthError
	switch {
	case errors.Is(err, core.ErrInvalidTimeFrame):
		return http.StatusBadRequest, "invalid_timeframe"
	case errors.Is(err, viewstate.ErrSuperseded):
		return http.StatusConflict, "superseded"
	case errors.Is(err, viewstate.ErrClosed):
		return http.StatusServiceUnavailable, "closed"
	case errors.Is(err, engine.ErrLoginUnsupported):
		return http.StatusNotImplemented, "login_unsupported"
	case errors.As(err, &authErr):
		switch authErr.Code {
		case core.AuthCodeValidation:
			return http.StatusUnprocessableEntity, "validation"
		case core.AuthCodeNoSession:
			return http.StatusUnauthorized, "no_session"
		case core.AuthCodeNotFound:
			return http.StatusNotFound, "not_found"
		default:
			return http.StatusServiceUnavailable, "auth_unavailable"
		}
	default:
		return http.StatusBadGateway, "command_failed"
	}
}

// Helpers

func trimPrefix(prefix string) string {
	if prefix == "" || prefix == "/" {
		return ""
	}
	if prefix[0] != '/' {
		prefix = "/" + prefix
	}
	for len(prefix) > 1 && prefix[len(prefix)-1] == '/' {
		prefix = prefix[:len(prefix)-1]
	}
	return prefix
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, msg string, details any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiError{Code: code, Message: msg, Details: details})
}
