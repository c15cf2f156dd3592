package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"rankview/adapters/jsonfile"
	mem "rankview/adapters/memory"
	redisAdapter "rankview/adapters/redis"
	sqlxAdapter "rankview/adapters/sqlx"
	"rankview/analytics"
	"rankview/api/httpapi"
	"rankview/auth"
	"rankview/config"
	"rankview/core"
	"rankview/engine"
	"rankview/integrations/webhook"
	"rankview/leaderboard"
	"rankview/realtime"
	"rankview/viewkit"
	"rankview/viewstate"
)

// App aggregates the assembled server components.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Hub       *realtime.Hub
	Service   *engine.Service
	Analytics *analytics.Service
	Handler   http.Handler
	Server    *http.Server
}

// Backend is the storage adapter selected by configuration. Every adapter
// stores profiles and scores and can serve leaderboards.
type Backend struct {
	Profiles engine.ProfileStore
	Scores   engine.ScoreRecorder
	Board    engine.LeaderboardSource
}

func provideConfig() (*config.Config, error) {
	if path := os.Getenv("RANKVIEW_CONFIG"); path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

func provideLogger(cfg *config.Config) *slog.Logger {
	return setupLogging(cfg)
}

func provideHub() (*realtime.Hub, func()) {
	hub := realtime.NewHub()
	return hub, hub.Close
}

func provideBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Backend, func(), error) {
	b, closeFn, err := setupStorage(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if closeFn == nil {
			return
		}
		if err := closeFn(); err != nil {
			logger.Warn("closing storage failed", "adapter", cfg.Storage.Adapter, "error", err)
		}
	}
	if cfg.ViewState.SeedDemoProfiles {
		if err := seedProfiles(ctx, b.Profiles, auth.DemoProfiles()); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("seed demo profiles: %w", err)
		}
	}
	return b, cleanup, nil
}

func provideSource(cfg *config.Config, b *Backend) engine.LeaderboardSource {
	if cfg.ViewState.Source == "storage" {
		return b.Board
	}
	return leaderboard.NewMockSource(cfg.ViewState.MockLatency)
}

func provideAuth(b *Backend, logger *slog.Logger) *auth.SessionService {
	return auth.NewSessionService(b.Profiles, auth.WithLogger(logger))
}

func provideViewOptions(cfg *config.Config, logger *slog.Logger) (engine.ViewOptions, error) {
	tf, err := core.ParseTimeFrame(cfg.ViewState.DefaultTimeFrame)
	if err != nil {
		return engine.ViewOptions{}, err
	}
	policy, err := viewstate.ParseRacePolicy(cfg.ViewState.RacePolicy)
	if err != nil {
		return engine.ViewOptions{}, err
	}
	return engine.ViewOptions{
		DefaultTimeFrame:    tf,
		RacePolicy:          policy,
		FetchTimeout:        cfg.ViewState.FetchTimeout,
		Limit:               cfg.ViewState.LeaderboardSize,
		QuietProfileUpdates: cfg.ViewState.QuietProfileUpdates,
		Logger:              logger,
	}, nil
}

func provideAnalytics(cfg *config.Config, logger *slog.Logger) *analytics.Service {
	opts := []analytics.Option{analytics.WithLogger(logger)}
	switch target := cfg.Analytics.ExportTarget; {
	case target == "stdout":
		opts = append(opts, analytics.WithExporter(analytics.NewWriterExporter(os.Stdout, "[analytics] "), cfg.Analytics.ExportInterval))
	case target != "":
		opts = append(opts, analytics.WithExporter(analytics.NewHTTPExporter(target, cfg.Analytics.ExportAPIKey, 1), cfg.Analytics.ExportInterval))
	}
	return analytics.NewService(opts...)
}

func provideWebhook(cfg *config.Config, logger *slog.Logger) (*webhook.Sink, func()) {
	wh := cfg.Webhooks
	types := make([]core.EventType, 0, len(wh.Events))
	for _, e := range wh.Events {
		types = append(types, core.EventType(e))
	}
	sink := webhook.New(wh.Endpoints,
		webhook.WithClient(&http.Client{Timeout: wh.Timeout}),
		webhook.WithEventTypes(types...),
		webhook.WithSecret(wh.Secret),
		webhook.WithQueueSize(wh.QueueSize),
		webhook.WithLogger(logger),
	)
	return sink, sink.Close
}

func provideService(
	cfg *config.Config,
	source engine.LeaderboardSource,
	sessions *auth.SessionService,
	view engine.ViewOptions,
	hub *realtime.Hub,
	stats *analytics.Service,
	sink *webhook.Sink,
) (*engine.Service, func()) {
	mode := engine.DispatchAsync
	if cfg.ViewState.Dispatch == "sync" {
		mode = engine.DispatchSync
	}
	opts := []viewkit.Option{
		viewkit.WithSource(source),
		viewkit.WithAuth(sessions),
		viewkit.WithDispatchMode(mode),
		viewkit.WithViewOptions(view),
		viewkit.WithRealtime(hub),
		viewkit.WithEventHook(sink.OnEvent),
	}
	if cfg.Analytics.Enabled {
		opts = append(opts, viewkit.WithEventHook(stats.OnEvent))
	}
	svc := viewkit.New(opts...)
	return svc, svc.Close
}

func provideHandler(cfg *config.Config, svc *engine.Service, hub *realtime.Hub, b *Backend, stats *analytics.Service, logger *slog.Logger) http.Handler {
	opts := httpapi.Options{
		PathPrefix:       cfg.Server.PathPrefix,
		AllowCORSOrigin:  cfg.Server.CORSOrigin,
		APIKeys:          cfg.Security.APIKeys,
		RateLimitEnabled: cfg.Security.EnableRateLimit,
		RateLimitRPM:     cfg.Security.RateLimit.RequestsPerMinute,
		RateLimitBurst:   cfg.Security.RateLimit.BurstSize,
		RateLimitIdle:    cfg.Security.RateLimit.CleanupInterval,
		WaitTimeout:      cfg.Server.WaitTimeout,
		Scores:           b.Scores,
		StreamBuffer:     cfg.ViewState.SubscriberBuffer,
		Logger:           logger,
	}
	if cfg.Analytics.Enabled {
		opts.Stats = stats.Handler()
		opts.StatsPath = cfg.Analytics.Path
	}
	return httpapi.NewMux(svc, hub, opts)
}

func provideServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
}

// setupLogging configures the logger based on configuration.
func setupLogging(cfg *config.Config) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Logging.Level),
	}

	var out io.Writer = os.Stdout
	if cfg.Logging.Output == "stderr" {
		out = os.Stderr
	}

	switch cfg.Logging.Format {
	case "text":
		handler = slog.NewTextHandler(out, opts)
	default:
		handler = slog.NewJSONHandler(out, opts)
	}

	if len(cfg.Logging.Attributes) > 0 {
		handler = handler.WithAttrs(convertAttributes(cfg.Logging.Attributes))
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// convertAttributes converts map[string]string to []slog.Attr.
func convertAttributes(attrs map[string]string) []slog.Attr {
	result := make([]slog.Attr, 0, len(attrs))
	for k, v := range attrs {
		result = append(result, slog.String(k, v))
	}
	return result
}

// setupStorage creates the storage adapter named by configuration and returns
// its close func, if any.
func setupStorage(ctx context.Context, cfg *config.Config) (*Backend, func() error, error) {
	switch cfg.Storage.Adapter {
	case "memory":
		board := leaderboard.NewBoardSource(cfg.ViewState.LeaderboardSize)
		return &Backend{Profiles: mem.New(), Scores: board, Board: board}, nil, nil
	case "file":
		s, err := jsonfile.New(cfg.Storage.File.Path)
		if err != nil {
			return nil, nil, err
		}
		return &Backend{Profiles: s, Scores: s, Board: s}, nil, nil
	case "redis":
		s, err := redisAdapter.New(cfg.Storage.Redis)
		if err != nil {
			return nil, nil, err
		}
		return &Backend{Profiles: s, Scores: s, Board: s}, s.Close, nil
	case "sql":
		s, err := sqlxAdapter.New(ctx, cfg.Storage.SQL)
		if err != nil {
			return nil, nil, err
		}
		return &Backend{Profiles: s, Scores: s, Board: s}, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage adapter: %s", cfg.Storage.Adapter)
	}
}

// seedProfiles saves each profile that the store does not know yet.
func seedProfiles(ctx context.Context, store engine.ProfileStore, users []core.User) error {
	for _, u := range users {
		_, err := store.GetProfile(ctx, u.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, core.ErrNotFound) {
			return err
		}
		if err := store.SaveProfile(ctx, u); err != nil {
			return err
		}
	}
	return nil
}
