package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, cleanup, err := BuildApp(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize app: %v\n", err)
		os.Exit(1)
	}

	if err := run(ctx, app); err != nil {
		slog.Error("server exited with error", "error", err)
		cleanup()
		os.Exit(1)
	}
	cleanup()
	slog.Info("server stopped")
}

func run(ctx context.Context, app *App) error {
	cfg := app.Config

	slog.Info("starting rankview server",
		"environment", cfg.Environment,
		"profile", cfg.Profile,
		"address", cfg.Server.Address,
		"storage_adapter", cfg.Storage.Adapter,
		"source", cfg.ViewState.Source,
		"race_policy", cfg.ViewState.RacePolicy)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("server listening", "address", cfg.Server.Address)
		if err := app.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		readyCtx, cancel := context.WithTimeout(gctx, cfg.Server.WaitTimeout)
		defer cancel()
		if err := app.Service.WaitReady(readyCtx); err != nil {
			// the views keep their error slot; the server stays up degraded
			slog.Warn("initial load incomplete", "error", err)
			return nil
		}
		lb := app.Service.Leaderboard().Snapshot()
		slog.Info("views ready", "timeframe", lb.DataSelection, "entries", len(lb.Data))
		return nil
	})

	if cfg.Analytics.Enabled {
		g.Go(func() error {
			app.Analytics.Start(gctx)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server", "timeout", cfg.Server.ShutdownTimeout)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := app.Server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}
