package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"rankview/core"
	"rankview/engine"
	"rankview/leaderboard"
	"rankview/viewkit"
	"rankview/viewstate"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run the view models in-process against the mock leaderboard.",
	Long: `demo builds the leaderboard and profile view models over the mock ` +
		`source and walks through a session: initial load, timeframe change, ` +
		`login, a rejected profile edit, error acknowledgement, a valid edit, ` +
		`logout and a profile reload. Each step prints the resulting snapshots.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		latency, _ := cmd.Flags().GetDuration("latency")
		user, _ := cmd.Flags().GetString("user")
		verbose, _ := cmd.Flags().GetBool("verbose")

		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

		svc := viewkit.New(
			viewkit.WithSource(leaderboard.NewMockSource(latency)),
			viewkit.WithDispatchMode(engine.DispatchSync),
			viewkit.WithLogger(logger),
		)
		defer svc.Close()
		return runDemo(cmd.Context(), cmd.OutOrStdout(), svc, core.UserID(user))
	},
}

func init() {
	demoCmd.Flags().Duration("latency", 200*time.Millisecond, "simulated fetch latency")
	demoCmd.Flags().String("user", "alice", "user to sign in as")
	demoCmd.Flags().BoolP("verbose", "v", false, "log view-state transitions")
	rootCmd.AddCommand(demoCmd)
}

func runDemo(ctx context.Context, w io.Writer, svc *engine.Service, user core.UserID) error {
	lb, pr := svc.Leaderboard(), svc.Profile()

	if err := svc.WaitReady(ctx); err != nil {
		return fmt.Errorf("initial load: %w", err)
	}
	section(w, "initial state")
	showLeaderboard(w, lb.Snapshot())
	showProfile(w, pr.Snapshot())

	steps := []struct {
		title string
		run   func() *viewstate.Task
		board bool
	}{
		{"switch to monthly", func() *viewstate.Task { return lb.ChangeTimeFrame(core.TimeFrameMonthly) }, true},
		{"login as " + string(user), func() *viewstate.Task { return pr.Login(user) }, false},
		{"update profile with an empty name", func() *viewstate.Task { return pr.UpdateProfile("   ", nil) }, false},
		{"acknowledge error", pr.AcknowledgeError, false},
		{"update profile", func() *viewstate.Task {
			name := string(user)
			if u := pr.Snapshot().Data; u != nil {
				name = u.DisplayName() + " (edited)"
			}
			return pr.UpdateProfile(name, core.StringPtr("Edited from the demo."))
		}, false},
		{"refresh leaderboard", lb.Refresh, true},
		{"logout", pr.Logout, false},
		{"reload profile", pr.Reload, false},
	}
	for _, s := range steps {
		section(w, s.title)
		if err := s.run().Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintf(w, "  command failed: %v\n", err)
		}
		if s.board {
			showLeaderboard(w, lb.Snapshot())
		} else {
			showProfile(w, pr.Snapshot())
		}
	}
	return nil
}

func section(w io.Writer, title string) {
	fmt.Fprintf(w, "\n== %s\n", title)
}

func showLeaderboard(w io.Writer, st engine.LeaderboardState) {
	printLeaderboard(w, st.DataSelection, st.Data, st.Loading, errText(st.Err), st.UpdatedAt)
}

func showProfile(w io.Writer, st engine.ProfileState) {
	printProfile(w, st.Data, errText(st.Err))
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
