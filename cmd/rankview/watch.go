package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"rankview/core"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream view-state events from the server until interrupted.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		raw, _ := cmd.Flags().GetStringSlice("types")
		types, err := parseEventTypes(raw)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		events, err := c.SubscribeEvents(ctx, types...)
		if err != nil {
			return fmt.Errorf("subscribe: %w", err)
		}
		out := cmd.OutOrStdout()
		for e := range events {
			fmt.Fprintln(out, describeEvent(e))
		}
		if ctx.Err() == nil {
			return fmt.Errorf("event stream closed by server")
		}
		return nil
	},
}

func init() {
	watchCmd.Flags().StringSlice("types", nil, "event types to receive (leaderboard_changed, profile_changed, profile_updated, logged_out, command_failed)")
	rootCmd.AddCommand(watchCmd)
}

func parseEventTypes(raw []string) ([]core.EventType, error) {
	known := make(map[core.EventType]bool)
	for _, t := range core.EventTypes() {
		known[t] = true
	}
	out := make([]core.EventType, 0, len(raw))
	for _, r := range raw {
		t := core.EventType(strings.TrimSpace(r))
		if t == "" {
			continue
		}
		if !known[t] {
			return nil, fmt.Errorf("unknown event type %q", r)
		}
		out = append(out, t)
	}
	return out, nil
}
