package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"rankview/core"
	sdk "rankview/sdk/go"
)

var leaderboardCmd = &cobra.Command{
	Use:     "leaderboard",
	Aliases: []string{"lb"},
	Short:   "Show the server's leaderboard snapshot.",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		tf, _ := cmd.Flags().GetString("timeframe")
		refresh, _ := cmd.Flags().GetBool("refresh")
		ack, _ := cmd.Flags().GetBool("ack")

		var lb sdk.Leaderboard
		switch {
		case tf != "":
			parsed, perr := core.ParseTimeFrame(tf)
			if perr != nil {
				return perr
			}
			lb, err = c.ChangeTimeFrame(ctx, parsed)
		case refresh:
			lb, err = c.RefreshWait(ctx)
		default:
			lb, err = c.Leaderboard(ctx)
		}
		if err != nil {
			return err
		}
		if ack && lb.Error != "" {
			if lb, err = c.AcknowledgeLeaderboardError(ctx); err != nil {
				return err
			}
		}
		printLeaderboard(cmd.OutOrStdout(), lb.DataTimeFrame, lb.Entries, lb.Loading, lb.Error, updatedAt(lb.UpdatedAt))
		return nil
	},
}

var scoreCmd = &cobra.Command{
	Use:   "score <user-id> <delta>",
	Short: "Record a score delta for a user and show the refreshed leaderboard.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		delta, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid delta %q: %w", args[1], err)
		}
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		name, _ := cmd.Flags().GetString("name")
		lb, err := c.RecordScore(cmd.Context(), args[0], name, delta)
		if err != nil {
			return err
		}
		printLeaderboard(cmd.OutOrStdout(), lb.DataTimeFrame, lb.Entries, lb.Loading, lb.Error, updatedAt(lb.UpdatedAt))
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login <user-id>",
	Short: "Open a session for a user on the server.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		p, err := c.Login(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printProfile(cmd.OutOrStdout(), p.Profile, p.Error)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the server's current session.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		p, err := c.Logout(cmd.Context())
		if err != nil {
			return err
		}
		printProfile(cmd.OutOrStdout(), p.Profile, p.Error)
		return nil
	},
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show or edit the signed-in profile.",
	Long: `profile prints the server's profile snapshot. With --name the ` +
		`profile is updated first; --bio sets the bio and an empty --bio clears it.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		ack, _ := cmd.Flags().GetBool("ack")

		var p sdk.Profile
		if cmd.Flags().Changed("name") {
			name, _ := cmd.Flags().GetString("name")
			var bio *string
			if cmd.Flags().Changed("bio") {
				b, _ := cmd.Flags().GetString("bio")
				bio = &b
			}
			p, err = c.UpdateProfile(ctx, name, bio)
		} else {
			p, err = c.Profile(ctx)
		}
		if err != nil {
			return err
		}
		if ack && p.Error != "" {
			if p, err = c.AcknowledgeProfileError(ctx); err != nil {
				return err
			}
		}
		printProfile(cmd.OutOrStdout(), p.Profile, p.Error)
		return nil
	},
}

func init() {
	leaderboardCmd.Flags().String("timeframe", "", "switch the timeframe first (daily, weekly, monthly, all_time)")
	leaderboardCmd.Flags().Bool("refresh", false, "refresh and wait for the result")
	leaderboardCmd.Flags().Bool("ack", false, "acknowledge a pending error")
	scoreCmd.Flags().String("name", "", "display name for a new user")
	profileCmd.Flags().String("name", "", "new full name")
	profileCmd.Flags().String("bio", "", "new bio, used together with --name")
	profileCmd.Flags().Bool("ack", false, "acknowledge a pending error")

	rootCmd.AddCommand(leaderboardCmd, scoreCmd, loginCmd, logoutCmd, profileCmd)
}

func updatedAt(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
