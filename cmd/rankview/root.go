package main

import (
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	sdk "rankview/sdk/go"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "rankview",
	Short: "Leaderboard and profile view-state toolkit.",
	Long: `rankview drives the leaderboard and profile view models in-process ` +
		`(demo) or against a running rankview server (leaderboard, score, ` +
		`login, profile, watch).`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("server", envOr("RANKVIEW_SERVER", "http://localhost:8080/api"), "rankview server base URL")
	rootCmd.PersistentFlags().String("api-key", os.Getenv("RANKVIEW_API_KEY"), "API key sent as X-API-Key")
	rootCmd.PersistentFlags().Duration("timeout", 10*time.Second, "request timeout")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// newClient builds an SDK client from the persistent flags.
func newClient(cmd *cobra.Command) (*sdk.Client, error) {
	server, _ := cmd.Flags().GetString("server")
	key, _ := cmd.Flags().GetString("api-key")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	opts := []sdk.Option{sdk.WithHTTPClient(&http.Client{Timeout: timeout})}
	if key != "" {
		opts = append(opts, sdk.WithAPIKey(key))
	}
	return sdk.NewClient(server, opts...)
}
