package main

import (
	"github.com/spf13/cobra"

	"github.com/MichaelB312/storybook/internal/server/endpoints"
)

var serverURL string

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Commands that call the running server",
	Long: `API commands call the running storybook server via HTTP.

These commands require a running server (storybook serve).
Use --server to specify a custom server URL.

Examples:
  storybook api health                               # Check server health
  storybook api jobs                                 # List all jobs
  storybook api job <id>                             # Get a specific job
  storybook api generate --book b1 --request p1.json # Queue a page job`,
}

// getServerURL returns the server URL at runtime (after flag parsing).
func getServerURL() string {
	return serverURL
}

func init() {
	// Add --server flag to api command (persistent so all subcommands inherit it)
	apiCmd.PersistentFlags().StringVar(
		&serverURL, "server", "http://localhost:8080", "Server URL",
	)

	for _, ep := range endpoints.All() {
		apiCmd.AddCommand(ep.Command(getServerURL))
	}

	rootCmd.AddCommand(apiCmd)
}
