package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/MichaelB312/storybook/internal/config"
	"github.com/MichaelB312/storybook/internal/home"
	"github.com/MichaelB312/storybook/internal/server"
)

var (
	serveHost string
	servePort string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the storybook server",
	Long: `Start the storybook HTTP server.

The server accepts generation jobs, runs the synthesis pipeline, and
serves job status for polling clients.

The server provides:
  - /health    - Basic server health check
  - /ready     - Readiness check (includes pipeline status)
  - /api/jobs  - Job creation, status, listing, and clearing

Examples:
  storybook serve                    # Start on default port 8080
  storybook serve --port 3000        # Start on custom port
  storybook serve --host 0.0.0.0     # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		// Set up logger
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))

		// Get home directory
		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}

		// Load configuration with hot reload
		cfgPath := cfgFile
		if cfgPath == "" && h.ConfigExists() {
			cfgPath = h.ConfigPath()
		}
		mgr, err := config.NewManager(cfgPath)
		if err != nil {
			return err
		}
		mgr.WatchConfig()

		// Create server
		srv, err := server.New(server.Config{
			Host:          serveHost,
			Port:          servePort,
			ConfigManager: mgr,
			Home:          h,
			Logger:        logger,
		})
		if err != nil {
			return err
		}

		// Start server (blocks until shutdown)
		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "Host to bind to")
	serveCmd.Flags().StringVar(&servePort, "port", "8080", "Port to listen on")

	rootCmd.AddCommand(serveCmd)
}
