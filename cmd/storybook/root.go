package main

import (
	"github.com/spf13/cobra"

	"github.com/MichaelB312/storybook/internal/api"
	"github.com/MichaelB312/storybook/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "storybook",
	Short: "Character-consistent illustration pipeline for personalized storybooks",
	Long: `Storybook generates illustrated children's book pages with a consistent
main character across every page.

The pipeline includes:
  - Character anchor synthesis from a photo or description
  - Per-page pose variants under identity-preserving masks
  - Deterministic page composition with narration text
  - Masked background inpainting that never touches characters or text`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.storybook/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "storybook home directory (default: ~/.storybook)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}
