// Package commands implements the speakerline CLI.
package commands

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/speakerline/internal/config"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "speakerline",
	Short: "Speaker-aware audio segmentation and transcription",
	Long: `speakerline buffers audio per speaker, cuts it into chunks at natural
boundaries, transcribes them and merges the results into a speaker-attributed
transcript.

Commands:
  serve      Accept audio over WebSocket and serve the transcript over HTTP
  capture    Transcribe local input devices, one speaker per device
  sessions   Inspect persisted sessions

Examples:
  speakerline serve --config speakerline.yaml
  speakerline serve --resume 6f1c...
  speakerline capture
  speakerline sessions list`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(*cobra.Command, []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}
