package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/webnovel-tools/enhancer/internal/api"
	"github.com/webnovel-tools/enhancer/version"
)

var (
	cfgFile      string
	homeDir      string
	logLevel     string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "enhancer",
	Short: "Web-novel enhancement pipeline backed by a local LLM",
	Long: `Enhancer rewrites machine-translated web-novel text through a locally
hosted language model.

The pipeline includes:
  - Character-name extraction and rule-based gender inference
  - Chunked prompting with continuity notes across chunk boundaries
  - Availability-cached model dispatch with terminate-all cancellation
  - Batched sessions with partial-failure continuation`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.enhancer/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "enhancer home directory (default: ~/.enhancer)",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "", "log level: debug, info, warn, error (default from config)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output-format", "f", "yaml", "structured output format: yaml or json",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}

// newLogger builds the process logger. The --log-level flag wins over
// the configured level.
func newLogger(configured string) *slog.Logger {
	level := configured
	if logLevel != "" {
		level = logLevel
	}

	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: l}))
}
