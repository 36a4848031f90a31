// Package cmd contains the arca CLI commands.
package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/arcalabs/arca/internal/config"
	"github.com/arcalabs/arca/internal/log"
)

var (
	flagLogLevel string
	flagLogJSON  bool
)

var rootCmd = &cobra.Command{
	Use:   "arca",
	Short: "ARCA - retrieval-augmented regulatory compliance assistant",
	Long: `ARCA ingests policy documents into a tenant-partitioned vector store and
analyzes new regulations against them with a research, audit, and recommend
pipeline, producing a structured risk report.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&flagLogJSON, "json-logs", false, "emit logs as JSON")
}

// newLogger builds the process logger from the persistent flags.
func newLogger() (log.Logger, error) {
	var level slog.Level
	switch strings.ToLower(flagLogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q", flagLogLevel)
	}
	return log.New(log.Config{Level: level, JSON: flagLogJSON}), nil
}

// loadConfig loads and validates application configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	return cfg, nil
}
