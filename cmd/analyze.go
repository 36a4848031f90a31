package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/arcalabs/arca/internal/app"
	"github.com/arcalabs/arca/internal/extract"
	"github.com/arcalabs/arca/internal/policy"
)

var (
	flagAnalyzeTenant string
	flagAnalyzeDate   string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Analyze a regulation document and print the risk report",
	Long: `Extracts text from the given regulation file (.pdf, .txt, or .md), runs
the research, audit, and recommend pipeline against the tenant's corpus, and
prints the resulting report as JSON.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&flagAnalyzeTenant, "tenant", policy.DefaultTenant, "tenant whose corpus to analyze against")
	analyzeCmd.Flags().StringVar(&flagAnalyzeDate, "date-of-law", "", "effective date of the regulation (YYYY-MM-DD)")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading regulation file: %w", err)
	}
	text, err := extract.Text(data, args[0])
	if err != nil {
		return fmt.Errorf("extracting regulation text: %w", err)
	}

	ctx := cmd.Context()
	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer application.Close(context.Background())

	report, err := application.Pipeline.Run(ctx, text, flagAnalyzeTenant, flagAnalyzeDate)
	if err != nil {
		return fmt.Errorf("running analysis: %w", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
