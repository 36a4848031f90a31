package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/arcalabs/arca/internal/api"
	"github.com/arcalabs/arca/internal/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the ARCA HTTP server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer application.Close(context.Background())

	server, err := api.NewServer(api.Config{
		Addr:           cfg.Addr,
		Logger:         logger,
		Store:          application.Store,
		Analyzer:       application.Pipeline,
		Ready:          application.Ready,
		CORSOrigins:    cfg.CORSOrigins,
		TrustProxy:     cfg.TrustProxy,
		RatePerSecond:  cfg.RatePerSecond,
		RateBurst:      cfg.RateBurst,
		MaxUploadBytes: cfg.MaxUploadBytes,
		SearchTopK:     cfg.SearchTopK,
	})
	if err != nil {
		return err
	}

	return server.Run(ctx)
}
