package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/arcalabs/arca/internal/app"
	"github.com/arcalabs/arca/internal/extract"
	"github.com/arcalabs/arca/internal/log"
	"github.com/arcalabs/arca/internal/policy"
)

// minSeedBytes drops files whose extracted text is effectively empty.
const minSeedBytes = 10

var flagSeedTenant string

var seedCmd = &cobra.Command{
	Use:   "seed <dir>",
	Short: "Index a directory of policy documents into the corpus",
	Long: `Walks the given directory and indexes every .pdf, .txt, and .md file.
Documents go into the shared default corpus unless --tenant is set.
Per-file failures are logged and skipped; the command fails only when
nothing could be indexed.`,
	Args: cobra.ExactArgs(1),
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().StringVar(&flagSeedTenant, "tenant", policy.DefaultTenant, "tenant to index documents under")
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer application.Close(context.Background())

	indexed, err := seedDirectory(ctx, application.Store, args[0], flagSeedTenant, logger)
	if err != nil {
		return err
	}
	logger.Info("seeding complete", "dir", args[0], "tenant", flagSeedTenant, "indexed", indexed)
	return nil
}

// seedDirectory indexes every supported file under dir and returns the
// number of documents indexed.
func seedDirectory(ctx context.Context, store *policy.Store, dir, tenantID string, logger log.Logger) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("reading seed directory: %w", err)
	}

	indexed := 0
	for _, entry := range entries {
		if entry.IsDir() || !supportedSeedFile(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())

		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("skipping unreadable file", "file", path, "error", err)
			continue
		}
		text, err := extract.Text(data, entry.Name())
		if err != nil {
			logger.Warn("skipping unextractable file", "file", path, "error", err)
			continue
		}
		if len(strings.TrimSpace(text)) < minSeedBytes {
			logger.Warn("skipping empty document", "file", path)
			continue
		}

		if err := store.Add(ctx, text, entry.Name(), tenantID); err != nil {
			logger.Warn("failed to index document", "file", path, "error", err)
			continue
		}
		indexed++
	}

	if indexed == 0 {
		return 0, fmt.Errorf("no documents indexed from %s", dir)
	}
	return indexed, nil
}

func supportedSeedFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf", ".txt", ".md":
		return true
	}
	return false
}
