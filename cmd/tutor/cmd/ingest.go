package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hyperjump/tutor/internal/cli"
	"github.com/hyperjump/tutor/internal/ingest"
	"github.com/hyperjump/tutor/internal/models"
	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file-or-directory>...",
	Short: "Add documents to the index",
	Long: `Extract, chunk and embed documents and merge them into the index snapshot.
Directories are scanned without descending into subdirectories. Ingesting a
document again replaces its previous chunks.

With --server (the default) files are uploaded and directories are read by the
server; use --server "" to write the snapshot directly while no server is running.

Examples:
  tutor ingest lecture1.pdf lecture2.pdf
  tutor ingest ./data/pdfs
  tutor ingest --server "" ./data`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

// ingestSources groups args into one Directory per directory and a single DocumentList
// for all plain files, in argument order.
func ingestSources(args []string) ([]ingest.Source, error) {
	var (
		sources []ingest.Source
		files   []string
	)
	for _, arg := range args {
		abs, err := filepath.Abs(arg)
		if err != nil {
			return nil, err
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("failed to stat path: %w", err)
		}
		if info.IsDir() {
			sources = append(sources, ingest.Directory{Path: abs})
			continue
		}
		files = append(files, abs)
	}
	if len(files) > 0 {
		sources = append(sources, ingest.DocumentList{Paths: files})
	}
	return sources, nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	f, err := format()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	if serverURL != "" {
		client := newAPIClient(serverURL)
		for _, arg := range args {
			res, err := ingestViaHTTP(ctx, client, arg)
			if err != nil {
				return fmt.Errorf("ingest %s: %w", arg, err)
			}
			if err := cli.WriteIngestResult(out, res, f); err != nil {
				return err
			}
		}
		return nil
	}

	sources, err := ingestSources(args)
	if err != nil {
		return err
	}
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		return err
	}
	defer components.Close()

	for _, src := range sources {
		res, err := components.Ingestor.Ingest(ctx, src)
		if err != nil {
			return fmt.Errorf("ingest failed: %w", err)
		}
		if err := cli.WriteIngestResult(out, res, f); err != nil {
			return err
		}
	}
	return nil
}

func ingestViaHTTP(ctx context.Context, client *apiClient, path string) (models.IngestResult, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return models.IngestResult{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return models.IngestResult{}, fmt.Errorf("failed to stat path: %w", err)
	}
	if info.IsDir() {
		return client.ingestDirectory(ctx, abs)
	}
	return client.ingestFile(ctx, abs)
}
