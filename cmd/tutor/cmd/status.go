package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/hyperjump/tutor/internal/cli"
	"github.com/hyperjump/tutor/internal/config"
	"github.com/hyperjump/tutor/internal/storage"
	"github.com/hyperjump/tutor/internal/vector"
	"github.com/spf13/cobra"
)

// statusConfigResponse holds configuration info returned by status.
type statusConfigResponse struct {
	EmbeddingProvider string `json:"embedding_provider"`
	ChunkSize         int    `json:"chunk_size,omitempty"`
	ChunkOverlap      int    `json:"chunk_overlap,omitempty"`
	TopK              int    `json:"top_k,omitempty"`
	Hybrid            bool   `json:"hybrid"`
	SnapshotPath      string `json:"snapshot_path,omitempty"`
	CatalogPath       string `json:"catalog_path,omitempty"`
}

// statusResponse is the shape of GET /api/v1/status response.
type statusResponse struct {
	State          string                `json:"state,omitempty"`
	Sessions       int                   `json:"sessions"`
	IndexChunks    *int                  `json:"index_chunks,omitempty"`
	ModelID        string                `json:"model_id,omitempty"`
	Dimensions     int                   `json:"dimensions,omitempty"`
	Documents      int64                 `json:"documents"`
	Chunks         int64                 `json:"chunks"`
	DiskUsageBytes *int64                `json:"disk_usage_bytes,omitempty"`
	Config         *statusConfigResponse `json:"config,omitempty"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index, catalog and session status",
	Long: `Show index, catalog and session status. With --server "" the snapshot and
catalog on disk are inspected directly; the index is not rebuilt.

Examples:
  tutor status
  tutor status -o json`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	f, err := format()
	if err != nil {
		return err
	}
	var status *statusResponse
	if serverURL != "" {
		status, err = newAPIClient(serverURL).status(context.Background())
		if err != nil {
			return fmt.Errorf("status failed: %w", err)
		}
	} else {
		cfg, _, err := loadConfig(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		status, err = localStatus(context.Background(), cfg)
		if err != nil {
			return err
		}
	}
	if f == cli.OutputJSON {
		return cli.WriteJSON(cmd.OutOrStdout(), status)
	}
	writeStatusText(cmd.OutOrStdout(), status)
	return nil
}

// localStatus reads the snapshot and catalog on disk without starting the manager.
func localStatus(ctx context.Context, cfg *config.Config) (*statusResponse, error) {
	status := &statusResponse{
		State: "offline",
		Config: &statusConfigResponse{
			EmbeddingProvider: cfg.Embedding.Provider,
			ChunkSize:         cfg.RAG.ChunkSize,
			ChunkOverlap:      cfg.RAG.ChunkOverlap,
			TopK:              cfg.RAG.TopK,
			Hybrid:            cfg.RAG.Hybrid,
			SnapshotPath:      cfg.Storage.SnapshotPath,
			CatalogPath:       cfg.Storage.CatalogPath,
		},
	}

	idx, err := vector.Load(cfg.Storage.SnapshotPath)
	switch {
	case err == nil:
		size := idx.Size()
		status.IndexChunks = &size
		status.ModelID = idx.ModelID()
		status.Dimensions = idx.Dimensions()
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	catalog, err := storage.NewSQLiteCatalog(cfg.Storage.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	defer catalog.Close()
	if status.Documents, err = catalog.CountDocuments(ctx); err != nil {
		return nil, fmt.Errorf("count documents failed: %w", err)
	}
	if status.Chunks, err = catalog.CountChunks(ctx); err != nil {
		return nil, fmt.Errorf("count chunks failed: %w", err)
	}

	if fp, err := storage.MeasureFootprint(cfg.Storage.SnapshotPath, cfg.Storage.CatalogPath); err == nil {
		total := fp.Total()
		status.DiskUsageBytes = &total
	}
	return status, nil
}

func writeStatusText(w io.Writer, status *statusResponse) {
	if status.State != "" {
		fmt.Fprintf(w, "state:              %s\n", status.State)
	}
	fmt.Fprintf(w, "documents:          %d   # documents in the catalog\n", status.Documents)
	fmt.Fprintf(w, "chunks:             %d   # chunks recorded in the catalog\n", status.Chunks)
	if status.IndexChunks != nil {
		fmt.Fprintf(w, "index_chunks:       %d   # vectors in the loaded snapshot\n", *status.IndexChunks)
		fmt.Fprintf(w, "model_id:           %s\n", status.ModelID)
		fmt.Fprintf(w, "dimensions:         %d\n", status.Dimensions)
	} else {
		fmt.Fprintln(w, "index_chunks:       -   # no snapshot loaded")
	}
	fmt.Fprintf(w, "sessions:           %d\n", status.Sessions)
	if status.DiskUsageBytes != nil {
		fmt.Fprintf(w, "disk_usage_bytes:   %d   # snapshot + catalog on disk\n", *status.DiskUsageBytes)
	}
	if c := status.Config; c != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "# configuration")
		fmt.Fprintf(w, "embedding_provider: %s\n", c.EmbeddingProvider)
		fmt.Fprintf(w, "chunk_size:         %d\n", c.ChunkSize)
		fmt.Fprintf(w, "chunk_overlap:      %d\n", c.ChunkOverlap)
		fmt.Fprintf(w, "top_k:              %d\n", c.TopK)
		fmt.Fprintf(w, "hybrid:             %t\n", c.Hybrid)
		if c.SnapshotPath != "" {
			fmt.Fprintf(w, "snapshot_path:      %s\n", c.SnapshotPath)
		}
		if c.CatalogPath != "" {
			fmt.Fprintf(w, "catalog_path:       %s\n", c.CatalogPath)
		}
	}
}
