package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperjump/tutor/internal/cli"
	"github.com/hyperjump/tutor/internal/models"
	"github.com/spf13/cobra"
)

// retrieveK is the number of chunks to return; 0 uses rag.top_k
var retrieveK int

var retrieveCmd = &cobra.Command{
	Use:   "retrieve <query>",
	Short: "Show the course material most relevant to a query",
	Long: `Embed the query and print the nearest chunks with their source and page.
The query is all arguments joined by spaces; quoting is optional.

Examples:
  tutor retrieve what is Bayes rule
  tutor retrieve -k 8 -o json "gradient descent learning rate"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRetrieve,
}

func init() {
	retrieveCmd.Flags().IntVarP(&retrieveK, "top-k", "k", 0, fmt.Sprintf("Number of chunks (default rag.top_k, at most %d)", models.MaxTopK))
	rootCmd.AddCommand(retrieveCmd)
}

// joinQuery joins positional args with spaces so multi-word queries work with or
// without shell quoting.
func joinQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func runRetrieve(cmd *cobra.Command, args []string) error {
	f, err := format()
	if err != nil {
		return err
	}
	query := joinQuery(args)
	if query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var chunks []models.RetrievedChunk
	if serverURL != "" {
		chunks, err = newAPIClient(serverURL).retrieve(ctx, query, retrieveK)
	} else {
		chunks, err = retrieveDirect(ctx, query, retrieveK)
	}
	if err != nil {
		return fmt.Errorf("retrieve failed: %w", err)
	}
	return cli.WriteRetrieved(cmd.OutOrStdout(), query, chunks, f)
}

func retrieveDirect(ctx context.Context, query string, k int) ([]models.RetrievedChunk, error) {
	cfg, logger, err := setup()
	if err != nil {
		return nil, err
	}
	defer logger.Sync()
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		return nil, err
	}
	defer components.Close()
	return components.Retriever.Retrieve(ctx, query, k)
}
