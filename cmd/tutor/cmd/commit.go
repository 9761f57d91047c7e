package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/hyperjump/tutor/internal/models"
	"github.com/spf13/cobra"
)

// commitDiffFile is read instead of stdin when set
var commitDiffFile string

var commitCmd = &cobra.Command{
	Use:   "commit-message",
	Short: "Suggest a Conventional Commits message for a diff",
	Long: `Read a git diff from stdin (or --diff) and print a one-line commit message in
Conventional Commits form. An empty diff prints a generic chore message without
calling the model.

Examples:
  git diff --cached | tutor commit-message
  tutor commit-message --diff change.patch`,
	Args: cobra.NoArgs,
	RunE: runCommitMessage,
}

func init() {
	commitCmd.Flags().StringVar(&commitDiffFile, "diff", "", "File holding the diff (default stdin)")
	rootCmd.AddCommand(commitCmd)
}

func readDiff(in io.Reader, path string) (string, error) {
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read diff: %w", err)
		}
		return string(b), nil
	}
	b, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("read diff: %w", err)
	}
	return string(b), nil
}

func runCommitMessage(cmd *cobra.Command, _ []string) error {
	diff, err := readDiff(cmd.InOrStdin(), commitDiffFile)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	req := models.CommitMessageRequest{Diff: diff}

	var resp *models.CommitMessageResponse
	if serverURL != "" {
		resp, err = newAPIClient(serverURL).commitMessage(ctx, diff)
	} else {
		resp, err = commitMessageDirect(ctx, req)
	}
	if err != nil {
		return fmt.Errorf("commit message failed: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
	return nil
}

func commitMessageDirect(ctx context.Context, req models.CommitMessageRequest) (*models.CommitMessageResponse, error) {
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
	return components.Assistant.CommitMessage(ctx, req)
}
