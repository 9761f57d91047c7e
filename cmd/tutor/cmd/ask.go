package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/hyperjump/tutor/internal/cli"
	"github.com/hyperjump/tutor/internal/models"
	"github.com/spf13/cobra"
)

var (
	// askSession continues an existing conversation
	askSession string
	// askCodeFile is a file whose contents are sent as code context
	askCodeFile string
	// askK is the number of chunks to ground the answer in
	askK int
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask the tutor a question",
	Long: `Answer a question from the indexed course material. Conversation history is kept
per session by the server; pass the session id printed by a previous answer to
continue it. In direct mode (--server "") every invocation is a new conversation.

Examples:
  tutor ask "what does the learning rate control?"
  tutor ask --session 5f0c... "and what if it is too large?"
  tutor ask --code solution.py "why does my loop never stop?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askSession, "session", "s", "", "Session id to continue")
	askCmd.Flags().StringVar(&askCodeFile, "code", "", "File to include as code context")
	askCmd.Flags().IntVarP(&askK, "top-k", "k", 0, "Number of chunks to retrieve (default rag.top_k)")
	rootCmd.AddCommand(askCmd)
}

// buildAskRequest assembles the request from args and flags, reading codeFile if set.
func buildAskRequest(args []string, session, codeFile string, k int) (models.AskRequest, error) {
	req := models.AskRequest{Question: joinQuery(args), SessionID: session, K: k}
	if codeFile != "" {
		code, err := os.ReadFile(codeFile)
		if err != nil {
			return req, fmt.Errorf("read code context: %w", err)
		}
		req.CodeContext = string(code)
	}
	if err := req.Validate(); err != nil {
		return req, err
	}
	return req, nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	f, err := format()
	if err != nil {
		return err
	}
	req, err := buildAskRequest(args, askSession, askCodeFile, askK)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var resp *models.AskResponse
	if serverURL != "" {
		resp, err = newAPIClient(serverURL).ask(ctx, req)
	} else {
		resp, err = askDirect(ctx, req)
	}
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}
	return cli.WriteAnswer(cmd.OutOrStdout(), resp, f)
}

func askDirect(ctx context.Context, req models.AskRequest) (*models.AskResponse, error) {
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
	return components.Answers.Ask(ctx, req)
}
