package cmd

import (
	"context"
	"fmt"

	"github.com/hyperjump/tutor/internal/cli"
	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect or clear conversation sessions on a running server",
	Long: `Sessions live in server memory only, so these commands always talk to --server.

Examples:
  tutor session show 5f0c...
  tutor session clear 5f0c...`,
}

var sessionShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Print the remembered turns of a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionShow,
}

var sessionClearCmd = &cobra.Command{
	Use:   "clear <session-id>",
	Short: "Forget the turns of a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionClear,
}

func init() {
	sessionCmd.AddCommand(sessionShowCmd, sessionClearCmd)
	rootCmd.AddCommand(sessionCmd)
}

func sessionClient() (*apiClient, error) {
	if serverURL == "" {
		return nil, fmt.Errorf("sessions require a running server (--server)")
	}
	return newAPIClient(serverURL), nil
}

func runSessionShow(cmd *cobra.Command, args []string) error {
	f, err := format()
	if err != nil {
		return err
	}
	client, err := sessionClient()
	if err != nil {
		return err
	}
	view, err := client.session(context.Background(), args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if f == cli.OutputJSON {
		return cli.WriteJSON(out, view)
	}
	if len(view.Turns) == 0 {
		fmt.Fprintf(out, "session %s has no turns\n", view.SessionID)
		return nil
	}
	fmt.Fprintln(out, view.History)
	return nil
}

func runSessionClear(cmd *cobra.Command, args []string) error {
	client, err := sessionClient()
	if err != nil {
		return err
	}
	if err := client.clearSession(context.Background(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Cleared: %s\n", args[0])
	return nil
}
