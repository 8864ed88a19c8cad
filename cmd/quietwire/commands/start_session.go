package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// startSessionCmd fetches a peer's bundle and runs the initiator handshake.
func startSessionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start-session <peer>",
		Short: "Establish a session with a peer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			peer := args[0]
			if err := appCtx.Sessions.Initiate(cmd.Context(), peer); err != nil {
				return fmt.Errorf("starting session with %q: %w", peer, err)
			}
			fmt.Printf("Session with %s established.\n", peer)
			return nil
		},
	}
}
