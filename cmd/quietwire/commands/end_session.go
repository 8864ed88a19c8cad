package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// endSessionCmd destroys the session with a peer, zeroizing its state.
func endSessionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "end-session <peer>",
		Short: "Destroy the session with a peer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			peer := args[0]
			if err := appCtx.Sessions.End(peer); err != nil {
				return fmt.Errorf("ending session with %q: %w", peer, err)
			}
			fmt.Printf("Session with %s destroyed.\n", peer)
			return nil
		},
	}
}
