package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// sendCmd encrypts and sends a message to <peer>.
func sendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send <peer> <message>",
		Short: "Encrypt and send a message to a peer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			peer := args[0]
			plaintext := []byte(args[1])

			err := appCtx.Messages.Send(cmd.Context(), username, peer, plaintext)
			if err != nil {
				return fmt.Errorf("sending message to %q: %w", peer, err)
			}
			fmt.Println("Message sent")
			return nil
		},
	}

	// Username flag is local to this command (others inherit from the root).
	cmd.Flags().StringVarP(&username, "username", "u", "", "your directory username")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}
