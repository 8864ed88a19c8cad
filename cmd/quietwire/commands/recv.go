package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// recvCmd fetches queued envelopes, decrypts them and prints the plaintext.
func recvCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "recv",
		Short: "Fetch and decrypt pending messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			msgs, err := appCtx.Messages.Recv(cmd.Context(), username, limit)
			if err != nil {
				return fmt.Errorf("receiving messages: %w", err)
			}
			if len(msgs) == 0 {
				fmt.Println("No new messages.")
				return nil
			}
			for _, m := range msgs {
				fmt.Printf("[%s] %s\n", m.From, m.Plaintext)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "your directory username")
	_ = cmd.MarkFlagRequired("username")
	cmd.Flags().IntVarP(&limit, "limit", "l", 0, "max messages to fetch (0 = all)")
	return cmd
}
