package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// registerCmd publishes the local bundle and one-time pool to the directory.
func registerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Publish your prekey bundle to the relay directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bundle, pool, err := appCtx.Prekeys.Bundle()
			if err != nil {
				return err
			}
			if err := appCtx.Relay.PublishBundle(cmd.Context(), username, bundle, pool); err != nil {
				return fmt.Errorf("publishing bundle: %w", err)
			}
			fmt.Printf("Bundle published with %d one-time prekeys.\n", len(pool))
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "your directory username")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}
