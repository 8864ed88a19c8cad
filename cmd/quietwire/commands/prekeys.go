package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// prekeysCmd rotates in a fresh signed prekey and tops up the one-time pool.
func prekeysCmd() *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "prekeys",
		Short: "Provision a signed prekey and a batch of one-time prekeys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			spk, oneTime, err := appCtx.Prekeys.Provision(count)
			if err != nil {
				return fmt.Errorf("provisioning prekeys: %w", err)
			}
			fmt.Printf("Signed prekey %d provisioned; %d one-time prekeys added.\n", spk.ID, len(oneTime))
			return nil
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 0, "one-time prekeys to generate (default: configured batch size)")
	return cmd
}
