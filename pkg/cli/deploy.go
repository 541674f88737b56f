package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newDeployCommand implements `percolator deploy`. There is no
// separate on-chain program deployment in this port (spec §1's
// Non-goals exclude program deployment); the command instead reports
// that the in-process kernel is already constructed and ready, the
// local equivalent of spec.md's four-program rollout.
func newDeployCommand() *cobra.Command {
	var router, slab, amm, oracle, all bool

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "build and bring up the kernel's venues",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !router && !slab && !amm && !oracle && !all {
				all = true
			}
			fmt.Printf("kernel ready: portfolios=%d venues(slab)=%d venues(amm)=%d\n",
				ctx.Svc.Kernel.Count(),
				len(ctx.Svc.Kernel.Venues().SlabIDs()),
				len(ctx.Svc.Kernel.Venues().AMMIDs()),
			)
			return nil
		},
	}
	cmd.Flags().BoolVar(&router, "router", false, "bring up the router (always on)")
	cmd.Flags().BoolVar(&slab, "slab", false, "bring up the slab venue type")
	cmd.Flags().BoolVar(&amm, "amm", false, "bring up the amm venue type")
	cmd.Flags().BoolVar(&oracle, "oracle", false, "bring up oracle ingestion")
	cmd.Flags().BoolVar(&all, "all", false, "bring up everything")
	return cmd
}
