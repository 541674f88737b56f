package cli

import (
	"fmt"
	"math/big"

	"github.com/spf13/cobra"

	"github.com/percmarket/percolator/pkg/fixedpoint"
)

// newInitCommand implements `percolator init`, seeding the registry's
// scalar margin/insurance configuration (spec §3's Registry entity).
func newInitCommand() *cobra.Command {
	var name string
	var insuranceFund string
	var mmrBps, imrBps int64

	cmd := &cobra.Command{
		Use:   "init",
		Short: "create the registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx.Svc.Config.Margin.IMRBps = imrBps
			ctx.Svc.Config.Margin.MMRBps = mmrBps

			if insuranceFund != "" {
				v, ok := new(big.Int).SetString(insuranceFund, 10)
				if !ok {
					fail(ExitUserError, "InvalidAmount", fmt.Errorf("invalid --insurance-fund %q", insuranceFund))
				}
				ctx.Svc.Kernel.Insurance.Balance = fixedpoint.NewI128FromBigInt(v)
			}

			fmt.Printf("registry %q initialized: imr_bps=%d mmr_bps=%d insurance_fund=%s\n",
				name, imrBps, mmrBps, ctx.Svc.Kernel.Insurance.Balance.String())
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "percolator", "registry name")
	cmd.Flags().StringVar(&insuranceFund, "insurance-fund", "", "initial insurance fund balance")
	cmd.Flags().Int64Var(&mmrBps, "mmr", 250, "maintenance margin ratio, in bps")
	cmd.Flags().Int64Var(&imrBps, "imr", 500, "initial margin ratio, in bps")
	return cmd
}
