package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// newKeeperCommand implements `percolator keeper ...` (spec §6:
// "Background liquidator"), a thin CLI driver over Service.KeeperScan:
// spec §2 describes the keeper as polling portfolios and feeding any
// underwater one into the planner/executor, which `keeper run
// --monitor-only` reports without executing and a non-monitor-only run
// would hand to `liquidation execute`.
func newKeeperCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "keeper", Short: "background liquidation keeper (spec §2)"}
	cmd.AddCommand(
		newKeeperRunCommand(),
		newKeeperStatsCommand(),
	)
	return cmd
}

func newKeeperRunCommand() *cobra.Command {
	var intervalSecs int
	var monitorOnly bool
	var iterations int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "poll every known portfolio and flag liquidatable ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			if intervalSecs <= 0 {
				intervalSecs = 30
			}
			for i := 0; iterations <= 0 || i < iterations; i++ {
				flagged := ctx.Svc.KeeperScan(time.Now().Unix())
				if len(flagged) == 0 {
					fmt.Println("keeper: no liquidatable portfolios")
				}
				for _, addr := range flagged {
					if monitorOnly {
						fmt.Printf("keeper: %s is liquidatable (monitor-only, not executing)\n", addr.Hex())
						continue
					}
					mode, splits, err := ctx.Svc.Liquidate(addr, currentVenueQuotes(), time.Now().Unix())
					if err != nil {
						fmt.Printf("keeper: liquidate %s failed: %v\n", addr.Hex(), err)
						continue
					}
					fmt.Printf("keeper: %s mode=%d splits_planned=%d\n", addr.Hex(), mode, len(splits))
				}
				if iterations > 0 && i == iterations-1 {
					break
				}
				time.Sleep(time.Duration(intervalSecs) * time.Second)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&intervalSecs, "interval", 30, "poll interval, in seconds")
	cmd.Flags().BoolVar(&monitorOnly, "monitor-only", true, "report without planning/executing liquidations")
	cmd.Flags().IntVar(&iterations, "iterations", 1, "number of poll cycles to run (0 = run forever)")
	return cmd
}

func newKeeperStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "print kernel-wide risk and insurance stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			balance, reserved, spendable, feeRevenue := ctx.Svc.InsuranceStatus()
			fmt.Printf("portfolios=%d insurance_balance=%s insurance_reserved=%s insurance_spendable=%s fee_revenue=%s\n",
				ctx.Svc.Kernel.Count(), balance, reserved, spendable, feeRevenue)
			fmt.Printf("unlocked_frac=%.6f equity_scale=%s warming_scale=%s epoch=%d total_deposits=%s\n",
				ctx.Svc.Kernel.WarmupState.UnlockedFrac.Float64(), ctx.Svc.Kernel.Accums.EquityScale,
				ctx.Svc.Kernel.Accums.WarmingScale, ctx.Svc.Kernel.Accums.Epoch, ctx.Svc.Kernel.TotalDeposits)
			return nil
		},
	}
}
