package cli

import (
	"fmt"
	"math/big"

	"github.com/spf13/cobra"

	"github.com/percmarket/percolator/pkg/fixedpoint"
	"github.com/percmarket/percolator/pkg/kernel/crisis"
)

// newCrisisCommand implements `percolator crisis ...` (spec §6:
// "Waterfall testing"), a harness over spec §4.9's loss waterfall that
// never requires an actual venue shortfall to exercise.
func newCrisisCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "crisis", Short: "loss waterfall simulation (spec §4.9)"}
	cmd.AddCommand(
		newCrisisSimulateCommand(),
		newCrisisHistoryCommand(),
		newCrisisTestHaircutCommand(),
	)
	return cmd
}

func newCrisisSimulateCommand() *cobra.Command {
	var deficitStr string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "run the waterfall against a hypothetical deficit",
		RunE: func(cmd *cobra.Command, args []string) error {
			deficit, err := parseBigAmount(deficitStr)
			if err != nil {
				fail(ExitUserError, "InvalidAmount", err)
			}
			if dryRun {
				snapshot := *ctx.Svc.Kernel.Accums
				outcome := ctx.Svc.CrisisSimulate(deficit)
				*ctx.Svc.Kernel.Accums = snapshot
				printCrisisOutcome(outcome)
				fmt.Println("(dry-run: accumulators restored)")
				return nil
			}
			printCrisisOutcome(ctx.Svc.CrisisSimulate(deficit))
			return nil
		},
	}
	cmd.Flags().StringVar(&deficitStr, "deficit", "0", "hypothetical deficit to absorb")
	cmd.Flags().BoolVar(&dryRun, "dry-run", true, "simulate without mutating the global accumulators")
	return cmd
}

func newCrisisHistoryCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "print prior crisis outcomes from the event log",
		RunE: func(cmd *cobra.Command, args []string) error {
			if ctx.Svc.Events == nil {
				fmt.Println("no event log configured")
				return nil
			}
			events, err := ctx.Svc.Events.Filter("crisis", "")
			if err != nil {
				fail(ExitInternal, "Internal", err)
			}
			for _, e := range events {
				fmt.Printf("t=%d detail=%s\n", e.TimestampUnix, e.Detail)
			}
			return nil
		},
	}
}

func newCrisisTestHaircutCommand() *cobra.Command {
	var deficitStr string

	cmd := &cobra.Command{
		Use:   "test-haircut",
		Short: "report only the equity haircut ratio a deficit would produce",
		RunE: func(cmd *cobra.Command, args []string) error {
			deficit, err := parseBigAmount(deficitStr)
			if err != nil {
				fail(ExitUserError, "InvalidAmount", err)
			}
			snapshot := *ctx.Svc.Kernel.Accums
			outcome := ctx.Svc.CrisisSimulate(deficit)
			*ctx.Svc.Kernel.Accums = snapshot
			fmt.Printf("equity_haircut_ratio=%s\n", outcome.EquityHaircutRatio)
			return nil
		},
	}
	cmd.Flags().StringVar(&deficitStr, "deficit", "0", "hypothetical deficit")
	return cmd
}

func printCrisisOutcome(o crisis.Outcome) {
	fmt.Printf("deficit=%s burned_warming=%s insurance_draw=%s equity_haircut_ratio=%s is_solvent=%v epoch=%d\n",
		o.Deficit, o.BurnedWarming, o.InsuranceDraw, o.EquityHaircutRatio, o.IsSolvent, o.EpochAfter)
}

func parseBigAmount(s string) (fixedpoint.I128, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return fixedpoint.ZeroI128(), fmt.Errorf("invalid amount %q", s)
	}
	return fixedpoint.NewI128FromBigInt(v), nil
}
