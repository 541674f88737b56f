package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newInsuranceCommand implements `percolator insurance ...` (spec §6:
// "Insurance admin"), read access to the fund of spec §4.7.
func newInsuranceCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "insurance", Short: "insurance fund admin (spec §4.7)"}
	cmd.AddCommand(
		newInsuranceFundCommand(),
		newInsuranceBalanceCommand(),
		newInsuranceHistoryCommand(),
	)
	return cmd
}

func newInsuranceFundCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "fund",
		Short: "show the fund's full state (balance/reserved/spendable/fee revenue)",
		RunE: func(cmd *cobra.Command, args []string) error {
			balance, reserved, spendable, feeRevenue := ctx.Svc.InsuranceStatus()
			fmt.Printf("balance=%s reserved=%s spendable=%s fee_revenue=%s\n",
				balance, reserved, spendable, feeRevenue)
			return nil
		},
	}
}

func newInsuranceBalanceCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "show only the fund's spendable balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, spendable, _ := ctx.Svc.InsuranceStatus()
			fmt.Println(spendable)
			return nil
		},
	}
}

func newInsuranceHistoryCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "print the event log's crisis/bad-debt entries touching insurance",
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
