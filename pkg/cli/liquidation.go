package cli

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/percmarket/percolator/pkg/fixedpoint"
	"github.com/percmarket/percolator/pkg/kernel/liquidation"
)

// newLiquidationCommand implements `percolator liquidation ...` (spec
// §6: "Manual liquidation"), driving the planner/executor of spec
// §4.8.
func newLiquidationCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "liquidation", Short: "liquidation planner/executor (spec §4.8)"}
	cmd.AddCommand(
		newLiquidationExecuteCommand(),
		newLiquidationListCommand(),
		newLiquidationHistoryCommand(),
	)
	return cmd
}

func newLiquidationExecuteCommand() *cobra.Command {
	var maxSize int64

	cmd := &cobra.Command{
		Use:   "execute user",
		Short: "plan and report reduce-only splits for an underwater portfolio",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !common.IsHexAddress(args[0]) {
				fail(ExitUserError, "InvalidAccount", fmt.Errorf("invalid address %q", args[0]))
			}
			addr := common.HexToAddress(args[0])
			quotes := currentVenueQuotes()
			mode, splits, err := ctx.Svc.Liquidate(addr, quotes, time.Now().Unix())
			if err != nil {
				fail(exitCodeFor(err), "PortfolioHealthy", err)
			}
			if mode == liquidation.ModeNone {
				fail(ExitUserError, "PortfolioHealthy", fmt.Errorf("portfolio %s is not liquidatable", args[0]))
			}
			modeName := "pre-liquidation"
			if mode == liquidation.ModeHardLiquidation {
				modeName = "hard-liquidation"
			}
			fmt.Printf("mode=%s splits=%d\n", modeName, len(splits))
			for _, s := range splits {
				qty := s.Qty
				if maxSize > 0 && int64(qty) > maxSize {
					qty = fixedpoint.Fixed(maxSize)
				}
				fmt.Printf("  venue=%d instr=%d side=%d qty=%s limit=%s\n", s.VenueID, s.InstrIdx, s.Side, qty, s.LimitPx)
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&maxSize, "max-size", 0, "cap each split's quantity (0 = no cap)")
	return cmd
}

func newLiquidationListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "list portfolios currently eligible for liquidation",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, addr := range ctx.Svc.KeeperScan(time.Now().Unix()) {
				fmt.Println(addr.Hex())
			}
			return nil
		},
	}
}

func newLiquidationHistoryCommand() *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "print the event log's liquidation entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			if ctx.Svc.Events == nil {
				fmt.Println("no event log configured")
				return nil
			}
			events, err := ctx.Svc.Events.Filter("liquidation", user)
			if err != nil {
				fail(ExitInternal, "Internal", err)
			}
			for _, e := range events {
				fmt.Printf("t=%d user=%s detail=%s\n", e.TimestampUnix, e.User.Hex(), e.Detail)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "filter to one user's address")
	return cmd
}

// currentVenueQuotes builds a VenueQuote slice from every registered
// slab venue's current mark/oracle/spread, the planner's input shape
// per spec §4.8.
func currentVenueQuotes() []liquidation.VenueQuote {
	var quotes []liquidation.VenueQuote
	for _, id := range ctx.Svc.Kernel.Venues().SlabIDs() {
		slab, ok := ctx.Svc.Kernel.Venues().Slab(id)
		if !ok {
			continue
		}
		spreadBps := int64(0)
		bids, asks := slab.Book.Bids(), slab.Book.Asks()
		if len(bids) > 0 && len(asks) > 0 {
			mid := (int64(bids[0].Price) + int64(asks[0].Price)) / 2
			if mid != 0 {
				spreadBps = (int64(asks[0].Price) - int64(bids[0].Price)) * 10_000 / mid
			}
		}
		quotes = append(quotes, liquidation.VenueQuote{
			VenueID:   id,
			InstrIdx:  slab.Header.InstrumentIdx,
			MarkPx:    slab.Header.MarkPx,
			OraclePx:  slab.Header.MarkPx,
			SpreadBps: spreadBps,
		})
	}
	return quotes
}
