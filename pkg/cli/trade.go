package cli

import (
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/percmarket/percolator/pkg/fixedpoint"
	"github.com/percmarket/percolator/pkg/kernel/executor"
	"github.com/percmarket/percolator/pkg/kernel/orderbook"
	"github.com/percmarket/percolator/pkg/kernel/portfolio"
)

// newTradeCommand implements `percolator trade ...` (spec §6: "Execute
// cross-venue via router"), the CLI surface over the cross-venue
// executor of spec §4.5.
func newTradeCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "trade", Short: "execute cross-venue order flow via the router"}
	cmd.AddCommand(
		newTradeLimitCommand(),
		newTradeMarketCommand(),
		newTradeCancelCommand(),
		newTradeOrdersCommand(),
		newTradeBookCommand(),
	)
	return cmd
}

// buildSingleSplit is shared by limit/market: a one-leg intent against
// a single slab venue. Multi-venue intents are not exposed by the CLI
// surface (spec §6 lists one venue/side/qty per trade invocation); the
// executor itself is fully general over Splits for programmatic callers.
func buildSingleSplit(venueID uint32, instrIdx uint16, side orderbook.Side, qty, limitPx fixedpoint.Fixed) []executor.Split {
	return []executor.Split{{
		VenueID:  venueID,
		InstrIdx: instrIdx,
		Side:     side,
		Qty:      qty,
		LimitPx:  limitPx,
	}}
}

func runTrade(venueID uint32, instrIdx uint16, side orderbook.Side, qty, limitPx fixedpoint.Fixed) error {
	signer, err := loadSigner()
	if err != nil {
		fail(ExitUnauthorized, "Unauthorized", err)
	}

	slab, ok := ctx.Svc.Kernel.Venues().Slab(venueID)
	if !ok {
		fail(ExitUserError, "VenueRejected", fmt.Errorf("venue %d not found", venueID))
	}

	marks := portfolio.MarkPrices{instrIdx: slab.Header.MarkPx}
	venueCtx := map[uint32]executor.VenueContext{
		venueID: {
			PreReadSeqno: slab.Seqno(),
			OracleTs:     slab.Header.OracleTs,
			CumFunding:   slab.Header.CumFunding,
		},
	}
	splits := buildSingleSplit(venueID, instrIdx, side, qty, limitPx)

	now := time.Now()
	result, err := ctx.Svc.Execute(signer.Address(), marks, venueCtx, splits, now.Unix(), uint64(now.UnixNano()))
	if err != nil {
		fail(exitCodeFor(err), "InsufficientMargin", err)
	}
	for _, r := range result.Receipts {
		fmt.Printf("filled %s @ vwap=%s notional=%s fee=%s\n", r.FilledQty, r.VWAPPx, r.Notional, r.Fee)
	}
	return nil
}

func newTradeLimitCommand() *cobra.Command {
	var venueID uint32
	var instrIdx uint16

	cmd := &cobra.Command{
		Use:   "limit side px qty",
		Short: "cross-venue limit order, up to limit_px",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			side, err := parseBookSideArg(args[0])
			if err != nil {
				fail(ExitUserError, "InvalidAccount", err)
			}
			px, err := parseFixedArg(args[1], "InvalidPrice")
			if err != nil {
				fail(ExitUserError, "InvalidPrice", err)
			}
			qty, err := parseFixedArg(args[2], "InvalidQuantity")
			if err != nil {
				fail(ExitUserError, "InvalidQuantity", err)
			}
			return runTrade(venueID, instrIdx, side, qty, px)
		},
	}
	cmd.Flags().Uint32Var(&venueID, "venue", 0, "venue id")
	cmd.Flags().Uint16Var(&instrIdx, "instrument", 0, "instrument index")
	return cmd
}

func newTradeMarketCommand() *cobra.Command {
	var venueID uint32
	var instrIdx uint16
	var bandBps int64

	cmd := &cobra.Command{
		Use:   "market side qty",
		Short: "cross-venue market order, banded around the venue's mark price",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			side, err := parseBookSideArg(args[0])
			if err != nil {
				fail(ExitUserError, "InvalidAccount", err)
			}
			qty, err := parseFixedArg(args[1], "InvalidQuantity")
			if err != nil {
				fail(ExitUserError, "InvalidQuantity", err)
			}
			slab, ok := ctx.Svc.Kernel.Venues().Slab(venueID)
			if !ok {
				fail(ExitUserError, "VenueRejected", fmt.Errorf("venue %d not found", venueID))
			}
			limitPx := bandedMarketLimit(slab.Header.MarkPx, side, bandBps)
			return runTrade(venueID, instrIdx, side, qty, limitPx)
		},
	}
	cmd.Flags().Uint32Var(&venueID, "venue", 0, "venue id")
	cmd.Flags().Uint16Var(&instrIdx, "instrument", 0, "instrument index")
	cmd.Flags().Int64Var(&bandBps, "band-bps", 50, "price band around mark, in bps")
	return cmd
}

func bandedMarketLimit(mark fixedpoint.Fixed, side orderbook.Side, bandBps int64) fixedpoint.Fixed {
	delta := fixedpoint.Fixed(int64(mark) * bandBps / 10_000)
	if side == orderbook.Buy {
		return mark + delta
	}
	return mark - delta
}

func newTradeCancelCommand() *cobra.Command {
	var venueID uint32

	cmd := &cobra.Command{
		Use:   "cancel id",
		Short: "cancel a resting order via the router",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orderID, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				fail(ExitUserError, "OrderNotFound", fmt.Errorf("invalid order id %q", args[0]))
			}
			tx, err := signCancel(venueID, orderID)
			if err != nil {
				fail(ExitUnauthorized, "Unauthorized", err)
			}
			if err := ctx.Svc.CancelOrder(tx); err != nil {
				fail(exitCodeFor(err), "OrderNotFound", err)
			}
			fmt.Printf("order %d canceled\n", orderID)
			return nil
		},
	}
	cmd.Flags().Uint32Var(&venueID, "venue", 0, "venue id")
	return cmd
}

func newTradeOrdersCommand() *cobra.Command {
	var venueID uint32

	cmd := &cobra.Command{
		Use:   "orders",
		Short: "list a user's resting orders across one venue",
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := resolveUser(nil)
			if err != nil {
				fail(ExitUnauthorized, "Unauthorized", err)
			}
			slab, ok := ctx.Svc.Kernel.Venues().Slab(venueID)
			if !ok {
				fail(ExitUserError, "VenueRejected", fmt.Errorf("venue %d not found", venueID))
			}
			for _, o := range append(slab.Book.Bids(), slab.Book.Asks()...) {
				if o.Owner == addr {
					fmt.Printf("#%d side=%d price=%s qty=%s\n", o.ID, o.Side, o.Price, o.Qty)
				}
			}
			return nil
		},
	}
	cmd.Flags().Uint32Var(&venueID, "venue", 0, "venue id")
	return cmd
}

func newTradeBookCommand() *cobra.Command {
	return newMatcherOrderbookCommand()
}

func parseBookSideArg(s string) (orderbook.Side, error) {
	v, err := parseSideArg(s)
	if err != nil {
		return 0, err
	}
	if v == 1 {
		return orderbook.Buy, nil
	}
	return orderbook.Sell, nil
}

func parseFixedArg(s, contract string) (fixedpoint.Fixed, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return 0, fmt.Errorf("invalid value %q", s)
	}
	return fixedpoint.Fixed(v.Int64()), nil
}
