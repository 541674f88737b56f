package cli

import (
	"fmt"
	"math/big"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/percmarket/percolator/pkg/fixedpoint"
	"github.com/percmarket/percolator/pkg/kernel/venue"
)

// newMatcherCommand implements `percolator matcher ...` (spec §6:
// "Venue operations").
func newMatcherCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "matcher", Short: "venue lifecycle and direct order entry"}
	cmd.AddCommand(
		newMatcherCreateCommand(),
		newMatcherListCommand(),
		newMatcherInfoCommand(),
		newMatcherRegisterSlabCommand(),
		newMatcherUpdateFundingCommand(),
		newMatcherPlaceOrderCommand(),
		newMatcherCancelOrderCommand(),
		newMatcherOrderbookCommand(),
	)
	return cmd
}

func newMatcherCreateCommand() *cobra.Command {
	var venueID uint32
	var instrIdx uint16
	var markPx int64
	var takerFeeBps int64

	cmd := &cobra.Command{
		Use:   "create",
		Short: "register a slab venue with a fresh order book",
		RunE: func(cmd *cobra.Command, args []string) error {
			header := venue.Header{InstrumentIdx: instrIdx, MarkPx: fixedpoint.Fixed(markPx), TakerFeeBps: takerFeeBps}
			if err := ctx.Svc.RegisterSlab(venueID, header, 1, 1, 1); err != nil {
				fail(ExitUserError, "VenueRejected", err)
			}
			fmt.Printf("venue %d created: instrument=%d mark=%d\n", venueID, instrIdx, markPx)
			return nil
		},
	}
	cmd.Flags().Uint32Var(&venueID, "venue", 0, "venue id")
	cmd.Flags().Uint16Var(&instrIdx, "instrument", 0, "instrument index")
	cmd.Flags().Int64Var(&markPx, "mark", 0, "initial mark price, fixed-point")
	cmd.Flags().Int64Var(&takerFeeBps, "taker-fee", 10, "taker fee, in bps")
	return cmd
}

func newMatcherListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "list registered venues",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, id := range ctx.Svc.Kernel.Venues().SlabIDs() {
				fmt.Printf("slab %d\n", id)
			}
			for _, id := range ctx.Svc.Kernel.Venues().AMMIDs() {
				fmt.Printf("amm %d\n", id)
			}
			return nil
		},
	}
}

func newMatcherInfoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info venue",
		Short: "show a venue's header state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseVenueIDArg(args[0])
			if err != nil {
				fail(ExitUserError, "InvalidAccount", err)
			}
			if slab, ok := ctx.Svc.Kernel.Venues().Slab(id); ok {
				fmt.Printf("slab %d: instrument=%d mark=%s funding_bps=%d seqno=%d\n",
					id, slab.Header.InstrumentIdx, slab.Header.MarkPx, slab.Header.FundingRateBps, slab.Seqno())
				return nil
			}
			if amm, ok := ctx.Svc.Kernel.Venues().AMM(id); ok {
				fmt.Printf("amm %d: instrument=%d mark=%s x=%d y=%d\n",
					id, amm.Header.InstrumentIdx, amm.Header.MarkPx, amm.Pool.X, amm.Pool.Y)
				return nil
			}
			fail(ExitUserError, "VenueRejected", fmt.Errorf("venue %d not found", id))
			return nil
		},
	}
}

func newMatcherRegisterSlabCommand() *cobra.Command {
	var venueID uint32
	var instrIdx uint16
	var tick, lot, minOrderSize int64

	cmd := &cobra.Command{
		Use:   "register-slab",
		Short: "register a slab venue with explicit tick/lot constraints",
		RunE: func(cmd *cobra.Command, args []string) error {
			header := venue.Header{InstrumentIdx: instrIdx}
			err := ctx.Svc.RegisterSlab(venueID, header,
				fixedpoint.Fixed(tick), fixedpoint.Fixed(lot), fixedpoint.Fixed(minOrderSize))
			if err != nil {
				fail(ExitUserError, "VenueRejected", err)
			}
			fmt.Printf("slab %d registered: tick=%d lot=%d min=%d\n", venueID, tick, lot, minOrderSize)
			return nil
		},
	}
	cmd.Flags().Uint32Var(&venueID, "venue", 0, "venue id")
	cmd.Flags().Uint16Var(&instrIdx, "instrument", 0, "instrument index")
	cmd.Flags().Int64Var(&tick, "tick", 1, "tick size, fixed-point")
	cmd.Flags().Int64Var(&lot, "lot", 1, "lot size, fixed-point")
	cmd.Flags().Int64Var(&minOrderSize, "min-order-size", 1, "minimum order size, fixed-point")
	return cmd
}

func newMatcherUpdateFundingCommand() *cobra.Command {
	var venueID uint32
	var fundingRateBps int64
	var markPx int64
	var oracleTs int64

	cmd := &cobra.Command{
		Use:   "update-funding venue",
		Short: "push a new funding rate and mark price onto a venue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseVenueIDArg(args[0])
			if err != nil {
				fail(ExitUserError, "InvalidAccount", err)
			}
			slab, ok := ctx.Svc.Kernel.Venues().Slab(id)
			if !ok {
				fail(ExitUserError, "VenueRejected", fmt.Errorf("venue %d not found", id))
			}
			slab.Header.FundingRateBps = fundingRateBps
			slab.Header.MarkPx = fixedpoint.Fixed(markPx)
			slab.Header.OracleTs = oracleTs
			fmt.Printf("venue %d funding updated: rate_bps=%d mark=%d\n", id, fundingRateBps, markPx)
			return nil
		},
	}
	cmd.Flags().Int64Var(&fundingRateBps, "rate", 0, "funding rate, in bps")
	cmd.Flags().Int64Var(&markPx, "mark", 0, "mark price, fixed-point")
	cmd.Flags().Int64Var(&oracleTs, "oracle-ts", 0, "oracle observation timestamp")
	return cmd
}

func newMatcherPlaceOrderCommand() *cobra.Command {
	var venueID uint32
	var instrIdx uint16
	var postOnly, reduceOnly bool

	cmd := &cobra.Command{
		Use:   "place-order side px qty",
		Short: "sign and submit a resting order to a slab venue",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			side, err := parseSideArg(args[0])
			if err != nil {
				fail(ExitUserError, "InvalidAccount", err)
			}
			px, ok := new(big.Int).SetString(args[1], 10)
			if !ok {
				fail(ExitUserError, "InvalidPrice", fmt.Errorf("invalid price %q", args[1]))
			}
			qty, ok := new(big.Int).SetString(args[2], 10)
			if !ok {
				fail(ExitUserError, "InvalidQuantity", fmt.Errorf("invalid quantity %q", args[2]))
			}
			if !postOnly {
				fail(ExitUserError, "WouldCross", fmt.Errorf("matcher place-order only accepts --post-only intents; use trade limit/market to cross"))
			}
			tx, err := signOrder(venueID, instrIdx, side, px, qty, postOnly, reduceOnly)
			if err != nil {
				fail(ExitUnauthorized, "Unauthorized", err)
			}
			id, err := ctx.Svc.PlaceOrder(tx)
			if err != nil {
				fail(exitCodeFor(err), "VenueRejected", err)
			}
			fmt.Printf("order %d placed on venue %d\n", id, venueID)
			return nil
		},
	}
	cmd.Flags().Uint32Var(&venueID, "venue", 0, "venue id")
	cmd.Flags().Uint16Var(&instrIdx, "instrument", 0, "instrument index")
	cmd.Flags().BoolVar(&postOnly, "post-only", true, "reject if the order would cross")
	cmd.Flags().BoolVar(&reduceOnly, "reduce-only", false, "reject if the order would increase exposure")
	return cmd
}

func newMatcherCancelOrderCommand() *cobra.Command {
	var venueID uint32

	cmd := &cobra.Command{
		Use:   "cancel-order id",
		Short: "sign and submit a cancel for a resting order",
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
			fmt.Printf("order %d canceled on venue %d\n", orderID, venueID)
			return nil
		},
	}
	cmd.Flags().Uint32Var(&venueID, "venue", 0, "venue id")
	return cmd
}

func newMatcherOrderbookCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "orderbook id",
		Short: "print a slab's resting bids and asks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseVenueIDArg(args[0])
			if err != nil {
				fail(ExitUserError, "InvalidAccount", err)
			}
			slab, ok := ctx.Svc.Kernel.Venues().Slab(id)
			if !ok {
				fail(ExitUserError, "VenueRejected", fmt.Errorf("venue %d not found", id))
			}
			fmt.Println("bids:")
			for _, o := range slab.Book.Bids() {
				fmt.Printf("  #%d price=%s qty=%s\n", o.ID, o.Price, o.Qty)
			}
			fmt.Println("asks:")
			for _, o := range slab.Book.Asks() {
				fmt.Printf("  #%d price=%s qty=%s\n", o.ID, o.Price, o.Qty)
			}
			return nil
		},
	}
}

func parseVenueIDArg(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid venue id %q", s)
	}
	return uint32(v), nil
}

// parseSideArg maps "buy"/"sell" (or "1"/"2") onto the EIP-712 order
// side encoding consumed by signOrder.
func parseSideArg(s string) (uint8, error) {
	switch s {
	case "buy", "1":
		return 1, nil
	case "sell", "2":
		return 2, nil
	default:
		return 0, fmt.Errorf("invalid side %q, want buy or sell", s)
	}
}
