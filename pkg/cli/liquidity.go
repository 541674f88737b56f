package cli

import (
	"fmt"
	"math/big"

	"github.com/spf13/cobra"

	"github.com/percmarket/percolator/pkg/fixedpoint"
	"github.com/percmarket/percolator/pkg/kernel/portfolio"
)

// newLiquidityCommand implements `percolator liquidity ...` (spec §6:
// "LP seat lifecycle").
func newLiquidityCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "liquidity", Short: "LP seat lifecycle (spec §4.6/§3)"}
	cmd.AddCommand(
		newLiquidityAddCommand(),
		newLiquidityRemoveCommand(),
		newLiquidityShowCommand(),
	)
	return cmd
}

func newLiquidityAddCommand() *cobra.Command {
	var venueID uint32
	var isAMM bool

	cmd := &cobra.Command{
		Use:   "add AMT",
		Short: "credit LP shares to a seat, minting a new seat if needed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			signer, err := loadSigner()
			if err != nil {
				fail(ExitUnauthorized, "Unauthorized", err)
			}
			amt, ok := new(big.Int).SetString(args[0], 10)
			if !ok {
				fail(ExitUserError, "InvalidAmount", fmt.Errorf("invalid amount %q", args[0]))
			}
			delta := fixedpoint.NewI128FromBigInt(amt)

			p := ctx.Svc.Kernel.Portfolio(signer.Address())
			idx := findOrCreateSeat(p, venueID, isAMM)
			if err := ctx.Svc.AddLiquidity(signer.Address(), idx, delta); err != nil {
				fail(exitCodeFor(err), "InsufficientFunds", err)
			}
			fmt.Printf("seat %d: +%s shares (venue=%d)\n", idx, args[0], venueID)
			return nil
		},
	}
	cmd.Flags().Uint32Var(&venueID, "venue", 0, "venue id")
	cmd.Flags().BoolVar(&isAMM, "amm", false, "seat is an AMM-LP seat rather than a Slab-LP seat")
	return cmd
}

func newLiquidityRemoveCommand() *cobra.Command {
	var seatIdx int

	cmd := &cobra.Command{
		Use:   "remove AMT",
		Short: "burn LP shares from an existing seat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			signer, err := loadSigner()
			if err != nil {
				fail(ExitUnauthorized, "Unauthorized", err)
			}
			amt, ok := new(big.Int).SetString(args[0], 10)
			if !ok {
				fail(ExitUserError, "InvalidAmount", fmt.Errorf("invalid amount %q", args[0]))
			}
			if err := ctx.Svc.RemoveLiquidity(signer.Address(), seatIdx, fixedpoint.NewI128FromBigInt(amt)); err != nil {
				fail(exitCodeFor(err), "InsufficientFunds", err)
			}
			fmt.Printf("seat %d: -%s shares\n", seatIdx, args[0])
			return nil
		},
	}
	cmd.Flags().IntVar(&seatIdx, "seat", 0, "seat index within the caller's portfolio")
	return cmd
}

func newLiquidityShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show [user]",
		Short: "list a portfolio's LP seats",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := resolveUser(args)
			if err != nil {
				fail(ExitUserError, "InvalidAccount", err)
			}
			p := ctx.Svc.Kernel.Portfolio(addr)
			for i, seat := range p.LPSeats {
				kind := "slab"
				if seat.Kind == portfolio.SeatKindAMM {
					kind = "amm"
				}
				fmt.Printf("seat %d: kind=%s venue=%d shares=%s im=%s mm=%s frozen=%v\n",
					i, kind, seat.MatcherID, seat.LPShares, seat.IM, seat.MM, seat.Frozen)
			}
			return nil
		},
	}
}

// findOrCreateSeat locates an existing seat for venueID/isAMM, or
// appends a fresh zero-share one, mirroring spec §3's LP seat lifecycle
// ("created by the owner, mutated only by that owner's authority").
func findOrCreateSeat(p *portfolio.Portfolio, venueID uint32, isAMM bool) int {
	kind := portfolio.SeatKindSlab
	if isAMM {
		kind = portfolio.SeatKindAMM
	}
	for i, seat := range p.LPSeats {
		if seat.MatcherID == venueID && seat.Kind == kind {
			return i
		}
	}
	p.LPSeats = append(p.LPSeats, portfolio.LpSeat{
		Kind:      kind,
		MatcherID: venueID,
		ContextID: uint32(len(p.LPSeats)),
	})
	return len(p.LPSeats) - 1
}
