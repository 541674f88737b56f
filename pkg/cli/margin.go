package cli

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/percmarket/percolator/pkg/fixedpoint"
)

// newMarginCommand implements `percolator margin ...` (spec §6:
// "Portfolio lifecycle").
func newMarginCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "margin", Short: "portfolio lifecycle"}
	cmd.AddCommand(
		newMarginInitCommand(),
		newMarginDepositCommand(),
		newMarginWithdrawCommand(),
		newMarginShowCommand(),
		newMarginRequirementsCommand(),
	)
	return cmd
}

func newMarginInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "touch a portfolio into existence",
		RunE: func(cmd *cobra.Command, args []string) error {
			signer, err := loadSigner()
			if err != nil {
				fail(ExitUnauthorized, "Unauthorized", err)
			}
			p := ctx.Svc.Kernel.Portfolio(signer.Address())
			fmt.Printf("portfolio initialized: owner=%s\n", p.UserID.Hex())
			return nil
		},
	}
}

func newMarginDepositCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "deposit AMT",
		Short: "credit a portfolio's vault balance",
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
			if err := ctx.Svc.Deposit(signer.Address(), fixedpoint.NewI128FromBigInt(amt)); err != nil {
				fail(exitCodeFor(err), "InsufficientFunds", err)
			}
			fmt.Printf("deposited %s to %s\n", args[0], signer.Address().Hex())
			return nil
		},
	}
}

func newMarginWithdrawCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "withdraw AMT",
		Short: "withdraw from a portfolio's vault balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amt, ok := new(big.Int).SetString(args[0], 10)
			if !ok {
				fail(ExitUserError, "InvalidAmount", fmt.Errorf("invalid amount %q", args[0]))
			}
			tx, err := signWithdraw(amt)
			if err != nil {
				fail(ExitUnauthorized, "Unauthorized", err)
			}
			if err := ctx.Svc.Withdraw(tx); err != nil {
				fail(exitCodeFor(err), "InsufficientWithdrawable", err)
			}
			fmt.Printf("withdrew %s\n", args[0])
			return nil
		},
	}
}

func newMarginShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show [user]",
		Short: "show a portfolio's margin state",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := resolveUser(args)
			if err != nil {
				fail(ExitUserError, "InvalidAccount", err)
			}
			p := ctx.Svc.Kernel.Portfolio(addr)
			fmt.Printf("owner=%s principal=%s equity=%s im=%s mm=%s free=%s health=%s\n",
				p.UserID.Hex(), p.Principal, p.Equity, p.IM, p.MM, p.FreeCollateral, p.Health)
			return nil
		},
	}
}

func newMarginRequirementsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "requirements user",
		Short: "show a portfolio's IM/MM requirements",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !common.IsHexAddress(args[0]) {
				fail(ExitUserError, "InvalidAccount", fmt.Errorf("invalid address %q", args[0]))
			}
			p := ctx.Svc.Kernel.Portfolio(common.HexToAddress(args[0]))
			fmt.Printf("im=%s mm=%s max_withdrawable=%s\n",
				p.IM, p.MM, ctx.Svc.Kernel.MaxWithdrawable(p))
			return nil
		},
	}
}

func resolveUser(args []string) (common.Address, error) {
	if len(args) == 1 {
		if !common.IsHexAddress(args[0]) {
			return common.Address{}, fmt.Errorf("invalid address %q", args[0])
		}
		return common.HexToAddress(args[0]), nil
	}
	signer, err := loadSigner()
	if err != nil {
		return common.Address{}, err
	}
	return signer.Address(), nil
}
