// Package cli implements the operator command surface of spec §6: ten
// command groups built on cobra, each driving the in-process kernel via
// pkg/service rather than an RPC client. Grounded on
// sawpanic-cryptorun's cmd/cryptorun (a cobra root with persistent
// flags and one file per command group), the pack's only cobra-heavy
// repo.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/percmarket/percolator/pkg/service"
)

// Exit codes per spec §6.
const (
	ExitSuccess       = 0
	ExitUserError     = 1
	ExitNetwork       = 2
	ExitUnauthorized  = 3
	ExitInsufficient  = 4
	ExitInternal      = 5
)

// Context bundles what every subcommand needs: the service facade and
// the persistent flag values attached at the root.
type Context struct {
	Svc      *service.Service
	Network  string
	Keypair  string
	JSONOut  bool
}

var ctx = &Context{}

// NewRootCommand builds the full command tree against an
// already-constructed service.
func NewRootCommand(svc *service.Service) *cobra.Command {
	ctx.Svc = svc

	root := &cobra.Command{
		Use:   "percolator",
		Short: "percolator cross-venue perpetual risk and matching kernel",
	}

	root.PersistentFlags().StringVar(&ctx.Network, "network", "local", "network selector (local, devnet, mainnet)")
	root.PersistentFlags().StringVar(&ctx.Keypair, "keypair", "", "path to a hex-encoded private key")
	root.PersistentFlags().BoolVar(&ctx.JSONOut, "json", false, "emit machine-readable JSON output")

	root.AddCommand(
		newDeployCommand(),
		newInitCommand(),
		newMarginCommand(),
		newMatcherCommand(),
		newTradeCommand(),
		newLiquidityCommand(),
		newLiquidationCommand(),
		newInsuranceCommand(),
		newCrisisCommand(),
		newKeeperCommand(),
	)
	return root
}

// fail prints a structured error line and exits with the mapped code,
// matching spec §6's "CLI prints a structured line naming the failing
// contract and returns the mapped exit code."
func fail(code int, contract string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", contract, err)
	os.Exit(code)
}

func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}
	switch {
	case isAuthError(err):
		return ExitUnauthorized
	case isMarginError(err):
		return ExitInsufficient
	default:
		return ExitUserError
	}
}
