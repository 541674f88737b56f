// Package insurance implements the insurance fund of spec §4.7:
// balance, reserved, spendable, fee revenue, and bad-debt absorption.
package insurance

import (
	"github.com/percmarket/percolator/pkg/crypto"
	"github.com/percmarket/percolator/pkg/fixedpoint"
	"github.com/percmarket/percolator/pkg/kernelerr"
)

// Fund tracks the insurance balance and its reservation state.
type Fund struct {
	Balance    fixedpoint.I128
	Reserved   fixedpoint.I128
	FeeRevenue fixedpoint.I128

	// Quorum authorizes discretionary transfers (spec §4.7's fund is
	// otherwise only drawn by the automated bad-debt path). Nil until
	// the deployment registers a multisig authority.
	Quorum *crypto.QuorumAuthority
}

// Spendable returns balance - reserved.
func (f *Fund) Spendable() fixedpoint.I128 {
	return f.Balance.Sub(f.Reserved)
}

// AccrueFee adds a configurable bps of notional to the fund, tracked
// both in balance and fee_revenue.
func (f *Fund) AccrueFee(notional fixedpoint.Fixed, feeBps int64) fixedpoint.I128 {
	fee := fixedpoint.NewI128FromInt64(int64(notional)).MulDivFloor(
		fixedpoint.NewI128FromInt64(feeBps), fixedpoint.NewI128FromInt64(10_000))
	f.Balance = f.Balance.Add(fee)
	f.FeeRevenue = f.FeeRevenue.Add(fee)
	return fee
}

// PayBadDebt pays up to `amount` out of spendable balance, returning
// the amount actually paid and the uncovered remainder that must flow
// into the global haircut (spec §4.9).
func (f *Fund) PayBadDebt(amount fixedpoint.I128) (paid, uncovered fixedpoint.I128) {
	spendable := f.Spendable()
	if spendable.Cmp(amount) >= 0 {
		f.Balance = f.Balance.Sub(amount)
		return amount, fixedpoint.ZeroI128()
	}
	f.Balance = f.Balance.Sub(spendable)
	return spendable, amount.Sub(spendable)
}

// DiscretionaryTransfer pays amount out of spendable balance for a
// non-bad-debt purpose (e.g. governance-directed reallocation),
// gated on a quorum-signed authorization over msg. Unlike
// PayBadDebt, this never partially pays: either the quorum check
// passes and the full amount is spendable, or nothing moves.
func (f *Fund) DiscretionaryTransfer(amount fixedpoint.I128, msg, aggSig []byte, signerIdxs []int) error {
	if f.Quorum == nil {
		return kernelerr.ErrUnauthorized
	}
	if !f.Quorum.VerifyQuorum(msg, aggSig, signerIdxs) {
		return kernelerr.ErrUnauthorized
	}
	if f.Spendable().Cmp(amount) < 0 {
		return kernelerr.ErrInsufficientFunds
	}
	f.Balance = f.Balance.Sub(amount)
	return nil
}
