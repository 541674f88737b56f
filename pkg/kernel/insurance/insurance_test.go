package insurance

import (
	"testing"

	"github.com/percmarket/percolator/pkg/crypto"
	"github.com/percmarket/percolator/pkg/fixedpoint"
	"github.com/percmarket/percolator/pkg/kernelerr"
)

func TestSpendableIsBalanceMinusReserved(t *testing.T) {
	f := &Fund{
		Balance:  fixedpoint.NewI128FromInt64(1_000),
		Reserved: fixedpoint.NewI128FromInt64(300),
	}
	if f.Spendable().Int64() != 700 {
		t.Fatalf("expected spendable=700, got %s", f.Spendable())
	}
}

func TestAccrueFeeAddsToBalanceAndRevenue(t *testing.T) {
	f := &Fund{}
	fee := f.AccrueFee(fixedpoint.Fixed(1_000_000), 10) // 10 bps of 1.0 notional
	if fee.Int64() != 1_000 {
		t.Fatalf("expected fee=1000, got %s", fee)
	}
	if f.Balance.Int64() != 1_000 {
		t.Fatalf("expected balance=1000 after accrual, got %s", f.Balance)
	}
	if f.FeeRevenue.Int64() != 1_000 {
		t.Fatalf("expected fee_revenue=1000 after accrual, got %s", f.FeeRevenue)
	}
}

func TestPayBadDebtFullyCovered(t *testing.T) {
	f := &Fund{Balance: fixedpoint.NewI128FromInt64(1_000)}
	paid, uncovered := f.PayBadDebt(fixedpoint.NewI128FromInt64(400))
	if paid.Int64() != 400 {
		t.Fatalf("expected paid=400, got %s", paid)
	}
	if !uncovered.IsZero() {
		t.Fatalf("expected uncovered=0, got %s", uncovered)
	}
	if f.Balance.Int64() != 600 {
		t.Fatalf("expected remaining balance=600, got %s", f.Balance)
	}
}

func TestPayBadDebtPartiallyCoveredByReservation(t *testing.T) {
	f := &Fund{Balance: fixedpoint.NewI128FromInt64(1_000), Reserved: fixedpoint.NewI128FromInt64(700)}
	paid, uncovered := f.PayBadDebt(fixedpoint.NewI128FromInt64(500))
	if paid.Int64() != 300 {
		t.Fatalf("expected paid=300 (spendable only), got %s", paid)
	}
	if uncovered.Int64() != 200 {
		t.Fatalf("expected uncovered=200, got %s", uncovered)
	}
}

func TestDiscretionaryTransferRequiresQuorum(t *testing.T) {
	f := &Fund{Balance: fixedpoint.NewI128FromInt64(1_000)}
	err := f.DiscretionaryTransfer(fixedpoint.NewI128FromInt64(100), []byte("msg"), nil, nil)
	if err != kernelerr.ErrUnauthorized {
		t.Fatalf("expected ErrUnauthorized with no quorum configured, got %v", err)
	}
}

func TestDiscretionaryTransferWithQuorum(t *testing.T) {
	signerA := crypto.NewBLSSignerFromSeed([]byte("seed-a-012345678901234567890123"))
	signerB := crypto.NewBLSSignerFromSeed([]byte("seed-b-012345678901234567890123"))
	quorum, err := crypto.NewQuorumAuthority([]*crypto.BLSPubKey{signerA.Pubkey(), signerB.Pubkey()}, 2)
	if err != nil {
		t.Fatalf("NewQuorumAuthority: %v", err)
	}

	f := &Fund{Balance: fixedpoint.NewI128FromInt64(1_000), Quorum: quorum}
	msg := []byte("transfer 100 to treasury")
	sigA := signerA.Sign(msg)
	sigB := signerB.Sign(msg)
	aggSig := crypto.Aggregate([][]byte{sigA, sigB})

	if err := f.DiscretionaryTransfer(fixedpoint.NewI128FromInt64(100), msg, aggSig, []int{0, 1}); err != nil {
		t.Fatalf("expected quorum-authorized transfer to succeed, got %v", err)
	}
	if f.Balance.Int64() != 900 {
		t.Fatalf("expected balance=900 after transfer, got %s", f.Balance)
	}
}

func TestDiscretionaryTransferInsufficientSpendable(t *testing.T) {
	signerA := crypto.NewBLSSignerFromSeed([]byte("seed-a-012345678901234567890123"))
	quorum, err := crypto.NewQuorumAuthority([]*crypto.BLSPubKey{signerA.Pubkey()}, 1)
	if err != nil {
		t.Fatalf("NewQuorumAuthority: %v", err)
	}
	f := &Fund{Balance: fixedpoint.NewI128FromInt64(50), Quorum: quorum}
	msg := []byte("transfer too much")
	aggSig := crypto.Aggregate([][]byte{signerA.Sign(msg)})

	if err := f.DiscretionaryTransfer(fixedpoint.NewI128FromInt64(100), msg, aggSig, []int{0}); err != kernelerr.ErrInsufficientFunds {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
}
