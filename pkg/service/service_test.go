package service

import (
	"math/big"
	"testing"

	"go.uber.org/zap"

	"github.com/percmarket/percolator/params"
	"github.com/percmarket/percolator/pkg/crypto"
	"github.com/percmarket/percolator/pkg/fixedpoint"
	"github.com/percmarket/percolator/pkg/kernel/venue"
	"github.com/percmarket/percolator/pkg/transaction"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	s, err := New(params.Default(), nil, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestDepositCreditsPortfolio(t *testing.T) {
	s := newTestService(t)
	owner, _ := crypto.GenerateKey()
	if err := s.Deposit(owner.Address(), fixedpoint.NewI128FromInt64(5_000_000)); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	p := s.Kernel.Portfolio(owner.Address())
	if p.Principal.Int64() != 5_000_000 {
		t.Fatalf("expected principal=5000000, got %s", p.Principal)
	}
}

func TestPlaceOrderInsertsPostOnlyOrder(t *testing.T) {
	s := newTestService(t)
	if err := s.RegisterSlab(1, venue.Header{InstrumentIdx: 0}, fixedpoint.Fixed(1), fixedpoint.Fixed(1), fixedpoint.Fixed(1)); err != nil {
		t.Fatalf("RegisterSlab: %v", err)
	}

	owner, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	if err := s.Deposit(owner.Address(), fixedpoint.NewI128FromInt64(1_000_000)); err != nil {
		t.Fatalf("Deposit: %v", err)
	}

	eip712 := crypto.NewEIP712Signer(crypto.DefaultDomain())
	order := &crypto.OrderEIP712{
		VenueID:  1,
		InstrIdx: 0,
		Side:     1,
		Price:    big.NewInt(50_000_000),
		Qty:      big.NewInt(1_000_000),
		Nonce:    big.NewInt(1),
		Deadline: big.NewInt(9_999_999_999),
		PostOnly: true,
		Owner:    owner.Address(),
	}
	sig, err := eip712.SignOrder(owner, order)
	if err != nil {
		t.Fatalf("SignOrder: %v", err)
	}
	tx := &transaction.SignedTransaction{
		Type:      transaction.TxTypeOrder,
		Order:     transaction.FromEIP712Order(order),
		Signature: "0x" + encodeHex(sig),
	}

	orderID, err := s.PlaceOrder(tx)
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if orderID == 0 {
		t.Fatalf("expected a nonzero order id")
	}

	slab, ok := s.Kernel.Venues().Slab(1)
	if !ok {
		t.Fatalf("expected slab 1 to be registered")
	}
	if slab.Seqno() == 0 {
		t.Fatalf("expected seqno to advance after an insert")
	}
}

func TestPlaceOrderRejectsNonPostOnly(t *testing.T) {
	s := newTestService(t)
	if err := s.RegisterSlab(1, venue.Header{}, fixedpoint.Fixed(1), fixedpoint.Fixed(1), fixedpoint.Fixed(1)); err != nil {
		t.Fatalf("RegisterSlab: %v", err)
	}
	owner, _ := crypto.GenerateKey()
	eip712 := crypto.NewEIP712Signer(crypto.DefaultDomain())
	order := &crypto.OrderEIP712{
		VenueID: 1, Side: 1,
		Price: big.NewInt(1), Qty: big.NewInt(1),
		Nonce: big.NewInt(1), Deadline: big.NewInt(9_999_999_999),
		PostOnly: false, Owner: owner.Address(),
	}
	sig, _ := eip712.SignOrder(owner, order)
	tx := &transaction.SignedTransaction{
		Type:      transaction.TxTypeOrder,
		Order:     transaction.FromEIP712Order(order),
		Signature: "0x" + encodeHex(sig),
	}
	if _, err := s.PlaceOrder(tx); err == nil {
		t.Fatalf("expected non-post-only order to be rejected by PlaceOrder")
	}
}

func TestInsuranceStatusReflectsKernelFund(t *testing.T) {
	s := newTestService(t)
	s.Kernel.Insurance.Balance = fixedpoint.NewI128FromInt64(1_000)
	s.Kernel.Insurance.Reserved = fixedpoint.NewI128FromInt64(200)

	balance, reserved, spendable, _ := s.InsuranceStatus()
	if balance.Int64() != 1_000 || reserved.Int64() != 200 || spendable.Int64() != 800 {
		t.Fatalf("expected balance=1000 reserved=200 spendable=800, got balance=%s reserved=%s spendable=%s", balance, reserved, spendable)
	}
}

func TestKeeperScanFindsNoFlaggedPortfoliosWhenHealthy(t *testing.T) {
	s := newTestService(t)
	owner, _ := crypto.GenerateKey()
	if err := s.Deposit(owner.Address(), fixedpoint.NewI128FromInt64(1_000_000)); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	flagged := s.KeeperScan(0)
	if len(flagged) != 0 {
		t.Fatalf("expected no flagged portfolios for a fully-collateralized deposit-only account, got %d", len(flagged))
	}
}

func encodeHex(b []byte) string {
	const hextable = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[i*2] = hextable[c>>4]
		out[i*2+1] = hextable[c&0x0f]
	}
	return string(out)
}
