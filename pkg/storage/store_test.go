package storage

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/percmarket/percolator/pkg/fixedpoint"
	"github.com/percmarket/percolator/pkg/kernel/insurance"
	"github.com/percmarket/percolator/pkg/kernel/registry"
)

var alice = common.HexToAddress("0xA11CE")

func openTestStore(t *testing.T) *PebbleStore {
	t.Helper()
	s, err := NewPebbleStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewPebbleStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCheckpointThenRestoreRoundTrips(t *testing.T) {
	s := openTestStore(t)

	k := registry.New(registry.Params{})
	if err := k.Deposit(alice, fixedpoint.NewI128FromInt64(10_000)); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	k.Insurance.Balance = fixedpoint.NewI128FromInt64(500)
	k.Accums.SigmaPrincipal = fixedpoint.NewI128FromInt64(10_000)

	if err := s.Checkpoint(k); err != nil {
		t.Fatalf("Checkpoint: %v", err)
	}

	restored := registry.New(registry.Params{})
	if err := s.Restore(restored); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	p := restored.Portfolio(alice)
	if p.Principal.Int64() != 10_000 {
		t.Fatalf("expected restored principal=10000, got %s", p.Principal)
	}
	if restored.Insurance.Balance.Int64() != 500 {
		t.Fatalf("expected restored insurance balance=500, got %s", restored.Insurance.Balance)
	}
	if restored.Accums.SigmaPrincipal.Int64() != 10_000 {
		t.Fatalf("expected restored sigma_principal=10000, got %s", restored.Accums.SigmaPrincipal)
	}
	if restored.TotalDeposits.Int64() != 10_000 {
		t.Fatalf("expected restored total_deposits=10000, got %s", restored.TotalDeposits)
	}
}

func TestLoadPortfolioMissingReturnsNilNotError(t *testing.T) {
	s := openTestStore(t)
	p, err := s.LoadPortfolio(alice)
	if err != nil {
		t.Fatalf("expected no error for a never-saved portfolio, got %v", err)
	}
	if p != nil {
		t.Fatalf("expected nil portfolio, got %+v", p)
	}
}

func TestLoadInsuranceMissingReturnsNilNotError(t *testing.T) {
	s := openTestStore(t)
	f, err := s.LoadInsurance()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if f != nil {
		t.Fatalf("expected nil fund, got %+v", f)
	}
}

func TestSaveAndLoadInsurance(t *testing.T) {
	s := openTestStore(t)
	fund := &insurance.Fund{Balance: fixedpoint.NewI128FromInt64(777), Reserved: fixedpoint.NewI128FromInt64(100)}
	if err := s.SaveInsurance(fund); err != nil {
		t.Fatalf("SaveInsurance: %v", err)
	}
	loaded, err := s.LoadInsurance()
	if err != nil {
		t.Fatalf("LoadInsurance: %v", err)
	}
	if loaded.Balance.Int64() != 777 || loaded.Reserved.Int64() != 100 {
		t.Fatalf("expected balance=777 reserved=100, got balance=%s reserved=%s", loaded.Balance, loaded.Reserved)
	}
}

func TestEventLogFilterByKindAndUser(t *testing.T) {
	s := openTestStore(t)
	log, err := NewEventLog(s)
	if err != nil {
		t.Fatalf("NewEventLog: %v", err)
	}

	if _, err := log.Append(Event{Kind: "fill", User: alice, Detail: "filled 100 @ 50"}); err != nil {
		t.Fatalf("Append fill: %v", err)
	}
	if _, err := log.Append(Event{Kind: "liquidation", User: alice, Detail: "pre-liquidation"}); err != nil {
		t.Fatalf("Append liquidation: %v", err)
	}
	bob := common.HexToAddress("0xB0B")
	if _, err := log.Append(Event{Kind: "liquidation", User: bob, Detail: "hard-liquidation"}); err != nil {
		t.Fatalf("Append liquidation (bob): %v", err)
	}

	aliceLiqs, err := log.Filter("liquidation", alice.Hex())
	if err != nil {
		t.Fatalf("Filter: %v", err)
	}
	if len(aliceLiqs) != 1 {
		t.Fatalf("expected exactly 1 liquidation event for alice, got %d", len(aliceLiqs))
	}

	allLiqs, err := log.Filter("liquidation", "")
	if err != nil {
		t.Fatalf("Filter: %v", err)
	}
	if len(allLiqs) != 2 {
		t.Fatalf("expected 2 liquidation events total, got %d", len(allLiqs))
	}
}
