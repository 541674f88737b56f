package venue

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/percmarket/percolator/pkg/fixedpoint"
	"github.com/percmarket/percolator/pkg/kernel/amm"
	"github.com/percmarket/percolator/pkg/kernel/orderbook"
	"github.com/percmarket/percolator/pkg/kernelerr"
)

var maker = common.HexToAddress("0xFEED")
var taker = common.HexToAddress("0xBEEF")

func newTestSlab() *Slab {
	book := orderbook.NewBook(1, 1, 1)
	_, _ = book.Insert(maker, orderbook.Sell, 100*fixedpoint.Scale, 5*fixedpoint.Scale, 1, orderbook.FlagNone)
	return NewSlab(Header{InstrumentIdx: 0, TakerFeeBps: 10}, book)
}

func TestSlabMatchAdvancesSeqno(t *testing.T) {
	s := newTestSlab()
	seq := s.Seqno()
	if seq != 0 {
		t.Fatalf("expected fresh slab seqno=0, got %d", seq)
	}

	receipt, err := s.MatchAtSeqno(seq, orderbook.Buy, 2*fixedpoint.Scale, 100*fixedpoint.Scale)
	if err != nil {
		t.Fatal(err)
	}
	if receipt.FilledQty != 2*fixedpoint.Scale {
		t.Fatalf("expected filled_qty=2, got %d", receipt.FilledQty/fixedpoint.Scale)
	}
	if s.Seqno() != seq+1 {
		t.Fatalf("match must advance seqno by exactly one, got %d", s.Seqno())
	}
}

func TestSlabMatchRejectsStaleSeqno(t *testing.T) {
	s := newTestSlab()
	staleSeqno := s.Seqno()

	if _, err := s.MatchAtSeqno(staleSeqno, orderbook.Buy, 1*fixedpoint.Scale, 100*fixedpoint.Scale); err != nil {
		t.Fatal(err)
	}
	// staleSeqno is now one behind the venue's advanced counter.
	if _, err := s.MatchAtSeqno(staleSeqno, orderbook.Buy, 1*fixedpoint.Scale, 100*fixedpoint.Scale); err != kernelerr.ErrSeqnoMismatch {
		t.Fatalf("expected SeqnoMismatch on stale pre-read, got %v", err)
	}
}

func TestAMMQuoteBuyAdvancesSeqnoAndReserves(t *testing.T) {
	pool := amm.Pool{X: 1_000_000, Y: 1_000_000, FeeBps: 30, MinLiq: 1}
	v := NewAMM(Header{InstrumentIdx: 1, TakerFeeBps: 5}, pool)
	seq := v.Seqno()

	receipt, err := v.QuoteBuyAtSeqno(seq, 1_000)
	if err != nil {
		t.Fatal(err)
	}
	if receipt.FilledQty != 1_000 {
		t.Fatalf("expected filled_qty=1000, got %d", receipt.FilledQty)
	}
	if v.Seqno() != seq+1 {
		t.Fatalf("quote commit must advance seqno, got %d", v.Seqno())
	}
	if v.Pool.X != 1_000_000-1_000 {
		t.Fatalf("expected reserve X to shrink by dxOut, got %d", v.Pool.X)
	}
}

func TestAMMQuoteRejectsStaleSeqno(t *testing.T) {
	pool := amm.Pool{X: 1_000_000, Y: 1_000_000, FeeBps: 30, MinLiq: 1}
	v := NewAMM(Header{}, pool)
	stale := v.Seqno()

	if _, err := v.QuoteSellAtSeqno(stale, 1_000); err != nil {
		t.Fatal(err)
	}
	if _, err := v.QuoteSellAtSeqno(stale, 1_000); err != kernelerr.ErrSeqnoMismatch {
		t.Fatalf("expected SeqnoMismatch on stale pre-read, got %v", err)
	}
}

func TestRegistryRejectsDuplicateVenueID(t *testing.T) {
	r := NewRegistry()
	if err := r.RegisterSlab(1, newTestSlab()); err != nil {
		t.Fatal(err)
	}
	if err := r.RegisterSlab(1, newTestSlab()); err == nil {
		t.Fatalf("expected duplicate venue id registration to fail")
	}
	if err := r.RegisterAMM(1, NewAMM(Header{}, amm.Pool{X: 1, Y: 1, MinLiq: 0})); err == nil {
		t.Fatalf("expected id collision across slab/amm namespaces to fail")
	}
}
