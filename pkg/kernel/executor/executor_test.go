package executor

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/percmarket/percolator/pkg/fixedpoint"
	"github.com/percmarket/percolator/pkg/kernel/crisis"
	"github.com/percmarket/percolator/pkg/kernel/insurance"
	"github.com/percmarket/percolator/pkg/kernel/orderbook"
	"github.com/percmarket/percolator/pkg/kernel/portfolio"
	"github.com/percmarket/percolator/pkg/kernel/venue"
	"github.com/percmarket/percolator/pkg/kernelerr"
)

var carol = common.HexToAddress("0xCA801")

const venueSlab = uint32(1)
const instr0 = uint16(0)

func newTestExecutorFixtures(t *testing.T) (*portfolio.Portfolio, *venue.Registry, *insurance.Fund, *crisis.Accums) {
	t.Helper()
	p := portfolio.NewPortfolio(carol)
	p.Principal = fixedpoint.NewI128FromInt64(1_000_000 * fixedpoint.Scale)

	book := orderbook.NewBook(1, 1, 1)
	maker := common.HexToAddress("0xF00D")
	if _, err := book.Insert(maker, orderbook.Sell, 50_000*fixedpoint.Scale, 10*fixedpoint.Scale, 1, orderbook.FlagNone); err != nil {
		t.Fatal(err)
	}
	venues := venue.NewRegistry()
	if err := venues.RegisterSlab(venueSlab, venue.NewSlab(venue.Header{InstrumentIdx: instr0, TakerFeeBps: 5}, book)); err != nil {
		t.Fatal(err)
	}

	fund := &insurance.Fund{}
	accums := crisis.NewAccums()
	return p, venues, fund, accums
}

func TestExecuteHappyPathUpdatesPortfolio(t *testing.T) {
	p, venues, fund, accums := newTestExecutorFixtures(t)
	marks := portfolio.MarkPrices{instr0: 50_000 * fixedpoint.Scale}

	slab, _ := venues.Slab(venueSlab)
	ctx := map[uint32]VenueContext{venueSlab: {PreReadSeqno: slab.Seqno(), OracleTs: 100}}

	splits := []Split{{VenueID: venueSlab, InstrIdx: instr0, Side: orderbook.Buy, IsBuy: true, Qty: 2 * fixedpoint.Scale, LimitPx: 50_000 * fixedpoint.Scale}}
	params := Params{MaxOracleStalenessSecs: 60, NowSecs: 110, Margin: portfolio.Params{IMRBps: 500, MMRBps: 300}}

	res, err := Execute(p, venues, fund, accums, marks, ctx, splits, params)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Receipts) != 1 {
		t.Fatalf("expected 1 receipt, got %d", len(res.Receipts))
	}
	if p.NetExposure(instr0) != 2*fixedpoint.Scale {
		t.Fatalf("expected net exposure 2, got %d", p.NetExposure(instr0)/fixedpoint.Scale)
	}
	if p.IM.IsZero() {
		t.Fatalf("expected non-zero im after opening exposure")
	}
}

func TestExecuteRejectsStaleSeqno(t *testing.T) {
	p, venues, fund, accums := newTestExecutorFixtures(t)
	marks := portfolio.MarkPrices{instr0: 50_000 * fixedpoint.Scale}

	slab, _ := venues.Slab(venueSlab)
	staleSeqno := slab.Seqno() + 99 // deliberately wrong pre-read
	ctx := map[uint32]VenueContext{venueSlab: {PreReadSeqno: staleSeqno, OracleTs: 100}}

	splits := []Split{{VenueID: venueSlab, InstrIdx: instr0, Side: orderbook.Buy, IsBuy: true, Qty: 1 * fixedpoint.Scale, LimitPx: 50_000 * fixedpoint.Scale}}
	params := Params{MaxOracleStalenessSecs: 60, NowSecs: 110, Margin: portfolio.Params{IMRBps: 500, MMRBps: 300}}

	if _, err := Execute(p, venues, fund, accums, marks, ctx, splits, params); err != kernelerr.ErrSeqnoMismatch {
		t.Fatalf("expected SeqnoMismatch, got %v", err)
	}
}

func TestExecuteRejectsIncreasingPositionOnStaleOracle(t *testing.T) {
	p, venues, fund, accums := newTestExecutorFixtures(t)
	marks := portfolio.MarkPrices{instr0: 50_000 * fixedpoint.Scale}

	slab, _ := venues.Slab(venueSlab)
	ctx := map[uint32]VenueContext{venueSlab: {PreReadSeqno: slab.Seqno(), OracleTs: 0}} // very old oracle timestamp

	splits := []Split{{VenueID: venueSlab, InstrIdx: instr0, Side: orderbook.Buy, IsBuy: true, Qty: 1 * fixedpoint.Scale, LimitPx: 50_000 * fixedpoint.Scale}}
	params := Params{MaxOracleStalenessSecs: 60, NowSecs: 1_000, Margin: portfolio.Params{IMRBps: 500, MMRBps: 300}}

	if _, err := Execute(p, venues, fund, accums, marks, ctx, splits, params); err != kernelerr.ErrOracleStale {
		t.Fatalf("expected OracleStale rejection for a position-increasing trade, got %v", err)
	}
}

func TestExecuteAbortsWholeBatchOnInsufficientMargin(t *testing.T) {
	p, venues, fund, accums := newTestExecutorFixtures(t)
	p.Principal = fixedpoint.NewI128FromInt64(1) // effectively no collateral
	marks := portfolio.MarkPrices{instr0: 50_000 * fixedpoint.Scale}

	slab, _ := venues.Slab(venueSlab)
	ctx := map[uint32]VenueContext{venueSlab: {PreReadSeqno: slab.Seqno(), OracleTs: 100}}

	splits := []Split{{VenueID: venueSlab, InstrIdx: instr0, Side: orderbook.Buy, IsBuy: true, Qty: 5 * fixedpoint.Scale, LimitPx: 50_000 * fixedpoint.Scale}}
	params := Params{MaxOracleStalenessSecs: 60, NowSecs: 110, Margin: portfolio.Params{IMRBps: 500, MMRBps: 300}}

	if _, err := Execute(p, venues, fund, accums, marks, ctx, splits, params); err != kernelerr.ErrInsufficientMargin {
		t.Fatalf("expected InsufficientMargin abort, got %v", err)
	}
}
