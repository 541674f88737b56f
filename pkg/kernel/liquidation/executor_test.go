package liquidation

import (
	"errors"
	"testing"

	"github.com/percmarket/percolator/pkg/fixedpoint"
	"github.com/percmarket/percolator/pkg/kernel/crisis"
	"github.com/percmarket/percolator/pkg/kernel/insurance"
	"github.com/percmarket/percolator/pkg/kernel/orderbook"
	"github.com/percmarket/percolator/pkg/kernel/portfolio"
	"github.com/percmarket/percolator/pkg/kernelerr"
)

func TestToExecutorSplitsPreservesFieldsAsSlabOrders(t *testing.T) {
	in := []Split{{VenueID: 7, InstrIdx: 1, Side: orderbook.Sell, Qty: 5 * fixedpoint.Scale, LimitPx: 100 * fixedpoint.Scale}}
	out := ToExecutorSplits(in)
	if len(out) != 1 {
		t.Fatalf("expected 1 split, got %d", len(out))
	}
	s := out[0]
	if s.IsAMM {
		t.Fatalf("liquidation splits must never be routed to an AMM venue")
	}
	if s.VenueID != 7 || s.InstrIdx != 1 || s.Side != orderbook.Sell || s.Qty != 5*fixedpoint.Scale || s.LimitPx != 100*fixedpoint.Scale {
		t.Fatalf("fields not preserved across conversion: %+v", s)
	}
}

func TestReduceOnlyGuardAllowsShrinkingRejectsGrowing(t *testing.T) {
	if err := ReduceOnlyGuard(10*fixedpoint.Scale, 4*fixedpoint.Scale); err != nil {
		t.Fatalf("shrinking exposure must be allowed: %v", err)
	}
	if err := ReduceOnlyGuard(10*fixedpoint.Scale, -2*fixedpoint.Scale); err != nil {
		t.Fatalf("flattening past zero slightly must still be allowed if |new|<=|old|: %v", err)
	}
	err := ReduceOnlyGuard(10*fixedpoint.Scale, 12*fixedpoint.Scale)
	if !errors.Is(err, kernelerr.ErrWouldBeLiquidatable) {
		t.Fatalf("growing exposure must be rejected, got %v", err)
	}
}

func TestLiquidateSlabLPSeatScalesDownProportionally(t *testing.T) {
	seat := &portfolio.LpSeat{
		Kind:             portfolio.SeatKindSlab,
		IM:               fixedpoint.NewI128FromInt64(1000),
		MM:               fixedpoint.NewI128FromInt64(500),
		ReservedBaseQ64:  fixedpoint.Q64One(),
		ReservedQuoteQ64: fixedpoint.Q64One(),
	}
	LiquidateSlabLPSeat(seat, 500_000) // 50%

	if seat.IM.Int64() != 500 {
		t.Fatalf("expected im halved to 500, got %d", seat.IM.Int64())
	}
	if seat.MM.Int64() != 250 {
		t.Fatalf("expected mm halved to 250, got %d", seat.MM.Int64())
	}
	if seat.Frozen {
		t.Fatalf("seat should not be frozen at 50% remaining")
	}
}

func TestLiquidateSlabLPSeatFreezesAtZeroRemaining(t *testing.T) {
	seat := &portfolio.LpSeat{
		IM: fixedpoint.NewI128FromInt64(1000),
		MM: fixedpoint.NewI128FromInt64(500),
	}
	LiquidateSlabLPSeat(seat, 0)

	if !seat.Frozen {
		t.Fatalf("seat must be frozen once fully drained")
	}
	if !seat.IM.IsZero() || !seat.MM.IsZero() {
		t.Fatalf("im/mm must be zeroed at 0%% remaining, got im=%s mm=%s", seat.IM, seat.MM)
	}
}

func TestLiquidateAMMLPSeatRejectsStaleOracle(t *testing.T) {
	seat := &portfolio.LpSeat{
		Kind:       portfolio.SeatKindAMM,
		LPShares:   fixedpoint.NewI128FromInt64(100),
		SharePrice: 2 * fixedpoint.Scale,
		OracleTs:   0,
	}
	_, err := LiquidateAMMLPSeat(seat, 1000, 30)
	if !errors.Is(err, kernelerr.ErrOracleStale) {
		t.Fatalf("expected ErrOracleStale, got %v", err)
	}
	if seat.Frozen {
		t.Fatalf("seat must not be touched when the oracle check rejects the redemption")
	}
}

func TestLiquidateAMMLPSeatRedeemsAtSharePrice(t *testing.T) {
	seat := &portfolio.LpSeat{
		Kind:       portfolio.SeatKindAMM,
		LPShares:   fixedpoint.NewI128FromInt64(100),
		SharePrice: 2 * fixedpoint.Scale,
		OracleTs:   995,
	}
	redemption, err := LiquidateAMMLPSeat(seat, 1000, 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if redemption.Int64() != 200 {
		t.Fatalf("expected redemption=100*2=200, got %s", redemption)
	}
	if !seat.LPShares.IsZero() {
		t.Fatalf("shares must be zeroed after redemption")
	}
	if !seat.Frozen {
		t.Fatalf("seat must be frozen after redemption")
	}
}

func TestEmitBadDebtNoOpWhenSolvent(t *testing.T) {
	p := portfolio.NewPortfolio(dave)
	p.Equity = fixedpoint.NewI128FromInt64(10)
	fund := &insurance.Fund{Balance: fixedpoint.NewI128FromInt64(1000)}
	accums := crisis.NewAccums()

	out := EmitBadDebt(p, fund, accums)
	if out != (crisis.Outcome{}) {
		t.Fatalf("expected zero-value outcome for a solvent portfolio, got %+v", out)
	}
	if fund.Balance.Int64() != 1000 {
		t.Fatalf("insurance balance must be untouched, got %s", fund.Balance)
	}
}

func TestEmitBadDebtFullyCoveredByInsurance(t *testing.T) {
	p := portfolio.NewPortfolio(dave)
	p.Equity = fixedpoint.NewI128FromInt64(-40)
	fund := &insurance.Fund{Balance: fixedpoint.NewI128FromInt64(1000)}
	accums := crisis.NewAccums()

	out := EmitBadDebt(p, fund, accums)
	if out != (crisis.Outcome{}) {
		t.Fatalf("expected the zero-value outcome when insurance fully covers the debt, got %+v", out)
	}
	if fund.Balance.Int64() != 960 {
		t.Fatalf("expected insurance balance drawn down by 40 to 960, got %s", fund.Balance)
	}
	if accums.SigmaInsurance.Int64() != -40 {
		t.Fatalf("expected sigma_insurance to track the draw, got %s", accums.SigmaInsurance)
	}
}

// TestEmitBadDebtOverflowsToWaterfall: the insurance fund only covers
// part of the shortfall (100 out of 500). EmitBadDebt drains it
// directly before RunWaterfall ever sees the remainder, so by the time
// RunWaterfall runs the fund is already empty and its own
// insurance_draw is necessarily zero; the uncovered 400 flows into the
// waterfall's deficit.
func TestEmitBadDebtOverflowsToWaterfall(t *testing.T) {
	p := portfolio.NewPortfolio(dave)
	p.Equity = fixedpoint.NewI128FromInt64(-500)
	fund := &insurance.Fund{Balance: fixedpoint.NewI128FromInt64(100)}
	accums := crisis.NewAccums()

	out := EmitBadDebt(p, fund, accums)
	if fund.Balance.Sign() != 0 {
		t.Fatalf("insurance must be fully drained, got %s", fund.Balance)
	}
	if accums.SigmaInsurance.Int64() != -100 {
		t.Fatalf("expected sigma_insurance to record the direct 100 draw, got %s", accums.SigmaInsurance)
	}
	if out.InsuranceDraw.Sign() != 0 {
		t.Fatalf("expected the waterfall's own insurance_draw to be zero (fund already drained), got %s", out.InsuranceDraw)
	}
	if out.Deficit.Int64() != 400 {
		t.Fatalf("expected remaining deficit of 400 fed into the waterfall, got %s", out.Deficit)
	}
}

func TestTouchUpdatesLastLiquidationTs(t *testing.T) {
	p := portfolio.NewPortfolio(dave)
	Touch(p, 12345)
	if p.LastLiquidationTs != 12345 {
		t.Fatalf("expected last_liquidation_ts=12345, got %d", p.LastLiquidationTs)
	}
}
