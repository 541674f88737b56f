package liquidation

import (
	"github.com/percmarket/percolator/pkg/fixedpoint"
	"github.com/percmarket/percolator/pkg/kernel/crisis"
	"github.com/percmarket/percolator/pkg/kernel/executor"
	"github.com/percmarket/percolator/pkg/kernel/insurance"
	"github.com/percmarket/percolator/pkg/kernel/lp"
	"github.com/percmarket/percolator/pkg/kernel/portfolio"
	"github.com/percmarket/percolator/pkg/kernelerr"
)

// ReduceOnlyGuard implements spec §4.8 step 1's verified reduce-only
// check: |new_net| <= |old_net|. Principal liquidation itself runs
// through pkg/kernel/executor.Execute with the planner's splits
// (converted via ToExecutorSplits) so that liquidation reuses the same
// seqno/oracle/margin machinery every other trade goes through rather
// than duplicating it; this guard is the extra invariant the executor
// call must additionally satisfy when it is liquidation-triggered.
func ReduceOnlyGuard(oldNet, newNet fixedpoint.Fixed) error {
	if abs(newNet) > abs(oldNet) {
		return kernelerr.ErrWouldBeLiquidatable
	}
	return nil
}

// ToExecutorSplits converts the planner's venue-ranked reduce-only
// splits into pkg/kernel/executor.Split, so that PlanPrincipalLiquidation's
// output can be fed straight into executor.Execute without liquidation
// reimplementing any matching, seqno, or margin logic of its own. Every
// converted split addresses a Slab venue (IsAMM false); AMM-LP exposure
// is unwound separately through LiquidateAMMLPSeat, never through the
// order-book executor.
func ToExecutorSplits(splits []Split) []executor.Split {
	out := make([]executor.Split, len(splits))
	for i, s := range splits {
		out[i] = executor.Split{
			VenueID:  s.VenueID,
			IsAMM:    false,
			InstrIdx: s.InstrIdx,
			Side:     s.Side,
			Qty:      s.Qty,
			LimitPx:  s.LimitPx,
		}
	}
	return out
}

// LiquidateSlabLPSeat implements spec §4.8 step 2: cancel a Slab-LP
// bucket's resting orders down to remainingRatio (RATIO_SCALE = 1e6)
// via the verified proportional_margin_reduction, freeing reserved
// collateral by the same ratio and marking the seat inactive once
// fully drained.
func LiquidateSlabLPSeat(seat *portfolio.LpSeat, remainingRatio int64) {
	seat.IM = lp.ProportionalMarginReduction(seat.IM, remainingRatio)
	seat.MM = lp.ProportionalMarginReduction(seat.MM, remainingRatio)

	seat.ReservedBaseQ64 = scaleQ64ByRatio(seat.ReservedBaseQ64, remainingRatio)
	seat.ReservedQuoteQ64 = scaleQ64ByRatio(seat.ReservedQuoteQ64, remainingRatio)

	if remainingRatio <= 0 {
		seat.Frozen = true
	}
}

func scaleQ64ByRatio(q fixedpoint.Q64, remainingRatio int64) fixedpoint.Q64 {
	ratio := fixedpoint.Ratio(fixedpoint.NewI128FromInt64(remainingRatio), fixedpoint.NewI128FromInt64(lp.RatioScale))
	return q.Mul(ratio)
}

// LiquidateAMMLPSeat implements spec §4.8 step 3: staleness-guarded
// AMM-LP redemption. A seat whose venue oracle is older than
// maxStalenessSecs is skipped entirely (never liquidated against a
// stale price); otherwise its shares redeem at share_price via a
// checked multiply, the shares are burned, and the seat is marked
// inactive.
func LiquidateAMMLPSeat(seat *portfolio.LpSeat, nowTs, maxStalenessSecs int64) (fixedpoint.I128, error) {
	if nowTs-seat.OracleTs > maxStalenessSecs {
		return fixedpoint.ZeroI128(), kernelerr.ErrOracleStale
	}
	redemption := lp.RedemptionValue(seat.LPShares, seat.SharePrice)
	seat.LPShares = fixedpoint.ZeroI128()
	seat.Frozen = true
	return redemption, nil
}

// EmitBadDebt implements spec §4.8 step 4: if equity is still negative
// after principal and LP liquidation, the shortfall is paid first from
// insurance; anything insurance cannot cover flows into the global
// crisis waterfall (spec §4.9). Returns the waterfall outcome, which is
// the zero value if no bad debt was generated or insurance absorbed it
// completely.
func EmitBadDebt(p *portfolio.Portfolio, fund *insurance.Fund, accums *crisis.Accums) crisis.Outcome {
	if p.Equity.Sign() >= 0 {
		return crisis.Outcome{}
	}
	badDebt := p.Equity.Abs()

	paid, uncovered := fund.PayBadDebt(badDebt)
	accums.SigmaInsurance = accums.SigmaInsurance.Sub(paid)

	if uncovered.IsZero() {
		return crisis.Outcome{}
	}
	return crisis.RunWaterfall(accums, fund, uncovered)
}

// Touch implements spec §4.8 step 5: update last_liquidation_ts after a
// completed liquidation pass (starts this user's next cooldown window).
func Touch(p *portfolio.Portfolio, nowSecs int64) {
	p.LastLiquidationTs = nowSecs
}
