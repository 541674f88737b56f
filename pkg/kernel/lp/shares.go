// Package lp implements LP-seat share bookkeeping for both AMM and
// order-book ("slab") venues, per spec §3's LpSeat entity and §8's
// "LP shares closed" property: apply any sequence of lp_shares_delta
// through a verified apply_shares_delta, and the result never
// overflows and never goes negative.
package lp

import (
	"github.com/percmarket/percolator/pkg/fixedpoint"
	"github.com/percmarket/percolator/pkg/kernelerr"
)

// ApplySharesDelta applies a signed delta to a shares balance, checked
// so that the result never goes negative (redeeming more shares than
// held is rejected, not clamped) and never silently wraps.
func ApplySharesDelta(shares fixedpoint.I128, delta fixedpoint.I128) (fixedpoint.I128, error) {
	next := shares.Add(delta)
	if next.Sign() < 0 {
		return fixedpoint.ZeroI128(), kernelerr.ErrInsufficientFunds
	}
	return next, nil
}

// RedemptionValue computes shares * sharePrice / 1e6 via a checked
// multiply-then-divide, matching the AMM-LP liquidation formula of
// spec §4.8 step 3 (`redemption = shares * share_price / 1e6`).
func RedemptionValue(shares fixedpoint.I128, sharePrice fixedpoint.Fixed) fixedpoint.I128 {
	return shares.MulDivFloor(fixedpoint.NewI128FromInt64(int64(sharePrice)), fixedpoint.NewI128FromInt64(fixedpoint.Scale))
}

// ProportionalMarginReduction scales im/mm down by remaining_ratio
// (spec §4.8 step 2: new_im = im * remaining_ratio / 1e6), used when a
// Slab-LP bucket is partially cancelled during liquidation.
//
// RatioScale is the 1e6 fixed-point denominator for the
// remaining-ratio argument.
const RatioScale = 1_000_000

func ProportionalMarginReduction(im fixedpoint.I128, remainingRatio int64) fixedpoint.I128 {
	return im.MulDivFloor(fixedpoint.NewI128FromInt64(remainingRatio), fixedpoint.NewI128FromInt64(RatioScale))
}
