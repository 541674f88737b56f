// Package liquidation implements the liquidation planner and executor
// of spec §4.8, built directly from spec.md's own algorithm description
// (principal liquidation via the executor in reduce-only mode, then
// Slab-LP proportional margin reduction, then AMM-LP redemption, then
// bad-debt emission to insurance) in the teacher's small-struct,
// plain-method style (pkg/app/core/account/manager.go).
package liquidation

import (
	"sort"

	"github.com/percmarket/percolator/pkg/fixedpoint"
	"github.com/percmarket/percolator/pkg/kernel/orderbook"
	"github.com/percmarket/percolator/pkg/kernel/portfolio"
)

// Mode is the liquidation mode a portfolio currently qualifies for.
type Mode int

const (
	ModeNone Mode = iota
	ModePreLiquidation
	ModeHardLiquidation
)

// Params carries the registry-wide liquidation configuration.
type Params struct {
	PreliqBuffer      fixedpoint.I128
	PreliqBandBps     int64
	LiqBandBps        int64
	OracleTolBps      int64
	RouterCapPerSlab  fixedpoint.Fixed
	CooldownSeconds   int64
}

// DetermineMode implements spec §4.8's mode split: PreLiquidation for
// 0 <= health < preliq_buffer (subject to a per-user cooldown),
// HardLiquidation for health < 0 (no cooldown), ModeNone otherwise.
func DetermineMode(p *portfolio.Portfolio, params Params, nowSecs int64) Mode {
	if p.IsLiquidatable() {
		return ModeHardLiquidation
	}
	if p.IsPreLiquidatable(params.PreliqBuffer) {
		if nowSecs-p.LastLiquidationTs < params.CooldownSeconds {
			return ModeNone
		}
		return ModePreLiquidation
	}
	return ModeNone
}

// CalculateRemainingDeficit returns max(0, mm - equity): the shortfall
// principal liquidation (and, if needed, LP liquidation) must close
// before the portfolio is no longer underwater.
func CalculateRemainingDeficit(p *portfolio.Portfolio) fixedpoint.I128 {
	deficit := p.MM.Sub(p.Equity)
	if deficit.Sign() < 0 {
		return fixedpoint.ZeroI128()
	}
	return deficit
}

// VenueQuote is the planner's view of one venue's current market: its
// mark price, the oracle's reference price, and the resting book's
// absolute-best spread, used to rank candidate venues.
type VenueQuote struct {
	VenueID    uint32
	InstrIdx   uint16
	MarkPx     fixedpoint.Fixed
	OraclePx   fixedpoint.Fixed
	SpreadBps  int64
}

// oracleAligned reports whether a venue's mark price is within
// oracle_tol_bps of the oracle reference price (spec §4.8 planner
// constraint (a)).
func oracleAligned(q VenueQuote, toleranceBps int64) bool {
	if q.OraclePx == 0 {
		return false
	}
	diff := q.MarkPx - q.OraclePx
	if diff < 0 {
		diff = -diff
	}
	bps, err := fixedpoint.MulDiv(diff, 10_000, q.OraclePx, fixedpoint.RoundFloor)
	if err != nil {
		return false
	}
	return int64(bps) <= toleranceBps
}

// Split is one reduce-only leg the planner proposes for the executor.
type Split struct {
	VenueID  uint32
	InstrIdx uint16
	Side     orderbook.Side
	Qty      fixedpoint.Fixed
	LimitPx  fixedpoint.Fixed
}

// PlanPrincipalLiquidation builds a sequence of reduce-only splits that
// together close up to |net exposure| at each instrument the portfolio
// is exposed at across venue quotes, per spec §4.8's planner
// constraints: skip oracle-misaligned venues, cap quantity per venue at
// router_cap_per_slab, never increase |exposure|, and prefer the venue
// with the larger absolute exposure and the tighter spread first.
func PlanPrincipalLiquidation(p *portfolio.Portfolio, quotes []VenueQuote, params Params) []Split {
	byInstr := make(map[uint16][]VenueQuote)
	for _, q := range quotes {
		if !oracleAligned(q, params.OracleTolBps) {
			continue
		}
		byInstr[q.InstrIdx] = append(byInstr[q.InstrIdx], q)
	}

	var splits []Split
	for instrIdx, candidates := range byInstr {
		exposureByVenue := venueExposures(p, instrIdx)
		if len(exposureByVenue) == 0 {
			continue
		}

		sort.Slice(candidates, func(i, j int) bool {
			qi, qj := candidates[i], candidates[j]
			ei := abs(exposureByVenue[qi.VenueID])
			ej := abs(exposureByVenue[qj.VenueID])
			if ei != ej {
				return ei > ej
			}
			return qi.SpreadBps < qj.SpreadBps
		})

		for _, q := range candidates {
			exposure, ok := exposureByVenue[q.VenueID]
			if !ok || exposure == 0 {
				continue
			}
			qty := abs(exposure)
			if params.RouterCapPerSlab > 0 && qty > params.RouterCapPerSlab {
				qty = params.RouterCapPerSlab
			}
			side := orderbook.Sell // closing a long means selling
			if exposure < 0 {
				side = orderbook.Buy // closing a short means buying
			}
			splits = append(splits, Split{
				VenueID:  q.VenueID,
				InstrIdx: instrIdx,
				Side:     side,
				Qty:      qty,
				LimitPx:  bandedLimitPrice(q.MarkPx, side, params.LiqBandBps),
			})
		}
	}
	return splits
}

// bandedLimitPrice widens the limit price by band_bps in the direction
// that guarantees the reduce-only order can still cross, matching the
// planner's "liq_band_bps"/"preliq_band_bps" tolerance.
func bandedLimitPrice(mark fixedpoint.Fixed, side orderbook.Side, bandBps int64) fixedpoint.Fixed {
	adj, err := fixedpoint.MulDiv(mark, fixedpoint.Fixed(bandBps), 10_000, fixedpoint.RoundFloor)
	if err != nil {
		return mark
	}
	if side == orderbook.Sell {
		return mark - adj
	}
	return mark + adj
}

func venueExposures(p *portfolio.Portfolio, instrIdx uint16) map[uint32]fixedpoint.Fixed {
	out := make(map[uint32]fixedpoint.Fixed)
	for k, qty := range p.Exposures {
		if k.InstrIdx == instrIdx && qty != 0 {
			out[uint32(k.VenueIdx)] = qty
		}
	}
	return out
}

func abs(f fixedpoint.Fixed) fixedpoint.Fixed {
	if f < 0 {
		return -f
	}
	return f
}
