// Package portfolio implements the per-user ledger and net-exposure
// margin engine of spec §4.4, grounded on
// pkg/app/core/account/account.go and pkg/app/core/account/manager.go
// from the teacher repository (account struct shape, margin-ratio
// style helper methods) generalized from the teacher's single-venue
// per-instrument exposure model to the spec's
// (venue_idx, instr_idx) -> qty net-exposure model.
package portfolio

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/percmarket/percolator/pkg/fixedpoint"
	"github.com/percmarket/percolator/pkg/kernelerr"
)

// ExposureKey identifies one (venue, instrument) pair.
type ExposureKey struct {
	VenueIdx  uint16
	InstrIdx  uint16
}

// SeatKind distinguishes a Slab-LP (resting-order-book liquidity)
// bucket from an AMM-LP (pool share) seat; the two are liquidated
// differently in spec §4.8 steps 2 and 3.
type SeatKind uint8

const (
	SeatKindSlab SeatKind = iota
	SeatKindAMM
)

// LpSeat is one LP position a portfolio holds in a venue, per spec §3.
type LpSeat struct {
	Kind             SeatKind
	MatcherID        uint32
	ContextID        uint32
	LPShares         fixedpoint.I128
	ReservedBaseQ64  fixedpoint.Q64
	ReservedQuoteQ64 fixedpoint.Q64
	IM               fixedpoint.I128 // margin this seat currently contributes, for proportional reduction
	MM               fixedpoint.I128
	SharePrice       fixedpoint.Fixed // AMM-LP only: current redemption price
	OracleTs         int64            // AMM-LP only: last oracle timestamp observed at this venue
	Frozen           bool
}

// Portfolio is the per-user ledger described in spec §3.
type Portfolio struct {
	UserID common.Address

	Principal   fixedpoint.I128
	RealizedPnl fixedpoint.I128
	WarmingPnl  fixedpoint.I128 // unvested positive
	VestedPnl   fixedpoint.I128

	Equity         fixedpoint.I128
	IM             fixedpoint.I128 // u128 in spec, held non-negative here
	MM             fixedpoint.I128
	FreeCollateral fixedpoint.I128
	Health         fixedpoint.I128

	// Exposures: net signed qty per (venue, instrument). Exposures at a
	// single instrument across venues are summed for margin purposes
	// (net-exposure margin, the X3b capital-efficiency theorem).
	Exposures map[ExposureKey]fixedpoint.Fixed
	// EntryNotional tracks the notional paid/received to build the
	// current exposure at each key, for equity mark-to-market.
	EntryNotional map[ExposureKey]fixedpoint.I128
	FundingOffset map[ExposureKey]fixedpoint.I128

	LPSeats []LpSeat

	LastTouchSlot      uint64
	EquityScaleSnap    fixedpoint.Q64
	WarmingScaleSnap   fixedpoint.Q64
	LastEpochApplied   uint64
	LastLiquidationTs  int64
	CooldownSeconds    int64
}

// NewPortfolio constructs an empty portfolio owned by user, with scale
// snapshots initialized to 1.0 (the scales' initial value, per spec
// §4.9), as required before the portfolio can ever be lazily
// materialized against a crisis event.
func NewPortfolio(user common.Address) *Portfolio {
	return &Portfolio{
		UserID:           user,
		Principal:        fixedpoint.ZeroI128(),
		RealizedPnl:      fixedpoint.ZeroI128(),
		WarmingPnl:       fixedpoint.ZeroI128(),
		VestedPnl:        fixedpoint.ZeroI128(),
		Exposures:        make(map[ExposureKey]fixedpoint.Fixed),
		EntryNotional:    make(map[ExposureKey]fixedpoint.I128),
		FundingOffset:    make(map[ExposureKey]fixedpoint.I128),
		EquityScaleSnap:  fixedpoint.Q64One(),
		WarmingScaleSnap: fixedpoint.Q64One(),
	}
}

// NetExposure sums the signed exposure for one instrument across every
// venue that carries it.
func (p *Portfolio) NetExposure(instrIdx uint16) fixedpoint.Fixed {
	var net fixedpoint.Fixed
	for k, qty := range p.Exposures {
		if k.InstrIdx == instrIdx {
			net = fixedpoint.SaturatingAdd(net, qty)
		}
	}
	return net
}

// instruments returns the distinct instrument indices this portfolio
// currently carries exposure in.
func (p *Portfolio) instruments() []uint16 {
	seen := make(map[uint16]bool)
	var out []uint16
	for k := range p.Exposures {
		if !seen[k.InstrIdx] {
			seen[k.InstrIdx] = true
			out = append(out, k.InstrIdx)
		}
	}
	return out
}

// MarkPrices maps instrument index to current mark price (1e6 scale).
type MarkPrices map[uint16]fixedpoint.Fixed

// Params carries the registry-wide margin parameters needed to
// recompute a portfolio.
type Params struct {
	IMRBps int64
	MMRBps int64
}

// Recompute applies the formulas of spec §4.4:
//
//	equity = principal + realized + warming + vested + Σ qty_net·mark − Σ entry_notional
//	im     = imr_bps · Σ |qty_net| · mark / 10000
//	mm     = mmr_bps · Σ |qty_net| · mark / 10000
//	health = equity − mm
//	free_collateral = equity − im
//
// Net-exposure margin (X3b): an instrument whose net exposure across
// venues is zero contributes zero to im and mm, because only the net
// per-instrument quantity (not the per-venue gross) feeds the
// |qty_net| sum below.
func (p *Portfolio) Recompute(marks MarkPrices, params Params) error {
	equity := p.Principal.Add(p.RealizedPnl).Add(p.WarmingPnl).Add(p.VestedPnl)
	var imAccum, mmAccum fixedpoint.I128

	for _, instr := range p.instruments() {
		net := p.NetExposure(instr)
		mark, ok := marks[instr]
		if !ok {
			continue
		}
		markValue, err := fixedpoint.MulDiv(net, mark, fixedpoint.Scale, fixedpoint.RoundFloor)
		if err != nil {
			return err
		}
		equity = equity.Add(fixedpoint.NewI128FromInt64(int64(markValue)))

		absNet := net
		if absNet < 0 {
			absNet = -absNet
		}
		notionalAtMark, err := fixedpoint.MulDiv(absNet, mark, fixedpoint.Scale, fixedpoint.RoundFloor)
		if err != nil {
			return err
		}
		imAccum = imAccum.Add(scaleBps(notionalAtMark, params.IMRBps))
		mmAccum = mmAccum.Add(scaleBps(notionalAtMark, params.MMRBps))
	}

	for k, entryNotional := range p.EntryNotional {
		_ = k
		equity = equity.Sub(entryNotional)
	}

	p.Equity = equity
	p.IM = imAccum
	p.MM = mmAccum
	p.Health = equity.Sub(mmAccum)
	p.FreeCollateral = equity.Sub(imAccum)
	return nil
}

func scaleBps(notional fixedpoint.Fixed, bps int64) fixedpoint.I128 {
	n := fixedpoint.NewI128FromInt64(int64(notional))
	return n.MulDivFloor(fixedpoint.NewI128FromInt64(bps), fixedpoint.NewI128FromInt64(10_000))
}

// IsLiquidatable implements the verified predicate
// equity*10000 < Σ|qty|*mark*mmr_bps, used for all liquidation and
// withdraw guards (spec §4.4). It is computed directly from mm rather
// than recomputing Σ|qty|*mark so that a single Recompute() is the
// sole source of truth.
func (p *Portfolio) IsLiquidatable() bool {
	return p.Health.Sign() < 0
}

// IsPreLiquidatable implements 0 <= health < preliq_buffer.
func (p *Portfolio) IsPreLiquidatable(preliqBuffer fixedpoint.I128) bool {
	return p.Health.Sign() >= 0 && p.Health.Cmp(preliqBuffer) < 0
}

// WouldBeLiquidatable reports whether applying delta to equity (e.g. a
// prospective withdraw) would leave the portfolio with health < 0,
// without mutating the portfolio (spec §4.11's would_be_liquidatable).
func (p *Portfolio) WouldBeLiquidatable(equityDelta fixedpoint.I128) bool {
	newEquity := p.Equity.Add(equityDelta)
	newHealth := newEquity.Sub(p.MM)
	return newHealth.Sign() < 0
}

// CheckOwner returns ErrUnauthorized unless caller is the portfolio's
// owner, matching the teacher's "owning program is the caller" rule
// generalized to a direct address comparison.
func (p *Portfolio) CheckOwner(caller common.Address) error {
	if caller != p.UserID {
		return kernelerr.ErrUnauthorized
	}
	return nil
}
