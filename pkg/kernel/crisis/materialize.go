package crisis

import (
	"github.com/percmarket/percolator/pkg/fixedpoint"
	"github.com/percmarket/percolator/pkg/kernel/portfolio"
)

// MaterializeParams mirrors original_source's MaterializeParams: the
// current slot, the warming-to-realized vesting window in slots
// (tau_slots, default 4500 == 30 minutes at a 400ms slot), and the
// burn-order policy for equity-scale haircuts.
type MaterializeParams struct {
	NowSlot           uint64
	TauSlots          uint64
	BurnPrincipalFirst bool
}

// DefaultMaterializeParams matches the Rust Default impl.
func DefaultMaterializeParams(nowSlot uint64) MaterializeParams {
	return MaterializeParams{
		NowSlot:            nowSlot,
		TauSlots:           4500,
		BurnPrincipalFirst: false,
	}
}

// MaterializeUser lazily catches a portfolio up to the registry's
// current global scales and vesting clock, per spec §4.10. It must be
// called before any operation reads a portfolio's equity so that no
// user can dodge a crisis haircut simply by staying untouched.
func MaterializeUser(u *portfolio.Portfolio, a *Accums, p MaterializeParams) {
	if u.EquityScaleSnap.Cmp(a.EquityScale) != 0 {
		applyEquityScaleDelta(u, a, p)
	}
	if u.WarmingScaleSnap.Cmp(a.WarmingScale) != 0 {
		applyWarmingScaleDelta(u, a, p)
	}
	vestWarmingToRealized(u, a, p)
	u.LastTouchSlot = p.NowSlot
}

// applyEquityScaleDelta burns principal+realized down to the global
// equity_scale's new level. scale_delta = min(1, global/snap): a
// global scale can only ever shrink (monotone non-increasing, spec
// §4.9), so this never inflates a user's equity. The haircut burns
// realized-first or principal-first per policy, and never touches
// Σ_principal/Σ_realized -- those only move on deposit/withdraw/vest.
func applyEquityScaleDelta(u *portfolio.Portfolio, a *Accums, p MaterializeParams) {
	scaleDelta := a.EquityScale
	if u.EquityScaleSnap.Cmp(fixedpoint.Q64Zero()) != 0 {
		ratio := a.EquityScale.Div(u.EquityScaleSnap)
		scaleDelta = minQ64(fixedpoint.Q64One(), ratio)
	}

	preEquity := u.Principal.Add(u.RealizedPnl)
	postEquity := scaleDelta.MulI128(preEquity)
	burn := preEquity.Sub(postEquity)

	if burn.Sign() > 0 {
		if p.BurnPrincipalFirst {
			burnPrincipalThenRealized(u, burn)
		} else {
			burnRealizedThenPrincipal(u, burn)
		}
	}

	u.EquityScaleSnap = a.EquityScale
	u.LastEpochApplied = a.Epoch
}

// applyWarmingScaleDelta is the warming-only analogue of
// applyEquityScaleDelta: it burns warming_pnl down to the new global
// warming_scale level and never touches Σ_warming.
func applyWarmingScaleDelta(u *portfolio.Portfolio, a *Accums, p MaterializeParams) {
	_ = p
	scaleDelta := a.WarmingScale
	if u.WarmingScaleSnap.Cmp(fixedpoint.Q64Zero()) != 0 {
		ratio := a.WarmingScale.Div(u.WarmingScaleSnap)
		scaleDelta = minQ64(fixedpoint.Q64One(), ratio)
	}

	preWarming := u.WarmingPnl
	postWarming := scaleDelta.MulI128(preWarming)
	burn := preWarming.Sub(postWarming)
	if burn.Sign() > 0 {
		u.WarmingPnl = u.WarmingPnl.Sub(burn)
	}

	u.WarmingScaleSnap = a.WarmingScale
}

// vestWarmingToRealized linearly vests warming_pnl into realized_pnl
// over tau_slots, using a Q64.64 ratio (dt/tau) to avoid truncating
// small amounts to zero the way a naive integer division would. This
// step DOES move Σ_warming -> Σ_realized, unlike the scale-delta steps
// above.
func vestWarmingToRealized(u *portfolio.Portfolio, a *Accums, p MaterializeParams) {
	if u.WarmingPnl.Sign() <= 0 {
		return
	}
	if p.NowSlot <= u.LastTouchSlot {
		return
	}
	dt := p.NowSlot - u.LastTouchSlot

	var vested fixedpoint.I128
	if dt >= p.TauSlots {
		vested = u.WarmingPnl
	} else {
		ratio := fixedpoint.Ratio(fixedpoint.NewI128FromInt64(int64(dt)), fixedpoint.NewI128FromInt64(int64(p.TauSlots)))
		vested = ratio.MulI128(u.WarmingPnl)
	}
	if vested.Sign() <= 0 {
		return
	}

	u.WarmingPnl = u.WarmingPnl.Sub(vested)
	u.RealizedPnl = u.RealizedPnl.Add(vested)

	a.SigmaWarming = a.SigmaWarming.Sub(vested)
	a.SigmaRealized = a.SigmaRealized.Add(vested)
}

func burnRealizedThenPrincipal(u *portfolio.Portfolio, burn fixedpoint.I128) {
	if u.RealizedPnl.Cmp(burn) >= 0 {
		u.RealizedPnl = u.RealizedPnl.Sub(burn)
		return
	}
	remainder := burn.Sub(u.RealizedPnl)
	u.RealizedPnl = fixedpoint.ZeroI128()
	u.Principal = u.Principal.Sub(remainder)
}

func burnPrincipalThenRealized(u *portfolio.Portfolio, burn fixedpoint.I128) {
	if u.Principal.Cmp(burn) >= 0 {
		u.Principal = u.Principal.Sub(burn)
		return
	}
	remainder := burn.Sub(u.Principal)
	u.Principal = fixedpoint.ZeroI128()
	u.RealizedPnl = u.RealizedPnl.Sub(remainder)
}

func minQ64(a, b fixedpoint.Q64) fixedpoint.Q64 {
	if a.LessOrEqual(b) {
		return a
	}
	return b
}
