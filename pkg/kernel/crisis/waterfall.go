package crisis

import (
	"github.com/percmarket/percolator/pkg/fixedpoint"
	"github.com/percmarket/percolator/pkg/kernel/insurance"
)

// Outcome reports what a single RunWaterfall call did, for event
// logging and the CLI's crisis-report command.
type Outcome struct {
	Deficit            fixedpoint.I128
	BurnedWarming      fixedpoint.I128
	InsuranceDraw      fixedpoint.I128
	EquityHaircutRatio fixedpoint.Q64
	IsSolvent          bool
	EpochAfter         uint64
}

// RunWaterfall applies spec §4.9's loss waterfall to an aggregate bad
// debt that could not be assigned to the liquidated account alone:
// burn the global warming pool first, then draw the insurance fund,
// and only then haircut every account's equity via a monotone-shrinking
// global equity_scale. Each step only ever reduces what is owed; the
// fund never goes negative and equity_scale never increases.
func RunWaterfall(a *Accums, fund *insurance.Fund, deficit fixedpoint.I128) Outcome {
	out := Outcome{Deficit: deficit}
	remaining := deficit

	burn1 := minI128(remaining, a.SigmaWarming)
	if burn1.Sign() > 0 {
		warmingBefore := a.SigmaWarming
		a.SigmaWarming = a.SigmaWarming.Sub(burn1)
		a.WarmingScale = a.WarmingScale.Mul(fixedpoint.Ratio(a.SigmaWarming, warmingBefore))
		remaining = remaining.Sub(burn1)
	}
	out.BurnedWarming = burn1

	draw, _ := fund.PayBadDebt(remaining)
	a.SigmaInsurance = a.SigmaInsurance.Sub(draw)
	remaining = remaining.Sub(draw)
	out.InsuranceDraw = draw

	equityBase := a.SigmaPrincipal.Add(a.SigmaRealized)
	haircutRatio := fixedpoint.Q64Zero()
	if remaining.Sign() > 0 && equityBase.Sign() > 0 {
		haircutRatio = fixedpoint.Ratio(remaining, equityBase)
		if haircutRatio.Cmp(fixedpoint.Q64One()) > 0 {
			haircutRatio = fixedpoint.Q64One()
		}
		retained := fixedpoint.Q64One().Sub(haircutRatio)
		a.EquityScale = a.EquityScale.Mul(retained)

		burnedPrincipal := a.SigmaPrincipal.Sub(retained.MulI128(a.SigmaPrincipal))
		burnedRealized := a.SigmaRealized.Sub(retained.MulI128(a.SigmaRealized))
		a.SigmaPrincipal = a.SigmaPrincipal.Sub(burnedPrincipal)
		a.SigmaRealized = a.SigmaRealized.Sub(burnedRealized)
		remaining = remaining.Sub(burnedPrincipal.Add(burnedRealized))
	}
	out.EquityHaircutRatio = haircutRatio

	a.Epoch++
	out.EpochAfter = a.Epoch
	out.IsSolvent = remaining.Sign() <= 0

	return out
}

func minI128(a, b fixedpoint.I128) fixedpoint.I128 {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}

