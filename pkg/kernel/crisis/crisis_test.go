package crisis

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/percmarket/percolator/pkg/fixedpoint"
	"github.com/percmarket/percolator/pkg/kernel/insurance"
	"github.com/percmarket/percolator/pkg/kernel/portfolio"
)

var bob = common.HexToAddress("0xB0B")

func half() fixedpoint.Q64 {
	return fixedpoint.Ratio(fixedpoint.NewI128FromInt64(1), fixedpoint.NewI128FromInt64(2))
}

func quarter() fixedpoint.Q64 {
	return fixedpoint.Ratio(fixedpoint.NewI128FromInt64(1), fixedpoint.NewI128FromInt64(4))
}

func TestMaterializeNoOpWhenSnapsCurrent(t *testing.T) {
	u := portfolio.NewPortfolio(bob)
	u.Principal = fixedpoint.NewI128FromInt64(1_000_000)
	a := NewAccums()

	MaterializeUser(u, a, DefaultMaterializeParams(0))

	if u.Principal.Int64() != 1_000_000 {
		t.Fatalf("no-op materialize must not touch principal, got %s", u.Principal)
	}
}

func TestMaterializeEquityHaircut50Percent(t *testing.T) {
	u := portfolio.NewPortfolio(bob)
	u.Principal = fixedpoint.NewI128FromInt64(1_000_000)
	a := NewAccums()
	a.EquityScale = half()

	MaterializeUser(u, a, DefaultMaterializeParams(0))

	got := u.Principal.Add(u.RealizedPnl)
	if got.Int64() != 500_000 {
		t.Fatalf("50%% haircut of 1,000,000 must leave 500,000 equity, got %s", got)
	}
	if u.EquityScaleSnap.Cmp(a.EquityScale) != 0 {
		t.Fatalf("snap must advance to the new global scale")
	}
}

func TestMaterializeWarmingBurn25Percent(t *testing.T) {
	u := portfolio.NewPortfolio(bob)
	u.WarmingPnl = fixedpoint.NewI128FromInt64(1_000_000)
	a := NewAccums()
	threeQuarters := fixedpoint.Q64One().Sub(quarter())
	a.WarmingScale = threeQuarters

	MaterializeUser(u, a, DefaultMaterializeParams(0))

	if u.WarmingPnl.Int64() != 750_000 {
		t.Fatalf("25%% warming burn of 1,000,000 must leave 750,000, got %s", u.WarmingPnl)
	}
}

func TestVestingHalfOfTau(t *testing.T) {
	u := portfolio.NewPortfolio(bob)
	u.WarmingPnl = fixedpoint.NewI128FromInt64(1_000_000)
	u.LastTouchSlot = 0
	a := NewAccums()

	MaterializeUser(u, a, MaterializeParams{NowSlot: 2250, TauSlots: 4500})

	if u.WarmingPnl.Int64() != 500_000 {
		t.Fatalf("half-tau vesting must leave 500,000 warming, got %s", u.WarmingPnl)
	}
	if u.RealizedPnl.Int64() != 500_000 {
		t.Fatalf("half-tau vesting must realize 500,000, got %s", u.RealizedPnl)
	}
}

func TestVestingFullAtTau(t *testing.T) {
	u := portfolio.NewPortfolio(bob)
	u.WarmingPnl = fixedpoint.NewI128FromInt64(1_000_000)
	u.LastTouchSlot = 0
	a := NewAccums()

	MaterializeUser(u, a, MaterializeParams{NowSlot: 4500, TauSlots: 4500})

	if !u.WarmingPnl.IsZero() {
		t.Fatalf("full vesting at dt=tau must leave zero warming, got %s", u.WarmingPnl)
	}
	if u.RealizedPnl.Int64() != 1_000_000 {
		t.Fatalf("full vesting at dt=tau must realize 1,000,000, got %s", u.RealizedPnl)
	}
}

func TestMaterializeIdempotent(t *testing.T) {
	u := portfolio.NewPortfolio(bob)
	u.Principal = fixedpoint.NewI128FromInt64(1_000_000)
	a := NewAccums()
	a.EquityScale = half()

	MaterializeUser(u, a, DefaultMaterializeParams(0))
	afterFirst := u.Principal.Add(u.RealizedPnl)

	MaterializeUser(u, a, DefaultMaterializeParams(0))
	afterSecond := u.Principal.Add(u.RealizedPnl)

	if afterFirst.Cmp(afterSecond) != 0 {
		t.Fatalf("second materialize against an unchanged global scale must be a no-op: %s vs %s", afterFirst, afterSecond)
	}
}

func TestBurnRealizedFirstPolicy(t *testing.T) {
	u := portfolio.NewPortfolio(bob)
	u.Principal = fixedpoint.NewI128FromInt64(1_000_000)
	u.RealizedPnl = fixedpoint.NewI128FromInt64(500_000)
	a := NewAccums()
	a.EquityScale = half()

	MaterializeUser(u, a, MaterializeParams{NowSlot: 0, TauSlots: 4500, BurnPrincipalFirst: false})

	if !u.RealizedPnl.IsZero() {
		t.Fatalf("realized-first policy must exhaust realized, got %s", u.RealizedPnl)
	}
	if u.Principal.Int64() != 750_000 {
		t.Fatalf("realized-first policy must leave principal at 750,000, got %s", u.Principal)
	}
}

func TestBurnPrincipalFirstPolicy(t *testing.T) {
	u := portfolio.NewPortfolio(bob)
	u.Principal = fixedpoint.NewI128FromInt64(1_000_000)
	u.RealizedPnl = fixedpoint.NewI128FromInt64(500_000)
	a := NewAccums()
	a.EquityScale = half()

	MaterializeUser(u, a, MaterializeParams{NowSlot: 0, TauSlots: 4500, BurnPrincipalFirst: true})

	if u.Principal.Int64() != 250_000 {
		t.Fatalf("principal-first policy must leave principal at 250,000, got %s", u.Principal)
	}
	if u.RealizedPnl.Int64() != 500_000 {
		t.Fatalf("principal-first policy must leave realized untouched at 500,000, got %s", u.RealizedPnl)
	}
}

func TestVestingSmallAmountsNoTruncation(t *testing.T) {
	u := portfolio.NewPortfolio(bob)
	u.WarmingPnl = fixedpoint.NewI128FromInt64(1000)
	u.LastTouchSlot = 0
	a := NewAccums()

	MaterializeUser(u, a, MaterializeParams{NowSlot: 100, TauSlots: 4500})

	if u.RealizedPnl.Int64() != 22 {
		t.Fatalf("Q64x64 vesting ratio must avoid truncating to zero, expected 22, got %s", u.RealizedPnl)
	}
	sum := u.WarmingPnl.Add(u.RealizedPnl)
	if sum.Int64() != 1000 {
		t.Fatalf("warming+realized must be conserved across a partial vest, got %s", sum)
	}
}

// TestCrisisWaterfall is the literal spec §8 scenario 5.
func TestCrisisWaterfall(t *testing.T) {
	a := NewAccums()
	a.SigmaWarming = fixedpoint.NewI128FromInt64(100)
	a.SigmaInsurance = fixedpoint.NewI128FromInt64(80)
	a.SigmaPrincipal = fixedpoint.NewI128FromInt64(1_000)

	fund := &insurance.Fund{Balance: fixedpoint.NewI128FromInt64(80)}

	out := RunWaterfall(a, fund, fixedpoint.NewI128FromInt64(250))

	if out.BurnedWarming.Int64() != 100 {
		t.Fatalf("expected burned_warming=100, got %s", out.BurnedWarming)
	}
	if out.InsuranceDraw.Int64() != 80 {
		t.Fatalf("expected insurance_draw=80, got %s", out.InsuranceDraw)
	}
	wantRatio := fixedpoint.Ratio(fixedpoint.NewI128FromInt64(70), fixedpoint.NewI128FromInt64(1000))
	if out.EquityHaircutRatio.Cmp(wantRatio) != 0 {
		t.Fatalf("expected equity_haircut_ratio=70/1000, got %s", out.EquityHaircutRatio)
	}
	if !out.IsSolvent {
		t.Fatalf("deficit must be fully absorbed: expected solvent outcome")
	}
	// equity_scale' = 1 - 70/1000, i.e. 0.93 up to Q64.64 rounding.
	wantScale := fixedpoint.Q64One().Sub(wantRatio)
	if a.EquityScale.Cmp(wantScale) != 0 {
		t.Fatalf("expected equity_scale'=1-0.07, got %s", a.EquityScale)
	}
}
