package portfolio

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/percmarket/percolator/pkg/fixedpoint"
)

var alice = common.HexToAddress("0xA1")

const instrBTC = uint16(0)
const venueV1 = uint16(1)
const venueV2 = uint16(2)

// TestTrivialNetting is the literal spec §8 scenario 1.
func TestTrivialNetting(t *testing.T) {
	p := NewPortfolio(alice)
	p.Principal = fixedpoint.NewI128FromInt64(1_000_000 * 10)

	p.Exposures[ExposureKey{VenueIdx: venueV1, InstrIdx: instrBTC}] = 10
	p.Exposures[ExposureKey{VenueIdx: venueV2, InstrIdx: instrBTC}] = -10

	marks := MarkPrices{instrBTC: 1_000_000}
	params := Params{IMRBps: 500, MMRBps: 300}

	if err := p.Recompute(marks, params); err != nil {
		t.Fatal(err)
	}

	if p.NetExposure(instrBTC) != 0 {
		t.Fatalf("net exposure must be zero, got %d", p.NetExposure(instrBTC))
	}
	if !p.IM.IsZero() {
		t.Fatalf("im must be zero under perfect netting, got %s", p.IM)
	}
	if !p.MM.IsZero() {
		t.Fatalf("mm must be zero under perfect netting, got %s", p.MM)
	}
	if p.FreeCollateral.Cmp(p.Equity) != 0 {
		t.Fatalf("free_collateral must equal equity when im=0, got fc=%s equity=%s", p.FreeCollateral, p.Equity)
	}
}

func TestNonZeroNetExposureAccruesMargin(t *testing.T) {
	p := NewPortfolio(alice)
	p.Principal = fixedpoint.NewI128FromInt64(100_000 * 1_000_000)
	p.Exposures[ExposureKey{VenueIdx: venueV1, InstrIdx: instrBTC}] = 10 * fixedpoint.Scale
	p.Exposures[ExposureKey{VenueIdx: venueV2, InstrIdx: instrBTC}] = -4 * fixedpoint.Scale

	marks := MarkPrices{instrBTC: 50_000 * fixedpoint.Scale}
	params := Params{IMRBps: 500, MMRBps: 300}
	if err := p.Recompute(marks, params); err != nil {
		t.Fatal(err)
	}

	if p.NetExposure(instrBTC) != 6*fixedpoint.Scale {
		t.Fatalf("expected net exposure of 6, got %d", p.NetExposure(instrBTC)/fixedpoint.Scale)
	}
	if p.IM.IsZero() || p.MM.IsZero() {
		t.Fatalf("non-zero net exposure must accrue margin: im=%s mm=%s", p.IM, p.MM)
	}
	if p.MM.Cmp(p.IM) > 0 {
		t.Fatalf("mm must not exceed im when mmr<=imr: im=%s mm=%s", p.IM, p.MM)
	}
}

func TestIsLiquidatableAndPreLiq(t *testing.T) {
	p := NewPortfolio(alice)
	p.Equity = fixedpoint.NewI128FromInt64(-1)
	p.MM = fixedpoint.NewI128FromInt64(0)
	p.Health = p.Equity.Sub(p.MM)
	if !p.IsLiquidatable() {
		t.Fatalf("negative health must be liquidatable")
	}

	p.Equity = fixedpoint.NewI128FromInt64(50)
	p.MM = fixedpoint.NewI128FromInt64(40)
	p.Health = p.Equity.Sub(p.MM)
	if p.IsLiquidatable() {
		t.Fatalf("positive health must not be liquidatable")
	}
	if !p.IsPreLiquidatable(fixedpoint.NewI128FromInt64(20)) {
		t.Fatalf("health=10 < preliq_buffer=20 must be pre-liquidatable")
	}
}

func TestWouldBeLiquidatable(t *testing.T) {
	p := NewPortfolio(alice)
	p.Equity = fixedpoint.NewI128FromInt64(1500)
	p.MM = fixedpoint.NewI128FromInt64(1000)

	if p.WouldBeLiquidatable(fixedpoint.NewI128FromInt64(-400)) {
		t.Fatalf("withdrawing 400 from 500 free collateral should stay healthy")
	}
	if !p.WouldBeLiquidatable(fixedpoint.NewI128FromInt64(-600)) {
		t.Fatalf("withdrawing 600 from 500 free collateral should become liquidatable")
	}
}
