package lp

import (
	"testing"

	"github.com/percmarket/percolator/pkg/fixedpoint"
)

func TestApplySharesDeltaNeverNegative(t *testing.T) {
	shares := fixedpoint.NewI128FromInt64(100)
	if _, err := ApplySharesDelta(shares, fixedpoint.NewI128FromInt64(-150)); err == nil {
		t.Fatalf("expected rejection when delta would drive shares negative")
	}
	next, err := ApplySharesDelta(shares, fixedpoint.NewI128FromInt64(-100))
	if err != nil {
		t.Fatal(err)
	}
	if !next.IsZero() {
		t.Fatalf("expected zero shares remaining, got %s", next)
	}
}

func TestRedemptionValue(t *testing.T) {
	shares := fixedpoint.NewI128FromInt64(1000)
	got := RedemptionValue(shares, 2*fixedpoint.Scale)
	if got.Int64() != 2000 {
		t.Fatalf("1000 shares @ price 2.0 should redeem to 2000, got %s", got)
	}
}

func TestProportionalMarginReductionNeverInflates(t *testing.T) {
	im := fixedpoint.NewI128FromInt64(1000)
	reduced := ProportionalMarginReduction(im, RatioScale/2)
	if reduced.Cmp(im) >= 0 {
		t.Fatalf("reduction must shrink im, got %s from %s", reduced, im)
	}
	full := ProportionalMarginReduction(im, RatioScale)
	if full.Cmp(im) != 0 {
		t.Fatalf("ratio=1.0 must leave im unchanged, got %s", full)
	}
}
