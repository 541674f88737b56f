package fixedpoint

import "testing"

func TestSaturatingAddClamps(t *testing.T) {
	got := SaturatingAdd(Fixed(1<<62), Fixed(1<<62))
	if got != Fixed(1<<63-1) {
		t.Fatalf("expected clamp to MaxInt64-ish, got %d", got)
	}
}

func TestCheckedMulOverflow(t *testing.T) {
	_, err := CheckedMul(Fixed(1<<40), Fixed(1<<40))
	if err == nil {
		t.Fatalf("expected overflow error")
	}
}

func TestCheckedDivFloorVsCeil(t *testing.T) {
	floor, err := CheckedDiv(Fixed(7), Fixed(2), RoundFloor)
	if err != nil || floor != 3 {
		t.Fatalf("floor(7/2) = %d, err=%v", floor, err)
	}
	ceil, err := CheckedDiv(Fixed(7), Fixed(2), RoundCeil)
	if err != nil || ceil != 4 {
		t.Fatalf("ceil(7/2) = %d, err=%v", ceil, err)
	}
}

func TestMulDivNoOverflow(t *testing.T) {
	// a*b alone would overflow int64, but a*b/d should not.
	got, err := MulDiv(Fixed(4_000_000_000), Fixed(4_000_000_000), Fixed(1_000_000), RoundFloor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := Fixed(16_000_000_000_000)
	if got != want {
		t.Fatalf("got %d want %d", got, want)
	}
}

func TestVWAPAccumulator(t *testing.T) {
	var v VWAPAccumulator
	if err := v.Add(4, 101*Scale); err != nil {
		t.Fatal(err)
	}
	if err := v.Add(2, 100*Scale); err != nil {
		t.Fatal(err)
	}
	// (4*101 + 2*100) / 6 = 100.666...
	vwap := v.VWAP()
	if vwap < 100*Scale || vwap > 101*Scale {
		t.Fatalf("vwap %d out of [min,max] fill price range", vwap)
	}
}

func TestQ32ClampAndMul(t *testing.T) {
	half := Q32FromFloat(0.5)
	quarter := half.Mul(half)
	if quarter.Float64() < 0.24 || quarter.Float64() > 0.26 {
		t.Fatalf("0.5*0.5 = %f, want ~0.25", quarter.Float64())
	}
	over := Q32FromFloat(1.5).Clamp01()
	if over != q32One {
		t.Fatalf("clamp01(1.5) = %v, want 1.0", over)
	}
}

func TestQ64RatioAndMul(t *testing.T) {
	r := Ratio(NewI128FromInt64(93), NewI128FromInt64(100))
	// Ratio floors to just below 0.93, so floor(r*1000) is 929.
	scaled := r.MulI128(NewI128FromInt64(1000))
	if scaled.Int64() != 929 {
		t.Fatalf("floor(0.93 * 1000) = %d, want 929", scaled.Int64())
	}
}

func TestQ64MonotoneShrink(t *testing.T) {
	scale := Q64One()
	ratio := Ratio(NewI128FromInt64(93), NewI128FromInt64(100))
	next := scale.Mul(ratio)
	if !next.LessOrEqual(scale) {
		t.Fatalf("scale must shrink after multiplying by a sub-1.0 ratio")
	}
}
