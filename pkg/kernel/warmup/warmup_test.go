package warmup

import (
	"testing"

	"github.com/percmarket/percolator/pkg/fixedpoint"
)

func TestDrainSBounds(t *testing.T) {
	d := DrainS(q32(70), q32(100))
	if d.Float64() < 0 || d.Float64() > 1 {
		t.Fatalf("drain out of [0,1]: %f", d.Float64())
	}
	if d.Float64() < 0.29 || d.Float64() > 0.31 {
		t.Fatalf("drain(70/100) = %f, want ~0.30", d.Float64())
	}
}

func TestDrainSNoReference(t *testing.T) {
	if DrainS(q32(50), 0) != 0 {
		t.Fatalf("drain with zero reference must be 0")
	}
}

func TestSmoothstepMonotone(t *testing.T) {
	prev := Q(0)
	for i := 0; i <= 10; i++ {
		r := fixedpointFromFraction(i, 10)
		cur := Smoothstep(r)
		if cur < prev {
			t.Fatalf("smoothstep not monotone at r=%d/10: prev=%f cur=%f", i, prev.Float64(), cur.Float64())
		}
		prev = cur
	}
}

func fixedpointFromFraction(num, den int) Q {
	return qdiv(q32(int64(num)), q32(int64(den)))
}

func TestT90HysteresisBoundsSpeedup(t *testing.T) {
	cfg := DefaultConfig()
	lastT90 := q32(18000) // heavily braked
	// Even if stress instantly vanishes (s*=0 => target=t90_fast=1800s),
	// hysteresis caps how much faster t90 can move in one step.
	got := T90FromS(lastT90, 0, cfg)
	downCap := lastT90.Mul(qOne().Sub(cfg.Hysteresis))
	if got < downCap {
		t.Fatalf("t90 dropped faster than hysteresis allows: got=%f cap=%f", got.Float64(), downCap.Float64())
	}
}

func TestUnlockedFracMonotoneNonDecreasing(t *testing.T) {
	cfg := DefaultConfig()
	st := &State{UnlockedFrac: q32(0)}
	prev := st.UnlockedFrac
	for i := 0; i < 50; i++ {
		Step(st, cfg, q32(1000), false, false)
		if st.UnlockedFrac < prev {
			t.Fatalf("unlocked_frac decreased at step %d: prev=%f cur=%f", i, prev.Float64(), st.UnlockedFrac.Float64())
		}
		if st.UnlockedFrac > qOne() {
			t.Fatalf("unlocked_frac exceeded 1.0: %f", st.UnlockedFrac.Float64())
		}
		prev = st.UnlockedFrac
	}
}

// TestWarmupFreezeDuringCrisis is the literal spec §8 scenario 4.
func TestWarmupFreezeDuringCrisis(t *testing.T) {
	cfg := DefaultConfig()
	st := &State{
		DEma1h:       q32(100),
		DEma5m:       q32(100),
		SEma1h:       fixedpoint.Q32FromFloat(0.3),
		SEma5m:       fixedpoint.Q32FromFloat(0.3),
		UnlockedFrac: fixedpoint.Q32FromFloat(0.6),
	}
	before := st.UnlockedFrac

	// The smoothed drains already stand at s*≈0.3, past freeze_s=0.25;
	// d_now = 0.7 * ema_1h keeps the raw drain at ~30% so the ratchet
	// holds s* there, and an armed tripwire makes the freeze fire.
	dNow := q32(70)
	Step(st, cfg, dNow, true, false)

	if st.UnlockedFrac != before {
		t.Fatalf("freeze must leave unlocked_frac unchanged: before=%f after=%f", before.Float64(), st.UnlockedFrac.Float64())
	}

	// Once deposits return to parity with the EMA and tripwires clear,
	// unlocked_frac must climb back toward 1 monotonically.
	for i := 0; i < 20; i++ {
		Step(st, cfg, st.DEma1h, false, false)
	}
	if st.UnlockedFrac <= before {
		t.Fatalf("unlocked_frac must climb back up once stress clears: before=%f after=%f", before.Float64(), st.UnlockedFrac.Float64())
	}
}
