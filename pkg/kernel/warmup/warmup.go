// Package warmup implements the adaptive PnL-unlock throttle of spec
// §4.6, ported field-for-field and formula-for-formula from
// original_source's crates/model_safety/src/adaptive_warmup.rs (the
// authoritative reference for this component; spec.md itself only
// sketches the update in English). All arithmetic is Q32.32 via
// fixedpoint.Q32.
package warmup

import "github.com/percmarket/percolator/pkg/fixedpoint"

type Q = fixedpoint.Q32

func q32(x int64) Q { return Q(x) << 32 }

func qOne() Q { return q32(1) }

// qdiv divides a/b in Q32.32, saturating to 2^61 (raw) instead of
// dividing by zero, matching the original's saturate-on-zero-divisor
// policy (this kernel never hits b==0 on the hot path since t90 and
// s_max are config constants, but the saturation keeps the function
// total).
func qdiv(a, b Q) Q {
	if b == 0 {
		return Q(int64(1)<<62) / 2
	}
	return a.Div(b)
}

// Config mirrors AdaptiveWarmupConfig.
type Config struct {
	T90FastSecs Q
	SMax        Q
	MMax        Q
	Hysteresis  Q
	W1h         Q
	W5m         Q
	SlotSecs    Q
	Ln10        Q
	AlphaD1h    Q
	AlphaD5m    Q
	AlphaSSlow  Q
	AlphaSFast  Q
	FreezeS     Q
}

// DefaultConfig mirrors AdaptiveWarmupConfig::default().
func DefaultConfig() Config {
	return Config{
		T90FastSecs: q32(30 * 60),
		SMax:        qdiv(q32(3), q32(10)),
		MMax:        q32(10),
		Hysteresis:  qdiv(q32(3), q32(10)),
		W1h:         qdiv(q32(3), q32(5)),
		W5m:         qdiv(q32(2), q32(5)),
		SlotSecs:    qdiv(q32(4), q32(10)),
		Ln10:        fixedpoint.Q32FromFloat(2.302585092994046), // ln(10)
		AlphaD1h:    qdiv(q32(1), q32(9000)),
		AlphaD5m:    qdiv(q32(1), q32(750)),
		AlphaSSlow:  qdiv(q32(1), q32(1000)),
		AlphaSFast:  qdiv(q32(1), q32(100)),
		FreezeS:     qdiv(q32(1), q32(4)),
	}
}

// scaleToQ32 returns q unchanged. Nothing in this package calls it;
// DefaultConfig builds Ln10 with fixedpoint.Q32FromFloat.
func scaleToQ32(q Q) Q { return q }

// State mirrors AdaptiveWarmupState.
type State struct {
	DEma1h       Q
	DEma5m       Q
	SEma1h       Q
	SEma5m       Q
	LastT90Secs  Q
	UnlockedFrac Q
}

// EMAUpdate: ema' = ema + alpha*(sample-ema).
func EMAUpdate(ema, sample, alpha Q) Q {
	delta := sample.Sub(ema)
	return ema.Add(alpha.Mul(delta))
}

// DrainS: s = max(0, 1 - d_now/d_ref).
func DrainS(dNow, dRef Q) Q {
	if dRef <= 0 {
		return 0
	}
	ratio := qdiv(dNow, dRef)
	s := qOne().Sub(ratio)
	if s > 0 {
		return s.Clamp01()
	}
	return 0
}

// Smoothstep: r^2 * (3 - 2r), monotone on [0,1].
func Smoothstep(r Q) Q {
	r = r.Clamp01()
	r2 := r.Mul(r)
	three := q32(3)
	two := q32(2)
	return r2.Mul(three.Sub(two.Mul(r)))
}

// T90FromS maps s* to t90 with hysteresis (only this much faster per
// step than the previous t90).
func T90FromS(lastT90, sStar Q, cfg Config) Q {
	r := qdiv(sStar, cfg.SMax).Clamp01()
	curve := Smoothstep(r)
	mMinus1 := cfg.MMax.Sub(qOne())
	m := qOne().Add(mMinus1.Mul(curve))
	target := cfg.T90FastSecs.Mul(m)

	downCap := lastT90.Mul(qOne().Sub(cfg.Hysteresis))
	if target < downCap {
		return downCap
	}
	return target
}

// expNegApprox computes exp(-x) via the clamped Taylor series used by
// the original, valid for x in [0, 1]; callers split steps >0.5 in two
// so the approximation stays accurate (see UnlockedUpdate).
func expNegApprox(x Q) Q {
	if x <= 0 {
		return qOne()
	}
	if x >= q32(1) {
		return qdiv(q32(1), q32(3)) // ~exp(-1) ≈ 0.368
	}
	one := qOne()
	x2 := x.Mul(x)
	x3 := x2.Mul(x)
	half := qdiv(q32(1), q32(2))
	sixth := qdiv(q32(1), q32(6))

	result := one.Sub(x).Add(half.Mul(x2)).Sub(sixth.Mul(x3))
	if result < 0 {
		return 0
	}
	if result > one {
		return one
	}
	return result
}

func unlockedUpdateSingle(pPrev, x Q) Q {
	beta := expNegApprox(x)
	oneMinusP := qOne().Sub(pPrev.Clamp01())
	p := qOne().Sub(oneMinusP.Mul(beta))
	return p.Clamp01()
}

// UnlockedUpdate: P' = 1 - (1-P)*exp(-lambda*dt), halved into two
// sub-steps when lambda*dt exceeds 0.5 to keep the Taylor series
// accurate (spec §4.6: "exp(−x) uses a clamped Taylor series split
// into half-steps when λ·Δt > 0.5").
func UnlockedUpdate(pPrev, lambdaQ, slotSecsQ Q) Q {
	if lambdaQ <= 0 {
		return pPrev
	}
	x := lambdaQ.Mul(slotSecsQ)
	half := qdiv(q32(1), q32(2))
	if x > half {
		xHalf := qdiv(x, q32(2))
		pMid := unlockedUpdateSingle(pPrev, xHalf)
		return unlockedUpdateSingle(pMid, xHalf)
	}
	return unlockedUpdateSingle(pPrev, x)
}

// Step runs one slot of the adaptive warmup state machine, mutating
// st in place, mirroring the original's step().
func Step(st *State, cfg Config, dNowQ Q, oracleGapLarge, insuranceUtilHigh bool) {
	st.DEma1h = EMAUpdate(st.DEma1h, dNowQ, cfg.AlphaD1h)
	st.DEma5m = EMAUpdate(st.DEma5m, dNowQ, cfg.AlphaD5m)

	sRaw1h := DrainS(dNowQ, st.DEma1h)
	sRaw5m := DrainS(dNowQ, st.DEma5m)

	s1Next := EMAUpdate(st.SEma1h, sRaw1h, cfg.AlphaSSlow)
	s5Next := EMAUpdate(st.SEma5m, sRaw5m, cfg.AlphaSFast)

	// One-way ratchet: drains only go up.
	if s1Next > st.SEma1h {
		st.SEma1h = s1Next
	}
	if s5Next > st.SEma5m {
		st.SEma5m = s5Next
	}

	sStar := cfg.W1h.Mul(st.SEma1h).Add(cfg.W5m.Mul(st.SEma5m)).Clamp01()

	t90 := T90FromS(st.LastT90Secs, sStar, cfg)
	st.LastT90Secs = t90

	freeze := sStar >= cfg.FreezeS && (oracleGapLarge || insuranceUtilHigh)

	var lambda Q
	if !freeze {
		lambda = qdiv(cfg.Ln10, t90)
	}

	st.UnlockedFrac = UnlockedUpdate(st.UnlockedFrac, lambda, cfg.SlotSecs)
}
