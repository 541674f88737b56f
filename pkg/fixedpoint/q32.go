package fixedpoint

import "math/big"

// Q32 is a Q32.32 fixed-point fraction: 32 integer bits, 32 fractional
// bits, backed by a plain int64 since every quantity that uses this
// format (unlocked_frac, drain fractions, smoothstep curve, t90
// ratios) is bounded well within int64 range. Per spec §3 the declared
// precision floor is 2⁻³² ≤ ε < 1.
type Q32 int64

const q32Shift = 32
const q32One = Q32(1 << q32Shift)

// Q32FromFloat constructs a Q32 value from a float64. Only used at
// config-load boundaries (t90_fast, s_max, weights, hysteresis) where
// the caller supplies human-readable constants; never used inside the
// warmup hot path.
func Q32FromFloat(f float64) Q32 {
	return Q32(f * float64(int64(1)<<q32Shift))
}

// Float64 converts back to float64 for logging/CLI display.
func (q Q32) Float64() float64 {
	return float64(q) / float64(int64(1)<<q32Shift)
}

// Clamp01 clamps q to [0, 1] in Q32.32.
func (q Q32) Clamp01() Q32 {
	if q < 0 {
		return 0
	}
	if q > q32One {
		return q32One
	}
	return q
}

// Add returns q+o (no saturation needed: warmup quantities stay
// bounded in [0,1] by construction, checked by the caller).
func (q Q32) Add(o Q32) Q32 { return q + o }

// Sub returns q-o.
func (q Q32) Sub(o Q32) Q32 { return q - o }

// Mul returns q*o in Q32.32. The intermediate product routes through
// math/big rather than a native int64 multiply because two Q32.32
// values already carry the 2^32 scale factor, so their raw product can
// exceed int64 well before the final result (bounded by the caller's
// domain) does; this mirrors the original's use of i128 as the
// multiply's intermediate type.
func (q Q32) Mul(o Q32) Q32 {
	prod := new(big.Int).Mul(big.NewInt(int64(q)), big.NewInt(int64(o)))
	prod.Rsh(prod, q32Shift)
	return Q32(prod.Int64())
}

// Div returns q/o in Q32.32; returns 0 if o == 0. Like Mul, the
// intermediate (q shifted left by 32 more bits) is computed in
// math/big to avoid overflowing int64 before the final divide.
func (q Q32) Div(o Q32) Q32 {
	if o == 0 {
		return 0
	}
	num := new(big.Int).Lsh(big.NewInt(int64(q)), q32Shift)
	den := big.NewInt(int64(o))
	return Q32(new(big.Int).Quo(num, den).Int64())
}

// Lerp returns a + (b-a)*t, all in Q32.32, t assumed clamped to [0,1].
func Lerp(a, b, t Q32) Q32 {
	return a.Add(b.Sub(a).Mul(t))
}

// Min returns the smaller of a, b.
func Min32(a, b Q32) Q32 {
	if a < b {
		return a
	}
	return b
}

// Max returns the larger of a, b.
func Max32(a, b Q32) Q32 {
	if a > b {
		return a
	}
	return b
}

// MulI128 applies this Q32.32 fraction to an I128 ledger value, floor
// rounded, for the withdraw path's `max(0, vested_pnl) * unlocked_frac`
// (spec §4.11).
func (q Q32) MulI128(x I128) I128 {
	prod := new(big.Int).Mul(big.NewInt(int64(q)), x.val())
	shifted, rem := new(big.Int).QuoRem(prod, big.NewInt(int64(q32One)), new(big.Int))
	if rem.Sign() != 0 && prod.Sign() < 0 {
		shifted.Sub(shifted, big.NewInt(1))
	}
	return I128{v: shifted}
}
