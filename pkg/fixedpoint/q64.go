package fixedpoint

import "math/big"

// Q64 is a Q64.64 fixed-point fraction backed by math/big.Int, used for
// the global equity_scale/warming_scale multipliers (spec §3, §4.9).
// Values in this kernel are always in [0, 1], but 1.0 itself requires
// 2^64 which overflows a native uint64, so this type (like I128) falls
// back to math/big rather than a hand-rolled 128-bit integer.
type Q64 struct {
	v *big.Int // raw value; real value is v / 2^64
}

const q64Shift = 64

var q64OneRaw = new(big.Int).Lsh(big.NewInt(1), q64Shift)

// Q64One returns the Q64.64 representation of 1.0.
func Q64One() Q64 { return Q64{v: new(big.Int).Set(q64OneRaw)} }

// Q64Zero returns the Q64.64 representation of 0.
func Q64Zero() Q64 { return Q64{v: big.NewInt(0)} }

func (q Q64) raw() *big.Int {
	if q.v == nil {
		return big.NewInt(0)
	}
	return q.v
}

// Mul returns q*o in Q64.64, floor-rounded.
func (q Q64) Mul(o Q64) Q64 {
	prod := new(big.Int).Mul(q.raw(), o.raw())
	prod.Rsh(prod, q64Shift)
	return Q64{v: prod}
}

// Ratio returns num/den as a Q64.64 fraction (spec's
// Q64x64::ratio(num, den)), floor-rounded. num and den are plain
// non-negative integers (e.g. Σ_warming_before - burn1 over
// Σ_warming_before).
func Ratio(num, den I128) Q64 {
	if den.val().Sign() == 0 {
		return Q64Zero()
	}
	n := new(big.Int).Lsh(num.val(), q64Shift)
	q := new(big.Int).Quo(n, den.val())
	return Q64{v: q}
}

// MulI128 applies this scale factor to an I128 ledger value, floor
// rounded (spec's Q64x64::mul_i128).
func (q Q64) MulI128(x I128) I128 {
	prod := new(big.Int).Mul(q.raw(), x.val())
	// floor toward negative infinity to match the kernel's documented
	// floor-rounding default even for negative ledger deltas.
	shifted, rem := new(big.Int).QuoRem(prod, q64OneRaw, new(big.Int))
	if rem.Sign() != 0 && prod.Sign() < 0 {
		shifted.Sub(shifted, big.NewInt(1))
	}
	return I128{v: shifted}
}

// Div returns q/o in Q64.64, floor-rounded. Used to derive a
// scale-catch-up ratio directly from two Q64.64 scale factors (e.g.
// global_scale / user_scale_snapshot) without detouring through I128.
func (q Q64) Div(o Q64) Q64 {
	if o.raw().Sign() == 0 {
		return Q64Zero()
	}
	num := new(big.Int).Lsh(q.raw(), q64Shift)
	return Q64{v: new(big.Int).Quo(num, o.raw())}
}

// Sub returns q-o in Q64.64, clamped at zero (scale factors never go
// negative).
func (q Q64) Sub(o Q64) Q64 {
	d := new(big.Int).Sub(q.raw(), o.raw())
	if d.Sign() < 0 {
		d.SetInt64(0)
	}
	return Q64{v: d}
}

// Cmp compares two scale factors.
func (q Q64) Cmp(o Q64) int { return q.raw().Cmp(o.raw()) }

// LessOrEqual reports q <= o.
func (q Q64) LessOrEqual(o Q64) bool { return q.Cmp(o) <= 0 }

// Float64 converts to float64 for logging/CLI display only.
func (q Q64) Float64() float64 {
	f := new(big.Float).SetInt(q.raw())
	f.Quo(f, new(big.Float).SetInt(q64OneRaw))
	out, _ := f.Float64()
	return out
}

// String renders the raw fixed-point value for exact logging/tests.
func (q Q64) String() string { return q.raw().String() }

// GobEncode/GobDecode delegate to math/big.Int's own gob codec, for the
// same reason as fixedpoint.I128.
func (q Q64) GobEncode() ([]byte, error) {
	return q.raw().GobEncode()
}

func (q *Q64) GobDecode(data []byte) error {
	v := new(big.Int)
	if err := v.GobDecode(data); err != nil {
		return err
	}
	q.v = v
	return nil
}
