// Package fixedpoint implements the saturating and checked arithmetic
// that every percolator kernel package builds on: a 1e6-scaled integer
// type for prices and quantities, a signed big-integer type standing in
// for the spec's i128/u128 ledger fields, and the Q32.32 / Q64.64
// fixed-point fraction types used by the adaptive-warmup and
// crisis-scale components.
//
// Every function here is total: none of them panic on caller-reachable
// input. Overflow and division-by-zero are reported through
// kernelerr.ErrOverflow / kernelerr.ErrInvalidAmount rather than a
// runtime panic, matching the "no panic" contract of spec §4.1.
package fixedpoint

import (
	"math"
	"math/big"
	"strconv"

	"github.com/percmarket/percolator/pkg/kernelerr"
)

// Scale is the fixed-point scale shared by price and quantity fields
// (1e6, per spec §3).
const Scale = 1_000_000

// Fixed is a 1e6-scaled signed quantity (price, qty, notional at the
// order-book granularity). It wraps int64 since order-book quantities
// and prices never approach the i128 range the ledger fields need.
type Fixed int64

// String renders the raw 1e6-scaled integer, matching I128/Q64's
// String() (raw value, not descaled) so %s on any kernel numeric type
// prints consistently.
func (f Fixed) String() string { return strconv.FormatInt(int64(f), 10) }

// SaturatingAdd adds two Fixed values, clamping to the int64 range
// instead of wrapping on overflow.
func SaturatingAdd(a, b Fixed) Fixed {
	sum := big.NewInt(0).Add(big.NewInt(int64(a)), big.NewInt(int64(b)))
	return clampToInt64(sum)
}

// SaturatingSub subtracts b from a, clamping to the int64 range.
func SaturatingSub(a, b Fixed) Fixed {
	diff := big.NewInt(0).Sub(big.NewInt(int64(a)), big.NewInt(int64(b)))
	return clampToInt64(diff)
}

func clampToInt64(v *big.Int) Fixed {
	max := big.NewInt(math.MaxInt64)
	min := big.NewInt(math.MinInt64)
	if v.Cmp(max) > 0 {
		return Fixed(math.MaxInt64)
	}
	if v.Cmp(min) < 0 {
		return Fixed(math.MinInt64)
	}
	return Fixed(v.Int64())
}

// CheckedMul multiplies a*b and returns kernelerr.ErrOverflow if the
// result does not fit in an int64.
func CheckedMul(a, b Fixed) (Fixed, error) {
	prod := big.NewInt(0).Mul(big.NewInt(int64(a)), big.NewInt(int64(b)))
	if !prod.IsInt64() {
		return 0, kernelerr.ErrOverflow
	}
	return Fixed(prod.Int64()), nil
}

// RoundMode selects how CheckedDiv rounds a non-exact quotient.
type RoundMode int

const (
	RoundFloor RoundMode = iota
	RoundCeil
)

// CheckedDiv divides a/b with the given rounding mode. Floor is the
// default everywhere in this kernel; ceiling is offered explicitly for
// the handful of call sites (AMM new-reserve computation) that need it.
func CheckedDiv(a, b Fixed, mode RoundMode) (Fixed, error) {
	if b == 0 {
		return 0, kernelerr.ErrInvalidAmount
	}
	num := big.NewInt(int64(a))
	den := big.NewInt(int64(b))
	q, r := new(big.Int).QuoRem(num, den, new(big.Int))
	if r.Sign() != 0 {
		negative := (a < 0) != (b < 0)
		switch mode {
		case RoundFloor:
			if negative {
				q.Sub(q, big.NewInt(1))
			}
		case RoundCeil:
			if !negative {
				q.Add(q, big.NewInt(1))
			}
		}
	}
	if !q.IsInt64() {
		return 0, kernelerr.ErrOverflow
	}
	return Fixed(q.Int64()), nil
}

// MulDiv computes a*b/d in a single wide multiply so that the
// intermediate product never overflows int64, rounding per mode.
// This is the workhorse behind margin, fee, and AMM-quote arithmetic
// (spec's mul_u64_u128 helper).
func MulDiv(a, b, d Fixed, mode RoundMode) (Fixed, error) {
	if d == 0 {
		return 0, kernelerr.ErrInvalidAmount
	}
	num := new(big.Int).Mul(big.NewInt(int64(a)), big.NewInt(int64(b)))
	den := big.NewInt(int64(d))
	q, r := new(big.Int).QuoRem(num, den, new(big.Int))
	if r.Sign() != 0 {
		negNum := num.Sign() < 0
		negDen := den.Sign() < 0
		negative := negNum != negDen
		switch mode {
		case RoundFloor:
			if negative {
				q.Sub(q, big.NewInt(1))
			}
		case RoundCeil:
			if !negative {
				q.Add(q, big.NewInt(1))
			}
		}
	}
	if !q.IsInt64() {
		return 0, kernelerr.ErrOverflow
	}
	return Fixed(q.Int64()), nil
}

// VWAPAccumulator folds successive fills into a running (qty, notional)
// pair and reports the volume-weighted average price, per spec's "VWAP
// update (returns running (qty, notional) pair)".
type VWAPAccumulator struct {
	Qty      Fixed
	Notional Fixed // in price*qty units, i.e. Scale-scaled
}

// Add folds one fill of the given qty at the given price into the
// accumulator.
func (v *VWAPAccumulator) Add(qty, price Fixed) error {
	notional, err := MulDiv(qty, price, Scale, RoundFloor)
	if err != nil {
		return err
	}
	v.Qty = SaturatingAdd(v.Qty, qty)
	v.Notional = SaturatingAdd(v.Notional, notional)
	return nil
}

// VWAP returns the volume-weighted average price, or zero if no
// quantity has been accumulated.
func (v *VWAPAccumulator) VWAP() Fixed {
	if v.Qty == 0 {
		return 0
	}
	px, err := MulDiv(v.Notional, Scale, v.Qty, RoundFloor)
	if err != nil {
		return 0
	}
	return px
}
