// Package amm implements the constant-product AMM quote math of spec
// §4.3, ported line-for-line from the i128 Rust reference in
// original_source's crates/amm_model/src/math.rs, using math/big in
// place of Rust's i128 for the intermediate products that would
// otherwise overflow int64.
package amm

import (
	"math/big"

	"github.com/percmarket/percolator/pkg/fixedpoint"
	"github.com/percmarket/percolator/pkg/kernelerr"
)

// Pool is a constant-product liquidity pool, x*y = k.
type Pool struct {
	X        int64 // base reserve
	Y        int64 // quote reserve
	FeeBps   int64
	MinLiq   int64
}

// Quote is the result of a quote_buy/quote_sell call: the amount
// quoted, the implied VWAP (scaled by fixedpoint.Scale), and the new
// reserves the pool would have if the trade committed.
type Quote struct {
	QuoteAmount int64
	VWAP        int64
	NewX        int64
	NewY        int64
}

func bi(x int64) *big.Int { return big.NewInt(x) }

// QuoteBuy prices buying dxOut units of the base asset out of the pool,
// the caller paying the quote asset in, fee charged on the input side.
//
//	x1 = x - dxOut                      (require x1 > minLiq)
//	y1 = ceil(x*y / x1)
//	dyGross = y1 - y
//	dyIn = dyGross * 10000 / (10000 - feeBps)
//	vwap = dyIn * SCALE / dxOut
func QuoteBuy(x, y, feeBps, dxOut, minLiq int64) (Quote, error) {
	if x <= 0 || y <= 0 {
		return Quote{}, kernelerr.ErrInvalidReserves
	}
	if dxOut <= 0 {
		return Quote{}, kernelerr.ErrInvalidAmount
	}
	if feeBps < 0 || feeBps >= 10_000 {
		return Quote{}, kernelerr.ErrInvalidAmount
	}
	x1 := x - dxOut
	if x1 <= minLiq {
		return Quote{}, kernelerr.ErrInsufficientLiquidity
	}

	k := new(big.Int).Mul(bi(x), bi(y))
	y1 := ceilDiv(k, bi(x1))
	if !y1.IsInt64() {
		return Quote{}, kernelerr.ErrOverflow
	}

	dyGross := new(big.Int).Sub(y1, bi(y))
	dyIn := new(big.Int).Mul(dyGross, bi(10_000))
	dyIn = ceilDiv(dyIn, bi(10_000-feeBps))
	if !dyIn.IsInt64() {
		return Quote{}, kernelerr.ErrOverflow
	}

	vwapBig := new(big.Int).Mul(dyIn, bi(fixedpoint.Scale))
	vwapBig = floorDiv(vwapBig, bi(dxOut))
	if !vwapBig.IsInt64() {
		return Quote{}, kernelerr.ErrOverflow
	}

	newY := new(big.Int).Add(bi(y), dyIn)
	if !newY.IsInt64() {
		return Quote{}, kernelerr.ErrOverflow
	}

	return Quote{
		QuoteAmount: dyIn.Int64(),
		VWAP:        vwapBig.Int64(),
		NewX:        x1,
		NewY:        newY.Int64(),
	}, nil
}

// QuoteSell prices selling dxIn units of the base asset into the pool,
// fee applied to the input leg before it hits the pool:
//
//	dxNet = dxIn * (10000 - feeBps) / 10000
//	x1 = x + dxNet
//	y1 = floor(x*y / x1)
//	dyOut = y - y1
//	vwap = dyOut * SCALE / dxIn
//	new_x = x + dxIn, new_y = y1
func QuoteSell(x, y, feeBps, dxIn, minLiq int64) (Quote, error) {
	if x <= 0 || y <= 0 {
		return Quote{}, kernelerr.ErrInvalidReserves
	}
	if dxIn <= 0 {
		return Quote{}, kernelerr.ErrInvalidAmount
	}
	if feeBps < 0 || feeBps >= 10_000 {
		return Quote{}, kernelerr.ErrInvalidAmount
	}

	dxNet := floorDiv(new(big.Int).Mul(bi(dxIn), bi(10_000-feeBps)), bi(10_000))
	x1 := new(big.Int).Add(bi(x), dxNet)
	if !x1.IsInt64() {
		return Quote{}, kernelerr.ErrOverflow
	}

	k := new(big.Int).Mul(bi(x), bi(y))
	y1 := floorDiv(k, x1)
	if y1.Sign() < 0 || y1.Cmp(bi(y)) > 0 {
		return Quote{}, kernelerr.ErrInvalidReserves
	}
	y1Int := y1.Int64()
	if y1Int <= minLiq {
		return Quote{}, kernelerr.ErrInsufficientLiquidity
	}

	dyOut := y - y1Int

	vwapBig := floorDiv(new(big.Int).Mul(bi(dyOut), bi(fixedpoint.Scale)), bi(dxIn))
	if !vwapBig.IsInt64() {
		return Quote{}, kernelerr.ErrOverflow
	}

	// The fee stays in the pool: the full input is added to x.
	newX := new(big.Int).Add(bi(x), bi(dxIn))
	if !newX.IsInt64() {
		return Quote{}, kernelerr.ErrOverflow
	}

	return Quote{
		QuoteAmount: dyOut,
		VWAP:        vwapBig.Int64(),
		NewX:        newX.Int64(),
		NewY:        y1Int,
	}, nil
}

func ceilDiv(num, den *big.Int) *big.Int {
	q, r := new(big.Int).QuoRem(num, den, new(big.Int))
	if r.Sign() != 0 && (num.Sign() < 0) == (den.Sign() < 0) {
		q.Add(q, big.NewInt(1))
	}
	return q
}

func floorDiv(num, den *big.Int) *big.Int {
	q, r := new(big.Int).QuoRem(num, den, new(big.Int))
	if r.Sign() != 0 && (num.Sign() < 0) != (den.Sign() < 0) {
		q.Sub(q, big.NewInt(1))
	}
	return q
}

// Invariant returns x*y as a big.Int, for before/after k comparisons in
// tests and in the caller's A1 invariant check.
func Invariant(x, y int64) *big.Int {
	return new(big.Int).Mul(bi(x), bi(y))
}
