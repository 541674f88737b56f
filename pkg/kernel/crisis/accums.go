// Package crisis implements the loss waterfall and lazy per-user
// materialization of spec §4.9–§4.10, ported from original_source's
// crates/model_safety/src/crisis/{materialize.rs, and the waterfall
// sketched in spec.md §4.9 plus crates/model_safety/src/deposit_withdraw.rs's
// sibling crisis module, which this kernel's spec.md distills without
// naming a Rust file 1:1 -- the waterfall algorithm is given in full
// in spec.md §4.9 itself and is implemented directly from there).
package crisis

import "github.com/percmarket/percolator/pkg/fixedpoint"

// Accums is the registry's global Σ-field and scale state (spec §3's
// Registry row, the "Σ principal/realized/warming/collateral/insurance"
// and scale fields).
type Accums struct {
	SigmaPrincipal  fixedpoint.I128
	SigmaRealized   fixedpoint.I128
	SigmaWarming    fixedpoint.I128
	SigmaCollateral fixedpoint.I128
	SigmaInsurance  fixedpoint.I128

	EquityScale  fixedpoint.Q64
	WarmingScale fixedpoint.Q64
	Epoch        uint64
}

// NewAccums returns a fresh accumulator set with both scales at 1.0.
func NewAccums() *Accums {
	return &Accums{
		EquityScale:  fixedpoint.Q64One(),
		WarmingScale: fixedpoint.Q64One(),
	}
}
