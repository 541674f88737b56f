package executor

import (
	"github.com/percmarket/percolator/pkg/fixedpoint"
	"github.com/percmarket/percolator/pkg/kernel/portfolio"
)

// applyFunding settles the funding owed on every (venue, instrument)
// pair touched by this batch's splits, before any new fill changes the
// exposure those funding payments are owed against (spec §4.5 step 2:
// "apply funding indices to all affected exposures (idempotent per
// (user, instrument, funding_index))"), grounded on
// execute_cross_slab.rs's "apply funding rates for all touched slabs
// BEFORE processing trades" phase.
//
// Idempotency: FundingOffset[key] always holds the cumulative funding
// index already settled against this exposure, so re-applying the same
// cum_funding value a second time (e.g. because the same venue appears
// in two splits of one batch) computes a zero delta and is a no-op.
func applyFunding(p *portfolio.Portfolio, splits []Split, venueCtx map[uint32]VenueContext) {
	seen := make(map[portfolio.ExposureKey]bool)
	for _, split := range splits {
		key := portfolio.ExposureKey{VenueIdx: uint16(split.VenueID), InstrIdx: split.InstrIdx}
		if seen[key] {
			continue
		}
		seen[key] = true

		ctx, ok := venueCtx[split.VenueID]
		if !ok {
			continue
		}

		last := p.FundingOffset[key]
		delta := ctx.CumFunding.Sub(last)
		if delta.IsZero() {
			continue
		}

		net := p.Exposures[key]
		payment := delta.MulDivFloor(fixedpoint.NewI128FromInt64(int64(net)), fixedpoint.NewI128FromInt64(fixedpoint.Scale))

		p.RealizedPnl = p.RealizedPnl.Add(payment)
		if p.FundingOffset == nil {
			p.FundingOffset = make(map[portfolio.ExposureKey]fixedpoint.I128)
		}
		p.FundingOffset[key] = ctx.CumFunding
	}
}
