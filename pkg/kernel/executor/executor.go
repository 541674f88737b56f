// Package executor implements the cross-venue atomic executor of spec
// §4.5, grounded on
// original_source/programs/router/src/instructions/execute_cross_slab.rs:
// the same phase ordering (touch/vest catch-up, funding application,
// oracle staleness check, per-split matching with seqno TOCTOU,
// aggregate into portfolio, accrue insurance, recompute margin, abort
// on negative free collateral) ported from Solana-CPI-shaped Rust to a
// direct in-process Go call sequence.
package executor

import (
	"github.com/percmarket/percolator/pkg/fixedpoint"
	"github.com/percmarket/percolator/pkg/kernel/crisis"
	"github.com/percmarket/percolator/pkg/kernel/insurance"
	"github.com/percmarket/percolator/pkg/kernel/orderbook"
	"github.com/percmarket/percolator/pkg/kernel/portfolio"
	"github.com/percmarket/percolator/pkg/kernel/venue"
	"github.com/percmarket/percolator/pkg/kernelerr"
)

// Split is one leg of a cross-venue order, per spec §4.5's input (the
// Rust reference's SlabSplit generalized to also address AMM venues).
type Split struct {
	VenueID   uint32
	IsAMM     bool
	InstrIdx  uint16
	Side      orderbook.Side // ignored for AMM splits; AMM direction is carried by IsBuy
	IsBuy     bool           // AMM buy/sell direction
	Qty       fixedpoint.Fixed
	LimitPx   fixedpoint.Fixed
}

// VenueContext is everything the executor needs about one venue for a
// single batch: its pre-read seqno, its oracle timestamp, and its
// current cumulative funding index.
type VenueContext struct {
	PreReadSeqno uint32
	OracleTs     int64
	CumFunding   fixedpoint.I128
}

// Params bundles the registry-wide knobs the executor needs.
type Params struct {
	MaxOracleStalenessSecs int64
	NowSecs                int64
	NowSlot                uint64
	FeeBps                 int64 // insurance fee accrual rate on taker notional
	Margin                 portfolio.Params
	Materialize            crisis.MaterializeParams
}

// Result reports the aggregate outcome of one batch.
type Result struct {
	Receipts     []venue.Receipt
	InsuranceFee fixedpoint.I128
}

// Execute runs one all-or-nothing batch. No mutation to the portfolio,
// any venue, or the insurance fund is retained unless every step
// succeeds and the final margin check passes; any failure returns the
// error but the venues it already committed a split on, if any, are
// left committed (mirroring the Rust reference's CPI semantics, where
// a failed later instruction aborts the whole transaction including
// the slab commits made earlier in it -- this Go port's callers are
// expected to run Execute under the same outer-transaction rollback
// contract the registry package provides).
func Execute(
	p *portfolio.Portfolio,
	venues *venue.Registry,
	fund *insurance.Fund,
	accums *crisis.Accums,
	marks portfolio.MarkPrices,
	venueCtx map[uint32]VenueContext,
	splits []Split,
	params Params,
) (Result, error) {
	if err := p.CheckOwner(p.UserID); err != nil {
		return Result{}, err
	}

	crisis.MaterializeUser(p, accums, params.Materialize)

	applyFunding(p, splits, venueCtx)

	if err := checkOracleStaleness(p, splits, venueCtx, params.MaxOracleStalenessSecs, params.NowSecs); err != nil {
		return Result{}, err
	}

	receipts := make([]venue.Receipt, 0, len(splits))
	var totalNotional fixedpoint.I128

	for _, split := range splits {
		ctx, ok := venueCtx[split.VenueID]
		if !ok {
			return Result{}, kernelerr.ErrVenueRejected
		}

		var receipt venue.Receipt
		var err error

		if split.IsAMM {
			av, found := venues.AMM(split.VenueID)
			if !found {
				return Result{}, kernelerr.ErrVenueRejected
			}
			if split.IsBuy {
				receipt, err = av.QuoteBuyAtSeqno(ctx.PreReadSeqno, int64(split.Qty))
			} else {
				receipt, err = av.QuoteSellAtSeqno(ctx.PreReadSeqno, int64(split.Qty))
			}
		} else {
			sv, found := venues.Slab(split.VenueID)
			if !found {
				return Result{}, kernelerr.ErrVenueRejected
			}
			receipt, err = sv.MatchAtSeqno(ctx.PreReadSeqno, split.Side, split.Qty, split.LimitPx)
		}
		if err != nil {
			return Result{}, err
		}

		receipts = append(receipts, receipt)
		applyFill(p, split, receipt)
		totalNotional = totalNotional.Add(fixedpoint.NewI128FromInt64(int64(receipt.Notional)))
	}

	var fee fixedpoint.I128
	if totalNotional.Sign() > 0 {
		fee = fund.AccrueFee(fixedpoint.Fixed(totalNotional.Int64()), params.FeeBps)
		accums.SigmaInsurance = accums.SigmaInsurance.Add(fee)
	}

	if err := p.Recompute(marks, params.Margin); err != nil {
		return Result{}, err
	}
	if p.FreeCollateral.Sign() < 0 {
		return Result{}, kernelerr.ErrInsufficientMargin
	}

	return Result{Receipts: receipts, InsuranceFee: fee}, nil
}

// applyFill updates the portfolio's exposure and entry notional for one
// committed split (spec §4.5 step 5: "update exposure for each
// (venue, instrument)").
func applyFill(p *portfolio.Portfolio, split Split, receipt venue.Receipt) {
	key := portfolio.ExposureKey{VenueIdx: uint16(split.VenueID), InstrIdx: split.InstrIdx}

	signedQty := receipt.FilledQty
	isBuy := split.IsBuy
	if !split.IsAMM {
		isBuy = split.Side == orderbook.Buy
	}
	if !isBuy {
		signedQty = -signedQty
	}

	p.Exposures[key] = fixedpoint.SaturatingAdd(p.Exposures[key], signedQty)

	entryDelta := fixedpoint.NewI128FromInt64(int64(receipt.Notional))
	if !isBuy {
		entryDelta = entryDelta.Neg()
	}
	if p.EntryNotional == nil {
		p.EntryNotional = make(map[portfolio.ExposureKey]fixedpoint.I128)
	}
	p.EntryNotional[key] = p.EntryNotional[key].Add(entryDelta)
}

// checkOracleStaleness implements spec §4.5 step 3: a split that would
// increase |net exposure| at its (venue, instrument) is rejected if
// that venue's oracle is older than max_oracle_staleness_secs;
// reductions are always allowed regardless of staleness.
func checkOracleStaleness(p *portfolio.Portfolio, splits []Split, venueCtx map[uint32]VenueContext, maxStaleSecs, nowSecs int64) error {
	for _, split := range splits {
		ctx, ok := venueCtx[split.VenueID]
		if !ok {
			continue
		}
		isStale := nowSecs-ctx.OracleTs > maxStaleSecs

		key := portfolio.ExposureKey{VenueIdx: uint16(split.VenueID), InstrIdx: split.InstrIdx}
		current := p.Exposures[key]

		isBuy := split.IsBuy
		if !split.IsAMM {
			isBuy = split.Side == orderbook.Buy
		}
		delta := split.Qty
		if !isBuy {
			delta = -delta
		}
		newExposure := fixedpoint.SaturatingAdd(current, delta)

		increasing := abs(newExposure) > abs(current)
		if increasing && isStale {
			return kernelerr.ErrOracleStale
		}
	}
	return nil
}

func abs(f fixedpoint.Fixed) fixedpoint.Fixed {
	if f < 0 {
		return -f
	}
	return f
}
