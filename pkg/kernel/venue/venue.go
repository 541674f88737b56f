// Package venue wraps the order-book ("slab") and AMM matching engines
// behind a common seqno-guarded interface, per spec §4.5's executor
// contract: "the venue is responsible for TOCTOU: it re-reads its own
// seqno and rejects with SeqnoMismatch if the seqno differs from the
// pre-recorded one." Grounded on the teacher's market registry
// (pkg/app/core/market/registry.go: a mutex-guarded map keyed by
// symbol/id, register/lookup/list operations) generalized from markets
// to venues and given a monotone per-venue seqno the teacher's
// MarketRegistry does not need.
package venue

import (
	"fmt"
	"sync"

	"github.com/percmarket/percolator/pkg/fixedpoint"
	"github.com/percmarket/percolator/pkg/kernel/amm"
	"github.com/percmarket/percolator/pkg/kernel/orderbook"
	"github.com/percmarket/percolator/pkg/kernelerr"
)

// Receipt is the matching result handed back to the cross-venue
// executor, uniform across slab and AMM venues (spec §3's "Fill
// receipt": seqno_snapshot, filled_qty, vwap_px, notional, fee).
type Receipt struct {
	SeqnoSnapshot uint32
	FilledQty     fixedpoint.Fixed
	VWAPPx        fixedpoint.Fixed
	Notional      fixedpoint.Fixed
	Fee           fixedpoint.Fixed
}

// Header carries the per-venue fields spec §9's binary layout names
// outside the book/pool payload itself: instrument id, mark price,
// taker fee, funding state, and the oracle staleness clock.
type Header struct {
	InstrumentIdx   uint16
	MarkPx          fixedpoint.Fixed
	TakerFeeBps     int64
	FundingRateBps  int64
	CumFunding      fixedpoint.I128
	OracleTs        int64
}

// Slab is an order-book venue: a Header plus an orderbook.Book, guarded
// by a monotone seqno that increments on every committed mutation.
type Slab struct {
	mu     sync.Mutex
	Header Header
	Book   *orderbook.Book
	seqno  uint32
}

// NewSlab constructs an empty slab venue.
func NewSlab(header Header, book *orderbook.Book) *Slab {
	return &Slab{Header: header, Book: book}
}

// Seqno returns the venue's current monotone counter, to be pre-read by
// the executor before a batch (spec §4.5 step 1).
func (s *Slab) Seqno() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seqno
}

// MatchAtSeqno re-reads the venue's seqno and rejects with
// SeqnoMismatch if it no longer equals expectedSeqno, otherwise
// performs the match and advances the seqno exactly once. This is the
// TOCTOU guard spec §4.5 delegates to the venue.
func (s *Slab) MatchAtSeqno(expectedSeqno uint32, side orderbook.Side, qty, limitPx fixedpoint.Fixed) (Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.seqno != expectedSeqno {
		return Receipt{}, kernelerr.ErrSeqnoMismatch
	}

	res, err := s.Book.Match(side, qty, limitPx)
	if err != nil {
		return Receipt{}, err
	}
	s.seqno++

	fee := takerFee(res.Notional, s.Header.TakerFeeBps)
	return Receipt{
		SeqnoSnapshot: s.seqno,
		FilledQty:     res.FilledQty,
		VWAPPx:        res.VWAPPx,
		Notional:      res.Notional,
		Fee:           fee,
	}, nil
}

// CancelAtSeqno removes a resting order through the same TOCTOU guard
// as MatchAtSeqno/InsertAtSeqno.
func (s *Slab) CancelAtSeqno(expectedSeqno uint32, orderID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seqno != expectedSeqno {
		return kernelerr.ErrSeqnoMismatch
	}
	if err := s.Book.Remove(orderID); err != nil {
		return err
	}
	s.seqno++
	return nil
}

// InsertAtSeqno places a resting order through the same TOCTOU guard as
// MatchAtSeqno, for pure maker (post-only) intents that never walk the
// opposite book.
func (s *Slab) InsertAtSeqno(expectedSeqno uint32, owner [20]byte, side orderbook.Side, price, qty fixedpoint.Fixed, ts uint64, flags orderbook.OrderFlags) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seqno != expectedSeqno {
		return 0, kernelerr.ErrSeqnoMismatch
	}
	id, err := s.Book.Insert(owner, side, price, qty, ts, flags)
	if err != nil {
		return 0, err
	}
	s.seqno++
	return id, nil
}

// AMM is a constant-product pool venue, guarded the same way as Slab.
type AMM struct {
	mu     sync.Mutex
	Header Header
	Pool   amm.Pool
	seqno  uint32
}

// NewAMM constructs a pool venue.
func NewAMM(header Header, pool amm.Pool) *AMM {
	return &AMM{Header: header, Pool: pool}
}

// Seqno returns the venue's current monotone counter.
func (a *AMM) Seqno() uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.seqno
}

// QuoteBuyAtSeqno quotes and commits a buy of dxOut base units out of
// the pool, guarded by the pre-recorded seqno.
func (a *AMM) QuoteBuyAtSeqno(expectedSeqno uint32, dxOut int64) (Receipt, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.seqno != expectedSeqno {
		return Receipt{}, kernelerr.ErrSeqnoMismatch
	}
	q, err := amm.QuoteBuy(a.Pool.X, a.Pool.Y, a.Pool.FeeBps, dxOut, a.Pool.MinLiq)
	if err != nil {
		return Receipt{}, err
	}
	a.Pool.X, a.Pool.Y = q.NewX, q.NewY
	a.seqno++

	return Receipt{
		SeqnoSnapshot: a.seqno,
		FilledQty:     fixedpoint.Fixed(dxOut),
		VWAPPx:        fixedpoint.Fixed(q.VWAP),
		Notional:      fixedpoint.Fixed(q.QuoteAmount),
		Fee:           takerFee(fixedpoint.Fixed(q.QuoteAmount), a.Header.TakerFeeBps),
	}, nil
}

// QuoteSellAtSeqno quotes and commits a sell of dxIn base units into
// the pool, guarded by the pre-recorded seqno.
func (a *AMM) QuoteSellAtSeqno(expectedSeqno uint32, dxIn int64) (Receipt, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.seqno != expectedSeqno {
		return Receipt{}, kernelerr.ErrSeqnoMismatch
	}
	q, err := amm.QuoteSell(a.Pool.X, a.Pool.Y, a.Pool.FeeBps, dxIn, a.Pool.MinLiq)
	if err != nil {
		return Receipt{}, err
	}
	a.Pool.X, a.Pool.Y = q.NewX, q.NewY
	a.seqno++

	return Receipt{
		SeqnoSnapshot: a.seqno,
		FilledQty:     fixedpoint.Fixed(dxIn),
		VWAPPx:        fixedpoint.Fixed(q.VWAP),
		Notional:      fixedpoint.Fixed(q.QuoteAmount),
		Fee:           takerFee(fixedpoint.Fixed(q.QuoteAmount), a.Header.TakerFeeBps),
	}, nil
}

func takerFee(notional fixedpoint.Fixed, feeBps int64) fixedpoint.Fixed {
	v, err := fixedpoint.MulDiv(notional, fixedpoint.Fixed(feeBps), 10_000, fixedpoint.RoundCeil)
	if err != nil {
		return 0
	}
	return v
}

// Registry is the venue directory: a mutex-guarded lookup by venue id,
// generalized from the teacher's MarketRegistry (symbol-keyed map) to
// the spec's numeric venue_id keying and mixed Slab/AMM membership.
type Registry struct {
	mu     sync.RWMutex
	slabs  map[uint32]*Slab
	amms   map[uint32]*AMM
}

// NewRegistry constructs an empty venue registry.
func NewRegistry() *Registry {
	return &Registry{slabs: make(map[uint32]*Slab), amms: make(map[uint32]*AMM)}
}

// RegisterSlab adds a new order-book venue under id, rejecting a
// duplicate id the same way the teacher's RegisterMarket does.
func (r *Registry) RegisterSlab(id uint32, s *Slab) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.slabs[id]; exists {
		return fmt.Errorf("venue %d already registered as slab", id)
	}
	if _, exists := r.amms[id]; exists {
		return fmt.Errorf("venue %d already registered as amm", id)
	}
	r.slabs[id] = s
	return nil
}

// RegisterAMM adds a new pool venue under id.
func (r *Registry) RegisterAMM(id uint32, a *AMM) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.amms[id]; exists {
		return fmt.Errorf("venue %d already registered as amm", id)
	}
	if _, exists := r.slabs[id]; exists {
		return fmt.Errorf("venue %d already registered as slab", id)
	}
	r.amms[id] = a
	return nil
}

// Slab looks up an order-book venue by id.
func (r *Registry) Slab(id uint32) (*Slab, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.slabs[id]
	return s, ok
}

// AMM looks up a pool venue by id.
func (r *Registry) AMM(id uint32) (*AMM, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.amms[id]
	return a, ok
}

// SlabIDs returns every registered order-book venue id, for callers
// that need to enumerate venues (metrics export, read-only listing).
func (r *Registry) SlabIDs() []uint32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]uint32, 0, len(r.slabs))
	for id := range r.slabs {
		ids = append(ids, id)
	}
	return ids
}

// AMMIDs returns every registered pool venue id.
func (r *Registry) AMMIDs() []uint32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]uint32, 0, len(r.amms))
	for id := range r.amms {
		ids = append(ids, id)
	}
	return ids
}
