// Package orderbook implements the fixed-capacity, price-time-priority
// limit order book described in spec §4.2. It is grounded on
// pkg/app/core/orderbook/orderbook.go from the teacher repository,
// keeping that file's index-by-id cancellation and FIFO-at-price-level
// shape while replacing its unbounded heap-backed book with the spec's
// fixed-capacity sorted arrays, and replacing its combined
// validate+match+rest Place() with three separately testable
// operations: Insert, Remove, Match.
package orderbook

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/percmarket/percolator/pkg/fixedpoint"
	"github.com/percmarket/percolator/pkg/kernelerr"
)

// MaxOrdersPerSide bounds the resting book on either side (spec §4.2).
const MaxOrdersPerSide = 19

// Side is a book side.
type Side uint8

const (
	Buy Side = iota
	Sell
)

// OrderFlags bitmask, per spec §4.2 ("optional post-only and
// reduce-only flags").
type OrderFlags uint8

const (
	FlagNone       OrderFlags = 0
	FlagPostOnly   OrderFlags = 1 << 0
	FlagReduceOnly OrderFlags = 1 << 1
)

func (f OrderFlags) PostOnly() bool   { return f&FlagPostOnly != 0 }
func (f OrderFlags) ReduceOnly() bool { return f&FlagReduceOnly != 0 }

// Order is one resting limit order.
type Order struct {
	ID    uint64
	Owner common.Address
	Side  Side
	Price fixedpoint.Fixed
	Qty   fixedpoint.Fixed
	Ts    uint64
	Flags OrderFlags
}

// MatchResult is the outcome of a Match call.
type MatchResult struct {
	FilledQty fixedpoint.Fixed
	VWAPPx    fixedpoint.Fixed
	Notional  fixedpoint.Fixed
	Fills     []Fill
}

// Fill is one maker leg consumed by a Match.
type Fill struct {
	MakerID    uint64
	MakerOwner common.Address
	Price      fixedpoint.Fixed
	Qty        fixedpoint.Fixed
}

// Book is one venue's fixed-capacity price-time order book.
type Book struct {
	bids []*Order // sorted price DESC, ts ASC
	asks []*Order // sorted price ASC, ts ASC

	byID map[uint64]*Order

	nextOrderID uint64

	Tick         fixedpoint.Fixed
	Lot          fixedpoint.Fixed
	MinOrderSize fixedpoint.Fixed
}

// NewBook constructs an empty book with the given tick/lot/min-size
// parameters.
func NewBook(tick, lot, minOrderSize fixedpoint.Fixed) *Book {
	return &Book{
		byID:         make(map[uint64]*Order),
		nextOrderID:  1,
		Tick:         tick,
		Lot:          lot,
		MinOrderSize: minOrderSize,
	}
}

func (b *Book) validate(price, qty fixedpoint.Fixed) error {
	if price <= 0 {
		return kernelerr.ErrInvalidPrice
	}
	if qty <= 0 {
		return kernelerr.ErrInvalidQuantity
	}
	if b.Tick > 0 && int64(price)%int64(b.Tick) != 0 {
		return kernelerr.ErrInvalidTickSize
	}
	if b.Lot > 0 && int64(qty)%int64(b.Lot) != 0 {
		return kernelerr.ErrInvalidLotSize
	}
	if qty < b.MinOrderSize {
		return kernelerr.ErrOrderTooSmall
	}
	return nil
}

// BestBid returns the best (highest) resting bid, if any.
func (b *Book) BestBid() (*Order, bool) {
	if len(b.bids) == 0 {
		return nil, false
	}
	return b.bids[0], true
}

// BestAsk returns the best (lowest) resting ask, if any.
func (b *Book) BestAsk() (*Order, bool) {
	if len(b.asks) == 0 {
		return nil, false
	}
	return b.asks[0], true
}

// wouldCross reports whether a resting order at (side, price) would
// immediately cross the opposite book.
func (b *Book) wouldCross(side Side, price fixedpoint.Fixed) bool {
	if side == Buy {
		ask, ok := b.BestAsk()
		return ok && price >= ask.Price
	}
	bid, ok := b.BestBid()
	return ok && price <= bid.Price
}

// Insert validates and inserts a resting order, returning its assigned
// order id. Price-time priority is maintained by linear insertion,
// which spec §4.2 explicitly allows at this capacity.
func (b *Book) Insert(owner common.Address, side Side, price, qty fixedpoint.Fixed, ts uint64, flags OrderFlags) (uint64, error) {
	if err := b.validate(price, qty); err != nil {
		return 0, err
	}
	if flags.PostOnly() && b.wouldCross(side, price) {
		return 0, kernelerr.ErrWouldCross
	}

	var side_ *[]*Order
	if side == Buy {
		side_ = &b.bids
	} else {
		side_ = &b.asks
	}
	if len(*side_) >= MaxOrdersPerSide {
		return 0, kernelerr.ErrBookFull
	}

	id := b.nextOrderID
	b.nextOrderID++
	o := &Order{ID: id, Owner: owner, Side: side, Price: price, Qty: qty, Ts: ts, Flags: flags}

	idx := 0
	if side == Buy {
		for idx < len(b.bids) && less(b.bids[idx], o) {
			idx++
		}
	} else {
		for idx < len(b.asks) && lessAsk(b.asks[idx], o) {
			idx++
		}
	}
	*side_ = insertAt(*side_, idx, o)
	b.byID[id] = o
	return id, nil
}

// less reports whether a has strictly higher bid priority than b
// (higher price first, then earlier timestamp).
func less(a, b *Order) bool {
	if a.Price != b.Price {
		return a.Price > b.Price
	}
	return a.Ts < b.Ts
}

// lessAsk reports whether a has strictly higher ask priority than b
// (lower price first, then earlier timestamp).
func lessAsk(a, b *Order) bool {
	if a.Price != b.Price {
		return a.Price < b.Price
	}
	return a.Ts < b.Ts
}

func insertAt(s []*Order, idx int, o *Order) []*Order {
	s = append(s, nil)
	copy(s[idx+1:], s[idx:])
	s[idx] = o
	return s
}

// Remove cancels a resting order by id. An order can be removed at
// most once; a second call returns OrderNotFound.
func (b *Book) Remove(orderID uint64) error {
	o, ok := b.byID[orderID]
	if !ok {
		return kernelerr.ErrOrderNotFound
	}
	delete(b.byID, orderID)
	if o.Side == Buy {
		b.bids = removeOrder(b.bids, orderID)
	} else {
		b.asks = removeOrder(b.asks, orderID)
	}
	return nil
}

func removeOrder(s []*Order, id uint64) []*Order {
	for i, o := range s {
		if o.ID == id {
			return append(s[:i:i], s[i+1:]...)
		}
	}
	return s
}

// Match walks the opposite side in price-time order, filling up to qty
// at prices at least as good as limitPx, and returns the aggregate
// result. It does not insert a resting order for any unfilled
// remainder — that is the caller's (venue layer's) job, mirroring the
// spec's separation of match() from insert().
func (b *Book) Match(side Side, qty, limitPx fixedpoint.Fixed) (MatchResult, error) {
	if qty <= 0 {
		return MatchResult{}, kernelerr.ErrInvalidQuantity
	}
	var opposite *[]*Order
	if side == Buy {
		opposite = &b.asks
	} else {
		opposite = &b.bids
	}

	var acc fixedpoint.VWAPAccumulator
	var fills []Fill
	remaining := qty

	for remaining > 0 && len(*opposite) > 0 {
		maker := (*opposite)[0]
		if side == Buy && maker.Price > limitPx {
			break
		}
		if side == Sell && maker.Price < limitPx {
			break
		}
		fillQty := remaining
		if maker.Qty < fillQty {
			fillQty = maker.Qty
		}
		if err := acc.Add(fillQty, maker.Price); err != nil {
			return MatchResult{}, err
		}
		fills = append(fills, Fill{MakerID: maker.ID, MakerOwner: maker.Owner, Price: maker.Price, Qty: fillQty})
		remaining -= fillQty
		maker.Qty -= fillQty
		if maker.Qty == 0 {
			delete(b.byID, maker.ID)
			*opposite = (*opposite)[1:]
		}
	}

	if acc.Qty == 0 {
		return MatchResult{}, kernelerr.ErrNoLiquidity
	}

	return MatchResult{
		FilledQty: acc.Qty,
		VWAPPx:    acc.VWAP(),
		Notional:  acc.Notional,
		Fills:     fills,
	}, nil
}

// CheckSpread asserts best_bid.price < best_ask.price whenever both
// sides are populated (spec property O5).
func (b *Book) CheckSpread() error {
	bid, okBid := b.BestBid()
	ask, okAsk := b.BestAsk()
	if okBid && okAsk && bid.Price >= ask.Price {
		return kernelerr.ErrInvalidPrice
	}
	return nil
}

// Bids returns the resting bids in priority order, for state hashing
// and display. Callers must not mutate the returned slice.
func (b *Book) Bids() []*Order { return b.bids }

// Asks returns the resting asks in priority order.
func (b *Book) Asks() []*Order { return b.asks }
