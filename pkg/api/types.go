package api

import (
	"github.com/shopspring/decimal"

	"github.com/percmarket/percolator/pkg/fixedpoint"
)

// API response types for REST endpoints and WebSocket messages.

// fixedToDecimal renders a 1e6-scaled Fixed as a human-readable
// decimal.Decimal, the same way the teacher's downstream clients
// display prices rather than the raw scaled integer.
func fixedToDecimal(f fixedpoint.Fixed) decimal.Decimal {
	return decimal.New(int64(f), 0).Shift(-6)
}

// ==============================
// REST Response Types
// ==============================

// VenueInfo describes one registered venue's identity and kind.
type VenueInfo struct {
	VenueID       uint32          `json:"venueId"`
	Kind          string          `json:"kind"` // "slab" or "amm"
	InstrumentIdx uint16          `json:"instrumentIdx"`
	MarkPx        int64           `json:"markPx"`
	MarkPxDecimal decimal.Decimal `json:"markPxDecimal"`
	TakerFeeBps   int64           `json:"takerFeeBps"`
}

// OrderbookSnapshot represents current order-book state for one slab.
type OrderbookSnapshot struct {
	VenueID   uint32       `json:"venueId"`
	Bids      []PriceLevel `json:"bids"` // sorted best-first
	Asks      []PriceLevel `json:"asks"` // sorted best-first
	Timestamp int64        `json:"timestamp"`
	Seqno     uint32       `json:"seqno"`
}

// PriceLevel represents one resting order.
type PriceLevel struct {
	OrderID      uint64          `json:"orderId"`
	Price        int64           `json:"price"`
	PriceDecimal decimal.Decimal `json:"priceDecimal"`
	Qty          int64           `json:"qty"`
}

// PortfolioInfo is the read-only view of a user's margin state (spec §3).
type PortfolioInfo struct {
	Address        string         `json:"address"`
	Principal      string         `json:"principal"`
	RealizedPnl    string         `json:"realizedPnl"`
	WarmingPnl     string         `json:"warmingPnl"`
	VestedPnl      string         `json:"vestedPnl"`
	Equity         string         `json:"equity"`
	IM             string         `json:"im"`
	MM             string         `json:"mm"`
	FreeCollateral string         `json:"freeCollateral"`
	Health         string         `json:"health"`
	Exposures      map[string]int64 `json:"exposures"` // instrument idx (decimal string) -> net exposure
}

// InsuranceInfo reports the fund's current standing (spec §4.7).
type InsuranceInfo struct {
	Balance    string `json:"balance"`
	Reserved   string `json:"reserved"`
	Spendable  string `json:"spendable"`
	FeeRevenue string `json:"feeRevenue"`
}

// RegistryInfo summarizes the kernel's global state.
type RegistryInfo struct {
	PortfolioCount int    `json:"portfolioCount"`
	TotalDeposits  string `json:"totalDeposits"`
	UnlockedFrac   float64 `json:"unlockedFrac"`
	EquityScale    float64 `json:"equityScale"`
	WarmingScale   float64 `json:"warmingScale"`
}

// ==============================
// WebSocket Message Types
// ==============================

// WSMessage is the base structure for all WebSocket messages.
type WSMessage struct {
	Type string      `json:"type"` // "fill", "liquidation", "orderbook"
	Data interface{} `json:"data"`
}

// WSSubscribeRequest is sent by a client to subscribe to channels.
type WSSubscribeRequest struct {
	Op       string   `json:"op"` // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"`
}

// FillUpdate is the payload BroadcastFill sends; nothing in the service
// calls BroadcastFill.
type FillUpdate struct {
	Type         string `json:"type"` // "fill"
	Address      string `json:"address"`
	SplitCount   int    `json:"splitCount"`
	InsuranceFee string `json:"insuranceFee"`
	Timestamp    int64  `json:"timestamp"`
}

// LiquidationUpdate is the payload BroadcastLiquidation sends; nothing
// in the service calls BroadcastLiquidation.
type LiquidationUpdate struct {
	Type       string `json:"type"` // "liquidation"
	Address    string `json:"address"`
	Mode       int    `json:"mode"`
	SplitCount int    `json:"splitCount"`
	Timestamp  int64  `json:"timestamp"`
}

// OrderbookUpdate is the payload BroadcastOrderbook sends; nothing in
// the service calls BroadcastOrderbook.
type OrderbookUpdate struct {
	Type      string       `json:"type"` // "orderbook"
	VenueID   uint32       `json:"venueId"`
	Bids      []PriceLevel `json:"bids"`
	Asks      []PriceLevel `json:"asks"`
	Timestamp int64        `json:"timestamp"`
}

// ==============================
// REST Request Types
// ==============================

// ErrorResponse is returned for all errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// SubmitTxResponse is the response from a signed-transaction submission.
type SubmitTxResponse struct {
	Status string `json:"status"` // "accepted", "rejected"
}
