// Package transaction defines the signed-envelope format clients use to
// submit orders, cancels, and withdrawals: an EIP-712 payload plus its
// signature, serialized as JSON over the CLI/API boundary.
package transaction

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/percmarket/percolator/pkg/crypto"
)

// TxType names the kind of signed payload carried by a transaction.
type TxType string

const (
	TxTypeOrder    TxType = "order"
	TxTypeCancel   TxType = "cancel"
	TxTypeWithdraw TxType = "withdraw"
)

// SignedTransaction is a cryptographically signed request: exactly one
// of Order, Cancel, or Withdraw is populated, matching Type.
type SignedTransaction struct {
	Type      TxType           `json:"type"`
	Order     *OrderPayload    `json:"order,omitempty"`
	Cancel    *CancelPayload   `json:"cancel,omitempty"`
	Withdraw  *WithdrawPayload `json:"withdraw,omitempty"`
	Signature string           `json:"signature"`
}

// OrderPayload is the JSON-friendly mirror of crypto.OrderEIP712.
type OrderPayload struct {
	VenueID    uint32 `json:"venue_id"`
	InstrIdx   uint16 `json:"instr_idx"`
	Side       uint8  `json:"side"`
	Price      string `json:"price"`
	Qty        string `json:"qty"`
	Nonce      string `json:"nonce"`
	Deadline   string `json:"deadline"`
	PostOnly   bool   `json:"post_only"`
	ReduceOnly bool   `json:"reduce_only"`
	Owner      string `json:"owner"`
}

// CancelPayload is the JSON-friendly mirror of crypto.CancelEIP712.
type CancelPayload struct {
	VenueID uint32 `json:"venue_id"`
	OrderID string `json:"order_id"`
	Nonce   string `json:"nonce"`
	Owner   string `json:"owner"`
}

// WithdrawPayload is the JSON-friendly mirror of crypto.WithdrawEIP712.
type WithdrawPayload struct {
	Amount   string `json:"amount"`
	Nonce    string `json:"nonce"`
	Deadline string `json:"deadline"`
	Owner    string `json:"owner"`
}

func parseBig(s string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", s)
	}
	return n, nil
}

// ToEIP712Order converts an OrderPayload into its typed-data form.
func (o *OrderPayload) ToEIP712Order() (*crypto.OrderEIP712, error) {
	price, err := parseBig(o.Price)
	if err != nil {
		return nil, fmt.Errorf("price: %w", err)
	}
	qty, err := parseBig(o.Qty)
	if err != nil {
		return nil, fmt.Errorf("qty: %w", err)
	}
	nonce, err := parseBig(o.Nonce)
	if err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}
	deadline, err := parseBig(o.Deadline)
	if err != nil {
		return nil, fmt.Errorf("deadline: %w", err)
	}
	if !common.IsHexAddress(o.Owner) {
		return nil, fmt.Errorf("invalid owner address %q", o.Owner)
	}
	return &crypto.OrderEIP712{
		VenueID:    o.VenueID,
		InstrIdx:   o.InstrIdx,
		Side:       o.Side,
		Price:      price,
		Qty:        qty,
		Nonce:      nonce,
		Deadline:   deadline,
		PostOnly:   o.PostOnly,
		ReduceOnly: o.ReduceOnly,
		Owner:      common.HexToAddress(o.Owner),
	}, nil
}

// FromEIP712Order renders an OrderEIP712 back into its JSON payload.
func FromEIP712Order(order *crypto.OrderEIP712) *OrderPayload {
	return &OrderPayload{
		VenueID:    order.VenueID,
		InstrIdx:   order.InstrIdx,
		Side:       order.Side,
		Price:      order.Price.String(),
		Qty:        order.Qty.String(),
		Nonce:      order.Nonce.String(),
		Deadline:   order.Deadline.String(),
		PostOnly:   order.PostOnly,
		ReduceOnly: order.ReduceOnly,
		Owner:      order.Owner.Hex(),
	}
}

// ToEIP712Cancel converts a CancelPayload into its typed-data form.
func (c *CancelPayload) ToEIP712Cancel() (*crypto.CancelEIP712, error) {
	orderID, err := parseBig(c.OrderID)
	if err != nil {
		return nil, fmt.Errorf("order_id: %w", err)
	}
	nonce, err := parseBig(c.Nonce)
	if err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}
	if !common.IsHexAddress(c.Owner) {
		return nil, fmt.Errorf("invalid owner address %q", c.Owner)
	}
	return &crypto.CancelEIP712{
		VenueID: c.VenueID,
		OrderID: orderID.Uint64(),
		Nonce:   nonce,
		Owner:   common.HexToAddress(c.Owner),
	}, nil
}

// FromEIP712Cancel renders a CancelEIP712 back into its JSON payload.
func FromEIP712Cancel(cancel *crypto.CancelEIP712) *CancelPayload {
	return &CancelPayload{
		VenueID: cancel.VenueID,
		OrderID: fmt.Sprintf("%d", cancel.OrderID),
		Nonce:   cancel.Nonce.String(),
		Owner:   cancel.Owner.Hex(),
	}
}

// ToEIP712Withdraw converts a WithdrawPayload into its typed-data form.
func (w *WithdrawPayload) ToEIP712Withdraw() (*crypto.WithdrawEIP712, error) {
	amount, err := parseBig(w.Amount)
	if err != nil {
		return nil, fmt.Errorf("amount: %w", err)
	}
	nonce, err := parseBig(w.Nonce)
	if err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}
	deadline, err := parseBig(w.Deadline)
	if err != nil {
		return nil, fmt.Errorf("deadline: %w", err)
	}
	if !common.IsHexAddress(w.Owner) {
		return nil, fmt.Errorf("invalid owner address %q", w.Owner)
	}
	return &crypto.WithdrawEIP712{
		Amount:   amount,
		Nonce:    nonce,
		Deadline: deadline,
		Owner:    common.HexToAddress(w.Owner),
	}, nil
}

// FromEIP712Withdraw renders a WithdrawEIP712 back into its JSON payload.
func FromEIP712Withdraw(w *crypto.WithdrawEIP712) *WithdrawPayload {
	return &WithdrawPayload{
		Amount:   w.Amount.String(),
		Nonce:    w.Nonce.String(),
		Deadline: w.Deadline.String(),
		Owner:    w.Owner.Hex(),
	}
}

// Serialize renders the transaction as JSON.
func (tx *SignedTransaction) Serialize() ([]byte, error) {
	return json.Marshal(tx)
}

// Deserialize parses a transaction from JSON.
func Deserialize(data []byte) (*SignedTransaction, error) {
	var tx SignedTransaction
	if err := json.Unmarshal(data, &tx); err != nil {
		return nil, fmt.Errorf("unmarshal transaction: %w", err)
	}
	if err := tx.Validate(); err != nil {
		return nil, err
	}
	return &tx, nil
}

// Validate checks that exactly the payload matching Type is present.
func (tx *SignedTransaction) Validate() error {
	if tx.Signature == "" {
		return fmt.Errorf("missing signature")
	}
	switch tx.Type {
	case TxTypeOrder:
		if tx.Order == nil {
			return fmt.Errorf("order transaction missing order payload")
		}
	case TxTypeCancel:
		if tx.Cancel == nil {
			return fmt.Errorf("cancel transaction missing cancel payload")
		}
	case TxTypeWithdraw:
		if tx.Withdraw == nil {
			return fmt.Errorf("withdraw transaction missing withdraw payload")
		}
	default:
		return fmt.Errorf("unknown transaction type %q", tx.Type)
	}
	return nil
}
