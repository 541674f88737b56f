package crypto

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// EIP712Domain represents the domain separator for EIP-712 typed data.
// This prevents replay attacks across different chains/deployments.
type EIP712Domain struct {
	Name              string         // Protocol name ("Percolator")
	Version           string         // Protocol version
	ChainID           *big.Int       // Chain ID (1337 for local, 1 for mainnet)
	VerifyingContract common.Address // Contract address (or zero for off-chain)
}

// OrderEIP712 is the typed data a user signs to place an order on one
// venue via the router (spec §4.5's executor splits carry VenueID and
// InstrIdx, so the signed intent names them directly rather than a
// human symbol).
type OrderEIP712 struct {
	VenueID    uint32
	InstrIdx   uint16
	Side       uint8 // 1 = Buy, 2 = Sell
	Price      *big.Int
	Qty        *big.Int
	Nonce      *big.Int
	Deadline   *big.Int // Unix seconds, 0 = no expiry
	PostOnly   bool
	ReduceOnly bool
	Owner      common.Address
}

// CancelEIP712 is a signed request to cancel a resting order.
type CancelEIP712 struct {
	VenueID uint32
	OrderID uint64
	Nonce   *big.Int
	Owner   common.Address
}

// WithdrawEIP712 is a signed request to withdraw from a portfolio
// (spec §4.11): unlike a deposit, which only requires a vault credit,
// a withdraw moves funds out under the owner's authority and so must
// be signed the same way an order is.
type WithdrawEIP712 struct {
	Amount   *big.Int
	Nonce    *big.Int
	Deadline *big.Int
	Owner    common.Address
}

// EIP712Signer hashes and signs/verifies typed data under one domain.
type EIP712Signer struct {
	domain EIP712Domain
}

// NewEIP712Signer creates a new EIP-712 signer with given domain.
func NewEIP712Signer(domain EIP712Domain) *EIP712Signer {
	return &EIP712Signer{domain: domain}
}

// DefaultDomain returns the default EIP-712 domain for the kernel.
func DefaultDomain() EIP712Domain {
	return EIP712Domain{
		Name:              "Percolator",
		Version:           "1",
		ChainID:           big.NewInt(1337),
		VerifyingContract: common.Address{},
	}
}

func (e *EIP712Signer) domainMap() apitypes.TypedDataDomain {
	return apitypes.TypedDataDomain{
		Name:              e.domain.Name,
		Version:           e.domain.Version,
		ChainId:           (*math.HexOrDecimal256)(e.domain.ChainID),
		VerifyingContract: e.domain.VerifyingContract.Hex(),
	}
}

func digestOf(types apitypes.Types, primaryType string, domain apitypes.TypedDataDomain, message apitypes.TypedDataMessage) ([]byte, error) {
	typedData := apitypes.TypedData{
		Types:       types,
		PrimaryType: primaryType,
		Domain:      domain,
		Message:     message,
	}

	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("hash domain: %w", err)
	}
	messageHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return nil, fmt.Errorf("hash message: %w", err)
	}
	rawData := []byte(fmt.Sprintf("\x19\x01%s%s", string(domainSeparator), string(messageHash)))
	return crypto.Keccak256Hash(rawData).Bytes(), nil
}

var domainType = []apitypes.Type{
	{Name: "name", Type: "string"},
	{Name: "version", Type: "string"},
	{Name: "chainId", Type: "uint256"},
	{Name: "verifyingContract", Type: "address"},
}

// HashOrder hashes an order according to EIP-712.
func (e *EIP712Signer) HashOrder(order *OrderEIP712) ([]byte, error) {
	types := apitypes.Types{
		"EIP712Domain": domainType,
		"Order": []apitypes.Type{
			{Name: "venueId", Type: "uint32"},
			{Name: "instrIdx", Type: "uint16"},
			{Name: "side", Type: "uint8"},
			{Name: "price", Type: "uint256"},
			{Name: "qty", Type: "uint256"},
			{Name: "nonce", Type: "uint256"},
			{Name: "deadline", Type: "uint256"},
			{Name: "postOnly", Type: "bool"},
			{Name: "reduceOnly", Type: "bool"},
			{Name: "owner", Type: "address"},
		},
	}
	message := apitypes.TypedDataMessage{
		"venueId":    fmt.Sprintf("%d", order.VenueID),
		"instrIdx":   fmt.Sprintf("%d", order.InstrIdx),
		"side":       fmt.Sprintf("%d", order.Side),
		"price":      order.Price.String(),
		"qty":        order.Qty.String(),
		"nonce":      order.Nonce.String(),
		"deadline":   order.Deadline.String(),
		"postOnly":   order.PostOnly,
		"reduceOnly": order.ReduceOnly,
		"owner":      order.Owner.Hex(),
	}
	return digestOf(types, "Order", e.domainMap(), message)
}

// SignOrder signs an order and returns the signature.
func (e *EIP712Signer) SignOrder(signer *Signer, order *OrderEIP712) ([]byte, error) {
	hash, err := e.HashOrder(order)
	if err != nil {
		return nil, fmt.Errorf("hash order: %w", err)
	}
	return signer.Sign(hash)
}

// VerifyOrderSignature reports whether signature was produced by
// order.Owner over order's EIP-712 digest.
func (e *EIP712Signer) VerifyOrderSignature(order *OrderEIP712, signature []byte) (bool, error) {
	hash, err := e.HashOrder(order)
	if err != nil {
		return false, fmt.Errorf("hash order: %w", err)
	}
	recovered, err := RecoverAddress(hash, signature)
	if err != nil {
		return false, fmt.Errorf("recover address: %w", err)
	}
	return recovered == order.Owner, nil
}

// RecoverOrderSigner recovers the address that signed an order.
func (e *EIP712Signer) RecoverOrderSigner(order *OrderEIP712, signature []byte) (common.Address, error) {
	hash, err := e.HashOrder(order)
	if err != nil {
		return common.Address{}, fmt.Errorf("hash order: %w", err)
	}
	return RecoverAddress(hash, signature)
}

// OrderToJSON renders the typed data a wallet signs via
// eth_signTypedData_v4.
func (e *EIP712Signer) OrderToJSON(order *OrderEIP712) (string, error) {
	typedData := map[string]interface{}{
		"types": map[string]interface{}{
			"EIP712Domain": domainType,
			"Order": []map[string]string{
				{"name": "venueId", "type": "uint32"},
				{"name": "instrIdx", "type": "uint16"},
				{"name": "side", "type": "uint8"},
				{"name": "price", "type": "uint256"},
				{"name": "qty", "type": "uint256"},
				{"name": "nonce", "type": "uint256"},
				{"name": "deadline", "type": "uint256"},
				{"name": "postOnly", "type": "bool"},
				{"name": "reduceOnly", "type": "bool"},
				{"name": "owner", "type": "address"},
			},
		},
		"primaryType": "Order",
		"domain": map[string]interface{}{
			"name":              e.domain.Name,
			"version":           e.domain.Version,
			"chainId":           e.domain.ChainID.String(),
			"verifyingContract": e.domain.VerifyingContract.Hex(),
		},
		"message": map[string]interface{}{
			"venueId":    order.VenueID,
			"instrIdx":   order.InstrIdx,
			"side":       order.Side,
			"price":      order.Price.String(),
			"qty":        order.Qty.String(),
			"nonce":      order.Nonce.String(),
			"deadline":   order.Deadline.String(),
			"postOnly":   order.PostOnly,
			"reduceOnly": order.ReduceOnly,
			"owner":      order.Owner.Hex(),
		},
	}
	jsonBytes, err := json.MarshalIndent(typedData, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal json: %w", err)
	}
	return string(jsonBytes), nil
}

// SideToUint8 converts a side string to the EIP-712 uint8 encoding.
func SideToUint8(side string) uint8 {
	switch side {
	case "buy", "BUY":
		return 1
	case "sell", "SELL":
		return 2
	default:
		return 0
	}
}

// Uint8ToSide converts the EIP-712 uint8 encoding back to a string.
func Uint8ToSide(side uint8) string {
	switch side {
	case 1:
		return "buy"
	case 2:
		return "sell"
	default:
		return "unknown"
	}
}

// HashCancel hashes a cancel request according to EIP-712.
func (e *EIP712Signer) HashCancel(cancel *CancelEIP712) ([]byte, error) {
	types := apitypes.Types{
		"EIP712Domain": domainType,
		"CancelOrder": []apitypes.Type{
			{Name: "venueId", Type: "uint32"},
			{Name: "orderId", Type: "uint64"},
			{Name: "nonce", Type: "uint256"},
			{Name: "owner", Type: "address"},
		},
	}
	message := apitypes.TypedDataMessage{
		"venueId": fmt.Sprintf("%d", cancel.VenueID),
		"orderId": fmt.Sprintf("%d", cancel.OrderID),
		"nonce":   cancel.Nonce.String(),
		"owner":   cancel.Owner.Hex(),
	}
	return digestOf(types, "CancelOrder", e.domainMap(), message)
}

// SignCancel signs a cancel request and returns the signature.
func (e *EIP712Signer) SignCancel(signer *Signer, cancel *CancelEIP712) ([]byte, error) {
	hash, err := e.HashCancel(cancel)
	if err != nil {
		return nil, fmt.Errorf("hash cancel: %w", err)
	}
	return signer.Sign(hash)
}

// VerifyCancelSignature reports whether signature was produced by
// cancel.Owner over cancel's EIP-712 digest.
func (e *EIP712Signer) VerifyCancelSignature(cancel *CancelEIP712, signature []byte) (bool, error) {
	hash, err := e.HashCancel(cancel)
	if err != nil {
		return false, fmt.Errorf("hash cancel: %w", err)
	}
	recovered, err := RecoverAddress(hash, signature)
	if err != nil {
		return false, fmt.Errorf("recover address: %w", err)
	}
	return recovered == cancel.Owner, nil
}

// HashWithdraw hashes a withdraw request according to EIP-712 (spec
// §4.11's withdraw guard chain runs only after the signature over the
// requested amount is confirmed to come from the portfolio owner).
func (e *EIP712Signer) HashWithdraw(w *WithdrawEIP712) ([]byte, error) {
	types := apitypes.Types{
		"EIP712Domain": domainType,
		"Withdraw": []apitypes.Type{
			{Name: "amount", Type: "uint256"},
			{Name: "nonce", Type: "uint256"},
			{Name: "deadline", Type: "uint256"},
			{Name: "owner", Type: "address"},
		},
	}
	message := apitypes.TypedDataMessage{
		"amount":   w.Amount.String(),
		"nonce":    w.Nonce.String(),
		"deadline": w.Deadline.String(),
		"owner":    w.Owner.Hex(),
	}
	return digestOf(types, "Withdraw", e.domainMap(), message)
}

// SignWithdraw signs a withdraw request and returns the signature.
func (e *EIP712Signer) SignWithdraw(signer *Signer, w *WithdrawEIP712) ([]byte, error) {
	hash, err := e.HashWithdraw(w)
	if err != nil {
		return nil, fmt.Errorf("hash withdraw: %w", err)
	}
	return signer.Sign(hash)
}

// VerifyWithdrawSignature reports whether signature was produced by
// w.Owner over w's EIP-712 digest.
func (e *EIP712Signer) VerifyWithdrawSignature(w *WithdrawEIP712, signature []byte) (bool, error) {
	hash, err := e.HashWithdraw(w)
	if err != nil {
		return false, fmt.Errorf("hash withdraw: %w", err)
	}
	recovered, err := RecoverAddress(hash, signature)
	if err != nil {
		return false, fmt.Errorf("recover address: %w", err)
	}
	return recovered == w.Owner, nil
}
