package cli

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/percmarket/percolator/pkg/crypto"
	"github.com/percmarket/percolator/pkg/transaction"
)

// loadSigner reads the hex-encoded private key at ctx.Keypair.
func loadSigner() (*crypto.Signer, error) {
	if ctx.Keypair == "" {
		return nil, fmt.Errorf("--keypair is required for this command")
	}
	raw, err := os.ReadFile(ctx.Keypair)
	if err != nil {
		return nil, fmt.Errorf("read keypair: %w", err)
	}
	hexKey := strings.TrimSpace(string(raw))
	return crypto.FromPrivateKeyHex(hexKey)
}

func encodeSignature(sig []byte) string {
	return "0x" + hex.EncodeToString(sig)
}

// signOrder builds and signs a SignedTransaction carrying an order.
func signOrder(venueID uint32, instrIdx uint16, side uint8, price, qty *big.Int, postOnly, reduceOnly bool) (*transaction.SignedTransaction, error) {
	signer, err := loadSigner()
	if err != nil {
		return nil, err
	}
	eip712 := crypto.NewEIP712Signer(crypto.DefaultDomain())

	order := &crypto.OrderEIP712{
		VenueID:    venueID,
		InstrIdx:   instrIdx,
		Side:       side,
		Price:      price,
		Qty:        qty,
		Nonce:      big.NewInt(time.Now().UnixNano()),
		Deadline:   big.NewInt(0),
		PostOnly:   postOnly,
		ReduceOnly: reduceOnly,
		Owner:      signer.Address(),
	}
	sig, err := eip712.SignOrder(signer, order)
	if err != nil {
		return nil, fmt.Errorf("sign order: %w", err)
	}

	return &transaction.SignedTransaction{
		Type:      transaction.TxTypeOrder,
		Order:     transaction.FromEIP712Order(order),
		Signature: encodeSignature(sig),
	}, nil
}

// signCancel builds and signs a SignedTransaction carrying a cancel.
func signCancel(venueID uint32, orderID uint64) (*transaction.SignedTransaction, error) {
	signer, err := loadSigner()
	if err != nil {
		return nil, err
	}
	eip712 := crypto.NewEIP712Signer(crypto.DefaultDomain())

	cancel := &crypto.CancelEIP712{
		VenueID: venueID,
		OrderID: orderID,
		Nonce:   big.NewInt(time.Now().UnixNano()),
		Owner:   signer.Address(),
	}
	sig, err := eip712.SignCancel(signer, cancel)
	if err != nil {
		return nil, fmt.Errorf("sign cancel: %w", err)
	}

	return &transaction.SignedTransaction{
		Type:      transaction.TxTypeCancel,
		Cancel:    transaction.FromEIP712Cancel(cancel),
		Signature: encodeSignature(sig),
	}, nil
}

// signWithdraw builds and signs a SignedTransaction carrying a
// withdraw request.
func signWithdraw(amount *big.Int) (*transaction.SignedTransaction, error) {
	signer, err := loadSigner()
	if err != nil {
		return nil, err
	}
	eip712 := crypto.NewEIP712Signer(crypto.DefaultDomain())

	withdraw := &crypto.WithdrawEIP712{
		Amount:   amount,
		Nonce:    big.NewInt(time.Now().UnixNano()),
		Deadline: big.NewInt(0),
		Owner:    signer.Address(),
	}
	sig, err := eip712.SignWithdraw(signer, withdraw)
	if err != nil {
		return nil, fmt.Errorf("sign withdraw: %w", err)
	}

	return &transaction.SignedTransaction{
		Type:      transaction.TxTypeWithdraw,
		Withdraw:  transaction.FromEIP712Withdraw(withdraw),
		Signature: encodeSignature(sig),
	}, nil
}
