package transaction

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/percmarket/percolator/pkg/crypto"
)

// Verifier checks EIP-712 signatures over submitted transactions.
type Verifier struct {
	eip712Signer *crypto.EIP712Signer
}

// NewVerifier creates a transaction verifier under the given domain.
func NewVerifier(domain crypto.EIP712Domain) *Verifier {
	return &Verifier{eip712Signer: crypto.NewEIP712Signer(domain)}
}

// VerifyOrderTransaction verifies a signed order transaction and
// returns the recovered owner address.
func (v *Verifier) VerifyOrderTransaction(tx *SignedTransaction) (common.Address, bool, error) {
	if tx.Type != TxTypeOrder {
		return common.Address{}, false, fmt.Errorf("not an order transaction")
	}
	if tx.Order == nil {
		return common.Address{}, false, fmt.Errorf("missing order payload")
	}
	order, err := tx.Order.ToEIP712Order()
	if err != nil {
		return common.Address{}, false, fmt.Errorf("invalid order format: %w", err)
	}
	sigBytes, err := decodeSignature(tx.Signature)
	if err != nil {
		return common.Address{}, false, fmt.Errorf("invalid signature: %w", err)
	}
	valid, err := v.eip712Signer.VerifyOrderSignature(order, sigBytes)
	if err != nil {
		return common.Address{}, false, fmt.Errorf("signature verification failed: %w", err)
	}
	if !valid {
		return common.Address{}, false, fmt.Errorf("signature invalid")
	}
	return order.Owner, true, nil
}

// VerifyCancelTransaction verifies a signed cancel transaction.
func (v *Verifier) VerifyCancelTransaction(tx *SignedTransaction) (common.Address, bool, error) {
	if tx.Type != TxTypeCancel {
		return common.Address{}, false, fmt.Errorf("not a cancel transaction")
	}
	if tx.Cancel == nil {
		return common.Address{}, false, fmt.Errorf("missing cancel payload")
	}
	cancel, err := tx.Cancel.ToEIP712Cancel()
	if err != nil {
		return common.Address{}, false, fmt.Errorf("invalid cancel format: %w", err)
	}
	sigBytes, err := decodeSignature(tx.Signature)
	if err != nil {
		return common.Address{}, false, fmt.Errorf("invalid signature: %w", err)
	}
	valid, err := v.eip712Signer.VerifyCancelSignature(cancel, sigBytes)
	if err != nil {
		return common.Address{}, false, fmt.Errorf("signature verification failed: %w", err)
	}
	if !valid {
		return common.Address{}, false, fmt.Errorf("invalid cancel signature")
	}
	return cancel.Owner, true, nil
}

// VerifyWithdrawTransaction verifies a signed withdraw transaction
// (spec §4.11: a withdraw moves funds out under the owner's authority,
// so it is gated on the same signature check as an order).
func (v *Verifier) VerifyWithdrawTransaction(tx *SignedTransaction) (common.Address, bool, error) {
	if tx.Type != TxTypeWithdraw {
		return common.Address{}, false, fmt.Errorf("not a withdraw transaction")
	}
	if tx.Withdraw == nil {
		return common.Address{}, false, fmt.Errorf("missing withdraw payload")
	}
	withdraw, err := tx.Withdraw.ToEIP712Withdraw()
	if err != nil {
		return common.Address{}, false, fmt.Errorf("invalid withdraw format: %w", err)
	}
	sigBytes, err := decodeSignature(tx.Signature)
	if err != nil {
		return common.Address{}, false, fmt.Errorf("invalid signature: %w", err)
	}
	valid, err := v.eip712Signer.VerifyWithdrawSignature(withdraw, sigBytes)
	if err != nil {
		return common.Address{}, false, fmt.Errorf("signature verification failed: %w", err)
	}
	if !valid {
		return common.Address{}, false, fmt.Errorf("invalid withdraw signature")
	}
	return withdraw.Owner, true, nil
}

// decodeSignature decodes a hex-encoded 65-byte signature, with or
// without a leading 0x.
func decodeSignature(sig string) ([]byte, error) {
	sig = strings.TrimPrefix(sig, "0x")
	sigBytes, err := hex.DecodeString(sig)
	if err != nil {
		return nil, fmt.Errorf("invalid hex signature: %w", err)
	}
	if len(sigBytes) != 65 {
		return nil, fmt.Errorf("signature must be 65 bytes, got %d", len(sigBytes))
	}
	return sigBytes, nil
}

// RecoverSigner recovers and validates the signer of any transaction
// type, useful for logging/auditing without duplicating the per-type
// verification call sites.
func (v *Verifier) RecoverSigner(tx *SignedTransaction) (common.Address, error) {
	switch tx.Type {
	case TxTypeOrder:
		owner, valid, err := v.VerifyOrderTransaction(tx)
		if err != nil {
			return common.Address{}, err
		}
		if !valid {
			return common.Address{}, fmt.Errorf("invalid signature")
		}
		return owner, nil
	case TxTypeCancel:
		owner, valid, err := v.VerifyCancelTransaction(tx)
		if err != nil {
			return common.Address{}, err
		}
		if !valid {
			return common.Address{}, fmt.Errorf("invalid signature")
		}
		return owner, nil
	case TxTypeWithdraw:
		owner, valid, err := v.VerifyWithdrawTransaction(tx)
		if err != nil {
			return common.Address{}, err
		}
		if !valid {
			return common.Address{}, fmt.Errorf("invalid signature")
		}
		return owner, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported transaction type: %s", tx.Type)
	}
}
