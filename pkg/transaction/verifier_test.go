package transaction

import (
	"math/big"
	"testing"

	"github.com/percmarket/percolator/pkg/crypto"
)

func signedOrderTx(t *testing.T, signer *crypto.Signer, eip712 *crypto.EIP712Signer) *SignedTransaction {
	t.Helper()
	order := &crypto.OrderEIP712{
		VenueID:  1,
		InstrIdx: 0,
		Side:     0,
		Price:    big.NewInt(50_000_000_000),
		Qty:      big.NewInt(1_000_000),
		Nonce:    big.NewInt(1),
		Deadline: big.NewInt(9_999_999_999),
		Owner:    signer.Address(),
	}
	sig, err := eip712.SignOrder(signer, order)
	if err != nil {
		t.Fatalf("SignOrder: %v", err)
	}
	return &SignedTransaction{
		Type:      TxTypeOrder,
		Order:     FromEIP712Order(order),
		Signature: "0x" + encodeHex(sig),
	}
}

func encodeHex(b []byte) string {
	const hextable = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[i*2] = hextable[c>>4]
		out[i*2+1] = hextable[c&0x0f]
	}
	return string(out)
}

func TestVerifyOrderTransactionRecoversOwner(t *testing.T) {
	signer, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	eip712 := crypto.NewEIP712Signer(crypto.DefaultDomain())
	tx := signedOrderTx(t, signer, eip712)

	v := NewVerifier(crypto.DefaultDomain())
	owner, valid, err := v.VerifyOrderTransaction(tx)
	if err != nil {
		t.Fatalf("VerifyOrderTransaction: %v", err)
	}
	if !valid {
		t.Fatalf("expected a correctly signed order to verify as valid")
	}
	if owner != signer.Address() {
		t.Fatalf("expected recovered owner %s, got %s", signer.Address().Hex(), owner.Hex())
	}
}

func TestVerifyOrderTransactionRejectsTamperedPrice(t *testing.T) {
	signer, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	eip712 := crypto.NewEIP712Signer(crypto.DefaultDomain())
	tx := signedOrderTx(t, signer, eip712)

	tx.Order.Price = "999999999999" // tamper after signing

	v := NewVerifier(crypto.DefaultDomain())
	_, valid, err := v.VerifyOrderTransaction(tx)
	if err == nil && valid {
		t.Fatalf("expected a tampered order's signature to fail verification")
	}
}

func TestVerifyOrderTransactionWrongType(t *testing.T) {
	v := NewVerifier(crypto.DefaultDomain())
	_, _, err := v.VerifyOrderTransaction(&SignedTransaction{Type: TxTypeCancel})
	if err == nil {
		t.Fatalf("expected an error verifying a non-order transaction as an order")
	}
}

func TestValidateRejectsMissingPayload(t *testing.T) {
	tx := &SignedTransaction{Type: TxTypeOrder, Signature: "0xdeadbeef"}
	if err := tx.Validate(); err == nil {
		t.Fatalf("expected Validate to reject an order transaction with no order payload")
	}
}

func TestValidateRejectsMissingSignature(t *testing.T) {
	tx := &SignedTransaction{Type: TxTypeOrder, Order: &OrderPayload{}}
	if err := tx.Validate(); err == nil {
		t.Fatalf("expected Validate to reject a transaction with no signature")
	}
}

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	signer, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	eip712 := crypto.NewEIP712Signer(crypto.DefaultDomain())
	tx := signedOrderTx(t, signer, eip712)

	data, err := tx.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	got, err := Deserialize(data)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if got.Order.Owner != tx.Order.Owner || got.Signature != tx.Signature {
		t.Fatalf("expected round-tripped transaction to match original")
	}
}
