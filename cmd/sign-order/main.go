package main

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"

	"github.com/percmarket/percolator/pkg/crypto"
	"github.com/percmarket/percolator/pkg/transaction"
)

func main() {
	fmt.Println("Generating new keypair...")
	signer, err := crypto.GenerateKey()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Address: %s\n", signer.Address().Hex())
	fmt.Printf("Private Key: %s (KEEP SECRET!)\n\n", signer.PrivateKeyHex())

	order := &crypto.OrderEIP712{
		VenueID:    1,
		InstrIdx:   0,
		Side:       1, // Buy
		Price:      big.NewInt(50000_000000),
		Qty:        big.NewInt(100_000000),
		Nonce:      big.NewInt(1),
		Deadline:   big.NewInt(0), // No expiry
		PostOnly:   false,
		ReduceOnly: false,
		Owner:      signer.Address(),
	}

	fmt.Println("Order Details:")
	fmt.Printf("  Venue: %d  Instrument: %d\n", order.VenueID, order.InstrIdx)
	fmt.Printf("  Side: %s\n", crypto.Uint8ToSide(order.Side))
	fmt.Printf("  Price: %s\n", order.Price.String())
	fmt.Printf("  Qty: %s\n", order.Qty.String())
	fmt.Printf("  PostOnly: %v  ReduceOnly: %v\n", order.PostOnly, order.ReduceOnly)
	fmt.Printf("  Owner: %s\n\n", order.Owner.Hex())

	eip712Signer := crypto.NewEIP712Signer(crypto.DefaultDomain())
	signature, err := eip712Signer.SignOrder(signer, order)
	if err != nil {
		fmt.Printf("Error signing: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Signature: 0x%x\n\n", signature)

	orderPayload := transaction.FromEIP712Order(order)
	signedTx := &transaction.SignedTransaction{
		Type:      transaction.TxTypeOrder,
		Order:     orderPayload,
		Signature: fmt.Sprintf("0x%x", signature),
	}

	txJSON, err := json.MarshalIndent(signedTx, "", "  ")
	if err != nil {
		fmt.Printf("Error marshaling JSON: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Signed Transaction (JSON):")
	fmt.Println(string(txJSON))
	fmt.Println()

	fmt.Println("Verifying signature...")
	verifier := transaction.NewVerifier(crypto.DefaultDomain())
	recoveredOwner, valid, err := verifier.VerifyOrderTransaction(signedTx)
	if err != nil {
		fmt.Printf("Error verifying: %v\n", err)
		os.Exit(1)
	}

	if !valid {
		fmt.Println("signature INVALID")
		os.Exit(1)
	}

	fmt.Println("signature valid")
	fmt.Printf("  Signer: %s\n", recoveredOwner.Hex())
	fmt.Printf("  Matches owner: %v\n\n", recoveredOwner == order.Owner)

	fmt.Println("To submit this order:")
	fmt.Println("  POST http://localhost:8080/v1/orders")
	fmt.Println("  Content-Type: application/json")
	fmt.Println("  Body:")
	fmt.Println(string(txJSON))
}
