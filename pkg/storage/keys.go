package storage

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Key schema for the Pebble checkpoint:
//
//	port:<address>        → gob(portfolio.Portfolio)
//	insurance              → gob(insurance.Fund)
//	accums                 → gob(crisis.Accums)
//	warmup:state            → gob(warmup.State)
//	warmup:config           → gob(warmup.Config)
//	total_deposits          → gob(fixedpoint.I128)
//	event:<seq, big-endian> → gob(Event) (append-only audit trail)
const (
	prefixPortfolio = "port:"
	keyInsurance    = "insurance"
	keyAccums       = "accums"
	keyWarmupState  = "warmup:state"
	keyWarmupConfig = "warmup:config"
	keyTotalDeposit = "total_deposits"
	prefixEvent     = "event:"
)

func portfolioKey(addr common.Address) []byte {
	return []byte(fmt.Sprintf("%s%s", prefixPortfolio, addr.Hex()))
}

func eventKey(seq uint64) []byte {
	return append([]byte(prefixEvent), uint64Key(seq)...)
}

func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
