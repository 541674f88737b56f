package crypto

import "fmt"

// QuorumAuthority guards discretionary insurance-fund transfers (spec
// §4.7's spendable balance is otherwise only ever drawn by the
// automated bad-debt/waterfall path): a transfer that is not a
// bad-debt payment requires an aggregate BLS signature from at least
// Threshold of Members over the transfer's message, using the same
// BLS aggregate-signature primitives bls.go already wraps from
// circl's sign/bls package.
type QuorumAuthority struct {
	Members   []*BLSPubKey
	Threshold int
}

// NewQuorumAuthority constructs an authority requiring threshold
// distinct signers drawn from members.
func NewQuorumAuthority(members []*BLSPubKey, threshold int) (*QuorumAuthority, error) {
	if threshold <= 0 || threshold > len(members) {
		return nil, fmt.Errorf("invalid quorum threshold %d for %d members", threshold, len(members))
	}
	return &QuorumAuthority{Members: members, Threshold: threshold}, nil
}

// VerifyQuorum reports whether aggSig is a valid BLS aggregate
// signature over msg from at least q.Threshold of the members named
// in signerIdxs (each index into q.Members, deduplicated). It does
// not attempt to recover which members actually signed from the
// aggregate alone -- the caller (insurance.Fund.DiscretionaryTransfer;
// no CLI or API path calls that) passes signatures already collected
// out of band and aggregated with crypto.Aggregate.
func (q *QuorumAuthority) VerifyQuorum(msg []byte, aggSig []byte, signerIdxs []int) bool {
	seen := make(map[int]bool, len(signerIdxs))
	var signers []*BLSPubKey
	for _, idx := range signerIdxs {
		if idx < 0 || idx >= len(q.Members) || seen[idx] {
			continue
		}
		seen[idx] = true
		signers = append(signers, q.Members[idx])
	}
	if len(signers) < q.Threshold {
		return false
	}
	return VerifyAggregateSameMsg(signers, msg, aggSig)
}
