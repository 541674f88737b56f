package storage

import (
	"math"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Event is one audit-log entry: a committed batch's outcome, keyed by
// a monotonic sequence number so the log can be replayed in order.
type Event struct {
	Seq       uint64
	Kind      string // "order", "cancel", "fill", "liquidity_add", "liquidation", "deposit", "withdraw", "crisis"
	User      common.Address
	Detail    string // human-readable summary, not re-parsed on replay
	TimestampUnix int64
}

// EventLog is an append-only record of committed kernel operations,
// adapted from the teacher's WAL: a FileWAL there appended raw lines
// to a consensus write-ahead log, gated by a mutex; here it appends
// gob-encoded Events to Pebble under an incrementing sequence key so
// the CLI's history commands can page through it in insertion order.
type EventLog struct {
	mu    sync.Mutex
	db    *PebbleStore
	nextSeq uint64
}

// NewEventLog wraps store, resuming the sequence counter after the
// highest persisted event.
func NewEventLog(store *PebbleStore) (*EventLog, error) {
	last, err := store.lastEventSeq()
	if err != nil {
		return nil, err
	}
	return &EventLog{db: store, nextSeq: last + 1}, nil
}

// Append records one event and returns its assigned sequence number.
func (l *EventLog) Append(e Event) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.Seq = l.nextSeq
	if err := l.db.saveEvent(e); err != nil {
		return 0, err
	}
	l.nextSeq++
	return e.Seq, nil
}

// Recent returns up to limit of the most recently appended events, in
// reverse chronological order.
func (l *EventLog) Recent(limit int) ([]Event, error) {
	return l.db.loadRecentEvents(limit)
}

// Filter returns every persisted event of the given kind, optionally
// narrowed to one user's hex address, oldest first. userHex == ""
// matches every user. Used by the CLI's per-domain history commands
// (liquidation/insurance/crisis) to page the shared audit log.
func (l *EventLog) Filter(kind, userHex string) ([]Event, error) {
	all, err := l.db.loadRecentEvents(math.MaxInt32)
	if err != nil {
		return nil, err
	}
	var out []Event
	for i := len(all) - 1; i >= 0; i-- {
		e := all[i]
		if e.Kind != kind {
			continue
		}
		if userHex != "" && !strings.EqualFold(e.User.Hex(), userHex) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
