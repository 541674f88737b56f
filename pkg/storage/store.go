// Package storage persists kernel state to a Pebble key-value store:
// periodic full checkpoints of every portfolio plus the global
// accumulators, and an append-only event log of committed batches for
// audit/replay. Grounded on the teacher's PebbleStore (github.com/
// cockroachdb/pebble, gob-encoded values, prefix-scanned key schema),
// generalized from consensus blocks/certificates to kernel portfolios
// and Σ-state.
package storage

import (
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"

	"github.com/percmarket/percolator/pkg/fixedpoint"
	"github.com/percmarket/percolator/pkg/kernel/crisis"
	"github.com/percmarket/percolator/pkg/kernel/insurance"
	"github.com/percmarket/percolator/pkg/kernel/portfolio"
	"github.com/percmarket/percolator/pkg/kernel/registry"
	"github.com/percmarket/percolator/pkg/kernel/warmup"
)

// PebbleStore is the on-disk checkpoint backend for one kernel.
type PebbleStore struct {
	db *pebble.DB
}

// NewPebbleStore opens (or creates) the Pebble database at path.
func NewPebbleStore(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble store: %w", err)
	}
	return &PebbleStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *PebbleStore) Close() error { return s.db.Close() }

// SavePortfolio persists one user's portfolio.
func (s *PebbleStore) SavePortfolio(p *portfolio.Portfolio) error {
	val, err := encodeGob(p)
	if err != nil {
		return fmt.Errorf("encode portfolio: %w", err)
	}
	return s.db.Set(portfolioKey(p.UserID), val, pebble.Sync)
}

// LoadPortfolio loads one user's portfolio, returning (nil, nil) if
// not found.
func (s *PebbleStore) LoadPortfolio(addr common.Address) (*portfolio.Portfolio, error) {
	val, closer, err := s.db.Get(portfolioKey(addr))
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get portfolio: %w", err)
	}
	defer closer.Close()
	var p portfolio.Portfolio
	if err := decodeGob(val, &p); err != nil {
		return nil, fmt.Errorf("decode portfolio: %w", err)
	}
	return &p, nil
}

// LoadAllPortfolios scans every persisted portfolio.
func (s *PebbleStore) LoadAllPortfolios() ([]*portfolio.Portfolio, error) {
	prefix := []byte(prefixPortfolio)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("new iterator: %w", err)
	}
	defer iter.Close()

	var out []*portfolio.Portfolio
	for iter.First(); iter.Valid(); iter.Next() {
		var p portfolio.Portfolio
		if err := decodeGob(iter.Value(), &p); err != nil {
			continue
		}
		out = append(out, &p)
	}
	return out, nil
}

// SaveInsurance persists the insurance fund's balance state.
func (s *PebbleStore) SaveInsurance(f *insurance.Fund) error {
	val, err := encodeGob(f)
	if err != nil {
		return fmt.Errorf("encode insurance fund: %w", err)
	}
	return s.db.Set([]byte(keyInsurance), val, pebble.Sync)
}

// LoadInsurance loads the insurance fund, returning (nil, nil) if
// never checkpointed.
func (s *PebbleStore) LoadInsurance() (*insurance.Fund, error) {
	val, closer, err := s.db.Get([]byte(keyInsurance))
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get insurance fund: %w", err)
	}
	defer closer.Close()
	var f insurance.Fund
	if err := decodeGob(val, &f); err != nil {
		return nil, fmt.Errorf("decode insurance fund: %w", err)
	}
	return &f, nil
}

// SaveAccums persists the crisis Σ-accumulators.
func (s *PebbleStore) SaveAccums(a *crisis.Accums) error {
	val, err := encodeGob(a)
	if err != nil {
		return fmt.Errorf("encode accums: %w", err)
	}
	return s.db.Set([]byte(keyAccums), val, pebble.Sync)
}

// LoadAccums loads the crisis Σ-accumulators, returning (nil, nil) if
// never checkpointed.
func (s *PebbleStore) LoadAccums() (*crisis.Accums, error) {
	val, closer, err := s.db.Get([]byte(keyAccums))
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get accums: %w", err)
	}
	defer closer.Close()
	var a crisis.Accums
	if err := decodeGob(val, &a); err != nil {
		return nil, fmt.Errorf("decode accums: %w", err)
	}
	return &a, nil
}

// SaveWarmup persists the adaptive-warmup state and its configuration.
func (s *PebbleStore) SaveWarmup(state warmup.State, cfg warmup.Config) error {
	stateVal, err := encodeGob(state)
	if err != nil {
		return fmt.Errorf("encode warmup state: %w", err)
	}
	if err := s.db.Set([]byte(keyWarmupState), stateVal, pebble.Sync); err != nil {
		return fmt.Errorf("save warmup state: %w", err)
	}
	cfgVal, err := encodeGob(cfg)
	if err != nil {
		return fmt.Errorf("encode warmup config: %w", err)
	}
	return s.db.Set([]byte(keyWarmupConfig), cfgVal, pebble.Sync)
}

// LoadWarmup loads the warmup state and config, reporting ok=false if
// never checkpointed.
func (s *PebbleStore) LoadWarmup() (state warmup.State, cfg warmup.Config, ok bool, err error) {
	stateVal, closer, gerr := s.db.Get([]byte(keyWarmupState))
	if gerr == pebble.ErrNotFound {
		return state, cfg, false, nil
	}
	if gerr != nil {
		return state, cfg, false, fmt.Errorf("get warmup state: %w", gerr)
	}
	defer closer.Close()
	if err := decodeGob(stateVal, &state); err != nil {
		return state, cfg, false, fmt.Errorf("decode warmup state: %w", err)
	}

	cfgVal, cfgCloser, gerr := s.db.Get([]byte(keyWarmupConfig))
	if gerr != nil {
		return state, cfg, false, fmt.Errorf("get warmup config: %w", gerr)
	}
	defer cfgCloser.Close()
	if err := decodeGob(cfgVal, &cfg); err != nil {
		return state, cfg, false, fmt.Errorf("decode warmup config: %w", err)
	}
	return state, cfg, true, nil
}

// SaveTotalDeposits persists the vault-accounting total.
func (s *PebbleStore) SaveTotalDeposits(total fixedpoint.I128) error {
	val, err := encodeGob(total)
	if err != nil {
		return fmt.Errorf("encode total deposits: %w", err)
	}
	return s.db.Set([]byte(keyTotalDeposit), val, pebble.Sync)
}

// LoadTotalDeposits loads the vault-accounting total, returning zero
// and ok=false if never checkpointed.
func (s *PebbleStore) LoadTotalDeposits() (total fixedpoint.I128, ok bool, err error) {
	val, closer, gerr := s.db.Get([]byte(keyTotalDeposit))
	if gerr == pebble.ErrNotFound {
		return fixedpoint.ZeroI128(), false, nil
	}
	if gerr != nil {
		return fixedpoint.ZeroI128(), false, fmt.Errorf("get total deposits: %w", gerr)
	}
	defer closer.Close()
	if err := decodeGob(val, &total); err != nil {
		return fixedpoint.ZeroI128(), false, fmt.Errorf("decode total deposits: %w", err)
	}
	return total, true, nil
}

// Checkpoint writes every portfolio plus the kernel's global state in
// one pass. Venue order-book/pool state is not checkpointed: it is
// in-memory working state only, and nothing rebuilds it at startup
// (fill events record only a split count and fee).
func (s *PebbleStore) Checkpoint(k *registry.Kernel) error {
	for _, p := range k.Snapshot() {
		if err := s.SavePortfolio(p); err != nil {
			return err
		}
	}
	if err := s.SaveInsurance(k.Insurance); err != nil {
		return err
	}
	if err := s.SaveAccums(k.Accums); err != nil {
		return err
	}
	if err := s.SaveWarmup(k.WarmupState, k.WarmupConfig); err != nil {
		return err
	}
	return s.SaveTotalDeposits(k.TotalDeposits)
}

func (s *PebbleStore) saveEvent(e Event) error {
	val, err := encodeGob(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return s.db.Set(eventKey(e.Seq), val, pebble.NoSync)
}

func (s *PebbleStore) lastEventSeq() (uint64, error) {
	prefix := []byte(prefixEvent)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return 0, fmt.Errorf("new iterator: %w", err)
	}
	defer iter.Close()

	if !iter.Last() {
		return 0, nil
	}
	var e Event
	if err := decodeGob(iter.Value(), &e); err != nil {
		return 0, fmt.Errorf("decode event: %w", err)
	}
	return e.Seq, nil
}

func (s *PebbleStore) loadRecentEvents(limit int) ([]Event, error) {
	prefix := []byte(prefixEvent)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("new iterator: %w", err)
	}
	defer iter.Close()

	var out []Event
	for iter.Last(); iter.Valid() && len(out) < limit; iter.Prev() {
		var e Event
		if err := decodeGob(iter.Value(), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Restore replays every persisted portfolio and the global state into
// a freshly constructed kernel, before it serves any request.
func (s *PebbleStore) Restore(k *registry.Kernel) error {
	portfolios, err := s.LoadAllPortfolios()
	if err != nil {
		return err
	}
	for _, p := range portfolios {
		k.Restore(p)
	}

	if fund, err := s.LoadInsurance(); err != nil {
		return err
	} else if fund != nil {
		*k.Insurance = *fund
	}

	if accums, err := s.LoadAccums(); err != nil {
		return err
	} else if accums != nil {
		*k.Accums = *accums
	}

	if state, cfg, ok, err := s.LoadWarmup(); err != nil {
		return err
	} else if ok {
		k.WarmupState = state
		k.WarmupConfig = cfg
	}

	if total, ok, err := s.LoadTotalDeposits(); err != nil {
		return err
	} else if ok {
		k.TotalDeposits = total
	}

	return nil
}
