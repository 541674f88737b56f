// Package service glues the kernel's packages into the single stateful
// object the CLI and API layers drive: the registry.Kernel itself, its
// storage checkpoint, its metrics, and its logger. Grounded on the
// teacher's pkg/app/perp.App (one struct wrapping the consensus-facing
// application state plus a zap logger and a mempool), generalized from
// a consensus-fed state machine to a directly-called kernel facade.
package service

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/percmarket/percolator/params"
	"github.com/percmarket/percolator/pkg/crypto"
	"github.com/percmarket/percolator/pkg/fixedpoint"
	"github.com/percmarket/percolator/pkg/kernel/amm"
	"github.com/percmarket/percolator/pkg/kernel/crisis"
	"github.com/percmarket/percolator/pkg/kernel/executor"
	"github.com/percmarket/percolator/pkg/kernel/liquidation"
	"github.com/percmarket/percolator/pkg/kernel/lp"
	"github.com/percmarket/percolator/pkg/kernel/metrics"
	"github.com/percmarket/percolator/pkg/kernel/orderbook"
	"github.com/percmarket/percolator/pkg/kernel/portfolio"
	"github.com/percmarket/percolator/pkg/kernel/registry"
	"github.com/percmarket/percolator/pkg/kernel/venue"
	"github.com/percmarket/percolator/pkg/kernelerr"
	"github.com/percmarket/percolator/pkg/storage"
	"github.com/percmarket/percolator/pkg/transaction"
)

// Service is the process-wide facade: one kernel, one checkpoint
// store, one event log, one metrics bundle, one logger.
type Service struct {
	Kernel   *registry.Kernel
	Store    *storage.PebbleStore
	Events   *storage.EventLog
	Metrics  *metrics.Collectors
	Log      *zap.Logger
	Verifier *transaction.Verifier
	Config   params.Config
}

// New constructs a service, replaying any existing checkpoint from
// store before returning.
func New(cfg params.Config, store *storage.PebbleStore, logger *zap.Logger) (*Service, error) {
	k := registry.New(cfg.Registry)

	if store != nil {
		if err := store.Restore(k); err != nil {
			return nil, fmt.Errorf("restore checkpoint: %w", err)
		}
	}

	var eventLog *storage.EventLog
	if store != nil {
		var err error
		eventLog, err = storage.NewEventLog(store)
		if err != nil {
			return nil, fmt.Errorf("open event log: %w", err)
		}
	}

	s := &Service{
		Kernel:   k,
		Store:    store,
		Events:   eventLog,
		Metrics:  metrics.NewCollectors(),
		Log:      logger,
		Verifier: transaction.NewVerifier(crypto.DefaultDomain()),
		Config:   cfg,
	}
	s.refreshGauges()
	return s, nil
}

func (s *Service) refreshGauges() {
	s.Metrics.InsuranceBalance.Set(float64(s.Kernel.Insurance.Balance.Int64()))
	s.Metrics.InsuranceReserved.Set(float64(s.Kernel.Insurance.Reserved.Int64()))
	s.Metrics.UnlockedFraction.Set(s.Kernel.WarmupState.UnlockedFrac.Float64())
	s.Metrics.EquityScale.Set(s.Kernel.Accums.EquityScale.Float64())
	s.Metrics.WarmingScale.Set(s.Kernel.Accums.WarmingScale.Float64())
	s.Metrics.PortfolioCount.Set(float64(s.Kernel.Count()))
}

func (s *Service) record(kind string, user common.Address, detail string) {
	if s.Events == nil {
		return
	}
	if _, err := s.Events.Append(storage.Event{
		Kind:          kind,
		User:          user,
		Detail:        detail,
		TimestampUnix: time.Now().Unix(),
	}); err != nil && s.Log != nil {
		s.Log.Warn("event log append failed", zap.Error(err), zap.String("kind", kind))
	}
}

// Checkpoint flushes the kernel's current state to the storage layer.
func (s *Service) Checkpoint() error {
	if s.Store == nil {
		return nil
	}
	return s.Store.Checkpoint(s.Kernel)
}

// Close flushes a final checkpoint and releases storage resources.
func (s *Service) Close() error {
	if err := s.Checkpoint(); err != nil {
		return err
	}
	if s.Store == nil {
		return nil
	}
	return s.Store.Close()
}

// Deposit credits a user's portfolio (spec §4.11).
func (s *Service) Deposit(user common.Address, amount fixedpoint.I128) error {
	if err := s.Kernel.Deposit(user, amount); err != nil {
		return err
	}
	s.record("deposit", user, fmt.Sprintf("amount=%s", amount))
	s.refreshGauges()
	return nil
}

// Withdraw verifies a signed withdraw transaction and, if it
// authenticates to the owner of the requested portfolio, applies
// registry.Kernel.Withdraw's guard chain.
func (s *Service) Withdraw(tx *transaction.SignedTransaction) error {
	owner, valid, err := s.Verifier.VerifyWithdrawTransaction(tx)
	if err != nil {
		return err
	}
	if !valid {
		return kernelerr.ErrUnauthorized
	}
	amount, err := parseI128(tx.Withdraw.Amount)
	if err != nil {
		return err
	}
	if err := s.Kernel.Withdraw(owner, amount); err != nil {
		return err
	}
	s.record("withdraw", owner, fmt.Sprintf("amount=%s", amount))
	s.refreshGauges()
	return nil
}

// RegisterSlab adds a new order-book venue. Administrative, not
// signed: run by the deployer via the CLI's matcher commands.
func (s *Service) RegisterSlab(id uint32, header venue.Header, tick, lot, minOrderSize fixedpoint.Fixed) error {
	book := orderbook.NewBook(tick, lot, minOrderSize)
	return s.Kernel.Venues().RegisterSlab(id, venue.NewSlab(header, book))
}

// RegisterAMM adds a new pool venue.
func (s *Service) RegisterAMM(id uint32, header venue.Header, pool amm.Pool) error {
	return s.Kernel.Venues().RegisterAMM(id, venue.NewAMM(header, pool))
}

// PlaceOrder verifies a signed order and, for a post-only intent,
// inserts it as a resting order on its slab venue. Crossing orders go
// through Execute instead, since spec §4.5's all-or-nothing guard
// chain only applies there.
func (s *Service) PlaceOrder(tx *transaction.SignedTransaction) (uint64, error) {
	owner, valid, err := s.Verifier.VerifyOrderTransaction(tx)
	if err != nil {
		return 0, err
	}
	if !valid {
		return 0, kernelerr.ErrUnauthorized
	}
	if !tx.Order.PostOnly {
		return 0, fmt.Errorf("non-post-only orders must route through Execute")
	}
	slab, ok := s.Kernel.Venues().Slab(tx.Order.VenueID)
	if !ok {
		return 0, kernelerr.ErrVenueRejected
	}
	price, err := parseFixed(tx.Order.Price)
	if err != nil {
		return 0, err
	}
	qty, err := parseFixed(tx.Order.Qty)
	if err != nil {
		return 0, err
	}
	side := orderbook.Buy
	if tx.Order.Side == 2 {
		side = orderbook.Sell
	}
	flags := orderbook.FlagPostOnly
	if tx.Order.ReduceOnly {
		flags |= orderbook.FlagReduceOnly
	}

	id, err := slab.InsertAtSeqno(slab.Seqno(), owner, side, price, qty, uint64(time.Now().UnixNano()), flags)
	if err != nil {
		return 0, err
	}
	s.record("order", owner, fmt.Sprintf("venue=%d order=%d", tx.Order.VenueID, id))
	return id, nil
}

// CancelOrder verifies a signed cancel and removes the order from its
// venue.
func (s *Service) CancelOrder(tx *transaction.SignedTransaction) error {
	owner, valid, err := s.Verifier.VerifyCancelTransaction(tx)
	if err != nil {
		return err
	}
	if !valid {
		return kernelerr.ErrUnauthorized
	}
	slab, ok := s.Kernel.Venues().Slab(tx.Cancel.VenueID)
	if !ok {
		return kernelerr.ErrVenueRejected
	}
	orderID, err := parseUint64(tx.Cancel.OrderID)
	if err != nil {
		return err
	}
	if err := slab.CancelAtSeqno(slab.Seqno(), orderID); err != nil {
		return err
	}
	s.record("cancel", owner, fmt.Sprintf("venue=%d order=%s", tx.Cancel.VenueID, tx.Cancel.OrderID))
	return nil
}

// Execute runs one all-or-nothing cross-venue batch for user (spec
// §4.5). Callers (CLI/API) build the split list and per-venue context
// from the registered venues before calling this.
func (s *Service) Execute(
	user common.Address,
	marks portfolio.MarkPrices,
	venueCtx map[uint32]executor.VenueContext,
	splits []executor.Split,
	nowSecs int64,
	nowSlot uint64,
) (executor.Result, error) {
	p := s.Kernel.Portfolio(user)

	result, err := executor.Execute(p, s.Kernel.Venues(), s.Kernel.Insurance, s.Kernel.Accums, marks, venueCtx, splits, executor.Params{
		MaxOracleStalenessSecs: s.Config.Executor.MaxOracleStalenessSecs,
		NowSecs:                nowSecs,
		NowSlot:                nowSlot,
		FeeBps:                 s.Config.Executor.FeeBps,
		Margin:                 s.Config.Margin,
		Materialize:            s.Config.Materialize,
	})
	if err != nil {
		return executor.Result{}, err
	}

	for i, r := range result.Receipts {
		kind := "slab"
		if splits[i].IsAMM {
			kind = "amm"
		}
		s.Metrics.FillsTotal.WithLabelValues(kind).Inc()
		s.Metrics.FillNotionalTotal.WithLabelValues(kind).Add(float64(r.Notional))
	}
	s.record("fill", user, fmt.Sprintf("splits=%d fee=%s", len(splits), result.InsuranceFee))
	s.refreshGauges()
	return result, nil
}

// AddLiquidity credits LP shares to a seat's portfolio, per spec §4.6.
func (s *Service) AddLiquidity(user common.Address, seatIdx int, delta fixedpoint.I128) error {
	p := s.Kernel.Portfolio(user)
	if seatIdx < 0 || seatIdx >= len(p.LPSeats) {
		return kernelerr.ErrInvalidAmount
	}
	shares, err := lp.ApplySharesDelta(p.LPSeats[seatIdx].LPShares, delta)
	if err != nil {
		return err
	}
	p.LPSeats[seatIdx].LPShares = shares
	s.record("liquidity_add", user, fmt.Sprintf("seat=%d delta=%s", seatIdx, delta))
	return nil
}

// RemoveLiquidity burns LP shares, rejecting an attempt to burn more
// than the seat holds (ApplySharesDelta's own guard).
func (s *Service) RemoveLiquidity(user common.Address, seatIdx int, amount fixedpoint.I128) error {
	return s.AddLiquidity(user, seatIdx, amount.Neg())
}

// Liquidate determines a portfolio's liquidation mode and plans its
// reduce-only splits, per spec §4.8. It does not itself execute the
// splits against venues -- that is the caller's job, the same way
// Execute's splits are caller-constructed, since the venues a
// liquidation routes through depend on live quotes the service does
// not cache.
func (s *Service) Liquidate(user common.Address, quotes []liquidation.VenueQuote, nowSecs int64) (liquidation.Mode, []liquidation.Split, error) {
	p := s.Kernel.Portfolio(user)
	mode := liquidation.DetermineMode(p, s.Config.Liquidation, nowSecs)
	if mode == liquidation.ModeNone {
		return mode, nil, nil
	}
	splits := liquidation.PlanPrincipalLiquidation(p, quotes, s.Config.Liquidation)
	liquidation.Touch(p, nowSecs)

	modeLabel := "preliq"
	if mode == liquidation.ModeHardLiquidation {
		modeLabel = "hard"
	}
	s.Metrics.LiquidationsTotal.WithLabelValues(modeLabel).Inc()
	s.record("liquidation", user, fmt.Sprintf("mode=%d splits=%d", mode, len(splits)))
	return mode, splits, nil
}

// InsuranceStatus reports the fund's current balance/reserved/spendable.
func (s *Service) InsuranceStatus() (balance, reserved, spendable, feeRevenue fixedpoint.I128) {
	f := s.Kernel.Insurance
	return f.Balance, f.Reserved, f.Spendable(), f.FeeRevenue
}

// CrisisSimulate runs the loss waterfall against a hypothetical
// deficit without requiring an actual venue shortfall, for the CLI's
// `crisis simulate`/`crisis test-haircut` commands.
func (s *Service) CrisisSimulate(deficit fixedpoint.I128) crisis.Outcome {
	outcome := crisis.RunWaterfall(s.Kernel.Accums, s.Kernel.Insurance, deficit)
	s.record("crisis", common.Address{}, fmt.Sprintf("deficit=%s outcome=%+v", deficit, outcome))
	s.refreshGauges()
	return outcome
}

// KeeperScan checks every known portfolio for a liquidatable or
// preliquidatable condition, returning the addresses that qualify.
// Intended for a periodic keeper loop (the CLI's `keeper run`), not
// the per-request hot path.
func (s *Service) KeeperScan(nowSecs int64) []common.Address {
	var flagged []common.Address
	for addr, p := range s.Kernel.Snapshot() {
		mode := liquidation.DetermineMode(p, s.Config.Liquidation, nowSecs)
		if mode != liquidation.ModeNone {
			flagged = append(flagged, addr)
		}
	}
	if err := s.Kernel.CheckConservation(); err != nil {
		s.Metrics.ConservationErrors.Inc()
		if s.Log != nil {
			s.Log.Error("conservation check failed", zap.Error(err))
		}
	}
	return flagged
}
