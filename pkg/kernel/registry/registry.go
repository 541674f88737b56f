// Package registry implements the global Kernel aggregate of spec §3's
// Registry entity: every portfolio and venue the kernel knows about,
// the crisis Σ-accumulators, and the insurance fund, all behind one
// mutex, plus deposit/withdraw (spec §4.11). Grounded on
// pkg/app/core/market/registry.go from the teacher repository (a
// mutex-guarded map registry with Register/Get/lifecycle methods),
// generalized from a single symbol->Market map to the kernel's
// portfolio map + venue.Registry + global accumulators.
package registry

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/percmarket/percolator/pkg/fixedpoint"
	"github.com/percmarket/percolator/pkg/kernel/crisis"
	"github.com/percmarket/percolator/pkg/kernel/insurance"
	"github.com/percmarket/percolator/pkg/kernel/portfolio"
	"github.com/percmarket/percolator/pkg/kernel/venue"
	"github.com/percmarket/percolator/pkg/kernel/warmup"
	"github.com/percmarket/percolator/pkg/kernelerr"
)

// Params mirrors the scalar configuration fields of spec §3's Registry
// entity that are not already owned by a more specific package
// (margin ratios live in portfolio.Params, liquidation bands in
// liquidation.Params; this is the remainder: deposit/withdraw and
// vault-accounting knobs).
type Params struct {
	MinRentExempt fixedpoint.I128
}

// Kernel is the global aggregate: every portfolio, every venue, the
// crisis accumulators, the insurance fund, the adaptive-warmup state,
// and total_deposits, all guarded by one mutex (spec §3: "Registry
// Σ-fields and scales are the only process-wide state").
type Kernel struct {
	mu sync.Mutex

	portfolios map[common.Address]*portfolio.Portfolio
	venues     *venue.Registry

	Accums        *crisis.Accums
	Insurance     *insurance.Fund
	WarmupState   warmup.State
	WarmupConfig  warmup.Config
	TotalDeposits fixedpoint.I128

	Params Params
}

// New constructs an empty Kernel with freshly initialized Σ-accumulators
// and a zero-balance insurance fund.
func New(params Params) *Kernel {
	return &Kernel{
		portfolios:    make(map[common.Address]*portfolio.Portfolio),
		venues:        venue.NewRegistry(),
		Accums:        crisis.NewAccums(),
		Insurance:     &insurance.Fund{},
		WarmupConfig:  warmup.DefaultConfig(),
		TotalDeposits: fixedpoint.ZeroI128(),
		Params:        params,
	}
}

// Venues exposes the venue registry for executor/liquidation callers.
func (k *Kernel) Venues() *venue.Registry { return k.venues }

// Portfolio looks up a user's portfolio, creating one on first touch
// (matching the teacher's lazy-register pattern in account_manager.go,
// since every address is implicitly a valid future depositor).
func (k *Kernel) Portfolio(user common.Address) *portfolio.Portfolio {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.portfolioLocked(user)
}

func (k *Kernel) portfolioLocked(user common.Address) *portfolio.Portfolio {
	p, exists := k.portfolios[user]
	if !exists {
		p = portfolio.NewPortfolio(user)
		p.EquityScaleSnap = k.Accums.EquityScale
		p.WarmingScaleSnap = k.Accums.WarmingScale
		k.portfolios[user] = p
	}
	return p
}

// Count returns the number of portfolios the kernel has ever touched.
func (k *Kernel) Count() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.portfolios)
}

// Snapshot returns a shallow copy of every portfolio the kernel
// currently holds, keyed by owner address. Intended for the storage
// layer's periodic checkpoint, not the hot path.
func (k *Kernel) Snapshot() map[common.Address]*portfolio.Portfolio {
	k.mu.Lock()
	defer k.mu.Unlock()
	out := make(map[common.Address]*portfolio.Portfolio, len(k.portfolios))
	for addr, p := range k.portfolios {
		cp := *p
		out[addr] = &cp
	}
	return out
}

// Restore installs a portfolio loaded from persistent storage,
// overwriting any in-memory state for that address. Used only during
// startup replay, before the kernel serves any request.
func (k *Kernel) Restore(p *portfolio.Portfolio) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.portfolios[p.UserID] = p
}

// Deposit implements spec §4.11's deposit: principal += amount,
// equity += amount, Σ_principal += amount, total_deposits += amount.
// Rejects amount <= 0.
func (k *Kernel) Deposit(user common.Address, amount fixedpoint.I128) error {
	if amount.Sign() <= 0 {
		return kernelerr.ErrInvalidAmount
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	p := k.portfolioLocked(user)
	p.Principal = p.Principal.Add(amount)
	p.Equity = p.Equity.Add(amount)

	k.Accums.SigmaPrincipal = k.Accums.SigmaPrincipal.Add(amount)
	k.TotalDeposits = k.TotalDeposits.Add(amount)
	return nil
}

// MaxWithdrawable implements spec §4.11's
// `principal + max(0, vested_pnl) · unlocked_frac · 2⁻⁶⁴` (this port's
// unlocked_frac is Q32.32 rather than Q64.64, per pkg/kernel/warmup;
// the formula is otherwise unchanged).
func (k *Kernel) MaxWithdrawable(p *portfolio.Portfolio) fixedpoint.I128 {
	vested := p.VestedPnl
	if vested.Sign() < 0 {
		vested = fixedpoint.ZeroI128()
	}
	unlocked := k.WarmupState.UnlockedFrac.MulI128(vested)
	return p.Principal.Add(unlocked)
}

// Withdraw implements spec §4.11's withdraw guard chain: rejects
// amount > max_withdrawable (InsufficientWithdrawable), rejects a
// withdraw that would leave the portfolio liquidatable
// (WouldBeLiquidatable), rejects a withdraw that would push the vault
// below min_rent_exempt (InsufficientFunds). On success decrements
// principal, equity, Σ_principal, and total_deposits.
func (k *Kernel) Withdraw(user common.Address, amount fixedpoint.I128) error {
	if amount.Sign() <= 0 {
		return kernelerr.ErrInvalidAmount
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	p := k.portfolioLocked(user)

	if amount.Cmp(k.MaxWithdrawable(p)) > 0 {
		return kernelerr.ErrInsufficientWithdrawable
	}
	if p.WouldBeLiquidatable(amount.Neg()) {
		return kernelerr.ErrWouldBeLiquidatable
	}

	vaultAfter := k.TotalDeposits.Sub(amount)
	if vaultAfter.Cmp(k.Params.MinRentExempt) < 0 {
		return kernelerr.ErrInsufficientFunds
	}

	p.Principal = p.Principal.Sub(amount)
	p.Equity = p.Equity.Sub(amount)

	k.Accums.SigmaPrincipal = k.Accums.SigmaPrincipal.Sub(amount)
	k.TotalDeposits = k.TotalDeposits.Sub(amount)
	return nil
}

// CheckConservation implements spec §8's conservation property: after
// every portfolio has materialized against the current epoch,
// Σ(users.principal) == registry.Σ_principal (and likewise for
// realized/warming). Called from tests and from the service's keeper
// scan, not the hot path.
func (k *Kernel) CheckConservation() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	var sumPrincipal, sumRealized, sumWarming fixedpoint.I128
	for _, p := range k.portfolios {
		sumPrincipal = sumPrincipal.Add(p.Principal)
		sumRealized = sumRealized.Add(p.RealizedPnl)
		sumWarming = sumWarming.Add(p.WarmingPnl)
	}

	if sumPrincipal.Cmp(k.Accums.SigmaPrincipal) != 0 {
		return fmt.Errorf("conservation violated: Σ_principal users=%s registry=%s", sumPrincipal, k.Accums.SigmaPrincipal)
	}
	if sumRealized.Cmp(k.Accums.SigmaRealized) != 0 {
		return fmt.Errorf("conservation violated: Σ_realized users=%s registry=%s", sumRealized, k.Accums.SigmaRealized)
	}
	if sumWarming.Cmp(k.Accums.SigmaWarming) != 0 {
		return fmt.Errorf("conservation violated: Σ_warming users=%s registry=%s", sumWarming, k.Accums.SigmaWarming)
	}
	return nil
}
