// Package kernelerr holds the sentinel errors shared across every
// percolator kernel package. Error kinds, not error types: callers use
// errors.Is against these values the way pkg/app/core/account/manager.go
// compares against a fixed set of named errors.
package kernelerr

import "errors"

var (
	ErrOverflow              = errors.New("overflow")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrInvalidReserves       = errors.New("invalid reserves")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")

	ErrInvalidAccount    = errors.New("invalid account")
	ErrInvalidInstruction = errors.New("invalid instruction")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrAlreadyInitialized = errors.New("already initialized")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInsufficientMargin = errors.New("insufficient margin")
	ErrInvalidPrice       = errors.New("invalid price")
	ErrInvalidQuantity    = errors.New("invalid quantity")
	ErrInvalidTickSize    = errors.New("invalid tick size")
	ErrInvalidLotSize     = errors.New("invalid lot size")
	ErrOrderTooSmall      = errors.New("order too small")
	ErrWouldCross         = errors.New("would cross")
	ErrOrderNotFound      = errors.New("order not found")
	ErrSeqnoMismatch      = errors.New("seqno mismatch")
	ErrOracleStale        = errors.New("oracle stale")
	ErrPortfolioHealthy   = errors.New("portfolio healthy")
	ErrLiquidationCooldown = errors.New("liquidation cooldown")
	ErrTradingHalted      = errors.New("trading halted")
	ErrNoLiquidity        = errors.New("no liquidity")
	ErrVenueRejected      = errors.New("venue rejected")
	ErrWouldBeLiquidatable = errors.New("would be liquidatable")
	ErrInsufficientWithdrawable = errors.New("insufficient withdrawable")
	ErrBookFull           = errors.New("book full")
)
