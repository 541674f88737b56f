package cli

import (
	"errors"

	"github.com/percmarket/percolator/pkg/kernelerr"
)

func isAuthError(err error) bool {
	return errors.Is(err, kernelerr.ErrUnauthorized)
}

func isMarginError(err error) bool {
	return errors.Is(err, kernelerr.ErrInsufficientFunds) ||
		errors.Is(err, kernelerr.ErrInsufficientMargin) ||
		errors.Is(err, kernelerr.ErrInsufficientWithdrawable) ||
		errors.Is(err, kernelerr.ErrInsufficientLiquidity)
}
