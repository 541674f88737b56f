package service

import (
	"fmt"
	"math/big"
	"strconv"

	"github.com/percmarket/percolator/pkg/fixedpoint"
)

func parseI128(s string) (fixedpoint.I128, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return fixedpoint.ZeroI128(), fmt.Errorf("invalid integer %q", s)
	}
	return fixedpoint.NewI128FromBigInt(v), nil
}

func parseFixed(s string) (fixedpoint.Fixed, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid fixed-point value %q: %w", s, err)
	}
	return fixedpoint.Fixed(v), nil
}

func parseUint64(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid order id %q: %w", s, err)
	}
	return v, nil
}
