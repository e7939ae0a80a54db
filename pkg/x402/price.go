package x402

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidPrice = errors.New("x402: invalid price")
	ErrSubAtomic    = errors.New("x402: price finer than the asset's smallest unit")
)

// ParsePrice converts a human price such as "$0.001" or "0.25" into the
// asset's smallest unit given its decimals.
func ParsePrice(price string, decimals int32) (string, error) {
	s := strings.TrimSpace(price)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidPrice, price)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidPrice, price)
	}
	if !d.IsPositive() {
		return "", fmt.Errorf("%w: %q must be positive", ErrInvalidPrice, price)
	}

	atomic := d.Shift(decimals)
	if !atomic.Equal(atomic.Truncate(0)) {
		return "", fmt.Errorf("%w: %q", ErrSubAtomic, price)
	}
	return atomic.String(), nil
}

// FormatAmount renders an atomic amount as a decimal string in whole units.
func FormatAmount(amount string, decimals int32) (string, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidPrice, amount)
	}
	return d.Shift(-decimals).String(), nil
}
