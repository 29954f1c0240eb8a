/*
This file contains the pure conversion functions between raw integer
(smallest-unit) amounts, human decimal amounts, and USD values. Every
output is derived deterministically from the inputs; nothing here touches
the network or any shared state.
*/

package amounts

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/openvaults/vaultbridge/internal/config"
)

// Error definitions for zero-tolerance error handling
var (
	ErrNumericOverflow  = errors.New("raw amount is not a valid non-negative integer")
	ErrInvalidPrecision = errors.New("precision is invalid")
	ErrAmountNegative   = errors.New("amount is negative")
)

// ToDecimal converts a raw integer string in the asset's smallest unit to
// a human decimal amount by dividing by 10^decimals.
func ToDecimal(raw string, decimals int) (decimal.Decimal, error) {
	if decimals < 0 || decimals > 36 {
		return decimal.Zero, fmt.Errorf("%w: %d (must be between 0 and 36)", ErrInvalidPrecision, decimals)
	}
	if !isIntegerString(raw) {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrNumericOverflow, raw)
	}

	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrNumericOverflow, raw)
	}

	return value.Shift(int32(-decimals)), nil
}

// FromDecimal converts a human decimal amount back to a raw integer string
// in the asset's smallest unit, truncating sub-unit dust.
func FromDecimal(amount decimal.Decimal, decimals int) (string, error) {
	if decimals < 0 || decimals > 36 {
		return "", fmt.Errorf("%w: %d (must be between 0 and 36)", ErrInvalidPrecision, decimals)
	}
	if amount.IsNegative() {
		return "", ErrAmountNegative
	}

	return amount.Shift(int32(decimals)).Truncate(0).String(), nil
}

// ToUSD converts a human decimal amount to USD at the given price.
func ToUSD(amount, priceUSD decimal.Decimal) decimal.Decimal {
	return amount.Mul(priceUSD)
}

// MaxSpendable returns the maximum human decimal amount a user can spend
// from a raw balance. For the native gas asset a fixed reserve is kept
// back so the wallet can still pay for the transaction itself; for every
// other asset the full balance is spendable (the system assumes a
// stablecoin balance covers gas elsewhere).
func MaxSpendable(balanceRaw string, decimals int, isNativeGasAsset bool) (decimal.Decimal, error) {
	balance, err := ToDecimal(balanceRaw, decimals)
	if err != nil {
		return decimal.Zero, err
	}

	if !isNativeGasAsset {
		return balance, nil
	}

	reserve, err := decimal.NewFromString(config.NativeGasReserve)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid gas reserve constant: %w", err)
	}

	spendable := balance.Sub(reserve)
	if spendable.IsNegative() {
		return decimal.Zero, nil
	}
	return spendable, nil
}

// isIntegerString reports whether s is a plain base-10 non-negative
// integer: no sign, no decimal point, no exponent, at least one digit.
func isIntegerString(s string) bool {
	if s == "" {
		return false
	}
	if strings.ContainsAny(s, "+-.eE ") {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
