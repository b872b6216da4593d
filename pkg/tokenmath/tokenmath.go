package tokenmath

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned when an amount string is not a valid
// non-negative decimal
var ErrInvalidAmount = errors.New("invalid amount")

// referenceRates maps lower-cased token symbols to a static USDC-equivalent
// rate. This is a deliberate simplification standing in for a price oracle;
// values are deterministic, not accurate. Unknown tokens fall back to 1.
// Note this table is intentionally separate from the swap ratio used by the
// swap orchestrator, which carries a different ETH figure.
var referenceRates = map[string]float64{
	"eth":  4000,
	"usdc": 1,
	"pol":  0.5,
}

// ToUnits scales a human-readable decimal amount to the smallest unit for a
// token with the given decimal count. The result is an integer string.
func ToUnits(amount string, decimals int) (string, error) {
	d, err := parseAmount(amount)
	if err != nil {
		return "", err
	}
	scaled := d.Shift(int32(decimals))
	if !scaled.IsInteger() {
		// more fractional digits than the token carries
		return "", fmt.Errorf("%w: %q exceeds %d decimals", ErrInvalidAmount, amount, decimals)
	}
	return scaled.String(), nil
}

// FromUnits converts an integer amount in smallest units back to a decimal
// string. Trailing zero fractional digits are stripped; whole numbers carry
// no decimal point.
func FromUnits(units string, decimals int) (string, error) {
	d, err := decimal.NewFromString(units)
	if err != nil || !d.IsInteger() {
		return "", fmt.Errorf("%w: %q is not an integer unit count", ErrInvalidAmount, units)
	}
	if d.IsNegative() {
		return "", fmt.Errorf("%w: %q is negative", ErrInvalidAmount, units)
	}
	return d.Shift(int32(-decimals)).String(), nil
}

// ToReferenceCurrency converts an amount of the given token to its static
// USDC-equivalent value. Display only; do not use for settlement math.
func ToReferenceCurrency(amount float64, token string) float64 {
	rate, exists := referenceRates[strings.ToLower(token)]
	if !exists {
		rate = 1
	}
	return amount * rate
}

// ParseAmount parses a non-negative decimal amount string
func ParseAmount(amount string) (decimal.Decimal, error) {
	return parseAmount(amount)
}

func parseAmount(amount string) (decimal.Decimal, error) {
	s := strings.TrimSpace(amount)
	if s == "" || strings.HasPrefix(s, "+") {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: %q is negative", ErrInvalidAmount, amount)
	}
	return d, nil
}
