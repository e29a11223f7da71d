package types

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// AmountScale is the number of decimal places money is stored with.
const AmountScale = 3

// maxAmount is the exclusive upper bound of a NUMERIC(12,3) column.
var maxAmount = decimal.New(1, 12-AmountScale)

// FormatAmount renders an amount with exactly AmountScale decimals, e.g. "5.500".
func FormatAmount(amount decimal.Decimal) string {
	return amount.StringFixed(AmountScale)
}

// NormalizeAmount rounds a stored or summed amount to AmountScale decimals.
func NormalizeAmount(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(AmountScale)
}

// ParseAmount parses a positive decimal amount with at most AmountScale
// decimals. Values with more precision are rejected, never rounded.
func ParseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Decimal{}, fmt.Errorf("amount is required")
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("amount %q is not a decimal number", raw)
	}
	if err := ValidateAmount(amount); err != nil {
		return decimal.Decimal{}, err
	}
	return amount, nil
}

// ValidateAmount enforces 0 < amount < 1e9 with at most AmountScale decimals.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("amount must be greater than 0")
	}
	if !amount.LessThan(maxAmount) {
		return fmt.Errorf("amount must be less than %s", maxAmount.String())
	}
	if !amount.Equal(amount.Truncate(AmountScale)) {
		return fmt.Errorf("amount must have at most %d decimal places", AmountScale)
	}
	return nil
}
