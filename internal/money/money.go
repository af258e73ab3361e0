package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// ParseCurrency validates an ISO 4217 code and returns it upper-cased.
func ParseCurrency(code string) (string, error) {
	unit, err := currency.ParseISO(strings.TrimSpace(code))
	if err != nil {
		return "", fmt.Errorf("invalid currency %q: %w", code, err)
	}
	return unit.String(), nil
}

// Scale is the number of minor-unit digits of the currency, 2 when unknown.
func Scale(code string) int32 {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return 2
	}
	scale, _ := currency.Standard.Rounding(unit)
	return int32(scale)
}

// Round rounds an amount to the currency's minor unit.
func Round(amount decimal.Decimal, code string) decimal.Decimal {
	return amount.Round(Scale(code))
}

// ToMinor converts an amount to the integer minor units payment providers
// expect (cents for USD, yen for JPY).
func ToMinor(amount decimal.Decimal, code string) int64 {
	return Round(amount, code).Shift(Scale(code)).IntPart()
}

func FromFloat(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

// Float converts back for storage; the value is rounded first so stored
// amounts never carry float noise past the minor unit.
func Float(amount decimal.Decimal, code string) float64 {
	f, _ := Round(amount, code).Float64()
	return f
}

func Format(amount decimal.Decimal, code string) string {
	return Round(amount, code).StringFixed(Scale(code))
}
