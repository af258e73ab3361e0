package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCurrency(t *testing.T) {
	code, err := ParseCurrency(" usd ")
	require.NoError(t, err)
	assert.Equal(t, "USD", code)

	_, err = ParseCurrency("dollars")
	assert.Error(t, err)
}

func TestToMinorHonoursCurrencyScale(t *testing.T) {
	assert.EqualValues(t, 1999, ToMinor(decimal.RequireFromString("19.99"), "USD"))
	assert.EqualValues(t, 2000, ToMinor(decimal.RequireFromString("19.995"), "USD"))
	assert.EqualValues(t, 500, ToMinor(decimal.RequireFromString("500"), "JPY"))
	assert.Equal(t, "19.90", Format(decimal.RequireFromString("19.9"), "EUR"))
}

func TestFloatAvoidsBinaryNoise(t *testing.T) {
	sum := FromFloat(0.1).Add(FromFloat(0.2))
	assert.Equal(t, 0.3, Float(sum, "USD"))
}
