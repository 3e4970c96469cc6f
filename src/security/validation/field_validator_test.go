package validation

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestValidateStringNotEmpty(t *testing.T) {
	assert.NoError(t, ValidateStringNotEmpty("RELIANCE", "Symbol"))
	assert.ErrorIs(t, ValidateStringNotEmpty("   ", "Symbol"), ErrValidationFailed)
}

func TestValidateStringMaxLength(t *testing.T) {
	assert.NoError(t, ValidateStringMaxLength("short", 10, "Name"))
	assert.ErrorIs(t, ValidateStringMaxLength(strings.Repeat("x", 11), 10, "Name"), ErrValidationFailed)
}

func TestValidatePositiveDecimal(t *testing.T) {
	assert.NoError(t, ValidatePositiveDecimal(decimal.NewFromInt(1), "Entry price"))
	assert.ErrorIs(t, ValidatePositiveDecimal(decimal.Zero, "Entry price"), ErrValidationFailed)
	assert.ErrorIs(t, ValidatePositiveDecimal(decimal.NewFromInt(-5), "Entry price"), ErrValidationFailed)
}

func TestValidateNonNegativeDecimal(t *testing.T) {
	assert.NoError(t, ValidateNonNegativeDecimal(decimal.Zero, "Capital"))
	assert.ErrorIs(t, ValidateNonNegativeDecimal(decimal.NewFromInt(-1), "Capital"), ErrValidationFailed)
}

func TestValidateOneOf(t *testing.T) {
	allowed := []string{"LONG", "SHORT"}
	assert.NoError(t, ValidateOneOf("LONG", "Trade type", allowed))
	assert.ErrorIs(t, ValidateOneOf("HEDGE", "Trade type", allowed), ErrValidationFailed)
}

func TestSanitizeTextStripsMarkup(t *testing.T) {
	assert.Equal(t, "hello", SanitizeText("<script>alert(1)</script>hello"))
	assert.Equal(t, "plain text", SanitizeText("plain text"))
}
