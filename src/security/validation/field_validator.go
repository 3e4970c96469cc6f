package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

var ErrValidationFailed = fmt.Errorf("validation failed")

const (
	DefaultMaxStringLength = 255
	MaxSymbolLength        = 20
	MaxNoteLength          = 2048
)

// ValidateStringNotEmpty checks if a string is not empty after trimming.
func ValidateStringNotEmpty(s, fieldName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s cannot be empty", ErrValidationFailed, fieldName)
	}
	return nil
}

// ValidateStringMaxLength checks if a string's UTF-8 character count is within max bounds.
func ValidateStringMaxLength(s string, maxLength int, fieldName string) error {
	if utf8.RuneCountInString(s) > maxLength {
		return fmt.Errorf("%w: %s exceeds maximum length of %d characters", ErrValidationFailed, fieldName, maxLength)
	}
	return nil
}

// ValidatePositiveDecimal checks that a monetary value is strictly positive.
func ValidatePositiveDecimal(d decimal.Decimal, fieldName string) error {
	if d.Sign() <= 0 {
		return fmt.Errorf("%w: %s must be greater than zero", ErrValidationFailed, fieldName)
	}
	return nil
}

// ValidateNonNegativeDecimal checks that a monetary value is zero or greater.
func ValidateNonNegativeDecimal(d decimal.Decimal, fieldName string) error {
	if d.Sign() < 0 {
		return fmt.Errorf("%w: %s cannot be negative", ErrValidationFailed, fieldName)
	}
	return nil
}

// ValidateOneOf checks membership in an explicit allow-list of values.
func ValidateOneOf(s, fieldName string, allowed []string) error {
	for _, a := range allowed {
		if s == a {
			return nil
		}
	}
	return fmt.Errorf("%w: %s must be one of %s", ErrValidationFailed, fieldName, strings.Join(allowed, ", "))
}
