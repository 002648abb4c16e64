package validation

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail("anna.keller@example.ch"))
	assert.NoError(t, ValidateEmail("  UPPER@Example.COM  "))
	assert.Error(t, ValidateEmail(""))
	assert.Error(t, ValidateEmail("no-at-sign"))
	assert.Error(t, ValidateEmail("two@@example.com"))
	assert.Error(t, ValidateEmail("user@localhost"))
}

func TestValidateUsername(t *testing.T) {
	assert.NoError(t, ValidateUsername("anna_k"))
	assert.Error(t, ValidateUsername("ab"))
	assert.Error(t, ValidateUsername("7anna"))
	assert.Error(t, ValidateUsername("anna keller"))
	assert.Error(t, ValidateUsername(""))
}

func TestValidatePassword(t *testing.T) {
	assert.NoError(t, ValidatePassword("Secret123"))
	assert.Error(t, ValidatePassword("short1A"))
	assert.Error(t, ValidatePassword("nouppercase1"))
	assert.Error(t, ValidatePassword("NOLOWERCASE1"))
	assert.Error(t, ValidatePassword("NoDigitsHere"))
}

func TestValidatePrice(t *testing.T) {
	assert.NoError(t, ValidatePrice(decimal.RequireFromString("49.90")))
	assert.Error(t, ValidatePrice(decimal.Zero))
	assert.Error(t, ValidatePrice(decimal.RequireFromString("-1")))
	assert.Error(t, ValidatePrice(decimal.NewFromInt(2_000_000)))
}

func TestValidateDisputeDescription(t *testing.T) {
	assert.NoError(t, ValidateDisputeDescription("The cleaner never showed up."))
	assert.Error(t, ValidateDisputeDescription(""))
	assert.Error(t, ValidateDisputeDescription("too short"))
}
