package domain

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestLockOrder(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, LockOrder("b", "a"))
	assert.Equal(t, []string{"a"}, LockOrder("a", "a"))
	assert.Equal(t, []string{"a", "b", "c"}, LockOrder("c", "a", "b", "a"))
}

func TestNewAccountValidate(t *testing.T) {
	ok := NewAccount{Name: "wallet", UserID: "u-1", OpeningBalance: decimal.RequireFromString("10.50")}
	assert.NoError(t, ok.Validate())

	bad := ok
	bad.Name = "  "
	assert.ErrorIs(t, bad.Validate(), ErrInvalidAccount)

	bad = ok
	bad.Name = strings.Repeat("x", MaxAccountNameLength+1)
	assert.ErrorIs(t, bad.Validate(), ErrInvalidAccount)

	bad = ok
	bad.UserID = ""
	assert.ErrorIs(t, bad.Validate(), ErrInvalidAccount)

	bad = ok
	bad.OpeningBalance = decimal.RequireFromString("0.001")
	assert.ErrorIs(t, bad.Validate(), ErrAmountPrecision)

	negative := ok
	negative.OpeningBalance = decimal.RequireFromString("-25.00")
	assert.NoError(t, negative.Validate())
}

func TestExpectedBalance(t *testing.T) {
	entries := []Entry{
		{Type: EntryTypeCredit, Amount: decimal.RequireFromString("100.00")},
		{Type: EntryTypeDebit, Amount: decimal.RequireFromString("40.00")},
		{Type: EntryTypeDebit, Amount: decimal.RequireFromString("0.01")},
	}
	got := ExpectedBalance(decimal.RequireFromString("5.00"), entries)
	assert.True(t, got.Equal(decimal.RequireFromString("64.99")), got.String())

	check := BalanceCheck{Stored: decimal.RequireFromString("64.99"), Expected: got}
	assert.True(t, check.Consistent())
}
