package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JoeShih716/go-entry-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-entry-ledger/internal/app/core/usecase"
)

func openAccount(t *testing.T, m *MutexLedger, name string, balance string) *domain.Account {
	t.Helper()
	acc, err := m.Create(context.Background(), nil, domain.NewAccount{
		Name:           name,
		UserID:         "user-1",
		OpeningBalance: decimal.RequireFromString(balance),
	})
	require.NoError(t, err)
	return acc
}

func TestMutexLedger_CreateAndGet(t *testing.T) {
	m := NewMutexLedger()
	acc := openAccount(t, m, "cash", "12.50")

	got, err := m.Get(context.Background(), nil, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, "cash", got.Name)
	assert.True(t, got.Balance.Equal(decimal.RequireFromString("12.50")))
	assert.True(t, got.OpeningBalance.Equal(got.Balance))

	_, err = m.Get(context.Background(), nil, "missing")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestMutexLedger_DuplicateAccountName(t *testing.T) {
	m := NewMutexLedger()
	openAccount(t, m, "cash", "0")

	_, err := m.Create(context.Background(), nil, domain.NewAccount{Name: "cash", UserID: "user-1"})
	assert.ErrorIs(t, err, domain.ErrAccountAlreadyExists)

	_, err = m.Create(context.Background(), nil, domain.NewAccount{Name: "cash", UserID: "user-2"})
	assert.NoError(t, err)
}

func TestMutexLedger_RunRollsBackOnError(t *testing.T) {
	m := NewMutexLedger()
	acc := openAccount(t, m, "cash", "100")
	boom := errors.New("boom")

	err := m.Run(context.Background(), nil, func(ctx context.Context, unit usecase.Unit) error {
		if _, err := m.SetBalance(ctx, unit, acc.ID, decimal.NewFromInt(1)); err != nil {
			return err
		}
		if _, err := m.Entries().Insert(ctx, unit, domain.EntryTypeCredit, decimal.NewFromInt(1), acc.ID); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := m.Get(context.Background(), nil, acc.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(100)))

	entries, err := m.Entries().ListByAccount(context.Background(), nil, acc.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestMutexLedger_UnitSeesItsOwnWrites(t *testing.T) {
	m := NewMutexLedger()
	acc := openAccount(t, m, "cash", "0")
	entries := m.Entries()

	err := m.Run(context.Background(), nil, func(ctx context.Context, unit usecase.Unit) error {
		e, err := entries.Insert(ctx, unit, domain.EntryTypeDebit, decimal.NewFromInt(5), acc.ID)
		require.NoError(t, err)

		listed, err := entries.ListByAccount(ctx, unit, acc.ID)
		require.NoError(t, err)
		assert.Len(t, listed, 1)

		require.NoError(t, entries.Delete(ctx, unit, e.ID))
		_, err = entries.Get(ctx, unit, e.ID)
		assert.ErrorIs(t, err, domain.ErrEntryNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestMutexLedger_NestedRunReusesParent(t *testing.T) {
	m := NewMutexLedger()
	acc := openAccount(t, m, "cash", "0")

	err := m.Run(context.Background(), nil, func(ctx context.Context, outer usecase.Unit) error {
		return m.Run(ctx, outer, func(ctx context.Context, inner usecase.Unit) error {
			assert.Equal(t, outer.ID(), inner.ID())
			_, err := m.SetBalance(ctx, inner, acc.ID, decimal.NewFromInt(7))
			return err
		})
	})
	require.NoError(t, err)

	got, err := m.Get(context.Background(), nil, acc.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(7)))
}

func TestMutexLedger_ClosedAndForeignUnits(t *testing.T) {
	m := NewMutexLedger()
	acc := openAccount(t, m, "cash", "0")

	var leaked usecase.Unit
	require.NoError(t, m.Run(context.Background(), nil, func(_ context.Context, unit usecase.Unit) error {
		leaked = unit
		return nil
	}))
	_, err := m.Get(context.Background(), leaked, acc.ID)
	assert.ErrorIs(t, err, domain.ErrUnitClosed)

	other := NewMutexLedger()
	err = other.Run(context.Background(), nil, func(ctx context.Context, unit usecase.Unit) error {
		_, err := m.Get(ctx, unit, acc.ID)
		return err
	})
	assert.ErrorIs(t, err, domain.ErrForeignUnit)
}

func TestMutexLedger_CancelBeforeOpenIsNoop(t *testing.T) {
	m := NewMutexLedger()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := m.Run(ctx, nil, func(context.Context, usecase.Unit) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestMutexLedger_CancelAfterWriteRollsBack(t *testing.T) {
	m := NewMutexLedger()
	acc := openAccount(t, m, "cash", "10")
	ctx, cancel := context.WithCancel(context.Background())

	err := m.Run(ctx, nil, func(ctx context.Context, unit usecase.Unit) error {
		if _, err := m.SetBalance(ctx, unit, acc.ID, decimal.NewFromInt(99)); err != nil {
			return err
		}
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)

	got, err := m.Get(context.Background(), nil, acc.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(10)))
}

func TestEntries_UpdateAndDelete(t *testing.T) {
	m := NewMutexLedger()
	a := openAccount(t, m, "a", "0")
	b := openAccount(t, m, "b", "0")
	entries := m.Entries()
	ctx := context.Background()

	e, err := entries.Insert(ctx, nil, domain.EntryTypeCredit, decimal.NewFromInt(3), a.ID)
	require.NoError(t, err)

	typ := domain.EntryTypeDebit
	updated, err := entries.Update(ctx, nil, e.ID, domain.EntryPatch{Type: &typ, AccountID: &b.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.EntryTypeDebit, updated.Type)
	assert.Equal(t, b.ID, updated.AccountID)
	assert.True(t, updated.Amount.Equal(decimal.NewFromInt(3)))

	missing := "nope"
	_, err = entries.Update(ctx, nil, e.ID, domain.EntryPatch{AccountID: &missing})
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	require.NoError(t, entries.Delete(ctx, nil, e.ID))
	assert.ErrorIs(t, entries.Delete(ctx, nil, e.ID), domain.ErrEntryNotFound)

	_, err = entries.Insert(ctx, nil, domain.EntryTypeCredit, decimal.NewFromInt(1), "nope")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestMutexLedger_Ping(t *testing.T) {
	m := NewMutexLedger()
	assert.NoError(t, m.Ping(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.Ping(ctx), context.Canceled)
}
