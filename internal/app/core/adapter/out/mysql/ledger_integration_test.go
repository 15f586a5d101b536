//go:build integration

package mysql

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"
	"go.uber.org/zap"

	"github.com/JoeShih716/go-entry-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-entry-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-entry-ledger/pkg/mysql"
)

// setupMySQL 啟動一次性的 MySQL 容器並回傳已遷移好的 ledger
func setupMySQL(t *testing.T) *MySQLLedger {
	t.Helper()
	ctx := context.Background()

	container, err := tcmysql.Run(ctx,
		"mysql:8.0",
		tcmysql.WithDatabase("ledger"),
		tcmysql.WithUsername("ledger"),
		tcmysql.WithPassword("ledger"),
	)
	t.Cleanup(func() {
		assert.NoError(t, testcontainers.TerminateContainer(container))
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "3306/tcp")
	require.NoError(t, err)
	portNum, err := strconv.Atoi(port.Port())
	require.NoError(t, err)

	client, err := mysql.NewClient(mysql.Config{
		Host:            host,
		Port:            portNum,
		User:            "ledger",
		Password:        "ledger",
		DBName:          "ledger",
		MaxOpenConns:    20,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Minute,
		ConnectRetries:  5,
		RetryInterval:   time.Second,
		LogLevel:        "silent",
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	ledger := NewMySQLLedger(client)
	require.NoError(t, ledger.Migrate(ctx))
	return ledger
}

func newCore(ledger *MySQLLedger) *usecase.CoreUseCase {
	return usecase.NewCoreUseCase(ledger, ledger, ledger.Entries(), zap.NewNop())
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestIntegration_MySQL_EndToEnd(t *testing.T) {
	ledger := setupMySQL(t)
	core := newCore(ledger)
	ctx := context.Background()

	acc, err := core.OpenAccount(ctx, domain.NewAccount{Name: "main", UserID: "user-1"})
	require.NoError(t, err)

	credit, err := core.CreateEntry(ctx, domain.NewEntry{Type: domain.EntryTypeCredit, Amount: money("100.00"), AccountID: acc.ID})
	require.NoError(t, err)
	debit, err := core.CreateEntry(ctx, domain.NewEntry{Type: domain.EntryTypeDebit, Amount: money("40.00"), AccountID: acc.ID})
	require.NoError(t, err)

	amount := money("25.00")
	_, err = core.UpdateEntry(ctx, debit.ID, domain.EntryPatch{Amount: &amount})
	require.NoError(t, err)

	require.NoError(t, core.DeleteEntry(ctx, credit.ID))

	got, err := core.GetAccount(ctx, acc.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(money("-25.00")), got.Balance.String())

	_, err = core.GetEntry(ctx, credit.ID)
	assert.ErrorIs(t, err, domain.ErrEntryNotFound)

	check, err := core.CheckBalance(ctx, acc.ID)
	require.NoError(t, err)
	assert.True(t, check.Consistent())
}

func TestIntegration_MySQL_CrossAccountMove(t *testing.T) {
	ledger := setupMySQL(t)
	core := newCore(ledger)
	ctx := context.Background()

	a, err := core.OpenAccount(ctx, domain.NewAccount{Name: "a", UserID: "user-1", OpeningBalance: money("150.00")})
	require.NoError(t, err)
	b, err := core.OpenAccount(ctx, domain.NewAccount{Name: "b", UserID: "user-1", OpeningBalance: money("200.00")})
	require.NoError(t, err)

	debit, err := core.CreateEntry(ctx, domain.NewEntry{Type: domain.EntryTypeDebit, Amount: money("50.00"), AccountID: a.ID})
	require.NoError(t, err)

	moved, err := core.UpdateEntry(ctx, debit.ID, domain.EntryPatch{AccountID: &b.ID})
	require.NoError(t, err)
	assert.Equal(t, b.ID, moved.AccountID)

	gotA, err := core.GetAccount(ctx, a.ID)
	require.NoError(t, err)
	gotB, err := core.GetAccount(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, gotA.Balance.Equal(money("150.00")), gotA.Balance.String())
	assert.True(t, gotB.Balance.Equal(money("150.00")), gotB.Balance.String())

	missing := "00000000-0000-0000-0000-000000000000"
	_, err = core.UpdateEntry(ctx, debit.ID, domain.EntryPatch{AccountID: &missing})
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestIntegration_MySQL_ConcurrentCreates(t *testing.T) {
	ledger := setupMySQL(t)
	core := newCore(ledger)
	ctx := context.Background()

	acc, err := core.OpenAccount(ctx, domain.NewAccount{Name: "hot", UserID: "user-1"})
	require.NoError(t, err)

	const workers = 20
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			in := domain.NewEntry{Type: domain.EntryTypeCredit, Amount: money("10.00"), AccountID: acc.ID}
			if i%2 == 1 {
				in = domain.NewEntry{Type: domain.EntryTypeDebit, Amount: money("4.00"), AccountID: acc.ID}
			}
			_, err := core.CreateEntry(ctx, in)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := core.GetAccount(ctx, acc.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(money("60.00")), got.Balance.String())
}

func TestIntegration_MySQL_DuplicateAccount(t *testing.T) {
	ledger := setupMySQL(t)
	core := newCore(ledger)
	ctx := context.Background()

	_, err := core.OpenAccount(ctx, domain.NewAccount{Name: "dup", UserID: "user-1"})
	require.NoError(t, err)
	_, err = core.OpenAccount(ctx, domain.NewAccount{Name: "dup", UserID: "user-1"})
	assert.ErrorIs(t, err, domain.ErrAccountAlreadyExists)
}
