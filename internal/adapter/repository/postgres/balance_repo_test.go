package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/cashledger/internal/domain"
)

var balanceRowColumns = []string{"account_id", "asset", "total", "locked", "pending", "version", "updated_at"}

func TestBalanceRepositoryGetForUpdateLocksInKeyOrder(t *testing.T) {
	pool := newMockPool(t)
	repo := &BalanceRepository{db: pool}
	tx := beginTx(t, pool)

	keys := []domain.BalanceKey{
		{AccountID: "wallet-1", Asset: "BTC"},
		{AccountID: "bank-eur", Asset: "EUR"},
	}
	ids := []string{"bank-eur", "wallet-1"}
	assets := []string{"EUR", "BTC"}

	now := time.Now().UTC()
	pool.ExpectExec("INSERT INTO balances").WithArgs(ids, assets).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	pool.ExpectQuery("FOR UPDATE").WithArgs(ids, assets).WillReturnRows(
		pgxmock.NewRows(balanceRowColumns).
			AddRow("bank-eur", "EUR", decimal.NewFromInt(100), decimal.Zero, decimal.Zero, int64(2), now).
			AddRow("wallet-1", "BTC", decimal.NewFromInt(900), decimal.NewFromInt(150), decimal.Zero, int64(7), now),
	)

	balances, err := repo.GetForUpdate(context.Background(), tx, keys)
	require.NoError(t, err)
	require.Len(t, balances, 2)

	btc := balances[domain.BalanceKey{AccountID: "wallet-1", Asset: "BTC"}]
	require.NotNil(t, btc)
	assert.True(t, btc.Available().Equal(decimal.NewFromInt(750)))
	assertExpectations(t, pool)
}

func TestBalanceRepositoryGetForUpdateMissingRow(t *testing.T) {
	pool := newMockPool(t)
	repo := &BalanceRepository{db: pool}
	tx := beginTx(t, pool)

	pool.ExpectExec("INSERT INTO balances").WithArgs(anyArgs(2)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	pool.ExpectQuery("FOR UPDATE").WithArgs(anyArgs(2)...).
		WillReturnRows(pgxmock.NewRows(balanceRowColumns))

	_, err := repo.GetForUpdate(context.Background(), tx, []domain.BalanceKey{{AccountID: "ghost", Asset: "EUR"}})
	assert.ErrorIs(t, err, domain.ErrBalanceNotFound)
}

func TestBalanceRepositoryUpdateReturnsVersion(t *testing.T) {
	pool := newMockPool(t)
	repo := &BalanceRepository{db: pool}
	tx := beginTx(t, pool)

	now := time.Now().UTC()
	balance := &domain.Balance{
		AccountID: "bank-eur",
		Asset:     "EUR",
		Total:     decimal.NewFromInt(40),
		Locked:    decimal.Zero,
		Pending:   decimal.NewFromInt(10),
		Version:   2,
	}

	pool.ExpectQuery("UPDATE balances").
		WithArgs("bank-eur", "EUR", balance.Total, balance.Locked, balance.Pending).
		WillReturnRows(pgxmock.NewRows([]string{"version", "updated_at"}).AddRow(int64(3), now))
	pool.ExpectQuery("UPDATE balances").WithArgs(anyArgs(5)...).WillReturnError(pgx.ErrNoRows)

	require.NoError(t, repo.Update(context.Background(), tx, balance))
	assert.Equal(t, int64(3), balance.Version)
	assert.Equal(t, now, balance.UpdatedAt)

	err := repo.Update(context.Background(), tx, &domain.Balance{AccountID: "ghost", Asset: "EUR"})
	assert.ErrorIs(t, err, domain.ErrBalanceNotFound)
	assertExpectations(t, pool)
}
