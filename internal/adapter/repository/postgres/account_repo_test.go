package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/cashledger/internal/domain"
)

var accountRowColumns = []string{
	"id", "name", "type", "partner_id", "currency", "restricted", "state",
	"mandatory_withdrawal", "fee_mode", "fee_on_receive", "fee_on_send", "fee_currency",
	"version", "created_at", "updated_at", "coins",
}

func TestAccountRepositoryCreateWithCoins(t *testing.T) {
	pool := newMockPool(t)
	repo := &AccountRepository{db: pool}
	tx := beginTx(t, pool)

	now := time.Now().UTC()
	account := &domain.Account{
		ID:        "wallet-1",
		Name:      "Hot wallet",
		Type:      domain.AccountTypeWallet,
		PartnerID: "partner-1",
		Currency:  domain.USD,
		Coins:     []string{"BTC", "USDT"},
		State:     domain.AccountStateInUse,
		CreatedAt: now,
		UpdatedAt: now,
	}

	pool.ExpectExec("INSERT INTO accounts").WithArgs(anyArgs(15)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	pool.ExpectExec("INSERT INTO account_coins").WithArgs("wallet-1", []string{"BTC", "USDT"}).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))

	require.NoError(t, repo.Create(context.Background(), tx, account))
	assertExpectations(t, pool)
}

func TestAccountRepositoryCreateDuplicate(t *testing.T) {
	pool := newMockPool(t)
	repo := &AccountRepository{db: pool}
	tx := beginTx(t, pool)

	pool.ExpectExec("INSERT INTO accounts").WithArgs(anyArgs(15)...).
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation, ConstraintName: "accounts_pkey"})

	err := repo.Create(context.Background(), tx, &domain.Account{ID: "bank-eur", Type: domain.AccountTypeBankAccount})
	assert.ErrorIs(t, err, domain.ErrAccountExists)
	assertExpectations(t, pool)
}

func TestAccountRepositoryGetByIDScansFee(t *testing.T) {
	pool := newMockPool(t)
	repo := &AccountRepository{db: pool}

	now := time.Now().UTC()
	mode := "PERCENTAGE"
	rows := pgxmock.NewRows(accountRowColumns).AddRow(
		"bank-brl", "Banco", "BANK_ACCOUNT", "partner-1", "BRL", false, "IN_USE",
		false, &mode, decimal.RequireFromString("0.5"), decimal.NewFromInt(1), "",
		int64(3), now, now, []string{},
	)
	pool.ExpectQuery("FROM accounts a WHERE a.id").WithArgs("bank-brl").WillReturnRows(rows)

	account, err := repo.GetByID(context.Background(), "bank-brl")
	require.NoError(t, err)

	assert.Equal(t, domain.AccountTypeBankAccount, account.Type)
	assert.Equal(t, domain.AccountStateInUse, account.State)
	assert.Nil(t, account.Coins)
	require.NotNil(t, account.Fee)
	assert.Equal(t, domain.FeeModePercentage, account.Fee.Mode)
	assert.True(t, account.Fee.OnSend.Equal(decimal.NewFromInt(1)))
	assert.True(t, account.Fee.OnReceive.Equal(decimal.RequireFromString("0.5")))
	assert.Equal(t, int64(3), account.Version)
	assertExpectations(t, pool)
}

func TestAccountRepositoryGetByIDNotFound(t *testing.T) {
	pool := newMockPool(t)
	repo := &AccountRepository{db: pool}

	pool.ExpectQuery("FROM accounts a WHERE a.id").WithArgs("missing").WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestAccountRepositoryGetByIDsForUpdate(t *testing.T) {
	pool := newMockPool(t)
	repo := &AccountRepository{db: pool}
	tx := beginTx(t, pool)

	now := time.Now().UTC()
	rows := pgxmock.NewRows(accountRowColumns).
		AddRow("bank-eur", "EUR bank", "BANK_ACCOUNT", "partner-1", "EUR", false, "IN_USE",
			false, nil, decimal.Zero, decimal.Zero, "", int64(0), now, now, []string{}).
		AddRow("wallet-1", "Wallet", "WALLET", "partner-1", "USD", false, "IN_USE",
			false, nil, decimal.Zero, decimal.Zero, "", int64(0), now, now, []string{"BTC"})
	pool.ExpectQuery("ORDER BY a.id FOR UPDATE").WithArgs([]string{"bank-eur", "wallet-1"}).WillReturnRows(rows)

	accounts, err := repo.GetByIDsForUpdate(context.Background(), tx, []string{"bank-eur", "wallet-1"})
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "bank-eur", accounts[0].ID)
	assert.Nil(t, accounts[0].Fee)
	assert.Equal(t, []string{"BTC"}, accounts[1].Coins)
	assertExpectations(t, pool)
}

func TestAccountRepositoryUpdateState(t *testing.T) {
	pool := newMockPool(t)
	repo := &AccountRepository{db: pool}
	tx := beginTx(t, pool)

	account := &domain.Account{ID: "bookie-eur", State: domain.AccountStateReleased, MandatoryWithdrawal: true, Version: 4}

	pool.ExpectExec("UPDATE accounts").
		WithArgs("bookie-eur", "RELEASED", true, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	pool.ExpectExec("UPDATE accounts").
		WithArgs("gone", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.NoError(t, repo.UpdateState(context.Background(), tx, account))
	assert.Equal(t, int64(5), account.Version)

	err := repo.UpdateState(context.Background(), tx, &domain.Account{ID: "gone"})
	assert.True(t, errors.Is(err, domain.ErrAccountNotFound))
	assertExpectations(t, pool)
}
