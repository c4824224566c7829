package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/iho/cashledger/internal/domain"
	"github.com/iho/cashledger/internal/usecase"
	"github.com/iho/cashledger/internal/usecase/mocks"
)

func TestAccountUseCase_CreateAccount(t *testing.T) {
	tests := []struct {
		name    string
		input   usecase.CreateAccountInput
		wantErr error
		check   func(t *testing.T, a *domain.Account)
	}{
		{
			name:  "bank account",
			input: usecase.CreateAccountInput{Name: "Main EUR", Type: domain.AccountTypeBankAccount, PartnerID: "p1", Currency: "eur"},
			check: func(t *testing.T, a *domain.Account) {
				assert.Equal(t, "EUR", a.Currency)
				assert.Equal(t, domain.AccountStateInUse, a.State)
				assert.NotEmpty(t, a.ID)
			},
		},
		{
			name:  "wallet operates in USD",
			input: usecase.CreateAccountInput{Name: "Hot", Type: domain.AccountTypeWallet, PartnerID: "p1", Coins: []string{"btc", "usdt"}},
			check: func(t *testing.T, a *domain.Account) {
				assert.Equal(t, "USD", a.Currency)
				assert.Equal(t, []string{"BTC", "USDT"}, a.Coins)
			},
		},
		{
			name:  "cash pool uses the fixed id",
			input: usecase.CreateAccountInput{ID: "ignored", Name: "Pool", Type: domain.AccountTypeCashPool},
			check: func(t *testing.T, a *domain.Account) {
				assert.Equal(t, domain.CashPoolAccountID, a.ID)
			},
		},
		{
			name:    "bank without currency",
			input:   usecase.CreateAccountInput{Name: "Broken", Type: domain.AccountTypeBankAccount, PartnerID: "p1"},
			wantErr: domain.ErrInvalidCurrency,
		},
		{
			name:    "wallet without coins",
			input:   usecase.CreateAccountInput{Name: "Empty", Type: domain.AccountTypeWallet, PartnerID: "p1"},
			wantErr: domain.ErrInvalidCoin,
		},
		{
			name: "fee on a bookmaker",
			input: usecase.CreateAccountInput{
				Name: "Bookie", Type: domain.AccountTypeBookmaker, Currency: "USD",
				Fee: &domain.FeeConfig{Mode: domain.FeeModeFixed, OnSend: dec("1")},
			},
			wantErr: domain.ErrInvalidFeeConfig,
		},
		{
			name:    "unknown type",
			input:   usecase.CreateAccountInput{Name: "What", Type: "SAFE"},
			wantErr: domain.ErrInvalidAccountType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := mocks.NewMemoryStore()
			uc := usecase.NewAccountUseCase(store.TxManager(), store.Repositories(), &mocks.SequentialIDs{Prefix: "acc"}, nil)

			account, err := uc.CreateAccount(context.Background(), tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, 0, store.Begins)
				return
			}

			require.NoError(t, err)
			tt.check(t, account)

			stored, err := uc.GetAccount(context.Background(), account.ID)
			require.NoError(t, err)
			assert.Equal(t, account.Type, stored.Type)

			events := store.OutboxEvents()
			require.Len(t, events, 1)
			assert.Equal(t, domain.EventTypeAccountCreated, events[0].EventType)
			require.Len(t, store.AuditLogs(), 1)
		})
	}
}

func TestAccountUseCase_CreateAccount_RepositoryError(t *testing.T) {
	ctrl := gomock.NewController(t)

	txManager := mocks.NewMockTransactionManager(ctrl)
	tx := mocks.NewMockTransaction(ctrl)
	accountRepo := mocks.NewMockAccountRepository(ctrl)
	idGen := mocks.NewMockIDGenerator(ctrl)

	idGen.EXPECT().Generate().Return("acc-1")
	txManager.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	accountRepo.EXPECT().Create(gomock.Any(), tx, gomock.Any()).Return(domain.ErrAccountExists)
	tx.EXPECT().Rollback(gomock.Any()).Return(nil)

	uc := usecase.NewAccountUseCase(txManager, usecase.Repositories{Accounts: accountRepo}, idGen, nil)

	_, err := uc.CreateAccount(context.Background(), usecase.CreateAccountInput{
		Name: "Main", Type: domain.AccountTypeBookmaker, Currency: "USD",
	})
	assert.ErrorIs(t, err, domain.ErrAccountExists)
}

func TestAccountUseCase_EnsureCashPool(t *testing.T) {
	store := mocks.NewMemoryStore()
	uc := usecase.NewAccountUseCase(store.TxManager(), store.Repositories(), &mocks.SequentialIDs{}, nil)

	first, err := uc.EnsureCashPool(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.CashPoolAccountID, first.ID)

	second, err := uc.EnsureCashPool(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, store.OutboxEvents(), 1)
}

func TestAccountUseCase_GetBalances(t *testing.T) {
	ctrl := gomock.NewController(t)
	accountRepo := mocks.NewMockAccountRepository(ctrl)
	balanceRepo := mocks.NewMockBalanceRepository(ctrl)

	uc := usecase.NewAccountUseCase(nil, usecase.Repositories{Accounts: accountRepo, Balances: balanceRepo}, nil, nil)

	t.Run("wallet balances per coin", func(t *testing.T) {
		accountRepo.EXPECT().GetByID(gomock.Any(), "wallet-1").
			Return(&domain.Account{ID: "wallet-1", Type: domain.AccountTypeWallet}, nil)
		balanceRepo.EXPECT().GetByAccount(gomock.Any(), "wallet-1").Return([]*domain.Balance{
			{AccountID: "wallet-1", Asset: "BTC", Total: dec("1000"), Locked: dec("150")},
			{AccountID: "wallet-1", Asset: "USDT", Total: dec("20")},
		}, nil)

		views, err := uc.GetBalances(context.Background(), "wallet-1")
		require.NoError(t, err)
		require.Len(t, views, 2)
		assert.Equal(t, "BTC", views[0].Asset)
		assert.True(t, views[0].Available.Equal(dec("850")))
	})

	t.Run("investor keeps none", func(t *testing.T) {
		accountRepo.EXPECT().GetByID(gomock.Any(), "investor-1").
			Return(&domain.Account{ID: "investor-1", Type: domain.AccountTypeInvestor}, nil)

		views, err := uc.GetBalances(context.Background(), "investor-1")
		require.NoError(t, err)
		assert.Empty(t, views)
	})

	t.Run("unknown account", func(t *testing.T) {
		accountRepo.EXPECT().GetByID(gomock.Any(), "missing").Return(nil, domain.ErrAccountNotFound)

		_, err := uc.GetBalances(context.Background(), "missing")
		assert.True(t, errors.Is(err, domain.ErrAccountNotFound))
	})
}

func TestAccountUseCase_ListAccounts(t *testing.T) {
	ctrl := gomock.NewController(t)
	accountRepo := mocks.NewMockAccountRepository(ctrl)
	uc := usecase.NewAccountUseCase(nil, usecase.Repositories{Accounts: accountRepo}, nil, nil)

	accountRepo.EXPECT().List(gomock.Any(), domain.AccountTypeWallet, 100, 0).Return([]*domain.Account{}, nil)

	_, err := uc.ListAccounts(context.Background(), usecase.ListAccountsInput{Type: domain.AccountTypeWallet, Limit: 500})
	require.NoError(t, err)
}
