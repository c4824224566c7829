package usecase_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/cashledger/internal/domain"
	"github.com/iho/cashledger/internal/usecase"
)

func validDraft() domain.MovementDraft {
	return domain.MovementDraft{
		Kind:         domain.EntryKindTransfer,
		Origin:       domain.BankAccountParty(partnerID, "bank-eur"),
		Destination:  domain.BankAccountParty(partnerID, "bank-usd"),
		OriginAmount: dec("100"),
	}
}

func TestLedgerEntryValidator_ValidateDraft(t *testing.T) {
	v := usecase.NewLedgerEntryValidator()

	tests := []struct {
		name    string
		mutate  func(d *domain.MovementDraft)
		wantErr bool
		field   string
	}{
		{name: "valid transfer", mutate: func(d *domain.MovementDraft) {}},
		{
			name: "deposit from cash pool is not allowed",
			mutate: func(d *domain.MovementDraft) {
				d.Kind = domain.EntryKindDeposit
				d.Origin = domain.CashPoolParty()
				d.Destination = domain.BookmakerParty("bookie-usd")
			},
			wantErr: true,
			field:   "destination",
		},
		{
			name:    "adjustment cannot be submitted",
			mutate:  func(d *domain.MovementDraft) { d.Kind = domain.EntryKindAdjustment },
			wantErr: true,
			field:   "kind",
		},
		{
			name:    "same account",
			mutate:  func(d *domain.MovementDraft) { d.Destination = d.Origin },
			wantErr: true,
			field:   "destination",
		},
		{
			name:    "zero amount",
			mutate:  func(d *domain.MovementDraft) { d.OriginAmount = dec("0") },
			wantErr: true,
			field:   "originAmount",
		},
		{
			name: "crypto without coin",
			mutate: func(d *domain.MovementDraft) {
				d.Destination = domain.WalletParty(partnerID, "wallet-1")
			},
			wantErr: true,
			field:   "coinSymbol",
		},
		{
			name: "fiat family with a wallet",
			mutate: func(d *domain.MovementDraft) {
				d.Destination = domain.WalletParty(partnerID, "wallet-1")
				d.Family = domain.CurrencyFamilyFiat
				d.CoinSymbol = "BTC"
				d.CoinQuantity = dec("0.1")
			},
			wantErr: true,
			field:   "currencyFamily",
		},
		{
			name: "investor origin needs a currency",
			mutate: func(d *domain.MovementDraft) {
				d.Kind = domain.EntryKindCapitalContribution
				d.Origin = domain.InvestorParty("investor-1")
				d.Destination = domain.CashPoolParty()
			},
			wantErr: true,
			field:   "originCurrency",
		},
		{
			name:    "unknown currency",
			mutate:  func(d *domain.MovementDraft) { d.OriginCurrency = "XXZ" },
			wantErr: true,
			field:   "originCurrency",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDraft()
			tt.mutate(&d)
			err := v.ValidateDraft(v.Normalize(d))

			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrValidation))

			var verr *domain.ValidationError
			require.True(t, errors.As(err, &verr))
			fields := make([]string, 0, len(verr.Fields))
			for _, f := range verr.Fields {
				fields = append(fields, f.Field)
			}
			assert.Contains(t, fields, tt.field)
		})
	}
}

func TestLedgerEntryValidator_Resolve(t *testing.T) {
	v := usecase.NewLedgerEntryValidator()
	accounts := map[string]*domain.Account{
		"bank-eur":   {ID: "bank-eur", Type: domain.AccountTypeBankAccount, PartnerID: partnerID, Currency: "EUR"},
		"bank-usd":   {ID: "bank-usd", Type: domain.AccountTypeBankAccount, PartnerID: partnerID, Currency: "USD"},
		"wallet-1":   {ID: "wallet-1", Type: domain.AccountTypeWallet, PartnerID: partnerID, Coins: []string{"BTC"}},
		"investor-1": {ID: "investor-1", Type: domain.AccountTypeInvestor},
	}
	accounts[domain.CashPoolAccountID] = &domain.Account{ID: domain.CashPoolAccountID, Type: domain.AccountTypeCashPool}

	t.Run("bank to bank takes destination currency", func(t *testing.T) {
		vm, err := v.Resolve(v.Normalize(validDraft()), accounts)
		require.NoError(t, err)
		assert.Equal(t, "EUR", vm.OriginCurrency)
		assert.Equal(t, "USD", vm.CanonicalCurrency)
		assert.Equal(t, "EUR", vm.OriginAsset)
		assert.Equal(t, "USD", vm.DestinationAsset)
	})

	t.Run("origin currency must match the account", func(t *testing.T) {
		d := validDraft()
		d.OriginCurrency = "USD"
		_, err := v.Resolve(v.Normalize(d), accounts)
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("wrong partner", func(t *testing.T) {
		d := validDraft()
		d.Origin.PartnerID = "partner-2"
		_, err := v.Resolve(v.Normalize(d), accounts)
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("unknown account", func(t *testing.T) {
		d := validDraft()
		d.Destination = domain.BankAccountParty(partnerID, "bank-gbp")
		_, err := v.Resolve(v.Normalize(d), accounts)
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("wallet must hold the coin", func(t *testing.T) {
		d := validDraft()
		d.Destination = domain.WalletParty(partnerID, "wallet-1")
		d.CoinSymbol = "ETH"
		d.CoinQuantity = dec("1")
		_, err := v.Resolve(v.Normalize(d), accounts)
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("amount finer than the origin currency", func(t *testing.T) {
		d := validDraft()
		d.OriginAmount = dec("0.004")
		_, err := v.Resolve(v.Normalize(d), accounts)
		assert.ErrorIs(t, err, domain.ErrValidation)

		d.OriginAmount = dec("0.010")
		_, err = v.Resolve(v.Normalize(d), accounts)
		assert.NoError(t, err)
	})

	t.Run("yen amounts are whole", func(t *testing.T) {
		d := domain.MovementDraft{
			Kind:           domain.EntryKindCapitalContribution,
			Origin:         domain.InvestorParty("investor-1"),
			Destination:    domain.CashPoolParty(),
			OriginCurrency: "JPY",
			OriginAmount:   dec("1500.5"),
		}
		_, err := v.Resolve(v.Normalize(d), accounts)
		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "originAmount", verr.Fields[0].Field)
	})

	t.Run("cash pool destination follows the origin currency", func(t *testing.T) {
		d := domain.MovementDraft{
			Kind:           domain.EntryKindCapitalContribution,
			Origin:         domain.InvestorParty("investor-1"),
			Destination:    domain.CashPoolParty(),
			OriginCurrency: "EUR",
			OriginAmount:   dec("1000"),
		}
		vm, err := v.Resolve(v.Normalize(d), accounts)
		require.NoError(t, err)
		assert.Equal(t, "EUR", vm.CanonicalCurrency)
		assert.Equal(t, "", vm.OriginAsset)
		assert.Equal(t, "EUR", vm.DestinationAsset)
	})
}

func TestLedgerEntryValidator_ResolveReleasedAccount(t *testing.T) {
	v := usecase.NewLedgerEntryValidator()
	accounts := map[string]*domain.Account{
		"bank-eur":   {ID: "bank-eur", Type: domain.AccountTypeBankAccount, PartnerID: partnerID, Currency: "EUR"},
		"bookie-eur": {ID: "bookie-eur", Type: domain.AccountTypeBookmaker, Currency: "EUR", Restricted: true, State: domain.AccountStateReleased, MandatoryWithdrawal: true},
		"bookie-old": {ID: "bookie-old", Type: domain.AccountTypeBookmaker, Currency: "EUR", State: domain.AccountStateReleased},
	}

	deposit := func(bookie string) domain.MovementDraft {
		return domain.MovementDraft{
			Kind:         domain.EntryKindDeposit,
			Origin:       domain.BankAccountParty(partnerID, "bank-eur"),
			Destination:  domain.BookmakerParty(bookie),
			OriginAmount: dec("50"),
		}
	}

	_, err := v.Resolve(v.Normalize(deposit("bookie-eur")), accounts)
	assert.ErrorIs(t, err, domain.ErrAccountReleased)

	_, err = v.Resolve(v.Normalize(deposit("bookie-old")), accounts)
	assert.NoError(t, err, "a released account without leftover can be reused")

	_, err = v.Resolve(v.Normalize(domain.MovementDraft{
		Kind:         domain.EntryKindWithdrawal,
		Origin:       domain.BookmakerParty("bookie-eur"),
		Destination:  domain.BankAccountParty(partnerID, "bank-eur"),
		OriginAmount: dec("50"),
	}), accounts)
	assert.NoError(t, err)
}

func TestLedgerEntryValidator_CheckSufficiency(t *testing.T) {
	v := usecase.NewLedgerEntryValidator()
	vm := &domain.ValidatedMovement{
		OriginAccount: &domain.Account{ID: "bank-eur", Type: domain.AccountTypeBankAccount, Currency: "EUR"},
	}
	balance := domain.NewBalance("bank-eur", "EUR")
	balance.Total = dec("100")

	err := v.CheckSufficiency(vm, balance, dec("120"))
	require.Error(t, err)
	var insufficient *domain.InsufficientBalanceError
	require.True(t, errors.As(err, &insufficient))
	assert.True(t, insufficient.Available.Equal(dec("100")))
	assert.True(t, insufficient.Requested.Equal(dec("120")))

	assert.NoError(t, v.CheckSufficiency(vm, balance, dec("80")))

	balance.Lock(dec("30"))
	assert.ErrorIs(t, v.CheckSufficiency(vm, balance, dec("80")), domain.ErrInsufficientBalance)

	investor := &domain.ValidatedMovement{OriginAccount: &domain.Account{ID: "investor-1", Type: domain.AccountTypeInvestor}}
	assert.NoError(t, v.CheckSufficiency(investor, domain.NewBalance("investor-1", "EUR"), dec("1000000")))
}
