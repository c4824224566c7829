package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/cashledger/internal/domain"
	"github.com/iho/cashledger/internal/usecase"
	"github.com/iho/cashledger/internal/usecase/mocks"
)

const partnerID = "partner-1"

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

// ledgerFixture wires the write paths over an in-memory store. Rates are
// quoted against BRL: 1 USD = 5 BRL, 1 EUR = 6 BRL, 1 BTC = 50,000 USD.
type ledgerFixture struct {
	store     *mocks.MemoryStore
	converter *usecase.ConversionService
	snapshots *usecase.SnapshotBuilder
	write     *usecase.LedgerWriteUseCase
	recon     *usecase.ReconciliationUseCase
	entries   *usecase.EntryUseCase
	ids       *mocks.SequentialIDs
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()

	store := mocks.NewMemoryStore()
	ctx := context.Background()
	rates := store.Rates()
	now := time.Now().UTC()

	_ = rates.UpsertRate(ctx, domain.Rate{Currency: "USD", RateToPivot: dec("5"), IsOfficial: true, FetchedAt: now})
	_ = rates.UpsertRate(ctx, domain.Rate{Currency: "EUR", RateToPivot: dec("6"), IsOfficial: true, FetchedAt: now})
	_ = rates.UpsertRate(ctx, domain.Rate{Currency: "JPY", RateToPivot: dec("0.035"), IsOfficial: true, FetchedAt: now})
	_ = rates.UpsertCoinPrice(ctx, domain.CoinPrice{Symbol: "BTC", PriceUSD: dec("50000"), FetchedAt: now})

	for _, a := range []*domain.Account{
		{ID: domain.CashPoolAccountID, Name: "Cash pool", Type: domain.AccountTypeCashPool},
		{ID: "bank-eur", Name: "EUR bank", Type: domain.AccountTypeBankAccount, PartnerID: partnerID, Currency: "EUR"},
		{ID: "bank-usd", Name: "USD bank", Type: domain.AccountTypeBankAccount, PartnerID: partnerID, Currency: "USD"},
		{
			ID: "bank-brl", Name: "BRL bank", Type: domain.AccountTypeBankAccount, PartnerID: partnerID, Currency: "BRL",
			Fee: &domain.FeeConfig{Mode: domain.FeeModePercentage, OnSend: dec("1"), OnReceive: dec("0.5")},
		},
		{ID: "bookie-usd", Name: "USD bookmaker", Type: domain.AccountTypeBookmaker, Currency: "USD"},
		{ID: "bookie-eur", Name: "EUR bookmaker", Type: domain.AccountTypeBookmaker, Currency: "EUR", Restricted: true},
		{ID: "wallet-1", Name: "Hot wallet", Type: domain.AccountTypeWallet, PartnerID: partnerID, Currency: "USD", Coins: []string{"BTC", "USDT"}},
		{ID: "wallet-2", Name: "Cold wallet", Type: domain.AccountTypeWallet, PartnerID: partnerID, Currency: "USD", Coins: []string{"BTC"}},
		{ID: "investor-1", Name: "Investor", Type: domain.AccountTypeInvestor},
	} {
		a.State = domain.AccountStateInUse
		store.PutAccount(a)
	}

	converter := usecase.NewConversionService("BRL", []domain.StablePeg{{Coin: "USDT", Currency: "USD"}})
	snapshots := usecase.NewSnapshotBuilder(rates, "BRL")
	ids := &mocks.SequentialIDs{Prefix: "e"}
	repos := store.Repositories()

	return &ledgerFixture{
		store:     store,
		converter: converter,
		snapshots: snapshots,
		write:     usecase.NewLedgerWriteUseCase(store.TxManager(), repos, snapshots, converter, ids, nil, zerolog.Nop()),
		recon:     usecase.NewReconciliationUseCase(store.TxManager(), repos, snapshots, converter, ids, dec("0.01"), nil, zerolog.Nop()),
		entries:   usecase.NewEntryUseCase(repos.Entries, repos.Adjustments),
		ids:       ids,
	}
}

func (f *ledgerFixture) total(accountID, asset string) decimal.Decimal {
	return f.store.Balance(accountID, asset).Total
}

// testSnapshot returns the fixture quotes as a standalone snapshot.
func testSnapshot() *domain.RateSnapshot {
	now := time.Now().UTC()
	return domain.NewRateSnapshot("BRL", now).
		WithRate(domain.Rate{Currency: "USD", RateToPivot: dec("5")}).
		WithRate(domain.Rate{Currency: "EUR", RateToPivot: dec("6")}).
		WithRate(domain.Rate{Currency: "JPY", RateToPivot: dec("0.035")}).
		WithCoinPrice(domain.CoinPrice{Symbol: "BTC", PriceUSD: dec("50000")})
}
