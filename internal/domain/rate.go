package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultPivotCurrency is the currency every fiat rate is quoted against.
const DefaultPivotCurrency = "BRL"

// Rate is the price of one unit of Currency in the pivot currency.
type Rate struct {
	Currency    string
	RateToPivot decimal.Decimal
	IsOfficial  bool
	IsFallback  bool
	Source      string
	FetchedAt   time.Time
}

// CoinPrice is the USD price of one coin.
type CoinPrice struct {
	Symbol     string
	PriceUSD   decimal.Decimal
	IsFallback bool
	Source     string
	FetchedAt  time.Time
}

// RateSnapshot is the immutable set of quotes a movement is valued with.
type RateSnapshot struct {
	Pivot   string
	Rates   map[string]Rate
	Coins   map[string]CoinPrice
	TakenAt time.Time
}

// NewRateSnapshot returns an empty snapshot for pivot.
func NewRateSnapshot(pivot string, takenAt time.Time) *RateSnapshot {
	return &RateSnapshot{
		Pivot:   pivot,
		Rates:   map[string]Rate{pivot: {Currency: pivot, RateToPivot: decimal.NewFromInt(1), IsOfficial: true, FetchedAt: takenAt}},
		Coins:   map[string]CoinPrice{},
		TakenAt: takenAt,
	}
}

// WithRate adds r to the snapshot.
func (s *RateSnapshot) WithRate(r Rate) *RateSnapshot {
	s.Rates[NormalizeCode(r.Currency)] = r
	return s
}

// WithCoinPrice adds p to the snapshot.
func (s *RateSnapshot) WithCoinPrice(p CoinPrice) *RateSnapshot {
	s.Coins[NormalizeCode(p.Symbol)] = p
	return s
}

// StablePeg is a pair valued 1:1, e.g. USDT:USD.
type StablePeg struct {
	Coin     string
	Currency string
}

// ConversionResult is the output of a currency conversion.
type ConversionResult struct {
	Amount       decimal.Decimal
	Currency     string
	ImpliedRate  decimal.Decimal
	UsedFallback bool
	UsedPeg      bool
}
