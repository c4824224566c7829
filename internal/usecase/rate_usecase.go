package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/cashledger/internal/domain"
)

// RateUseCase accepts quotes from the rate feed and serves snapshots and
// conversion previews.
type RateUseCase struct {
	rateRepo    RateRepository
	invalidator RateCacheInvalidator
	snapshots   *SnapshotBuilder
	converter   *ConversionService
	logger      zerolog.Logger
}

// NewRateUseCase creates a new RateUseCase.
func NewRateUseCase(rateRepo RateRepository, snapshots *SnapshotBuilder, converter *ConversionService, logger zerolog.Logger) *RateUseCase {
	return &RateUseCase{
		rateRepo:  rateRepo,
		snapshots: snapshots,
		converter: converter,
		logger:    logger.With().Str("component", "rates").Logger(),
	}
}

// WithInvalidator drops cached quotes whenever a new one is stored.
func (uc *RateUseCase) WithInvalidator(inv RateCacheInvalidator) *RateUseCase {
	uc.invalidator = inv
	return uc
}

// PutRateInput is a pivot rate pushed by the feed or an operator.
type PutRateInput struct {
	Currency    string
	RateToPivot decimal.Decimal
	IsOfficial  bool
	Source      string
}

// PutRate stores the rate of one currency against the pivot.
func (uc *RateUseCase) PutRate(ctx context.Context, input PutRateInput) (*domain.Rate, error) {
	code := domain.NormalizeCode(input.Currency)

	verr := &domain.ValidationError{}
	if err := domain.ValidateCurrency(code); err != nil {
		verr.Add("currency", "%s", err.Error())
	} else if code == uc.converter.Pivot() {
		verr.Add("currency", "the pivot %s is fixed at 1", code)
	}
	if !input.RateToPivot.IsPositive() {
		verr.Add("rateToPivot", "must be positive")
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	rate := domain.Rate{
		Currency:    code,
		RateToPivot: input.RateToPivot,
		IsOfficial:  input.IsOfficial,
		Source:      input.Source,
		FetchedAt:   time.Now().UTC(),
	}
	if err := uc.rateRepo.UpsertRate(ctx, rate); err != nil {
		return nil, err
	}

	if uc.invalidator != nil {
		if err := uc.invalidator.InvalidateRate(ctx, code); err != nil {
			uc.logger.Warn().Err(err).Str("currency", code).Msg("failed to invalidate cached rate")
		}
	}

	return &rate, nil
}

// PutCoinPriceInput is a coin price in USD.
type PutCoinPriceInput struct {
	Symbol   string
	PriceUSD decimal.Decimal
	Source   string
}

// PutCoinPrice stores the USD price of a coin.
func (uc *RateUseCase) PutCoinPrice(ctx context.Context, input PutCoinPriceInput) (*domain.CoinPrice, error) {
	symbol := domain.NormalizeCode(input.Symbol)

	verr := &domain.ValidationError{}
	if err := domain.ValidateCoinSymbol(symbol); err != nil {
		verr.Add("symbol", "%s", err.Error())
	}
	if !input.PriceUSD.IsPositive() {
		verr.Add("priceUsd", "must be positive")
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	price := domain.CoinPrice{
		Symbol:    symbol,
		PriceUSD:  input.PriceUSD,
		Source:    input.Source,
		FetchedAt: time.Now().UTC(),
	}
	if err := uc.rateRepo.UpsertCoinPrice(ctx, price); err != nil {
		return nil, err
	}

	if uc.invalidator != nil {
		if err := uc.invalidator.InvalidateCoinPrice(ctx, symbol); err != nil {
			uc.logger.Warn().Err(err).Str("symbol", symbol).Msg("failed to invalidate cached coin price")
		}
	}

	return &price, nil
}

// Snapshot returns the quotes currently available for the given codes.
func (uc *RateUseCase) Snapshot(ctx context.Context, currencies, coins []string) (*domain.RateSnapshot, error) {
	return uc.snapshots.Build(ctx, currencies, coins)
}

// QuoteConversionInput describes a conversion preview.
type QuoteConversionInput struct {
	Amount decimal.Decimal
	From   string
	To     string
}

// ConversionQuote is a priced preview; nothing is persisted.
type ConversionQuote struct {
	domain.ConversionResult
	From       string
	FromAmount decimal.Decimal
	SnapshotAt time.Time
}

// QuoteConversion converts an amount with a fresh snapshot.
func (uc *RateUseCase) QuoteConversion(ctx context.Context, input QuoteConversionInput) (*ConversionQuote, error) {
	from, to := domain.NormalizeCode(input.From), domain.NormalizeCode(input.To)

	verr := &domain.ValidationError{}
	if err := domain.ValidateAmount(input.Amount); err != nil {
		verr.Add("amount", "%s", err.Error())
	}
	var currencies, coins []string
	for field, code := range map[string]string{"from": from, "to": to} {
		switch {
		case domain.IsFiatCurrency(code):
			currencies = append(currencies, code)
		case domain.ValidateCoinSymbol(code) == nil:
			coins = append(coins, code)
		default:
			verr.Add(field, "unknown currency or coin %q", code)
		}
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	snapshot, err := uc.snapshots.Build(ctx, currencies, coins)
	if err != nil {
		return nil, err
	}

	result, err := uc.converter.Convert(input.Amount, from, to, snapshot)
	if err != nil {
		return nil, err
	}

	return &ConversionQuote{
		ConversionResult: result,
		From:             from,
		FromAmount:       input.Amount,
		SnapshotAt:       snapshot.TakenAt,
	}, nil
}
