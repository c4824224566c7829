package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/cashledger/internal/domain"
)

// RateRepository implements usecase.RateRepository and usecase.RateProvider.
type RateRepository struct {
	db dbtx
}

// NewRateRepository creates a new RateRepository.
func NewRateRepository(pool *pgxpool.Pool) *RateRepository {
	return &RateRepository{db: pool}
}

// UpsertRate stores the latest quote of a currency.
func (r *RateRepository) UpsertRate(ctx context.Context, rate domain.Rate) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO fx_rates (currency, rate_to_pivot, is_official, source, fetched_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (currency) DO UPDATE
		SET rate_to_pivot = EXCLUDED.rate_to_pivot,
		    is_official = EXCLUDED.is_official,
		    source = EXCLUDED.source,
		    fetched_at = EXCLUDED.fetched_at`,
		rate.Currency,
		rate.RateToPivot,
		rate.IsOfficial,
		rate.Source,
		rate.FetchedAt,
	)
	return err
}

// UpsertCoinPrice stores the latest USD price of a coin.
func (r *RateRepository) UpsertCoinPrice(ctx context.Context, price domain.CoinPrice) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO coin_prices (symbol, price_usd, source, fetched_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (symbol) DO UPDATE
		SET price_usd = EXCLUDED.price_usd,
		    source = EXCLUDED.source,
		    fetched_at = EXCLUDED.fetched_at`,
		price.Symbol,
		price.PriceUSD,
		price.Source,
		price.FetchedAt,
	)
	return err
}

// GetRate returns the stored quote of a currency.
func (r *RateRepository) GetRate(ctx context.Context, currency string) (domain.Rate, error) {
	rate := domain.Rate{Currency: currency}
	err := r.db.QueryRow(ctx, `
		SELECT rate_to_pivot, is_official, source, fetched_at
		FROM fx_rates
		WHERE currency = $1`,
		currency,
	).Scan(&rate.RateToPivot, &rate.IsOfficial, &rate.Source, &rate.FetchedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Rate{}, &domain.RateUnavailableError{Currency: currency}
		}
		return domain.Rate{}, err
	}

	return rate, nil
}

// GetCoinPrice returns the stored USD price of a coin.
func (r *RateRepository) GetCoinPrice(ctx context.Context, symbol string) (domain.CoinPrice, error) {
	price := domain.CoinPrice{Symbol: symbol}
	err := r.db.QueryRow(ctx, `
		SELECT price_usd, source, fetched_at
		FROM coin_prices
		WHERE symbol = $1`,
		symbol,
	).Scan(&price.PriceUSD, &price.Source, &price.FetchedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.CoinPrice{}, &domain.RateUnavailableError{Currency: symbol}
		}
		return domain.CoinPrice{}, err
	}

	return price, nil
}
