// Package rates serves exchange rates and coin prices to the ledger through
// an in-process cache, a shared Redis cache and the stored feed.
package rates

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/iho/cashledger/internal/domain"
	"github.com/iho/cashledger/internal/infrastructure/metrics"
	"github.com/iho/cashledger/internal/usecase"
)

// Defaults for Config.
const (
	DefaultLocalTTL   = 5 * time.Second
	DefaultSharedTTL  = 30 * time.Second
	DefaultStaleAfter = 15 * time.Minute
)

// Config configures a CachedProvider.
type Config struct {
	// LocalTTL bounds how long a quote is served from process memory.
	LocalTTL time.Duration
	// SharedTTL bounds how long a quote is served from the shared cache.
	SharedTTL time.Duration
	// StaleAfter flags quotes older than this as fallback values.
	StaleAfter time.Duration
}

// CachedProvider implements usecase.RateProvider and
// usecase.RateCacheInvalidator on top of the stored feed.
//
// Lookups go local cache, shared cache, source. Concurrent misses for the
// same key share one source read. When the source fails, the last quote
// seen is served flagged as fallback; a quote that never existed stays
// unavailable.
type CachedProvider struct {
	source   usecase.RateProvider
	shared   usecase.Cache
	local    *gocache.Cache
	lastGood *gocache.Cache
	group    singleflight.Group
	cfg      Config
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	now      func() time.Time
}

// NewCachedProvider creates a CachedProvider. shared and m may be nil.
func NewCachedProvider(source usecase.RateProvider, shared usecase.Cache, cfg Config, m *metrics.Metrics, logger zerolog.Logger) *CachedProvider {
	if cfg.LocalTTL <= 0 {
		cfg.LocalTTL = DefaultLocalTTL
	}
	if cfg.SharedTTL <= 0 {
		cfg.SharedTTL = DefaultSharedTTL
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = DefaultStaleAfter
	}

	return &CachedProvider{
		source:   source,
		shared:   shared,
		local:    gocache.New(cfg.LocalTTL, 2*cfg.LocalTTL),
		lastGood: gocache.New(gocache.NoExpiration, 0),
		cfg:      cfg,
		metrics:  m,
		logger:   logger.With().Str("component", "rates").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func rateKey(currency string) string { return "rate:" + currency }
func coinKey(symbol string) string   { return "coin:" + symbol }

// GetRate returns the pivot rate of currency.
func (p *CachedProvider) GetRate(ctx context.Context, currency string) (domain.Rate, error) {
	currency = domain.NormalizeCode(currency)
	rate, err := lookup(ctx, p, "rate", rateKey(currency), func(ctx context.Context) (domain.Rate, error) {
		return p.source.GetRate(ctx, currency)
	})
	if err != nil {
		return domain.Rate{}, err
	}

	if p.isStale(rate.FetchedAt) {
		rate.IsFallback = true
	}

	return rate, nil
}

// GetCoinPrice returns the USD price of symbol.
func (p *CachedProvider) GetCoinPrice(ctx context.Context, symbol string) (domain.CoinPrice, error) {
	symbol = domain.NormalizeCode(symbol)
	price, err := lookup(ctx, p, "coin", coinKey(symbol), func(ctx context.Context) (domain.CoinPrice, error) {
		return p.source.GetCoinPrice(ctx, symbol)
	})
	if err != nil {
		return domain.CoinPrice{}, err
	}

	if p.isStale(price.FetchedAt) {
		price.IsFallback = true
	}

	return price, nil
}

// InvalidateRate drops the cached quote of currency.
func (p *CachedProvider) InvalidateRate(ctx context.Context, currency string) error {
	return p.invalidate(ctx, rateKey(domain.NormalizeCode(currency)))
}

// InvalidateCoinPrice drops the cached price of symbol.
func (p *CachedProvider) InvalidateCoinPrice(ctx context.Context, symbol string) error {
	return p.invalidate(ctx, coinKey(domain.NormalizeCode(symbol)))
}

func (p *CachedProvider) invalidate(ctx context.Context, key string) error {
	p.local.Delete(key)
	if p.shared == nil {
		return nil
	}
	return p.shared.Delete(ctx, key)
}

func (p *CachedProvider) isStale(fetchedAt time.Time) bool {
	return !fetchedAt.IsZero() && p.now().Sub(fetchedAt) > p.cfg.StaleAfter
}

func (p *CachedProvider) observe(kind, result string) {
	if p.metrics != nil {
		p.metrics.RateLookups.WithLabelValues(kind, result).Inc()
	}
}

// store writes a fresh quote to every cache level.
func store[T any](ctx context.Context, p *CachedProvider, key string, value T) {
	p.local.Set(key, value, gocache.DefaultExpiration)
	p.lastGood.Set(key, value, gocache.NoExpiration)

	if p.shared == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := p.shared.Set(ctx, key, data, p.cfg.SharedTTL); err != nil {
		p.logger.Warn().Err(err).Str("key", key).Msg("shared rate cache write failed")
	}
}

func lookup[T any](ctx context.Context, p *CachedProvider, kind, key string, fetch func(context.Context) (T, error)) (T, error) {
	var zero T

	if v, ok := p.local.Get(key); ok {
		p.observe(kind, "local_hit")
		return v.(T), nil
	}

	v, err, _ := p.group.Do(key, func() (any, error) {
		if p.shared != nil {
			data, err := p.shared.Get(ctx, key)
			if err == nil {
				var cached T
				if err := json.Unmarshal(data, &cached); err == nil {
					p.local.Set(key, cached, gocache.DefaultExpiration)
					p.lastGood.Set(key, cached, gocache.NoExpiration)
					p.observe(kind, "shared_hit")
					return cached, nil
				}
			}
		}

		fresh, err := fetch(ctx)
		if err != nil {
			return zero, err
		}
		store(ctx, p, key, fresh)
		p.observe(kind, "source")
		return fresh, nil
	})
	if err == nil {
		return v.(T), nil
	}

	if errors.Is(err, domain.ErrRateUnavailable) {
		p.observe(kind, "unavailable")
		return zero, err
	}

	if last, ok := p.lastGood.Get(key); ok {
		p.observe(kind, "fallback")
		p.logger.Warn().Err(err).Str("key", key).Msg("rate source failed, serving last known quote")
		return markFallback(last.(T)), nil
	}

	p.observe(kind, "error")
	return zero, err
}

func markFallback[T any](v T) T {
	switch q := any(v).(type) {
	case domain.Rate:
		q.IsFallback = true
		return any(q).(T)
	case domain.CoinPrice:
		q.IsFallback = true
		return any(q).(T)
	}
	return v
}
