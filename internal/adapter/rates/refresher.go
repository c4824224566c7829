package rates

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/iho/cashledger/internal/domain"
	"github.com/iho/cashledger/internal/infrastructure/metrics"
)

// RefresherConfig configures a Refresher.
type RefresherConfig struct {
	Currencies  []string
	Coins       []string
	Interval    time.Duration
	MaxAttempts uint64
}

// Refresher keeps watched quotes warm so that lookups on the write path
// rarely reach the source and the fallback copy stays recent.
type Refresher struct {
	provider   *CachedProvider
	cfg        RefresherConfig
	newBackOff func() backoff.BackOff
	metrics    *metrics.Metrics
	logger     zerolog.Logger
}

// NewRefresher creates a Refresher. m may be nil.
func NewRefresher(provider *CachedProvider, cfg RefresherConfig, m *metrics.Metrics, logger zerolog.Logger) *Refresher {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 3
	}
	return &Refresher{
		provider:   provider,
		cfg:        cfg,
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
		metrics:    m,
		logger:     logger.With().Str("component", "rate_refresher").Logger(),
	}
}

// Start refreshes once and then on every tick until ctx is canceled.
func (r *Refresher) Start(ctx context.Context) {
	r.logger.Info().
		Strs("currencies", r.cfg.Currencies).
		Strs("coins", r.cfg.Coins).
		Dur("interval", r.cfg.Interval).
		Msg("rate refresher started")

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	_ = r.RefreshOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("rate refresher stopped")
			return
		case <-ticker.C:
			_ = r.RefreshOnce(ctx)
		}
	}
}

// RefreshOnce re-reads every watched quote from the source and rewrites
// every cache level. Quotes the source has never had are skipped; other
// failures are returned joined.
func (r *Refresher) RefreshOnce(ctx context.Context) error {
	var (
		g    errgroup.Group
		errs = make([]error, len(r.cfg.Currencies)+len(r.cfg.Coins))
	)

	for i, currency := range r.cfg.Currencies {
		currency = domain.NormalizeCode(currency)
		g.Go(func() error {
			key := rateKey(currency)
			errs[i] = r.refresh(ctx, key, func() error {
				rate, err := r.provider.source.GetRate(ctx, currency)
				if err != nil {
					return err
				}
				store(ctx, r.provider, key, rate)
				return nil
			})
			return nil
		})
	}
	offset := len(r.cfg.Currencies)
	for i, symbol := range r.cfg.Coins {
		symbol = domain.NormalizeCode(symbol)
		g.Go(func() error {
			key := coinKey(symbol)
			errs[offset+i] = r.refresh(ctx, key, func() error {
				price, err := r.provider.source.GetCoinPrice(ctx, symbol)
				if err != nil {
					return err
				}
				store(ctx, r.provider, key, price)
				return nil
			})
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}

func (r *Refresher) refresh(ctx context.Context, key string, fetch func() error) error {
	b := backoff.WithMaxRetries(r.newBackOff(), r.cfg.MaxAttempts-1)

	err := backoff.Retry(func() error {
		err := fetch()
		if errors.Is(err, domain.ErrRateUnavailable) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(b, ctx))

	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrRateUnavailable):
		result = "missing"
		err = nil
	default:
		result = "error"
		r.logger.Warn().Err(err).Str("key", key).Msg("rate refresh failed")
	}

	if r.metrics != nil {
		r.metrics.RateRefreshes.WithLabelValues(result).Inc()
	}

	return err
}
