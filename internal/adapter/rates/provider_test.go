package rates

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/cashledger/internal/adapter/repository/redis"
	"github.com/iho/cashledger/internal/domain"
	"github.com/iho/cashledger/internal/infrastructure/metrics"
)

type fakeSource struct {
	mu    sync.Mutex
	rates map[string]domain.Rate
	coins map[string]domain.CoinPrice
	err   error
	calls atomic.Int32
	gate  chan struct{}
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		rates: map[string]domain.Rate{},
		coins: map[string]domain.CoinPrice{},
	}
}

func (s *fakeSource) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *fakeSource) GetRate(ctx context.Context, currency string) (domain.Rate, error) {
	s.calls.Add(1)
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return domain.Rate{}, s.err
	}
	rate, ok := s.rates[currency]
	if !ok {
		return domain.Rate{}, &domain.RateUnavailableError{Currency: currency}
	}
	return rate, nil
}

func (s *fakeSource) GetCoinPrice(ctx context.Context, symbol string) (domain.CoinPrice, error) {
	s.calls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return domain.CoinPrice{}, s.err
	}
	price, ok := s.coins[symbol]
	if !ok {
		return domain.CoinPrice{}, &domain.RateUnavailableError{Currency: symbol}
	}
	return price, nil
}

func newSharedCache(t *testing.T) (*redis.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redis.NewCache(client, "test:"), mr
}

func eurRate(now time.Time) domain.Rate {
	return domain.Rate{
		Currency:    "EUR",
		RateToPivot: decimal.RequireFromString("6.1"),
		IsOfficial:  true,
		Source:      "feed",
		FetchedAt:   now,
	}
}

func TestCachedProviderServesFromLocalCache(t *testing.T) {
	source := newFakeSource()
	source.rates["EUR"] = eurRate(time.Now().UTC())
	m := metrics.NewWithRegistry(prometheus.NewRegistry())

	p := NewCachedProvider(source, nil, Config{}, m, zerolog.Nop())
	ctx := context.Background()

	first, err := p.GetRate(ctx, "eur")
	require.NoError(t, err)
	second, err := p.GetRate(ctx, "EUR")
	require.NoError(t, err)

	assert.True(t, first.RateToPivot.Equal(second.RateToPivot))
	assert.False(t, second.IsFallback)
	assert.Equal(t, int32(1), source.calls.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLookups.WithLabelValues("rate", "source")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLookups.WithLabelValues("rate", "local_hit")))
}

func TestCachedProviderSharedCacheAcrossInstances(t *testing.T) {
	shared, mr := newSharedCache(t)
	source := newFakeSource()
	source.coins["BTC"] = domain.CoinPrice{
		Symbol:    "BTC",
		PriceUSD:  decimal.RequireFromString("65000.5"),
		Source:    "feed",
		FetchedAt: time.Now().UTC(),
	}
	ctx := context.Background()

	a := NewCachedProvider(source, shared, Config{}, nil, zerolog.Nop())
	_, err := a.GetCoinPrice(ctx, "BTC")
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:coin:BTC"))

	b := NewCachedProvider(source, shared, Config{}, nil, zerolog.Nop())
	price, err := b.GetCoinPrice(ctx, "btc")
	require.NoError(t, err)

	assert.True(t, price.PriceUSD.Equal(decimal.RequireFromString("65000.5")))
	assert.Equal(t, int32(1), source.calls.Load())
}

func TestCachedProviderUnavailableIsNotMasked(t *testing.T) {
	p := NewCachedProvider(newFakeSource(), nil, Config{}, nil, zerolog.Nop())

	_, err := p.GetRate(context.Background(), "ARS")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrRateUnavailable))
}

func TestCachedProviderFallsBackToLastKnownQuote(t *testing.T) {
	source := newFakeSource()
	source.rates["EUR"] = eurRate(time.Now().UTC())
	p := NewCachedProvider(source, nil, Config{LocalTTL: time.Millisecond}, nil, zerolog.Nop())
	ctx := context.Background()

	_, err := p.GetRate(ctx, "EUR")
	require.NoError(t, err)

	source.setErr(errors.New("connection refused"))
	p.local.Flush()

	rate, err := p.GetRate(ctx, "EUR")
	require.NoError(t, err)
	assert.True(t, rate.IsFallback)
	assert.True(t, rate.RateToPivot.Equal(decimal.RequireFromString("6.1")))
}

func TestCachedProviderOutageWithoutHistoryFails(t *testing.T) {
	source := newFakeSource()
	source.setErr(errors.New("connection refused"))
	p := NewCachedProvider(source, nil, Config{}, nil, zerolog.Nop())

	_, err := p.GetRate(context.Background(), "EUR")

	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrRateUnavailable))
}

func TestCachedProviderFlagsStaleQuotes(t *testing.T) {
	source := newFakeSource()
	source.rates["EUR"] = eurRate(time.Now().UTC().Add(-time.Hour))
	p := NewCachedProvider(source, nil, Config{StaleAfter: time.Minute}, nil, zerolog.Nop())

	rate, err := p.GetRate(context.Background(), "EUR")

	require.NoError(t, err)
	assert.True(t, rate.IsFallback)
}

func TestCachedProviderInvalidate(t *testing.T) {
	shared, mr := newSharedCache(t)
	source := newFakeSource()
	source.rates["EUR"] = eurRate(time.Now().UTC())
	p := NewCachedProvider(source, shared, Config{}, nil, zerolog.Nop())
	ctx := context.Background()

	_, err := p.GetRate(ctx, "EUR")
	require.NoError(t, err)

	updated := eurRate(time.Now().UTC())
	updated.RateToPivot = decimal.RequireFromString("6.3")
	source.mu.Lock()
	source.rates["EUR"] = updated
	source.mu.Unlock()

	require.NoError(t, p.InvalidateRate(ctx, "eur"))
	assert.False(t, mr.Exists("test:rate:EUR"))

	rate, err := p.GetRate(ctx, "EUR")
	require.NoError(t, err)
	assert.True(t, rate.RateToPivot.Equal(decimal.RequireFromString("6.3")))
	assert.Equal(t, int32(2), source.calls.Load())
}

func TestCachedProviderCollapsesConcurrentMisses(t *testing.T) {
	source := newFakeSource()
	source.rates["EUR"] = eurRate(time.Now().UTC())
	source.gate = make(chan struct{})
	p := NewCachedProvider(source, nil, Config{}, nil, zerolog.Nop())

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.GetRate(context.Background(), "EUR")
			assert.NoError(t, err)
		}()
	}

	require.Eventually(t, func() bool { return source.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	close(source.gate)
	wg.Wait()

	assert.Equal(t, int32(1), source.calls.Load())
}

func TestRefresherWarmsWatchedQuotes(t *testing.T) {
	source := newFakeSource()
	source.rates["EUR"] = eurRate(time.Now().UTC())
	source.coins["USDT"] = domain.CoinPrice{Symbol: "USDT", PriceUSD: decimal.NewFromInt(1), FetchedAt: time.Now().UTC()}
	m := metrics.NewWithRegistry(prometheus.NewRegistry())

	p := NewCachedProvider(source, nil, Config{}, m, zerolog.Nop())
	r := NewRefresher(p, RefresherConfig{
		Currencies: []string{"eur", "ARS"},
		Coins:      []string{"usdt"},
	}, m, zerolog.Nop())

	require.NoError(t, r.RefreshOnce(context.Background()))

	_, ok := p.local.Get(rateKey("EUR"))
	assert.True(t, ok)
	_, ok = p.lastGood.Get(coinKey("USDT"))
	assert.True(t, ok)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RateRefreshes.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateRefreshes.WithLabelValues("missing")))
}

func TestRefresherRetriesAndReportsOutage(t *testing.T) {
	source := newFakeSource()
	source.setErr(errors.New("connection refused"))
	m := metrics.NewWithRegistry(prometheus.NewRegistry())

	p := NewCachedProvider(source, nil, Config{}, m, zerolog.Nop())
	r := NewRefresher(p, RefresherConfig{Currencies: []string{"EUR"}, MaxAttempts: 3}, m, zerolog.Nop())
	r.newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }

	err := r.RefreshOnce(context.Background())

	require.Error(t, err)
	assert.Equal(t, int32(3), source.calls.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateRefreshes.WithLabelValues("error")))
}
