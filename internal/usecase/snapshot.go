package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/iho/cashledger/internal/domain"
)

// SnapshotBuilder collects the quotes a movement needs into one immutable
// snapshot. Quotes the provider cannot supply are left out so that the
// conversion reports them as unavailable.
type SnapshotBuilder struct {
	provider RateProvider
	pivot    string
	now      func() time.Time
}

// NewSnapshotBuilder creates a SnapshotBuilder.
func NewSnapshotBuilder(provider RateProvider, pivot string) *SnapshotBuilder {
	if pivot == "" {
		pivot = domain.DefaultPivotCurrency
	}
	return &SnapshotBuilder{
		provider: provider,
		pivot:    domain.NormalizeCode(pivot),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Build fetches currencies and coins concurrently. USD is always included
// because every entry carries a USD reference amount.
func (b *SnapshotBuilder) Build(ctx context.Context, currencies, coins []string) (*domain.RateSnapshot, error) {
	snapshot := domain.NewRateSnapshot(b.pivot, b.now())

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	for _, code := range dedupe(append([]string{domain.USD}, currencies...)) {
		if code == b.pivot {
			continue
		}
		g.Go(func() error {
			rate, err := b.provider.GetRate(gctx, code)
			if errors.Is(err, domain.ErrRateUnavailable) {
				return nil
			}
			if err != nil {
				return err
			}
			mu.Lock()
			snapshot.WithRate(rate)
			mu.Unlock()
			return nil
		})
	}

	for _, symbol := range dedupe(coins) {
		g.Go(func() error {
			price, err := b.provider.GetCoinPrice(gctx, symbol)
			if errors.Is(err, domain.ErrRateUnavailable) {
				return nil
			}
			if err != nil {
				return err
			}
			mu.Lock()
			snapshot.WithCoinPrice(price)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return snapshot, nil
}

func dedupe(codes []string) []string {
	seen := make(map[string]bool, len(codes))
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		c = domain.NormalizeCode(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}
