package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/cashledger/internal/domain"
	"github.com/iho/cashledger/internal/infrastructure/metrics"
)

// TransitLockManager decides whether crypto movements settle immediately
// and manages the wallet locks of those that do not.
type TransitLockManager struct {
	lockRepo  TransitLockRepository
	converter *ConversionService
	idGen     IDGenerator
	metrics   *metrics.Metrics
}

// NewTransitLockManager creates a TransitLockManager.
func NewTransitLockManager(lockRepo TransitLockRepository, converter *ConversionService, idGen IDGenerator, m *metrics.Metrics) *TransitLockManager {
	return &TransitLockManager{
		lockRepo:  lockRepo,
		converter: converter,
		idGen:     idGen,
		metrics:   m,
	}
}

// Classify returns the transit decision of a validated movement.
func (m *TransitLockManager) Classify(vm *domain.ValidatedMovement, snapshot *domain.RateSnapshot) (domain.TransitDecision, error) {
	if vm.Family != domain.CurrencyFamilyCrypto {
		return domain.TransitDecision{Status: domain.TransitStatusNone}, nil
	}

	origin := vm.OriginAccount.Type
	destination := vm.DestinationAccount.Type

	switch {
	case origin == domain.AccountTypeWallet && destination == domain.AccountTypeWallet:
		return domain.TransitDecision{Status: domain.TransitStatusConfirmed}, nil

	case origin == domain.AccountTypeWallet:
		return domain.TransitDecision{Status: domain.TransitStatusPending, LockOrigin: true}, nil

	case origin == domain.AccountTypeBookmaker && destination == domain.AccountTypeWallet:
		quantity, err := m.EstimateQuantity(vm.Draft.OriginAmount, vm.OriginCurrency, vm.CoinSymbol, snapshot)
		if err != nil {
			return domain.TransitDecision{}, err
		}
		return domain.TransitDecision{Status: domain.TransitStatusPending, EstimatedQuantity: quantity}, nil

	default:
		return domain.TransitDecision{Status: domain.TransitStatusPending}, nil
	}
}

// EstimateQuantity values amount in USD and divides by the coin price.
func (m *TransitLockManager) EstimateQuantity(amount decimal.Decimal, currency, coin string, snapshot *domain.RateSnapshot) (decimal.Decimal, error) {
	usd, err := m.converter.ToUSD(amount, currency, snapshot)
	if err != nil {
		return decimal.Zero, err
	}

	price, _, err := m.converter.CoinPriceUSD(coin, snapshot)
	if err != nil {
		return decimal.Zero, err
	}

	return usd.Amount.DivRound(price, domain.CoinPrecision), nil
}

// Lock reserves the entry's USD reference amount on the origin wallet
// balance. A lock already taken for the entry leaves the balance untouched.
func (m *TransitLockManager) Lock(ctx context.Context, tx Transaction, entry *domain.LedgerEntry, balance *domain.Balance, now time.Time) (bool, error) {
	lock := &domain.TransitLock{
		ID:        m.idGen.Generate(),
		EntryID:   entry.ID,
		AccountID: balance.AccountID,
		Asset:     balance.Asset,
		Amount:    entry.USDReferenceAmount,
		Status:    domain.TransitLockActive,
		CreatedAt: now,
	}

	created, err := m.lockRepo.Create(ctx, tx, lock)
	if err != nil {
		return false, err
	}
	if !created {
		return false, nil
	}

	balance.Lock(lock.Amount)

	if m.metrics != nil {
		m.metrics.TransitLocksCreated.Inc()
	}

	return true, nil
}

// Release settles the lock of an entry: the reserved amount leaves the
// wallet. A missing or already released lock leaves the balance untouched.
func (m *TransitLockManager) Release(ctx context.Context, tx Transaction, entryID string, balance *domain.Balance, now time.Time) (bool, error) {
	lock, err := m.lockRepo.GetByEntryForUpdate(ctx, tx, entryID)
	if err != nil {
		return false, err
	}
	if lock == nil || !lock.IsActive() {
		return false, nil
	}

	if err := m.lockRepo.MarkReleased(ctx, tx, lock.ID, now); err != nil {
		return false, err
	}

	balance.ConsumeLock(lock.Amount)

	if m.metrics != nil {
		m.metrics.TransitLocksReleased.Inc()
	}

	return true, nil
}
