package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Balance is the position of one account in one asset. Assets are
// currency codes, or coin symbols for wallets (valued in USD).
type Balance struct {
	AccountID string
	Asset     string
	Total     decimal.Decimal
	Locked    decimal.Decimal
	Pending   decimal.Decimal
	Version   int64
	UpdatedAt time.Time
}

// NewBalance returns an empty balance row.
func NewBalance(accountID, asset string) *Balance {
	return &Balance{
		AccountID: accountID,
		Asset:     asset,
		Total:     decimal.Zero,
		Locked:    decimal.Zero,
		Pending:   decimal.Zero,
	}
}

// Available is the part of the total not reserved by transit locks.
func (b *Balance) Available() decimal.Decimal {
	return b.Total.Sub(b.Locked)
}

// ValidateDebit checks that amount can leave the balance.
func (b *Balance) ValidateDebit(amount decimal.Decimal) error {
	if b.Available().LessThan(amount) {
		return &InsufficientBalanceError{
			AccountID: b.AccountID,
			Asset:     b.Asset,
			Available: b.Available(),
			Requested: amount,
		}
	}
	return nil
}

// Debit moves total down.
func (b *Balance) Debit(amount decimal.Decimal) {
	b.Total = b.Total.Sub(amount)
}

// Credit moves total up.
func (b *Balance) Credit(amount decimal.Decimal) {
	b.Total = b.Total.Add(amount)
}

// Lock reserves amount of the available balance.
func (b *Balance) Lock(amount decimal.Decimal) {
	b.Locked = b.Locked.Add(amount)
}

// ConsumeLock settles a lock: the reserved amount leaves the balance.
func (b *Balance) ConsumeLock(amount decimal.Decimal) {
	b.Locked = b.Locked.Sub(amount)
	b.Total = b.Total.Sub(amount)
}

// AddPending records an inbound amount that is not yet credited.
func (b *Balance) AddPending(amount decimal.Decimal) {
	b.Pending = b.Pending.Add(amount)
}

// SettlePending replaces a pending estimate by a credit of actual.
func (b *Balance) SettlePending(estimate, actual decimal.Decimal) {
	b.Pending = b.Pending.Sub(estimate)
	b.Total = b.Total.Add(actual)
}

// BalanceKey addresses a balance row.
type BalanceKey struct {
	AccountID string
	Asset     string
}

func (k BalanceKey) String() string {
	return k.AccountID + "/" + k.Asset
}
