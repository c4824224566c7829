package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransitLockStatus is the state of a wallet lock.
type TransitLockStatus string

const (
	TransitLockActive   TransitLockStatus = "ACTIVE"
	TransitLockReleased TransitLockStatus = "RELEASED"
)

// TransitLock reserves USD value on a wallet coin balance while a
// wallet-origin crypto movement settles. There is at most one lock per entry.
type TransitLock struct {
	ID         string
	EntryID    string
	AccountID  string
	Asset      string
	Amount     decimal.Decimal
	Status     TransitLockStatus
	CreatedAt  time.Time
	ReleasedAt *time.Time
}

func (l *TransitLock) IsActive() bool {
	return l.Status == TransitLockActive
}

// TransitDecision is the outcome of transit classification for a draft.
type TransitDecision struct {
	Status TransitStatus
	// LockOrigin is set when the origin wallet must be locked at commit.
	LockOrigin bool
	// EstimatedQuantity is the derived coin quantity of crypto withdrawals.
	EstimatedQuantity decimal.Decimal
}
