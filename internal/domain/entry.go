package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntryKind classifies a ledger entry.
type EntryKind string

const (
	EntryKindDeposit             EntryKind = "DEPOSIT"
	EntryKindWithdrawal          EntryKind = "WITHDRAWAL"
	EntryKindTransfer            EntryKind = "TRANSFER"
	EntryKindCapitalContribution EntryKind = "CAPITAL_CONTRIBUTION"
	EntryKindCapitalSettlement   EntryKind = "CAPITAL_SETTLEMENT"
	EntryKindAdjustment          EntryKind = "ADJUSTMENT"
)

var validEntryKinds = map[EntryKind]bool{
	EntryKindDeposit:             true,
	EntryKindWithdrawal:          true,
	EntryKindTransfer:            true,
	EntryKindCapitalContribution: true,
	EntryKindCapitalSettlement:   true,
	EntryKindAdjustment:          true,
}

func (k EntryKind) IsValid() bool {
	return validEntryKinds[k]
}

type EntryStatus string

const (
	EntryStatusPending   EntryStatus = "PENDING"
	EntryStatusConfirmed EntryStatus = "CONFIRMED"
)

type ValueStatus string

const (
	ValueStatusEstimated ValueStatus = "ESTIMATED"
	ValueStatusFinal     ValueStatus = "FINAL"
)

// TransitStatus is set on crypto entries only; empty means absent.
type TransitStatus string

const (
	TransitStatusNone      TransitStatus = ""
	TransitStatusConfirmed TransitStatus = "CONFIRMED"
	TransitStatusPending   TransitStatus = "PENDING"
)

// LedgerEntry is one committed money movement. Amounts are kept in three
// layers: origin (what left the origin account), canonical (what is posted
// against the destination in its operating currency) and a USD reference.
// Only Status, ValueStatus and ConfirmedAt change after commit.
type LedgerEntry struct {
	ID                 string
	Kind               EntryKind
	Family             CurrencyFamily
	OriginCurrency     string
	OriginAmount       decimal.Decimal
	CanonicalCurrency  string
	CanonicalAmount    decimal.Decimal
	USDReferenceAmount decimal.Decimal
	RateSnapshotAt     time.Time
	ImpliedRate        decimal.Decimal
	UsedFallbackRate   bool
	// Origin is nil for adjustments.
	Origin           *Party
	Destination      Party
	CoinSymbol       string
	CoinQuantity     decimal.Decimal
	Status           EntryStatus
	ValueStatus      ValueStatus
	TransitStatus    TransitStatus
	ReferenceEntryID string
	IdempotencyKey   string
	Description      string
	CreatedBy        string
	EventAt          time.Time
	CreatedAt        time.Time
	ConfirmedAt      *time.Time
}

func (e *LedgerEntry) IsPending() bool {
	return e.Status == EntryStatusPending
}

func (e *LedgerEntry) IsAdjustment() bool {
	return e.Kind == EntryKindAdjustment
}

// Confirm moves the entry to CONFIRMED/FINAL. Statuses never move backwards.
func (e *LedgerEntry) Confirm(at time.Time) error {
	if e.Status != EntryStatusPending {
		return ErrInvalidStatusTransition
	}
	e.Status = EntryStatusConfirmed
	e.ValueStatus = ValueStatusFinal
	e.ConfirmedAt = &at
	return nil
}

// ValidateStatusTransition checks a requested status change.
func ValidateStatusTransition(from, to EntryStatus) error {
	if from == EntryStatusPending && to == EntryStatusConfirmed {
		return nil
	}
	return ErrInvalidStatusTransition
}

// InitialStatus derives the commit-time status pair of a movement.
func InitialStatus(kind EntryKind, originCurrency, canonicalCurrency string, transit TransitStatus) (EntryStatus, ValueStatus) {
	switch {
	case kind == EntryKindWithdrawal:
		return EntryStatusPending, ValueStatusEstimated
	case kind == EntryKindDeposit && originCurrency != canonicalCurrency:
		return EntryStatusPending, ValueStatusEstimated
	case transit == TransitStatusPending:
		return EntryStatusPending, ValueStatusEstimated
	default:
		return EntryStatusConfirmed, ValueStatusFinal
	}
}

// EntryFilter narrows entry listings.
type EntryFilter struct {
	AccountID        string
	ReferenceEntryID string
	Kind             EntryKind
	Status           EntryStatus
	Limit            int
	Offset           int
}
