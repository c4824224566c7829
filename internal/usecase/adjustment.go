package usecase

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/cashledger/internal/domain"
)

type adjustmentSpec struct {
	ID           string
	RecordID     string
	Account      *domain.Account
	Asset        string
	Currency     string
	CoinSymbol   string
	Delta        decimal.Decimal
	USDDelta     decimal.Decimal
	Reference    string
	ReasonCode   domain.AdjustmentReason
	Reason       string
	AttestedBy   string
	SnapshotAt   time.Time
	UsedFallback bool
	Now          time.Time
}

// newAdjustment builds a CONFIRMED/FINAL ADJUSTMENT entry against a single
// account together with its audit record.
func newAdjustment(s adjustmentSpec) (*domain.LedgerEntry, *domain.AdjustmentRecord, error) {
	if s.Delta.IsZero() {
		return nil, nil, domain.ErrInvalidAmount
	}

	family := domain.CurrencyFamilyFiat
	if s.Account.Type == domain.AccountTypeWallet {
		family = domain.CurrencyFamilyCrypto
	}

	confirmedAt := s.Now
	entry := &domain.LedgerEntry{
		ID:                 s.ID,
		Kind:               domain.EntryKindAdjustment,
		Family:             family,
		OriginCurrency:     s.Currency,
		OriginAmount:       s.Delta,
		CanonicalCurrency:  s.Currency,
		CanonicalAmount:    s.Delta,
		USDReferenceAmount: s.USDDelta,
		RateSnapshotAt:     s.SnapshotAt,
		ImpliedRate:        decimal.NewFromInt(1),
		UsedFallbackRate:   s.UsedFallback,
		Destination:        domain.PartyFor(s.Account),
		CoinSymbol:         s.CoinSymbol,
		Status:             domain.EntryStatusConfirmed,
		ValueStatus:        domain.ValueStatusFinal,
		ReferenceEntryID:   s.Reference,
		Description:        s.Reason,
		CreatedBy:          s.AttestedBy,
		EventAt:            s.Now,
		CreatedAt:          s.Now,
		ConfirmedAt:        &confirmedAt,
	}

	record := &domain.AdjustmentRecord{
		ID:               s.RecordID,
		EntryID:          entry.ID,
		ReferenceEntryID: s.Reference,
		AccountID:        s.Account.ID,
		Asset:            s.Asset,
		Delta:            s.Delta,
		ReasonCode:       s.ReasonCode,
		Reason:           s.Reason,
		AttestedBy:       s.AttestedBy,
		CreatedAt:        s.Now,
	}

	return entry, record, nil
}
