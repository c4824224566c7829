package usecase

import (
	"context"

	"github.com/iho/cashledger/internal/domain"
)

// LedgerUseCase handles ledger-wide operations.
type LedgerUseCase struct {
	ledgerRepo LedgerRepository
}

// NewLedgerUseCase creates a new LedgerUseCase.
func NewLedgerUseCase(ledgerRepo LedgerRepository) *LedgerUseCase {
	return &LedgerUseCase{
		ledgerRepo: ledgerRepo,
	}
}

// ConsistencyReport is the outcome of a ledger consistency check.
type ConsistencyReport struct {
	Consistent bool
	Issues     []domain.ConsistencyIssue
}

// CheckConsistency verifies that locked amounts match active transit locks,
// that locks never exceed totals and that pending amounts match pending
// entries.
func (uc *LedgerUseCase) CheckConsistency(ctx context.Context) (*ConsistencyReport, error) {
	issues, err := uc.ledgerRepo.CheckConsistency(ctx)
	if err != nil {
		return nil, err
	}

	if issues == nil {
		issues = []domain.ConsistencyIssue{}
	}

	return &ConsistencyReport{
		Consistent: len(issues) == 0,
		Issues:     issues,
	}, nil
}
