package usecase

import (
	"context"

	"github.com/iho/cashledger/internal/domain"
)

// EntryUseCase handles entry reads.
type EntryUseCase struct {
	entryRepo      EntryRepository
	adjustmentRepo AdjustmentRepository
}

// NewEntryUseCase creates a new EntryUseCase.
func NewEntryUseCase(entryRepo EntryRepository, adjustmentRepo AdjustmentRepository) *EntryUseCase {
	return &EntryUseCase{
		entryRepo:      entryRepo,
		adjustmentRepo: adjustmentRepo,
	}
}

// GetEntry retrieves an entry by ID.
func (uc *EntryUseCase) GetEntry(ctx context.Context, id string) (*domain.LedgerEntry, error) {
	return uc.entryRepo.GetByID(ctx, id)
}

// GetEntriesByAccountInput represents input for listing entries.
type GetEntriesByAccountInput struct {
	AccountID string
	Status    domain.EntryStatus
	Limit     int
	Offset    int
}

// GetEntriesByAccount lists entries touching an account.
func (uc *EntryUseCase) GetEntriesByAccount(ctx context.Context, input GetEntriesByAccountInput) ([]*domain.LedgerEntry, error) {
	if input.Limit <= 0 {
		input.Limit = 20
	}

	if input.Limit > 100 {
		input.Limit = 100
	}

	return uc.entryRepo.List(ctx, domain.EntryFilter{
		AccountID: input.AccountID,
		Status:    input.Status,
		Limit:     input.Limit,
		Offset:    input.Offset,
	})
}

// AdjustmentView pairs an adjustment entry with its audit record.
type AdjustmentView struct {
	Entry  *domain.LedgerEntry
	Record *domain.AdjustmentRecord
}

// GetAdjustments returns the fee and variance adjustments posted against an
// originating entry.
func (uc *EntryUseCase) GetAdjustments(ctx context.Context, entryID string) ([]AdjustmentView, error) {
	if _, err := uc.entryRepo.GetByID(ctx, entryID); err != nil {
		return nil, err
	}

	records, err := uc.adjustmentRepo.ListByReference(ctx, entryID)
	if err != nil {
		return nil, err
	}

	views := make([]AdjustmentView, 0, len(records))
	for _, r := range records {
		entry, err := uc.entryRepo.GetByID(ctx, r.EntryID)
		if err != nil {
			return nil, err
		}
		views = append(views, AdjustmentView{Entry: entry, Record: r})
	}

	return views, nil
}

// GetAccountAdjustments lists the adjustment records of an account,
// reconciliations included.
func (uc *EntryUseCase) GetAccountAdjustments(ctx context.Context, accountID string, limit, offset int) ([]*domain.AdjustmentRecord, error) {
	limit, offset, _ = domain.ValidatePagination(limit, offset)
	return uc.adjustmentRepo.ListByAccount(ctx, accountID, limit, offset)
}
