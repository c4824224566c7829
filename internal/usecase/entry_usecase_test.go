package usecase_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/iho/cashledger/internal/domain"
	"github.com/iho/cashledger/internal/usecase"
	"github.com/iho/cashledger/internal/usecase/mocks"
)

func TestEntryUseCase_GetEntriesByAccount(t *testing.T) {
	tests := []struct {
		name      string
		input     usecase.GetEntriesByAccountInput
		wantLimit int
	}{
		{name: "default limit", input: usecase.GetEntriesByAccountInput{AccountID: "bank-eur"}, wantLimit: 20},
		{name: "capped limit", input: usecase.GetEntriesByAccountInput{AccountID: "bank-eur", Limit: 1000}, wantLimit: 100},
		{name: "explicit limit", input: usecase.GetEntriesByAccountInput{AccountID: "bank-eur", Limit: 5, Offset: 10}, wantLimit: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			entryRepo := mocks.NewMockEntryRepository(ctrl)

			entryRepo.EXPECT().List(gomock.Any(), domain.EntryFilter{
				AccountID: "bank-eur",
				Limit:     tt.wantLimit,
				Offset:    tt.input.Offset,
			}).Return([]*domain.LedgerEntry{{ID: "e-1"}}, nil)

			uc := usecase.NewEntryUseCase(entryRepo, nil)
			entries, err := uc.GetEntriesByAccount(context.Background(), tt.input)
			require.NoError(t, err)
			assert.Len(t, entries, 1)
		})
	}
}

func TestEntryUseCase_GetAdjustments(t *testing.T) {
	ctrl := gomock.NewController(t)
	entryRepo := mocks.NewMockEntryRepository(ctrl)
	adjustmentRepo := mocks.NewMockAdjustmentRepository(ctrl)
	uc := usecase.NewEntryUseCase(entryRepo, adjustmentRepo)

	t.Run("pairs records with entries", func(t *testing.T) {
		entryRepo.EXPECT().GetByID(gomock.Any(), "e-1").Return(&domain.LedgerEntry{ID: "e-1"}, nil)
		adjustmentRepo.EXPECT().ListByReference(gomock.Any(), "e-1").Return([]*domain.AdjustmentRecord{
			{ID: "r-1", EntryID: "e-2", ReferenceEntryID: "e-1", ReasonCode: domain.AdjustmentReasonFee},
		}, nil)
		entryRepo.EXPECT().GetByID(gomock.Any(), "e-2").
			Return(&domain.LedgerEntry{ID: "e-2", Kind: domain.EntryKindAdjustment}, nil)

		views, err := uc.GetAdjustments(context.Background(), "e-1")
		require.NoError(t, err)
		require.Len(t, views, 1)
		assert.Equal(t, "e-2", views[0].Entry.ID)
		assert.Equal(t, domain.AdjustmentReasonFee, views[0].Record.ReasonCode)
	})

	t.Run("unknown entry", func(t *testing.T) {
		entryRepo.EXPECT().GetByID(gomock.Any(), "missing").Return(nil, domain.ErrEntryNotFound)

		_, err := uc.GetAdjustments(context.Background(), "missing")
		assert.ErrorIs(t, err, domain.ErrEntryNotFound)
	})
}
