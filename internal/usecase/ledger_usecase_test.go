package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/iho/cashledger/internal/domain"
	"github.com/iho/cashledger/internal/usecase"
	"github.com/iho/cashledger/internal/usecase/mocks"
)

func TestLedgerUseCase_CheckConsistency(t *testing.T) {
	tests := []struct {
		name       string
		issues     []domain.ConsistencyIssue
		err        error
		consistent bool
	}{
		{name: "consistent", consistent: true},
		{
			name: "lock mismatch",
			issues: []domain.ConsistencyIssue{{
				Kind: domain.IssueLockedMismatch, AccountID: "wallet-1", Asset: "BTC",
				Expected: dec("150"), Actual: dec("0"),
			}},
		},
		{name: "repository error", err: errors.New("connection refused")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			repo := mocks.NewMockLedgerRepository(ctrl)
			repo.EXPECT().CheckConsistency(gomock.Any()).Return(tt.issues, tt.err)

			report, err := usecase.NewLedgerUseCase(repo).CheckConsistency(context.Background())
			if tt.err != nil {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.consistent, report.Consistent)
			assert.Len(t, report.Issues, len(tt.issues))
			assert.NotNil(t, report.Issues)
		})
	}
}

func TestLedgerUseCase_DetectsBrokenLock(t *testing.T) {
	store := mocks.NewMemoryStore()
	store.PutBalance("wallet-1", "BTC", dec("100"))

	tx, err := store.TxManager().Begin(context.Background())
	require.NoError(t, err)
	balances, err := store.Balances().GetForUpdate(context.Background(), tx, []domain.BalanceKey{{AccountID: "wallet-1", Asset: "BTC"}})
	require.NoError(t, err)
	b := balances[domain.BalanceKey{AccountID: "wallet-1", Asset: "BTC"}]
	b.Lock(dec("150"))
	require.NoError(t, store.Balances().Update(context.Background(), tx, b))
	require.NoError(t, tx.Commit(context.Background()))

	report, err := usecase.NewLedgerUseCase(store.Ledger()).CheckConsistency(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Consistent)

	kinds := make([]string, 0, len(report.Issues))
	for _, i := range report.Issues {
		kinds = append(kinds, i.Kind)
	}
	assert.ElementsMatch(t, []string{domain.IssueLockedMismatch, domain.IssueLockedExceedsTotal}, kinds)
}
