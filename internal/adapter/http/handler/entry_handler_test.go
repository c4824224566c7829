package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/cashledger/internal/adapter/http/dto"
	"github.com/iho/cashledger/internal/domain"
	"github.com/iho/cashledger/internal/usecase"
)

type entryServiceStub struct {
	getFn               func(ctx context.Context, id string) (*domain.LedgerEntry, error)
	listFn              func(ctx context.Context, input usecase.GetEntriesByAccountInput) ([]*domain.LedgerEntry, error)
	adjustmentsFn       func(ctx context.Context, entryID string) ([]usecase.AdjustmentView, error)
	accountAdjustmentFn func(ctx context.Context, accountID string, limit, offset int) ([]*domain.AdjustmentRecord, error)
}

func (s *entryServiceStub) GetEntry(ctx context.Context, id string) (*domain.LedgerEntry, error) {
	return s.getFn(ctx, id)
}

func (s *entryServiceStub) GetEntriesByAccount(ctx context.Context, input usecase.GetEntriesByAccountInput) ([]*domain.LedgerEntry, error) {
	return s.listFn(ctx, input)
}

func (s *entryServiceStub) GetAdjustments(ctx context.Context, entryID string) ([]usecase.AdjustmentView, error) {
	return s.adjustmentsFn(ctx, entryID)
}

func (s *entryServiceStub) GetAccountAdjustments(ctx context.Context, accountID string, limit, offset int) ([]*domain.AdjustmentRecord, error) {
	return s.accountAdjustmentFn(ctx, accountID, limit, offset)
}

func TestEntryHandler_Get(t *testing.T) {
	h := NewEntryHandler(&entryServiceStub{
		getFn: func(ctx context.Context, id string) (*domain.LedgerEntry, error) {
			if id != "E1" {
				return nil, domain.ErrEntryNotFound
			}
			return &domain.LedgerEntry{ID: "E1", Kind: domain.EntryKindTransfer}, nil
		},
	})

	rec := httptest.NewRecorder()
	h.Get(rec, withURLParam(httptest.NewRequest(http.MethodGet, "/entries/E1", nil), "id", "E1"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.Get(rec, withURLParam(httptest.NewRequest(http.MethodGet, "/entries/E2", nil), "id", "E2"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEntryHandler_ListByAccount(t *testing.T) {
	var captured usecase.GetEntriesByAccountInput
	h := NewEntryHandler(&entryServiceStub{
		listFn: func(ctx context.Context, input usecase.GetEntriesByAccountInput) ([]*domain.LedgerEntry, error) {
			captured = input
			return []*domain.LedgerEntry{{ID: "E1"}, {ID: "E2"}}, nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/accounts/w1/entries?status=PENDING&limit=2", nil)
	rec := httptest.NewRecorder()
	h.ListByAccount(rec, withURLParam(req, "id", "w1"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "w1", captured.AccountID)
	assert.Equal(t, domain.EntryStatusPending, captured.Status)
	assert.Equal(t, 2, captured.Limit)

	var resp []dto.EntryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp, 2)
}

func TestEntryHandler_Adjustments(t *testing.T) {
	h := NewEntryHandler(&entryServiceStub{
		adjustmentsFn: func(ctx context.Context, entryID string) ([]usecase.AdjustmentView, error) {
			return []usecase.AdjustmentView{{
				Entry: &domain.LedgerEntry{ID: "F1", Kind: domain.EntryKindAdjustment, ReferenceEntryID: entryID},
				Record: &domain.AdjustmentRecord{
					ID:               "R1",
					EntryID:          "F1",
					ReferenceEntryID: entryID,
					Delta:            decimal.NewFromInt(-5),
					ReasonCode:       domain.AdjustmentReasonFee,
				},
			}}, nil
		},
	})

	rec := httptest.NewRecorder()
	h.Adjustments(rec, withURLParam(httptest.NewRequest(http.MethodGet, "/entries/E1/adjustments", nil), "id", "E1"))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp []dto.AdjustmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, domain.AdjustmentReasonFee, resp[0].Record.ReasonCode)
	assert.Equal(t, "E1", resp[0].Entry.ReferenceEntryID)
}

func TestEntryHandler_AccountAdjustments(t *testing.T) {
	h := NewEntryHandler(&entryServiceStub{
		accountAdjustmentFn: func(ctx context.Context, accountID string, limit, offset int) ([]*domain.AdjustmentRecord, error) {
			assert.Equal(t, "bk-1", accountID)
			assert.Equal(t, 20, limit)
			return []*domain.AdjustmentRecord{{ID: "R1", ReasonCode: domain.AdjustmentReasonReconciliation}}, nil
		},
	})

	rec := httptest.NewRecorder()
	h.AccountAdjustments(rec, withURLParam(httptest.NewRequest(http.MethodGet, "/accounts/bk-1/adjustments", nil), "id", "bk-1"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"reason_code":"RECONCILIATION"`)
}
