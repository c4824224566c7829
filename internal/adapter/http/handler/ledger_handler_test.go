package handler

import (
	"context"
	"encoding/json"
	"errors"
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

type consistencyCheckerStub struct {
	report *usecase.ConsistencyReport
	err    error
}

func (s *consistencyCheckerStub) CheckConsistency(ctx context.Context) (*usecase.ConsistencyReport, error) {
	return s.report, s.err
}

func TestLedgerHandler_CheckConsistency(t *testing.T) {
	tests := []struct {
		name     string
		stub     *consistencyCheckerStub
		expected int
		issues   int
	}{
		{
			name:     "consistent",
			stub:     &consistencyCheckerStub{report: &usecase.ConsistencyReport{Consistent: true}},
			expected: http.StatusOK,
		},
		{
			name: "locked mismatch",
			stub: &consistencyCheckerStub{report: &usecase.ConsistencyReport{
				Issues: []domain.ConsistencyIssue{{
					Kind:      domain.IssueLockedMismatch,
					AccountID: "w1",
					Asset:     "BTC",
					Expected:  decimal.NewFromInt(1),
					Actual:    decimal.Zero,
				}},
			}},
			expected: http.StatusConflict,
			issues:   1,
		},
		{
			name:     "database error",
			stub:     &consistencyCheckerStub{err: errors.New("connection reset")},
			expected: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewLedgerHandler(tt.stub)

			rec := httptest.NewRecorder()
			h.CheckConsistency(rec, httptest.NewRequest(http.MethodGet, "/ledger/consistency", nil))

			require.Equal(t, tt.expected, rec.Code)
			if tt.stub.err != nil {
				return
			}

			var resp dto.ConsistencyResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Len(t, resp.Issues, tt.issues)
			assert.Equal(t, tt.stub.report.Consistent, resp.Consistent)
		})
	}
}
