package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/cashledger/internal/adapter/http/dto"
	"github.com/iho/cashledger/internal/adapter/http/middleware"
	"github.com/iho/cashledger/internal/domain"
	"github.com/iho/cashledger/internal/usecase"
)

type movementServiceStub struct {
	submitFn     func(ctx context.Context, draft domain.MovementDraft) (*usecase.MovementResult, error)
	confirmFn    func(ctx context.Context, input usecase.ConfirmEntryInput) (*usecase.ConfirmationResult, error)
	confirmFeeFn func(ctx context.Context, input usecase.ConfirmFeeInput) (*usecase.FeeResult, error)
}

func (s *movementServiceStub) SubmitMovement(ctx context.Context, draft domain.MovementDraft) (*usecase.MovementResult, error) {
	return s.submitFn(ctx, draft)
}

func (s *movementServiceStub) ConfirmEntry(ctx context.Context, input usecase.ConfirmEntryInput) (*usecase.ConfirmationResult, error) {
	return s.confirmFn(ctx, input)
}

func (s *movementServiceStub) ConfirmFee(ctx context.Context, input usecase.ConfirmFeeInput) (*usecase.FeeResult, error) {
	return s.confirmFeeFn(ctx, input)
}

func depositBody(t *testing.T) []byte {
	t.Helper()
	body, err := json.Marshal(dto.SubmitMovementRequest{
		Kind:         "DEPOSIT",
		Origin:       dto.PartyRequest{Type: "BANK_ACCOUNT", PartnerID: "p1", AccountID: "bank-eur"},
		Destination:  dto.PartyRequest{Type: "BOOKMAKER", AccountID: "bk-eur"},
		OriginAmount: "100",
	})
	require.NoError(t, err)
	return body
}

func TestMovementHandler_Submit(t *testing.T) {
	var captured domain.MovementDraft
	h := NewMovementHandler(&movementServiceStub{
		submitFn: func(ctx context.Context, draft domain.MovementDraft) (*usecase.MovementResult, error) {
			captured = draft
			return &usecase.MovementResult{
				Entry: &domain.LedgerEntry{
					ID:                "E1",
					Kind:              domain.EntryKindDeposit,
					CanonicalCurrency: "EUR",
					CanonicalAmount:   decimal.NewFromInt(100),
					Destination:       domain.BookmakerParty("bk-eur"),
					Status:            domain.EntryStatusConfirmed,
					ValueStatus:       domain.ValueStatusFinal,
				},
			}, nil
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/movements", bytes.NewReader(depositBody(t)))
	req.Header.Set(middleware.IdempotencyKeyHeader, "dep-1")
	req = req.WithContext(domain.WithOperator(req.Context(), &domain.Operator{ID: "op-7", Role: domain.RoleOperator}))
	rec := httptest.NewRecorder()

	h.Submit(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "dep-1", captured.IdempotencyKey)
	assert.Equal(t, "op-7", captured.CreatedBy)
	assert.Equal(t, domain.BankAccountParty("p1", "bank-eur"), captured.Origin)

	var resp dto.MovementResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "E1", resp.Entry.ID)
	assert.False(t, resp.Replayed)
}

func TestMovementHandler_SubmitReplayReturns200(t *testing.T) {
	h := NewMovementHandler(&movementServiceStub{
		submitFn: func(ctx context.Context, draft domain.MovementDraft) (*usecase.MovementResult, error) {
			return &usecase.MovementResult{Entry: &domain.LedgerEntry{ID: "E1"}, Replayed: true}, nil
		},
	})

	rec := httptest.NewRecorder()
	h.Submit(rec, httptest.NewRequest(http.MethodPost, "/movements", bytes.NewReader(depositBody(t))))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMovementHandler_SubmitErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{
			name:     "insufficient balance",
			err:      &domain.InsufficientBalanceError{AccountID: "bank-eur", Asset: "EUR", Available: decimal.NewFromInt(100), Requested: decimal.NewFromInt(120)},
			expected: http.StatusUnprocessableEntity,
		},
		{
			name:     "rate unavailable",
			err:      &domain.RateUnavailableError{Currency: "ARS"},
			expected: http.StatusServiceUnavailable,
		},
		{
			name:     "released account",
			err:      domain.ErrAccountReleased,
			expected: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewMovementHandler(&movementServiceStub{
				submitFn: func(ctx context.Context, draft domain.MovementDraft) (*usecase.MovementResult, error) {
					return nil, tt.err
				},
			})

			rec := httptest.NewRecorder()
			h.Submit(rec, httptest.NewRequest(http.MethodPost, "/movements", bytes.NewReader(depositBody(t))))

			assert.Equal(t, tt.expected, rec.Code)
		})
	}
}

func TestMovementHandler_SubmitInvalidAmount(t *testing.T) {
	h := NewMovementHandler(&movementServiceStub{
		submitFn: func(ctx context.Context, draft domain.MovementDraft) (*usecase.MovementResult, error) {
			t.Fatal("SubmitMovement should not be called for an invalid amount")
			return nil, nil
		},
	})

	rec := httptest.NewRecorder()
	h.Submit(rec, httptest.NewRequest(http.MethodPost, "/movements", bytes.NewBufferString(`{"kind":"DEPOSIT","origin_amount":"abc"}`)))

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Fields, 1)
	assert.Equal(t, "origin_amount", resp.Fields[0].Field)
}

func TestMovementHandler_Confirm(t *testing.T) {
	var captured usecase.ConfirmEntryInput
	h := NewMovementHandler(&movementServiceStub{
		confirmFn: func(ctx context.Context, input usecase.ConfirmEntryInput) (*usecase.ConfirmationResult, error) {
			captured = input
			return &usecase.ConfirmationResult{
				Entry:        &domain.LedgerEntry{ID: input.EntryID, Status: domain.EntryStatusConfirmed},
				LockReleased: true,
			}, nil
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/entries/E1/confirm", bytes.NewBufferString(`{"received_amount":"99.5","reason":"bank charge"}`))
	rec := httptest.NewRecorder()
	h.Confirm(rec, withURLParam(req, "id", "E1"))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "E1", captured.EntryID)
	require.NotNil(t, captured.ReceivedAmount)
	assert.True(t, captured.ReceivedAmount.Equal(decimal.RequireFromString("99.5")))

	var resp dto.ConfirmationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.LockReleased)
}

func TestMovementHandler_ConfirmWithoutBody(t *testing.T) {
	h := NewMovementHandler(&movementServiceStub{
		confirmFn: func(ctx context.Context, input usecase.ConfirmEntryInput) (*usecase.ConfirmationResult, error) {
			assert.Nil(t, input.ReceivedAmount)
			return nil, domain.ErrInvalidStatusTransition
		},
	})

	rec := httptest.NewRecorder()
	h.Confirm(rec, withURLParam(httptest.NewRequest(http.MethodPost, "/entries/E1/confirm", nil), "id", "E1"))

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestMovementHandler_ConfirmFee(t *testing.T) {
	tests := []struct {
		name     string
		result   *usecase.FeeResult
		expected int
	}{
		{name: "posted", result: &usecase.FeeResult{Posted: true, FeeEntry: &domain.LedgerEntry{ID: "F1"}}, expected: http.StatusCreated},
		{name: "already posted", result: &usecase.FeeResult{Posted: true, AlreadyPosted: true}, expected: http.StatusOK},
		{name: "declined", result: &usecase.FeeResult{}, expected: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewMovementHandler(&movementServiceStub{
				confirmFeeFn: func(ctx context.Context, input usecase.ConfirmFeeInput) (*usecase.FeeResult, error) {
					assert.True(t, input.Accept)
					assert.Equal(t, "E1", input.EntryID)
					return tt.result, nil
				},
			})

			req := httptest.NewRequest(http.MethodPost, "/entries/E1/fee", bytes.NewBufferString(`{"accept":true}`))
			rec := httptest.NewRecorder()
			h.ConfirmFee(rec, withURLParam(req, "id", "E1"))

			assert.Equal(t, tt.expected, rec.Code)
		})
	}
}
