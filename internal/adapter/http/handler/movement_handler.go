package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/iho/cashledger/internal/adapter/http/dto"
	"github.com/iho/cashledger/internal/adapter/http/middleware"
	"github.com/iho/cashledger/internal/domain"
	"github.com/iho/cashledger/internal/usecase"
)

// MovementService defines the write side used by MovementHandler.
type MovementService interface {
	SubmitMovement(ctx context.Context, draft domain.MovementDraft) (*usecase.MovementResult, error)
	ConfirmEntry(ctx context.Context, input usecase.ConfirmEntryInput) (*usecase.ConfirmationResult, error)
	ConfirmFee(ctx context.Context, input usecase.ConfirmFeeInput) (*usecase.FeeResult, error)
}

// MovementHandler handles movement submission and entry confirmation.
type MovementHandler struct {
	writeUC MovementService
}

// NewMovementHandler creates a new MovementHandler.
func NewMovementHandler(writeUC MovementService) *MovementHandler {
	return &MovementHandler{writeUC: writeUC}
}

// Submit validates and commits a movement. The Idempotency-Key header, when
// present, is stored on the entry so a retried submission returns it.
func (h *MovementHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req dto.SubmitMovementRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	key := strings.TrimSpace(r.Header.Get(middleware.IdempotencyKeyHeader))
	draft, err := req.ToDraft(key, domain.OperatorID(r.Context()))
	if err != nil {
		writeDomainError(w, "invalid movement", err)
		return
	}

	result, err := h.writeUC.SubmitMovement(r.Context(), draft)
	if err != nil {
		writeDomainError(w, "failed to submit movement", err)
		return
	}

	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, dto.MovementFromResult(result))
}

// Confirm confirms a pending entry.
func (h *MovementHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing entry ID", "")
		return
	}

	var req dto.ConfirmEntryRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}

	input, err := req.ToUseCaseInput(id)
	if err != nil {
		writeDomainError(w, "invalid confirmation", err)
		return
	}

	result, err := h.writeUC.ConfirmEntry(r.Context(), input)
	if err != nil {
		writeDomainError(w, "failed to confirm entry", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ConfirmationFromResult(result))
}

// ConfirmFee accepts or declines the fee of an entry.
func (h *MovementHandler) ConfirmFee(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing entry ID", "")
		return
	}

	var req dto.ConfirmFeeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.writeUC.ConfirmFee(r.Context(), usecase.ConfirmFeeInput{EntryID: id, Accept: req.Accept})
	if err != nil {
		writeDomainError(w, "failed to confirm fee", err)
		return
	}

	status := http.StatusOK
	if result.Posted && !result.AlreadyPosted {
		status = http.StatusCreated
	}
	writeJSON(w, status, dto.FeeFromResult(result))
}
