package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/cashledger/internal/adapter/http/dto"
	"github.com/iho/cashledger/internal/domain"
	"github.com/iho/cashledger/internal/usecase"
)

// EntryService defines the read side used by EntryHandler.
type EntryService interface {
	GetEntry(ctx context.Context, id string) (*domain.LedgerEntry, error)
	GetEntriesByAccount(ctx context.Context, input usecase.GetEntriesByAccountInput) ([]*domain.LedgerEntry, error)
	GetAdjustments(ctx context.Context, entryID string) ([]usecase.AdjustmentView, error)
	GetAccountAdjustments(ctx context.Context, accountID string, limit, offset int) ([]*domain.AdjustmentRecord, error)
}

// EntryHandler handles entry-related HTTP requests.
type EntryHandler struct {
	entryUC EntryService
}

// NewEntryHandler creates a new EntryHandler.
func NewEntryHandler(entryUC EntryService) *EntryHandler {
	return &EntryHandler{entryUC: entryUC}
}

// Get retrieves an entry by ID.
func (h *EntryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing entry ID", "")
		return
	}

	entry, err := h.entryUC.GetEntry(r.Context(), id)
	if err != nil {
		writeDomainError(w, "failed to get entry", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.EntryFromDomain(entry))
}

// ListByAccount lists entries for an account.
func (h *EntryHandler) ListByAccount(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")
	if accountID == "" {
		writeError(w, http.StatusBadRequest, "missing account ID", "")
		return
	}

	limit := parseIntQuery(r, "limit", 20)
	offset := parseIntQuery(r, "offset", 0)

	entries, err := h.entryUC.GetEntriesByAccount(r.Context(), usecase.GetEntriesByAccountInput{
		AccountID: accountID,
		Status:    domain.EntryStatus(r.URL.Query().Get("status")),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		writeDomainError(w, "failed to list entries", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.EntriesFromDomain(entries))
}

// Adjustments lists the fee and variance adjustments of an entry.
func (h *EntryHandler) Adjustments(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing entry ID", "")
		return
	}

	views, err := h.entryUC.GetAdjustments(r.Context(), id)
	if err != nil {
		writeDomainError(w, "failed to list adjustments", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.AdjustmentsFromViews(views))
}

// AccountAdjustments lists the adjustment records of an account.
func (h *EntryHandler) AccountAdjustments(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")
	if accountID == "" {
		writeError(w, http.StatusBadRequest, "missing account ID", "")
		return
	}

	records, err := h.entryUC.GetAccountAdjustments(r.Context(), accountID,
		parseIntQuery(r, "limit", 20), parseIntQuery(r, "offset", 0))
	if err != nil {
		writeDomainError(w, "failed to list adjustments", err)
		return
	}

	resp := make([]*dto.AdjustmentRecordResponse, len(records))
	for i, rec := range records {
		resp[i] = dto.AdjustmentRecordFromDomain(rec)
	}
	writeJSON(w, http.StatusOK, resp)
}
