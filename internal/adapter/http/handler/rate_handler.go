package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/cashledger/internal/adapter/http/dto"
	"github.com/iho/cashledger/internal/domain"
	"github.com/iho/cashledger/internal/usecase"
)

// RateService defines the behavior needed by RateHandler.
type RateService interface {
	PutRate(ctx context.Context, input usecase.PutRateInput) (*domain.Rate, error)
	PutCoinPrice(ctx context.Context, input usecase.PutCoinPriceInput) (*domain.CoinPrice, error)
	Snapshot(ctx context.Context, currencies, coins []string) (*domain.RateSnapshot, error)
	QuoteConversion(ctx context.Context, input usecase.QuoteConversionInput) (*usecase.ConversionQuote, error)
}

// RateHandler handles the rate feed and conversion previews.
type RateHandler struct {
	rateUC RateService
}

// NewRateHandler creates a new RateHandler.
func NewRateHandler(rateUC RateService) *RateHandler {
	return &RateHandler{rateUC: rateUC}
}

// PutRate stores the pivot rate of a currency.
func (h *RateHandler) PutRate(w http.ResponseWriter, r *http.Request) {
	var req dto.PutRateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	input, err := req.ToUseCaseInput(chi.URLParam(r, "currency"))
	if err != nil {
		writeDomainError(w, "invalid rate", err)
		return
	}

	rate, err := h.rateUC.PutRate(r.Context(), input)
	if err != nil {
		writeDomainError(w, "failed to store rate", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.RateFromDomain(*rate))
}

// PutCoinPrice stores the USD price of a coin.
func (h *RateHandler) PutCoinPrice(w http.ResponseWriter, r *http.Request) {
	var req dto.PutCoinPriceRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	input, err := req.ToUseCaseInput(chi.URLParam(r, "symbol"))
	if err != nil {
		writeDomainError(w, "invalid coin price", err)
		return
	}

	price, err := h.rateUC.PutCoinPrice(r.Context(), input)
	if err != nil {
		writeDomainError(w, "failed to store coin price", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.CoinPriceFromDomain(*price))
}

// Snapshot returns the quotes currently available for the requested codes.
func (h *RateHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.rateUC.Snapshot(r.Context(), parseListQuery(r, "currencies"), parseListQuery(r, "coins"))
	if err != nil {
		writeDomainError(w, "failed to build snapshot", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.SnapshotFromDomain(snapshot))
}

// Quote previews a conversion without persisting anything.
func (h *RateHandler) Quote(w http.ResponseWriter, r *http.Request) {
	var req dto.QuoteConversionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	input, err := req.ToUseCaseInput()
	if err != nil {
		writeDomainError(w, "invalid conversion", err)
		return
	}

	quote, err := h.rateUC.QuoteConversion(r.Context(), input)
	if err != nil {
		writeDomainError(w, "failed to quote conversion", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ConversionQuoteFromResult(quote))
}
