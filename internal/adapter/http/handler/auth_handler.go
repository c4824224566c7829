package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/iho/cashledger/internal/adapter/http/dto"
	"github.com/iho/cashledger/internal/domain"
	"github.com/iho/cashledger/internal/infrastructure/metrics"
	"github.com/iho/cashledger/internal/usecase"
)

// Authenticator verifies operator credentials
type Authenticator interface {
	Authenticate(ctx context.Context, input usecase.AuthenticateInput) (*domain.Operator, error)
}

// TokenIssuer issues operator tokens
type TokenIssuer interface {
	Generate(op *domain.Operator) (string, error)
	TokenDuration() time.Duration
}

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	operators Authenticator
	tokens    TokenIssuer
	metrics   *metrics.Metrics
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(operators Authenticator, tokens TokenIssuer, m *metrics.Metrics) *AuthHandler {
	return &AuthHandler{
		operators: operators,
		tokens:    tokens,
		metrics:   m,
	}
}

// Login exchanges operator credentials for a token
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	op, err := h.operators.Authenticate(r.Context(), usecase.AuthenticateInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.record("failure")
		writeError(w, http.StatusUnauthorized, "invalid credentials", "")
		return
	}

	token, err := h.tokens.Generate(op)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate token", err.Error())
		return
	}

	h.record("success")
	writeJSON(w, http.StatusOK, dto.LoginResponse{
		Token:     token,
		ExpiresAt: time.Now().UTC().Add(h.tokens.TokenDuration()),
		Operator:  dto.OperatorFromDomain(op),
	})
}

// Me returns the authenticated operator
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	op, ok := domain.OperatorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "")
		return
	}

	writeJSON(w, http.StatusOK, dto.OperatorFromDomain(op))
}

func (h *AuthHandler) record(status string) {
	if h.metrics != nil {
		h.metrics.AuthAttempts.WithLabelValues(status).Inc()
	}
}
