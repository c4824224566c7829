package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/cashledger/internal/adapter/http/dto"
	"github.com/iho/cashledger/internal/domain"
	"github.com/iho/cashledger/internal/infrastructure/metrics"
	"github.com/iho/cashledger/internal/usecase"
)

type authenticatorStub struct {
	op  *domain.Operator
	err error
}

func (s *authenticatorStub) Authenticate(ctx context.Context, input usecase.AuthenticateInput) (*domain.Operator, error) {
	return s.op, s.err
}

type tokenIssuerStub struct{}

func (tokenIssuerStub) Generate(op *domain.Operator) (string, error) {
	return "token-" + op.ID, nil
}

func (tokenIssuerStub) TokenDuration() time.Duration {
	return time.Hour
}

func TestAuthHandler_Login(t *testing.T) {
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	op := &domain.Operator{ID: "op-1", Email: "ops@example.com", Role: domain.RoleOperator, Active: true}
	h := NewAuthHandler(&authenticatorStub{op: op}, tokenIssuerStub{}, m)

	body := `{"email":"ops@example.com","password":"Secret123"}`
	rec := httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(body)))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp dto.LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "token-op-1", resp.Token)
	assert.Equal(t, domain.RoleOperator, resp.Operator.Role)
	assert.True(t, resp.ExpiresAt.After(time.Now()))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuthAttempts.WithLabelValues("success")))
}

func TestAuthHandler_LoginRejected(t *testing.T) {
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	h := NewAuthHandler(&authenticatorStub{err: domain.ErrUnauthorized}, tokenIssuerStub{}, m)

	rec := httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(`{"email":"x@example.com","password":"nope"}`)))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuthAttempts.WithLabelValues("failure")))
}

func TestAuthHandler_Me(t *testing.T) {
	h := NewAuthHandler(&authenticatorStub{}, tokenIssuerStub{}, nil)

	rec := httptest.NewRecorder()
	h.Me(rec, httptest.NewRequest(http.MethodGet, "/auth/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req = req.WithContext(domain.WithOperator(req.Context(), &domain.Operator{ID: "op-1", Email: "ops@example.com", Role: domain.RoleViewer}))
	rec = httptest.NewRecorder()
	h.Me(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"role":"viewer"`)
}
