package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/iho/cashledger/internal/domain"
	"github.com/iho/cashledger/internal/infrastructure/auth"
	"github.com/iho/cashledger/internal/infrastructure/metrics"
)

func TestAuthMiddleware(t *testing.T) {
	manager := auth.NewJWTManager("secret", time.Minute)
	token, err := manager.Generate(&domain.Operator{ID: "op-1", Email: "op@example.com", Role: domain.RoleOperator})
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	testCases := []struct {
		name       string
		header     string
		wantStatus int
		wantResult string
	}{
		{name: "missing header", header: "", wantStatus: http.StatusUnauthorized, wantResult: "missing"},
		{name: "malformed header", header: "Token abc", wantStatus: http.StatusUnauthorized, wantResult: "malformed"},
		{name: "invalid token", header: "Bearer nope", wantStatus: http.StatusUnauthorized, wantResult: "invalid"},
		{name: "valid token", header: "Bearer " + token, wantStatus: http.StatusOK, wantResult: "ok"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m := metrics.NewWithRegistry(prometheus.NewRegistry())

			var seen string
			h := AuthMiddleware(manager, m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = domain.OperatorID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/accounts", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			if rr.Code != tc.wantStatus {
				t.Fatalf("expected status %d, got %d", tc.wantStatus, rr.Code)
			}
			if tc.wantStatus == http.StatusOK && seen != "op-1" {
				t.Fatalf("expected operator op-1 in context, got %q", seen)
			}
			if got := testutil.ToFloat64(m.AuthAttempts.WithLabelValues(tc.wantResult)); got != 1 {
				t.Fatalf("expected auth attempt %q recorded, got %v", tc.wantResult, got)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	testCases := []struct {
		name       string
		operator   *domain.Operator
		minRole    domain.Role
		wantStatus int
	}{
		{name: "no operator", minRole: domain.RoleViewer, wantStatus: http.StatusUnauthorized},
		{name: "viewer reads", operator: &domain.Operator{ID: "v", Role: domain.RoleViewer}, minRole: domain.RoleViewer, wantStatus: http.StatusOK},
		{name: "viewer cannot write", operator: &domain.Operator{ID: "v", Role: domain.RoleViewer}, minRole: domain.RoleOperator, wantStatus: http.StatusForbidden},
		{name: "operator writes", operator: &domain.Operator{ID: "o", Role: domain.RoleOperator}, minRole: domain.RoleOperator, wantStatus: http.StatusOK},
		{name: "operator cannot reconcile", operator: &domain.Operator{ID: "o", Role: domain.RoleOperator}, minRole: domain.RoleAdmin, wantStatus: http.StatusForbidden},
		{name: "admin reconciles", operator: &domain.Operator{ID: "a", Role: domain.RoleAdmin}, minRole: domain.RoleAdmin, wantStatus: http.StatusOK},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h := RequireRole(tc.minRole)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

			req := httptest.NewRequest(http.MethodPost, "/api/v1/movements", nil)
			if tc.operator != nil {
				req = req.WithContext(domain.WithOperator(req.Context(), tc.operator))
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			if rr.Code != tc.wantStatus {
				t.Fatalf("expected status %d, got %d", tc.wantStatus, rr.Code)
			}
		})
	}
}

func TestRateLimiter(t *testing.T) {
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	rl := NewRateLimiter(1, 2, m)
	h := rl.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	codes := make([]int, 0, 3)
	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/accounts", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status sequence %v", codes)
	}
	if got := testutil.ToFloat64(m.RateLimitHits); got != 1 {
		t.Fatalf("expected one rate limit hit, got %v", got)
	}

	other := httptest.NewRequest(http.MethodGet, "/api/v1/accounts", nil)
	other.RemoteAddr = "10.0.0.2:5555"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, other)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected separate budget per client, got %d", rr.Code)
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, 1, nil)
	rl.now = func() time.Time { return now }

	rl.getLimiter("10.0.0.1")
	now = now.Add(2 * time.Hour)
	rl.getLimiter("10.0.0.2")

	rl.CleanupLimiters(time.Hour)

	if _, ok := rl.visitors["10.0.0.1"]; ok {
		t.Fatalf("expected idle limiter to be removed")
	}
	if _, ok := rl.visitors["10.0.0.2"]; !ok {
		t.Fatalf("expected recent limiter to be kept")
	}
}

func TestRecoveryLogsAndReturns500(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	h := Recovery(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/accounts", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rr.Code)
	}
	if !strings.Contains(buf.String(), "panic recovered") {
		t.Fatalf("expected panic to be logged, got %s", buf.String())
	}
}

func TestLoggingMiddlewareLevels(t *testing.T) {
	var buf bytes.Buffer
	mw := NewLoggingMiddleware(zerolog.New(&buf))

	h := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/entries/missing", nil))

	out := buf.String()
	if !strings.Contains(out, `"level":"warn"`) || !strings.Contains(out, `"status":404`) {
		t.Fatalf("unexpected log line %s", out)
	}
}

func TestLoggingMiddlewareSkipsHealthChecks(t *testing.T) {
	var buf bytes.Buffer
	h := NewLoggingMiddleware(zerolog.New(&buf)).Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	if buf.Len() != 0 {
		t.Fatalf("expected no log line for a passing health check, got %s", buf.String())
	}
}

func TestLoggingMiddlewareAttachesRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	h := chimiddleware.RequestID(NewLoggingMiddleware(zerolog.New(&buf)).Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		zerolog.Ctx(r.Context()).Info().Msg("inside handler")
		_, _ = w.Write([]byte("hello"))
	})))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/accounts", nil))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %q", buf.String())
	}
	for _, line := range lines {
		if !strings.Contains(line, `"request_id":`) {
			t.Fatalf("expected request_id in %s", line)
		}
	}
	if !strings.Contains(lines[1], `"bytes":5`) || !strings.Contains(lines[1], `"status":200`) {
		t.Fatalf("unexpected access log %s", lines[1])
	}
}
