package middleware

import (
	"net/http"
	"strings"

	"github.com/iho/cashledger/internal/domain"
	"github.com/iho/cashledger/internal/infrastructure/auth"
	"github.com/iho/cashledger/internal/infrastructure/metrics"
)

// TokenVerifier validates bearer tokens.
type TokenVerifier interface {
	Verify(tokenString string) (*auth.Claims, error)
}

func bearerToken(r *http.Request) (string, bool) {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// AuthMiddleware rejects requests without a valid operator token and
// attaches the operator to the request context. m may be nil.
func AuthMiddleware(verifier TokenVerifier, m *metrics.Metrics) func(http.Handler) http.Handler {
	record := func(status string) {
		if m != nil {
			m.AuthAttempts.WithLabelValues(status).Inc()
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				record("missing")
				writeJSONError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			token, ok := bearerToken(r)
			if !ok {
				record("malformed")
				writeJSONError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				record("invalid")
				writeJSONError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			record("ok")
			ctx := domain.WithOperator(r.Context(), claims.Operator())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole creates a middleware that checks for a specific role
func RequireRole(minRole domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			op, ok := domain.OperatorFromContext(r.Context())
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			switch minRole {
			case domain.RoleAdmin:
				if !op.Role.CanManageAccounts() {
					writeJSONError(w, http.StatusForbidden, "insufficient permissions")
					return
				}
			case domain.RoleOperator:
				if !op.Role.CanWrite() {
					writeJSONError(w, http.StatusForbidden, "insufficient permissions")
					return
				}
			case domain.RoleViewer:
				// All authenticated operators can read
			}

			next.ServeHTTP(w, r)
		})
	}
}
