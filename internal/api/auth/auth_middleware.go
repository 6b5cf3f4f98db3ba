package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/FACorreiaa/go-blogr-api/app/observability/metrics"
	"github.com/FACorreiaa/go-blogr-api/internal/api"
	"github.com/FACorreiaa/go-blogr-api/internal/types"
)

type contextKey string

const principalKey contextKey = "principal"

const bearerScheme = "bearer"

// Gate resolves the Authorization header of a request to a stored user.
type Gate struct {
	tokens TokenVerifier
	users  UserDirectory
}

func NewGate(tokens TokenVerifier, users UserDirectory) *Gate {
	return &Gate{tokens: tokens, users: users}
}

// Authenticate returns the principal for r. A request without a Bearer
// credential is anonymous and yields nil, nil. A rejected credential yields an
// *types.AuthError. Other errors come from the user directory.
func (g *Gate) Authenticate(r *http.Request) (*types.User, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, nil
	}

	parts := strings.Fields(header)
	if len(parts) == 0 || strings.ToLower(parts[0]) != bearerScheme {
		return nil, nil
	}
	switch {
	case len(parts) == 1:
		return nil, types.NewAuthError(types.ReasonMissingCredentials)
	case len(parts) > 2:
		return nil, types.NewAuthError(types.ReasonContainsSpaces)
	}

	claims, err := g.tokens.Verify(parts[1])
	if err != nil {
		return nil, err
	}

	user, err := g.users.FindByEmailAndUsername(r.Context(), claims.Email, claims.Username)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, types.NewAuthError(types.ReasonInvalidToken)
		}
		return nil, fmt.Errorf("resolving token principal: %w", err)
	}
	return user, nil
}

// Authenticate is middleware that runs the gate on every request. Anonymous
// requests pass through without a principal; rejected credentials stop with
// 401 and the failure reason.
func Authenticate(gate *Gate, logger *slog.Logger, m *metrics.AppMetrics) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			l := logger.With(slog.String("middleware", "Authenticate"))

			user, err := gate.Authenticate(r)
			if err != nil {
				if reason, ok := types.AuthReason(err); ok {
					l.WarnContext(ctx, "Rejected bearer token", slog.String("reason", reason))
					if m != nil {
						m.AuthFailuresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
					}
					api.ErrorResponse(w, r, http.StatusUnauthorized, reason)
					return
				}
				l.ErrorContext(ctx, "Authentication lookup failed", slog.Any("error", err))
				api.ErrorResponse(w, r, http.StatusInternalServerError, "an error occurred")
				return
			}

			if user != nil {
				ctx = WithPrincipal(ctx, user)
				l.DebugContext(ctx, "Request authenticated", slog.String("username", user.Username))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth rejects requests that reached it without a principal.
// Runs AFTER the Authenticate middleware.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetPrincipalFromContext(r.Context()); !ok {
			api.ErrorResponse(w, r, http.StatusUnauthorized, "authentication credentials were not provided")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func WithPrincipal(ctx context.Context, user *types.User) context.Context {
	return context.WithValue(ctx, principalKey, user)
}

func GetPrincipalFromContext(ctx context.Context) (*types.User, bool) {
	user, ok := ctx.Value(principalKey).(*types.User)
	return user, ok && user != nil
}
