package auth

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/xela07ax/tenant-agent-core/internal/domain"
)

type ctxKey string

const (
	ctxKeyOperatorID ctxKey = "operator_id"
	ctxKeyScopes     ctxKey = "operator_scopes"
)

// TokenValidator — контракт проверки токена оператора.
type TokenValidator interface {
	VerifyToken(tokenStr string) (*domain.OperatorClaims, error)
}

func NewMiddleware(v TokenValidator, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := v.VerifyToken(authHeader)
			if err != nil {
				logger.Warn("auth failure", zap.Error(err))
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			// Прокидываем данные в контекст
			ctx := context.WithValue(r.Context(), ctxKeyScopes, claims.Scopes)
			ctx = context.WithValue(ctx, ctxKeyOperatorID, claims.OperatorID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OperatorID достает идентификатор оператора из контекста запроса.
func OperatorID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyOperatorID).(string)
	return id
}

// Scopes достает scopes оператора из контекста запроса.
func Scopes(ctx context.Context) map[string]bool {
	s, _ := ctx.Value(ctxKeyScopes).(map[string]bool)
	return s
}
