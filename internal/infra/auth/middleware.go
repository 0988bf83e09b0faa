package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/xela07ax/mmonit-hub/internal/domain"
	"go.uber.org/zap"
)

// SessionCookie — cookie с токеном для браузера
const SessionCookie = "mmonit_hub_session"

// TokenValidator — проверка сессионного токена
type TokenValidator interface {
	VerifyToken(tokenStr string) (*domain.CustomClaims, error)
}

// BasicAuthenticator — проверка логина и пароля из заголовка Basic
type BasicAuthenticator interface {
	Authenticate(username, password string) (string, error)
}

type identityKey struct{}

// WithIdentity кладет имя вызывающего в контекст
func WithIdentity(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, identityKey{}, username)
}

// IdentityFrom достает имя вызывающего; без middleware — anonymous
func IdentityFrom(ctx context.Context) string {
	if name, ok := ctx.Value(identityKey{}).(string); ok && name != "" {
		return name
	}
	return domain.AnonymousUser
}

// NewMiddleware устанавливает личность вызывающего: Bearer-токен, cookie сессии или Basic.
// required == false (пользователи не настроены) — все запросы идут как anonymous.
func NewMiddleware(v TokenValidator, basic BasicAuthenticator, required bool, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !required {
				next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), domain.AnonymousUser)))
				return
			}

			username, err := identify(r, v, basic)
			if err != nil || username == "" {
				if err != nil {
					logger.Warn("auth failure", zap.String("remote", r.RemoteAddr), zap.Error(err))
				}
				unauthorized(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), username)))
		})
	}
}

func identify(r *http.Request, v TokenValidator, basic BasicAuthenticator) (string, error) {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		claims, err := v.VerifyToken(header)
		if err != nil {
			return "", err
		}
		return claims.Username, nil
	}

	if user, pass, ok := r.BasicAuth(); ok {
		return basic.Authenticate(user, pass)
	}

	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		claims, err := v.VerifyToken(c.Value)
		if err != nil {
			return "", err
		}
		return claims.Username, nil
	}

	return "", nil
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="M/Monit Hub"`)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "authentication required"})
}
