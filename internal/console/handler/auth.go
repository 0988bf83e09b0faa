package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/xela07ax/mmonit-hub/internal/domain"
	"github.com/xela07ax/mmonit-hub/internal/infra/auth"
	"go.uber.org/zap"
)

// TokenIssuer — выпуск сессионного токена по логину и паролю
type TokenIssuer interface {
	GenerateToken(ctx context.Context, username, password string) (*domain.TokenResponse, error)
}

type AuthHandler struct {
	service      TokenIssuer
	cookieSecure bool
	logger       *zap.Logger
}

func NewAuthHandler(s TokenIssuer, cookieSecure bool, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{service: s, cookieSecure: cookieSecure, logger: logger.Named("auth")}
}

// Login — POST /auth/token. Токен отдается в теле и в HttpOnly cookie для браузера.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad request")
		return
	}

	resp, err := h.service.GenerateToken(r.Context(), req.Username, req.Password)
	if err != nil {
		// не уточняем, что именно неверно (логин или пароль) для защиты от перебора
		h.logger.Warn("login rejected", zap.String("username", req.Username), zap.String("remote", r.RemoteAddr))
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    resp.AccessToken,
		Path:     "/",
		MaxAge:   int(resp.ExpiresIn),
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
	writeJSON(w, http.StatusOK, resp)
}

// Logout — POST /auth/logout, стирает cookie сессии
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
	w.WriteHeader(http.StatusNoContent)
}
