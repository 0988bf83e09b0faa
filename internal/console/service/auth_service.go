package service

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/xela07ax/mmonit-hub/internal/domain"
	"github.com/xela07ax/mmonit-hub/internal/infra/auth"
)

// ErrInvalidCredentials — не уточняем, что именно неверно (логин или пароль)
var ErrInvalidCredentials = errors.New("invalid credentials")

// AuthService проверяет пароли пользователей из конфига и выпускает сессионные токены.
// Проверка токенов — через встроенный HMACValidator, поэтому сервис сам реализует auth.TokenValidator.
type AuthService struct {
	*auth.HMACValidator

	principals map[string]domain.Principal
	ttl        time.Duration
	now        func() time.Time
}

func NewAuthService(users []domain.Principal, secret string, ttl time.Duration) *AuthService {
	principals := make(map[string]domain.Principal, len(users))
	for _, u := range users {
		principals[u.Username] = u
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &AuthService{
		HMACValidator: auth.NewHMACValidator([]byte(secret)),
		principals:    principals,
		ttl:           ttl,
		now:           time.Now,
	}
}

// Authenticate реализует auth.BasicAuthenticator
func (s *AuthService) Authenticate(username, password string) (string, error) {
	p, ok := s.principals[username]
	if !ok || !auth.VerifyPassword(p.PasswordHash, password) {
		return "", ErrInvalidCredentials
	}
	return p.Username, nil
}

func (s *AuthService) GenerateToken(_ context.Context, username, password string) (*domain.TokenResponse, error) {
	// 1. Аутентификация (источник правды — users[] из конфига)
	name, err := s.Authenticate(username, password)
	if err != nil {
		return nil, err
	}

	// 2. Формирование Claims
	issuedAt := s.now()
	expiresAt := issuedAt.Add(s.ttl)
	claims := &domain.CustomClaims{
		Username: name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    auth.Issuer,
			Subject:   name,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
		},
	}

	// 3. Подпись токена секретом из конфига (HS256)
	signed, err := s.SignToken(claims)
	if err != nil {
		return nil, err
	}

	return &domain.TokenResponse{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.ttl.Seconds()),
	}, nil
}

// TokenTTL — срок жизни токена, нужен для cookie
func (s *AuthService) TokenTTL() time.Duration {
	return s.ttl
}
