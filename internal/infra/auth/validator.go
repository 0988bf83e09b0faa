package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/xela07ax/mmonit-hub/internal/domain"
)

// Issuer — значение iss в сессионных токенах хаба
const Issuer = "mmonit-hub"

// HMACValidator проверяет HS256-токены, подписанные secret_key из конфига
type HMACValidator struct {
	secret []byte
}

func NewHMACValidator(secret []byte) *HMACValidator {
	return &HMACValidator{secret: secret}
}

// VerifyToken реализует интерфейс auth.TokenValidator.
func (v *HMACValidator) VerifyToken(tokenStr string) (*domain.CustomClaims, error) {
	if len(v.secret) == 0 {
		return nil, errors.New("token signing is not configured")
	}

	tokenStr = strings.TrimPrefix(tokenStr, "Bearer ")
	tokenStr = strings.TrimSpace(tokenStr)

	token, err := jwt.ParseWithClaims(tokenStr, &domain.CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithIssuer(Issuer), jwt.WithExpirationRequired())

	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*domain.CustomClaims)
	if !ok || claims.Username == "" {
		return nil, fmt.Errorf("invalid claims")
	}

	return claims, nil
}

// SignToken подписывает claims тем же секретом
func (v *HMACValidator) SignToken(claims *domain.CustomClaims) (string, error) {
	if len(v.secret) == 0 {
		return "", errors.New("token signing is not configured")
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
