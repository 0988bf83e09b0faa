package domain

import (
	"github.com/golang-jwt/jwt/v5"
)

// AnonymousUser — имя вызывающего, когда пользователи в конфиге не заданы
const AnonymousUser = "anonymous"

type CustomClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Secure Token Issuing
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"` // Всегда "Bearer"
	ExpiresIn   int64  `json:"expires_in"`
}

// Principal — пользователь дашборда из конфигурации.
type Principal struct {
	Username     string   `mapstructure:"username" json:"username" validate:"required"`
	PasswordHash string   `mapstructure:"password" json:"-" validate:"required"` // Никогда не отправляем на фронт
	Tenants      []string `mapstructure:"tenants" json:"tenants"`                // Пустой список не дает доступа ни к чему
}
