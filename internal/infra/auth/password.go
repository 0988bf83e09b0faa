package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
)

// Параметры старого формата "salt$hex": PBKDF2-HMAC-SHA256, соль используется как строка
const (
	legacyIterations = 100000
	legacyKeyLen     = 32
)

// HashPassword — bcrypt-хеш для поля users[].password
func HashPassword(password string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword сверяет пароль с хешем из конфига.
// Поддерживаются bcrypt ($2a$/$2b$/$2y$) и старые хеши "salt$hex". Любой другой формат — отказ.
func VerifyPassword(hash, password string) bool {
	if strings.HasPrefix(hash, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
	}

	salt, want, ok := strings.Cut(hash, "$")
	if !ok || salt == "" || strings.Contains(want, "$") {
		return false
	}
	expected, err := hex.DecodeString(want)
	if err != nil || len(expected) != legacyKeyLen {
		return false
	}

	got := pbkdf2.Key([]byte(password), []byte(salt), legacyIterations, legacyKeyLen, sha256.New)
	return subtle.ConstantTimeCompare(got, expected) == 1
}

// legacyHash собирает хеш старого формата; нужен для совместимости и тестов
func legacyHash(password, salt string) string {
	key := pbkdf2.Key([]byte(password), []byte(salt), legacyIterations, legacyKeyLen, sha256.New)
	return salt + "$" + hex.EncodeToString(key)
}
