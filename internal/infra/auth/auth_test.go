package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/xela07ax/mmonit-hub/internal/domain"
)

func TestVerifyPassword_Bcrypt(t *testing.T) {
	hash, err := HashPassword("hunter2", bcrypt.MinCost)
	require.NoError(t, err)

	assert.True(t, VerifyPassword(hash, "hunter2"))
	assert.False(t, VerifyPassword(hash, "hunter3"))
}

func TestVerifyPassword_Legacy(t *testing.T) {
	hash := legacyHash("s3cret", "0123456789abcdef0123456789abcdef")

	assert.True(t, VerifyPassword(hash, "s3cret"))
	assert.False(t, VerifyPassword(hash, "S3cret"))

	for _, bad := range []string{"", "nodollar", "$deadbeef", "salt$zz", "salt$00ff", "a$b$c"} {
		assert.False(t, VerifyPassword(bad, "s3cret"), "hash %q", bad)
	}
}

func claimsFor(username string, ttl time.Duration) *domain.CustomClaims {
	now := time.Now()
	return &domain.CustomClaims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
}

func TestHMACValidator(t *testing.T) {
	v := NewHMACValidator([]byte("secret"))

	token, err := v.SignToken(claimsFor("alice", time.Hour))
	require.NoError(t, err)

	claims, err := v.VerifyToken("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)

	_, err = NewHMACValidator([]byte("other")).VerifyToken(token)
	assert.Error(t, err)

	expired, err := v.SignToken(claimsFor("alice", -time.Minute))
	require.NoError(t, err)
	_, err = v.VerifyToken(expired)
	assert.Error(t, err)

	_, err = NewHMACValidator(nil).VerifyToken(token)
	assert.Error(t, err)
}

type stubBasic map[string]string

func (s stubBasic) Authenticate(username, password string) (string, error) {
	if pw, ok := s[username]; ok && pw == password {
		return username, nil
	}
	return "", errors.New("invalid credentials")
}

func TestMiddleware(t *testing.T) {
	v := NewHMACValidator([]byte("secret"))
	token, err := v.SignToken(claimsFor("alice", time.Hour))
	require.NoError(t, err)

	echo := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(IdentityFrom(r.Context())))
	})
	protected := NewMiddleware(v, stubBasic{"bob": "pw"}, true, zap.NewNop())(echo)

	cases := []struct {
		name     string
		prepare  func(r *http.Request)
		wantCode int
		wantBody string
	}{
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, http.StatusOK, "alice"},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: SessionCookie, Value: token}) }, http.StatusOK, "alice"},
		{"basic", func(r *http.Request) { r.SetBasicAuth("bob", "pw") }, http.StatusOK, "bob"},
		{"basic wrong password", func(r *http.Request) { r.SetBasicAuth("bob", "nope") }, http.StatusUnauthorized, ""},
		{"bad bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer garbage") }, http.StatusUnauthorized, ""},
		{"nothing", func(r *http.Request) {}, http.StatusUnauthorized, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/data", nil)
			tc.prepare(req)
			rec := httptest.NewRecorder()

			protected.ServeHTTP(rec, req)

			assert.Equal(t, tc.wantCode, rec.Code)
			if tc.wantCode == http.StatusOK {
				assert.Equal(t, tc.wantBody, rec.Body.String())
			} else {
				assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Basic")
			}
		})
	}
}

func TestMiddleware_OpenModeIsAnonymous(t *testing.T) {
	echo := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(IdentityFrom(r.Context())))
	})
	open := NewMiddleware(NewHMACValidator(nil), stubBasic{}, false, zap.NewNop())(echo)

	rec := httptest.NewRecorder()
	open.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/data", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.AnonymousUser, rec.Body.String())
}
