package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/xela07ax/mmonit-hub/internal/domain"
	"github.com/xela07ax/mmonit-hub/internal/infra/auth"
)

func TestResolveAllowedTenants(t *testing.T) {
	open := NewAccessService(nil)
	scope, err := open.ResolveAllowedTenants(domain.AnonymousUser)
	require.NoError(t, err)
	assert.True(t, scope.Wildcard())

	svc := NewAccessService([]domain.Principal{
		{Username: "admin", Tenants: []string{"*"}},
		{Username: "ops", Tenants: []string{"acme", "globex"}},
		{Username: "nobody", Tenants: []string{}},
	})

	scope, err = svc.ResolveAllowedTenants("admin")
	require.NoError(t, err)
	assert.True(t, scope.Allows("anything"))

	scope, err = svc.ResolveAllowedTenants("ops")
	require.NoError(t, err)
	assert.False(t, scope.Wildcard())
	assert.True(t, scope.Allows("acme"))
	assert.True(t, scope.Allows("globex"))
	assert.False(t, scope.Allows("initech"))

	scope, err = svc.ResolveAllowedTenants("nobody")
	require.NoError(t, err)
	assert.False(t, scope.Allows("acme"))

	_, err = svc.ResolveAllowedTenants("mallory")
	assert.True(t, errors.Is(err, ErrAccessDenied))

	// При настроенных пользователях anonymous — такой же незнакомец
	_, err = svc.ResolveAllowedTenants(domain.AnonymousUser)
	assert.True(t, errors.Is(err, ErrAccessDenied))
}

func newAuthService(t *testing.T) *AuthService {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	require.NoError(t, err)

	return NewAuthService([]domain.Principal{
		{Username: "alice", PasswordHash: string(hash), Tenants: []string{"*"}},
	}, "secret", time.Hour)
}

func TestAuthenticate(t *testing.T) {
	svc := newAuthService(t)

	name, err := svc.Authenticate("alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, "alice", name)

	_, err = svc.Authenticate("alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Authenticate("bob", "pw")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestGenerateToken(t *testing.T) {
	svc := newAuthService(t)

	resp, err := svc.GenerateToken(context.Background(), "alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, int64(3600), resp.ExpiresIn)

	var validator auth.TokenValidator = svc
	claims, err := validator.VerifyToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, auth.Issuer, claims.Issuer)

	_, err = svc.GenerateToken(context.Background(), "alice", "nope")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
