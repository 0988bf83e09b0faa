package service

import (
	"errors"

	"github.com/xela07ax/mmonit-hub/internal/domain"
)

// ErrAccessDenied — личность не сопоставлена ни с одним пользователем конфига
var ErrAccessDenied = errors.New("access denied")

// AccessService решает, каких арендаторов видит вызывающий.
type AccessService struct {
	principals map[string]domain.Principal
}

func NewAccessService(users []domain.Principal) *AccessService {
	principals := make(map[string]domain.Principal, len(users))
	for _, u := range users {
		principals[u.Username] = u
	}
	return &AccessService{principals: principals}
}

// ResolveAllowedTenants: без пользователей в конфиге — все арендаторы.
// Иначе список арендаторов пользователя как есть ("*" — все); неизвестная личность — ErrAccessDenied.
func (s *AccessService) ResolveAllowedTenants(identity string) (domain.TenantScope, error) {
	if len(s.principals) == 0 {
		return domain.AllTenants(), nil
	}

	p, ok := s.principals[identity]
	if !ok {
		return domain.TenantScope{}, ErrAccessDenied
	}
	return domain.ScopeFromList(p.Tenants), nil
}
