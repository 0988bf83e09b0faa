package domain

// WildcardTenant — маркер "все арендаторы"
const WildcardTenant = "*"

// TenantScope — набор арендаторов, доступных вызывающему.
// Нулевое значение не разрешает ничего (Default Deny).
type TenantScope struct {
	all   bool
	names map[string]struct{}
}

// AllTenants — wildcard-доступ
func AllTenants() TenantScope {
	return TenantScope{all: true}
}

// ScopeFromList строит доступ из списка имен как есть; "*" в списке дает wildcard.
func ScopeFromList(tenants []string) TenantScope {
	s := TenantScope{names: make(map[string]struct{}, len(tenants))}
	for _, t := range tenants {
		if t == WildcardTenant {
			s.all = true
		}
		s.names[t] = struct{}{}
	}
	return s
}

// Wildcard — доступ ко всем арендаторам
func (s TenantScope) Wildcard() bool {
	return s.all
}

// Allows проверяет доступ к арендатору
func (s TenantScope) Allows(tenant string) bool {
	if s.all {
		return true
	}
	_, ok := s.names[tenant]
	return ok
}
