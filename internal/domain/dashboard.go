package domain

// TenantResult — результат опроса одного арендатора.
// Инвариант: если Error заполнен, Hosts пустой (all-or-nothing на уровне арендатора).
type TenantResult struct {
	Tenant string       `json:"tenant"`
	URL    string       `json:"url"`
	Hosts  []HostRecord `json:"hosts"`
	Error  string       `json:"error,omitempty"`
}

// FailedTenant собирает результат-ошибку без хостов
func FailedTenant(name, url, reason string) TenantResult {
	return TenantResult{
		Tenant: name,
		URL:    url,
		Hosts:  []HostRecord{},
		Error:  reason,
	}
}

// Envelope — полный ответ /api/data для одного запроса.
type Envelope struct {
	Username        string         `json:"username"`
	Tenants         []TenantResult `json:"tenants"`
	LastFetchTime   int64          `json:"last_fetch_time"`  // Unix seconds, UTC
	RefreshInterval int            `json:"refresh_interval"` // Секунды, 0 — автообновление выключено
}

// UIThresholds — пороги подсветки дисков на дашборде.
type UIThresholds struct {
	DiskWarningPct int `json:"disk_warning_pct" mapstructure:"disk_warning_pct"`
	DiskErrorPct   int `json:"disk_error_pct" mapstructure:"disk_error_pct"`
}

// Settings — то, что нужно фронтенду помимо данных
type Settings struct {
	Username        string       `json:"username"`
	RefreshInterval int          `json:"refresh_interval"`
	UIThresholds    UIThresholds `json:"ui_thresholds"`
}
