package domain

import "strings"

const (
	DefaultAPIVersion      = "2"
	DefaultHealthchecksAPI = "https://healthchecks.io"
)

// Instance — конфигурация одного арендатора (инстанс M/Monit).
// Загружается один раз при старте и дальше не меняется.
type Instance struct {
	Name         string              `mapstructure:"name" json:"name" validate:"required"`
	URL          string              `mapstructure:"url" json:"url" validate:"required,url"`
	Username     string              `mapstructure:"username" json:"username" validate:"required"`
	Password     string              `mapstructure:"password" json:"-" validate:"required"`
	APIVersion   string              `mapstructure:"api_version" json:"api_version"`
	VerifySSL    bool                `mapstructure:"verify_ssl" json:"verify_ssl"`
	Healthchecks *HealthchecksConfig `mapstructure:"healthchecks" json:"healthchecks,omitempty"`
}

// BaseURL возвращает URL без завершающего слэша
func (i Instance) BaseURL() string {
	return strings.TrimRight(i.URL, "/")
}

// Version — версия API M/Monit, по умолчанию "2"
func (i Instance) Version() string {
	if v := strings.TrimSpace(i.APIVersion); v != "" {
		return v
	}
	return DefaultAPIVersion
}

// HealthchecksConfig — опциональный вторичный источник для арендатора.
type HealthchecksConfig struct {
	Enabled  bool                  `mapstructure:"enabled" json:"enabled"`
	Projects []HealthchecksProject `mapstructure:"projects" json:"projects" validate:"dive"`
}

// Active — источник включен и есть хотя бы один проект
func (c *HealthchecksConfig) Active() bool {
	return c != nil && c.Enabled && len(c.Projects) > 0
}

// HealthchecksProject — один проект Healthchecks со своим read-only ключом.
type HealthchecksProject struct {
	Name          string   `mapstructure:"name" json:"name"`
	APIBase       string   `mapstructure:"api_base" json:"api_base"`
	APIKey        string   `mapstructure:"api_key" json:"-"`
	Tags          []string `mapstructure:"tags" json:"tags"`
	IncludePaused bool     `mapstructure:"include_paused" json:"include_paused"`
	VerifySSL     *bool    `mapstructure:"verify_ssl" json:"verify_ssl,omitempty"`
}

// Base — адрес API без слэша в конце
func (p HealthchecksProject) Base() string {
	base := strings.TrimRight(strings.TrimSpace(p.APIBase), "/")
	if base == "" {
		return DefaultHealthchecksAPI
	}
	return base
}

// Label — имя проекта для логов и синтетических хостов
func (p HealthchecksProject) Label() string {
	if name := strings.TrimSpace(p.Name); name != "" {
		return name
	}
	return "Healthchecks @ " + p.Base()
}

// TLSVerify — по умолчанию сертификат проверяется
func (p HealthchecksProject) TLSVerify() bool {
	return p.VerifySSL == nil || *p.VerifySSL
}
