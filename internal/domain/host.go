package domain

// Led — трехзначный индикатор здоровья в терминах M/Monit.
type Led int

const (
	LedError   Led = 0 // Красный
	LedWarning Led = 1 // Желтый
	LedOK      Led = 2 // Зеленый
)

// Источники, из которых пришла запись о хосте
const (
	SourceMMonit       = "mmonit"
	SourceHealthchecks = "healthchecks"
)

// NormalizeLed приводит произвольное значение upstream к одному из трех кодов.
// Неизвестное значение — это WARNING, а не OK (fail open, но не молча).
func NormalizeLed(v int64) Led {
	switch Led(v) {
	case LedError, LedWarning, LedOK:
		return Led(v)
	default:
		return LedWarning
	}
}

// IsProblem — true для красного и желтого индикатора.
func (l Led) IsProblem() bool {
	return l == LedError || l == LedWarning
}

// FilesystemUsage — занятость одной файловой системы.
// В выдачу попадают только записи с известным UsagePercent.
type FilesystemUsage struct {
	Name         string   `json:"name"`
	UsagePercent *float64 `json:"usage_percent"`
	UsageMB      *float64 `json:"usage_mb"`
	TotalMB      *float64 `json:"total_mb"`
}

// ServiceIssue — сервис в состоянии ERROR или WARNING.
type ServiceIssue struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Status string `json:"status"`
	Led    Led    `json:"led"`
}

// ServiceDetail — строка о сервисе вне зависимости от его здоровья.
type ServiceDetail struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Status string `json:"status"`
	Led    Led    `json:"led"`
}

// HostRecord — единая форма хоста для всех источников (M/Monit, Healthchecks).
// ID уникален только в рамках источника, поэтому Healthchecks-записи имеют префикс "hc:".
type HostRecord struct {
	ID        string  `json:"id"`
	Hostname  string  `json:"hostname"`
	Led       Led     `json:"led"`
	Status    string  `json:"status,omitempty"`
	CPU       float64 `json:"cpu"`
	Mem       float64 `json:"mem"`
	Events    int64   `json:"events"`
	Heartbeat bool    `json:"heartbeat"`

	OSName    string `json:"os_name"`
	OSRelease string `json:"os_release"`

	Filesystems    []FilesystemUsage `json:"filesystems"`
	Issues         []ServiceIssue    `json:"issues"`
	ServiceCount   int               `json:"service_count"`
	ServiceNames   []string          `json:"service_names"`
	ServicesDetail []ServiceDetail   `json:"services_detail"`

	Source   string `json:"source"`
	CSSClass string `json:"css_class"`
	ViewURL  string `json:"view_url,omitempty"`
}

// EnsureSlices гарантирует, что фронтенд получит [] вместо null.
func (h *HostRecord) EnsureSlices() {
	if h.Filesystems == nil {
		h.Filesystems = []FilesystemUsage{}
	}
	if h.Issues == nil {
		h.Issues = []ServiceIssue{}
	}
	if h.ServiceNames == nil {
		h.ServiceNames = []string{}
	}
	if h.ServicesDetail == nil {
		h.ServicesDetail = []ServiceDetail{}
	}
}
