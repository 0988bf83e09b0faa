package mmonit

import (
	"errors"

	"github.com/tidwall/gjson"
	"github.com/xela07ax/mmonit-hub/internal/domain"
)

// HostSummary — запись из /status/hosts/list до обогащения деталями.
type HostSummary struct {
	ID        string
	Hostname  string
	Led       domain.Led
	Status    string
	CPU       float64
	Mem       float64
	Events    int64
	Heartbeat bool
}

var errNotJSON = errors.New("body is not valid JSON")

// ParseHostList разбирает ответ {"records": [...]}.
// M/Monit отдает id числом, приводим к строке.
func ParseHostList(body []byte) ([]HostSummary, error) {
	if !gjson.ValidBytes(body) {
		return nil, errNotJSON
	}

	records := gjson.GetBytes(body, "records")
	if !records.Exists() || records.Type == gjson.Null {
		return []HostSummary{}, nil
	}
	if !records.IsArray() {
		return nil, errors.New("records is not an array")
	}

	hosts := make([]HostSummary, 0, len(records.Array()))
	records.ForEach(func(_, r gjson.Result) bool {
		h := HostSummary{
			ID:        r.Get("id").String(),
			Hostname:  r.Get("hostname").String(),
			Led:       domain.LedWarning,
			Status:    r.Get("status").String(),
			CPU:       r.Get("cpu").Float(),
			Mem:       r.Get("mem").Float(),
			Events:    r.Get("events").Int(),
			Heartbeat: r.Get("heartbeat").Bool(),
		}
		if led := r.Get("led"); led.Type == gjson.Number {
			h.Led = domain.NormalizeLed(led.Int())
		}
		hosts = append(hosts, h)
		return true
	})
	return hosts, nil
}
