package engine

import (
	"context"
	"errors"

	"github.com/tidwall/gjson"
	"github.com/xela07ax/mmonit-hub/internal/connectors"
	"github.com/xela07ax/mmonit-hub/internal/connectors/mmonit"
	"github.com/xela07ax/mmonit-hub/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Коды статистик файловой системы в M/Monit
const (
	statSpacePercent = 18
	statSpaceUsedMB  = 19
	statSpaceTotalMB = 20

	serviceTypeFilesystem = "Filesystem"
	placeholderOS         = "OS N/A"
	unknownField          = "Unknown"
)

// DetailSource — то, что нужно обогатителю от сессии M/Monit
type DetailSource interface {
	GetHostDetail(ctx context.Context, id string) ([]byte, error)
}

// HostOutcome — явный вариант результата по одному хосту.
// Err == nil: хост обогащен. Err != nil: в Host нейтральная заглушка, Err — причина.
type HostOutcome struct {
	Host domain.HostRecord
	Err  error
}

// Degraded — детали не получены, в Host заглушка
func (o HostOutcome) Degraded() bool {
	return o.Err != nil
}

// HostDetail — то, что извлекаем из /status/hosts/get
type HostDetail struct {
	OSName         string
	OSRelease      string
	Filesystems    []domain.FilesystemUsage
	Issues         []domain.ServiceIssue
	ServicesDetail []domain.ServiceDetail
	ServiceNames   []string
	ServiceCount   int
}

// Enricher догружает детали по каждому хосту. Ошибка одного хоста не роняет пачку.
type Enricher struct {
	workers int
	logger  *zap.Logger
}

func NewEnricher(workers int, logger *zap.Logger) *Enricher {
	if workers <= 0 {
		workers = 1
	}
	return &Enricher{workers: workers, logger: logger.Named("enricher")}
}

// Enrich возвращает результаты в порядке входного списка.
// Каждая горутина пишет только в свой слот, общий срез не мутируется конкурентно.
func (e *Enricher) Enrich(ctx context.Context, src DetailSource, link func(id string) string, hosts []mmonit.HostSummary) []HostOutcome {
	out := make([]HostOutcome, len(hosts))

	var g errgroup.Group
	g.SetLimit(e.workers)

	for i := range hosts {
		i := i
		g.Go(func() error {
			out[i] = e.enrichOne(ctx, src, link, hosts[i])
			return nil
		})
	}
	_ = g.Wait()

	return out
}

func (e *Enricher) enrichOne(ctx context.Context, src DetailSource, link func(id string) string, summary mmonit.HostSummary) HostOutcome {
	host := baseRecord(summary, link)

	body, err := src.GetHostDetail(ctx, summary.ID)
	if err == nil {
		var detail HostDetail
		detail, err = ParseHostDetail(body)
		if err == nil {
			applyDetail(&host, detail)
			return HostOutcome{Host: host}
		}
		err = &connectors.ParseError{Endpoint: "status/hosts/get", Cause: err}
	}

	e.logger.Debug("host detail unavailable, using placeholder",
		zap.String("host", summary.Hostname),
		zap.String("id", summary.ID),
		zap.Error(err))

	applyPlaceholder(&host)
	return HostOutcome{Host: host, Err: err}
}

func baseRecord(s mmonit.HostSummary, link func(id string) string) domain.HostRecord {
	h := domain.HostRecord{
		ID:        s.ID,
		Hostname:  s.Hostname,
		Led:       s.Led,
		Status:    s.Status,
		CPU:       s.CPU,
		Mem:       s.Mem,
		Events:    s.Events,
		Heartbeat: s.Heartbeat,
		Source:    domain.SourceMMonit,
	}
	if link != nil {
		h.ViewURL = link(s.ID)
	}
	return h
}

func applyDetail(h *domain.HostRecord, d HostDetail) {
	h.OSName = d.OSName
	h.OSRelease = d.OSRelease
	h.Filesystems = d.Filesystems
	h.Issues = d.Issues
	h.ServicesDetail = d.ServicesDetail
	h.ServiceNames = d.ServiceNames
	h.ServiceCount = d.ServiceCount
	h.EnsureSlices()
}

// applyPlaceholder — нейтральная заглушка: никаких данных из прошлого цикла
func applyPlaceholder(h *domain.HostRecord) {
	h.OSName = placeholderOS
	h.OSRelease = ""
	h.Filesystems = []domain.FilesystemUsage{}
	h.Issues = []domain.ServiceIssue{}
	h.ServicesDetail = []domain.ServiceDetail{}
	h.ServiceNames = []string{}
	h.ServiceCount = 0
}

var errDetailNotJSON = errors.New("host detail is not valid JSON")

// ParseHostDetail разбирает {"records": {"host": {...}}}.
// Каждый сервис: строка services_detail всегда, issue при led 0/1, filesystem при наличии стата 18.
func ParseHostDetail(body []byte) (HostDetail, error) {
	if !gjson.ValidBytes(body) {
		return HostDetail{}, errDetailNotJSON
	}

	host := gjson.GetBytes(body, "records.host")
	detail := HostDetail{
		OSName:         placeholderOS,
		Filesystems:    []domain.FilesystemUsage{},
		Issues:         []domain.ServiceIssue{},
		ServicesDetail: []domain.ServiceDetail{},
		ServiceNames:   []string{},
	}

	if name := host.Get("platform.name"); name.Exists() && name.Type != gjson.Null {
		detail.OSName = name.String()
	}
	detail.OSRelease = host.Get("platform.release").String()

	services := host.Get("services")
	if !services.IsArray() {
		return detail, nil
	}

	services.ForEach(func(_, svc gjson.Result) bool {
		detail.ServiceCount++

		name := stringOr(svc.Get("name"), unknownField)
		svcType := stringOr(svc.Get("type"), unknownField)
		status := stringOr(svc.Get("status"), unknownField)

		led := domain.LedOK
		if raw := svc.Get("led"); raw.Type == gjson.Number {
			led = domain.NormalizeLed(raw.Int())
		} else if raw.Exists() && raw.Type != gjson.Null {
			led = domain.LedWarning
		}

		if svcType == serviceTypeFilesystem {
			if fs, ok := parseFilesystem(name, svc.Get("statistics")); ok {
				detail.Filesystems = append(detail.Filesystems, fs)
			}
		}

		if led.IsProblem() {
			detail.Issues = append(detail.Issues, domain.ServiceIssue{
				Name: name, Type: svcType, Status: status, Led: led,
			})
		}

		detail.ServicesDetail = append(detail.ServicesDetail, domain.ServiceDetail{
			Name: name, Type: svcType, Status: status, Led: led,
		})
		if n := svc.Get("name").String(); n != "" {
			detail.ServiceNames = append(detail.ServiceNames, n)
		}
		return true
	})

	return detail, nil
}

func parseFilesystem(name string, stats gjson.Result) (domain.FilesystemUsage, bool) {
	fs := domain.FilesystemUsage{Name: name}
	stats.ForEach(func(_, stat gjson.Result) bool {
		value := stat.Get("value")
		if value.Type != gjson.Number {
			return true
		}
		v := value.Float()
		switch stat.Get("type").Int() {
		case statSpacePercent:
			fs.UsagePercent = &v
		case statSpaceUsedMB:
			fs.UsageMB = &v
		case statSpaceTotalMB:
			fs.TotalMB = &v
		}
		return true
	})
	return fs, fs.UsagePercent != nil
}

func stringOr(r gjson.Result, fallback string) string {
	if !r.Exists() || r.Type == gjson.Null {
		return fallback
	}
	return r.String()
}
