package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/xela07ax/mmonit-hub/internal/connectors"
	"github.com/xela07ax/mmonit-hub/internal/connectors/healthchecks"
	"github.com/xela07ax/mmonit-hub/internal/domain"
	"go.uber.org/zap"
)

const (
	hcOSName      = "Healthchecks"
	hcCSSClass    = "healthchecks"
	hcStatusUp    = "up"
	hcStatusGrace = "grace"
	hcStatusPause = "paused"
	hcStatusNew   = "new"

	prunePreviewSize = 3
)

// CheckLister — то, что нужно вторичному источнику от клиента Healthchecks
type CheckLister interface {
	ListChecks(ctx context.Context, q healthchecks.Query) ([]healthchecks.Check, error)
}

// SecondaryFetcher — вторичный источник хостов арендатора.
// Ошибка означает сбой самого слияния; ошибки отдельных проектов превращаются в синтетические хосты.
type SecondaryFetcher interface {
	Fetch(ctx context.Context, inst domain.Instance) ([]domain.HostRecord, error)
}

// SecondarySource — проверки Healthchecks как хосты арендатора.
type SecondarySource struct {
	client  CheckLister
	cache   *CheckCache
	metrics *Metrics
	logger  *zap.Logger
}

func NewSecondarySource(client CheckLister, cache *CheckCache, metrics *Metrics, logger *zap.Logger) *SecondarySource {
	if cache == nil {
		cache = NewCheckCache()
	}
	return &SecondarySource{
		client:  client,
		cache:   cache,
		metrics: metrics,
		logger:  logger.Named("healthchecks"),
	}
}

// Fetch опрашивает проекты арендатора по очереди. Паника внутри превращается в ошибку.
func (s *SecondarySource) Fetch(ctx context.Context, inst domain.Instance) (hosts []domain.HostRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			hosts = nil
			err = fmt.Errorf("healthchecks merge panic: %v", r)
		}
	}()

	if !inst.Healthchecks.Active() {
		return nil, nil
	}

	projects := inst.Healthchecks.Projects
	hosts = make([]domain.HostRecord, 0)

	for _, p := range projects {
		if strings.TrimSpace(p.APIKey) == "" {
			s.logger.Debug("healthchecks project without api_key skipped",
				zap.String("tenant", inst.Name),
				zap.String("project", p.Label()))
			continue
		}
		hosts = append(hosts, s.fetchProject(ctx, inst.Name, p)...)
	}

	if s.metrics != nil {
		s.metrics.CachedChecks.Set(float64(s.cache.Len()))
	}

	s.logger.Debug("healthchecks merged",
		zap.String("tenant", inst.Name),
		zap.Int("projects", len(projects)),
		zap.Int("hosts", len(hosts)))

	return hosts, nil
}

func (s *SecondarySource) fetchProject(ctx context.Context, tenant string, p domain.HealthchecksProject) []domain.HostRecord {
	base := p.Base()
	label := tenant + "/" + p.Label()

	checks, err := s.client.ListChecks(ctx, healthchecks.Query{
		APIBase:   base,
		APIKey:    p.APIKey,
		Tags:      p.Tags,
		VerifySSL: p.TLSVerify(),
	})
	if err != nil {
		s.logger.Warn("healthchecks project unavailable",
			zap.String("project", label),
			zap.String("kind", connectors.Kind(err)),
			zap.Error(err))
		if s.metrics != nil {
			s.metrics.SecondaryErrors.WithLabelValues(tenant, p.Label()).Inc()
		}
		// Кеш проекта не трогаем: по ошибке нельзя судить, какие проверки исчезли
		return []domain.HostRecord{ProjectFailureHost(p, err)}
	}

	hosts := make([]domain.HostRecord, 0, len(checks))
	for _, c := range checks {
		if normalizeStatus(c.Status) == hcStatusPause && !p.IncludePaused {
			continue
		}
		hosts = append(hosts, MapCheck(c, base))
	}

	if pruned := s.cache.Replace(ProjectCacheKey(tenant, p), hosts); len(pruned) > 0 {
		s.logger.Info(fmt.Sprintf("pruned %d stale check(s) for %s: %s", len(pruned), label, prunePreview(pruned)))
		if s.metrics != nil {
			s.metrics.PrunedChecks.WithLabelValues(tenant).Add(float64(len(pruned)))
		}
	}

	return hosts
}

func prunePreview(pruned []domain.HostRecord) string {
	names := make([]string, 0, prunePreviewSize)
	for i, h := range pruned {
		if i == prunePreviewSize {
			break
		}
		name := h.Hostname
		if name == "" {
			name = CheckKey(h)
		}
		names = append(names, name)
	}
	preview := strings.Join(names, ", ")
	if extra := len(pruned) - prunePreviewSize; extra > 0 {
		preview += fmt.Sprintf(", +%d more", extra)
	}
	return preview
}

func normalizeStatus(status string) string {
	s := strings.ToLower(strings.TrimSpace(status))
	if s == "" {
		return hcStatusNew
	}
	return s
}

// StatusToLed: up — OK, down — ERROR, grace/paused/new и все неизвестное — WARNING
func StatusToLed(status string) domain.Led {
	switch normalizeStatus(status) {
	case hcStatusUp:
		return domain.LedOK
	case "down":
		return domain.LedError
	default:
		return domain.LedWarning
	}
}

// MapCheck превращает проверку Healthchecks в запись хоста.
func MapCheck(c healthchecks.Check, apiBase string) domain.HostRecord {
	status := normalizeStatus(c.Status)
	led := StatusToLed(status)
	tags := strings.Fields(c.Tags)

	name := firstNonEmpty(c.Name, c.Slug, "Unnamed Check")

	viewURL := apiBase
	if c.UniqueKey != "" {
		viewURL = apiBase + "/checks/" + c.UniqueKey
	}

	issues := []domain.ServiceIssue{}
	if status != hcStatusUp {
		issues = append(issues, domain.ServiceIssue{
			Name:   "Healthcheck",
			Type:   "Ping",
			Status: strings.ToUpper(status),
			Led:    led,
		})
	}

	tagStatus := "OK"
	if status != hcStatusUp {
		tagStatus = strings.ToUpper(status)
	}
	details := make([]domain.ServiceDetail, 0, len(tags))
	for _, t := range tags {
		details = append(details, domain.ServiceDetail{Name: t, Type: "Tag", Status: tagStatus, Led: led})
	}

	return domain.HostRecord{
		ID:             "hc:" + firstNonEmpty(string(c.ID), c.UniqueKey, name),
		Hostname:       name,
		Led:            led,
		Heartbeat:      status == hcStatusUp || status == hcStatusGrace,
		OSName:         hcOSName,
		OSRelease:      strings.Join(tags, " "),
		Filesystems:    []domain.FilesystemUsage{},
		Issues:         issues,
		ServiceCount:   len(tags),
		ServiceNames:   tags,
		ServicesDetail: details,
		Source:         domain.SourceHealthchecks,
		CSSClass:       hcCSSClass,
		ViewURL:        viewURL,
	}
}

// ProjectFailureHost — синтетический хост вместо проекта, который не ответил
func ProjectFailureHost(p domain.HealthchecksProject, err error) domain.HostRecord {
	name := strings.TrimSpace(p.Name)
	return domain.HostRecord{
		ID:          "hcproj:" + p.Label(),
		Hostname:    "[Healthchecks] " + firstNonEmpty(name, "Project"),
		Led:         domain.LedError,
		OSName:      hcOSName,
		OSRelease:   name,
		Filesystems: []domain.FilesystemUsage{},
		Issues: []domain.ServiceIssue{{
			Name:   "Healthchecks API error",
			Type:   "HTTP",
			Status: err.Error(),
			Led:    domain.LedError,
		}},
		ServiceNames:   []string{"healthchecks-api-error"},
		ServicesDetail: []domain.ServiceDetail{},
		Source:         domain.SourceHealthchecks,
		CSSClass:       hcCSSClass,
		ViewURL:        p.Base() + "/projects",
	}
}

// MergeErrorHost — синтетический хост, если слияние Healthchecks упало целиком
func MergeErrorHost(err error) domain.HostRecord {
	return domain.HostRecord{
		ID:          "hc:merge-error",
		Hostname:    "[Healthchecks] Merge Error",
		Led:         domain.LedError,
		OSName:      hcOSName,
		Filesystems: []domain.FilesystemUsage{},
		Issues: []domain.ServiceIssue{{
			Name:   "Healthchecks merge",
			Type:   "Runtime",
			Status: err.Error(),
			Led:    domain.LedError,
		}},
		ServiceNames:   []string{},
		ServicesDetail: []domain.ServiceDetail{},
		Source:         domain.SourceHealthchecks,
		CSSClass:       hcCSSClass,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
