package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sourcegraph/conc/iter"
	"github.com/xela07ax/mmonit-hub/internal/connectors"
	"github.com/xela07ax/mmonit-hub/internal/connectors/mmonit"
	"github.com/xela07ax/mmonit-hub/internal/domain"
	"go.uber.org/zap"
)

const (
	DefaultTenantWorkers = 16
	DefaultHostWorkers   = 16
)

// Options — параметры движка, собираются из конфига при старте
type Options struct {
	RefreshInterval int
	RequestTimeout  time.Duration
	ListLimit       int
	TenantWorkers   int
	HostWorkers     int
	UpstreamRPS     float64
	UpstreamBurst   int
	Breaker         BreakerSettings
}

// TenantOutcome — явный вариант результата по арендатору.
// Err != nil: Result собран через domain.FailedTenant, хостов нет.
type TenantOutcome struct {
	Result domain.TenantResult
	Err    error
}

type tenantRuntime struct {
	inst   domain.Instance
	client *mmonit.Client
	guard  *TenantGuard
}

// Aggregator — опрос всех доступных вызывающему арендаторов за один запрос /api/data.
// Состояние между запросами: только предохранители и кеш Healthchecks.
type Aggregator struct {
	tenants   []*tenantRuntime
	enricher  *Enricher
	secondary SecondaryFetcher
	metrics   *Metrics
	logger    *zap.Logger

	refreshInterval int
	tenantWorkers   int

	now func() time.Time
}

func NewAggregator(instances []domain.Instance, opts Options, secondary SecondaryFetcher, metrics *Metrics, logger *zap.Logger) (*Aggregator, error) {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	if opts.TenantWorkers <= 0 {
		opts.TenantWorkers = DefaultTenantWorkers
	}
	if opts.HostWorkers <= 0 {
		opts.HostWorkers = DefaultHostWorkers
	}

	tenants := make([]*tenantRuntime, 0, len(instances))
	for _, inst := range instances {
		guard := NewTenantGuard(inst.Name, opts.Breaker, opts.UpstreamRPS, opts.UpstreamBurst, metrics)

		client, err := mmonit.NewClient(mmonit.Config{
			BaseURL:        inst.URL,
			Username:       inst.Username,
			Password:       inst.Password,
			APIVersion:     inst.Version(),
			VerifySSL:      inst.VerifySSL,
			RequestTimeout: opts.RequestTimeout,
			ListLimit:      opts.ListLimit,
			Limiter:        guard.Limiter(),
		})
		if err != nil {
			return nil, fmt.Errorf("tenant %q: %w", inst.Name, err)
		}

		tenants = append(tenants, &tenantRuntime{inst: inst, client: client, guard: guard})
	}

	return &Aggregator{
		tenants:         tenants,
		enricher:        NewEnricher(opts.HostWorkers, logger),
		secondary:       secondary,
		metrics:         metrics,
		logger:          logger.Named("aggregator"),
		refreshInterval: opts.RefreshInterval,
		tenantWorkers:   opts.TenantWorkers,
		now:             time.Now,
	}, nil
}

// Aggregate собирает ответ для вызывающего. Порядок арендаторов — порядок конфига.
// Ошибки арендаторов становятся данными, сам вызов не падает.
func (a *Aggregator) Aggregate(ctx context.Context, identity string, scope domain.TenantScope) domain.Envelope {
	retained := make([]*tenantRuntime, 0, len(a.tenants))
	for _, t := range a.tenants {
		if scope.Allows(t.inst.Name) {
			retained = append(retained, t)
		}
	}

	workers := min(len(retained), a.tenantWorkers)
	mapper := iter.Mapper[*tenantRuntime, TenantOutcome]{MaxGoroutines: max(workers, 1)}
	outcomes := mapper.Map(retained, func(t **tenantRuntime) TenantOutcome {
		return a.fetchTenant(ctx, *t)
	})

	results := make([]domain.TenantResult, 0, len(outcomes))
	for _, o := range outcomes {
		results = append(results, o.Result)
	}

	return domain.Envelope{
		Username:        identity,
		Tenants:         results,
		LastFetchTime:   a.now().UTC().Unix(),
		RefreshInterval: a.refreshInterval,
	}
}

// fetchTenant: primary и secondary идут параллельно, результат — primary, затем secondary.
func (a *Aggregator) fetchTenant(ctx context.Context, t *tenantRuntime) (out TenantOutcome) {
	name := t.inst.Name
	log := a.logger.With(zap.String("tenant", name), zap.String("trace_id", extractTraceID(ctx)))
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("internal error: %v", r)
			log.Error("tenant fetch panicked", zap.Any("panic", r))
			out = TenantOutcome{Result: domain.FailedTenant(name, t.inst.URL, err.Error()), Err: err}
		}

		status := "ok"
		if out.Err != nil {
			status = "error"
		}
		a.metrics.FetchDuration.WithLabelValues(name, status).Observe(time.Since(start).Seconds())
	}()

	var (
		wg           sync.WaitGroup
		secondary    []domain.HostRecord
		secondaryErr error
	)
	if a.secondary != nil && t.inst.Healthchecks.Active() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			secondary, secondaryErr = a.fetchSecondary(ctx, t.inst)
		}()
	}

	outcomes, err := t.guard.Run(func() ([]HostOutcome, error) {
		return a.fetchPrimary(ctx, t)
	})

	wg.Wait()

	if err != nil {
		kind := connectors.Kind(err)
		if errors.Is(err, ErrBreakerOpen) {
			kind = "breaker"
		}
		a.metrics.TenantErrors.WithLabelValues(name, kind).Inc()
		log.Warn("tenant unavailable",
			zap.String("kind", kind),
			zap.String("breaker", t.guard.State()),
			zap.Error(err))
		return TenantOutcome{Result: domain.FailedTenant(name, t.inst.URL, TenantErrorMessage(err)), Err: err}
	}

	if secondaryErr != nil {
		log.Error("healthchecks merge failed", zap.Error(secondaryErr))
		secondary = []domain.HostRecord{MergeErrorHost(secondaryErr)}
	}

	hosts := make([]domain.HostRecord, 0, len(outcomes)+len(secondary))
	degraded := 0
	for _, o := range outcomes {
		if o.Degraded() {
			degraded++
		}
		hosts = append(hosts, o.Host)
	}
	hosts = append(hosts, secondary...)

	if degraded > 0 {
		a.metrics.HostDetailFailures.WithLabelValues(name).Add(float64(degraded))
		log.Warn("some hosts served without details", zap.Int("degraded", degraded), zap.Int("hosts", len(outcomes)))
	}

	log.Debug("tenant fetched",
		zap.Int("mmonit_hosts", len(outcomes)),
		zap.Int("healthchecks_hosts", len(secondary)),
		zap.Duration("took", time.Since(start)))

	return TenantOutcome{Result: domain.TenantResult{Tenant: name, URL: t.inst.URL, Hosts: hosts}}
}

func (a *Aggregator) fetchPrimary(ctx context.Context, t *tenantRuntime) ([]HostOutcome, error) {
	sess, err := t.client.Login(ctx)
	if err != nil {
		return nil, err
	}

	summaries, err := sess.ListHosts(ctx)
	if err != nil {
		return nil, err
	}

	return a.enricher.Enrich(ctx, sess, t.client.HostViewURL, summaries), nil
}

// fetchSecondary превращает панику вторичного источника в ошибку
func (a *Aggregator) fetchSecondary(ctx context.Context, inst domain.Instance) (hosts []domain.HostRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			hosts = nil
			err = fmt.Errorf("healthchecks merge panic: %v", r)
		}
	}()
	return a.secondary.Fetch(ctx, inst)
}

// TenantErrorMessage — текст ошибки арендатора для фронтенда
func TenantErrorMessage(err error) string {
	var open *BreakerOpenError
	if errors.As(err, &open) {
		return open.Error()
	}
	if errors.Is(err, ErrBreakerOpen) {
		return BreakerOpenMessage
	}
	return err.Error()
}
