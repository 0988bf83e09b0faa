package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Latency: сколько занял опрос арендатора (логин + список + детали + Healthchecks)
	FetchDuration *prometheus.HistogramVec

	// Errors: отказы арендатора по классу (auth, api, parse, timeout, connect, breaker)
	TenantErrors *prometheus.CounterVec

	// Хосты, для которых не удалось получить детали (отдали заглушку)
	HostDetailFailures *prometheus.CounterVec

	// Отказы проектов Healthchecks
	SecondaryErrors *prometheus.CounterVec

	// Сколько проверок вычищено из кеша Healthchecks
	PrunedChecks *prometheus.CounterVec

	// Saturation: состояние Circuit Breaker (0 - closed, 1 - half-open, 2 - open)
	CircuitBreakerState *prometheus.GaugeVec

	// Общее число проверок в кеше Healthchecks
	CachedChecks prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Если регистратор не передан, метрики пишутся в локальный реестр, который никуда не отдается
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		FetchDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mmonit_hub_tenant_fetch_duration_seconds",
			Help:    "Histogram of per-tenant fetch latencies.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 15, 30},
		}, []string{"tenant", "status"}),

		TenantErrors: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "mmonit_hub_tenant_errors_total",
			Help: "Total number of failed tenant fetches by error kind.",
		}, []string{"tenant", "kind"}),

		HostDetailFailures: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "mmonit_hub_host_detail_failures_total",
			Help: "Total number of hosts served with placeholder details.",
		}, []string{"tenant"}),

		SecondaryErrors: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "mmonit_hub_healthchecks_errors_total",
			Help: "Total number of failed Healthchecks project fetches.",
		}, []string{"tenant", "project"}),

		PrunedChecks: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "mmonit_hub_healthchecks_pruned_total",
			Help: "Total number of stale Healthchecks checks pruned from cache.",
		}, []string{"tenant"}),

		CircuitBreakerState: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "mmonit_hub_circuit_breaker_state",
			Help: "Current state of the per-tenant circuit breaker (0=closed, 1=half-open, 2=open).",
		}, []string{"tenant"}),

		CachedChecks: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "mmonit_hub_healthchecks_cached_checks",
			Help: "Current number of Healthchecks checks held in cache.",
		}),
	}
}
