package engine

import (
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// BreakerOpenMessage — текст ошибки арендатора, пока предохранитель открыт
const BreakerOpenMessage = "Temporarily unavailable: circuit breaker open"

// ErrBreakerOpen — арендатор временно не опрашивается
var ErrBreakerOpen = errors.New(BreakerOpenMessage)

// BreakerOpenError — отказ без обращения к upstream. Last — последняя ошибка арендатора до размыкания.
type BreakerOpenError struct {
	Last error
}

func (e *BreakerOpenError) Error() string {
	if e.Last == nil {
		return BreakerOpenMessage
	}
	return e.Last.Error() + " (circuit breaker open)"
}

func (e *BreakerOpenError) Is(target error) bool { return target == ErrBreakerOpen }

// BreakerSettings — параметры предохранителя на арендатора
type BreakerSettings struct {
	Enabled bool
	// Сколько отказов подряд до размыкания (строго больше)
	MaxFailures uint32
	// Через сколько после размыкания пробуем снова
	OpenTimeout time.Duration
}

func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		Enabled:     false, // Только явно через hub.breaker.enabled
		MaxFailures: 5,
		OpenTimeout: 30 * time.Second,
	}
}

// TenantGuard — предохранитель и лимитер одного арендатора.
// Ретраев нет: каждый запрос /api/data делает ровно одну попытку на upstream.
type TenantGuard struct {
	cb      *gobreaker.CircuitBreaker
	limiter *rate.Limiter

	mu   sync.Mutex
	last error
}

// NewTenantGuard. rps <= 0 — без ограничения.
func NewTenantGuard(tenant string, settings BreakerSettings, rps float64, burst int, metrics *Metrics) *TenantGuard {
	g := &TenantGuard{limiter: newLimiter(rps, burst)}

	if !settings.Enabled {
		return g
	}

	maxFailures := settings.MaxFailures
	if maxFailures == 0 {
		maxFailures = DefaultBreakerSettings().MaxFailures
	}
	timeout := settings.OpenTimeout
	if timeout <= 0 {
		timeout = DefaultBreakerSettings().OpenTimeout
	}

	g.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        tenant,
		MaxRequests: 1,
		Timeout:     timeout, // Время, через которое CB попробует "закрыться"
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if metrics != nil {
				metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			}
		},
	})
	if metrics != nil {
		metrics.CircuitBreakerState.WithLabelValues(tenant).Set(float64(gobreaker.StateClosed))
	}

	return g
}

func newLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// Limiter отдается клиенту M/Monit: ждем перед каждым исходящим запросом
func (g *TenantGuard) Limiter() *rate.Limiter {
	return g.limiter
}

// Run выполняет опрос через предохранитель. Открытый предохранитель — *BreakerOpenError (errors.Is ErrBreakerOpen).
func (g *TenantGuard) Run(fn func() ([]HostOutcome, error)) ([]HostOutcome, error) {
	if g.cb == nil {
		return fn()
	}

	res, err := g.cb.Execute(func() (interface{}, error) {
		out, err := fn()
		g.mu.Lock()
		g.last = err
		g.mu.Unlock()
		return out, err
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		g.mu.Lock()
		defer g.mu.Unlock()
		return nil, &BreakerOpenError{Last: g.last}
	}
	if err != nil {
		return nil, err
	}
	return res.([]HostOutcome), nil
}

// State — текущее состояние предохранителя, для логов
func (g *TenantGuard) State() string {
	if g.cb == nil {
		return "disabled"
	}
	return g.cb.State().String()
}
