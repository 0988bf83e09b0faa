package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strings"
	"sync"

	"github.com/xela07ax/mmonit-hub/internal/domain"
)

// CheckCache — последний известный набор проверок по каждому проекту Healthchecks.
// Ключ проекта включает арендатора, поэтому кеши арендаторов не пересекаются.
// Запись в один проект сериализована своим мьютексом, разные проекты не блокируют друг друга.
type CheckCache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
}

type cacheEntry struct {
	mu     sync.Mutex
	checks map[string]domain.HostRecord
}

func NewCheckCache() *CheckCache {
	return &CheckCache{entries: make(map[string]*cacheEntry)}
}

func (c *CheckCache) entry(key string) *cacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		e = &cacheEntry{checks: make(map[string]domain.HostRecord)}
		c.entries[key] = e
	}
	return e
}

// Replace заменяет содержимое проекта свежим набором и возвращает вычищенные записи,
// отсортированные по ключу проверки.
func (c *CheckCache) Replace(key string, hosts []domain.HostRecord) []domain.HostRecord {
	e := c.entry(key)

	e.mu.Lock()
	defer e.mu.Unlock()

	fresh := make(map[string]domain.HostRecord, len(hosts))
	for _, h := range hosts {
		fresh[CheckKey(h)] = h
	}

	var stale []string
	for k := range e.checks {
		if _, ok := fresh[k]; !ok {
			stale = append(stale, k)
		}
	}
	slices.Sort(stale)

	pruned := make([]domain.HostRecord, 0, len(stale))
	for _, k := range stale {
		pruned = append(pruned, e.checks[k])
	}

	e.checks = fresh
	return pruned
}

// Snapshot — копия содержимого проекта
func (c *CheckCache) Snapshot(key string) map[string]domain.HostRecord {
	c.mu.Lock()
	e, ok := c.entries[key]
	c.mu.Unlock()

	out := make(map[string]domain.HostRecord)
	if !ok {
		return out
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for k, v := range e.checks {
		out[k] = v
	}
	return out
}

// Len — общее число проверок во всех проектах
func (c *CheckCache) Len() int {
	c.mu.Lock()
	entries := make([]*cacheEntry, 0, len(c.entries))
	for _, e := range c.entries {
		entries = append(entries, e)
	}
	c.mu.Unlock()

	total := 0
	for _, e := range entries {
		e.mu.Lock()
		total += len(e.checks)
		e.mu.Unlock()
	}
	return total
}

// CheckKey — идентичность проверки внутри проекта
func CheckKey(h domain.HostRecord) string {
	if h.ID != "" {
		return h.ID
	}
	name := h.Hostname
	if name == "" {
		name = "unnamed"
	}
	return "name:" + name
}

// ProjectCacheKey — детерминированный ключ проекта.
// API-ключ в отпечаток не входит: ротация ключа не сбрасывает кеш.
func ProjectCacheKey(tenant string, p domain.HealthchecksProject) string {
	tags := make([]string, 0, len(p.Tags))
	for _, t := range p.Tags {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	slices.Sort(tags)

	paused := "0"
	if p.IncludePaused {
		paused = "1"
	}

	fingerprint := strings.Join([]string{
		p.Base(),
		p.Label(),
		strings.Join(tags, " "),
		paused,
	}, "|")

	sum := sha256.Sum256([]byte(fingerprint))
	return tenant + ":" + hex.EncodeToString(sum[:])[:16]
}
