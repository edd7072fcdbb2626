package cachecost

import (
	"sync"

	"github.com/abhisek/examforge/internal/batch"
)

// CacheMetrics is a point-in-time view of cache behaviour.
type CacheMetrics struct {
	TotalCalls  int     `json:"totalCalls"`
	CacheHits   int     `json:"cacheHits"`
	CacheMisses int     `json:"cacheMisses"`
	HitRate     float64 `json:"hitRate"`
	CostSavings float64 `json:"costSavings"`
}

// Metrics tracks cache hits across completed provider calls. It is
// observational only and safe for concurrent use.
type Metrics struct {
	mu      sync.Mutex
	hits    int
	misses  int
	savings float64
}

// NewMetrics returns an empty tracker.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordCacheHit counts one call that read from the cache.
func (m *Metrics) RecordCacheHit(savings float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hits++
	m.savings += savings
}

// RecordCacheMiss counts one call that did not read from the cache. Any
// cache write surcharge is subtracted from the cumulative savings.
func (m *Metrics) RecordCacheMiss(surcharge float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.misses++
	m.savings -= surcharge
}

// Record classifies a completed call by its usage and records exactly one
// hit or miss.
func (m *Metrics) Record(u batch.UsageMetrics, p Pricing) {
	if u.CacheHit() {
		saved := p.inputCost(float64(u.CacheReadTokens)) * (1 - p.CacheReadMultiplier)
		saved -= writeSurcharge(u, p)
		m.RecordCacheHit(saved)
		return
	}
	m.RecordCacheMiss(writeSurcharge(u, p))
}

func writeSurcharge(u batch.UsageMetrics, p Pricing) float64 {
	if u.CacheCreationTokens <= 0 {
		return 0
	}
	return p.inputCost(float64(u.CacheCreationTokens)) * (p.CacheWriteMultiplier - 1)
}

// Snapshot returns the current counters.
func (m *Metrics) Snapshot() CacheMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := m.hits + m.misses
	s := CacheMetrics{
		TotalCalls:  total,
		CacheHits:   m.hits,
		CacheMisses: m.misses,
		CostSavings: m.savings,
	}
	if total > 0 {
		s.HitRate = float64(m.hits) / float64(total)
	}
	return s
}

// Reset clears all counters.
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hits, m.misses, m.savings = 0, 0, 0
}
