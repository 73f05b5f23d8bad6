package hierarchy

import (
	"time"

	"market-hierarchy/internal/nano"
)

// Metrics are the engine's process-lifetime counters.
// Resolutions always equals CacheHits + CacheMisses.
type Metrics struct {
	Resolutions     uint64    `json:"resolutions"`
	CacheHits       uint64    `json:"cacheHits"`
	CacheMisses     uint64    `json:"cacheMisses"`
	Traversals      uint64    `json:"traversals"`
	Failures        uint64    `json:"failures"`
	AvgResolutionNs uint64    `json:"avgResolutionNs"`
	CacheHitRatio   float64   `json:"cacheHitRatio"`
	LastResetAt     time.Time `json:"lastResetAt"`
}

// AvgResolutionMs is AvgResolutionNs in milliseconds.
func (m Metrics) AvgResolutionMs() float64 {
	return nano.Millis(m.AvgResolutionNs)
}

// CacheStats describes the cache table.
type CacheStats struct {
	Size    int   `json:"size"`
	MaxSize int   `json:"maxSize"`
	TTLMs   int64 `json:"ttlMs"`
}

type counters struct {
	hits       uint64
	misses     uint64
	traversals uint64
	failures   uint64
	buildNs    uint64
	resetAt    time.Time
}

func (c *counters) hit() { c.hits++ }

// miss records a build. Only builds feed the average resolution time.
func (c *counters) miss(buildNs uint64, visited int) {
	c.misses++
	c.buildNs += buildNs
	c.traversals += uint64(visited)
}

func (c *counters) snapshot() Metrics {
	m := Metrics{
		Resolutions: c.hits + c.misses,
		CacheHits:   c.hits,
		CacheMisses: c.misses,
		Traversals:  c.traversals,
		Failures:    c.failures,
		LastResetAt: c.resetAt,
	}
	if c.misses > 0 {
		m.AvgResolutionNs = c.buildNs / c.misses
	}
	if m.Resolutions > 0 {
		m.CacheHitRatio = float64(c.hits) / float64(m.Resolutions)
	}
	return m
}
