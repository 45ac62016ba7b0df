package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics follow claircore's promauto package-level-var pattern: registered
// once against the default registry, labeled per cache instance by name so
// multiple page-size caches can share a process without colliding series.
var (
	cacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "corestore",
		Subsystem: "page_cache",
		Name:      "hits_total",
		Help:      "Page cache hits, by cache name.",
	}, []string{"cache"})
	cacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "corestore",
		Subsystem: "page_cache",
		Name:      "misses_total",
		Help:      "Page cache misses, by cache name.",
	}, []string{"cache"})
	cacheEvictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "corestore",
		Subsystem: "page_cache",
		Name:      "evictions_total",
		Help:      "Page cache evictions, by cache name.",
	}, []string{"cache"})
	cacheResident = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "corestore",
		Subsystem: "page_cache",
		Name:      "resident_pages",
		Help:      "Currently resident pages (T1+T2), by cache name.",
	}, []string{"cache"})
)
