// Package metrics exposes tile cache counters in Prometheus format.
//
// All methods are safe to call on a nil *Metrics, which records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	LookupHit   = "hit"
	LookupMiss  = "miss"
	LookupStale = "stale"
)

type Metrics struct {
	registry     *prometheus.Registry
	lookups      *prometheus.CounterVec
	writes       prometheus.Counter
	writeSkipped *prometheus.CounterVec
	evictions    prometheus.Counter
	passes       prometheus.Counter
	entries      prometheus.Gauge
	storeErrors  *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	lookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tilecache_lookups_total",
		Help: "Total cache lookups",
	}, []string{"result"})

	writes := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tilecache_writes_total",
		Help: "Total entries written to the store",
	})

	writeSkipped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tilecache_writes_skipped_total",
		Help: "Total responses not written to the store",
	}, []string{"reason"})

	evictions := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tilecache_evictions_total",
		Help: "Total entries deleted by size limit enforcement",
	})

	passes := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tilecache_enforcement_passes_total",
		Help: "Total size limit enforcement passes",
	})

	entries := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tilecache_entries",
		Help: "Entries in the store as of the last enforcement pass",
	})

	storeErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tilecache_store_errors_total",
		Help: "Total store operation failures",
	}, []string{"op"})

	registry.MustRegister(lookups, writes, writeSkipped, evictions, passes, entries, storeErrors)

	return &Metrics{
		registry:     registry,
		lookups:      lookups,
		writes:       writes,
		writeSkipped: writeSkipped,
		evictions:    evictions,
		passes:       passes,
		entries:      entries,
		storeErrors:  storeErrors,
	}
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordLookup counts a read with one of the Lookup* results.
func (m *Metrics) RecordLookup(result string) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordWrite() {
	if m == nil {
		return
	}
	m.writes.Inc()
}

func (m *Metrics) RecordWriteSkipped(reason string) {
	if m == nil {
		return
	}
	m.writeSkipped.WithLabelValues(reason).Inc()
}

// RecordEnforcement counts a finished pass, the entries it saw and how many it evicted.
func (m *Metrics) RecordEnforcement(entries, evicted int) {
	if m == nil {
		return
	}
	m.passes.Inc()
	m.entries.Set(float64(entries - evicted))
	m.evictions.Add(float64(evicted))
}

func (m *Metrics) RecordStoreError(op string) {
	if m == nil {
		return
	}
	m.storeErrors.WithLabelValues(op).Inc()
}
