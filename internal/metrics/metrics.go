package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus instrumentation for the cache, worker pool
// and connection layer. Scraping is an out-of-band concern, so net/http
// appears only here and in the entrypoint that serves this handler.
type Metrics struct {
	cacheHits        prometheus.Counter
	cacheMisses      prometheus.Counter
	cacheInstalls    prometheus.Counter
	cacheEvictions   prometheus.Counter
	framesInUse      prometheus.Gauge
	workerQueueDepth prometheus.Gauge
	requestDuration  *prometheus.HistogramVec
	activeConns      prometheus.Gauge
	mountHealth      *prometheus.GaugeVec
}

// NewMetrics creates the metrics collector and registers every instrument
// with the default Prometheus registry
func NewMetrics() *Metrics {
	m := &Metrics{
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "staticcache_cache_hits_total",
			Help: "Total number of cache lookups that hit an installed frame",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "staticcache_cache_misses_total",
			Help: "Total number of cache lookups that missed",
		}),
		cacheInstalls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "staticcache_cache_installs_total",
			Help: "Total number of responses installed into the frame pool",
		}),
		cacheEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "staticcache_cache_evictions_total",
			Help: "Total number of frames evicted by the LRU-K replacer",
		}),
		framesInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "staticcache_cache_frames_in_use",
			Help: "Number of frame pool slots currently holding a cached response",
		}),
		workerQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "staticcache_worker_queue_depth",
			Help: "Number of connection tasks waiting in the worker pool queue",
		}),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "staticcache_request_duration_seconds",
				Help:    "Request handling duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"status_code"},
		),
		activeConns: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "staticcache_active_connections",
			Help: "Number of currently accepted connections",
		}),
		mountHealth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "staticcache_mount_health",
				Help: "Mount health status (1=healthy, 0=unhealthy)",
			},
			[]string{"mount_path"},
		),
	}

	prometheus.MustRegister(
		m.cacheHits, m.cacheMisses, m.cacheInstalls, m.cacheEvictions,
		m.framesInUse, m.workerQueueDepth, m.requestDuration,
		m.activeConns, m.mountHealth,
	)

	return m
}

func (m *Metrics) RecordCacheHit()     { m.cacheHits.Inc() }
func (m *Metrics) RecordCacheMiss()    { m.cacheMisses.Inc() }
func (m *Metrics) RecordCacheInstall() { m.cacheInstalls.Inc() }

// RecordCacheEviction increments the evictions counter. No code path in
// the server calls it, so the counter stays at zero.
func (m *Metrics) RecordCacheEviction() {
	m.cacheEvictions.Inc()
}

// SetFramesInUse records the current frame pool occupancy
func (m *Metrics) SetFramesInUse(n int) { m.framesInUse.Set(float64(n)) }

// SetWorkerQueueDepth records the current worker pool queue length
func (m *Metrics) SetWorkerQueueDepth(n int) { m.workerQueueDepth.Set(float64(n)) }

// RecordRequest records a completed request's latency by status code
func (m *Metrics) RecordRequest(statusCode int, duration time.Duration) {
	m.requestDuration.WithLabelValues(statusCodeLabel(statusCode)).Observe(duration.Seconds())
}

func (m *Metrics) IncrementConnections() { m.activeConns.Inc() }
func (m *Metrics) DecrementConnections() { m.activeConns.Dec() }

// UpdateMountHealth updates the health gauge for a document-root mount
func (m *Metrics) UpdateMountHealth(mountPath string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	m.mountHealth.WithLabelValues(mountPath).Set(value)
}

// Handler returns the HTTP handler used to expose metrics for scraping
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}

func statusCodeLabel(code int) string {
	switch code {
	case 200:
		return "200"
	case 400:
		return "400"
	case 404:
		return "404"
	case 413:
		return "413"
	case 429:
		return "429"
	case 500:
		return "500"
	default:
		return "other"
	}
}
