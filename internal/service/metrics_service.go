package service

import (
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/edu-platform-api/internal/models"
)

const metricsNamespace = "edu"

// MetricsService owns the Prometheus registry and keeps plain counters for JSON snapshots.
// A nil *MetricsService is valid and records nothing.
type MetricsService struct {
	handler http.Handler

	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	cacheLatency    prometheus.Histogram
	cacheWrite      prometheus.Histogram
	cacheHitRatio   prometheus.Gauge
	dbQueryDuration *prometheus.HistogramVec
	graded          prometheus.Counter
	practice        *prometheus.CounterVec
	mediaViews      prometheus.Counter
	uploads         *prometheus.CounterVec

	tally metricsTally
}

// metricsTally mirrors the collectors the summary endpoint reports.
type metricsTally struct {
	cacheHits    atomic.Uint64
	cacheMisses  atomic.Uint64
	requests     atomic.Uint64
	requestNanos atomic.Uint64
	dbQueries    atomic.Uint64
	dbQueryNanos atomic.Uint64
	graded       atomic.Uint64
	practice     atomic.Uint64
	mediaViews   atomic.Uint64
}

// NewMetricsService registers the HTTP, cache, database and learning activity collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	m := &MetricsService{
		handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests by route pattern",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route pattern",
		}, []string{"method", "path", "status"}),
		cacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Report cache lookups by result",
		}, []string{"result"}),
		cacheLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "cache",
			Name:      "get_seconds",
			Help:      "Latency of cache reads",
			Buckets:   prometheus.DefBuckets,
		}),
		cacheWrite: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "cache",
			Name:      "set_seconds",
			Help:      "Latency of cache writes",
			Buckets:   prometheus.DefBuckets,
		}),
		cacheHitRatio: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "cache",
			Name:      "hit_ratio",
			Help:      "Ratio of cache hits to cache lookups",
		}),
		dbQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Duration of report queries by label",
			Buckets:   prometheus.DefBuckets,
		}, []string{"query"}),
		graded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "graded_submissions_total",
			Help:      "Assignment submissions graded automatically or by a teacher",
		}),
		practice: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "practice_sessions_total",
			Help:      "Practice sessions evaluated, by practice type",
		}, []string{"type"}),
		mediaViews: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "media_views_total",
			Help:      "Media view observations recorded",
		}),
		uploads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "media_uploads_total",
			Help:      "Media uploads stored, by media type",
		}, []string{"type"}),
	}
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "goroutines",
		Help:      "Number of live goroutines",
	}, func() float64 { return float64(runtime.NumGoroutine()) })

	return m
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records one finished request.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, code).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, code).Inc()
	m.tally.requests.Add(1)
	m.tally.requestNanos.Add(uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records a cache lookup and refreshes the hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
		m.tally.cacheHits.Add(1)
	} else {
		m.cacheLookups.WithLabelValues("miss").Inc()
		m.tally.cacheMisses.Add(1)
	}
	m.cacheHitRatio.Set(ratio(m.tally.cacheHits.Load(), m.tally.cacheMisses.Load()))
}

// ObserveCacheWrite tracks the duration of a cache write.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveDBQuery records the timing of a labelled report query.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
	m.tally.dbQueries.Add(1)
	m.tally.dbQueryNanos.Add(uint64(duration.Nanoseconds()))
}

// RecordSubmissionGraded counts an auto or manual grading.
func (m *MetricsService) RecordSubmissionGraded() {
	if m == nil {
		return
	}
	m.graded.Inc()
	m.tally.graded.Add(1)
}

// RecordPracticeSession counts an evaluated practice session.
func (m *MetricsService) RecordPracticeSession(t models.PracticeType) {
	if m == nil {
		return
	}
	m.practice.WithLabelValues(string(t)).Inc()
	m.tally.practice.Add(1)
}

// RecordMediaView counts a view observation.
func (m *MetricsService) RecordMediaView() {
	if m == nil {
		return
	}
	m.mediaViews.Inc()
	m.tally.mediaViews.Add(1)
}

// RecordUpload counts a stored media upload.
func (m *MetricsService) RecordUpload(t models.MediaType) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(string(t)).Inc()
}

// Snapshot returns aggregated counters for the metrics summary endpoint.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	hits, misses := m.tally.cacheHits.Load(), m.tally.cacheMisses.Load()
	requests, dbQueries := m.tally.requests.Load(), m.tally.dbQueries.Load()
	return models.SystemMetrics{
		CacheHitRatio:            ratio(hits, misses),
		CacheHits:                hits,
		CacheMisses:              misses,
		RequestsTotal:            requests,
		AverageRequestDurationMs: averageMillis(m.tally.requestNanos.Load(), requests),
		DBQueryCount:             dbQueries,
		AverageDBQueryDurationMs: averageMillis(m.tally.dbQueryNanos.Load(), dbQueries),
		GradedSubmissions:        m.tally.graded.Load(),
		PracticeSessions:         m.tally.practice.Load(),
		MediaViews:               m.tally.mediaViews.Load(),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}

func ratio(hits, misses uint64) float64 {
	if hits+misses == 0 {
		return 0
	}
	return float64(hits) / float64(hits+misses)
}

func averageMillis(totalNanos, count uint64) float64 {
	if count == 0 {
		return 0
	}
	return float64(totalNanos) / float64(count) / float64(time.Millisecond)
}
