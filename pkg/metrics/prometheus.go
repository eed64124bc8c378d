// Package metrics provides Prometheus metrics for the shotmatch bridge.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Shot outcomes, used as the "outcome" label of shots_ingested_total.
const (
	OutcomeOK        = "ok"
	OutcomeHeartbeat = "heartbeat"
	OutcomeEmpty     = "empty"
	OutcomeDuplicate = "duplicate"
	OutcomeMalformed = "malformed"
)

// Lookup modes, used as the "mode" label of the lookup metrics.
const (
	LookupIngest   = "ingest"
	LookupSingle   = "single"
	LookupBatch    = "batch"
	LookupBackfill = "backfill"
)

// Manager manages all Prometheus metrics for the bridge.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Shot ingest
	shotsIngested     *prometheus.CounterVec
	trajectoryPoints  prometheus.Histogram
	trajectoryAbsent  prometheus.Counter
	vlaMatchError     prometheus.Histogram
	enrichmentLatency prometheus.Histogram

	// Reference index
	referenceShots        prometheus.Gauge
	referenceLoads        *prometheus.CounterVec
	referenceLoadDuration prometheus.Histogram
	referenceRowsSkipped  prometheus.Counter
	referenceReady        prometheus.Gauge

	// Lookup
	lookups       *prometheus.CounterVec
	lookupMisses  *prometheus.CounterVec
	lookupLatency *prometheus.HistogramVec
	matchDistance prometheus.Histogram

	// Dispatch queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueueRate   prometheus.Counter
	queueDequeueRate   prometheus.Counter
	queueEnqueueErrors prometheus.Counter
	workerCount        prometheus.Gauge
	workerErrors       prometheus.Counter

	// Push channel
	pushClients         prometheus.Gauge
	pushMessagesSent    *prometheus.CounterVec
	pushMessagesDropped prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "shotmatch",
		subsystem:        "bridge",
		histogramBuckets: prometheus.DefBuckets,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// RefreshInterval reports how often gauge updaters should run.
func (m *Manager) RefreshInterval() time.Duration { return m.refreshInterval }

func (m *Manager) name(n string) string { return m.metricPrefix + n }

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	if len(buckets) == 0 {
		buckets = m.histogramBuckets
	}
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.customLabels,
	}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.shotsIngested = auto.NewCounterVec(
		m.counterOpts("shots_ingested_total", "Launch-monitor messages received, by outcome"),
		[]string{"outcome"},
	)
	m.trajectoryPoints = auto.NewHistogram(m.histogramOpts(
		"trajectory_points", "Reconstructed trajectory points per shot",
		[]float64{2, 4, 8, 16, 32, 64, 128},
	))
	m.trajectoryAbsent = auto.NewCounter(
		m.counterOpts("trajectory_absent_total", "Shots ingested without a usable trajectory"),
	)
	m.vlaMatchError = auto.NewHistogram(m.histogramOpts(
		"vla_match_error_degrees", "Absolute vertical launch angle difference between shot and matched reference",
		[]float64{0.1, 0.25, 0.5, 1, 2, 4, 8},
	))
	m.enrichmentLatency = auto.NewHistogram(m.histogramOpts(
		"enrichment_latency_milliseconds", "Time spent enriching one shot",
		[]float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 50},
	))

	m.referenceShots = auto.NewGauge(
		m.gaugeOpts("reference_shots", "Rows in the currently published reference index"),
	)
	m.referenceLoads = auto.NewCounterVec(
		m.counterOpts("reference_loads_total", "Reference index loads, by outcome"),
		[]string{"outcome"},
	)
	m.referenceLoadDuration = auto.NewHistogram(m.histogramOpts(
		"reference_load_duration_seconds", "Time to fetch and parse the reference index",
		[]float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	))
	m.referenceRowsSkipped = auto.NewCounter(
		m.counterOpts("reference_rows_skipped_total", "Reference rows dropped because a required field did not parse"),
	)
	m.referenceReady = auto.NewGauge(
		m.gaugeOpts("reference_ready", "1 once the reference index gate has completed a load"),
	)

	m.lookups = auto.NewCounterVec(
		m.counterOpts("lookups_total", "Nearest-match lookups, by mode"),
		[]string{"mode"},
	)
	m.lookupMisses = auto.NewCounterVec(
		m.counterOpts("lookup_misses_total", "Lookups that found no reference shot, by mode"),
		[]string{"mode"},
	)
	m.lookupLatency = auto.NewHistogramVec(
		m.histogramOpts("lookup_latency_milliseconds", "Nearest-match scan latency",
			[]float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}),
		[]string{"mode"},
	)
	m.matchDistance = auto.NewHistogram(m.histogramOpts(
		"match_distance", "Weighted squared distance of the chosen reference shot",
		[]float64{0, 0.01, 0.1, 0.5, 1, 5, 25, 100},
	))

	m.queueSize = auto.NewGauge(m.gaugeOpts("dispatch_queue_size", "Enriched shots waiting to be broadcast"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("dispatch_queue_capacity", "Capacity of the dispatch queue"))
	m.queueEnqueueRate = auto.NewCounter(m.counterOpts("dispatch_enqueued_total", "Shots enqueued for broadcast"))
	m.queueDequeueRate = auto.NewCounter(m.counterOpts("dispatch_dequeued_total", "Shots taken from the dispatch queue"))
	m.queueEnqueueErrors = auto.NewCounter(
		m.counterOpts("dispatch_dropped_total", "Shots dropped because the dispatch queue was full or closed"),
	)
	m.workerCount = auto.NewGauge(m.gaugeOpts("dispatch_workers", "Running dispatcher workers"))
	m.workerErrors = auto.NewCounter(m.counterOpts("dispatch_errors_total", "Publish failures in dispatcher workers"))

	m.pushClients = auto.NewGauge(m.gaugeOpts("push_clients", "Connected push-channel clients"))
	m.pushMessagesSent = auto.NewCounterVec(
		m.counterOpts("push_messages_total", "Messages queued to push clients, by type"),
		[]string{"type"},
	)
	m.pushMessagesDropped = auto.NewCounter(
		m.counterOpts("push_messages_dropped_total", "Messages dropped because a push buffer was full"),
	)

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds", nil),
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorRateByComponent = auto.NewCounterVec(
		m.counterOpts("errors_by_component_total", "Errors by component and type"),
		[]string{"component", "error_type"},
	)
	m.errorRateByEndpoint = auto.NewCounterVec(
		m.counterOpts("errors_by_endpoint_total", "Errors by endpoint, method and type"),
		[]string{"endpoint", "method", "error_type"},
	)

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_bytes", "Heap memory in use"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutines", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogramOpts(
		"system_gc_pause_milliseconds", "Most recent GC pause",
		[]float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 50},
	))
}

// Shot ingest.

// RecordShot increments the ingest counter for an outcome.
func RecordShot(outcome string) {
	globalManager.shotsIngested.WithLabelValues(outcome).Inc()
}

// RecordTrajectory records the number of reconstructed points; zero counts as absent.
func RecordTrajectory(points int) {
	if points == 0 {
		globalManager.trajectoryAbsent.Inc()
		return
	}
	globalManager.trajectoryPoints.Observe(float64(points))
}

// RecordVLAMatchError records |shot VLA - reference VLA| in degrees.
func RecordVLAMatchError(deg float64) {
	globalManager.vlaMatchError.Observe(deg)
}

// RecordEnrichmentLatency records how long enrichment took in milliseconds.
func RecordEnrichmentLatency(latencyMs float64) {
	globalManager.enrichmentLatency.Observe(latencyMs)
}

// Reference index.

// UpdateReferenceShots sets the size of the published index.
func UpdateReferenceShots(count int) {
	globalManager.referenceShots.Set(float64(count))
}

// RecordReferenceLoad records a completed load attempt.
func RecordReferenceLoad(outcome string, took time.Duration, skipped int) {
	globalManager.referenceLoads.WithLabelValues(outcome).Inc()
	globalManager.referenceLoadDuration.Observe(took.Seconds())
	if skipped > 0 {
		globalManager.referenceRowsSkipped.Add(float64(skipped))
	}
}

// UpdateReferenceReady flips the readiness gauge.
func UpdateReferenceReady(ready bool) {
	if ready {
		globalManager.referenceReady.Set(1)
		return
	}
	globalManager.referenceReady.Set(0)
}

// Lookup.

// RecordLookup records a nearest-match scan for a mode.
func RecordLookup(mode string, matched bool, distance float64, latencyMs float64) {
	globalManager.lookups.WithLabelValues(mode).Inc()
	globalManager.lookupLatency.WithLabelValues(mode).Observe(latencyMs)
	if !matched {
		globalManager.lookupMisses.WithLabelValues(mode).Inc()
		return
	}
	globalManager.matchDistance.Observe(distance)
}

// Dispatch queue.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueueRate.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeueRate.Inc()
}

// RecordQueueEnqueueError increments the dropped counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// Push channel.

// UpdatePushClients sets the number of connected push clients.
func UpdatePushClients(count int) {
	globalManager.pushClients.Set(float64(count))
}

// RecordPushMessage counts a message queued to one client.
func RecordPushMessage(msgType string) {
	globalManager.pushMessagesSent.WithLabelValues(msgType).Inc()
}

// RecordPushDropped counts a message that could not be queued to a client.
func RecordPushDropped() {
	globalManager.pushMessagesDropped.Inc()
}

// HTTP.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Errors.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// System.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Default returns the global manager.
func Default() *Manager {
	return globalManager
}
