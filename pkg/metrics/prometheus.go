// Package metrics provides Prometheus metrics for the repforge rewards pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector exported by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Dispatch metrics
	eventsIngested    *prometheus.CounterVec
	eventsDispatched  *prometheus.CounterVec
	eventsRetried     *prometheus.CounterVec
	eventsExhausted   *prometheus.CounterVec
	eventsUnknownKind *prometheus.CounterVec
	handlerLatency    *prometheus.HistogramVec
	cycles            *prometheus.CounterVec
	cycleDuration     prometheus.Histogram
	cycleBatchSize    *prometheus.GaugeVec
	queueDepth        prometheus.Gauge

	// Ledger metrics
	ledgerEntries    *prometheus.CounterVec
	ledgerPoints     prometheus.Counter
	ledgerDuplicates prometheus.Counter
	notifications    *prometheus.CounterVec

	// Planning metrics
	progressionRecommendations *prometheus.CounterVec
	timeboxPlans               prometheus.Counter
	timeboxSupersets           prometheus.Histogram

	// Repository metrics
	repositoryLatency *prometheus.HistogramVec

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error metrics
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
	errorLatency         *prometheus.HistogramVec

	// System metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // registry without default Go collectors

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "repforge",
		subsystem:        "rewards",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	}, labels)
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
		Buckets:   m.histogramBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.eventsIngested = m.counterVec("events_ingested_total",
		"Events accepted from producers", "kind")
	m.eventsDispatched = m.counterVec("events_dispatched_total",
		"Dispatch attempts by kind and outcome", "kind", "outcome")
	m.eventsRetried = m.counterVec("events_retried_total",
		"Failed attempts rescheduled with backoff", "kind")
	m.eventsExhausted = m.counterVec("events_exhausted_total",
		"Events that used their last retry and will never be dispatched again", "kind")
	m.eventsUnknownKind = m.counterVec("events_unknown_kind_total",
		"Events whose kind has no registered handler", "policy")
	m.handlerLatency = m.histogramVec("handler_latency_milliseconds",
		"Handler plus side-effect latency per event", "kind")
	m.cycles = m.counterVec("cycles_total",
		"Dispatch cycles by partition and result", "partition", "result")
	m.cycleDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "cycle_duration_milliseconds",
		Help:      "Wall time of one dispatch cycle",
		Buckets:   m.histogramBuckets,
	})
	m.cycleBatchSize = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "cycle_batch_size",
		Help:      "Eligible events selected by the last cycle",
	}, []string{"partition"})
	m.queueDepth = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_pending_events",
		Help:      "Unprocessed events held by the in-memory queue",
	})

	m.ledgerEntries = m.counterVec("ledger_entries_total",
		"Ledger entries appended by activity kind", "activity_kind")
	m.ledgerPoints = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ledger_points_awarded_total",
		Help:      "Sum of points awarded",
	})
	m.ledgerDuplicates = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ledger_duplicates_total",
		Help:      "Ledger appends suppressed by the idempotency key",
	})
	m.notifications = m.counterVec("notifications_total",
		"Notifications written by category", "category")

	m.progressionRecommendations = m.counterVec("progression_recommendations_total",
		"Progression recommendations by action", "action")
	m.timeboxPlans = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "timebox_plans_total",
		Help:      "Timeboxed plans built",
	})
	m.timeboxSupersets = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "timebox_supersets",
		Help:      "Supersets per built plan",
		Buckets:   []float64{0, 1, 2, 3, 4, 5, 6, 8, 10},
	})

	m.repositoryLatency = m.histogramVec("repository_latency_milliseconds",
		"Store operation latency", "operation")

	m.httpRequests = m.counterVec("http_requests_total",
		"HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", "endpoint", "method", "status_code")

	m.errorRateByComponent = m.counterVec("errors_by_component_total",
		"Errors by component", "component", "error_type")
	m.errorRateByType = m.counterVec("errors_by_type_total",
		"Errors by type", "error_type", "severity")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total",
		"Errors by endpoint", "endpoint", "method", "error_type")
	m.errorLatency = m.histogramVec("error_latency_milliseconds",
		"Latency of operations that resulted in errors", "component", "error_type")

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_memory_usage_bytes",
		Help:      "System memory usage in bytes",
	})
	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_goroutine_count",
		Help:      "Number of goroutines",
	})
	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_gc_pause_time_milliseconds",
		Help:      "GC pause time in milliseconds",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
	})
}

// RecordEventIngested counts an event accepted from a producer.
func RecordEventIngested(kind string) {
	globalManager.eventsIngested.WithLabelValues(kind).Inc()
}

// RecordEventDispatched counts one dispatch attempt.
// outcome is one of processed, failed, invalid_payload, skipped, held,
// commit_error.
func RecordEventDispatched(kind, outcome string) {
	globalManager.eventsDispatched.WithLabelValues(kind, outcome).Inc()
}

// RecordEventRetried counts a failed attempt that was rescheduled.
func RecordEventRetried(kind string) {
	globalManager.eventsRetried.WithLabelValues(kind).Inc()
}

// RecordEventExhausted counts an event that used up its retries.
func RecordEventExhausted(kind string) {
	globalManager.eventsExhausted.WithLabelValues(kind).Inc()
}

// RecordUnknownKind counts an event without a handler.
func RecordUnknownKind(policy string) {
	globalManager.eventsUnknownKind.WithLabelValues(policy).Inc()
}

// RecordHandlerLatency records handler latency in milliseconds.
func RecordHandlerLatency(kind string, latencyMs float64) {
	globalManager.handlerLatency.WithLabelValues(kind).Observe(latencyMs)
}

// RecordCycle counts a finished cycle; result is ok or error.
func RecordCycle(partition, result string) {
	globalManager.cycles.WithLabelValues(partition, result).Inc()
}

// RecordCycleDuration records cycle wall time in milliseconds.
func RecordCycleDuration(latencyMs float64) {
	globalManager.cycleDuration.Observe(latencyMs)
}

// UpdateCycleBatchSize sets the batch size selected by the last cycle.
func UpdateCycleBatchSize(partition string, size int) {
	globalManager.cycleBatchSize.WithLabelValues(partition).Set(float64(size))
}

// UpdateQueueDepth sets the in-memory pending event count.
func UpdateQueueDepth(size int) {
	globalManager.queueDepth.Set(float64(size))
}

// RecordLedgerEntry counts an appended entry and its points.
func RecordLedgerEntry(activityKind string, points float64) {
	globalManager.ledgerEntries.WithLabelValues(activityKind).Inc()
	if points > 0 {
		globalManager.ledgerPoints.Add(points)
	}
}

// RecordLedgerDuplicate counts a suppressed duplicate append.
func RecordLedgerDuplicate() {
	globalManager.ledgerDuplicates.Inc()
}

// RecordNotification counts a written notification.
func RecordNotification(category string) {
	globalManager.notifications.WithLabelValues(category).Inc()
}

// RecordProgressionRecommendation counts a recommendation by action.
func RecordProgressionRecommendation(action string) {
	globalManager.progressionRecommendations.WithLabelValues(action).Inc()
}

// RecordTimeboxPlan counts a built plan and its superset count.
func RecordTimeboxPlan(supersets int) {
	globalManager.timeboxPlans.Inc()
	globalManager.timeboxSupersets.Observe(float64(supersets))
}

// RecordRepositoryLatency records a store operation latency.
func RecordRepositoryLatency(operation string, latencyMs float64) {
	globalManager.repositoryLatency.WithLabelValues(operation).Observe(latencyMs)
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records the latency of an operation that resulted in an error.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

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
