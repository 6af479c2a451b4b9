// Package metrics provides Prometheus metrics for the topple score service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Ingestion metrics
	submissions        *prometheus.CounterVec
	validationFailures *prometheus.CounterVec
	rateLimitDenials   prometheus.Counter
	replayRejections   prometheus.Counter
	personalBests      prometheus.Counter

	// Ledger metrics
	ledgerAppendLatency prometheus.Histogram
	ledgerQueryLatency  prometheus.Histogram
	ledgerRecords       prometheus.Gauge
	ledgerPruned        prometheus.Counter

	// Leaderboard metrics
	boardUpdateLatency prometheus.Histogram
	boardSize          prometheus.Gauge
	boardEvictions     prometheus.Counter
	boardRebuilds      prometheus.Counter

	// Reconcile queue and worker metrics
	queueSize        prometheus.Gauge
	queueCapacity    prometheus.Gauge
	queueEnqueueErrs prometheus.Counter
	reconcileRetries prometheus.Counter
	workerCount      prometheus.Gauge

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error metrics by component
	errorsByComponent *prometheus.CounterVec

	// Rate limiter occupancy
	rateLimitClients prometheus.Gauge

	// System metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global manager on a custom registry, so default Go collectors stay out.
var (
	customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // singleton registry
	globalManager  *Manager                   //nolint:gochecknoglobals // singleton manager
)

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "topple",
		subsystem:        "scores",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

// initializeMetrics registers all metrics on the configured registry.
func (m *Manager) initializeMetrics() { //nolint:funlen // flat metric declarations
	auto := promauto.With(m.registry)

	m.submissions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "submissions_total",
		Help:      "Score submissions by outcome",
	}, []string{"outcome"})

	m.validationFailures = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "validation_failures_total",
		Help:      "Rejected submissions by validation reason",
	}, []string{"reason"})

	m.rateLimitDenials = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rate_limit_denials_total",
		Help:      "Submissions denied by the per-client rate limiter",
	})

	m.replayRejections = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "replay_rejections_total",
		Help:      "Submissions rejected as duplicates or replays",
	})

	m.personalBests = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "personal_bests_total",
		Help:      "Accepted submissions that improved a player's best",
	})

	m.ledgerAppendLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ledger_append_latency_milliseconds",
		Help:      "Latency of ledger appends in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.ledgerQueryLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ledger_query_latency_milliseconds",
		Help:      "Latency of ledger reads in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.ledgerRecords = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ledger_records",
		Help:      "Number of score records currently retained in the ledger",
	})

	m.ledgerPruned = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ledger_pruned_total",
		Help:      "Score records deleted by retention pruning",
	})

	m.boardUpdateLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "board_update_latency_milliseconds",
		Help:      "Latency of leaderboard updates in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.boardSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "board_size",
		Help:      "Current number of leaderboard slots",
	})

	m.boardEvictions = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "board_evictions_total",
		Help:      "Slots displaced from a full leaderboard",
	})

	m.boardRebuilds = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "board_rebuilds_total",
		Help:      "Full leaderboard rebuilds from the ledger",
	})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "reconcile_queue_size",
		Help:      "Records waiting for leaderboard reconciliation",
	})

	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "reconcile_queue_capacity",
		Help:      "Capacity of the reconcile queue",
	})

	m.queueEnqueueErrs = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "reconcile_enqueue_errors_total",
		Help:      "Failed enqueues into the reconcile queue",
	})

	m.reconcileRetries = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "reconcile_retries_total",
		Help:      "Leaderboard updates replayed by reconcile workers",
	})

	m.workerCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "reconcile_worker_count",
		Help:      "Number of reconcile workers",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "HTTP requests by endpoint, method and status",
	}, []string{"endpoint", "method", "status"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status"})

	m.errorsByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "errors_total",
		Help:      "Errors by component and type",
	}, []string{"component", "type"})

	m.rateLimitClients = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rate_limit_tracked_clients",
		Help:      "Clients with an active rate-limit window",
	})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "system",
		Name:      "memory_usage_bytes",
		Help:      "Current heap allocation in bytes",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "system",
		Name:      "goroutines",
		Help:      "Current number of goroutines",
	})
}

// Submission outcome labels.
const (
	OutcomeAccepted    = "accepted"
	OutcomeUnranked    = "unranked"
	OutcomeRejected    = "rejected"
	OutcomeRateLimited = "rate_limited"
	OutcomeDuplicate   = "duplicate"
	OutcomePending     = "ranking_pending"
)

// Global helpers backed by the singleton manager.

func RecordSubmission(outcome string) {
	globalManager.submissions.WithLabelValues(outcome).Inc()
}

func RecordValidationFailure(reason string) {
	globalManager.validationFailures.WithLabelValues(reason).Inc()
}

func RecordRateLimitDenial() {
	globalManager.rateLimitDenials.Inc()
}

func RecordReplayRejection() {
	globalManager.replayRejections.Inc()
}

func RecordPersonalBest() {
	globalManager.personalBests.Inc()
}

func RecordLedgerAppendLatency(ms float64) {
	globalManager.ledgerAppendLatency.Observe(ms)
}

func RecordLedgerQueryLatency(ms float64) {
	globalManager.ledgerQueryLatency.Observe(ms)
}

func UpdateLedgerRecords(count int) {
	globalManager.ledgerRecords.Set(float64(count))
}

func RecordLedgerPruned(count int) {
	globalManager.ledgerPruned.Add(float64(count))
}

func RecordBoardUpdateLatency(ms float64) {
	globalManager.boardUpdateLatency.Observe(ms)
}

func UpdateBoardSize(size int) {
	globalManager.boardSize.Set(float64(size))
}

func RecordBoardEviction() {
	globalManager.boardEvictions.Inc()
}

func RecordBoardRebuild() {
	globalManager.boardRebuilds.Inc()
}

func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrs.Inc()
}

func RecordReconcileRetry() {
	globalManager.reconcileRetries.Inc()
}

func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

func RecordHTTPRequest(endpoint, method, status string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, status).Inc()
}

func RecordHTTPRequestDuration(endpoint, method, status string, ms float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, status).Observe(ms)
}

func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

func UpdateRateLimitClients(count int) {
	globalManager.rateLimitClients.Set(float64(count))
}

func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry exposes the custom registry for the /healthz metrics handler.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
