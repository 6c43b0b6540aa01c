package metrics

import (
	"log"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink implements Sink using the Prometheus client library.
// All methods are non-blocking and fire-and-forget.
// Registration errors are logged but never propagated.
type PrometheusSink struct {
	// Import pipeline metrics
	jobsStartedTotal    prometheus.Counter
	jobsFinishedTotal   *prometheus.CounterVec
	jobDuration         prometheus.Histogram
	rowsProcessedTotal  prometheus.Counter
	rowsRejectedTotal   prometheus.Counter
	rowsSupersededTotal prometheus.Counter
	batchCommitDuration prometheus.Histogram
	batchRetriesTotal   prometheus.Counter

	// Outbox metrics
	eventsEnqueuedTotal *prometheus.CounterVec
	enqueueErrorsTotal  prometheus.Counter

	// Dispatcher metrics
	deliveryAttemptsTotal *prometheus.CounterVec
	deliveryOutcomesTotal *prometheus.CounterVec
	webhookDuration       prometheus.Histogram
	retryAttemptsTotal    *prometheus.CounterVec
	eventsInFlight        prometheus.Gauge
	breakerSkipsTotal     prometheus.Counter

	// Reconciler metrics
	queueDepth               prometheus.Gauge
	staleEventsRequeuedTotal prometheus.Counter
	staleJobsRequeuedTotal   prometheus.Counter
	eventsExpiredTotal       prometheus.Counter
	purgedJobsTotal          prometheus.Counter
	purgedEventsTotal        prometheus.Counter

	// Leader election metrics
	leaderStatus            prometheus.Gauge
	leaderAcquisitionsTotal prometheus.Counter
	leaderLossesTotal       *prometheus.CounterVec
}

// NewPrometheusSink creates a new Prometheus metrics sink.
// If registration fails, it logs a warning and returns a functional sink.
// Metrics that fail to register will be replaced with no-op collectors.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{}
	s.initImportMetrics(reg)
	s.initOutboxMetrics(reg)
	s.initDispatcherMetrics(reg)
	s.initReconcilerMetrics(reg)
	s.initLeaderMetrics(reg)
	return s
}

func (s *PrometheusSink) initImportMetrics(reg prometheus.Registerer) {
	s.jobsStartedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "product_importer_ingest_jobs_started_total",
		Help: "Total number of import jobs claimed and started.",
	})
	s.jobsFinishedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "product_importer_ingest_jobs_finished_total",
		Help: "Total number of import jobs reaching a terminal status.",
	}, []string{"status"})
	s.jobDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "product_importer_ingest_job_duration_seconds",
		Help:    "Wall-clock duration of each import job in seconds.",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 1800},
	})
	s.rowsProcessedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "product_importer_ingest_rows_processed_total",
		Help: "Total number of CSV data rows consumed across all jobs.",
	})
	s.rowsRejectedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "product_importer_ingest_rows_rejected_total",
		Help: "Total number of rows rejected by validation.",
	})
	s.rowsSupersededTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "product_importer_ingest_rows_superseded_total",
		Help: "Total number of rows superseded by a later row in the same batch.",
	})
	s.batchCommitDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "product_importer_catalog_batch_commit_duration_seconds",
		Help:    "Duration of each catalog batch commit in seconds.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
	})
	s.batchRetriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "product_importer_catalog_batch_retries_total",
		Help: "Total number of batch commits retried after a conflict.",
	})

	s.register(reg, s.jobsStartedTotal, "product_importer_ingest_jobs_started_total")
	s.register(reg, s.jobsFinishedTotal, "product_importer_ingest_jobs_finished_total")
	s.register(reg, s.jobDuration, "product_importer_ingest_job_duration_seconds")
	s.register(reg, s.rowsProcessedTotal, "product_importer_ingest_rows_processed_total")
	s.register(reg, s.rowsRejectedTotal, "product_importer_ingest_rows_rejected_total")
	s.register(reg, s.rowsSupersededTotal, "product_importer_ingest_rows_superseded_total")
	s.register(reg, s.batchCommitDuration, "product_importer_catalog_batch_commit_duration_seconds")
	s.register(reg, s.batchRetriesTotal, "product_importer_catalog_batch_retries_total")
}

func (s *PrometheusSink) initOutboxMetrics(reg prometheus.Registerer) {
	s.eventsEnqueuedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "product_importer_outbox_events_enqueued_total",
		Help: "Total number of product events appended to the queue.",
	}, []string{"kind"})
	s.enqueueErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "product_importer_outbox_enqueue_errors_total",
		Help: "Total number of enqueue failures after retry exhaustion.",
	})

	s.register(reg, s.eventsEnqueuedTotal, "product_importer_outbox_events_enqueued_total")
	s.register(reg, s.enqueueErrorsTotal, "product_importer_outbox_enqueue_errors_total")
}

func (s *PrometheusSink) initDispatcherMetrics(reg prometheus.Registerer) {
	s.deliveryAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "product_importer_dispatcher_delivery_attempts_total",
		Help: "Total number of webhook delivery attempts.",
	}, []string{"attempt", "status_class"})
	s.deliveryOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "product_importer_dispatcher_delivery_outcomes_total",
		Help: "Total number of final delivery outcomes per event.",
	}, []string{"outcome"})
	s.webhookDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "product_importer_dispatcher_webhook_duration_seconds",
		Help:    "Webhook request latency in seconds (excludes backoff wait).",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})
	s.retryAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "product_importer_dispatcher_retry_attempts_total",
		Help: "Total number of retry attempts (excludes first attempt).",
	}, []string{"retryable"})
	s.eventsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "product_importer_dispatcher_events_in_flight",
		Help: "Number of events currently being processed.",
	})
	s.breakerSkipsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "product_importer_dispatcher_breaker_skips_total",
		Help: "Total number of deliveries skipped because a subscriber's circuit was open.",
	})

	s.register(reg, s.deliveryAttemptsTotal, "product_importer_dispatcher_delivery_attempts_total")
	s.register(reg, s.deliveryOutcomesTotal, "product_importer_dispatcher_delivery_outcomes_total")
	s.register(reg, s.webhookDuration, "product_importer_dispatcher_webhook_duration_seconds")
	s.register(reg, s.retryAttemptsTotal, "product_importer_dispatcher_retry_attempts_total")
	s.register(reg, s.eventsInFlight, "product_importer_dispatcher_events_in_flight")
	s.register(reg, s.breakerSkipsTotal, "product_importer_dispatcher_breaker_skips_total")
}

func (s *PrometheusSink) initReconcilerMetrics(reg prometheus.Registerer) {
	s.queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "product_importer_reconciler_queue_depth",
		Help: "Number of pending events in the queue at last reconcile.",
	})
	s.staleEventsRequeuedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "product_importer_reconciler_stale_events_requeued_total",
		Help: "Total number of expired event leases returned to pending.",
	})
	s.staleJobsRequeuedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "product_importer_reconciler_stale_jobs_requeued_total",
		Help: "Total number of expired job claims returned to the queue.",
	})
	s.eventsExpiredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "product_importer_reconciler_events_expired_total",
		Help: "Total number of pending events failed for exceeding max age.",
	})
	s.purgedJobsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "product_importer_reconciler_purged_jobs_total",
		Help: "Total number of terminal import jobs removed by retention.",
	})
	s.purgedEventsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "product_importer_reconciler_purged_events_total",
		Help: "Total number of terminal events removed by retention.",
	})

	s.register(reg, s.queueDepth, "product_importer_reconciler_queue_depth")
	s.register(reg, s.staleEventsRequeuedTotal, "product_importer_reconciler_stale_events_requeued_total")
	s.register(reg, s.staleJobsRequeuedTotal, "product_importer_reconciler_stale_jobs_requeued_total")
	s.register(reg, s.eventsExpiredTotal, "product_importer_reconciler_events_expired_total")
	s.register(reg, s.purgedJobsTotal, "product_importer_reconciler_purged_jobs_total")
	s.register(reg, s.purgedEventsTotal, "product_importer_reconciler_purged_events_total")
}

func (s *PrometheusSink) initLeaderMetrics(reg prometheus.Registerer) {
	s.leaderStatus = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "product_importer_leader_is_leader",
		Help: "1 if this instance currently holds the leader lock, else 0.",
	})
	s.leaderAcquisitionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "product_importer_leader_acquisitions_total",
		Help: "Total number of times this instance acquired leadership.",
	})
	s.leaderLossesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "product_importer_leader_losses_total",
		Help: "Total number of times this instance lost leadership.",
	}, []string{"reason"})

	s.register(reg, s.leaderStatus, "product_importer_leader_is_leader")
	s.register(reg, s.leaderAcquisitionsTotal, "product_importer_leader_acquisitions_total")
	s.register(reg, s.leaderLossesTotal, "product_importer_leader_losses_total")
}

// register attempts to register a collector, logging any errors without propagating them.
func (s *PrometheusSink) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if err := reg.Register(c); err != nil {
		log.Printf("metrics: failed to register %s: %v", name, err)
	}
}

// Import pipeline metrics implementation

func (s *PrometheusSink) ImportJobStarted() {
	s.jobsStartedTotal.Inc()
}

func (s *PrometheusSink) ImportJobFinished(status string, duration time.Duration) {
	s.jobsFinishedTotal.WithLabelValues(status).Inc()
	s.jobDuration.Observe(duration.Seconds())
}

func (s *PrometheusSink) RowsProcessed(n int) {
	s.rowsProcessedTotal.Add(float64(n))
}

func (s *PrometheusSink) RowsRejected(n int) {
	s.rowsRejectedTotal.Add(float64(n))
}

func (s *PrometheusSink) RowsSuperseded(n int) {
	s.rowsSupersededTotal.Add(float64(n))
}

func (s *PrometheusSink) BatchCommitted(duration time.Duration) {
	s.batchCommitDuration.Observe(duration.Seconds())
}

func (s *PrometheusSink) BatchRetried() {
	s.batchRetriesTotal.Inc()
}

// Outbox metrics implementation

func (s *PrometheusSink) EventEnqueued(kind string) {
	s.eventsEnqueuedTotal.WithLabelValues(kind).Inc()
}

func (s *PrometheusSink) EnqueueError() {
	s.enqueueErrorsTotal.Inc()
}

// Dispatcher metrics implementation

func (s *PrometheusSink) DeliveryAttemptCompleted(attempt int, statusClass string, duration time.Duration) {
	s.deliveryAttemptsTotal.WithLabelValues(strconv.Itoa(attempt), statusClass).Inc()
	s.webhookDuration.Observe(duration.Seconds())
}

func (s *PrometheusSink) DeliveryOutcome(outcome string) {
	s.deliveryOutcomesTotal.WithLabelValues(outcome).Inc()
}

func (s *PrometheusSink) RetryAttempt(retryable bool) {
	label := "false"
	if retryable {
		label = "true"
	}
	s.retryAttemptsTotal.WithLabelValues(label).Inc()
}

func (s *PrometheusSink) EventsInFlightIncr() {
	s.eventsInFlight.Inc()
}

func (s *PrometheusSink) EventsInFlightDecr() {
	s.eventsInFlight.Dec()
}

func (s *PrometheusSink) BreakerOpenSkip() {
	s.breakerSkipsTotal.Inc()
}

// Reconciler metrics implementation

func (s *PrometheusSink) QueueDepthUpdate(depth int64) {
	s.queueDepth.Set(float64(depth))
}

func (s *PrometheusSink) StaleEventsRequeued(n int) {
	s.staleEventsRequeuedTotal.Add(float64(n))
}

func (s *PrometheusSink) StaleJobsRequeued(n int) {
	s.staleJobsRequeuedTotal.Add(float64(n))
}

func (s *PrometheusSink) EventsExpired(n int) {
	s.eventsExpiredTotal.Add(float64(n))
}

func (s *PrometheusSink) RetentionPurged(jobs, events int) {
	s.purgedJobsTotal.Add(float64(jobs))
	s.purgedEventsTotal.Add(float64(events))
}

// Leader election metrics implementation

func (s *PrometheusSink) LeaderStatusChanged(isLeader bool) {
	if isLeader {
		s.leaderStatus.Set(1)
	} else {
		s.leaderStatus.Set(0)
	}
}

func (s *PrometheusSink) LeaderAcquired() {
	s.leaderAcquisitionsTotal.Inc()
}

func (s *PrometheusSink) LeaderLost(reason string) {
	s.leaderLossesTotal.WithLabelValues(reason).Inc()
}
