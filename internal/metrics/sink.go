package metrics

import "time"

// Sink is the union of every component's recording interface.
// All methods are fire-and-forget: implementations MUST NOT block or propagate errors.
// If the metrics backend is unavailable, implementations log warnings and continue.
type Sink interface {
	// Import pipeline metrics
	ImportJobStarted()
	ImportJobFinished(status string, duration time.Duration)
	RowsProcessed(n int)
	RowsRejected(n int)
	RowsSuperseded(n int)
	BatchCommitted(duration time.Duration)
	BatchRetried()

	// Outbox metrics
	EventEnqueued(kind string)
	EnqueueError()

	// Dispatcher metrics
	DeliveryAttemptCompleted(attempt int, statusClass string, duration time.Duration)
	DeliveryOutcome(outcome string)
	RetryAttempt(retryable bool)
	EventsInFlightIncr()
	EventsInFlightDecr()
	BreakerOpenSkip()

	// Reconciler metrics
	QueueDepthUpdate(depth int64)
	StaleEventsRequeued(n int)
	StaleJobsRequeued(n int)
	EventsExpired(n int)
	RetentionPurged(jobs, events int)

	// Leader election metrics
	LeaderStatusChanged(isLeader bool)
	LeaderAcquired()
	LeaderLost(reason string)
}
