package metrics

import "time"

// NoopSink is a no-op implementation of Sink.
// Used when metrics are disabled to avoid nil checks.
type NoopSink struct{}

// NewNoopSink returns a no-op metrics sink.
func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) ImportJobStarted()                                                         {}
func (n *NoopSink) ImportJobFinished(status string, duration time.Duration)                   {}
func (n *NoopSink) RowsProcessed(rows int)                                                    {}
func (n *NoopSink) RowsRejected(rows int)                                                     {}
func (n *NoopSink) RowsSuperseded(rows int)                                                   {}
func (n *NoopSink) BatchCommitted(duration time.Duration)                                     {}
func (n *NoopSink) BatchRetried()                                                             {}
func (n *NoopSink) EventEnqueued(kind string)                                                 {}
func (n *NoopSink) EnqueueError()                                                             {}
func (n *NoopSink) DeliveryAttemptCompleted(attempt int, statusClass string, d time.Duration) {}
func (n *NoopSink) DeliveryOutcome(outcome string)                                            {}
func (n *NoopSink) RetryAttempt(retryable bool)                                               {}
func (n *NoopSink) EventsInFlightIncr()                                                       {}
func (n *NoopSink) EventsInFlightDecr()                                                       {}
func (n *NoopSink) BreakerOpenSkip()                                                          {}
func (n *NoopSink) QueueDepthUpdate(depth int64)                                              {}
func (n *NoopSink) StaleEventsRequeued(count int)                                             {}
func (n *NoopSink) StaleJobsRequeued(count int)                                               {}
func (n *NoopSink) EventsExpired(count int)                                                   {}
func (n *NoopSink) RetentionPurged(jobs, events int)                                          {}
func (n *NoopSink) LeaderStatusChanged(isLeader bool)                                         {}
func (n *NoopSink) LeaderAcquired()                                                           {}
func (n *NoopSink) LeaderLost(reason string)                                                  {}
