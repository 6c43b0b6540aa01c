// Package reconciler repairs the queues after worker crashes and enforces
// retention.
//
// An event lease or job claim goes stale when the worker holding it died
// before settling. The reconciler returns stale leases to pending and stale
// claims to the queue; the stores' terminal-state guards make a late replay
// by the original worker harmless.
//
// Retention runs on a cron schedule: terminal jobs and events past their
// windows are deleted, and pending events that outlived the delivery ceiling
// are failed as expired.
package reconciler

import (
	"context"
	"log"
	"time"

	"github.com/jayesh55555/Product-Importer/internal/cron"
)

// Store defines the queue-repair and retention operations.
type Store interface {
	RequeueStaleEvents(ctx context.Context, cutoff time.Time) (int, error)
	RequeueStaleJobs(ctx context.Context, cutoff time.Time) (int, error)
	ExpireOverdueEvents(ctx context.Context, cutoff time.Time) (int, error)
	PurgeTerminalJobs(ctx context.Context, cutoff time.Time) (int, error)
	PurgeTerminalEvents(ctx context.Context, cutoff time.Time) (int, error)
	PendingEventCount(ctx context.Context) (int64, error)
}

type MetricsSink interface {
	QueueDepthUpdate(depth int64)
	StaleEventsRequeued(n int)
	StaleJobsRequeued(n int)
	EventsExpired(n int)
	RetentionPurged(jobs, events int)
}

// Nudger wakes the dispatch pool after stale events return to pending.
type Nudger interface {
	Nudge()
}

// Config holds reconciler configuration.
type Config struct {
	// Interval is how often the repair cycle runs.
	// Default: 1 minute.
	Interval time.Duration

	// LeaseTimeout is the event lease visibility timeout. A lease older
	// than this belongs to a dead worker.
	// Default: 5 minutes.
	LeaseTimeout time.Duration

	// ClaimTimeout is how long a claimed job may sit without starting
	// before the claim is released.
	// Default: 5 minutes.
	ClaimTimeout time.Duration

	// PurgeSchedule is a 5-field cron expression for the retention pass.
	// Default: "0 */6 * * *".
	PurgeSchedule string

	// JobRetention is how long terminal import jobs are kept.
	// Default: 168h.
	JobRetention time.Duration

	// EventRetention is how long terminal events are kept.
	// Default: 72h.
	EventRetention time.Duration

	// DeliveryRetention is the ceiling on how long a pending event may
	// wait for delivery before it is failed as expired.
	// Default: 24h.
	DeliveryRetention time.Duration
}

// DefaultConfig returns the default reconciler configuration.
func DefaultConfig() Config {
	return Config{
		Interval:          time.Minute,
		LeaseTimeout:      5 * time.Minute,
		ClaimTimeout:      5 * time.Minute,
		PurgeSchedule:     "0 */6 * * *",
		JobRetention:      168 * time.Hour,
		EventRetention:    72 * time.Hour,
		DeliveryRetention: 24 * time.Hour,
	}
}

// Reconciler runs the repair cycle and the scheduled retention pass.
type Reconciler struct {
	config  Config
	store   Store
	metrics MetricsSink // optional, nil = disabled
	nudge   Nudger      // optional, nil = poll only
	clock   func() time.Time

	schedule  cron.Schedule
	nextPurge time.Time
}

// New creates a Reconciler. Zero config fields take defaults; an invalid
// purge schedule is an error.
func New(config Config, store Store) (*Reconciler, error) {
	defaults := DefaultConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.LeaseTimeout <= 0 {
		config.LeaseTimeout = defaults.LeaseTimeout
	}
	if config.ClaimTimeout <= 0 {
		config.ClaimTimeout = defaults.ClaimTimeout
	}
	if config.PurgeSchedule == "" {
		config.PurgeSchedule = defaults.PurgeSchedule
	}
	if config.JobRetention <= 0 {
		config.JobRetention = defaults.JobRetention
	}
	if config.EventRetention <= 0 {
		config.EventRetention = defaults.EventRetention
	}
	if config.DeliveryRetention <= 0 {
		config.DeliveryRetention = defaults.DeliveryRetention
	}

	schedule, err := cron.NewParser().Parse(config.PurgeSchedule)
	if err != nil {
		return nil, err
	}

	return &Reconciler{
		config:   config,
		store:    store,
		clock:    time.Now,
		schedule: schedule,
	}, nil
}

func (r *Reconciler) WithMetrics(sink MetricsSink) *Reconciler {
	r.metrics = sink
	return r
}

func (r *Reconciler) WithNudger(n Nudger) *Reconciler {
	r.nudge = n
	return r
}

// Run starts the reconciliation loop. It blocks until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	log.Printf("reconciler: started (interval=%s lease_timeout=%s claim_timeout=%s purge=%q)",
		r.config.Interval, r.config.LeaseTimeout, r.config.ClaimTimeout, r.config.PurgeSchedule)

	// Run immediately on startup, then on ticker
	r.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Printf("reconciler: stopped")
			return
		case <-ticker.C:
			r.runCycle(ctx)
		}
	}
}

// runCycle executes one repair pass and, when the schedule says so, the
// retention pass.
func (r *Reconciler) runCycle(ctx context.Context) {
	now := r.clock().UTC()

	requeued, err := r.store.RequeueStaleEvents(ctx, now.Add(-r.config.LeaseTimeout))
	if err != nil {
		// Store error: log and move on. Next interval retries.
		log.Printf("reconciler: requeue stale events: %v", err)
	} else if requeued > 0 {
		log.Printf("reconciler: requeued %d stale event leases", requeued)
		if r.metrics != nil {
			r.metrics.StaleEventsRequeued(requeued)
		}
		if r.nudge != nil {
			r.nudge.Nudge()
		}
	}

	jobs, err := r.store.RequeueStaleJobs(ctx, now.Add(-r.config.ClaimTimeout))
	if err != nil {
		log.Printf("reconciler: requeue stale jobs: %v", err)
	} else if jobs > 0 {
		log.Printf("reconciler: requeued %d stale job claims", jobs)
		if r.metrics != nil {
			r.metrics.StaleJobsRequeued(jobs)
		}
	}

	depth, err := r.store.PendingEventCount(ctx)
	if err != nil {
		log.Printf("reconciler: pending event count: %v", err)
	} else if r.metrics != nil {
		r.metrics.QueueDepthUpdate(depth)
	}

	// The first cycle only arms the schedule, so a restart never triggers
	// an off-schedule purge.
	if r.nextPurge.IsZero() {
		r.nextPurge = r.schedule.Next(now)
		return
	}
	if now.Before(r.nextPurge) {
		return
	}
	r.runPurge(ctx, now)
	r.nextPurge = r.schedule.Next(now)
}

// runPurge executes one retention pass.
func (r *Reconciler) runPurge(ctx context.Context, now time.Time) {
	expired, err := r.store.ExpireOverdueEvents(ctx, now.Add(-r.config.DeliveryRetention))
	if err != nil {
		log.Printf("reconciler: expire overdue events: %v", err)
	} else if expired > 0 {
		log.Printf("reconciler: expired %d undeliverable events", expired)
		if r.metrics != nil {
			r.metrics.EventsExpired(expired)
		}
	}

	purgedJobs, err := r.store.PurgeTerminalJobs(ctx, now.Add(-r.config.JobRetention))
	if err != nil {
		log.Printf("reconciler: purge terminal jobs: %v", err)
		purgedJobs = 0
	}
	purgedEvents, err := r.store.PurgeTerminalEvents(ctx, now.Add(-r.config.EventRetention))
	if err != nil {
		log.Printf("reconciler: purge terminal events: %v", err)
		purgedEvents = 0
	}

	if purgedJobs > 0 || purgedEvents > 0 {
		log.Printf("reconciler: retention purged jobs=%d events=%d", purgedJobs, purgedEvents)
		if r.metrics != nil {
			r.metrics.RetentionPurged(purgedJobs, purgedEvents)
		}
	}
}
