// Package dispatcher drains the product event queue and delivers webhooks.
// Each worker leases one event at a time, fans it out to every active
// subscriber of the event's kind, and settles the event's terminal status
// from the per-subscriber outcomes.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jayesh55555/Product-Importer/internal/domain"
	"github.com/jayesh55555/Product-Importer/internal/store"
)

// defaultBackoff paces retries to one subscriber while the event lease is
// held. The schedule stays short so a slow endpoint cannot hold a lease past
// the reconciler's stale threshold.
var defaultBackoff = []time.Duration{
	0,
	1 * time.Second,
	5 * time.Second,
	15 * time.Second,
	30 * time.Second,
}

const (
	defaultMaxAttempts  = 5
	defaultWorkers      = 4
	defaultTimeout      = 10 * time.Second
	defaultPollInterval = 2 * time.Second
	defaultRequeueDelay = 30 * time.Second

	// statusWriteTimeout bounds the independent context used for terminal
	// status writes during shutdown.
	statusWriteTimeout = 5 * time.Second
)

type Store interface {
	// LeaseNextEvent claims the oldest due pending event, moving it to
	// leased. Returns store.ErrNoPendingEvent when the queue is empty.
	LeaseNextEvent(ctx context.Context) (domain.ProductEvent, error)
	// ReleaseEvent returns a leased event to pending, due again at
	// nextAttemptAt.
	ReleaseEvent(ctx context.Context, seq int64, nextAttemptAt time.Time, lastError string) error
	// MarkEventDelivered and MarkEventFailed settle a leased event.
	// Implementations MUST reject transitions out of terminal states with
	// store.ErrTransitionDenied so replays stay idempotent.
	MarkEventDelivered(ctx context.Context, seq int64) error
	MarkEventFailed(ctx context.Context, seq int64, lastError string) error
	ActiveSubscribers(ctx context.Context, kind domain.EventKind) ([]domain.Subscriber, error)
	InsertDeliveryAttempt(ctx context.Context, attempt domain.DeliveryAttempt) error
	// DeliveredSubscriberIDs lists subscribers that already acknowledged
	// the event, so a redispatch skips them.
	DeliveredSubscriberIDs(ctx context.Context, eventSeq int64) (map[uuid.UUID]bool, error)
}

type WebhookSender interface {
	Send(ctx context.Context, req WebhookRequest) WebhookResult
}

// Breaker gates deliveries per subscriber. Cooldown reports how long until
// the key admits another delivery so deferred events can be requeued to land
// right after it.
type Breaker interface {
	Allow(key string) error
	RecordSuccess(key string)
	RecordFailure(key string)
	Cooldown(key string) time.Duration
}

// MetricsSink defines the interface for recording dispatcher metrics.
// All methods must be non-blocking and fire-and-forget.
type MetricsSink interface {
	DeliveryAttemptCompleted(attempt int, statusClass string, duration time.Duration)
	DeliveryOutcome(outcome string)
	RetryAttempt(retryable bool)
	EventsInFlightIncr()
	EventsInFlightDecr()
	BreakerOpenSkip()
}

type AnalyticsSink interface {
	Record(ctx context.Context, subscriberID uuid.UUID, outcome string)
}

type Config struct {
	Workers      int
	MaxAttempts  int
	Timeout      time.Duration // per-attempt HTTP budget
	PollInterval time.Duration
	RequeueDelay time.Duration // redispatch pause when no cooldown is known
}

func (c Config) withDefaults() Config {
	if c.Workers < 1 {
		c.Workers = defaultWorkers
	}
	if c.MaxAttempts < 1 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.RequeueDelay <= 0 {
		c.RequeueDelay = defaultRequeueDelay
	}
	return c
}

type Dispatcher struct {
	cfg       Config
	store     Store
	sender    WebhookSender
	breaker   Breaker         // optional, nil = always allow
	metrics   MetricsSink     // optional, nil = disabled
	analytics AnalyticsSink   // optional, nil = disabled
	wake      <-chan struct{} // optional, nil = poll only
	backoff   []time.Duration
}

func New(cfg Config, store Store, sender WebhookSender) *Dispatcher {
	return &Dispatcher{
		cfg:     cfg.withDefaults(),
		store:   store,
		sender:  sender,
		backoff: defaultBackoff,
	}
}

// WithBreaker attaches a per-subscriber circuit breaker.
func (d *Dispatcher) WithBreaker(b Breaker) *Dispatcher {
	d.breaker = b
	return d
}

// WithBackoff replaces the retry backoff schedule. Attempts beyond the
// schedule reuse its last entry. An empty schedule keeps the default.
func (d *Dispatcher) WithBackoff(schedule []time.Duration) *Dispatcher {
	if len(schedule) > 0 {
		d.backoff = schedule
	}
	return d
}

// WithMetrics attaches a metrics sink to the dispatcher.
func (d *Dispatcher) WithMetrics(sink MetricsSink) *Dispatcher {
	d.metrics = sink
	return d
}

func (d *Dispatcher) WithAnalytics(sink AnalyticsSink) *Dispatcher {
	d.analytics = sink
	return d
}

// WithWakeup attaches a channel that interrupts idle polling after an
// enqueue.
func (d *Dispatcher) WithWakeup(ch <-chan struct{}) *Dispatcher {
	d.wake = ch
	return d
}

// Run drives the worker pool until the context is cancelled. An event whose
// processing is interrupted by shutdown is released back to pending, so a
// later run redelivers it.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < d.cfg.Workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			d.runWorker(ctx, id)
		}(i)
	}
	wg.Wait()
	log.Printf("dispatcher: stopped")
}

func (d *Dispatcher) runWorker(ctx context.Context, id int) {
	for {
		if ctx.Err() != nil {
			return
		}

		event, err := d.store.LeaseNextEvent(ctx)
		if err != nil {
			if !errors.Is(err, store.ErrNoPendingEvent) && ctx.Err() == nil {
				log.Printf("dispatcher: worker=%d lease: %v", id, err)
			}
			d.idle(ctx)
			continue
		}

		d.Process(ctx, event)
	}
}

// idle waits for the next poll tick, a wake-up nudge, or cancellation.
func (d *Dispatcher) idle(ctx context.Context) {
	timer := time.NewTimer(d.cfg.PollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-d.wake:
	case <-timer.C:
	}
}

// Process fans one leased event out to its subscribers and settles it:
// delivered when every pair succeeded or was already acknowledged, failed
// when any pair permanently failed, and back to pending when a breaker or
// shutdown deferred part of the fan-out.
func (d *Dispatcher) Process(ctx context.Context, event domain.ProductEvent) {
	if d.metrics != nil {
		d.metrics.EventsInFlightIncr()
		defer d.metrics.EventsInFlightDecr()
	}

	subs, err := d.store.ActiveSubscribers(ctx, event.Kind)
	if err != nil {
		log.Printf("dispatcher: event=%d list subscribers: %v", event.Seq, err)
		d.release(event.Seq, time.Now().Add(d.cfg.RequeueDelay), fmt.Sprintf("list subscribers: %v", err))
		return
	}

	if len(subs) == 0 {
		// No active subscriber for this kind; the event completes empty.
		d.settleDelivered(event.Seq)
		return
	}

	acked, err := d.store.DeliveredSubscriberIDs(ctx, event.Seq)
	if err != nil {
		log.Printf("dispatcher: event=%d delivered set: %v", event.Seq, err)
		acked = nil
	}

	var (
		deferred bool
		failed   bool
		lastErr  string
		retryAt  time.Time
	)

	for _, sub := range subs {
		if acked[sub.ID] {
			continue
		}
		if ctx.Err() != nil {
			deferred = true
			lastErr = "interrupted by shutdown"
			retryAt = time.Now()
			break
		}

		if d.breaker != nil {
			if err := d.breaker.Allow(sub.ID.String()); err != nil {
				deferred = true
				lastErr = fmt.Sprintf("%s: circuit open", sub.Name)
				retryAt = earlierRetry(retryAt, time.Now().Add(d.deferFor(sub)))
				if d.metrics != nil {
					d.metrics.BreakerOpenSkip()
				}
				log.Printf("dispatcher: event=%d subscriber=%s circuit open, deferred", event.Seq, sub.ID)
				continue
			}
		}

		outcome, result := d.deliver(ctx, event, sub)
		switch outcome {
		case deliverSuccess:
			if d.breaker != nil {
				d.breaker.RecordSuccess(sub.ID.String())
			}
			d.recordAnalytics(ctx, sub.ID, "delivered")
		case deliverFailed:
			failed = true
			lastErr = describeFailure(sub, result)
			if d.breaker != nil {
				d.breaker.RecordFailure(sub.ID.String())
			}
			d.recordAnalytics(ctx, sub.ID, "failed")
		case deliverAborted:
			deferred = true
			lastErr = "interrupted by shutdown"
			retryAt = time.Now()
		}
	}

	switch {
	case deferred:
		if retryAt.IsZero() {
			retryAt = time.Now().Add(d.cfg.RequeueDelay)
		}
		d.release(event.Seq, retryAt, lastErr)
	case failed:
		if d.metrics != nil {
			d.metrics.DeliveryOutcome("failed")
		}
		d.settleFailed(event.Seq, lastErr)
	default:
		if d.metrics != nil {
			d.metrics.DeliveryOutcome("delivered")
		}
		d.settleDelivered(event.Seq)
	}
}

type deliverOutcome int

const (
	deliverSuccess deliverOutcome = iota
	deliverFailed
	deliverAborted
)

// deliver runs the bounded attempt cycle for one (event, subscriber) pair.
// Every attempt is recorded; a 2xx ends the cycle as success, a 4xx ends it
// as a permanent failure, anything else retries until the budget runs out.
func (d *Dispatcher) deliver(ctx context.Context, event domain.ProductEvent, sub domain.Subscriber) (deliverOutcome, WebhookResult) {
	req := WebhookRequest{
		URL:      sub.TargetURL,
		Secret:   sub.Secret,
		Timeout:  d.cfg.Timeout,
		EventSeq: event.Seq,
		Payload: WebhookPayload{
			Event:     string(event.Kind),
			Timestamp: event.OccurredAt.UTC().Format(time.RFC3339),
			Data:      event.Product,
		},
	}

	var lastResult WebhookResult

	for attempt := 1; attempt <= d.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			if d.metrics != nil {
				d.metrics.RetryAttempt(lastResult.IsRetryable())
			}

			backoff := d.backoffFor(attempt)
			log.Printf("dispatcher: event=%d subscriber=%s attempt=%d backoff=%s", event.Seq, sub.ID, attempt, backoff)

			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				return deliverAborted, lastResult
			case <-timer.C:
			}
		}

		attemptID := uuid.New()
		req.AttemptID = attemptID.String()

		startedAt := time.Now().UTC()
		result := d.sender.Send(ctx, req)
		finishedAt := time.Now().UTC()
		lastResult = result

		if d.metrics != nil {
			statusClass := classifyStatusForMetrics(result.StatusCode, result.Error)
			d.metrics.DeliveryAttemptCompleted(attempt, statusClass, result.Duration)
		}

		record := domain.DeliveryAttempt{
			ID:           attemptID,
			EventSeq:     event.Seq,
			SubscriberID: sub.ID,
			Attempt:      attempt,
			StatusCode:   result.StatusCode,
			StartedAt:    startedAt,
			FinishedAt:   finishedAt,
		}
		if result.Error != nil {
			record.Error = result.Error.Error()
		}
		if err := d.store.InsertDeliveryAttempt(ctx, record); err != nil {
			log.Printf("dispatcher: event=%d record attempt: %v", event.Seq, err)
		}

		if result.IsSuccess() {
			log.Printf("dispatcher: event=%d subscriber=%s delivered attempt=%d", event.Seq, sub.ID, attempt)
			return deliverSuccess, result
		}

		// A cancelled context surfaces as a send error; that is shutdown,
		// not an endpoint failure.
		if ctx.Err() != nil {
			return deliverAborted, result
		}

		if !result.IsRetryable() {
			log.Printf("dispatcher: event=%d subscriber=%s permanent status=%d", event.Seq, sub.ID, result.StatusCode)
			return deliverFailed, result
		}

		log.Printf("dispatcher: event=%d subscriber=%s attempt=%d failed status=%d err=%v", event.Seq, sub.ID, attempt, result.StatusCode, result.Error)
	}

	log.Printf("dispatcher: event=%d subscriber=%s attempts exhausted", event.Seq, sub.ID)
	return deliverFailed, lastResult
}

// backoffFor returns the pause before the given attempt, jittered so
// synchronized retries spread out. The second half of each step is random.
func (d *Dispatcher) backoffFor(attempt int) time.Duration {
	idx := attempt - 1
	if idx >= len(d.backoff) {
		idx = len(d.backoff) - 1
	}
	base := d.backoff[idx]
	if base <= 0 {
		return 0
	}
	half := base / 2
	return half + time.Duration(rand.Int63n(int64(half)+1))
}

// deferFor picks the requeue delay for a breaker-blocked subscriber: the
// remaining cooldown when known, the configured fallback otherwise.
func (d *Dispatcher) deferFor(sub domain.Subscriber) time.Duration {
	if wait := d.breaker.Cooldown(sub.ID.String()); wait > 0 {
		return wait
	}
	return d.cfg.RequeueDelay
}

// earlierRetry keeps the soonest requeue time across deferred subscribers so
// the event comes back as soon as any of them can accept it.
func earlierRetry(current, candidate time.Time) time.Time {
	if current.IsZero() || candidate.Before(current) {
		return candidate
	}
	return current
}

func (d *Dispatcher) recordAnalytics(ctx context.Context, subscriberID uuid.UUID, outcome string) {
	if d.analytics == nil {
		return
	}
	d.analytics.Record(ctx, subscriberID, outcome)
}

// release and the settle helpers write through a short independent context so
// status updates land even when the worker context is already cancelled.
func (d *Dispatcher) release(seq int64, nextAttemptAt time.Time, lastError string) {
	ctx, cancel := context.WithTimeout(context.Background(), statusWriteTimeout)
	defer cancel()
	if err := d.store.ReleaseEvent(ctx, seq, nextAttemptAt, lastError); err != nil {
		log.Printf("dispatcher: event=%d release: %v", seq, err)
	}
}

func (d *Dispatcher) settleDelivered(seq int64) {
	ctx, cancel := context.WithTimeout(context.Background(), statusWriteTimeout)
	defer cancel()
	if err := d.store.MarkEventDelivered(ctx, seq); err != nil {
		if errors.Is(err, store.ErrTransitionDenied) {
			// Already terminal, likely a redispatch race. Safe to ignore.
			log.Printf("dispatcher: event=%d already terminal", seq)
			return
		}
		log.Printf("dispatcher: event=%d mark delivered: %v", seq, err)
	}
}

func (d *Dispatcher) settleFailed(seq int64, lastError string) {
	ctx, cancel := context.WithTimeout(context.Background(), statusWriteTimeout)
	defer cancel()
	if err := d.store.MarkEventFailed(ctx, seq, lastError); err != nil {
		if errors.Is(err, store.ErrTransitionDenied) {
			log.Printf("dispatcher: event=%d already terminal", seq)
			return
		}
		log.Printf("dispatcher: event=%d mark failed: %v", seq, err)
	}
}

func describeFailure(sub domain.Subscriber, result WebhookResult) string {
	if result.Error != nil {
		return fmt.Sprintf("%s: %v", sub.Name, result.Error)
	}
	return fmt.Sprintf("%s: status %d", sub.Name, result.StatusCode)
}

// classifyStatusForMetrics maps an HTTP status code and error to a metrics
// status class with bounded cardinality: 2xx, 4xx, 5xx, timeout,
// connection_error, other_error.
func classifyStatusForMetrics(statusCode int, err error) string {
	if err != nil {
		msg := strings.ToLower(err.Error())
		if strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded") {
			return "timeout"
		}
		if strings.Contains(msg, "connection refused") ||
			strings.Contains(msg, "no such host") ||
			strings.Contains(msg, "network is unreachable") ||
			strings.Contains(msg, "dial") {
			return "connection_error"
		}
		return "other_error"
	}

	switch {
	case statusCode >= 200 && statusCode < 300:
		return "2xx"
	case statusCode >= 400 && statusCode < 500:
		return "4xx"
	case statusCode >= 500:
		return "5xx"
	default:
		return "other_error"
	}
}
