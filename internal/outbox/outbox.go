// Package outbox enqueues product lifecycle events for webhook delivery. The
// queue write happens in-band with the mutation that produced the event, so a
// reported success means the event is durably queued.
package outbox

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jayesh55555/Product-Importer/internal/domain"
)

const defaultMaxAttempts = 3

var defaultBackoff = []time.Duration{
	0,
	100 * time.Millisecond,
	500 * time.Millisecond,
}

// Queue is the durable event queue. Implementations assign Seq monotonically
// in enqueue order.
type Queue interface {
	EnqueueEvent(ctx context.Context, kind domain.EventKind, snapshot domain.ProductSnapshot, occurredAt time.Time) (int64, error)
}

// Nudger wakes the dispatch pool after an enqueue so delivery starts without
// waiting for the next poll.
type Nudger interface {
	Nudge()
}

type MetricsSink interface {
	EventEnqueued(kind string)
	EnqueueError()
}

// Publisher writes events to the queue with bounded retry. An error from
// Publish means the event is NOT queued; callers must fail their surrounding
// operation rather than continue, because a dropped event is never recovered.
type Publisher struct {
	queue       Queue
	nudge       Nudger      // optional, nil = poll only
	metrics     MetricsSink // optional, nil = disabled
	maxAttempts int
	backoff     []time.Duration
}

func New(queue Queue) *Publisher {
	return &Publisher{
		queue:       queue,
		maxAttempts: defaultMaxAttempts,
		backoff:     defaultBackoff,
	}
}

// WithNudger attaches a wake-up target for the dispatch pool.
func (p *Publisher) WithNudger(n Nudger) *Publisher {
	p.nudge = n
	return p
}

// WithMetrics attaches a metrics sink to the publisher.
func (p *Publisher) WithMetrics(sink MetricsSink) *Publisher {
	p.metrics = sink
	return p
}

// WithMaxAttempts overrides the enqueue attempt budget. Values below 1 keep
// the default.
func (p *Publisher) WithMaxAttempts(n int) *Publisher {
	if n >= 1 {
		p.maxAttempts = n
	}
	return p
}

// Publish enqueues one event and returns its queue sequence. Every enqueue
// failure is retried with backoff until the attempt budget runs out.
func (p *Publisher) Publish(ctx context.Context, kind domain.EventKind, snapshot domain.ProductSnapshot, occurredAt time.Time) (int64, error) {
	var lastErr error

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if attempt > 1 {
			idx := attempt - 1
			if idx >= len(p.backoff) {
				idx = len(p.backoff) - 1
			}
			log.Printf("outbox: enqueue retry kind=%s attempt=%d backoff=%s", kind, attempt, p.backoff[idx])

			timer := time.NewTimer(p.backoff[idx])
			select {
			case <-ctx.Done():
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				return 0, ctx.Err()
			case <-timer.C:
			}
		}

		seq, err := p.queue.EnqueueEvent(ctx, kind, snapshot, occurredAt)
		if err == nil {
			if p.metrics != nil {
				p.metrics.EventEnqueued(string(kind))
			}
			if p.nudge != nil {
				p.nudge.Nudge()
			}
			return seq, nil
		}

		lastErr = err
		if p.metrics != nil {
			p.metrics.EnqueueError()
		}
		log.Printf("outbox: enqueue failed kind=%s sku=%s attempt=%d err=%v", kind, snapshot.SKU, attempt, err)
	}

	return 0, fmt.Errorf("enqueue %s after %d attempts: %w", kind, p.maxAttempts, lastErr)
}
