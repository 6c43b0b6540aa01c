// Package analytics keeps per-subscriber delivery counters in Redis so
// operators can spot flapping endpoints without scanning the delivery log.
// Recording is best-effort: a Redis outage never affects delivery.
package analytics

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type RedisSink struct {
	client    *redis.Client
	window    time.Duration
	retention time.Duration
}

// NewRedisSink creates a sink that buckets outcome counters by window and
// expires them after retention.
func NewRedisSink(client *redis.Client, window, retention time.Duration) *RedisSink {
	if window <= 0 {
		window = time.Hour
	}
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}
	return &RedisSink{client: client, window: window, retention: retention}
}

// Record increments the counter for one delivery outcome. Errors are logged
// and swallowed.
func (s *RedisSink) Record(ctx context.Context, subscriberID uuid.UUID, outcome string) {
	key := buildKey(subscriberID.String(), outcome, time.Now(), s.window)

	pipe := s.client.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, s.retention)

	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("analytics: record %s: %v", key, err)
	}
}

func buildKey(subscriberID, outcome string, t time.Time, window time.Duration) string {
	return fmt.Sprintf("sub:%s:%s:%s", subscriberID, outcome, truncateToBucket(t, window))
}

func truncateToBucket(t time.Time, window time.Duration) string {
	t = t.UTC()
	switch window {
	case time.Minute:
		return t.Format("200601021504")
	case 5 * time.Minute:
		minute := (t.Minute() / 5) * 5
		return t.Format("2006010215") + fmt.Sprintf("%02d", minute)
	case time.Hour:
		return t.Format("2006010215")
	default:
		return t.Format("2006010215")
	}
}
