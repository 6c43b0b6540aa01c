package domain

import (
	"time"

	"github.com/google/uuid"
)

// DeliveryAttempt records one webhook POST for an (event, subscriber) pair.
// A 2xx StatusCode marks the pair as delivered; redispatch of the same event
// skips pairs that already have one.
type DeliveryAttempt struct {
	ID uuid.UUID

	EventSeq     int64
	SubscriberID uuid.UUID
	Attempt      int

	StatusCode int
	Error      string

	StartedAt  time.Time
	FinishedAt time.Time
}

// Delivered reports whether the attempt reached the subscriber successfully.
func (a DeliveryAttempt) Delivered() bool {
	return a.StatusCode >= 200 && a.StatusCode < 300
}
