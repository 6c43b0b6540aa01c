package domain

import "time"

type EventKind string

const (
	EventProductCreated EventKind = "product.created"
	EventProductUpdated EventKind = "product.updated"
	EventProductDeleted EventKind = "product.deleted"
)

// EventKinds lists every kind a subscriber may register for.
var EventKinds = []EventKind{EventProductCreated, EventProductUpdated, EventProductDeleted}

func ValidEventKind(k EventKind) bool {
	for _, known := range EventKinds {
		if k == known {
			return true
		}
	}
	return false
}

type EventStatus string

const (
	EventStatusPending   EventStatus = "pending"
	EventStatusLeased    EventStatus = "leased"
	EventStatusDelivered EventStatus = "delivered"
	EventStatusFailed    EventStatus = "failed"
)

// ProductSnapshot is the product state embedded in a webhook payload, frozen
// at the moment the mutation committed.
type ProductSnapshot struct {
	ID          int64  `json:"id"`
	SKU         string `json:"sku"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Active      bool   `json:"active"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// ProductEvent is one catalog mutation queued for webhook delivery. Seq is
// assigned by the queue and increases monotonically; the snapshot is immutable
// once enqueued.
type ProductEvent struct {
	Seq  int64
	Kind EventKind

	Product    ProductSnapshot
	OccurredAt time.Time

	Status        EventStatus
	Attempts      int
	NextAttemptAt time.Time
	LeasedAt      *time.Time
	LastError     string

	CreatedAt time.Time
}
