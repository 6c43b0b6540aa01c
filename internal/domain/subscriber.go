package domain

import (
	"time"

	"github.com/google/uuid"
)

// Subscriber is one registered webhook endpoint. A subscriber receives every
// event of its kind while Active; Secret, when set, is the shared key used to
// sign payloads.
type Subscriber struct {
	ID uuid.UUID

	Name      string
	TargetURL string
	EventKind EventKind
	Active    bool
	Secret    string

	CreatedAt time.Time
	UpdatedAt time.Time
}
