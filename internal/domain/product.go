package domain

import "time"

// Product is one catalog record. NormalizedSKU is the uppercase identity the
// catalog is keyed on and never changes once assigned; SKU keeps the casing
// the record was first created with.
type Product struct {
	ID int64

	SKU           string
	NormalizedSKU string
	Name          string
	Description   string
	Active        bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Snapshot freezes the product into the wire form carried by lifecycle events.
func (p Product) Snapshot() ProductSnapshot {
	return ProductSnapshot{
		ID:          p.ID,
		SKU:         p.SKU,
		Name:        p.Name,
		Description: p.Description,
		Active:      p.Active,
		CreatedAt:   p.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   p.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
