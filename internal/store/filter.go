package store

// ProductFilter narrows and pages a catalog listing. String fields match as
// case-insensitive substrings; nil Active matches both states. Results are
// ordered newest first.
type ProductFilter struct {
	SKU         string
	Name        string
	Description string
	Active      *bool
	Limit       int
	Offset      int
}
