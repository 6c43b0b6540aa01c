// Package rows normalizes and validates raw catalog rows. Everything here is
// pure: no storage, no clock, safe for concurrent use.
package rows

import (
	"fmt"
	"sort"
	"strings"
)

// Columns every catalog file must carry. Extra columns are ignored.
const (
	ColumnSKU         = "sku"
	ColumnName        = "name"
	ColumnDescription = "description"
	ColumnActive      = "active"
)

var requiredColumns = []string{ColumnSKU, ColumnName, ColumnDescription, ColumnActive}

// Rejection reasons reported per row.
const (
	ReasonEmptySKU      = "empty_sku"
	ReasonEmptyName     = "empty_name"
	ReasonInvalidActive = "invalid_active_value"
	ReasonMalformedRow  = "malformed_row"
)

// Valid is one row that passed validation, ready for the upsert engine.
type Valid struct {
	SKU           string
	NormalizedSKU string
	Name          string
	Description   string
	Active        bool
}

// Rejection is one row that failed validation, identified by its ordinal
// position in the file (first data row is 1).
type Rejection struct {
	Line   int64
	Reason string
}

// MissingColumnsError reports a header that lacks required columns. The whole
// file is unprocessable when this is raised.
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("missing required columns: %s", strings.Join(e.Columns, ", "))
}

// Header maps the required columns to their positions in a catalog file.
// Column matching is case-insensitive and ignores surrounding whitespace.
type Header struct {
	idx map[string]int
}

// ParseHeader validates the first record of a catalog file. A UTF-8 BOM on
// the first cell is tolerated. All missing required columns are reported in
// one error.
func ParseHeader(cells []string) (Header, error) {
	idx := make(map[string]int, len(requiredColumns))
	for i, cell := range cells {
		if i == 0 {
			cell = strings.TrimPrefix(cell, "\uFEFF")
		}
		name := strings.ToLower(strings.TrimSpace(cell))
		if _, seen := idx[name]; !seen {
			idx[name] = i
		}
	}

	var missing []string
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return Header{}, &MissingColumnsError{Columns: missing}
	}
	return Header{idx: idx}, nil
}

// Normalize validates one data record against the header layout. It returns
// either the validated row or a rejection, never both. Records shorter than
// the header are padded with empty cells.
func (h Header) Normalize(line int64, record []string) (Valid, *Rejection) {
	sku := strings.TrimSpace(h.cell(record, ColumnSKU))
	if sku == "" {
		return Valid{}, &Rejection{Line: line, Reason: ReasonEmptySKU}
	}
	name := strings.TrimSpace(h.cell(record, ColumnName))
	if name == "" {
		return Valid{}, &Rejection{Line: line, Reason: ReasonEmptyName}
	}
	active, ok := parseActive(h.cell(record, ColumnActive))
	if !ok {
		return Valid{}, &Rejection{Line: line, Reason: ReasonInvalidActive}
	}
	return Valid{
		SKU:           sku,
		NormalizedSKU: NormalizeKey(sku),
		Name:          name,
		Description:   strings.TrimSpace(h.cell(record, ColumnDescription)),
		Active:        active,
	}, nil
}

func (h Header) cell(record []string, column string) string {
	i := h.idx[column]
	if i >= len(record) {
		return ""
	}
	return record[i]
}

// NormalizeKey derives the catalog identity from a raw SKU. Two SKUs that
// differ only in casing or surrounding whitespace share one identity.
func NormalizeKey(sku string) string {
	return strings.ToUpper(strings.TrimSpace(sku))
}

// parseActive folds the accepted truthy and falsy spellings, ignoring case.
// Anything outside the two sets, including an empty cell, is invalid.
func parseActive(raw string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "yes":
		return true, true
	case "false", "0", "no":
		return false, true
	default:
		return false, false
	}
}
