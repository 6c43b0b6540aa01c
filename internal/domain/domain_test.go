package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestProductSnapshot(t *testing.T) {
	created := time.Date(2025, 3, 10, 8, 30, 0, 0, time.UTC)
	updated := created.Add(45 * time.Minute)
	p := Product{
		ID:            42,
		SKU:           "Widget-001",
		NormalizedSKU: "WIDGET-001",
		Name:          "Widget",
		Description:   "A widget",
		Active:        true,
		CreatedAt:     created,
		UpdatedAt:     updated,
	}

	snap := p.Snapshot()

	if snap.ID != 42 {
		t.Errorf("ID = %d, want 42", snap.ID)
	}
	if snap.SKU != "Widget-001" {
		t.Errorf("SKU = %q, want original casing preserved", snap.SKU)
	}
	if snap.CreatedAt != "2025-03-10T08:30:00Z" {
		t.Errorf("CreatedAt = %q, want RFC3339 UTC", snap.CreatedAt)
	}
	if snap.UpdatedAt != "2025-03-10T09:15:00Z" {
		t.Errorf("UpdatedAt = %q, want RFC3339 UTC", snap.UpdatedAt)
	}
}

func TestProductSnapshotNonUTCInput(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	p := Product{CreatedAt: time.Date(2025, 6, 1, 14, 0, 0, 0, loc)}

	if got := p.Snapshot().CreatedAt; got != "2025-06-01T12:00:00Z" {
		t.Errorf("CreatedAt = %q, want converted to UTC", got)
	}
}

func TestJobStatusTerminal(t *testing.T) {
	cases := []struct {
		status JobStatus
		want   bool
	}{
		{JobStatusQueued, false},
		{JobStatusRunning, false},
		{JobStatusCompleted, true},
		{JobStatusFailed, true},
	}
	for _, tc := range cases {
		if got := tc.status.Terminal(); got != tc.want {
			t.Errorf("Terminal(%s) = %v, want %v", tc.status, got, tc.want)
		}
	}
}

func TestValidEventKind(t *testing.T) {
	for _, k := range EventKinds {
		if !ValidEventKind(k) {
			t.Errorf("ValidEventKind(%s) = false, want true", k)
		}
	}
	if ValidEventKind("product.archived") {
		t.Error("ValidEventKind accepted an unknown kind")
	}
	if ValidEventKind("") {
		t.Error("ValidEventKind accepted empty kind")
	}
}

func TestDeliveryAttemptDelivered(t *testing.T) {
	cases := []struct {
		code int
		want bool
	}{
		{200, true},
		{204, true},
		{299, true},
		{199, false},
		{300, false},
		{404, false},
		{500, false},
		{0, false},
	}
	for _, tc := range cases {
		a := DeliveryAttempt{ID: uuid.New(), StatusCode: tc.code}
		if got := a.Delivered(); got != tc.want {
			t.Errorf("Delivered(%d) = %v, want %v", tc.code, got, tc.want)
		}
	}
}
