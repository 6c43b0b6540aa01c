package config

import (
	"strings"
	"testing"
	"time"
)

func TestValidate_ValidConfig(t *testing.T) {
	cfg := Config{
		DatabaseURL:        "postgres://localhost/products",
		StoreBackend:       "postgres",
		PurgeSchedule:      "0 */6 * * *",
		DeliveryTimeoutStr: "10s",
		LeaseTimeoutStr:    "5m",
	}

	if err := Validate(cfg); err != nil {
		t.Errorf("valid config should not return error, got: %v", err)
	}
}

func TestValidate_MissingDatabaseURL(t *testing.T) {
	cfg := Config{
		DatabaseURL:  "",
		StoreBackend: "postgres",
	}

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error for missing DATABASE_URL")
	}

	if !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Errorf("error should mention DATABASE_URL: %q", err.Error())
	}
}

func TestValidate_MemoryBackendNeedsNoDatabaseURL(t *testing.T) {
	cfg := Config{
		DatabaseURL:  "",
		StoreBackend: "memory",
	}

	if err := Validate(cfg); err != nil {
		t.Errorf("memory backend should not require DATABASE_URL, got: %v", err)
	}
}

func TestValidate_InvalidStoreBackend(t *testing.T) {
	cfg := Config{
		DatabaseURL:  "postgres://localhost/products",
		StoreBackend: "redis",
	}

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error for STORE_BACKEND=redis")
	}
	if !strings.Contains(err.Error(), "STORE_BACKEND") {
		t.Errorf("error should mention STORE_BACKEND: %q", err.Error())
	}
}

func TestValidate_InvalidPurgeSchedule(t *testing.T) {
	tests := []struct {
		name     string
		schedule string
	}{
		{"words", "every friday"},
		{"too few fields", "0 * *"},
		{"minute out of range", "61 * * * *"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{
				DatabaseURL:   "postgres://localhost/products",
				StoreBackend:  "postgres",
				PurgeSchedule: tt.schedule,
			}

			err := Validate(cfg)
			if err == nil {
				t.Fatalf("expected error for purge_schedule=%q", tt.schedule)
			}
			if !strings.Contains(err.Error(), "PURGE_SCHEDULE") {
				t.Errorf("error should mention PURGE_SCHEDULE: %q", err.Error())
			}
		})
	}
}

func TestValidate_InvalidDeliveryTimeout(t *testing.T) {
	tests := []struct {
		name    string
		timeout string
		wantErr string
	}{
		{"non-parseable", "invalid", "invalid duration"},
		{"negative", "-1s", "must be positive"},
		{"zero", "0s", "must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{
				DatabaseURL:        "postgres://localhost/products",
				StoreBackend:       "postgres",
				DeliveryTimeoutStr: tt.timeout,
			}

			err := Validate(cfg)
			if err == nil {
				t.Fatalf("expected error for delivery_timeout=%q", tt.timeout)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q should contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidate_LeaseShorterThanRetryWindow(t *testing.T) {
	cfg := Config{
		DatabaseURL:         "postgres://localhost/products",
		StoreBackend:        "postgres",
		DeliveryMaxAttempts: 5,
		DeliveryTimeout:     10 * time.Second,
		LeaseTimeout:        30 * time.Second,
	}

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error for lease shorter than the retry window")
	}
	if !strings.Contains(err.Error(), "LEASE_TIMEOUT") {
		t.Errorf("error should mention LEASE_TIMEOUT: %q", err.Error())
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	cfg := Config{
		DatabaseURL:        "", // missing
		StoreBackend:       "postgres",
		DeliveryTimeoutStr: "invalid",
	}

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected errors")
	}

	errs, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}

	if len(errs) != 2 {
		t.Errorf("expected 2 validation errors, got %d: %v", len(errs), errs)
	}
}

func TestValidationError_Format(t *testing.T) {
	err := ValidationError{Field: "DATABASE_URL", Message: "required"}
	got := err.Error()
	want := "DATABASE_URL: required"
	if got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestValidationErrors_Format(t *testing.T) {
	// Single error
	single := ValidationErrors{{Field: "F1", Message: "M1"}}
	if single.Error() != "F1: M1" {
		t.Errorf("single error = %q, want 'F1: M1'", single.Error())
	}

	// Multiple errors
	multi := ValidationErrors{
		{Field: "F1", Message: "M1"},
		{Field: "F2", Message: "M2"},
	}
	got := multi.Error()
	if !strings.Contains(got, "2 validation errors") {
		t.Errorf("multi error should contain '2 validation errors': %q", got)
	}
	if !strings.Contains(got, "F1: M1") || !strings.Contains(got, "F2: M2") {
		t.Errorf("multi error should contain both errors: %q", got)
	}

	// Empty
	empty := ValidationErrors{}
	if empty.Error() != "" {
		t.Errorf("empty errors should return empty string, got %q", empty.Error())
	}
}
