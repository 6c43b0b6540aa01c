package config

import (
	"fmt"
	"time"

	"github.com/jayesh55555/Product-Importer/internal/cron"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	msg := fmt.Sprintf("%d validation errors:", len(e))
	for _, err := range e {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// Validate checks the configuration for errors.
// Returns nil if valid, or ValidationErrors if invalid.
func Validate(cfg Config) error {
	var errs ValidationErrors

	// STORE_BACKEND must be "postgres" or "memory"
	if cfg.StoreBackend != "" && cfg.StoreBackend != "postgres" && cfg.StoreBackend != "memory" {
		errs = append(errs, ValidationError{
			Field:   "STORE_BACKEND",
			Message: fmt.Sprintf("must be 'postgres' or 'memory', got %q", cfg.StoreBackend),
		})
	}

	// DATABASE_URL is required for the postgres backend
	if cfg.StoreBackend != "memory" && cfg.DatabaseURL == "" {
		errs = append(errs, ValidationError{
			Field:   "DATABASE_URL",
			Message: "required when STORE_BACKEND is postgres",
		})
	}

	// PURGE_SCHEDULE must be a valid 5-field cron expression
	if cfg.PurgeSchedule != "" {
		if _, err := cron.NewParser().Parse(cfg.PurgeSchedule); err != nil {
			errs = append(errs, ValidationError{
				Field:   "PURGE_SCHEDULE",
				Message: fmt.Sprintf("invalid cron expression: %v", err),
			})
		}
	}

	// Every duration knob must parse and be positive
	durations := []struct {
		field string
		value string
	}{
		{"DELIVERY_TIMEOUT", cfg.DeliveryTimeoutStr},
		{"DELIVERY_BACKOFF_BASE", cfg.DeliveryBackoffBaseStr},
		{"LEASE_TIMEOUT", cfg.LeaseTimeoutStr},
		{"CLAIM_TIMEOUT", cfg.ClaimTimeoutStr},
		{"RECONCILE_INTERVAL", cfg.ReconcileIntervalStr},
		{"JOB_RETENTION", cfg.JobRetentionStr},
		{"EVENT_RETENTION", cfg.EventRetentionStr},
		{"DELIVERY_RETENTION", cfg.DeliveryRetentionStr},
		{"CIRCUIT_BREAKER_COOLDOWN", cfg.CircuitBreakerCooldownStr},
		{"HTTP_SHUTDOWN_TIMEOUT", cfg.HTTPShutdownTimeoutStr},
		{"LEADER_RETRY_INTERVAL", cfg.LeaderRetryIntervalStr},
		{"LEADER_HEARTBEAT_INTERVAL", cfg.LeaderHeartbeatIntervalStr},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			errs = append(errs, ValidationError{
				Field:   d.field,
				Message: fmt.Sprintf("invalid duration: %v", err),
			})
			continue
		}
		if parsed <= 0 {
			errs = append(errs, ValidationError{
				Field:   d.field,
				Message: "must be positive",
			})
		}
	}

	// The reconciler requeues events whose lease is older than LEASE_TIMEOUT.
	// A lease shorter than a full retry cycle would be stolen mid-delivery.
	if cfg.LeaseTimeout > 0 && cfg.DeliveryTimeout > 0 {
		window := time.Duration(cfg.DeliveryMaxAttempts) * cfg.DeliveryTimeout
		if cfg.LeaseTimeout <= window {
			errs = append(errs, ValidationError{
				Field:   "LEASE_TIMEOUT",
				Message: fmt.Sprintf("must exceed the delivery retry window (%s)", window),
			})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
