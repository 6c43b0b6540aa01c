package config

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"time"
)

// Config holds all configuration for the product importer application.
// Values are loaded from environment variables; see printUsage() for the full list.
type Config struct {
	DatabaseURL string `json:"database_url"`
	RedisAddr   string `json:"redis_addr,omitempty"`
	HTTPAddr    string `json:"http_addr"`

	// StoreBackend: "postgres" (durable) or "memory" (single process, tests
	// and local development).
	StoreBackend string `json:"store_backend"`

	// SpoolDir receives uploaded CSV files until their import job finishes.
	SpoolDir string `json:"spool_dir"`

	BatchSize       int `json:"batch_size"`
	IngestWorkers   int `json:"ingest_workers"`
	DispatchWorkers int `json:"dispatch_workers"`

	DeliveryMaxAttempts    int           `json:"delivery_max_attempts"`
	DeliveryTimeout        time.Duration `json:"-"`
	DeliveryTimeoutStr     string        `json:"delivery_timeout"`
	DeliveryBackoffBase    time.Duration `json:"-"`
	DeliveryBackoffBaseStr string        `json:"delivery_backoff_base"`
	EnqueueMaxAttempts     int           `json:"enqueue_max_attempts"`

	// LeaseTimeout must exceed the dispatcher's maximum retry window so the
	// reconciler never steals a lease from a live worker.
	LeaseTimeout    time.Duration `json:"-"`
	LeaseTimeoutStr string        `json:"lease_timeout"`
	ClaimTimeout    time.Duration `json:"-"`
	ClaimTimeoutStr string        `json:"claim_timeout"`

	ReconcileInterval    time.Duration `json:"-"`
	ReconcileIntervalStr string        `json:"reconcile_interval"`

	// PurgeSchedule is a 5-field cron expression evaluated in UTC.
	PurgeSchedule string `json:"purge_schedule"`

	JobRetention         time.Duration `json:"-"`
	JobRetentionStr      string        `json:"job_retention"`
	EventRetention       time.Duration `json:"-"`
	EventRetentionStr    string        `json:"event_retention"`
	DeliveryRetention    time.Duration `json:"-"`
	DeliveryRetentionStr string        `json:"delivery_retention"`

	// CircuitBreakerThreshold: 0 disables the circuit breaker.
	CircuitBreakerThreshold   int           `json:"circuit_breaker_threshold"`
	CircuitBreakerCooldown    time.Duration `json:"-"`
	CircuitBreakerCooldownStr string        `json:"circuit_breaker_cooldown"`

	MetricsEnabled bool   `json:"metrics_enabled"`
	MetricsPort    int    `json:"metrics_port"`
	MetricsPath    string `json:"metrics_path"`

	HTTPShutdownTimeout    time.Duration `json:"-"`
	HTTPShutdownTimeoutStr string        `json:"http_shutdown_timeout"`

	DBMaxOpenConns       int           `json:"db_max_open_conns"`
	DBMaxIdleConns       int           `json:"db_max_idle_conns"`
	DBConnMaxLifetime    time.Duration `json:"-"`
	DBConnMaxLifetimeStr string        `json:"db_conn_max_lifetime"`
	DBConnMaxIdleTime    time.Duration `json:"-"`
	DBConnMaxIdleTimeStr string        `json:"db_conn_max_idle_time"`

	// LeaderLockKey: all instances sharing the same database must use the same key.
	LeaderLockKey int64 `json:"leader_lock_key"`

	// LeaderRetryInterval determines the maximum failover gap.
	LeaderRetryInterval    time.Duration `json:"-"`
	LeaderRetryIntervalStr string        `json:"leader_retry_interval"`

	// LeaderHeartbeatInterval: pings the dedicated connection to detect local
	// connection death. Does NOT renew the advisory lock.
	LeaderHeartbeatInterval    time.Duration `json:"-"`
	LeaderHeartbeatIntervalStr string        `json:"leader_heartbeat_interval"`
}

// Load reads configuration from environment variables with defaults.
func Load() Config {
	cfg := Config{
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		RedisAddr:              os.Getenv("REDIS_ADDR"),
		HTTPAddr:               os.Getenv("HTTP_ADDR"),
		StoreBackend:           os.Getenv("STORE_BACKEND"),
		SpoolDir:               os.Getenv("SPOOL_DIR"),
		DeliveryTimeoutStr:     os.Getenv("DELIVERY_TIMEOUT"),
		DeliveryBackoffBaseStr: os.Getenv("DELIVERY_BACKOFF_BASE"),
		LeaseTimeoutStr:        os.Getenv("LEASE_TIMEOUT"),
		ClaimTimeoutStr:        os.Getenv("CLAIM_TIMEOUT"),
		ReconcileIntervalStr:   os.Getenv("RECONCILE_INTERVAL"),
		PurgeSchedule:          os.Getenv("PURGE_SCHEDULE"),
		JobRetentionStr:        os.Getenv("JOB_RETENTION"),
		EventRetentionStr:      os.Getenv("EVENT_RETENTION"),
		DeliveryRetentionStr:   os.Getenv("DELIVERY_RETENTION"),
		MetricsEnabled:         os.Getenv("METRICS_ENABLED") == "true",
		MetricsPath:            os.Getenv("METRICS_PATH"),
		HTTPShutdownTimeoutStr: os.Getenv("HTTP_SHUTDOWN_TIMEOUT"),
		DBConnMaxLifetimeStr:   os.Getenv("DB_CONN_MAX_LIFETIME"),
		DBConnMaxIdleTimeStr:   os.Getenv("DB_CONN_MAX_IDLE_TIME"),
	}

	if batchStr := os.Getenv("BATCH_SIZE"); batchStr != "" {
		if batch, err := parseInt(batchStr); err == nil && batch > 0 {
			cfg.BatchSize = batch
		}
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 1000
	}

	if workersStr := os.Getenv("INGEST_WORKERS"); workersStr != "" {
		if n, err := parseInt(workersStr); err == nil && n > 0 {
			cfg.IngestWorkers = n
		} else {
			log.Printf("config: invalid INGEST_WORKERS %q (must be a positive integer), using default 2", workersStr)
		}
	}
	if cfg.IngestWorkers == 0 {
		cfg.IngestWorkers = 2
	}

	if workersStr := os.Getenv("DISPATCH_WORKERS"); workersStr != "" {
		if n, err := parseInt(workersStr); err == nil && n > 0 {
			cfg.DispatchWorkers = n
		} else {
			log.Printf("config: invalid DISPATCH_WORKERS %q (must be a positive integer), using default 4", workersStr)
		}
	}
	if cfg.DispatchWorkers == 0 {
		cfg.DispatchWorkers = 4
	}

	if attemptsStr := os.Getenv("DELIVERY_MAX_ATTEMPTS"); attemptsStr != "" {
		if n, err := parseInt(attemptsStr); err == nil && n > 0 {
			cfg.DeliveryMaxAttempts = n
		} else {
			log.Printf("config: invalid DELIVERY_MAX_ATTEMPTS %q (must be a positive integer), using default 5", attemptsStr)
		}
	}
	if cfg.DeliveryMaxAttempts == 0 {
		cfg.DeliveryMaxAttempts = 5
	}

	if attemptsStr := os.Getenv("ENQUEUE_MAX_ATTEMPTS"); attemptsStr != "" {
		if n, err := parseInt(attemptsStr); err == nil && n > 0 {
			cfg.EnqueueMaxAttempts = n
		}
	}
	if cfg.EnqueueMaxAttempts == 0 {
		cfg.EnqueueMaxAttempts = 3
	}

	if cbThreshStr := os.Getenv("CIRCUIT_BREAKER_THRESHOLD"); cbThreshStr != "" {
		if n, err := parseInt(cbThreshStr); err == nil {
			cfg.CircuitBreakerThreshold = n
		} else {
			log.Printf("config: invalid CIRCUIT_BREAKER_THRESHOLD %q, using default 5", cbThreshStr)
			cfg.CircuitBreakerThreshold = 5
		}
	}
	if cfg.CircuitBreakerThreshold == 0 && os.Getenv("CIRCUIT_BREAKER_THRESHOLD") == "" {
		cfg.CircuitBreakerThreshold = 5
	}

	cfg.CircuitBreakerCooldownStr = os.Getenv("CIRCUIT_BREAKER_COOLDOWN")

	if portStr := os.Getenv("METRICS_PORT"); portStr != "" {
		if n, err := parseInt(portStr); err == nil && n > 0 && n < 65536 {
			cfg.MetricsPort = n
		} else {
			log.Printf("config: invalid METRICS_PORT %q, using default 9090", portStr)
		}
	}
	if cfg.MetricsPort == 0 {
		cfg.MetricsPort = 9090
	}

	cfg.LeaderRetryIntervalStr = os.Getenv("LEADER_RETRY_INTERVAL")
	cfg.LeaderHeartbeatIntervalStr = os.Getenv("LEADER_HEARTBEAT_INTERVAL")

	if lockKeyStr := os.Getenv("LEADER_LOCK_KEY"); lockKeyStr != "" {
		if n, err := parseInt(lockKeyStr); err == nil && n > 0 {
			cfg.LeaderLockKey = int64(n)
		} else {
			log.Printf("config: invalid LEADER_LOCK_KEY %q (must be a positive integer), using default 728379", lockKeyStr)
		}
	}
	if cfg.LeaderLockKey == 0 {
		cfg.LeaderLockKey = 728379
	}

	if maxOpenStr := os.Getenv("DB_MAX_OPEN_CONNS"); maxOpenStr != "" {
		if n, err := parseInt(maxOpenStr); err == nil && n > 0 {
			cfg.DBMaxOpenConns = n
		}
	}
	if cfg.DBMaxOpenConns == 0 {
		cfg.DBMaxOpenConns = 25
	}

	if maxIdleStr := os.Getenv("DB_MAX_IDLE_CONNS"); maxIdleStr != "" {
		if n, err := parseInt(maxIdleStr); err == nil && n > 0 {
			cfg.DBMaxIdleConns = n
		}
	}
	if cfg.DBMaxIdleConns == 0 {
		cfg.DBMaxIdleConns = 5
	}

	// Support Railway's PORT variable as fallback for HTTP_ADDR.
	if cfg.HTTPAddr == "" {
		if port := os.Getenv("PORT"); port != "" {
			cfg.HTTPAddr = ":" + port
		} else {
			cfg.HTTPAddr = ":8080"
		}
	}
	if cfg.StoreBackend == "" {
		cfg.StoreBackend = "postgres"
	}
	if cfg.SpoolDir == "" {
		cfg.SpoolDir = filepath.Join(os.TempDir(), "product-importer-spool")
	}
	if cfg.DeliveryTimeoutStr == "" {
		cfg.DeliveryTimeoutStr = "10s"
	}
	if cfg.DeliveryBackoffBaseStr == "" {
		cfg.DeliveryBackoffBaseStr = "1s"
	}
	if cfg.LeaseTimeoutStr == "" {
		cfg.LeaseTimeoutStr = "5m"
	}
	if cfg.ClaimTimeoutStr == "" {
		cfg.ClaimTimeoutStr = "5m"
	}
	if cfg.ReconcileIntervalStr == "" {
		cfg.ReconcileIntervalStr = "1m"
	}
	if cfg.PurgeSchedule == "" {
		cfg.PurgeSchedule = "0 */6 * * *"
	}
	if cfg.JobRetentionStr == "" {
		cfg.JobRetentionStr = "168h"
	}
	if cfg.EventRetentionStr == "" {
		cfg.EventRetentionStr = "72h"
	}
	if cfg.DeliveryRetentionStr == "" {
		cfg.DeliveryRetentionStr = "24h"
	}
	if cfg.CircuitBreakerCooldownStr == "" {
		cfg.CircuitBreakerCooldownStr = "2m"
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if cfg.HTTPShutdownTimeoutStr == "" {
		cfg.HTTPShutdownTimeoutStr = "10s"
	}
	if cfg.DBConnMaxLifetimeStr == "" {
		cfg.DBConnMaxLifetimeStr = "30m"
	}
	if cfg.DBConnMaxIdleTimeStr == "" {
		cfg.DBConnMaxIdleTimeStr = "5m"
	}
	if cfg.LeaderRetryIntervalStr == "" {
		cfg.LeaderRetryIntervalStr = "5s"
	}
	if cfg.LeaderHeartbeatIntervalStr == "" {
		cfg.LeaderHeartbeatIntervalStr = "2s"
	}

	// Parse durations; validation is handled separately by Validate().
	if d, err := time.ParseDuration(cfg.DeliveryTimeoutStr); err == nil {
		cfg.DeliveryTimeout = d
	}
	if d, err := time.ParseDuration(cfg.DeliveryBackoffBaseStr); err == nil {
		cfg.DeliveryBackoffBase = d
	}
	if d, err := time.ParseDuration(cfg.LeaseTimeoutStr); err == nil {
		cfg.LeaseTimeout = d
	}
	if d, err := time.ParseDuration(cfg.ClaimTimeoutStr); err == nil {
		cfg.ClaimTimeout = d
	}
	if d, err := time.ParseDuration(cfg.ReconcileIntervalStr); err == nil {
		cfg.ReconcileInterval = d
	}
	if d, err := time.ParseDuration(cfg.JobRetentionStr); err == nil {
		cfg.JobRetention = d
	}
	if d, err := time.ParseDuration(cfg.EventRetentionStr); err == nil {
		cfg.EventRetention = d
	}
	if d, err := time.ParseDuration(cfg.DeliveryRetentionStr); err == nil {
		cfg.DeliveryRetention = d
	}
	if d, err := time.ParseDuration(cfg.CircuitBreakerCooldownStr); err == nil {
		cfg.CircuitBreakerCooldown = d
	}
	if d, err := time.ParseDuration(cfg.HTTPShutdownTimeoutStr); err == nil {
		cfg.HTTPShutdownTimeout = d
	}
	if d, err := time.ParseDuration(cfg.DBConnMaxLifetimeStr); err == nil {
		cfg.DBConnMaxLifetime = d
	}
	if d, err := time.ParseDuration(cfg.DBConnMaxIdleTimeStr); err == nil {
		cfg.DBConnMaxIdleTime = d
	}
	if d, err := time.ParseDuration(cfg.LeaderRetryIntervalStr); err == nil {
		cfg.LeaderRetryInterval = d
	}
	if d, err := time.ParseDuration(cfg.LeaderHeartbeatIntervalStr); err == nil {
		cfg.LeaderHeartbeatInterval = d
	}

	return cfg
}

// parseInt parses a string as an integer.
func parseInt(s string) (int, error) {
	var n int
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, os.ErrInvalid
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}

// MaskedJSON returns the configuration as JSON with secrets masked.
func (c Config) MaskedJSON() ([]byte, error) {
	masked := struct {
		DatabaseURL             string `json:"database_url"`
		RedisAddr               string `json:"redis_addr,omitempty"`
		HTTPAddr                string `json:"http_addr"`
		StoreBackend            string `json:"store_backend"`
		SpoolDir                string `json:"spool_dir"`
		BatchSize               int    `json:"batch_size"`
		IngestWorkers           int    `json:"ingest_workers"`
		DispatchWorkers         int    `json:"dispatch_workers"`
		DeliveryMaxAttempts     int    `json:"delivery_max_attempts"`
		DeliveryTimeout         string `json:"delivery_timeout"`
		DeliveryBackoffBase     string `json:"delivery_backoff_base"`
		EnqueueMaxAttempts      int    `json:"enqueue_max_attempts"`
		LeaseTimeout            string `json:"lease_timeout"`
		ClaimTimeout            string `json:"claim_timeout"`
		ReconcileInterval       string `json:"reconcile_interval"`
		PurgeSchedule           string `json:"purge_schedule"`
		JobRetention            string `json:"job_retention"`
		EventRetention          string `json:"event_retention"`
		DeliveryRetention       string `json:"delivery_retention"`
		CircuitBreakerThreshold int    `json:"circuit_breaker_threshold"`
		CircuitBreakerCooldown  string `json:"circuit_breaker_cooldown"`
		MetricsEnabled          bool   `json:"metrics_enabled"`
		MetricsPort             int    `json:"metrics_port"`
		MetricsPath             string `json:"metrics_path"`
		HTTPShutdownTimeout     string `json:"http_shutdown_timeout"`
		DBMaxOpenConns          int    `json:"db_max_open_conns"`
		DBMaxIdleConns          int    `json:"db_max_idle_conns"`
		DBConnMaxLifetime       string `json:"db_conn_max_lifetime"`
		DBConnMaxIdleTime       string `json:"db_conn_max_idle_time"`
		LeaderLockKey           int64  `json:"leader_lock_key"`
		LeaderRetryInterval     string `json:"leader_retry_interval"`
		LeaderHeartbeatInterval string `json:"leader_heartbeat_interval"`
	}{
		DatabaseURL:             maskSecret(c.DatabaseURL),
		RedisAddr:               c.RedisAddr,
		HTTPAddr:                c.HTTPAddr,
		StoreBackend:            c.StoreBackend,
		SpoolDir:                c.SpoolDir,
		BatchSize:               c.BatchSize,
		IngestWorkers:           c.IngestWorkers,
		DispatchWorkers:         c.DispatchWorkers,
		DeliveryMaxAttempts:     c.DeliveryMaxAttempts,
		DeliveryTimeout:         c.DeliveryTimeoutStr,
		DeliveryBackoffBase:     c.DeliveryBackoffBaseStr,
		EnqueueMaxAttempts:      c.EnqueueMaxAttempts,
		LeaseTimeout:            c.LeaseTimeoutStr,
		ClaimTimeout:            c.ClaimTimeoutStr,
		ReconcileInterval:       c.ReconcileIntervalStr,
		PurgeSchedule:           c.PurgeSchedule,
		JobRetention:            c.JobRetentionStr,
		EventRetention:          c.EventRetentionStr,
		DeliveryRetention:       c.DeliveryRetentionStr,
		CircuitBreakerThreshold: c.CircuitBreakerThreshold,
		CircuitBreakerCooldown:  c.CircuitBreakerCooldownStr,
		MetricsEnabled:          c.MetricsEnabled,
		MetricsPort:             c.MetricsPort,
		MetricsPath:             c.MetricsPath,
		HTTPShutdownTimeout:     c.HTTPShutdownTimeoutStr,
		DBMaxOpenConns:          c.DBMaxOpenConns,
		DBMaxIdleConns:          c.DBMaxIdleConns,
		DBConnMaxLifetime:       c.DBConnMaxLifetimeStr,
		DBConnMaxIdleTime:       c.DBConnMaxIdleTimeStr,
		LeaderLockKey:           c.LeaderLockKey,
		LeaderRetryInterval:     c.LeaderRetryIntervalStr,
		LeaderHeartbeatInterval: c.LeaderHeartbeatIntervalStr,
	}
	return json.MarshalIndent(masked, "", "  ")
}

// maskSecret masks a secret value, preserving only the URI scheme if present.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if len(s) >= len(scheme) && s[:len(scheme)] == scheme {
			return scheme + "***"
		}
	}
	return "***"
}
