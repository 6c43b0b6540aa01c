package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/jayesh55555/Product-Importer/internal/analytics"
	"github.com/jayesh55555/Product-Importer/internal/api"
	"github.com/jayesh55555/Product-Importer/internal/catalog"
	"github.com/jayesh55555/Product-Importer/internal/circuitbreaker"
	"github.com/jayesh55555/Product-Importer/internal/config"
	"github.com/jayesh55555/Product-Importer/internal/dispatcher"
	"github.com/jayesh55555/Product-Importer/internal/importer"
	"github.com/jayesh55555/Product-Importer/internal/leaderelection"
	"github.com/jayesh55555/Product-Importer/internal/metrics"
	"github.com/jayesh55555/Product-Importer/internal/outbox"
	"github.com/jayesh55555/Product-Importer/internal/reconciler"
	"github.com/jayesh55555/Product-Importer/internal/store/memory"
	"github.com/jayesh55555/Product-Importer/internal/store/postgres"
	"github.com/jayesh55555/Product-Importer/internal/transport/channel"

	_ "github.com/lib/pq"
)

// storeBackend is the full storage surface the service wires together. Both
// the postgres and the memory store satisfy it.
type storeBackend interface {
	api.Store
	importer.Ledger
	catalog.Store
	outbox.Queue
	dispatcher.Store
	reconciler.Store
	Ping(ctx context.Context) error
}

// Build-time variables set via -ldflags
var (
	version = "dev"
	commit  = "unknown"
)

const (
	exitSuccess       = 0
	exitRuntimeError  = 1
	exitInvalidConfig = 2
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(exitRuntimeError)
	}

	cmd := os.Args[1]

	switch cmd {
	case "serve":
		os.Exit(runServe())
	case "validate":
		os.Exit(runValidate())
	case "config":
		os.Exit(runConfig())
	case "version":
		os.Exit(runVersion())
	case "--help", "-h", "help":
		printUsage()
		os.Exit(exitSuccess)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(exitRuntimeError)
	}
}

func printUsage() {
	fmt.Println(`product-importer - bulk product catalog importer with webhook delivery

Usage:
  product-importer <command>

Commands:
  serve      Start the API, import workers, and webhook dispatcher
  validate   Validate configuration (no connections made)
  config     Print effective configuration as JSON (secrets masked)
  version    Print version information

Environment Variables:
  DATABASE_URL              PostgreSQL connection string (required unless STORE_BACKEND=memory)
  STORE_BACKEND             Storage backend: "postgres" or "memory" (default: "postgres")
  SPOOL_DIR                 Directory for uploaded CSV files (default: OS temp dir)
  HTTP_ADDR                 HTTP server address (default: ":8080")
  REDIS_ADDR                Redis address for delivery analytics (optional)

  BATCH_SIZE                Rows per import batch (default: "1000")
  INGEST_WORKERS            Concurrent import jobs (default: "2")
  DISPATCH_WORKERS          Concurrent webhook deliveries (default: "4")

  DELIVERY_MAX_ATTEMPTS     Delivery attempts per subscriber (default: "5")
  DELIVERY_TIMEOUT          Per-attempt HTTP timeout (default: "10s")
  DELIVERY_BACKOFF_BASE     First retry delay, doubled per attempt (default: "1s")
  ENQUEUE_MAX_ATTEMPTS      Event enqueue attempts before the job fails (default: "3")
  CIRCUIT_BREAKER_THRESHOLD Consecutive failures before a subscriber is paused;
                            "0" disables the breaker (default: "5")
  CIRCUIT_BREAKER_COOLDOWN  Pause length for a tripped subscriber (default: "2m")

  LEASE_TIMEOUT             Event lease visibility timeout (default: "5m")
  CLAIM_TIMEOUT             Job claim visibility timeout (default: "5m")
  RECONCILE_INTERVAL        Stale lease repair interval (default: "1m")
  PURGE_SCHEDULE            Retention purge cron expression (default: "0 */6 * * *")
  JOB_RETENTION             Terminal import job retention (default: "168h")
  EVENT_RETENTION           Terminal event retention (default: "72h")
  DELIVERY_RETENTION        Pending event delivery ceiling (default: "24h")

  DB_MAX_OPEN_CONNS         Max open database connections (default: "25")
  DB_MAX_IDLE_CONNS         Max idle database connections (default: "5")
  DB_CONN_MAX_LIFETIME      Max connection lifetime (default: "30m")
  DB_CONN_MAX_IDLE_TIME     Max connection idle time (default: "5m")

  HTTP_SHUTDOWN_TIMEOUT     Graceful HTTP shutdown timeout (default: "10s")

  METRICS_ENABLED           Enable Prometheus metrics (default: "false")
  METRICS_PATH              Metrics endpoint path (default: "/metrics")
  METRICS_PORT              Metrics server port (default: "9090")

  LEADER_LOCK_KEY           Advisory lock key for reconciler election (default: "728379")
  LEADER_RETRY_INTERVAL     Follower acquisition retry interval (default: "5s")
  LEADER_HEARTBEAT_INTERVAL Leader connection heartbeat interval (default: "2s")`)
}

// logConfigWarnings flags configuration combinations that work but degrade
// the service's guarantees.
func logConfigWarnings(cfg *config.Config) {
	if cfg.StoreBackend == "memory" {
		log.Println("product-importer: WARNING [P0]: STORE_BACKEND=memory keeps jobs and queued events in process memory; a restart loses every queued event and orphans spooled uploads")
		log.Println("product-importer: INFO: STORE_BACKEND=memory runs the reconciler in-process without leader election")
	}
	if cfg.CircuitBreakerThreshold == 0 {
		log.Println("product-importer: WARNING [P0]: CIRCUIT_BREAKER_THRESHOLD=0 disables the circuit breaker; a dead endpoint burns the full retry budget on every event")
	}
	if !cfg.MetricsEnabled {
		log.Println("product-importer: WARNING [P1]: METRICS_ENABLED=false leaves queue depth and delivery outcomes unobservable")
	}
	if cfg.DispatchWorkers == 1 {
		log.Println("product-importer: INFO: DISPATCH_WORKERS=1 delivers one event at a time; one slow endpoint delays every subscriber")
	}
}

// probeClaimedAtColumn verifies import_jobs.claimed_at exists. EnsureSchema
// only creates missing tables, so an import_jobs table created by an older
// build could lack the claim bookkeeping the worker pool and the reconciler
// depend on. Returns sql.ErrNoRows when the column is missing.
func probeClaimedAtColumn(db *sql.DB) error {
	var one int
	return db.QueryRow(
		`SELECT 1 FROM information_schema.columns
		 WHERE table_name = 'import_jobs' AND column_name = 'claimed_at'`,
	).Scan(&one)
}

func runServe() int {
	cfg := config.Load()

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return exitInvalidConfig
	}

	logConfigWarnings(&cfg)

	if err := os.MkdirAll(cfg.SpoolDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create spool dir %s: %v\n", cfg.SpoolDir, err)
		return exitRuntimeError
	}

	var (
		st storeBackend
		db *sql.DB
	)

	switch cfg.StoreBackend {
	case "memory":
		st = memory.New()
		log.Println("product-importer: using in-memory store")
	default:
		var err error
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
			return exitRuntimeError
		}
		defer db.Close()

		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
		db.SetMaxIdleConns(cfg.DBMaxIdleConns)
		db.SetConnMaxLifetime(cfg.DBConnMaxLifetime)
		db.SetConnMaxIdleTime(cfg.DBConnMaxIdleTime)

		log.Printf("product-importer: db pool configured (max_open=%d, max_idle=%d, max_lifetime=%s, max_idle_time=%s)",
			cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime, cfg.DBConnMaxIdleTime)

		if err := db.Ping(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to connect to database: %v\n", err)
			return exitRuntimeError
		}

		schemaCtx, cancelSchema := context.WithTimeout(context.Background(), 30*time.Second)
		err = postgres.EnsureSchema(schemaCtx, db)
		cancelSchema()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to ensure schema: %v\n", err)
			return exitRuntimeError
		}

		if err := probeClaimedAtColumn(db); err != nil {
			if err == sql.ErrNoRows {
				fmt.Fprintln(os.Stderr, "import_jobs.claimed_at is missing; the table predates claim tracking and must be migrated")
				return exitInvalidConfig
			}
			fmt.Fprintf(os.Stderr, "schema probe failed: %v\n", err)
			return exitRuntimeError
		}

		st = postgres.New(db)
	}

	// Initialize metrics sink (optional)
	var metricsSink *metrics.PrometheusSink
	var metricsServer *http.Server

	if cfg.MetricsEnabled {
		metricsSink = metrics.NewPrometheusSink(prometheus.DefaultRegisterer)
		log.Printf("product-importer: metrics enabled (port=%d, path=%s)", cfg.MetricsPort, cfg.MetricsPath)

		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.MetricsPath, promhttp.Handler())
		metricsServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.MetricsPort),
			Handler: metricsMux,
		}
		go func() {
			log.Printf("product-importer: metrics server listening on :%d", cfg.MetricsPort)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("product-importer: metrics server error: %v", err)
			}
		}()
	} else {
		log.Println("product-importer: METRICS_ENABLED not set; metrics disabled")
	}

	// One wakeup per pool: uploads nudge the importer, enqueues nudge the
	// dispatcher. Polling covers whatever a nudge misses.
	importWake := channel.NewWakeup()
	dispatchWake := channel.NewWakeup()

	publisher := outbox.New(st).
		WithNudger(dispatchWake).
		WithMaxAttempts(cfg.EnqueueMaxAttempts)
	if metricsSink != nil {
		publisher = publisher.WithMetrics(metricsSink)
	}

	engine := catalog.New(st)
	if metricsSink != nil {
		engine = engine.WithMetrics(metricsSink)
	}

	imp := importer.New(
		importer.Config{Workers: cfg.IngestWorkers, BatchSize: cfg.BatchSize},
		st, engine, publisher,
	).WithWakeup(importWake.C())
	if metricsSink != nil {
		imp = imp.WithMetrics(metricsSink)
	}

	sender := dispatcher.NewHTTPWebhookSender()

	disp := dispatcher.New(
		dispatcher.Config{
			Workers:     cfg.DispatchWorkers,
			MaxAttempts: cfg.DeliveryMaxAttempts,
			Timeout:     cfg.DeliveryTimeout,
		},
		st, sender,
	).
		WithBackoff(deliveryBackoff(cfg.DeliveryBackoffBase, cfg.DeliveryMaxAttempts)).
		WithWakeup(dispatchWake.C())
	if metricsSink != nil {
		disp = disp.WithMetrics(metricsSink)
	}

	if cfg.CircuitBreakerThreshold > 0 {
		disp = disp.WithBreaker(circuitbreaker.New(cfg.CircuitBreakerThreshold, cfg.CircuitBreakerCooldown))
		log.Printf("product-importer: circuit breaker enabled (threshold=%d, cooldown=%s)",
			cfg.CircuitBreakerThreshold, cfg.CircuitBreakerCooldown)
	}

	// Wire analytics if Redis is configured
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
		})
		sink := analytics.NewRedisSink(redisClient, time.Hour, 7*24*time.Hour)
		disp = disp.WithAnalytics(sink)
		log.Printf("product-importer: analytics enabled (redis=%s)", cfg.RedisAddr)
	} else {
		log.Println("product-importer: REDIS_ADDR not set; analytics disabled")
	}

	recon, err := reconciler.New(
		reconciler.Config{
			Interval:          cfg.ReconcileInterval,
			LeaseTimeout:      cfg.LeaseTimeout,
			ClaimTimeout:      cfg.ClaimTimeout,
			PurgeSchedule:     cfg.PurgeSchedule,
			JobRetention:      cfg.JobRetention,
			EventRetention:    cfg.EventRetention,
			DeliveryRetention: cfg.DeliveryRetention,
		},
		st,
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build reconciler: %v\n", err)
		return exitInvalidConfig
	}
	recon = recon.WithNudger(dispatchWake)
	if metricsSink != nil {
		recon = recon.WithMetrics(metricsSink)
	}

	tester := dispatcher.NewTester(sender, cfg.DeliveryTimeout)

	apiHandler := api.NewHandler(st, publisher, cfg.SpoolDir).
		WithImportNudger(importWake).
		WithTester(tester).
		WithHealthChecker(st)

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: apiHandler.Routes(),
	}

	go func() {
		log.Printf("product-importer: http server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("product-importer: http server error: %v", err)
		}
	}()

	// Separate contexts per pool so shutdown can stop intake, then ingestion,
	// then reconciliation, then delivery.
	importerCtx, cancelImporter := context.WithCancel(context.Background())
	dispatcherCtx, cancelDispatcher := context.WithCancel(context.Background())
	electionCtx, cancelElection := context.WithCancel(context.Background())

	var importerWg sync.WaitGroup
	var dispatcherWg sync.WaitGroup
	var electionWg sync.WaitGroup
	var reconcilerWg sync.WaitGroup

	importerWg.Add(1)
	go func() {
		defer importerWg.Done()
		imp.Run(importerCtx)
	}()

	dispatcherWg.Add(1)
	go func() {
		defer dispatcherWg.Done()
		disp.Run(dispatcherCtx)
	}()

	// The reconciler rewrites shared queue state, so exactly one instance may
	// run it. Postgres backends elect a leader through an advisory lock; the
	// memory backend is single-process and just runs it.
	if db != nil {
		elector := leaderelection.New(
			leaderelection.Config{
				LockKey:           cfg.LeaderLockKey,
				RetryInterval:     cfg.LeaderRetryInterval,
				HeartbeatInterval: cfg.LeaderHeartbeatInterval,
			},
			db,
			func(leaderCtx context.Context) {
				reconcilerWg.Add(1)
				defer reconcilerWg.Done()
				recon.Run(leaderCtx)
			},
			func() {
				reconcilerWg.Wait()
			},
		)
		if metricsSink != nil {
			elector = elector.WithMetrics(metricsSink)
		}

		electionWg.Add(1)
		go func() {
			defer electionWg.Done()
			elector.Run(electionCtx)
		}()
	} else {
		reconcilerWg.Add(1)
		go func() {
			defer reconcilerWg.Done()
			recon.Run(electionCtx)
		}()
	}

	log.Printf("product-importer: started (backend=%s, http=%s, ingest_workers=%d, dispatch_workers=%d, batch=%d)",
		cfg.StoreBackend, cfg.HTTPAddr, cfg.IngestWorkers, cfg.DispatchWorkers, cfg.BatchSize)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	received := <-sig

	log.Printf("product-importer: received signal %v, shutting down", received)

	// Phase 1: Stop the API server (no new uploads or mutations)
	log.Println("product-importer: stopping http server...")
	httpShutdownCtx, httpShutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer httpShutdownCancel()
	if err := httpServer.Shutdown(httpShutdownCtx); err != nil {
		log.Printf("product-importer: http server shutdown error: %v", err)
	}
	log.Println("product-importer: http server stopped")

	// Phase 2: Stop the import pool (in-flight jobs settle as failed with
	// their counters preserved)
	log.Println("product-importer: stopping import workers...")
	cancelImporter()
	importerWg.Wait()
	log.Println("product-importer: import workers stopped")

	// Phase 3: Stop the reconciler (no more requeues into the event queue)
	log.Println("product-importer: stopping reconciler...")
	cancelElection()
	electionWg.Wait()
	reconcilerWg.Wait()
	log.Println("product-importer: reconciler stopped")

	// Phase 4: Stop the dispatcher (in-flight events are released back to
	// pending for the next run)
	log.Println("product-importer: stopping dispatcher...")
	cancelDispatcher()
	dispatcherWg.Wait()
	log.Println("product-importer: dispatcher stopped")

	// Phase 5: Stop metrics server if running (with same timeout)
	if metricsServer != nil {
		log.Println("product-importer: stopping metrics server...")
		metricsShutdownCtx, metricsShutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
		defer metricsShutdownCancel()
		if err := metricsServer.Shutdown(metricsShutdownCtx); err != nil {
			log.Printf("product-importer: metrics server shutdown error: %v", err)
		}
		log.Println("product-importer: metrics server stopped")
	}

	log.Println("product-importer: stopped")
	return exitSuccess
}

// deliveryBackoff expands the configured base delay into the per-attempt
// schedule: no pause before the first attempt, then the base doubling per
// retry. The dispatcher jitters each entry.
func deliveryBackoff(base time.Duration, maxAttempts int) []time.Duration {
	if base <= 0 || maxAttempts < 2 {
		return nil
	}
	schedule := make([]time.Duration, 0, maxAttempts)
	schedule = append(schedule, 0)
	d := base
	for i := 1; i < maxAttempts; i++ {
		schedule = append(schedule, d)
		d *= 2
	}
	return schedule
}

func runValidate() int {
	cfg := config.Load()

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitInvalidConfig
	}

	fmt.Println("configuration valid")
	return exitSuccess
}

func runConfig() int {
	cfg := config.Load()

	data, err := cfg.MaskedJSON()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal config: %v\n", err)
		return exitRuntimeError
	}

	fmt.Println(string(data))
	return exitSuccess
}

func runVersion() int {
	fmt.Printf("product-importer version %s (commit: %s)\n", version, commit)
	return exitSuccess
}
