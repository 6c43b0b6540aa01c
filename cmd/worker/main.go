// Command worker runs a standalone webhook delivery pool against the shared
// Postgres event queue, so delivery capacity can scale independently of the
// API and import service. Leasing keeps concurrent workers from processing
// the same event twice.
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
	"github.com/jayesh55555/Product-Importer/internal/circuitbreaker"
	"github.com/jayesh55555/Product-Importer/internal/config"
	"github.com/jayesh55555/Product-Importer/internal/dispatcher"
	"github.com/jayesh55555/Product-Importer/internal/metrics"
	"github.com/jayesh55555/Product-Importer/internal/store/postgres"

	_ "github.com/lib/pq"
)

const (
	exitSuccess       = 0
	exitRuntimeError  = 1
	exitInvalidConfig = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.Load()

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return exitInvalidConfig
	}

	// The worker exists to share the event queue across processes; the
	// memory backend cannot be shared.
	if cfg.StoreBackend == "memory" {
		fmt.Fprintln(os.Stderr, "STORE_BACKEND=memory is process-local; the delivery worker requires the postgres queue")
		return exitInvalidConfig
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
		return exitRuntimeError
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	db.SetConnMaxLifetime(cfg.DBConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.DBConnMaxIdleTime)

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

	st := postgres.New(db)

	var metricsSink *metrics.PrometheusSink
	var metricsServer *http.Server

	if cfg.MetricsEnabled {
		metricsSink = metrics.NewPrometheusSink(prometheus.DefaultRegisterer)

		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.MetricsPath, promhttp.Handler())
		metricsServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.MetricsPort),
			Handler: metricsMux,
		}
		go func() {
			log.Printf("worker: metrics server listening on :%d", cfg.MetricsPort)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("worker: metrics server error: %v", err)
			}
		}()
	}

	disp := dispatcher.New(
		dispatcher.Config{
			Workers:     cfg.DispatchWorkers,
			MaxAttempts: cfg.DeliveryMaxAttempts,
			Timeout:     cfg.DeliveryTimeout,
		},
		st, dispatcher.NewHTTPWebhookSender(),
	).WithBackoff(deliveryBackoff(cfg.DeliveryBackoffBase, cfg.DeliveryMaxAttempts))
	if metricsSink != nil {
		disp = disp.WithMetrics(metricsSink)
	}

	if cfg.CircuitBreakerThreshold > 0 {
		disp = disp.WithBreaker(circuitbreaker.New(cfg.CircuitBreakerThreshold, cfg.CircuitBreakerCooldown))
	}

	// Wire analytics if Redis is configured
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
		})
		sink := analytics.NewRedisSink(redisClient, time.Hour, 7*24*time.Hour)
		disp = disp.WithAnalytics(sink)
		log.Printf("worker: analytics enabled (redis=%s)", cfg.RedisAddr)
	} else {
		log.Println("worker: REDIS_ADDR not set; analytics disabled")
	}

	dispatcherCtx, cancelDispatcher := context.WithCancel(context.Background())
	var dispatcherWg sync.WaitGroup

	dispatcherWg.Add(1)
	go func() {
		defer dispatcherWg.Done()
		disp.Run(dispatcherCtx)
	}()

	log.Printf("worker: started (dispatch_workers=%d, max_attempts=%d, timeout=%s)",
		cfg.DispatchWorkers, cfg.DeliveryMaxAttempts, cfg.DeliveryTimeout)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	received := <-sig

	log.Printf("worker: received signal %v, shutting down", received)

	// In-flight events are released back to pending; another worker (or this
	// one after restart) picks them up.
	log.Println("worker: stopping dispatcher...")
	cancelDispatcher()
	dispatcherWg.Wait()
	log.Println("worker: dispatcher stopped")

	if metricsServer != nil {
		metricsShutdownCtx, metricsShutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
		defer metricsShutdownCancel()
		if err := metricsServer.Shutdown(metricsShutdownCtx); err != nil {
			log.Printf("worker: metrics server shutdown error: %v", err)
		}
	}

	log.Println("worker: stopped")
	return exitSuccess
}

// deliveryBackoff mirrors the serve binary's schedule: no pause before the
// first attempt, then the base doubling per retry.
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
