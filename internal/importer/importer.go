// Package importer runs queued import jobs: it streams each spooled catalog
// file through validation and the upsert engine, keeps the job's progress
// ledger current batch by batch, and enqueues one lifecycle event per created
// or updated product. One worker owns a job from claim to terminal status.
package importer

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jayesh55555/Product-Importer/internal/catalog"
	"github.com/jayesh55555/Product-Importer/internal/domain"
	"github.com/jayesh55555/Product-Importer/internal/rows"
	"github.com/jayesh55555/Product-Importer/internal/store"
)

const (
	defaultWorkers      = 2
	defaultBatchSize    = 1000
	defaultPollInterval = 2 * time.Second

	spoolReadBuffer = 64 * 1024

	// statusWriteTimeout bounds the independent context used for terminal
	// ledger writes during shutdown.
	statusWriteTimeout = 5 * time.Second
)

// Terminal reasons the importer writes to the ledger. Validation failures of
// the whole file carry the schema_mismatch prefix with the missing columns
// appended.
const (
	reasonCancelled      = "cancelled"
	reasonShutdown       = "interrupted by shutdown"
	schemaMismatchPrefix = "schema_mismatch"
)

// Ledger is the durable progress record for import jobs. Counters are
// monotonic and terminal statuses are final; implementations reject regressing
// updates with store.ErrTransitionDenied.
type Ledger interface {
	// ClaimQueuedJob hands the oldest claimable queued job to exactly one
	// worker. Returns store.ErrNoQueuedJob when the queue is empty.
	ClaimQueuedJob(ctx context.Context) (domain.ImportJob, error)
	MarkJobRunning(ctx context.Context, id uuid.UUID) error
	SetJobTotalRows(ctx context.Context, id uuid.UUID, total int64) error
	// RecordJobBatch adds one batch's deltas to the job atomically.
	RecordJobBatch(ctx context.Context, id uuid.UUID, processed, created, updated, rejected int64, samples []domain.RejectedRow) error
	MarkJobTerminal(ctx context.Context, id uuid.UUID, status domain.JobStatus, reason string) error
	JobCancelRequested(ctx context.Context, id uuid.UUID) (bool, error)
}

// Catalog applies validated batches, returning per-row outcomes.
type Catalog interface {
	Apply(ctx context.Context, batch []rows.Valid) (catalog.BatchResult, error)
}

// EventPublisher durably enqueues lifecycle events. A returned error means
// the event is not queued and the job must fail.
type EventPublisher interface {
	Publish(ctx context.Context, kind domain.EventKind, snapshot domain.ProductSnapshot, occurredAt time.Time) (int64, error)
}

type MetricsSink interface {
	ImportJobStarted()
	ImportJobFinished(status string, duration time.Duration)
	RowsProcessed(n int)
	RowsRejected(n int)
	RowsSuperseded(n int)
}

type Config struct {
	Workers      int
	BatchSize    int
	PollInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers < 1 {
		c.Workers = defaultWorkers
	}
	if c.BatchSize < 1 {
		c.BatchSize = defaultBatchSize
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	return c
}

type Importer struct {
	cfg       Config
	ledger    Ledger
	catalog   Catalog
	publisher EventPublisher
	metrics   MetricsSink     // optional, nil = disabled
	wake      <-chan struct{} // optional, nil = poll only
}

func New(cfg Config, ledger Ledger, cat Catalog, publisher EventPublisher) *Importer {
	return &Importer{
		cfg:       cfg.withDefaults(),
		ledger:    ledger,
		catalog:   cat,
		publisher: publisher,
	}
}

// WithMetrics attaches a metrics sink to the importer.
func (i *Importer) WithMetrics(sink MetricsSink) *Importer {
	i.metrics = sink
	return i
}

// WithWakeup attaches a channel that interrupts idle polling after a job is
// submitted.
func (i *Importer) WithWakeup(ch <-chan struct{}) *Importer {
	i.wake = ch
	return i
}

// Run drives the worker pool until the context is cancelled. A job in flight
// during shutdown is finished as failed with a shutdown reason; its counters
// up to the last committed batch stand.
func (i *Importer) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for w := 0; w < i.cfg.Workers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			i.runWorker(ctx, id)
		}(w)
	}
	wg.Wait()
	log.Printf("importer: stopped")
}

func (i *Importer) runWorker(ctx context.Context, id int) {
	for {
		if ctx.Err() != nil {
			return
		}

		job, err := i.ledger.ClaimQueuedJob(ctx)
		if err != nil {
			if !errors.Is(err, store.ErrNoQueuedJob) && ctx.Err() == nil {
				log.Printf("importer: worker=%d claim: %v", id, err)
			}
			i.idle(ctx)
			continue
		}

		i.ProcessJob(ctx, job)
	}
}

func (i *Importer) idle(ctx context.Context) {
	timer := time.NewTimer(i.cfg.PollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-i.wake:
	case <-timer.C:
	}
}

// ProcessJob runs one claimed job to a terminal status. Cancellation is
// honored between batches, never inside one, so a committed batch is always
// fully accounted.
func (i *Importer) ProcessJob(ctx context.Context, job domain.ImportJob) {
	start := time.Now()
	if i.metrics != nil {
		i.metrics.ImportJobStarted()
	}
	log.Printf("importer: job=%s claimed file=%s", job.ID, job.SpoolPath)

	// A cancel issued while the job sat in the queue wins before any work.
	if cancelled, err := i.ledger.JobCancelRequested(ctx, job.ID); err == nil && cancelled {
		i.finishJob(job, domain.JobStatusFailed, reasonCancelled, start)
		return
	}

	if err := i.ledger.MarkJobRunning(ctx, job.ID); err != nil {
		if errors.Is(err, store.ErrTransitionDenied) {
			log.Printf("importer: job=%s already terminal, skipping", job.ID)
			return
		}
		log.Printf("importer: job=%s mark running: %v", job.ID, err)
		return
	}

	f, err := os.Open(job.SpoolPath)
	if err != nil {
		i.finishJob(job, domain.JobStatusFailed, fmt.Sprintf("open upload: %v", err), start)
		return
	}
	defer f.Close()

	reader := csv.NewReader(bufio.NewReaderSize(f, spoolReadBuffer))
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	headerRecord, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			i.finishJob(job, domain.JobStatusFailed, schemaMismatchPrefix+": empty file", start)
			return
		}
		i.finishJob(job, domain.JobStatusFailed, fmt.Sprintf("read header: %v", err), start)
		return
	}

	header, err := rows.ParseHeader(headerRecord)
	if err != nil {
		i.finishJob(job, domain.JobStatusFailed, schemaMismatchPrefix+": "+err.Error(), start)
		return
	}

	var line int64
	sampleBudget := domain.RejectedSampleCap - len(job.RejectedSamples)

	for {
		if cancelled, err := i.ledger.JobCancelRequested(ctx, job.ID); err == nil && cancelled {
			log.Printf("importer: job=%s cancelled at row %d", job.ID, line)
			i.finishJob(job, domain.JobStatusFailed, reasonCancelled, start)
			return
		}
		if ctx.Err() != nil {
			i.finishJob(job, domain.JobStatusFailed, reasonShutdown, start)
			return
		}

		batch, rejections, readErr := i.readBatch(header, reader, &line)
		if readErr != nil && readErr != io.EOF {
			i.finishJob(job, domain.JobStatusFailed, fmt.Sprintf("read upload: %v", readErr), start)
			return
		}

		var result catalog.BatchResult
		if len(batch) > 0 {
			result, err = i.catalog.Apply(ctx, batch)
			if err != nil {
				reason := fmt.Sprintf("apply batch: %v", err)
				if errors.Is(err, context.Canceled) {
					reason = reasonShutdown
				}
				i.finishJob(job, domain.JobStatusFailed, reason, start)
				return
			}
		}

		var created, updated int64
		for _, r := range result.Results {
			switch r.Outcome {
			case catalog.OutcomeCreated:
				created++
			case catalog.OutcomeUpdated:
				updated++
			}
		}

		processed := int64(len(batch) + len(rejections))
		if processed > 0 {
			samples := rejections
			if len(samples) > sampleBudget {
				samples = samples[:sampleBudget]
			}
			sampleBudget -= len(samples)

			if err := i.ledger.RecordJobBatch(ctx, job.ID, processed, created, updated, int64(len(rejections)), toRejectedRows(samples)); err != nil {
				i.finishJob(job, domain.JobStatusFailed, fmt.Sprintf("record progress: %v", err), start)
				return
			}

			if i.metrics != nil {
				i.metrics.RowsProcessed(int(processed))
				i.metrics.RowsRejected(len(rejections))
				i.metrics.RowsSuperseded(result.Superseded)
			}
			if result.Superseded > 0 {
				log.Printf("importer: job=%s batch superseded %d duplicate rows", job.ID, result.Superseded)
			}
		}

		if err := i.publishBatchEvents(ctx, job.ID, result.Results); err != nil {
			i.finishJob(job, domain.JobStatusFailed, fmt.Sprintf("enqueue events: %v", err), start)
			return
		}

		if readErr == io.EOF {
			break
		}
	}

	if err := i.ledger.SetJobTotalRows(ctx, job.ID, line); err != nil {
		log.Printf("importer: job=%s set total rows: %v", job.ID, err)
	}
	i.finishJob(job, domain.JobStatusCompleted, "", start)
}

// readBatch consumes up to BatchSize data records, splitting them into
// validated rows and rejections. A malformed CSV record rejects that row and
// keeps streaming. Returns io.EOF alongside the final partial batch.
func (i *Importer) readBatch(header rows.Header, reader *csv.Reader, line *int64) ([]rows.Valid, []rows.Rejection, error) {
	var valids []rows.Valid
	var rejections []rows.Rejection

	for len(valids)+len(rejections) < i.cfg.BatchSize {
		record, err := reader.Read()
		if err == io.EOF {
			return valids, rejections, io.EOF
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				*line++
				rejections = append(rejections, rows.Rejection{Line: *line, Reason: rows.ReasonMalformedRow})
				continue
			}
			return valids, rejections, err
		}

		*line++
		v, rej := header.Normalize(*line, record)
		if rej != nil {
			rejections = append(rejections, *rej)
			continue
		}
		valids = append(valids, v)
	}
	return valids, rejections, nil
}

// publishBatchEvents enqueues one lifecycle event per created or updated row.
// The first enqueue failure aborts; a committed row without its event queued
// is exactly what the publisher's retry budget exists to prevent.
func (i *Importer) publishBatchEvents(ctx context.Context, jobID uuid.UUID, results []catalog.RowResult) error {
	for _, r := range results {
		var kind domain.EventKind
		switch r.Outcome {
		case catalog.OutcomeCreated:
			kind = domain.EventProductCreated
		case catalog.OutcomeUpdated:
			kind = domain.EventProductUpdated
		default:
			continue
		}

		if _, err := i.publisher.Publish(ctx, kind, r.Product.Snapshot(), r.Product.UpdatedAt); err != nil {
			log.Printf("importer: job=%s publish %s for sku=%s: %v", jobID, kind, r.Product.SKU, err)
			return err
		}
	}
	return nil
}

// finishJob settles the job and removes its spool file. The ledger write uses
// a short independent context so the terminal status lands during shutdown.
func (i *Importer) finishJob(job domain.ImportJob, status domain.JobStatus, reason string, startedAt time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), statusWriteTimeout)
	defer cancel()

	if err := i.ledger.MarkJobTerminal(ctx, job.ID, status, reason); err != nil {
		if errors.Is(err, store.ErrTransitionDenied) {
			log.Printf("importer: job=%s already terminal", job.ID)
		} else {
			log.Printf("importer: job=%s mark %s: %v", job.ID, status, err)
		}
	}

	if job.SpoolPath != "" {
		if err := os.Remove(job.SpoolPath); err != nil && !os.IsNotExist(err) {
			log.Printf("importer: job=%s remove upload: %v", job.ID, err)
		}
	}

	if i.metrics != nil {
		i.metrics.ImportJobFinished(string(status), time.Since(startedAt))
	}
	if reason != "" {
		log.Printf("importer: job=%s finished status=%s reason=%q in %s", job.ID, status, reason, time.Since(startedAt).Round(time.Millisecond))
	} else {
		log.Printf("importer: job=%s finished status=%s in %s", job.ID, status, time.Since(startedAt).Round(time.Millisecond))
	}
}

func toRejectedRows(rejections []rows.Rejection) []domain.RejectedRow {
	if len(rejections) == 0 {
		return nil
	}
	out := make([]domain.RejectedRow, len(rejections))
	for i, r := range rejections {
		out[i] = domain.RejectedRow{Line: r.Line, Reason: r.Reason}
	}
	return out
}
