// Package postgres is the production store. All SQL lives in queries.go;
// claim and lease queries rely on FOR UPDATE SKIP LOCKED so worker pools
// never block each other, and terminal-state guards live in the WHERE clause
// of the UPDATE so replays cannot regress a settled record.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/jayesh55555/Product-Importer/internal/api"
	"github.com/jayesh55555/Product-Importer/internal/catalog"
	"github.com/jayesh55555/Product-Importer/internal/dispatcher"
	"github.com/jayesh55555/Product-Importer/internal/domain"
	"github.com/jayesh55555/Product-Importer/internal/importer"
	"github.com/jayesh55555/Product-Importer/internal/outbox"
	"github.com/jayesh55555/Product-Importer/internal/reconciler"
	"github.com/jayesh55555/Product-Importer/internal/rows"
	"github.com/jayesh55555/Product-Importer/internal/store"
)

// Store implements every storage interface of the service on PostgreSQL.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL store with the given database connection.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// classifyError maps driver errors onto the shared sentinels so callers can
// match with errors.Is.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return fmt.Errorf("%s: %w", pqErr.Message, store.ErrDuplicateKey)
		case "40001", "40P01":
			return fmt.Errorf("%s: %w", pqErr.Message, store.ErrConflict)
		}
	}
	return err
}

// classifyBatchError is classifyError for the upsert transaction, where a
// unique violation means a concurrent batch raced this one and the whole
// batch can be retried.
func classifyBatchError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505", "40001", "40P01":
			return fmt.Errorf("%s: %w", pqErr.Message, store.ErrConflict)
		}
	}
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

// --- products ---

func scanProduct(r rowScanner) (domain.Product, error) {
	var p domain.Product
	err := r.Scan(&p.ID, &p.SKU, &p.NormalizedSKU, &p.Name, &p.Description, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// ApplyBatch resolves pre-deduplicated rows inside one transaction. An
// identical row matches zero rows in the upsert and is read back as a no_op.
func (s *Store) ApplyBatch(ctx context.Context, batch []rows.Valid) ([]catalog.RowResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classifyBatchError(err)
	}
	defer tx.Rollback()

	results := make([]catalog.RowResult, 0, len(batch))
	for _, row := range batch {
		var p domain.Product
		var inserted bool
		err := tx.QueryRowContext(ctx, queryUpsertProduct,
			row.SKU, row.NormalizedSKU, row.Name, row.Description, row.Active,
		).Scan(&p.ID, &p.SKU, &p.NormalizedSKU, &p.Name, &p.Description, &p.Active, &p.CreatedAt, &p.UpdatedAt, &inserted)

		switch {
		case errors.Is(err, sql.ErrNoRows):
			p, err = scanProduct(tx.QueryRowContext(ctx, queryGetProductByKey, row.NormalizedSKU))
			if err != nil {
				return nil, classifyBatchError(err)
			}
			results = append(results, catalog.RowResult{Outcome: catalog.OutcomeNoOp, Product: p})
		case err != nil:
			return nil, classifyBatchError(err)
		case inserted:
			results = append(results, catalog.RowResult{Outcome: catalog.OutcomeCreated, Product: p})
		default:
			results = append(results, catalog.RowResult{Outcome: catalog.OutcomeUpdated, Product: p})
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, classifyBatchError(err)
	}
	return results, nil
}

// CreateProduct inserts a single product.
// Returns store.ErrDuplicateKey when the case-folded SKU is already taken.
func (s *Store) CreateProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	p.SKU = strings.TrimSpace(p.SKU)
	p.NormalizedSKU = rows.NormalizeKey(p.SKU)

	err := s.db.QueryRowContext(ctx, queryInsertProduct,
		p.SKU, p.NormalizedSKU, p.Name, p.Description, p.Active,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return domain.Product{}, classifyError(err)
	}
	return p, nil
}

func (s *Store) GetProduct(ctx context.Context, id int64) (domain.Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx, queryGetProduct, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Product{}, err
	}
	return p, nil
}

// ListProducts returns the filtered page newest first plus the total match
// count before paging.
func (s *Store) ListProducts(ctx context.Context, f store.ProductFilter) ([]domain.Product, int, error) {
	var active sql.NullBool
	if f.Active != nil {
		active = sql.NullBool{Bool: *f.Active, Valid: true}
	}
	var limit sql.NullInt64
	if f.Limit > 0 {
		limit = sql.NullInt64{Int64: int64(f.Limit), Valid: true}
	}

	dbRows, err := s.db.QueryContext(ctx, queryListProducts,
		f.SKU, f.Name, f.Description, active, limit, f.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer dbRows.Close()

	var result []domain.Product
	for dbRows.Next() {
		p, err := scanProduct(dbRows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, p)
	}
	if err := dbRows.Err(); err != nil {
		return nil, 0, err
	}

	var total int
	err = s.db.QueryRowContext(ctx, queryCountProducts,
		f.SKU, f.Name, f.Description, active).Scan(&total)
	if err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

// UpdateProduct overwrites the mutable fields. The returned bool reports
// whether anything differed; the SKU never changes.
func (s *Store) UpdateProduct(ctx context.Context, id int64, name, description string, active bool) (domain.Product, bool, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx, queryUpdateProduct, id, name, description, active))
	if err == nil {
		return p, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, false, classifyError(err)
	}

	// Zero rows: either the product does not exist or nothing differed.
	p, err = scanProduct(s.db.QueryRowContext(ctx, queryGetProduct, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, false, store.ErrNotFound
	}
	if err != nil {
		return domain.Product{}, false, err
	}
	return p, false, nil
}

// DeleteProduct removes the product and returns its final state for the
// deletion event.
func (s *Store) DeleteProduct(ctx context.Context, id int64) (domain.Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx, queryDeleteProduct, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Product{}, err
	}
	return p, nil
}

// DeleteAllProducts removes every product and returns the removed records in
// id order.
func (s *Store) DeleteAllProducts(ctx context.Context) ([]domain.Product, error) {
	dbRows, err := s.db.QueryContext(ctx, queryDeleteAllProducts)
	if err != nil {
		return nil, err
	}
	defer dbRows.Close()

	var removed []domain.Product
	for dbRows.Next() {
		p, err := scanProduct(dbRows)
		if err != nil {
			return nil, err
		}
		removed = append(removed, p)
	}
	if err := dbRows.Err(); err != nil {
		return nil, err
	}
	return removed, nil
}

// --- import jobs ---

func scanImportJob(r rowScanner) (domain.ImportJob, error) {
	var job domain.ImportJob
	var status string
	var totalRows sql.NullInt64
	var samples []byte
	var claimedAt, startedAt, finishedAt sql.NullTime

	err := r.Scan(&job.ID, &status, &job.SpoolPath, &job.Reason, &totalRows,
		&job.ProcessedRows, &job.CreatedCount, &job.UpdatedCount, &job.RejectedCount,
		&samples, &job.CancelRequested, &claimedAt, &startedAt, &finishedAt, &job.CreatedAt)
	if err != nil {
		return domain.ImportJob{}, err
	}

	job.Status = domain.JobStatus(status)
	if totalRows.Valid {
		total := totalRows.Int64
		job.TotalRows = &total
	}
	job.ClaimedAt = nullTimePtr(claimedAt)
	job.StartedAt = nullTimePtr(startedAt)
	job.FinishedAt = nullTimePtr(finishedAt)
	if len(samples) > 0 {
		if err := json.Unmarshal(samples, &job.RejectedSamples); err != nil {
			return domain.ImportJob{}, fmt.Errorf("decode rejected samples: %w", err)
		}
	}
	return job, nil
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// CreateJob inserts a queued job. A zero ID is assigned.
func (s *Store) CreateJob(ctx context.Context, job domain.ImportJob) (domain.ImportJob, error) {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	err := s.db.QueryRowContext(ctx, queryInsertJob, job.ID, job.SpoolPath).Scan(&job.CreatedAt)
	if err != nil {
		return domain.ImportJob{}, classifyError(err)
	}
	job.Status = domain.JobStatusQueued
	return job, nil
}

func (s *Store) GetImportJob(ctx context.Context, id uuid.UUID) (domain.ImportJob, error) {
	job, err := scanImportJob(s.db.QueryRowContext(ctx, queryGetJob, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ImportJob{}, store.ErrNotFound
	}
	if err != nil {
		return domain.ImportJob{}, err
	}
	return job, nil
}

// ClaimQueuedJob hands the oldest unclaimed queued job to exactly one worker.
// Returns store.ErrNoQueuedJob when nothing is claimable.
func (s *Store) ClaimQueuedJob(ctx context.Context) (domain.ImportJob, error) {
	job, err := scanImportJob(s.db.QueryRowContext(ctx, queryClaimJob))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ImportJob{}, store.ErrNoQueuedJob
	}
	if err != nil {
		return domain.ImportJob{}, err
	}
	return job, nil
}

// MarkJobRunning moves a queued job to running. Marking an already running
// job is a no-op; a terminal job returns store.ErrTransitionDenied.
func (s *Store) MarkJobRunning(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, queryMarkJobRunning, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	var status string
	err = s.db.QueryRowContext(ctx, queryGetJobStatus, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	if err != nil {
		return err
	}
	if domain.JobStatus(status) == domain.JobStatusRunning {
		return nil
	}
	return store.ErrTransitionDenied
}

func (s *Store) SetJobTotalRows(ctx context.Context, id uuid.UUID, total int64) error {
	result, err := s.db.ExecContext(ctx, querySetJobTotalRows, id, total)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// RecordJobBatch adds one batch's deltas atomically; the increments happen
// server-side. Samples past the cap are counted but not kept.
func (s *Store) RecordJobBatch(ctx context.Context, id uuid.UUID, processed, created, updated, rejected int64, samples []domain.RejectedRow) error {
	if samples == nil {
		samples = []domain.RejectedRow{}
	}
	payload, err := json.Marshal(samples)
	if err != nil {
		return fmt.Errorf("encode rejected samples: %w", err)
	}

	result, err := s.db.ExecContext(ctx, queryRecordJobBatch,
		id, processed, created, updated, rejected, payload, domain.RejectedSampleCap)
	if err != nil {
		return classifyError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// MarkJobTerminal finishes the job.
// Returns store.ErrTransitionDenied when it already reached a terminal state.
func (s *Store) MarkJobTerminal(ctx context.Context, id uuid.UUID, status domain.JobStatus, reason string) error {
	result, err := s.db.ExecContext(ctx, queryMarkJobTerminal, id, string(status), reason)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	var current string
	err = s.db.QueryRowContext(ctx, queryGetJobStatus, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	if err != nil {
		return err
	}
	return store.ErrTransitionDenied
}

func (s *Store) JobCancelRequested(ctx context.Context, id uuid.UUID) (bool, error) {
	var flagged bool
	err := s.db.QueryRowContext(ctx, queryJobCancelRequested, id).Scan(&flagged)
	if errors.Is(err, sql.ErrNoRows) {
		return false, store.ErrNotFound
	}
	if err != nil {
		return false, err
	}
	return flagged, nil
}

// RequestJobCancel flags the job for cancellation.
// Returns store.ErrTransitionDenied when the job already finished.
func (s *Store) RequestJobCancel(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, queryRequestJobCancel, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	var current string
	err = s.db.QueryRowContext(ctx, queryGetJobStatus, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	if err != nil {
		return err
	}
	return store.ErrTransitionDenied
}

// RequeueStaleJobs clears claims older than the cutoff on jobs that never
// started, making them claimable again after a worker crash.
func (s *Store) RequeueStaleJobs(ctx context.Context, cutoff time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx, queryRequeueStaleJobs, cutoff)
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	return int(affected), err
}

// PurgeTerminalJobs deletes finished jobs whose terminal timestamp is older
// than the cutoff.
func (s *Store) PurgeTerminalJobs(ctx context.Context, cutoff time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx, queryPurgeTerminalJobs, cutoff)
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	return int(affected), err
}

// --- event queue ---

func scanEvent(r rowScanner) (domain.ProductEvent, error) {
	var ev domain.ProductEvent
	var kind, status string
	var payload []byte
	var leasedAt sql.NullTime

	err := r.Scan(&ev.Seq, &kind, &payload, &ev.OccurredAt, &status, &ev.Attempts,
		&ev.NextAttemptAt, &leasedAt, &ev.LastError, &ev.CreatedAt)
	if err != nil {
		return domain.ProductEvent{}, err
	}

	ev.Kind = domain.EventKind(kind)
	ev.Status = domain.EventStatus(status)
	ev.LeasedAt = nullTimePtr(leasedAt)
	if err := json.Unmarshal(payload, &ev.Product); err != nil {
		return domain.ProductEvent{}, fmt.Errorf("decode event payload: %w", err)
	}
	return ev, nil
}

// EnqueueEvent appends a pending event and returns its sequence number.
func (s *Store) EnqueueEvent(ctx context.Context, kind domain.EventKind, snapshot domain.ProductSnapshot, occurredAt time.Time) (int64, error) {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return 0, fmt.Errorf("encode event payload: %w", err)
	}

	var seq int64
	err = s.db.QueryRowContext(ctx, queryEnqueueEvent, string(kind), payload, occurredAt).Scan(&seq)
	if err != nil {
		return 0, classifyError(err)
	}
	return seq, nil
}

// LeaseNextEvent claims the oldest due pending event.
// Returns store.ErrNoPendingEvent when the queue is empty or nothing is due.
func (s *Store) LeaseNextEvent(ctx context.Context) (domain.ProductEvent, error) {
	ev, err := scanEvent(s.db.QueryRowContext(ctx, queryLeaseNextEvent))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ProductEvent{}, store.ErrNoPendingEvent
	}
	if err != nil {
		return domain.ProductEvent{}, err
	}
	return ev, nil
}

// ReleaseEvent returns an event to pending, due again at nextAttemptAt.
// Returns store.ErrTransitionDenied if the event already settled.
func (s *Store) ReleaseEvent(ctx context.Context, seq int64, nextAttemptAt time.Time, lastError string) error {
	result, err := s.db.ExecContext(ctx, queryReleaseEvent, seq, nextAttemptAt, lastError)
	if err != nil {
		return err
	}
	return s.eventGuard(ctx, seq, result)
}

func (s *Store) MarkEventDelivered(ctx context.Context, seq int64) error {
	return s.settleEvent(ctx, seq, domain.EventStatusDelivered, "")
}

func (s *Store) MarkEventFailed(ctx context.Context, seq int64, lastError string) error {
	return s.settleEvent(ctx, seq, domain.EventStatusFailed, lastError)
}

func (s *Store) settleEvent(ctx context.Context, seq int64, status domain.EventStatus, lastError string) error {
	result, err := s.db.ExecContext(ctx, querySettleEvent, seq, string(status), lastError)
	if err != nil {
		return err
	}
	return s.eventGuard(ctx, seq, result)
}

// eventGuard turns a zero-row event update into the right sentinel: the event
// is either gone or already terminal.
func (s *Store) eventGuard(ctx context.Context, seq int64, result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	var status string
	err = s.db.QueryRowContext(ctx, queryGetEventStatus, seq).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	if err != nil {
		return err
	}
	return store.ErrTransitionDenied
}

// GetEvent returns a snapshot of one queued event.
func (s *Store) GetEvent(ctx context.Context, seq int64) (domain.ProductEvent, error) {
	ev, err := scanEvent(s.db.QueryRowContext(ctx, queryGetEvent, seq))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ProductEvent{}, store.ErrNotFound
	}
	if err != nil {
		return domain.ProductEvent{}, err
	}
	return ev, nil
}

// RequeueStaleEvents returns leased events whose lease began before the
// cutoff to pending, due immediately.
func (s *Store) RequeueStaleEvents(ctx context.Context, cutoff time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx, queryRequeueStaleEvents, cutoff)
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	return int(affected), err
}

// ExpireOverdueEvents fails pending events created before the cutoff.
func (s *Store) ExpireOverdueEvents(ctx context.Context, cutoff time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx, queryExpireOverdueEvents, cutoff)
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	return int(affected), err
}

// PurgeTerminalEvents deletes settled events older than the cutoff along with
// their delivery log.
func (s *Store) PurgeTerminalEvents(ctx context.Context, cutoff time.Time) (int, error) {
	var purged int
	err := s.db.QueryRowContext(ctx, queryPurgeTerminalEvents, cutoff).Scan(&purged)
	if err != nil {
		return 0, err
	}
	return purged, nil
}

func (s *Store) PendingEventCount(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, queryPendingEventCount).Scan(&n)
	return n, err
}

// --- subscribers ---

func scanSubscriber(r rowScanner) (domain.Subscriber, error) {
	var sub domain.Subscriber
	var kind string
	err := r.Scan(&sub.ID, &sub.Name, &sub.TargetURL, &kind, &sub.Active, &sub.Secret, &sub.CreatedAt, &sub.UpdatedAt)
	sub.EventKind = domain.EventKind(kind)
	return sub, err
}

// CreateSubscriber registers a webhook endpoint. A zero ID is assigned.
func (s *Store) CreateSubscriber(ctx context.Context, sub domain.Subscriber) (domain.Subscriber, error) {
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	err := s.db.QueryRowContext(ctx, queryInsertSubscriber,
		sub.ID, sub.Name, sub.TargetURL, string(sub.EventKind), sub.Active, sub.Secret,
	).Scan(&sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return domain.Subscriber{}, classifyError(err)
	}
	return sub, nil
}

func (s *Store) GetSubscriber(ctx context.Context, id uuid.UUID) (domain.Subscriber, error) {
	sub, err := scanSubscriber(s.db.QueryRowContext(ctx, queryGetSubscriber, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Subscriber{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Subscriber{}, err
	}
	return sub, nil
}

// ListSubscribers returns every registered endpoint, oldest first.
func (s *Store) ListSubscribers(ctx context.Context) ([]domain.Subscriber, error) {
	return s.querySubscribers(ctx, queryListSubscribers)
}

// ActiveSubscribers returns the active endpoints registered for the kind,
// oldest first.
func (s *Store) ActiveSubscribers(ctx context.Context, kind domain.EventKind) ([]domain.Subscriber, error) {
	return s.querySubscribers(ctx, queryActiveSubscribers, string(kind))
}

func (s *Store) querySubscribers(ctx context.Context, query string, args ...any) ([]domain.Subscriber, error) {
	dbRows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer dbRows.Close()

	var result []domain.Subscriber
	for dbRows.Next() {
		sub, err := scanSubscriber(dbRows)
		if err != nil {
			return nil, err
		}
		result = append(result, sub)
	}
	if err := dbRows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateSubscriber overwrites the registration fields of an existing
// subscriber.
func (s *Store) UpdateSubscriber(ctx context.Context, sub domain.Subscriber) (domain.Subscriber, error) {
	err := s.db.QueryRowContext(ctx, queryUpdateSubscriber,
		sub.ID, sub.Name, sub.TargetURL, string(sub.EventKind), sub.Active, sub.Secret,
	).Scan(&sub.CreatedAt, &sub.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Subscriber{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Subscriber{}, classifyError(err)
	}
	return sub, nil
}

func (s *Store) DeleteSubscriber(ctx context.Context, id uuid.UUID) error {
	var deleted uuid.UUID
	err := s.db.QueryRowContext(ctx, queryDeleteSubscriber, id).Scan(&deleted)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

// --- delivery log ---

func (s *Store) InsertDeliveryAttempt(ctx context.Context, attempt domain.DeliveryAttempt) error {
	_, err := s.db.ExecContext(ctx, queryInsertDeliveryAttempt,
		attempt.ID,
		attempt.EventSeq,
		attempt.SubscriberID,
		attempt.Attempt,
		attempt.StatusCode,
		attempt.Error,
		attempt.StartedAt,
		attempt.FinishedAt,
	)
	return err
}

// DeliveredSubscriberIDs reports which subscribers already acknowledged the
// event with a 2xx attempt.
func (s *Store) DeliveredSubscriberIDs(ctx context.Context, eventSeq int64) (map[uuid.UUID]bool, error) {
	dbRows, err := s.db.QueryContext(ctx, queryDeliveredSubscriberIDs, eventSeq)
	if err != nil {
		return nil, err
	}
	defer dbRows.Close()

	out := make(map[uuid.UUID]bool)
	for dbRows.Next() {
		var id uuid.UUID
		if err := dbRows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = true
	}
	if err := dbRows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListDeliveryAttempts returns the recorded attempts for one event, oldest
// first.
func (s *Store) ListDeliveryAttempts(ctx context.Context, eventSeq int64) ([]domain.DeliveryAttempt, error) {
	dbRows, err := s.db.QueryContext(ctx, queryListDeliveryAttempts, eventSeq)
	if err != nil {
		return nil, err
	}
	defer dbRows.Close()

	var result []domain.DeliveryAttempt
	for dbRows.Next() {
		var a domain.DeliveryAttempt
		err := dbRows.Scan(&a.ID, &a.EventSeq, &a.SubscriberID, &a.Attempt, &a.StatusCode, &a.Error, &a.StartedAt, &a.FinishedAt)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	if err := dbRows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Compile-time interface assertions
var (
	_ api.Store        = (*Store)(nil)
	_ catalog.Store    = (*Store)(nil)
	_ importer.Ledger  = (*Store)(nil)
	_ outbox.Queue     = (*Store)(nil)
	_ dispatcher.Store = (*Store)(nil)
	_ reconciler.Store = (*Store)(nil)
)
