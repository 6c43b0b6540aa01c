// Package memory implements every storage interface of the service on
// mutex-guarded maps. It backs the memory store mode and the pipeline tests;
// the semantics (lease claims, terminal guards, counter increments, snapshot
// copying) match the PostgreSQL store.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

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

// Store holds the whole catalog, job ledger, event queue, subscriber registry
// and delivery log in memory. A single mutex serializes all operations; every
// returned record is a copy.
type Store struct {
	mu  sync.Mutex
	now func() time.Time

	productSeq int64
	byKey      map[string]domain.Product // normalized SKU -> product
	keyByID    map[int64]string

	jobs     map[uuid.UUID]*domain.ImportJob
	jobOrder []uuid.UUID // creation order, drives FIFO claims

	eventSeq int64
	events   map[int64]*domain.ProductEvent

	subscribers map[uuid.UUID]domain.Subscriber

	attempts []domain.DeliveryAttempt
}

func New() *Store {
	return &Store{
		now:         time.Now,
		byKey:       make(map[string]domain.Product),
		keyByID:     make(map[int64]string),
		jobs:        make(map[uuid.UUID]*domain.ImportJob),
		events:      make(map[int64]*domain.ProductEvent),
		subscribers: make(map[uuid.UUID]domain.Subscriber),
	}
}

// WithClock replaces the time source. Used by tests and deterministic dev
// setups.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Ping reports the store as reachable. It exists so health checks treat both
// backends uniformly.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// tick returns a timestamp strictly after prev even when the clock has not
// advanced, keeping updated_at strictly increasing across mutations.
func (s *Store) tick(prev time.Time) time.Time {
	t := s.now()
	if !t.After(prev) {
		t = prev.Add(time.Nanosecond)
	}
	return t
}

// --- catalog ---

// ApplyBatch applies pre-deduplicated rows in order under one lock, so the
// batch is atomic with respect to readers.
func (s *Store) ApplyBatch(ctx context.Context, batch []rows.Valid) ([]catalog.RowResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	results := make([]catalog.RowResult, 0, len(batch))
	for _, row := range batch {
		existing, ok := s.byKey[row.NormalizedSKU]
		if !ok {
			results = append(results, catalog.RowResult{
				Outcome: catalog.OutcomeCreated,
				Product: s.insertProduct(row.SKU, row.NormalizedSKU, row.Name, row.Description, row.Active),
			})
			continue
		}
		if existing.Name == row.Name && existing.Description == row.Description && existing.Active == row.Active {
			results = append(results, catalog.RowResult{Outcome: catalog.OutcomeNoOp, Product: existing})
			continue
		}
		existing.Name = row.Name
		existing.Description = row.Description
		existing.Active = row.Active
		existing.UpdatedAt = s.tick(existing.UpdatedAt)
		s.byKey[row.NormalizedSKU] = existing
		results = append(results, catalog.RowResult{Outcome: catalog.OutcomeUpdated, Product: existing})
	}
	return results, nil
}

// insertProduct assigns the next id and stamps timestamps. Caller holds the
// lock.
func (s *Store) insertProduct(sku, key, name, description string, active bool) domain.Product {
	s.productSeq++
	now := s.now()
	p := domain.Product{
		ID:            s.productSeq,
		SKU:           sku,
		NormalizedSKU: key,
		Name:          name,
		Description:   description,
		Active:        active,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.byKey[key] = p
	s.keyByID[p.ID] = key
	return p
}

// CreateProduct inserts a single product.
// Returns store.ErrDuplicateKey when the case-folded SKU is already taken.
func (s *Store) CreateProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sku := strings.TrimSpace(p.SKU)
	key := rows.NormalizeKey(sku)
	if _, exists := s.byKey[key]; exists {
		return domain.Product{}, store.ErrDuplicateKey
	}
	return s.insertProduct(sku, key, p.Name, p.Description, p.Active), nil
}

func (s *Store) GetProduct(ctx context.Context, id int64) (domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.keyByID[id]
	if !ok {
		return domain.Product{}, store.ErrNotFound
	}
	return s.byKey[key], nil
}

// ListProducts returns the filtered page newest first plus the total match
// count before paging.
func (s *Store) ListProducts(ctx context.Context, f store.ProductFilter) ([]domain.Product, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]domain.Product, 0, len(s.byKey))
	for _, p := range s.byKey {
		if !matchProduct(p, f) {
			continue
		}
		matched = append(matched, p)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })

	total := len(matched)
	if f.Offset > 0 {
		if f.Offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[f.Offset:]
		}
	}
	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}

	out := make([]domain.Product, len(matched))
	copy(out, matched)
	return out, total, nil
}

func matchProduct(p domain.Product, f store.ProductFilter) bool {
	if f.SKU != "" && !containsFold(p.SKU, f.SKU) {
		return false
	}
	if f.Name != "" && !containsFold(p.Name, f.Name) {
		return false
	}
	if f.Description != "" && !containsFold(p.Description, f.Description) {
		return false
	}
	if f.Active != nil && p.Active != *f.Active {
		return false
	}
	return true
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// UpdateProduct overwrites the mutable fields. The SKU and its normalized key
// never change. The returned bool reports whether anything differed.
func (s *Store) UpdateProduct(ctx context.Context, id int64, name, description string, active bool) (domain.Product, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.keyByID[id]
	if !ok {
		return domain.Product{}, false, store.ErrNotFound
	}
	p := s.byKey[key]
	if p.Name == name && p.Description == description && p.Active == active {
		return p, false, nil
	}
	p.Name = name
	p.Description = description
	p.Active = active
	p.UpdatedAt = s.tick(p.UpdatedAt)
	s.byKey[key] = p
	return p, true, nil
}

// DeleteProduct removes the product and returns its final state for the
// deletion event.
func (s *Store) DeleteProduct(ctx context.Context, id int64) (domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.keyByID[id]
	if !ok {
		return domain.Product{}, store.ErrNotFound
	}
	p := s.byKey[key]
	delete(s.byKey, key)
	delete(s.keyByID, id)
	return p, nil
}

// DeleteAllProducts removes every product and returns the removed records in
// id order. The id sequence keeps counting.
func (s *Store) DeleteAllProducts(ctx context.Context) ([]domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := make([]domain.Product, 0, len(s.byKey))
	for _, p := range s.byKey {
		removed = append(removed, p)
	}
	sort.Slice(removed, func(i, j int) bool { return removed[i].ID < removed[j].ID })

	s.byKey = make(map[string]domain.Product)
	s.keyByID = make(map[int64]string)
	return removed, nil
}

// --- import jobs ---

// CreateJob inserts a queued job. A zero ID is assigned.
func (s *Store) CreateJob(ctx context.Context, job domain.ImportJob) (domain.ImportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if _, exists := s.jobs[job.ID]; exists {
		return domain.ImportJob{}, store.ErrDuplicateKey
	}
	job.Status = domain.JobStatusQueued
	job.CreatedAt = s.now()
	stored := job
	s.jobs[job.ID] = &stored
	s.jobOrder = append(s.jobOrder, job.ID)
	return copyJob(&stored), nil
}

func (s *Store) GetImportJob(ctx context.Context, id uuid.UUID) (domain.ImportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return domain.ImportJob{}, store.ErrNotFound
	}
	return copyJob(job), nil
}

// RequestJobCancel flags the job for cancellation.
// Returns store.ErrTransitionDenied when the job already finished.
func (s *Store) RequestJobCancel(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return store.ErrNotFound
	}
	if job.Status.Terminal() {
		return store.ErrTransitionDenied
	}
	job.CancelRequested = true
	return nil
}

// ClaimQueuedJob hands the oldest unclaimed queued job to the caller, marking
// it claimed so no other worker takes it. Returns store.ErrNoQueuedJob when
// nothing is claimable.
func (s *Store) ClaimQueuedJob(ctx context.Context) (domain.ImportJob, error) {
	if err := ctx.Err(); err != nil {
		return domain.ImportJob{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.jobOrder {
		job, ok := s.jobs[id]
		if !ok || job.Status != domain.JobStatusQueued || job.ClaimedAt != nil {
			continue
		}
		now := s.now()
		job.ClaimedAt = &now
		return copyJob(job), nil
	}
	return domain.ImportJob{}, store.ErrNoQueuedJob
}

func (s *Store) MarkJobRunning(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return store.ErrNotFound
	}
	if job.Status.Terminal() {
		return store.ErrTransitionDenied
	}
	if job.Status == domain.JobStatusRunning {
		return nil
	}
	now := s.now()
	job.Status = domain.JobStatusRunning
	job.StartedAt = &now
	return nil
}

func (s *Store) SetJobTotalRows(ctx context.Context, id uuid.UUID, total int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return store.ErrNotFound
	}
	job.TotalRows = &total
	return nil
}

// RecordJobBatch adds one batch's deltas atomically. Samples past the cap are
// counted but not kept.
func (s *Store) RecordJobBatch(ctx context.Context, id uuid.UUID, processed, created, updated, rejected int64, samples []domain.RejectedRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return store.ErrNotFound
	}
	job.ProcessedRows += processed
	job.CreatedCount += created
	job.UpdatedCount += updated
	job.RejectedCount += rejected
	for _, sample := range samples {
		if len(job.RejectedSamples) >= domain.RejectedSampleCap {
			break
		}
		job.RejectedSamples = append(job.RejectedSamples, sample)
	}
	return nil
}

// MarkJobTerminal finishes the job.
// Returns store.ErrTransitionDenied when it already reached a terminal state.
func (s *Store) MarkJobTerminal(ctx context.Context, id uuid.UUID, status domain.JobStatus, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return store.ErrNotFound
	}
	if job.Status.Terminal() {
		return store.ErrTransitionDenied
	}
	now := s.now()
	job.Status = status
	job.Reason = reason
	job.FinishedAt = &now
	return nil
}

func (s *Store) JobCancelRequested(ctx context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return false, store.ErrNotFound
	}
	return job.CancelRequested, nil
}

// RequeueStaleJobs clears claims older than the cutoff on jobs that never
// started, making them claimable again after a worker crash.
func (s *Store) RequeueStaleJobs(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, job := range s.jobs {
		if job.Status == domain.JobStatusQueued && job.ClaimedAt != nil && job.ClaimedAt.Before(cutoff) {
			job.ClaimedAt = nil
			n++
		}
	}
	return n, nil
}

// PurgeTerminalJobs deletes finished jobs whose terminal timestamp is older
// than the cutoff.
func (s *Store) PurgeTerminalJobs(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, job := range s.jobs {
		if job.Status.Terminal() && job.FinishedAt != nil && job.FinishedAt.Before(cutoff) {
			delete(s.jobs, id)
			n++
		}
	}
	if n > 0 {
		order := s.jobOrder[:0]
		for _, id := range s.jobOrder {
			if _, ok := s.jobs[id]; ok {
				order = append(order, id)
			}
		}
		s.jobOrder = order
	}
	return n, nil
}

func copyJob(job *domain.ImportJob) domain.ImportJob {
	out := *job
	if job.TotalRows != nil {
		total := *job.TotalRows
		out.TotalRows = &total
	}
	out.ClaimedAt = copyTime(job.ClaimedAt)
	out.StartedAt = copyTime(job.StartedAt)
	out.FinishedAt = copyTime(job.FinishedAt)
	if len(job.RejectedSamples) > 0 {
		out.RejectedSamples = make([]domain.RejectedRow, len(job.RejectedSamples))
		copy(out.RejectedSamples, job.RejectedSamples)
	}
	return out
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// --- event queue ---

// EnqueueEvent appends a pending event and returns its sequence number. The
// event is due immediately.
func (s *Store) EnqueueEvent(ctx context.Context, kind domain.EventKind, snapshot domain.ProductSnapshot, occurredAt time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.eventSeq++
	now := s.now()
	s.events[s.eventSeq] = &domain.ProductEvent{
		Seq:           s.eventSeq,
		Kind:          kind,
		Product:       snapshot,
		OccurredAt:    occurredAt,
		Status:        domain.EventStatusPending,
		NextAttemptAt: now,
		CreatedAt:     now,
	}
	return s.eventSeq, nil
}

// LeaseNextEvent claims the oldest due pending event. The attempt counter
// tracks dispatch cycles and is bumped on each lease.
func (s *Store) LeaseNextEvent(ctx context.Context) (domain.ProductEvent, error) {
	if err := ctx.Err(); err != nil {
		return domain.ProductEvent{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var next *domain.ProductEvent
	for _, ev := range s.events {
		if ev.Status != domain.EventStatusPending || ev.NextAttemptAt.After(now) {
			continue
		}
		if next == nil || ev.Seq < next.Seq {
			next = ev
		}
	}
	if next == nil {
		return domain.ProductEvent{}, store.ErrNoPendingEvent
	}

	next.Status = domain.EventStatusLeased
	leasedAt := now
	next.LeasedAt = &leasedAt
	next.Attempts++
	return copyEvent(next), nil
}

// ReleaseEvent returns an event to pending, due again at nextAttemptAt.
// Returns store.ErrTransitionDenied if the event already settled.
func (s *Store) ReleaseEvent(ctx context.Context, seq int64, nextAttemptAt time.Time, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, ok := s.events[seq]
	if !ok {
		return store.ErrNotFound
	}
	if terminalEvent(ev.Status) {
		return store.ErrTransitionDenied
	}
	ev.Status = domain.EventStatusPending
	ev.LeasedAt = nil
	ev.NextAttemptAt = nextAttemptAt
	ev.LastError = lastError
	return nil
}

func (s *Store) MarkEventDelivered(ctx context.Context, seq int64) error {
	return s.settleEvent(seq, domain.EventStatusDelivered, "")
}

func (s *Store) MarkEventFailed(ctx context.Context, seq int64, lastError string) error {
	return s.settleEvent(seq, domain.EventStatusFailed, lastError)
}

func (s *Store) settleEvent(seq int64, status domain.EventStatus, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, ok := s.events[seq]
	if !ok {
		return store.ErrNotFound
	}
	if terminalEvent(ev.Status) {
		return store.ErrTransitionDenied
	}
	ev.Status = status
	ev.LeasedAt = nil
	ev.LastError = lastError
	return nil
}

func terminalEvent(status domain.EventStatus) bool {
	return status == domain.EventStatusDelivered || status == domain.EventStatusFailed
}

// GetEvent returns a snapshot of one queued event.
func (s *Store) GetEvent(ctx context.Context, seq int64) (domain.ProductEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, ok := s.events[seq]
	if !ok {
		return domain.ProductEvent{}, store.ErrNotFound
	}
	return copyEvent(ev), nil
}

// RequeueStaleEvents returns leased events whose lease began before the
// cutoff to pending, due immediately.
func (s *Store) RequeueStaleEvents(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	n := 0
	for _, ev := range s.events {
		if ev.Status == domain.EventStatusLeased && ev.LeasedAt != nil && ev.LeasedAt.Before(cutoff) {
			ev.Status = domain.EventStatusPending
			ev.LeasedAt = nil
			ev.NextAttemptAt = now
			n++
		}
	}
	return n, nil
}

// ExpireOverdueEvents fails pending events created before the cutoff so the
// queue cannot grow without bound behind a dead endpoint.
func (s *Store) ExpireOverdueEvents(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, ev := range s.events {
		if ev.Status == domain.EventStatusPending && ev.CreatedAt.Before(cutoff) {
			ev.Status = domain.EventStatusFailed
			ev.LastError = "expired"
			n++
		}
	}
	return n, nil
}

// PurgeTerminalEvents deletes settled events older than the cutoff along with
// their delivery log.
func (s *Store) PurgeTerminalEvents(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	purged := make(map[int64]bool)
	for seq, ev := range s.events {
		if terminalEvent(ev.Status) && ev.CreatedAt.Before(cutoff) {
			delete(s.events, seq)
			purged[seq] = true
		}
	}
	if len(purged) > 0 {
		kept := s.attempts[:0]
		for _, a := range s.attempts {
			if !purged[a.EventSeq] {
				kept = append(kept, a)
			}
		}
		s.attempts = kept
	}
	return len(purged), nil
}

func (s *Store) PendingEventCount(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, ev := range s.events {
		if ev.Status == domain.EventStatusPending {
			n++
		}
	}
	return n, nil
}

func copyEvent(ev *domain.ProductEvent) domain.ProductEvent {
	out := *ev
	out.LeasedAt = copyTime(ev.LeasedAt)
	return out
}

// --- subscribers ---

// CreateSubscriber registers a webhook endpoint. A zero ID is assigned.
func (s *Store) CreateSubscriber(ctx context.Context, sub domain.Subscriber) (domain.Subscriber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	if _, exists := s.subscribers[sub.ID]; exists {
		return domain.Subscriber{}, store.ErrDuplicateKey
	}
	now := s.now()
	sub.CreatedAt = now
	sub.UpdatedAt = now
	s.subscribers[sub.ID] = sub
	return sub, nil
}

func (s *Store) GetSubscriber(ctx context.Context, id uuid.UUID) (domain.Subscriber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subscribers[id]
	if !ok {
		return domain.Subscriber{}, store.ErrNotFound
	}
	return sub, nil
}

// ListSubscribers returns every registered endpoint, oldest first.
func (s *Store) ListSubscribers(ctx context.Context) ([]domain.Subscriber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Subscriber, 0, len(s.subscribers))
	for _, sub := range s.subscribers {
		out = append(out, sub)
	}
	sortSubscribers(out)
	return out, nil
}

// UpdateSubscriber overwrites the registration fields of an existing
// subscriber.
func (s *Store) UpdateSubscriber(ctx context.Context, sub domain.Subscriber) (domain.Subscriber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.subscribers[sub.ID]
	if !ok {
		return domain.Subscriber{}, store.ErrNotFound
	}
	existing.Name = sub.Name
	existing.TargetURL = sub.TargetURL
	existing.EventKind = sub.EventKind
	existing.Active = sub.Active
	existing.Secret = sub.Secret
	existing.UpdatedAt = s.tick(existing.UpdatedAt)
	s.subscribers[sub.ID] = existing
	return existing, nil
}

func (s *Store) DeleteSubscriber(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subscribers[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.subscribers, id)
	return nil
}

// ActiveSubscribers returns the active endpoints registered for the kind,
// oldest first.
func (s *Store) ActiveSubscribers(ctx context.Context, kind domain.EventKind) ([]domain.Subscriber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Subscriber
	for _, sub := range s.subscribers {
		if sub.Active && sub.EventKind == kind {
			out = append(out, sub)
		}
	}
	sortSubscribers(out)
	return out, nil
}

func sortSubscribers(subs []domain.Subscriber) {
	sort.Slice(subs, func(i, j int) bool {
		if subs[i].CreatedAt.Equal(subs[j].CreatedAt) {
			return subs[i].ID.String() < subs[j].ID.String()
		}
		return subs[i].CreatedAt.Before(subs[j].CreatedAt)
	})
}

// --- delivery log ---

func (s *Store) InsertDeliveryAttempt(ctx context.Context, attempt domain.DeliveryAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.attempts = append(s.attempts, attempt)
	return nil
}

// DeliveredSubscriberIDs reports which subscribers already acknowledged the
// event with a 2xx attempt.
func (s *Store) DeliveredSubscriberIDs(ctx context.Context, eventSeq int64) (map[uuid.UUID]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[uuid.UUID]bool)
	for _, a := range s.attempts {
		if a.EventSeq == eventSeq && a.Delivered() {
			out[a.SubscriberID] = true
		}
	}
	return out, nil
}

// ListDeliveryAttempts returns the recorded attempts for one event in insert
// order.
func (s *Store) ListDeliveryAttempts(ctx context.Context, eventSeq int64) ([]domain.DeliveryAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.DeliveryAttempt
	for _, a := range s.attempts {
		if a.EventSeq == eventSeq {
			out = append(out, a)
		}
	}
	return out, nil
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
