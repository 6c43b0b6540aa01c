package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jayesh55555/Product-Importer/internal/domain"
	"github.com/jayesh55555/Product-Importer/internal/store"
)

// mockHandlerStore implements api.Store for handler tests.
type mockHandlerStore struct {
	mu sync.Mutex

	createProductFn     func(ctx context.Context, p domain.Product) (domain.Product, error)
	getProductFn        func(ctx context.Context, id int64) (domain.Product, error)
	listProductsFn      func(ctx context.Context, f store.ProductFilter) ([]domain.Product, int, error)
	updateProductFn     func(ctx context.Context, id int64, name, description string, active bool) (domain.Product, bool, error)
	deleteProductFn     func(ctx context.Context, id int64) (domain.Product, error)
	deleteAllProductsFn func(ctx context.Context) ([]domain.Product, error)

	createJobFn        func(ctx context.Context, job domain.ImportJob) (domain.ImportJob, error)
	getImportJobFn     func(ctx context.Context, id uuid.UUID) (domain.ImportJob, error)
	requestJobCancelFn func(ctx context.Context, id uuid.UUID) error

	createSubscriberFn func(ctx context.Context, sub domain.Subscriber) (domain.Subscriber, error)
	getSubscriberFn    func(ctx context.Context, id uuid.UUID) (domain.Subscriber, error)
	listSubscribersFn  func(ctx context.Context) ([]domain.Subscriber, error)
	updateSubscriberFn func(ctx context.Context, sub domain.Subscriber) (domain.Subscriber, error)
	deleteSubscriberFn func(ctx context.Context, id uuid.UUID) error
}

func (s *mockHandlerStore) CreateProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createProductFn != nil {
		return s.createProductFn(ctx, p)
	}
	p.ID = 1
	return p, nil
}

func (s *mockHandlerStore) GetProduct(ctx context.Context, id int64) (domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getProductFn != nil {
		return s.getProductFn(ctx, id)
	}
	return domain.Product{}, store.ErrNotFound
}

func (s *mockHandlerStore) ListProducts(ctx context.Context, f store.ProductFilter) ([]domain.Product, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listProductsFn != nil {
		return s.listProductsFn(ctx, f)
	}
	return nil, 0, nil
}

func (s *mockHandlerStore) UpdateProduct(ctx context.Context, id int64, name, description string, active bool) (domain.Product, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateProductFn != nil {
		return s.updateProductFn(ctx, id, name, description, active)
	}
	return domain.Product{}, false, store.ErrNotFound
}

func (s *mockHandlerStore) DeleteProduct(ctx context.Context, id int64) (domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteProductFn != nil {
		return s.deleteProductFn(ctx, id)
	}
	return domain.Product{}, store.ErrNotFound
}

func (s *mockHandlerStore) DeleteAllProducts(ctx context.Context) ([]domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteAllProductsFn != nil {
		return s.deleteAllProductsFn(ctx)
	}
	return nil, nil
}

func (s *mockHandlerStore) CreateJob(ctx context.Context, job domain.ImportJob) (domain.ImportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createJobFn != nil {
		return s.createJobFn(ctx, job)
	}
	job.Status = domain.JobStatusQueued
	return job, nil
}

func (s *mockHandlerStore) GetImportJob(ctx context.Context, id uuid.UUID) (domain.ImportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getImportJobFn != nil {
		return s.getImportJobFn(ctx, id)
	}
	return domain.ImportJob{}, store.ErrNotFound
}

func (s *mockHandlerStore) RequestJobCancel(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.requestJobCancelFn != nil {
		return s.requestJobCancelFn(ctx, id)
	}
	return nil
}

func (s *mockHandlerStore) CreateSubscriber(ctx context.Context, sub domain.Subscriber) (domain.Subscriber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createSubscriberFn != nil {
		return s.createSubscriberFn(ctx, sub)
	}
	sub.ID = uuid.New()
	return sub, nil
}

func (s *mockHandlerStore) GetSubscriber(ctx context.Context, id uuid.UUID) (domain.Subscriber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getSubscriberFn != nil {
		return s.getSubscriberFn(ctx, id)
	}
	return domain.Subscriber{}, store.ErrNotFound
}

func (s *mockHandlerStore) ListSubscribers(ctx context.Context) ([]domain.Subscriber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listSubscribersFn != nil {
		return s.listSubscribersFn(ctx)
	}
	return nil, nil
}

func (s *mockHandlerStore) UpdateSubscriber(ctx context.Context, sub domain.Subscriber) (domain.Subscriber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateSubscriberFn != nil {
		return s.updateSubscriberFn(ctx, sub)
	}
	return domain.Subscriber{}, store.ErrNotFound
}

func (s *mockHandlerStore) DeleteSubscriber(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteSubscriberFn != nil {
		return s.deleteSubscriberFn(ctx, id)
	}
	return store.ErrNotFound
}

// mockPublisher implements Publisher and records every queued event.
type mockPublisher struct {
	mu        sync.Mutex
	publishFn func(ctx context.Context, kind domain.EventKind, snapshot domain.ProductSnapshot, occurredAt time.Time) (int64, error)
	published []publishedEvent
}

type publishedEvent struct {
	kind     domain.EventKind
	snapshot domain.ProductSnapshot
}

func (m *mockPublisher) Publish(ctx context.Context, kind domain.EventKind, snapshot domain.ProductSnapshot, occurredAt time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishFn != nil {
		return m.publishFn(ctx, kind, snapshot, occurredAt)
	}
	m.published = append(m.published, publishedEvent{kind: kind, snapshot: snapshot})
	return int64(len(m.published)), nil
}

func (m *mockPublisher) events() []publishedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]publishedEvent, len(m.published))
	copy(out, m.published)
	return out
}

// mockNudger implements Nudger and counts wake-ups.
type mockNudger struct {
	mu    sync.Mutex
	count int
}

func (m *mockNudger) Nudge() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.count++
}

func (m *mockNudger) nudges() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

// mockTester implements Tester for handler tests.
type mockTester struct {
	mu     sync.Mutex
	testFn func(ctx context.Context, sub domain.Subscriber) (int, error)
}

func (m *mockTester) SendTest(ctx context.Context, sub domain.Subscriber) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.testFn != nil {
		return m.testFn(ctx, sub)
	}
	return http.StatusNoContent, nil
}

// mockHealthChecker implements HealthChecker for handler tests.
type mockHealthChecker struct {
	mu     sync.Mutex
	pingFn func(ctx context.Context) error
}

func (m *mockHealthChecker) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pingFn != nil {
		return m.pingFn(ctx)
	}
	return nil
}

func newTestHandler(t *testing.T, store *mockHandlerStore) (*Handler, *mockPublisher) {
	t.Helper()
	events := &mockPublisher{}
	return NewHandler(store, events, t.TempDir()), events
}

func serve(h *Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.Routes().ServeHTTP(w, req)
	return w
}

// --- Health Tests ---

func TestHandler_Health_Simple(t *testing.T) {
	handler, _ := newTestHandler(t, &mockHandlerStore{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := serve(handler, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	var resp HealthResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Status != "ok" {
		t.Errorf("Status = %q, want ok", resp.Status)
	}
}

func TestHandler_Health_Verbose_Healthy(t *testing.T) {
	handler, _ := newTestHandler(t, &mockHandlerStore{})
	handler.WithHealthChecker(&mockHealthChecker{})

	req := httptest.NewRequest(http.MethodGet, "/health?verbose=true", nil)
	w := serve(handler, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	var resp HealthResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Status != "ok" {
		t.Errorf("Status = %q, want ok", resp.Status)
	}
	if resp.Components["store"] != "healthy" {
		t.Errorf("store = %q, want healthy", resp.Components["store"])
	}
}

func TestHandler_Health_Verbose_Unhealthy(t *testing.T) {
	handler, _ := newTestHandler(t, &mockHandlerStore{})
	handler.WithHealthChecker(&mockHealthChecker{
		pingFn: func(ctx context.Context) error {
			return errors.New("connection refused")
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/health?verbose=true", nil)
	w := serve(handler, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", w.Code)
	}

	var resp HealthResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Status != "degraded" {
		t.Errorf("Status = %q, want degraded", resp.Status)
	}
}

// --- Routing Tests ---

func TestHandler_NotFound(t *testing.T) {
	handler, _ := newTestHandler(t, &mockHandlerStore{})

	req := httptest.NewRequest(http.MethodGet, "/nonexistent", nil)
	w := serve(handler, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestHandler_BodyTooLarge(t *testing.T) {
	handler, _ := newTestHandler(t, &mockHandlerStore{})

	// Body larger than 1MB
	largeBody := strings.Repeat("a", 1<<20+1)

	req := httptest.NewRequest(http.MethodPost, "/products", strings.NewReader(largeBody))
	req.Header.Set("Content-Type", "application/json")
	w := serve(handler, req)

	if w.Code != http.StatusRequestEntityTooLarge && w.Code != http.StatusBadRequest {
		t.Errorf("expected 413 or 400, got %d", w.Code)
	}
}
