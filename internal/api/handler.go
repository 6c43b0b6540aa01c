// Package api is the HTTP surface: import uploads, product CRUD, webhook
// subscriber CRUD, and health. Handlers stay thin; every mutation that must
// emit a lifecycle event publishes through the outbox before answering.
package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/jayesh55555/Product-Importer/internal/domain"
	"github.com/jayesh55555/Product-Importer/internal/store"
)

// Pagination defaults and limits.
const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// maxRequestBodySize is the maximum allowed request body size (1MB) for JSON
// endpoints. Import uploads are exempt; they stream to the spool dir.
const maxRequestBodySize = 1 << 20

type Store interface {
	// Products
	CreateProduct(ctx context.Context, p domain.Product) (domain.Product, error)
	GetProduct(ctx context.Context, id int64) (domain.Product, error)
	ListProducts(ctx context.Context, f store.ProductFilter) ([]domain.Product, int, error)
	// UpdateProduct reports whether any field actually changed, so a no-op
	// write emits no event.
	UpdateProduct(ctx context.Context, id int64, name, description string, active bool) (domain.Product, bool, error)
	// DeleteProduct returns the pre-delete snapshot for the deletion event.
	DeleteProduct(ctx context.Context, id int64) (domain.Product, error)
	DeleteAllProducts(ctx context.Context) ([]domain.Product, error)

	// Import jobs
	CreateJob(ctx context.Context, job domain.ImportJob) (domain.ImportJob, error)
	GetImportJob(ctx context.Context, id uuid.UUID) (domain.ImportJob, error)
	RequestJobCancel(ctx context.Context, id uuid.UUID) error

	// Webhook subscribers
	CreateSubscriber(ctx context.Context, sub domain.Subscriber) (domain.Subscriber, error)
	GetSubscriber(ctx context.Context, id uuid.UUID) (domain.Subscriber, error)
	ListSubscribers(ctx context.Context) ([]domain.Subscriber, error)
	UpdateSubscriber(ctx context.Context, sub domain.Subscriber) (domain.Subscriber, error)
	DeleteSubscriber(ctx context.Context, id uuid.UUID) error
}

// Publisher queues lifecycle events for webhook delivery. A Publish error
// means the event is NOT queued; the handler reports the failure instead of
// silently dropping it.
type Publisher interface {
	Publish(ctx context.Context, kind domain.EventKind, snapshot domain.ProductSnapshot, occurredAt time.Time) (int64, error)
}

// Nudger wakes the import worker pool after an upload.
type Nudger interface {
	Nudge()
}

// Tester runs a single-attempt test delivery outside the event pipeline.
type Tester interface {
	SendTest(ctx context.Context, sub domain.Subscriber) (int, error)
}

// HealthChecker provides storage health status for the /health endpoint.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	store    Store
	events   Publisher
	spoolDir string

	importNudge Nudger        // optional, nil = importer polls only
	tester      Tester        // optional, nil = test endpoint unavailable
	health      HealthChecker // optional, nil = simple health only
}

func NewHandler(store Store, events Publisher, spoolDir string) *Handler {
	return &Handler{store: store, events: events, spoolDir: spoolDir}
}

// WithImportNudger sets the wake-up target for the import worker pool.
func (h *Handler) WithImportNudger(n Nudger) *Handler {
	h.importNudge = n
	return h
}

// WithTester enables POST /webhooks/{id}/test.
func (h *Handler) WithTester(t Tester) *Handler {
	h.tester = t
	return h
}

// WithHealthChecker sets the storage health checker for verbose /health responses.
func (h *Handler) WithHealthChecker(hc HealthChecker) *Handler {
	h.health = hc
	return h
}

// HealthResponse represents the /health endpoint response.
type HealthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	// Check if verbose mode requested via ?verbose=true
	verbose := r.URL.Query().Get("verbose") == "true"

	if !verbose || h.health == nil {
		writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
		return
	}

	resp := HealthResponse{
		Status:     "ok",
		Components: make(map[string]string),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.health.Ping(ctx); err != nil {
		resp.Status = "degraded"
		resp.Components["store"] = "unhealthy: " + err.Error()
	} else {
		resp.Components["store"] = "healthy"
	}

	statusCode := http.StatusOK
	if resp.Status == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, resp)
}

// decodeJSON wraps the body in a 1MB limit and decodes into v.
// A false return means a response was already written.
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if err.Error() == "http: request body too large" {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

// publishEvent queues one lifecycle event, returning the publish error.
func (h *Handler) publishEvent(ctx context.Context, kind domain.EventKind, snapshot domain.ProductSnapshot, occurredAt time.Time) error {
	_, err := h.events.Publish(ctx, kind, snapshot, occurredAt)
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: json encode error: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// parsePagination extracts and validates limit/offset query parameters.
// Returns DefaultLimit if limit is not specified, and 0 for offset if not specified.
// Returns an error if limit exceeds MaxLimit or if values are negative/invalid.
func parsePagination(r *http.Request) (limit, offset int, err error) {
	limit = DefaultLimit
	offset = 0

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil {
			return 0, 0, err
		}
		if limit < 0 {
			return 0, 0, strconv.ErrRange
		}
		if limit > MaxLimit {
			return 0, 0, &limitExceededError{max: MaxLimit}
		}
		if limit == 0 {
			limit = DefaultLimit
		}
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		offset, err = strconv.Atoi(offsetStr)
		if err != nil {
			return 0, 0, err
		}
		if offset < 0 {
			return 0, 0, strconv.ErrRange
		}
	}

	return limit, offset, nil
}

type limitExceededError struct {
	max int
}

func (e *limitExceededError) Error() string {
	return "limit exceeds maximum of " + strconv.Itoa(e.max)
}
