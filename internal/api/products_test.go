package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jayesh55555/Product-Importer/internal/domain"
	"github.com/jayesh55555/Product-Importer/internal/store"
)

func testProduct(id int64, sku string) domain.Product {
	now := time.Now().UTC()
	return domain.Product{
		ID:            id,
		SKU:           sku,
		NormalizedSKU: strings.ToUpper(sku),
		Name:          "Widget",
		Description:   "A widget",
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// --- CreateProduct ---

func TestHandler_CreateProduct_Success(t *testing.T) {
	st := &mockHandlerStore{
		createProductFn: func(ctx context.Context, p domain.Product) (domain.Product, error) {
			p.ID = 42
			p.CreatedAt = time.Now().UTC()
			p.UpdatedAt = p.CreatedAt
			return p, nil
		},
	}
	handler, events := newTestHandler(t, st)

	body := `{"sku": "ABC-001", "name": "Widget", "description": "A widget"}`
	req := httptest.NewRequest(http.MethodPost, "/products", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := serve(handler, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp ProductResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.ID != 42 {
		t.Errorf("ID = %d, want 42", resp.ID)
	}
	if resp.SKU != "ABC-001" {
		t.Errorf("SKU = %q, want ABC-001", resp.SKU)
	}
	if !resp.Active {
		t.Error("Active should default to true")
	}

	published := events.events()
	if len(published) != 1 {
		t.Fatalf("published %d events, want 1", len(published))
	}
	if published[0].kind != domain.EventProductCreated {
		t.Errorf("event kind = %s, want %s", published[0].kind, domain.EventProductCreated)
	}
	if published[0].snapshot.SKU != "ABC-001" {
		t.Errorf("snapshot SKU = %q, want ABC-001", published[0].snapshot.SKU)
	}
}

func TestHandler_CreateProduct_DefaultsActive(t *testing.T) {
	var captured domain.Product
	st := &mockHandlerStore{
		createProductFn: func(ctx context.Context, p domain.Product) (domain.Product, error) {
			captured = p
			p.ID = 1
			return p, nil
		},
	}
	handler, _ := newTestHandler(t, st)

	body := `{"sku": "ABC-001", "name": "Widget"}`
	req := httptest.NewRequest(http.MethodPost, "/products", strings.NewReader(body))
	w := serve(handler, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if !captured.Active {
		t.Error("omitted active should default to true")
	}
}

func TestHandler_CreateProduct_DuplicateSKU(t *testing.T) {
	st := &mockHandlerStore{
		createProductFn: func(ctx context.Context, p domain.Product) (domain.Product, error) {
			return domain.Product{}, store.ErrDuplicateKey
		},
	}
	handler, events := newTestHandler(t, st)

	body := `{"sku": "ABC-001", "name": "Widget"}`
	req := httptest.NewRequest(http.MethodPost, "/products", strings.NewReader(body))
	w := serve(handler, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}

	var resp ErrorResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if !strings.Contains(resp.Error, "sku already exists") {
		t.Errorf("error = %q, want to mention sku already exists", resp.Error)
	}
	if len(events.events()) != 0 {
		t.Error("no event should be published for a rejected create")
	}
}

func TestHandler_CreateProduct_ValidationError(t *testing.T) {
	handler, events := newTestHandler(t, &mockHandlerStore{})

	// Missing sku
	body := `{"name": "Widget"}`
	req := httptest.NewRequest(http.MethodPost, "/products", strings.NewReader(body))
	w := serve(handler, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}

	var resp ErrorResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if !strings.Contains(resp.Error, "sku") {
		t.Errorf("error should mention sku: %q", resp.Error)
	}
	if len(events.events()) != 0 {
		t.Error("no event should be published for an invalid create")
	}
}

func TestHandler_CreateProduct_InvalidJSON(t *testing.T) {
	handler, _ := newTestHandler(t, &mockHandlerStore{})

	req := httptest.NewRequest(http.MethodPost, "/products", strings.NewReader("{invalid"))
	w := serve(handler, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHandler_CreateProduct_PublishError(t *testing.T) {
	handler, events := newTestHandler(t, &mockHandlerStore{})
	events.publishFn = func(ctx context.Context, kind domain.EventKind, snapshot domain.ProductSnapshot, occurredAt time.Time) (int64, error) {
		return 0, errors.New("queue insert failed")
	}

	body := `{"sku": "ABC-001", "name": "Widget"}`
	req := httptest.NewRequest(http.MethodPost, "/products", strings.NewReader(body))
	w := serve(handler, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}

	var resp ErrorResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if !strings.Contains(resp.Error, "event") {
		t.Errorf("error should mention the event failure: %q", resp.Error)
	}
}

// --- ListProducts ---

func TestHandler_ListProducts_Filters(t *testing.T) {
	st := &mockHandlerStore{
		listProductsFn: func(ctx context.Context, f store.ProductFilter) ([]domain.Product, int, error) {
			if f.SKU != "abc" {
				t.Errorf("filter SKU = %q, want abc", f.SKU)
			}
			if f.Active == nil || *f.Active != true {
				t.Errorf("filter Active = %v, want true", f.Active)
			}
			if f.Limit != 50 || f.Offset != 10 {
				t.Errorf("limit/offset = %d/%d, want 50/10", f.Limit, f.Offset)
			}
			return []domain.Product{testProduct(1, "ABC-1"), testProduct(2, "ABC-2")}, 7, nil
		},
	}
	handler, _ := newTestHandler(t, st)

	req := httptest.NewRequest(http.MethodGet, "/products?sku=abc&active=true&limit=50&offset=10", nil)
	w := serve(handler, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp ListProductsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if len(resp.Products) != 2 {
		t.Fatalf("expected 2 products, got %d", len(resp.Products))
	}
	if resp.Total != 7 {
		t.Errorf("Total = %d, want 7", resp.Total)
	}
}

func TestHandler_ListProducts_Empty(t *testing.T) {
	handler, _ := newTestHandler(t, &mockHandlerStore{})

	req := httptest.NewRequest(http.MethodGet, "/products", nil)
	w := serve(handler, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	// Verify response is empty array, not null
	var resp ListProductsResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Products == nil {
		t.Error("Products should be empty array, not null")
	}
	if len(resp.Products) != 0 {
		t.Errorf("expected 0 products, got %d", len(resp.Products))
	}
}

func TestHandler_ListProducts_InvalidActive(t *testing.T) {
	handler, _ := newTestHandler(t, &mockHandlerStore{})

	req := httptest.NewRequest(http.MethodGet, "/products?active=maybe", nil)
	w := serve(handler, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHandler_ListProducts_StoreError(t *testing.T) {
	st := &mockHandlerStore{
		listProductsFn: func(ctx context.Context, f store.ProductFilter) ([]domain.Product, int, error) {
			return nil, 0, errors.New("db error")
		},
	}
	handler, _ := newTestHandler(t, st)

	req := httptest.NewRequest(http.MethodGet, "/products", nil)
	w := serve(handler, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}

// --- GetProduct ---

func TestHandler_GetProduct_Success(t *testing.T) {
	st := &mockHandlerStore{
		getProductFn: func(ctx context.Context, id int64) (domain.Product, error) {
			if id != 42 {
				t.Errorf("id = %d, want 42", id)
			}
			return testProduct(42, "ABC-001"), nil
		},
	}
	handler, _ := newTestHandler(t, st)

	req := httptest.NewRequest(http.MethodGet, "/products/42", nil)
	w := serve(handler, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp ProductResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.ID != 42 || resp.SKU != "ABC-001" {
		t.Errorf("got %+v, want id 42 sku ABC-001", resp)
	}
}

func TestHandler_GetProduct_NotFound(t *testing.T) {
	handler, _ := newTestHandler(t, &mockHandlerStore{})

	req := httptest.NewRequest(http.MethodGet, "/products/42", nil)
	w := serve(handler, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestHandler_GetProduct_InvalidID(t *testing.T) {
	handler, _ := newTestHandler(t, &mockHandlerStore{})

	req := httptest.NewRequest(http.MethodGet, "/products/abc", nil)
	w := serve(handler, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

// --- UpdateProduct ---

func TestHandler_UpdateProduct_Success(t *testing.T) {
	st := &mockHandlerStore{
		updateProductFn: func(ctx context.Context, id int64, name, description string, active bool) (domain.Product, bool, error) {
			p := testProduct(id, "ABC-001")
			p.Name = name
			p.Description = description
			p.Active = active
			return p, true, nil
		},
	}
	handler, events := newTestHandler(t, st)

	body := `{"name": "Widget v2", "description": "Improved", "active": false}`
	req := httptest.NewRequest(http.MethodPut, "/products/42", strings.NewReader(body))
	w := serve(handler, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp ProductResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Name != "Widget v2" {
		t.Errorf("Name = %q, want Widget v2", resp.Name)
	}
	if resp.Active {
		t.Error("Active should be false")
	}

	published := events.events()
	if len(published) != 1 || published[0].kind != domain.EventProductUpdated {
		t.Fatalf("published = %+v, want one %s event", published, domain.EventProductUpdated)
	}
}

func TestHandler_UpdateProduct_NoChange(t *testing.T) {
	st := &mockHandlerStore{
		updateProductFn: func(ctx context.Context, id int64, name, description string, active bool) (domain.Product, bool, error) {
			return testProduct(id, "ABC-001"), false, nil
		},
	}
	handler, events := newTestHandler(t, st)

	body := `{"name": "Widget", "description": "A widget", "active": true}`
	req := httptest.NewRequest(http.MethodPut, "/products/42", strings.NewReader(body))
	w := serve(handler, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if len(events.events()) != 0 {
		t.Error("an update that changed nothing should publish no event")
	}
}

func TestHandler_UpdateProduct_MissingActive(t *testing.T) {
	handler, _ := newTestHandler(t, &mockHandlerStore{})

	body := `{"name": "Widget"}`
	req := httptest.NewRequest(http.MethodPut, "/products/42", strings.NewReader(body))
	w := serve(handler, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}

	var resp ErrorResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if !strings.Contains(resp.Error, "active") {
		t.Errorf("error should mention active: %q", resp.Error)
	}
}

func TestHandler_UpdateProduct_NotFound(t *testing.T) {
	handler, _ := newTestHandler(t, &mockHandlerStore{})

	body := `{"name": "Widget", "active": true}`
	req := httptest.NewRequest(http.MethodPut, "/products/42", strings.NewReader(body))
	w := serve(handler, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

// --- DeleteProduct ---

func TestHandler_DeleteProduct_Success(t *testing.T) {
	st := &mockHandlerStore{
		deleteProductFn: func(ctx context.Context, id int64) (domain.Product, error) {
			return testProduct(id, "ABC-001"), nil
		},
	}
	handler, events := newTestHandler(t, st)

	req := httptest.NewRequest(http.MethodDelete, "/products/42", nil)
	w := serve(handler, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", w.Code, w.Body.String())
	}

	published := events.events()
	if len(published) != 1 || published[0].kind != domain.EventProductDeleted {
		t.Fatalf("published = %+v, want one %s event", published, domain.EventProductDeleted)
	}
	if published[0].snapshot.ID != 42 {
		t.Errorf("snapshot ID = %d, want 42", published[0].snapshot.ID)
	}
}

func TestHandler_DeleteProduct_NotFound(t *testing.T) {
	handler, events := newTestHandler(t, &mockHandlerStore{})

	req := httptest.NewRequest(http.MethodDelete, "/products/42", nil)
	w := serve(handler, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
	if len(events.events()) != 0 {
		t.Error("no event should be published for a missing product")
	}
}

// --- DeleteAllProducts ---

func TestHandler_DeleteAllProducts_Success(t *testing.T) {
	st := &mockHandlerStore{
		deleteAllProductsFn: func(ctx context.Context) ([]domain.Product, error) {
			return []domain.Product{testProduct(1, "A-1"), testProduct(2, "A-2"), testProduct(3, "A-3")}, nil
		},
	}
	handler, events := newTestHandler(t, st)

	req := httptest.NewRequest(http.MethodDelete, "/products", nil)
	w := serve(handler, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp BulkDeleteResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Deleted != 3 {
		t.Errorf("Deleted = %d, want 3", resp.Deleted)
	}

	published := events.events()
	if len(published) != 3 {
		t.Fatalf("published %d events, want 3", len(published))
	}
	for _, ev := range published {
		if ev.kind != domain.EventProductDeleted {
			t.Errorf("event kind = %s, want %s", ev.kind, domain.EventProductDeleted)
		}
	}
}

func TestHandler_DeleteAllProducts_PublishError(t *testing.T) {
	st := &mockHandlerStore{
		deleteAllProductsFn: func(ctx context.Context) ([]domain.Product, error) {
			return []domain.Product{testProduct(1, "A-1"), testProduct(2, "A-2"), testProduct(3, "A-3")}, nil
		},
	}
	handler, events := newTestHandler(t, st)

	attempts := 0
	events.publishFn = func(ctx context.Context, kind domain.EventKind, snapshot domain.ProductSnapshot, occurredAt time.Time) (int64, error) {
		attempts++
		if snapshot.ID == 2 {
			return 0, errors.New("queue insert failed")
		}
		return int64(attempts), nil
	}

	req := httptest.NewRequest(http.MethodDelete, "/products", nil)
	w := serve(handler, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d: %s", w.Code, w.Body.String())
	}

	// One failed enqueue must not stop the remaining events
	if attempts != 3 {
		t.Errorf("publish attempts = %d, want 3", attempts)
	}
}
