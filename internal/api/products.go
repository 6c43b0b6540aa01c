package api

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jayesh55555/Product-Importer/internal/domain"
	"github.com/jayesh55555/Product-Importer/internal/store"
)

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	active, err := parseActiveFilter(r.URL.Query().Get("active"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	filter := store.ProductFilter{
		SKU:         r.URL.Query().Get("sku"),
		Name:        r.URL.Query().Get("name"),
		Description: r.URL.Query().Get("description"),
		Active:      active,
		Limit:       limit,
		Offset:      offset,
	}

	products, total, err := h.store.ListProducts(r.Context(), filter)
	if err != nil {
		log.Printf("api: list products failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list products")
		return
	}

	resp := ListProductsResponse{
		Products: make([]ProductResponse, 0, len(products)),
		Total:    total,
	}
	for _, p := range products {
		resp.Products = append(resp.Products, productResponse(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if err := validateCreateProduct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	product, err := h.store.CreateProduct(r.Context(), domain.Product{
		SKU:         req.SKU,
		Name:        req.Name,
		Description: req.Description,
		Active:      active,
	})
	if errors.Is(err, store.ErrDuplicateKey) {
		writeError(w, http.StatusConflict, "sku already exists")
		return
	}
	if err != nil {
		log.Printf("api: create product failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create product")
		return
	}

	if err := h.publishEvent(r.Context(), domain.EventProductCreated, product.Snapshot(), product.CreatedAt); err != nil {
		log.Printf("api: event enqueue failed: product=%d kind=%s err=%v", product.ID, domain.EventProductCreated, err)
		writeError(w, http.StatusInternalServerError, "product created but event enqueue failed")
		return
	}

	writeJSON(w, http.StatusCreated, productResponse(product))
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	product, err := h.store.GetProduct(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	if err != nil {
		log.Printf("api: get product failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load product")
		return
	}

	writeJSON(w, http.StatusOK, productResponse(product))
}

// updateProduct is a full replace of the mutable fields. A write that changes
// nothing emits no event.
func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	var req UpdateProductRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if err := validateUpdateProduct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	product, changed, err := h.store.UpdateProduct(r.Context(), id, req.Name, req.Description, *req.Active)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	if err != nil {
		log.Printf("api: update product failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to update product")
		return
	}

	if changed {
		if err := h.publishEvent(r.Context(), domain.EventProductUpdated, product.Snapshot(), product.UpdatedAt); err != nil {
			log.Printf("api: event enqueue failed: product=%d kind=%s err=%v", product.ID, domain.EventProductUpdated, err)
			writeError(w, http.StatusInternalServerError, "product updated but event enqueue failed")
			return
		}
	}

	writeJSON(w, http.StatusOK, productResponse(product))
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	product, err := h.store.DeleteProduct(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	if err != nil {
		log.Printf("api: delete product failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to delete product")
		return
	}

	if err := h.publishEvent(r.Context(), domain.EventProductDeleted, product.Snapshot(), time.Now().UTC()); err != nil {
		log.Printf("api: event enqueue failed: product=%d kind=%s err=%v", product.ID, domain.EventProductDeleted, err)
		writeError(w, http.StatusInternalServerError, "product deleted but event enqueue failed")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// deleteAllProducts wipes the catalog and emits one deletion event per
// removed product. Enqueue failures do not stop the remaining events; any
// failure still fails the request so the caller knows the stream is short.
func (h *Handler) deleteAllProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.store.DeleteAllProducts(r.Context())
	if err != nil {
		log.Printf("api: delete all products failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to delete products")
		return
	}

	occurredAt := time.Now().UTC()
	failed := 0
	for _, p := range products {
		if err := h.publishEvent(r.Context(), domain.EventProductDeleted, p.Snapshot(), occurredAt); err != nil {
			log.Printf("api: event enqueue failed: product=%d kind=%s err=%v", p.ID, domain.EventProductDeleted, err)
			failed++
		}
	}
	if failed > 0 {
		writeError(w, http.StatusInternalServerError,
			fmt.Sprintf("%d products deleted but %d deletion events not queued", len(products), failed))
		return
	}

	writeJSON(w, http.StatusOK, BulkDeleteResponse{Deleted: len(products)})
}

// parseActiveFilter maps the ?active= query parameter onto the tri-state
// filter: unset matches both, otherwise strictly "true" or "false".
func parseActiveFilter(raw string) (*bool, error) {
	switch raw {
	case "":
		return nil, nil
	case "true":
		v := true
		return &v, nil
	case "false":
		v := false
		return &v, nil
	default:
		return nil, fmt.Errorf("invalid active filter %q", raw)
	}
}

func productResponse(p domain.Product) ProductResponse {
	return ProductResponse{
		ID:          p.ID,
		SKU:         p.SKU,
		Name:        p.Name,
		Description: p.Description,
		Active:      p.Active,
		CreatedAt:   formatTime(p.CreatedAt),
		UpdatedAt:   formatTime(p.UpdatedAt),
	}
}
