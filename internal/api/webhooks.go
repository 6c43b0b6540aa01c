package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/jayesh55555/Product-Importer/internal/domain"
	"github.com/jayesh55555/Product-Importer/internal/store"
)

func (h *Handler) listWebhooks(w http.ResponseWriter, r *http.Request) {
	subs, err := h.store.ListSubscribers(r.Context())
	if err != nil {
		log.Printf("api: list webhooks failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list webhooks")
		return
	}

	resp := ListWebhooksResponse{Webhooks: make([]WebhookResponse, 0, len(subs))}
	for _, sub := range subs {
		resp.Webhooks = append(resp.Webhooks, webhookResponse(sub))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) createWebhook(w http.ResponseWriter, r *http.Request) {
	var req CreateWebhookRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if err := validateCreateWebhook(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	sub, err := h.store.CreateSubscriber(r.Context(), domain.Subscriber{
		Name:      req.Name,
		TargetURL: req.TargetURL,
		EventKind: domain.EventKind(req.EventKind),
		Secret:    req.Secret,
		Active:    active,
	})
	if err != nil {
		log.Printf("api: create webhook failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create webhook")
		return
	}

	writeJSON(w, http.StatusCreated, webhookResponse(sub))
}

// updateWebhook is a full replace. Omitting the secret clears it.
func (h *Handler) updateWebhook(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid webhook id")
		return
	}

	var req CreateWebhookRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if err := validateCreateWebhook(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	sub, err := h.store.UpdateSubscriber(r.Context(), domain.Subscriber{
		ID:        id,
		Name:      req.Name,
		TargetURL: req.TargetURL,
		EventKind: domain.EventKind(req.EventKind),
		Secret:    req.Secret,
		Active:    active,
	})
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "webhook not found")
		return
	}
	if err != nil {
		log.Printf("api: update webhook failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to update webhook")
		return
	}

	writeJSON(w, http.StatusOK, webhookResponse(sub))
}

func (h *Handler) deleteWebhook(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid webhook id")
		return
	}

	err = h.store.DeleteSubscriber(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "webhook not found")
		return
	}
	if err != nil {
		log.Printf("api: delete webhook failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to delete webhook")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// testWebhook fires one synchronous test delivery outside the event pipeline.
// The response reports the raw outcome; nothing is recorded in the ledger.
func (h *Handler) testWebhook(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid webhook id")
		return
	}

	sub, err := h.store.GetSubscriber(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "webhook not found")
		return
	}
	if err != nil {
		log.Printf("api: get webhook failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load webhook")
		return
	}

	if h.tester == nil {
		writeError(w, http.StatusServiceUnavailable, "test delivery unavailable")
		return
	}

	status, err := h.tester.SendTest(r.Context(), sub)
	if err != nil {
		writeJSON(w, http.StatusOK, WebhookTestResponse{Delivered: false, StatusCode: 0, Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, WebhookTestResponse{
		Delivered:  status >= 200 && status < 300,
		StatusCode: status,
	})
}

func webhookResponse(sub domain.Subscriber) WebhookResponse {
	return WebhookResponse{
		ID:        sub.ID.String(),
		Name:      sub.Name,
		TargetURL: sub.TargetURL,
		EventKind: string(sub.EventKind),
		Active:    sub.Active,
		CreatedAt: formatTime(sub.CreatedAt),
		UpdatedAt: formatTime(sub.UpdatedAt),
	}
}
