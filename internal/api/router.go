package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// Routes builds the full HTTP route tree for the service.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)

	r.Get("/health", h.healthCheck)

	r.Route("/imports", func(r chi.Router) {
		r.Post("/", h.createImport)
		r.Get("/{id}", h.getImport)
		r.Post("/{id}/cancel", h.cancelImport)
	})

	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.listProducts)
		r.Post("/", h.createProduct)
		r.Delete("/", h.deleteAllProducts)
		r.Get("/{id}", h.getProduct)
		r.Put("/{id}", h.updateProduct)
		r.Delete("/{id}", h.deleteProduct)
	})

	r.Route("/webhooks", func(r chi.Router) {
		r.Get("/", h.listWebhooks)
		r.Post("/", h.createWebhook)
		r.Put("/{id}", h.updateWebhook)
		r.Delete("/{id}", h.deleteWebhook)
		r.Post("/{id}/test", h.testWebhook)
	})

	return r
}
