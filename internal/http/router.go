package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func NewRouter(cartHandler *CartHandler, checkoutHandler *CheckoutHandler, log *zap.Logger, maxRequestBodySize int64) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(AccessLogMiddleware(log))
	r.Use(middleware.RequestSize(maxRequestBodySize))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartHandler.GetCart)
			r.Delete("/", cartHandler.ClearCart)
			r.Post("/items", cartHandler.AddItem)
			r.Put("/items/{key}", cartHandler.UpdateQuantity)
			r.Delete("/items/{key}", cartHandler.RemoveItem)
		})
		r.Route("/checkout", func(r chi.Router) {
			r.Get("/", checkoutHandler.GetCheckout)
			r.Post("/", checkoutHandler.RequestCheckout)
			r.Post("/acknowledge", checkoutHandler.Acknowledge)
			r.Post("/corrections", checkoutHandler.ApplyCorrections)
		})
		r.Post("/orders", checkoutHandler.PlaceOrder)
	})

	return r
}
