package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestLogger(h.log))
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, h.log, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(BearerAuth(h.log))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.GetCart)
			r.Post("/items", h.AddItem)
			r.Put("/items/{seller_id}/{product_id}", h.UpdateQuantity)
			r.Delete("/items/{seller_id}/{product_id}", h.RemoveItem)
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Get("/session", h.GetSession)
			r.Post("/address", h.SubmitAddress)
			r.Post("/shipping", h.SelectShipping)
			r.Post("/confirm", h.Confirm)
			r.Get("/{step}", h.EnterStep)
		})

		r.Route("/address", func(r chi.Router) {
			r.Get("/states", h.ListStates)
			r.Post("/postal-code", h.TypePostalCode)
			r.Get("/resolution", h.GetResolution)
			r.Post("/state", h.SelectState)
			r.Post("/city", h.SelectCity)
			r.Post("/neighborhood", h.SelectNeighborhood)
		})

		r.Delete("/session", h.EndSession)
	})

	return otelhttp.NewHandler(r, "checkout-api")
}

func contextWithTimeout(r *http.Request, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), timeout)
}
