package api

import (
	"net/http"
	"time"

	"github.com/example/grocery-ordering/internal/api/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Service        string
	Verifier       middleware.TokenVerifier
	Logger         *zap.Logger
	RequestTimeout time.Duration
}

// NewCartRouter serves the cart API. Every cart route needs an identity.
func NewCartRouter(h *CartHandlers, cfg RouterConfig) http.Handler {
	r := newBaseRouter(cfg)

	r.Route("/api/cart", func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(cfg.Verifier))
		r.Get("/", h.GetCart)
		r.Delete("/", h.ClearCart)
		r.Post("/items", h.AddItem)
		r.Put("/items/{productId}", h.UpdateItem)
		r.Delete("/items/{productId}", h.RemoveItem)
	})

	return otelhttp.NewHandler(r, cfg.Service)
}

// NewOrderRouter serves the order API. Status administration is not gated
// by identity.
func NewOrderRouter(h *OrderHandlers, cfg RouterConfig) http.Handler {
	r := newBaseRouter(cfg)

	r.Route("/api/orders", func(r chi.Router) {
		r.Get("/status/{status}", h.GetOrdersByStatus)
		r.Put("/{id}/status", h.UpdateStatus)

		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(cfg.Verifier))
			r.Post("/", h.PlaceOrder)
			r.Get("/", h.GetOrders)
			r.Get("/{id}", h.GetOrder)
		})
	})

	return otelhttp.NewHandler(r, cfg.Service)
}

func newBaseRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.AccessLog(cfg.Logger))
	r.Use(chimw.Recoverer)
	if cfg.RequestTimeout > 0 {
		r.Use(chimw.Timeout(cfg.RequestTimeout))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": cfg.Service})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, "not_found", "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})

	return r
}
