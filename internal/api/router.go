package api

import (
	"context"
	"net/http"

	"github.com/example/farm-cart/internal/api/middleware"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Handlers *Handlers
	// Metrics is served at /metrics when set
	Metrics http.Handler
	// Health backs /healthz; nil always reports ok
	Health func(ctx context.Context) error
	Logger *zap.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if cfg.Health != nil {
			if err := cfg.Health(req.Context()); err != nil {
				respondError(w, "unhealthy", http.StatusServiceUnavailable)
				return
			}
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics).Methods(http.MethodGet)
	}

	// Cart (identity required)
	cart := r.PathPrefix("/cart").Subrouter()
	cart.Use(middleware.IdentityMiddleware)
	cart.HandleFunc("", cfg.Handlers.GetCart).Methods(http.MethodGet)
	cart.HandleFunc("", cfg.Handlers.ClearCart).Methods(http.MethodDelete)
	cart.HandleFunc("/items", cfg.Handlers.AddToCart).Methods(http.MethodPost)
	cart.HandleFunc("/items/{productID}", cfg.Handlers.UpdateCartItem).Methods(http.MethodPut)
	cart.HandleFunc("/items/{productID}", cfg.Handlers.RemoveFromCart).Methods(http.MethodDelete)

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	r.Use(middleware.Logging(logger))
	return r
}
