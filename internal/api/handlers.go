package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/example/farm-cart/internal/api/middleware"
	"github.com/example/farm-cart/internal/domain/cart"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// CartService is the cart use-case surface the handlers depend on
type CartService interface {
	AddToCart(ctx context.Context, userID string, items []cart.ItemRequest, privileged bool) (*cart.AddResult, error)
	GetCart(ctx context.Context, userID string) (*cart.Summary, error)
	UpdateCartItem(ctx context.Context, userID, productID string, quantity int) (*cart.UpdateResult, error)
	RemoveFromCart(ctx context.Context, userID, productID string) (*cart.UpdateResult, error)
	ClearCart(ctx context.Context, userID string) (*cart.ClearResult, error)
}

type Handlers struct {
	cartSvc  CartService
	validate *validator.Validate
	logger   *zap.Logger
}

func NewHandlers(cartSvc CartService, logger *zap.Logger) *Handlers {
	return &Handlers{
		cartSvc:  cartSvc,
		validate: validator.New(),
		logger:   logger.Named("api"),
	}
}

// Cart Handlers

func (h *Handlers) AddToCart(w http.ResponseWriter, r *http.Request) {
	id := identity(r)

	var req addItemsRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.cartSvc.AddToCart(r.Context(), id.UserID, req.toItemRequests(), id.Privileged)
	if err != nil {
		h.internalError(w, "add to cart", err)
		return
	}

	respondJSON(w, http.StatusOK, newAddResultResponse(result))
}

func (h *Handlers) GetCart(w http.ResponseWriter, r *http.Request) {
	id := identity(r)

	summary, err := h.cartSvc.GetCart(r.Context(), id.UserID)
	if err != nil {
		h.internalError(w, "get cart", err)
		return
	}

	respondJSON(w, http.StatusOK, newCartResponse(summary))
}

func (h *Handlers) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	productID := mux.Vars(r)["productID"]

	var req updateItemRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.cartSvc.UpdateCartItem(r.Context(), id.UserID, productID, *req.Quantity)
	if err != nil {
		h.internalError(w, "update cart item", err)
		return
	}

	respondJSON(w, http.StatusOK, newUpdateResultResponse(result))
}

func (h *Handlers) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	productID := mux.Vars(r)["productID"]

	result, err := h.cartSvc.RemoveFromCart(r.Context(), id.UserID, productID)
	if err != nil {
		h.internalError(w, "remove from cart", err)
		return
	}

	respondJSON(w, http.StatusOK, newUpdateResultResponse(result))
}

func (h *Handlers) ClearCart(w http.ResponseWriter, r *http.Request) {
	id := identity(r)

	result, err := h.cartSvc.ClearCart(r.Context(), id.UserID)
	if err != nil {
		h.internalError(w, "clear cart", err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// Helper functions

// decode reads a JSON body into dst and validates it, answering 400 on failure
func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			respondError(w, "request body is required", http.StatusBadRequest)
			return false
		}
		respondError(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func (h *Handlers) internalError(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op+" failed", zap.Error(err))
	respondError(w, "internal error", http.StatusInternalServerError)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, status, map[string]string{"error": message})
}

func identity(r *http.Request) middleware.Identity {
	id, _ := middleware.GetIdentity(r.Context())
	return id
}
