package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/example/grocery-ordering/internal/api/middleware"
	"github.com/example/grocery-ordering/internal/domain/cart"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// CartService is satisfied by *cart.Service.
type CartService interface {
	GetOrCreateCart(ctx context.Context, userID string) (*cart.Cart, error)
	AddItem(ctx context.Context, userID string, productID int64, quantity int) (*cart.Cart, error)
	UpdateCartItem(ctx context.Context, userID string, productID int64, quantity int) (*cart.Cart, error)
	RemoveItem(ctx context.Context, userID string, productID int64) (*cart.Cart, error)
	ClearCart(ctx context.Context, userID string) (*cart.Cart, error)
}

type CartHandlers struct {
	carts  CartService
	logger *zap.Logger
}

func NewCartHandlers(carts CartService, logger *zap.Logger) *CartHandlers {
	return &CartHandlers{carts: carts, logger: logger.Named("api")}
}

type AddItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type UpdateItemRequest struct {
	Quantity int `json:"quantity"`
}

func (h *CartHandlers) GetCart(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	c, err := h.carts.GetOrCreateCart(r.Context(), id.UserID)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *CartHandlers) AddItem(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req AddItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	c, err := h.carts.AddItem(r.Context(), id.UserID, req.ProductID, req.Quantity)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *CartHandlers) UpdateItem(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	var req UpdateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	c, err := h.carts.UpdateCartItem(r.Context(), id.UserID, productID, req.Quantity)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *CartHandlers) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	c, err := h.carts.RemoveItem(r.Context(), id.UserID, productID)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *CartHandlers) ClearCart(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	c, err := h.carts.ClearCart(r.Context(), id.UserID)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// requireIdentity writes a 401 and returns false when the request carries
// no authenticated caller.
func requireIdentity(w http.ResponseWriter, r *http.Request) (middleware.Identity, bool) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
	}
	return id, ok
}

func productIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "productId"), 10, 64)
	if err != nil || productID <= 0 {
		badRequest(w, "productId must be a positive integer")
		return 0, false
	}
	return productID, true
}
