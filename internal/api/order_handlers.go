package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/example/grocery-ordering/internal/domain/order"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// OrderService is satisfied by *order.Service.
type OrderService interface {
	PlaceOrder(ctx context.Context, cmd order.PlaceOrder) (*order.Order, error)
	GetUserOrders(ctx context.Context, userID string, page order.Page) (*order.OrderPage, error)
	GetOrderByID(ctx context.Context, orderID, userID string) (*order.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID string, status order.Status) (*order.Order, error)
	GetOrdersByStatus(ctx context.Context, status order.Status) ([]*order.Order, error)
}

type OrderHandlers struct {
	orders OrderService
	logger *zap.Logger
}

func NewOrderHandlers(orders OrderService, logger *zap.Logger) *OrderHandlers {
	return &OrderHandlers{orders: orders, logger: logger.Named("api")}
}

type PlaceOrderRequest struct {
	ShippingAddress string `json:"shipping_address"`
}

func (h *OrderHandlers) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	o, err := h.orders.PlaceOrder(r.Context(), order.PlaceOrder{
		UserID:          id.UserID,
		ShippingAddress: req.ShippingAddress,
		Credential:      id.Credential,
		ContactEmail:    id.Email,
	})
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, o)
}

func (h *OrderHandlers) GetOrders(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	page, ok := pageParams(w, r)
	if !ok {
		return
	}

	result, err := h.orders.GetUserOrders(r.Context(), id.UserID, page)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *OrderHandlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	o, err := h.orders.GetOrderByID(r.Context(), chi.URLParam(r, "id"), id.UserID)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

func (h *OrderHandlers) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	status, err := order.ParseStatus(r.URL.Query().Get("status"))
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	o, err := h.orders.UpdateOrderStatus(r.Context(), chi.URLParam(r, "id"), status)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

func (h *OrderHandlers) GetOrdersByStatus(w http.ResponseWriter, r *http.Request) {
	status, err := order.ParseStatus(chi.URLParam(r, "status"))
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	orders, err := h.orders.GetOrdersByStatus(r.Context(), status)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

// pageParams reads ?page and ?size, defaulting to the first page of
// DefaultPageSize. Range checks are left to the service.
func pageParams(w http.ResponseWriter, r *http.Request) (order.Page, bool) {
	page := order.Page{Number: 0, Size: order.DefaultPageSize}
	q := r.URL.Query()

	if raw := q.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			badRequest(w, "page must be an integer")
			return page, false
		}
		page.Number = n
	}
	if raw := q.Get("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			badRequest(w, "size must be an integer")
			return page, false
		}
		page.Size = n
	}
	return page, true
}
