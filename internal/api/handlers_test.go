package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/grocery-ordering/internal/apperr"
	"github.com/example/grocery-ordering/internal/auth"
	"github.com/example/grocery-ordering/internal/domain/cart"
	"github.com/example/grocery-ordering/internal/domain/order"
	"github.com/example/grocery-ordering/internal/domain/product"
	remotemocks "github.com/example/grocery-ordering/internal/infrastructure/remote/mocks"
	"github.com/example/grocery-ordering/internal/infrastructure/store/mocks"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret-key-for-testing-purposes"

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func token(t *testing.T, userID, email string) string {
	t.Helper()
	tok, _, err := auth.NewJWTService(testSecret, time.Hour).GenerateAccessToken(userID, email)
	require.NoError(t, err)
	return tok
}

func routerConfig(service string) RouterConfig {
	return RouterConfig{
		Service:        service,
		Verifier:       auth.NewJWTService(testSecret, time.Hour),
		Logger:         zap.NewNop(),
		RequestTimeout: 5 * time.Second,
	}
}

func do(t *testing.T, h http.Handler, method, path, tok string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

type cartEnv struct {
	handler http.Handler
	repo    *mocks.MockCartRepository
	catalog *remotemocks.MockCatalog
}

func newCartEnv() *cartEnv {
	env := &cartEnv{
		repo: mocks.NewMockCartRepository(),
		catalog: remotemocks.NewMockCatalog(
			&product.Product{ID: 1, Name: "Apples", Unit: "kg", Price: dec("2.50"), StockQuantity: 10, IsActive: true},
		),
	}
	svc := cart.NewService(env.repo, env.catalog, zap.NewNop(), cart.WithClock(func() time.Time { return fixedNow }))
	env.handler = NewCartRouter(NewCartHandlers(svc, zap.NewNop()), routerConfig("cart-service"))
	return env
}

// ============================================
// Cart API
// ============================================

func TestCartAPI_RequiresIdentity(t *testing.T) {
	env := newCartEnv()

	rec := do(t, env.handler, http.MethodGet, "/api/cart", "", nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decodeError(t, rec).Code)
	assert.Equal(t, 0, env.repo.CreateCount())
}

func TestCartAPI_GetCreatesEmptyCart(t *testing.T) {
	env := newCartEnv()

	rec := do(t, env.handler, http.MethodGet, "/api/cart", token(t, "user-1", "u@example.com"), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var c cart.Cart
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &c))
	assert.Equal(t, "user-1", c.UserID)
	assert.Empty(t, c.Items)
}

func TestCartAPI_AddUpdateRemoveClear(t *testing.T) {
	env := newCartEnv()
	tok := token(t, "user-1", "u@example.com")

	rec := do(t, env.handler, http.MethodPost, "/api/cart/items", tok, AddItemRequest{ProductID: 1, Quantity: 2})
	require.Equal(t, http.StatusOK, rec.Code)
	var c cart.Cart
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &c))
	require.Len(t, c.Items, 1)
	assert.True(t, c.TotalAmount.Equal(dec("5.00")))

	rec = do(t, env.handler, http.MethodPut, "/api/cart/items/1", tok, UpdateItemRequest{Quantity: 4})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &c))
	assert.Equal(t, 4, c.Items[0].Quantity)
	assert.True(t, c.TotalAmount.Equal(dec("10.00")))

	rec = do(t, env.handler, http.MethodDelete, "/api/cart/items/1", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &c))
	assert.Empty(t, c.Items)

	rec = do(t, env.handler, http.MethodDelete, "/api/cart", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &c))
	assert.True(t, c.TotalAmount.IsZero())
}

func TestCartAPI_AddItem_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{"beyond stock", AddItemRequest{ProductID: 1, Quantity: 11}, http.StatusBadRequest, "validation_failed"},
		{"unknown product", AddItemRequest{ProductID: 99, Quantity: 1}, http.StatusBadRequest, "validation_failed"},
		{"zero quantity", AddItemRequest{ProductID: 1, Quantity: 0}, http.StatusBadRequest, "validation_failed"},
		{"malformed body", "not-an-object", http.StatusBadRequest, "validation_failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newCartEnv()

			rec := do(t, env.handler, http.MethodPost, "/api/cart/items", token(t, "user-1", ""), tt.body)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decodeError(t, rec).Code)
			assert.Equal(t, 0, env.repo.SaveCount())
		})
	}
}

func TestCartAPI_CatalogOutageIsNotABusinessRejection(t *testing.T) {
	env := newCartEnv()
	env.catalog.Err = apperr.Unavailable("catalog service", errors.New("connection refused"))

	rec := do(t, env.handler, http.MethodPost, "/api/cart/items", token(t, "user-1", ""), AddItemRequest{ProductID: 1, Quantity: 1})

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "dependency_unavailable", decodeError(t, rec).Code)
}

func TestCartAPI_UpdateItem_NotInCart(t *testing.T) {
	env := newCartEnv()
	tok := token(t, "user-1", "")
	require.Equal(t, http.StatusOK, do(t, env.handler, http.MethodGet, "/api/cart", tok, nil).Code)

	rec := do(t, env.handler, http.MethodPut, "/api/cart/items/1", tok, UpdateItemRequest{Quantity: 1})

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCartAPI_BadProductID(t *testing.T) {
	env := newCartEnv()

	rec := do(t, env.handler, http.MethodDelete, "/api/cart/items/abc", token(t, "user-1", ""), nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCartAPI_ClearWithoutCart(t *testing.T) {
	env := newCartEnv()

	rec := do(t, env.handler, http.MethodDelete, "/api/cart", token(t, "user-1", ""), nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCartAPI_ConcurrentModification(t *testing.T) {
	env := newCartEnv()
	tok := token(t, "user-1", "")
	require.Equal(t, http.StatusOK, do(t, env.handler, http.MethodGet, "/api/cart", tok, nil).Code)
	env.repo.SaveErr = cart.ErrConcurrentModification

	rec := do(t, env.handler, http.MethodPost, "/api/cart/items", tok, AddItemRequest{ProductID: 1, Quantity: 1})

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict", decodeError(t, rec).Code)
}

func TestHealth(t *testing.T) {
	env := newCartEnv()

	rec := do(t, env.handler, http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "cart-service")
}

// ============================================
// Order API
// ============================================

type orderEnv struct {
	handler http.Handler
	repo    *mocks.MockOrderRepository
	carts   *remotemocks.MockCartLookup
}

func newOrderEnv(opts ...order.Option) *orderEnv {
	env := &orderEnv{
		repo: mocks.NewMockOrderRepository(),
		carts: remotemocks.NewMockCartLookup(&order.CartSnapshot{
			UserID: "user-1",
			Items: []order.CartSnapshotLine{
				{ProductID: 1, ProductName: "Bread", ProductUnit: "loaf", Quantity: 2, UnitPrice: dec("3.50")},
				{ProductID: 2, ProductName: "Cheese", ProductUnit: "kg", Quantity: 1, UnitPrice: dec("10.00")},
			},
			TotalAmount: dec("17.00"),
		}),
	}
	opts = append([]order.Option{order.WithClock(func() time.Time { return fixedNow })}, opts...)
	svc := order.NewService(env.repo, env.carts, zap.NewNop(), opts...)
	env.handler = NewOrderRouter(NewOrderHandlers(svc, zap.NewNop()), routerConfig("order-service"))
	return env
}

func (env *orderEnv) seed(id, userID string, status order.Status, createdAt time.Time) {
	env.repo.Put(&order.Order{
		ID:              id,
		UserID:          userID,
		Status:          status,
		TotalAmount:     dec("1.00"),
		ShippingAddress: "addr",
		CreatedAt:       createdAt,
		UpdatedAt:       createdAt,
	})
}

func TestOrderAPI_PlaceOrder(t *testing.T) {
	env := newOrderEnv()
	tok := token(t, "user-1", "user1@example.com")

	rec := do(t, env.handler, http.MethodPost, "/api/orders", tok, PlaceOrderRequest{ShippingAddress: "1 Market St"})

	require.Equal(t, http.StatusCreated, rec.Code)
	var o order.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &o))
	assert.Equal(t, order.StatusPending, o.Status)
	assert.True(t, o.TotalAmount.Equal(dec("17.00")))
	assert.Len(t, o.Items, 2)
	assert.Equal(t, []string{tok}, env.carts.Credentials)
}

func TestOrderAPI_PlaceOrder_Failures(t *testing.T) {
	tests := []struct {
		name    string
		address string
		cartErr error
		status  int
		code    string
	}{
		{"blank address", "  ", nil, http.StatusBadRequest, "validation_failed"},
		{"cart service rejects credential", "addr", apperr.New(apperr.ErrUnauthorized, "cart service rejected credential"), http.StatusUnauthorized, "unauthorized"},
		{"cart service down", "addr", apperr.Unavailable("cart service", errors.New("connection refused")), http.StatusServiceUnavailable, "dependency_unavailable"},
		{"cart service timeout", "addr", apperr.Unavailable("cart service", context.DeadlineExceeded), http.StatusGatewayTimeout, "dependency_timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newOrderEnv()
			env.carts.Err = tt.cartErr

			rec := do(t, env.handler, http.MethodPost, "/api/orders", token(t, "user-1", ""), PlaceOrderRequest{ShippingAddress: tt.address})

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decodeError(t, rec).Code)
			assert.Equal(t, 0, env.repo.Count())
		})
	}
}

func TestOrderAPI_PlaceOrder_EmptyCart(t *testing.T) {
	env := newOrderEnv()
	env.carts.Snapshot = &order.CartSnapshot{UserID: "user-1", TotalAmount: decimal.Zero}

	rec := do(t, env.handler, http.MethodPost, "/api/orders", token(t, "user-1", ""), PlaceOrderRequest{ShippingAddress: "addr"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, env.repo.Count())
}

func TestOrderAPI_PlaceOrder_RequiresIdentity(t *testing.T) {
	env := newOrderEnv()

	rec := do(t, env.handler, http.MethodPost, "/api/orders", "", PlaceOrderRequest{ShippingAddress: "addr"})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, env.carts.Credentials)
}

func TestOrderAPI_GetOrders_Paging(t *testing.T) {
	env := newOrderEnv()
	for i, id := range []string{"o1", "o2", "o3"} {
		env.seed(id, "user-1", order.StatusPending, fixedNow.Add(time.Duration(i)*time.Minute))
	}
	env.seed("other", "user-2", order.StatusPending, fixedNow)

	rec := do(t, env.handler, http.MethodGet, "/api/orders?page=0&size=2", token(t, "user-1", ""), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var page order.OrderPage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Orders, 2)
	assert.Equal(t, "o3", page.Orders[0].ID)
	assert.Equal(t, 3, page.TotalElements)
	assert.Equal(t, 2, page.TotalPages)
}

func TestOrderAPI_GetOrders_BadPage(t *testing.T) {
	env := newOrderEnv()
	tok := token(t, "user-1", "")

	assert.Equal(t, http.StatusBadRequest, do(t, env.handler, http.MethodGet, "/api/orders?page=x", tok, nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, env.handler, http.MethodGet, "/api/orders?page=-1", tok, nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, env.handler, http.MethodGet, "/api/orders?size=0", tok, nil).Code)
}

func TestOrderAPI_GetOrder_Ownership(t *testing.T) {
	env := newOrderEnv()
	env.seed("mine", "user-1", order.StatusPending, fixedNow)
	env.seed("theirs", "user-2", order.StatusPending, fixedNow)
	tok := token(t, "user-1", "")

	assert.Equal(t, http.StatusOK, do(t, env.handler, http.MethodGet, "/api/orders/mine", tok, nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, env.handler, http.MethodGet, "/api/orders/theirs", tok, nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, env.handler, http.MethodGet, "/api/orders/missing", tok, nil).Code)
}

func TestOrderAPI_UpdateStatus(t *testing.T) {
	env := newOrderEnv()
	env.seed("o1", "user-1", order.StatusPending, fixedNow)

	rec := do(t, env.handler, http.MethodPut, "/api/orders/o1/status?status=confirmed", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var o order.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &o))
	assert.Equal(t, order.StatusConfirmed, o.Status)
}

func TestOrderAPI_UpdateStatus_Rejections(t *testing.T) {
	env := newOrderEnv(order.WithTransitionPolicy(order.StrictTransitions{}))
	env.seed("o1", "user-1", order.StatusDelivered, fixedNow)

	assert.Equal(t, http.StatusBadRequest, do(t, env.handler, http.MethodPut, "/api/orders/o1/status?status=LOST", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, env.handler, http.MethodPut, "/api/orders/o1/status?status=PENDING", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, env.handler, http.MethodPut, "/api/orders/nope/status?status=SHIPPED", "", nil).Code)
}

func TestOrderAPI_GetOrdersByStatus(t *testing.T) {
	env := newOrderEnv()
	env.seed("o1", "user-1", order.StatusShipped, fixedNow)
	env.seed("o2", "user-2", order.StatusPending, fixedNow)

	rec := do(t, env.handler, http.MethodGet, "/api/orders/status/SHIPPED", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var orders []*order.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &orders))
	require.Len(t, orders, 1)
	assert.Equal(t, "o1", orders[0].ID)

	assert.Equal(t, http.StatusBadRequest, do(t, env.handler, http.MethodGet, "/api/orders/status/LOST", "", nil).Code)
}
