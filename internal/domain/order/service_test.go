package order_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/example/grocery-ordering/internal/apperr"
	"github.com/example/grocery-ordering/internal/domain/order"
	remotemocks "github.com/example/grocery-ordering/internal/infrastructure/remote/mocks"
	"github.com/example/grocery-ordering/internal/infrastructure/store/mocks"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// two lines: 2 x 3.50 + 1 x 10.00 = 17.00
func groceryCart() *order.CartSnapshot {
	return &order.CartSnapshot{
		UserID: "user-1",
		Items: []order.CartSnapshotLine{
			{ProductID: 1, ProductName: "Bread", ProductUnit: "loaf", Quantity: 2, UnitPrice: dec("3.50")},
			{ProductID: 2, ProductName: "Cheese", ProductUnit: "kg", Quantity: 1, UnitPrice: dec("10.00")},
		},
		TotalAmount: dec("17.00"),
	}
}

type testEnv struct {
	service   *order.Service
	repo      *mocks.MockOrderRepository
	carts     *remotemocks.MockCartLookup
	publisher *mocks.MockEventPublisher
}

func newTestOrderService(opts ...order.Option) *testEnv {
	env := &testEnv{
		repo:      mocks.NewMockOrderRepository(),
		carts:     remotemocks.NewMockCartLookup(groceryCart()),
		publisher: mocks.NewMockEventPublisher(),
	}
	opts = append([]order.Option{
		order.WithClock(func() time.Time { return fixedNow }),
		order.WithPublisher(env.publisher),
	}, opts...)
	env.service = order.NewService(env.repo, env.carts, zap.NewNop(), opts...)
	return env
}

func placeCmd() order.PlaceOrder {
	return order.PlaceOrder{
		UserID:          "user-1",
		ShippingAddress: "1 Market St",
		Credential:      "token-abc",
		ContactEmail:    "user1@example.com",
	}
}

func seedOrder(repo *mocks.MockOrderRepository, id, userID string, status order.Status, createdAt time.Time) *order.Order {
	o := &order.Order{
		ID:              id,
		UserID:          userID,
		Status:          status,
		TotalAmount:     dec("1.00"),
		ShippingAddress: "addr",
		CreatedAt:       createdAt,
		UpdatedAt:       createdAt,
	}
	repo.Put(o)
	return o
}

// ============================================
// PlaceOrder Tests
// ============================================

func TestService_PlaceOrder_Success(t *testing.T) {
	env := newTestOrderService()

	o, err := env.service.PlaceOrder(context.Background(), placeCmd())

	require.NoError(t, err)
	assert.NotEmpty(t, o.ID)
	assert.Equal(t, "user-1", o.UserID)
	assert.Equal(t, order.StatusPending, o.Status)
	assert.Equal(t, "1 Market St", o.ShippingAddress)
	assert.True(t, dec("17.00").Equal(o.TotalAmount))
	assert.Equal(t, fixedNow, o.CreatedAt)

	require.Len(t, o.Items, 2)
	assert.Equal(t, "Bread", o.Items[0].ProductName)
	assert.True(t, dec("7.00").Equal(o.Items[0].TotalPrice))
	assert.True(t, dec("10.00").Equal(o.Items[1].TotalPrice))

	require.Len(t, env.repo.CreateCalls, 1)
	assert.Equal(t, o.ID, env.repo.CreateCalls[0].ID)
}

func TestService_PlaceOrder_ForwardsCredentialUnchanged(t *testing.T) {
	env := newTestOrderService()

	_, err := env.service.PlaceOrder(context.Background(), placeCmd())

	require.NoError(t, err)
	assert.Equal(t, []string{"token-abc"}, env.carts.Credentials)
}

func TestService_PlaceOrder_PublishesOrderPlaced(t *testing.T) {
	env := newTestOrderService()

	o, err := env.service.PlaceOrder(context.Background(), placeCmd())

	require.NoError(t, err)
	calls := env.publisher.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, order.EventOrderPlaced, calls[0].EventType)
	assert.Equal(t, order.AggregateType, calls[0].AggregateType)
	assert.Equal(t, o.ID, calls[0].AggregateID)

	data := calls[0].Data.(order.OrderPlaced)
	assert.Equal(t, "user1@example.com", data.ContactEmail)
	assert.Len(t, data.Items, 2)
}

func TestService_PlaceOrder_PublishFailureDoesNotFailOrder(t *testing.T) {
	env := newTestOrderService()
	env.publisher.PublishErr = errors.New("broker down")

	o, err := env.service.PlaceOrder(context.Background(), placeCmd())

	require.NoError(t, err)
	assert.Equal(t, 1, env.repo.Count())
	assert.NotEmpty(t, o.ID)
}

func TestService_PlaceOrder_EmptyCart(t *testing.T) {
	env := newTestOrderService()
	env.carts.Snapshot = &order.CartSnapshot{UserID: "user-1", TotalAmount: decimal.Zero}

	_, err := env.service.PlaceOrder(context.Background(), placeCmd())

	assert.ErrorIs(t, err, order.ErrEmptyCart)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, 0, env.repo.Count())
	assert.Empty(t, env.publisher.Calls())
}

func TestService_PlaceOrder_Validation(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*order.PlaceOrder)
		expected error
	}{
		{"missing user", func(c *order.PlaceOrder) { c.UserID = "" }, order.ErrMissingUser},
		{"missing credential", func(c *order.PlaceOrder) { c.Credential = "" }, order.ErrMissingCredential},
		{"missing address", func(c *order.PlaceOrder) { c.ShippingAddress = "" }, order.ErrShippingAddressRequired},
		{"blank address", func(c *order.PlaceOrder) { c.ShippingAddress = "   " }, order.ErrShippingAddressRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestOrderService()
			cmd := placeCmd()
			tt.mutate(&cmd)

			_, err := env.service.PlaceOrder(context.Background(), cmd)

			assert.ErrorIs(t, err, tt.expected)
			assert.Empty(t, env.carts.Credentials, "cart must not be fetched")
			assert.Equal(t, 0, env.repo.Count())
		})
	}
}

func TestService_PlaceOrder_CartServiceFailures(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected error
	}{
		{"rejected credential", apperr.New(apperr.ErrUnauthorized, "cart service rejected credential"), apperr.ErrUnauthorized},
		{"unreachable", apperr.Unavailable("cart service", errors.New("connection refused")), apperr.ErrUnavailable},
		{"timeout", apperr.Unavailable("cart service", context.DeadlineExceeded), context.DeadlineExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestOrderService()
			env.carts.Err = tt.err

			_, err := env.service.PlaceOrder(context.Background(), placeCmd())

			assert.ErrorIs(t, err, tt.expected)
			assert.Equal(t, 0, env.repo.Count())
		})
	}
}

func TestService_PlaceOrder_StoreFailureLeavesNothing(t *testing.T) {
	env := newTestOrderService()
	env.repo.CreateErr = apperr.Unavailable("order store", errors.New("tx aborted"))

	_, err := env.service.PlaceOrder(context.Background(), placeCmd())

	assert.ErrorIs(t, err, apperr.ErrUnavailable)
	assert.Equal(t, 0, env.repo.Count())
	assert.Empty(t, env.publisher.Calls())
}

// ============================================
// GetUserOrders Tests
// ============================================

func TestService_GetUserOrders_NewestFirstAndPaged(t *testing.T) {
	env := newTestOrderService()
	for i := 0; i < 5; i++ {
		seedOrder(env.repo, fmt.Sprintf("o-%d", i), "user-1", order.StatusPending, fixedNow.Add(time.Duration(i)*time.Minute))
	}
	seedOrder(env.repo, "other", "user-2", order.StatusPending, fixedNow)

	page, err := env.service.GetUserOrders(context.Background(), "user-1", order.Page{Number: 0, Size: 2})

	require.NoError(t, err)
	assert.Equal(t, 5, page.TotalElements)
	assert.Equal(t, 3, page.TotalPages)
	require.Len(t, page.Orders, 2)
	assert.Equal(t, "o-4", page.Orders[0].ID)
	assert.Equal(t, "o-3", page.Orders[1].ID)

	last, err := env.service.GetUserOrders(context.Background(), "user-1", order.Page{Number: 2, Size: 2})
	require.NoError(t, err)
	require.Len(t, last.Orders, 1)
	assert.Equal(t, "o-0", last.Orders[0].ID)
}

func TestService_GetUserOrders_PastLastPageIsEmpty(t *testing.T) {
	env := newTestOrderService()
	seedOrder(env.repo, "o-1", "user-1", order.StatusPending, fixedNow)

	page, err := env.service.GetUserOrders(context.Background(), "user-1", order.Page{Number: 5, Size: 10})

	require.NoError(t, err)
	assert.NotNil(t, page.Orders)
	assert.Empty(t, page.Orders)
	assert.Equal(t, 1, page.TotalElements)
}

func TestService_GetUserOrders_CapsPageSize(t *testing.T) {
	env := newTestOrderService()

	page, err := env.service.GetUserOrders(context.Background(), "user-1", order.Page{Number: 0, Size: 5000})

	require.NoError(t, err)
	assert.Equal(t, order.MaxPageSize, page.Size)
}

func TestService_GetUserOrders_InvalidPage(t *testing.T) {
	env := newTestOrderService()

	_, err := env.service.GetUserOrders(context.Background(), "user-1", order.Page{Number: -1, Size: 10})
	assert.ErrorIs(t, err, order.ErrInvalidPage)

	_, err = env.service.GetUserOrders(context.Background(), "user-1", order.Page{Number: 0, Size: 0})
	assert.ErrorIs(t, err, order.ErrInvalidPage)
}

// ============================================
// GetOrderByID Tests
// ============================================

func TestService_GetOrderByID_Owner(t *testing.T) {
	env := newTestOrderService()
	seedOrder(env.repo, "o-1", "user-1", order.StatusPending, fixedNow)

	o, err := env.service.GetOrderByID(context.Background(), "o-1", "user-1")

	require.NoError(t, err)
	assert.Equal(t, "o-1", o.ID)
}

func TestService_GetOrderByID_OtherUserSeesNotFound(t *testing.T) {
	env := newTestOrderService()
	seedOrder(env.repo, "o-1", "user-1", order.StatusPending, fixedNow)

	_, err := env.service.GetOrderByID(context.Background(), "o-1", "user-2")

	assert.ErrorIs(t, err, order.ErrOrderNotFound)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestService_GetOrderByID_Unknown(t *testing.T) {
	env := newTestOrderService()

	_, err := env.service.GetOrderByID(context.Background(), "missing", "user-1")

	assert.ErrorIs(t, err, order.ErrOrderNotFound)
}

// ============================================
// UpdateOrderStatus Tests
// ============================================

func TestService_UpdateOrderStatus_Success(t *testing.T) {
	env := newTestOrderService()
	seedOrder(env.repo, "o-1", "user-1", order.StatusPending, fixedNow.Add(-time.Hour))

	o, err := env.service.UpdateOrderStatus(context.Background(), "o-1", order.StatusConfirmed)

	require.NoError(t, err)
	assert.Equal(t, order.StatusConfirmed, o.Status)
	assert.Equal(t, fixedNow, o.UpdatedAt)

	stored, err := env.repo.FindByID(context.Background(), "o-1")
	require.NoError(t, err)
	assert.Equal(t, order.StatusConfirmed, stored.Status)

	calls := env.publisher.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, order.EventOrderStatusChanged, calls[0].EventType)
	changed := calls[0].Data.(order.OrderStatusChanged)
	assert.Equal(t, order.StatusPending, changed.From)
	assert.Equal(t, order.StatusConfirmed, changed.To)
}

func TestService_UpdateOrderStatus_PermissiveByDefault(t *testing.T) {
	env := newTestOrderService()
	seedOrder(env.repo, "o-1", "user-1", order.StatusDelivered, fixedNow)

	o, err := env.service.UpdateOrderStatus(context.Background(), "o-1", order.StatusPending)

	require.NoError(t, err)
	assert.Equal(t, order.StatusPending, o.Status)
}

func TestService_UpdateOrderStatus_StrictPolicyRejects(t *testing.T) {
	env := newTestOrderService(order.WithTransitionPolicy(order.StrictTransitions{}))
	seedOrder(env.repo, "o-1", "user-1", order.StatusDelivered, fixedNow)

	_, err := env.service.UpdateOrderStatus(context.Background(), "o-1", order.StatusPending)

	assert.ErrorIs(t, err, order.ErrIllegalTransition)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Empty(t, env.repo.UpdateStatusCalls)
	assert.Empty(t, env.publisher.Calls())
}

func TestService_UpdateOrderStatus_UnknownOrder(t *testing.T) {
	env := newTestOrderService()

	_, err := env.service.UpdateOrderStatus(context.Background(), "missing", order.StatusShipped)

	assert.ErrorIs(t, err, order.ErrOrderNotFound)
}

func TestService_UpdateOrderStatus_InvalidStatus(t *testing.T) {
	env := newTestOrderService()
	seedOrder(env.repo, "o-1", "user-1", order.StatusPending, fixedNow)

	_, err := env.service.UpdateOrderStatus(context.Background(), "o-1", order.Status("LOST"))

	assert.ErrorIs(t, err, order.ErrInvalidStatus)
}

// ============================================
// GetOrdersByStatus Tests
// ============================================

func TestService_GetOrdersByStatus(t *testing.T) {
	env := newTestOrderService()
	seedOrder(env.repo, "o-1", "user-1", order.StatusShipped, fixedNow)
	seedOrder(env.repo, "o-2", "user-2", order.StatusShipped, fixedNow.Add(time.Minute))
	seedOrder(env.repo, "o-3", "user-1", order.StatusPending, fixedNow)

	orders, err := env.service.GetOrdersByStatus(context.Background(), order.StatusShipped)

	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "o-2", orders[0].ID)
}

func TestService_GetOrdersByStatus_None(t *testing.T) {
	env := newTestOrderService()

	orders, err := env.service.GetOrdersByStatus(context.Background(), order.StatusCancelled)

	require.NoError(t, err)
	assert.NotNil(t, orders)
	assert.Empty(t, orders)
}
