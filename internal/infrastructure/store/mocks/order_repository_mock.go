package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/example/grocery-ordering/internal/domain/order"
)

// MockOrderRepository is an in-memory order.Repository for testing
type MockOrderRepository struct {
	mu     sync.RWMutex
	orders map[string]*order.Order

	// For tracking calls in tests
	CreateCalls       []*order.Order
	UpdateStatusCalls []UpdateStatusCall

	CreateErr error
	FindErr   error
	ListErr   error
	UpdateErr error
}

// UpdateStatusCall records parameters passed to UpdateStatus
type UpdateStatusCall struct {
	OrderID string
	Status  order.Status
	At      time.Time
}

func NewMockOrderRepository() *MockOrderRepository {
	return &MockOrderRepository{orders: make(map[string]*order.Order)}
}

func (m *MockOrderRepository) Create(ctx context.Context, o *order.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CreateCalls = append(m.CreateCalls, copyOrder(o))
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.orders[o.ID] = copyOrder(o)
	return nil
}

func (m *MockOrderRepository) FindByID(ctx context.Context, orderID string) (*order.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.FindErr != nil {
		return nil, m.FindErr
	}
	o, ok := m.orders[orderID]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	return copyOrder(o), nil
}

func (m *MockOrderRepository) ListByUser(ctx context.Context, userID string, page order.Page) ([]*order.Order, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.ListErr != nil {
		return nil, 0, m.ListErr
	}
	all := m.filter(func(o *order.Order) bool { return o.UserID == userID })
	total := len(all)
	start := page.Offset()
	if start >= total {
		return []*order.Order{}, total, nil
	}
	end := start + page.Size
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (m *MockOrderRepository) ListByStatus(ctx context.Context, status order.Status) ([]*order.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.ListErr != nil {
		return nil, m.ListErr
	}
	return m.filter(func(o *order.Order) bool { return o.Status == status }), nil
}

func (m *MockOrderRepository) UpdateStatus(ctx context.Context, orderID string, status order.Status, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.UpdateStatusCalls = append(m.UpdateStatusCalls, UpdateStatusCall{OrderID: orderID, Status: status, At: at})
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	o, ok := m.orders[orderID]
	if !ok {
		return order.ErrOrderNotFound
	}
	o.Status = status
	o.UpdatedAt = at
	return nil
}

// Put seeds an order without recording a call.
func (m *MockOrderRepository) Put(o *order.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.ID] = copyOrder(o)
}

func (m *MockOrderRepository) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.orders)
}

// filter returns matching orders newest first. Callers hold the lock.
func (m *MockOrderRepository) filter(match func(*order.Order) bool) []*order.Order {
	out := make([]*order.Order, 0)
	for _, o := range m.orders {
		if match(o) {
			out = append(out, copyOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func copyOrder(o *order.Order) *order.Order {
	cp := *o
	cp.Items = append([]order.OrderLine(nil), o.Items...)
	return &cp
}
