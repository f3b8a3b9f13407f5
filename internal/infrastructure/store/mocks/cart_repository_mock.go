package mocks

import (
	"context"
	"sync"

	"github.com/example/grocery-ordering/internal/domain/cart"
)

// MockCartRepository is an in-memory cart.Repository that enforces the same
// version check as the real stores.
type MockCartRepository struct {
	mu    sync.RWMutex
	carts map[string]*cart.Cart // userID -> cart

	// For tracking calls in tests
	FindCalls   []string
	CreateCalls []*cart.Cart
	SaveCalls   []*cart.Cart

	FindErr   error
	CreateErr error
	SaveErr   error
}

func NewMockCartRepository() *MockCartRepository {
	return &MockCartRepository{
		carts: make(map[string]*cart.Cart),
	}
}

func (m *MockCartRepository) FindByUserID(ctx context.Context, userID string) (*cart.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.FindCalls = append(m.FindCalls, userID)
	if m.FindErr != nil {
		return nil, m.FindErr
	}

	c, ok := m.carts[userID]
	if !ok {
		return nil, cart.ErrCartNotFound
	}
	return c.Clone(), nil
}

func (m *MockCartRepository) Create(ctx context.Context, c *cart.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CreateCalls = append(m.CreateCalls, c.Clone())
	if m.CreateErr != nil {
		return m.CreateErr
	}
	if _, ok := m.carts[c.UserID]; ok {
		return cart.ErrCartExists
	}
	m.carts[c.UserID] = c.Clone()
	return nil
}

func (m *MockCartRepository) Save(ctx context.Context, c *cart.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SaveCalls = append(m.SaveCalls, c.Clone())
	if m.SaveErr != nil {
		return m.SaveErr
	}

	stored, ok := m.carts[c.UserID]
	if !ok {
		return cart.ErrCartNotFound
	}
	if stored.Version != c.Version {
		return cart.ErrConcurrentModification
	}
	c.Version++
	m.carts[c.UserID] = c.Clone()
	return nil
}

// Put seeds a cart without recording a call.
func (m *MockCartRepository) Put(c *cart.Cart) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[c.UserID] = c.Clone()
}

// Stored returns a copy of what is persisted for userID, or nil.
func (m *MockCartRepository) Stored(userID string) *cart.Cart {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.carts[userID]; ok {
		return c.Clone()
	}
	return nil
}

func (m *MockCartRepository) SaveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.SaveCalls)
}

func (m *MockCartRepository) CreateCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.CreateCalls)
}
