package mocks

import (
	"context"
	"sync"

	"github.com/example/grocery-ordering/internal/domain/cart"
)

// MockCartCache mirrors the Redis cache, including the version floor that
// keeps a stale Set from landing after Invalidate.
type MockCartCache struct {
	mu      sync.Mutex
	entries map[string]*cart.Cart
	floors  map[string]int

	GetCalls        []string
	SetCalls        []string
	InvalidateCalls []string

	GetErr        error
	InvalidateErr error
}

func NewMockCartCache() *MockCartCache {
	return &MockCartCache{
		entries: make(map[string]*cart.Cart),
		floors:  make(map[string]int),
	}
}

func (m *MockCartCache) Get(ctx context.Context, userID string) (*cart.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.GetCalls = append(m.GetCalls, userID)
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	c, ok := m.entries[userID]
	if !ok {
		return nil, cart.ErrCacheMiss
	}
	return c.Clone(), nil
}

func (m *MockCartCache) Set(ctx context.Context, c *cart.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SetCalls = append(m.SetCalls, c.UserID)
	if floor, ok := m.floors[c.UserID]; ok && floor > c.Version {
		return nil
	}
	m.entries[c.UserID] = c.Clone()
	return nil
}

func (m *MockCartCache) Invalidate(ctx context.Context, userID string, version int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.InvalidateCalls = append(m.InvalidateCalls, userID)
	if m.InvalidateErr != nil {
		return m.InvalidateErr
	}
	if floor, ok := m.floors[userID]; !ok || version > floor {
		m.floors[userID] = version
	}
	delete(m.entries, userID)
	return nil
}

func (m *MockCartCache) Has(userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[userID]
	return ok
}
