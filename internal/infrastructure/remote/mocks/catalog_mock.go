package mocks

import (
	"context"
	"sync"

	"github.com/example/grocery-ordering/internal/domain/product"
)

// MockCatalog serves products from memory.
type MockCatalog struct {
	mu       sync.Mutex
	products map[int64]*product.Product

	GetCalls []int64
	// Err, if set, is returned by every lookup.
	Err error
}

func NewMockCatalog(products ...*product.Product) *MockCatalog {
	m := &MockCatalog{products: make(map[int64]*product.Product)}
	for _, p := range products {
		m.products[p.ID] = p
	}
	return m
}

func (m *MockCatalog) GetProduct(ctx context.Context, productID int64) (*product.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.GetCalls = append(m.GetCalls, productID)
	if m.Err != nil {
		return nil, m.Err
	}
	p, ok := m.products[productID]
	if !ok {
		return nil, product.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

// Set replaces or adds a product, e.g. to change price or stock mid-test.
func (m *MockCatalog) Set(p *product.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = p
}
