package mocks

import (
	"context"
	"sync"

	"github.com/example/grocery-ordering/internal/domain/order"
)

// MockCartLookup returns a fixed snapshot and records forwarded credentials.
type MockCartLookup struct {
	mu sync.Mutex

	Snapshot    *order.CartSnapshot
	Err         error
	Credentials []string
}

func NewMockCartLookup(snapshot *order.CartSnapshot) *MockCartLookup {
	return &MockCartLookup{Snapshot: snapshot}
}

func (m *MockCartLookup) GetCart(ctx context.Context, credential string) (*order.CartSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Credentials = append(m.Credentials, credential)
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Snapshot == nil {
		return &order.CartSnapshot{}, nil
	}
	return m.Snapshot, nil
}
