package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type Repository interface {
	// Create stores the order and all of its lines atomically.
	Create(ctx context.Context, o *Order) error
	// FindByID returns ErrOrderNotFound for unknown ids.
	FindByID(ctx context.Context, orderID string) (*Order, error)
	// ListByUser returns one page of the user's orders, newest first, and
	// the total number of orders the user has.
	ListByUser(ctx context.Context, userID string, page Page) ([]*Order, int, error)
	// ListByStatus returns every order in status, newest first.
	ListByStatus(ctx context.Context, status Status) ([]*Order, error)
	// UpdateStatus overwrites the status. Returns ErrOrderNotFound if the
	// order does not exist.
	UpdateStatus(ctx context.Context, orderID string, status Status, at time.Time) error
}

// CartSnapshot is the caller's cart as returned by the cart service.
type CartSnapshot struct {
	UserID      string
	Items       []CartSnapshotLine
	TotalAmount decimal.Decimal
}

type CartSnapshotLine struct {
	ProductID   int64
	ProductName string
	ProductUnit string
	Quantity    int
	UnitPrice   decimal.Decimal
}

// CartLookup fetches the current cart of whoever owns credential. The
// credential is the caller's own bearer token, passed through unchanged.
type CartLookup interface {
	GetCart(ctx context.Context, credential string) (*CartSnapshot, error)
}

// EventPublisher announces committed changes to other services.
type EventPublisher interface {
	PublishEvent(ctx context.Context, aggregateID, aggregateType, eventType string, data any) error
}
