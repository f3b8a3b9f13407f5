package cart

import (
	"context"
	"errors"

	"github.com/example/grocery-ordering/internal/domain/product"
)

// Repository persists one cart per user.
type Repository interface {
	// FindByUserID returns ErrCartNotFound when the user has no cart.
	FindByUserID(ctx context.Context, userID string) (*Cart, error)
	// Create inserts a new cart and returns ErrCartExists if the user
	// already owns one.
	Create(ctx context.Context, c *Cart) error
	// Save replaces lines and totals if the stored version still equals
	// c.Version, then increments c.Version. A stale cart yields
	// ErrConcurrentModification.
	Save(ctx context.Context, c *Cart) error
}

// ProductCatalog is the remote catalog. It returns product.ErrProductNotFound
// for unknown ids; any other error means the catalog could not answer.
type ProductCatalog interface {
	GetProduct(ctx context.Context, productID int64) (*product.Product, error)
}

var ErrCacheMiss = errors.New("cart cache miss")

// Cache holds read copies of carts keyed by user.
type Cache interface {
	Get(ctx context.Context, userID string) (*Cart, error)
	// Set stores c unless the cart was invalidated at a version newer than
	// c.Version, so a read that raced a write cannot cache the old cart.
	Set(ctx context.Context, c *Cart) error
	// Invalidate drops the cached cart and records version as the oldest
	// version Set may store from now on.
	Invalidate(ctx context.Context, userID string, version int) error
}
