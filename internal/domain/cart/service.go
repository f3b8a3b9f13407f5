package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/grocery-ordering/internal/domain/product"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const sharedLoadTimeout = 5 * time.Second

// Service owns the per-user cart. Every mutation that names a product is
// validated against the catalog before anything is written.
type Service struct {
	repo    Repository
	catalog ProductCatalog
	cache   Cache
	logger  *zap.Logger
	now     func() time.Time
	loads   singleflight.Group
}

type Option func(*Service)

// WithCache serves GetOrCreateCart from c and invalidates it after writes.
func WithCache(c Cache) Option {
	return func(s *Service) { s.cache = c }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(repo Repository, catalog ProductCatalog, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		repo:    repo,
		catalog: catalog,
		logger:  logger.Named("cart"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetOrCreateCart returns the user's cart, creating an empty one on first access.
func (s *Service) GetOrCreateCart(ctx context.Context, userID string) (*Cart, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}

	if s.cache != nil {
		c, err := s.cache.Get(ctx, userID)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			s.logger.Warn("cart cache read failed", zap.String("user_id", userID), zap.Error(err))
		}
	}

	// Concurrent misses for the same user share one load. The load is
	// detached from the first caller so its cancellation does not fail the
	// others.
	ch := s.loads.DoChan(userID, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedLoadTimeout)
		defer cancel()

		c, err := s.loadOrCreate(loadCtx, userID)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			if err := s.cache.Set(loadCtx, c); err != nil {
				s.logger.Warn("cart cache write failed", zap.String("user_id", userID), zap.Error(err))
			}
		}
		return c, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Cart).Clone(), nil
	}
}

// AddItem puts quantity units of productID in the cart. A product already in
// the cart has its quantity increased; the resulting total is not checked
// against stock again.
func (s *Service) AddItem(ctx context.Context, userID string, productID int64, quantity int) (*Cart, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}
	if err := validateLine(productID, quantity); err != nil {
		return nil, err
	}

	p, err := s.availableProduct(ctx, productID, quantity)
	if err != nil {
		return nil, err
	}

	c, err := s.loadOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	c.addLine(p, quantity)
	if err := s.save(ctx, c); err != nil {
		return nil, err
	}

	s.logger.Debug("item added",
		zap.String("user_id", userID),
		zap.Int64("product_id", productID),
		zap.Int("quantity", quantity),
	)
	return c, nil
}

// UpdateCartItem sets the absolute quantity of a line and refreshes its unit
// price from the catalog.
func (s *Service) UpdateCartItem(ctx context.Context, userID string, productID int64, quantity int) (*Cart, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}
	if err := validateLine(productID, quantity); err != nil {
		return nil, err
	}

	c, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	p, err := s.availableProduct(ctx, productID, quantity)
	if err != nil {
		return nil, err
	}

	if !c.setLine(productID, quantity, p.Price) {
		return nil, fmt.Errorf("%w: product %d", ErrItemNotFound, productID)
	}
	if err := s.save(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// RemoveItem deletes the line for productID. Removing a product that is not
// in the cart is not an error and writes nothing.
func (s *Service) RemoveItem(ctx context.Context, userID string, productID int64) (*Cart, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}

	c, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if !c.removeLine(productID) {
		return c, nil
	}
	if err := s.save(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) ClearCart(ctx context.Context, userID string) (*Cart, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}

	c, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	c.clear()
	if err := s.save(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) loadOrCreate(ctx context.Context, userID string) (*Cart, error) {
	c, err := s.repo.FindByUserID(ctx, userID)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, ErrCartNotFound) {
		return nil, err
	}

	c = New(userID, s.now())
	if err := s.repo.Create(ctx, c); err != nil {
		if errors.Is(err, ErrCartExists) {
			// lost the race to another request for the same user
			return s.repo.FindByUserID(ctx, userID)
		}
		return nil, err
	}

	s.logger.Info("cart created", zap.String("user_id", userID), zap.String("cart_id", c.ID))
	return c, nil
}

func (s *Service) availableProduct(ctx context.Context, productID int64, quantity int) (*product.Product, error) {
	p, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, product.ErrProductNotFound) {
			return nil, fmt.Errorf("%w: product %d", ErrProductUnavailable, productID)
		}
		return nil, err
	}
	if !p.IsActive {
		return nil, fmt.Errorf("%w: product %d", ErrProductUnavailable, productID)
	}
	if p.StockQuantity < quantity {
		return nil, fmt.Errorf("%w: product %d has %d left, %d requested",
			ErrInsufficientStock, productID, p.StockQuantity, quantity)
	}
	return p, nil
}

func (s *Service) save(ctx context.Context, c *Cart) error {
	c.UpdatedAt = s.now()
	if err := s.repo.Save(ctx, c); err != nil {
		return err
	}
	s.invalidate(c.UserID, c.Version)
	return nil
}

func (s *Service) invalidate(userID string, version int) {
	if s.cache == nil {
		return
	}
	// detached so a cancelled request still drops the stale entry
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Invalidate(ctx, userID, version); err != nil {
		s.logger.Warn("cart cache invalidation failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func validateLine(productID int64, quantity int) error {
	if productID <= 0 {
		return ErrInvalidProduct
	}
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	return nil
}
