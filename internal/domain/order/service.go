package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PlaceOrder carries what the coordinator needs from the authenticated caller.
type PlaceOrder struct {
	UserID          string
	ShippingAddress string
	// Credential is forwarded verbatim to the cart service.
	Credential string
	// ContactEmail is copied into the OrderPlaced event for notifications.
	ContactEmail string
}

// Service turns a user's current cart into an order and manages the order
// lifecycle afterwards.
type Service struct {
	repo      Repository
	carts     CartLookup
	publisher EventPublisher
	policy    TransitionPolicy
	logger    *zap.Logger
	now       func() time.Time
}

type Option func(*Service)

// WithPublisher emits OrderPlaced and OrderStatusChanged after each commit.
func WithPublisher(p EventPublisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithTransitionPolicy(p TransitionPolicy) Option {
	return func(s *Service) { s.policy = p }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(repo Repository, carts CartLookup, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		carts:  carts,
		policy: PermissiveTransitions{},
		logger: logger.Named("order"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PlaceOrder snapshots the caller's cart into a new PENDING order. The cart
// itself is left untouched and stock is not reserved.
func (s *Service) PlaceOrder(ctx context.Context, cmd PlaceOrder) (*Order, error) {
	if cmd.UserID == "" {
		return nil, ErrMissingUser
	}
	if cmd.Credential == "" {
		return nil, ErrMissingCredential
	}
	address := strings.TrimSpace(cmd.ShippingAddress)
	if address == "" {
		return nil, ErrShippingAddressRequired
	}

	snapshot, err := s.carts.GetCart(ctx, cmd.Credential)
	if err != nil {
		return nil, fmt.Errorf("fetch cart: %w", err)
	}
	if len(snapshot.Items) == 0 {
		return nil, ErrEmptyCart
	}

	lines := make([]OrderLine, 0, len(snapshot.Items))
	for _, item := range snapshot.Items {
		lines = append(lines, NewOrderLine(item.ProductID, item.ProductName, item.ProductUnit, item.Quantity, item.UnitPrice))
	}

	now := s.now()
	o := &Order{
		ID:              uuid.New().String(),
		UserID:          cmd.UserID,
		Items:           lines,
		Status:          StatusPending,
		TotalAmount:     snapshot.TotalAmount,
		ShippingAddress: address,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.Create(ctx, o); err != nil {
		return nil, fmt.Errorf("store order: %w", err)
	}

	s.logger.Info("order placed",
		zap.String("order_id", o.ID),
		zap.String("user_id", o.UserID),
		zap.Int("lines", len(o.Items)),
		zap.Stringer("total", o.TotalAmount),
	)

	s.publish(ctx, o.ID, EventOrderPlaced, OrderPlaced{
		OrderID:         o.ID,
		UserID:          o.UserID,
		ContactEmail:    cmd.ContactEmail,
		Items:           o.Items,
		TotalAmount:     o.TotalAmount,
		ShippingAddress: o.ShippingAddress,
		PlacedAt:        o.CreatedAt,
	})
	return o, nil
}

func (s *Service) GetUserOrders(ctx context.Context, userID string, page Page) (*OrderPage, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}
	if page.Number < 0 || page.Size < 1 {
		return nil, ErrInvalidPage
	}
	if page.Size > MaxPageSize {
		page.Size = MaxPageSize
	}

	orders, total, err := s.repo.ListByUser(ctx, userID, page)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []*Order{}
	}
	return &OrderPage{
		Orders:        orders,
		Page:          page.Number,
		Size:          page.Size,
		TotalElements: total,
		TotalPages:    (total + page.Size - 1) / page.Size,
	}, nil
}

// GetOrderByID returns the order only if userID owns it. Orders of other
// users are reported as not found so their existence is not revealed.
func (s *Service) GetOrderByID(ctx context.Context, orderID, userID string) (*Order, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}
	o, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, ErrOrderNotFound
	}
	return o, nil
}

// UpdateOrderStatus moves an order to status, subject to the configured
// TransitionPolicy. No ownership check is made.
func (s *Service) UpdateOrderStatus(ctx context.Context, orderID string, status Status) (*Order, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	o, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Check(o, status); err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.repo.UpdateStatus(ctx, orderID, status, now); err != nil {
		return nil, err
	}
	from := o.Status
	o.Status = status
	o.UpdatedAt = now

	s.logger.Info("order status changed",
		zap.String("order_id", o.ID),
		zap.String("from", string(from)),
		zap.String("to", string(status)),
	)

	s.publish(ctx, o.ID, EventOrderStatusChanged, OrderStatusChanged{
		OrderID:   o.ID,
		UserID:    o.UserID,
		From:      from,
		To:        status,
		ChangedAt: now,
	})
	return o, nil
}

func (s *Service) GetOrdersByStatus(ctx context.Context, status Status) ([]*Order, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	orders, err := s.repo.ListByStatus(ctx, status)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []*Order{}
	}
	return orders, nil
}

// publish is best effort: the order is already committed, so a broker
// failure is logged and not returned.
func (s *Service) publish(ctx context.Context, orderID, eventType string, data any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishEvent(ctx, orderID, AggregateType, eventType, data); err != nil {
		s.logger.Error("failed to publish event",
			zap.String("order_id", orderID),
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
}
