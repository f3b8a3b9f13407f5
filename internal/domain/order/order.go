package order

import (
	"fmt"
	"strings"
	"time"

	"github.com/example/grocery-ordering/internal/apperr"
	"github.com/shopspring/decimal"
)

const AggregateType = "Order"

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusPreparing Status = "PREPARING"
	StatusShipped   Status = "SHIPPED"
	StatusDelivered Status = "DELIVERED"
	StatusCancelled Status = "CANCELLED"
)

var statuses = []Status{
	StatusPending,
	StatusConfirmed,
	StatusPreparing,
	StatusShipped,
	StatusDelivered,
	StatusCancelled,
}

var (
	ErrMissingUser             = apperr.New(apperr.ErrUnauthorized, "user id is required")
	ErrMissingCredential       = apperr.New(apperr.ErrUnauthorized, "caller credential is required")
	ErrShippingAddressRequired = apperr.New(apperr.ErrValidation, "shipping address is required")
	ErrEmptyCart               = apperr.New(apperr.ErrValidation, "cart is empty")
	ErrOrderNotFound           = apperr.New(apperr.ErrNotFound, "order not found")
	ErrInvalidStatus           = apperr.New(apperr.ErrValidation, "invalid order status")
	ErrIllegalTransition       = apperr.New(apperr.ErrValidation, "illegal order status transition")
	ErrInvalidPage             = apperr.New(apperr.ErrValidation, "page must be >= 0 and size >= 1")
)

// ParseStatus accepts a status name in any letter case.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return st, nil
}

func (s Status) Valid() bool {
	for _, known := range statuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition may leave s under the strict policy.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// OrderLine is an immutable copy of a cart line at placement time.
type OrderLine struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	ProductUnit string          `json:"product_unit"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	TotalPrice  decimal.Decimal `json:"total_price"`
}

// NewOrderLine derives TotalPrice from price and quantity.
func NewOrderLine(productID int64, name, unit string, quantity int, price decimal.Decimal) OrderLine {
	return OrderLine{
		ProductID:   productID,
		ProductName: name,
		ProductUnit: unit,
		Quantity:    quantity,
		Price:       price,
		TotalPrice:  price.Mul(decimal.NewFromInt(int64(quantity))),
	}
}

type Order struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	Items           []OrderLine     `json:"items"`
	Status          Status          `json:"status"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	ShippingAddress string          `json:"shipping_address"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// validTransitions is the hardened lifecycle. It is only consulted when the
// service runs with StrictTransitions.
var validTransitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusPreparing, StatusCancelled},
	StatusPreparing: {StatusShipped, StatusCancelled},
	StatusShipped:   {StatusDelivered, StatusCancelled},
	StatusDelivered: {}, // terminal state
	StatusCancelled: {}, // terminal state
}

// CanTransitionTo checks if the order can transition to the target status
func (o *Order) CanTransitionTo(target Status) bool {
	allowed, exists := validTransitions[o.Status]
	if !exists {
		return false
	}
	for _, s := range allowed {
		if s == target {
			return true
		}
	}
	return false
}

// TransitionPolicy decides whether an order may move to a new status.
type TransitionPolicy interface {
	Check(o *Order, target Status) error
}

// PermissiveTransitions accepts every change, including leaving DELIVERED or
// CANCELLED. This is the default: legality is left to whoever calls the
// administrative endpoint.
type PermissiveTransitions struct{}

func (PermissiveTransitions) Check(*Order, Status) error { return nil }

// StrictTransitions enforces PENDING -> CONFIRMED -> PREPARING -> SHIPPED ->
// DELIVERED with CANCELLED reachable from any non-terminal state.
type StrictTransitions struct{}

func (StrictTransitions) Check(o *Order, target Status) error {
	if o.Status.Terminal() {
		return fmt.Errorf("%w: order is already %s", ErrIllegalTransition, o.Status)
	}
	if o.CanTransitionTo(target) {
		return nil
	}
	return fmt.Errorf("%w: cannot transition from %s to %s", ErrIllegalTransition, o.Status, target)
}

// Page selects a zero-based page of a user's orders.
type Page struct {
	Number int
	Size   int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

func (p Page) Offset() int { return p.Number * p.Size }

type OrderPage struct {
	Orders        []*Order `json:"content"`
	Page          int      `json:"page"`
	Size          int      `json:"size"`
	TotalElements int      `json:"total_elements"`
	TotalPages    int      `json:"total_pages"`
}
