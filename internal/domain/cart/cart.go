package cart

import (
	"time"

	"github.com/example/grocery-ordering/internal/apperr"
	"github.com/example/grocery-ordering/internal/domain/product"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrMissingUser            = apperr.New(apperr.ErrUnauthorized, "user id is required")
	ErrInvalidProduct         = apperr.New(apperr.ErrValidation, "product_id must be positive")
	ErrInvalidQuantity        = apperr.New(apperr.ErrValidation, "quantity must be positive")
	ErrCartNotFound           = apperr.New(apperr.ErrNotFound, "cart not found")
	ErrItemNotFound           = apperr.New(apperr.ErrNotFound, "item not found in cart")
	ErrProductUnavailable     = apperr.New(apperr.ErrValidation, "product not found or inactive")
	ErrInsufficientStock      = apperr.New(apperr.ErrValidation, "insufficient stock")
	ErrCartExists             = apperr.New(apperr.ErrConflict, "cart already exists for user")
	ErrConcurrentModification = apperr.New(apperr.ErrConflict, "cart was modified concurrently, reload and retry")
)

// CartLine is a snapshot of a product taken when it was put in the cart.
// Name, unit and price are not refreshed from the catalog except by an
// explicit quantity update.
type CartLine struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	ProductUnit string          `json:"product_unit"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

func (l CartLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type Cart struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Items       []CartLine      `json:"items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Version     int             `json:"version"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// New returns an empty cart for userID.
func New(userID string, now time.Time) *Cart {
	return &Cart{
		ID:          uuid.New().String(),
		UserID:      userID,
		Items:       []CartLine{},
		TotalAmount: decimal.Zero,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Clone returns a deep copy of the cart.
func (c *Cart) Clone() *Cart {
	cp := *c
	cp.Items = make([]CartLine, len(c.Items))
	copy(cp.Items, c.Items)
	return &cp
}

func (c *Cart) indexOf(productID int64) int {
	for i, line := range c.Items {
		if line.ProductID == productID {
			return i
		}
	}
	return -1
}

// addLine merges quantity into an existing line or snapshots p into a new one.
// The merged quantity is not checked against stock again.
func (c *Cart) addLine(p *product.Product, quantity int) {
	if i := c.indexOf(p.ID); i >= 0 {
		c.Items[i].Quantity += quantity
	} else {
		c.Items = append(c.Items, CartLine{
			ProductID:   p.ID,
			ProductName: p.Name,
			ProductUnit: p.Unit,
			Quantity:    quantity,
			UnitPrice:   p.Price,
		})
	}
	c.recalculate()
}

// setLine overwrites quantity and unit price of an existing line.
func (c *Cart) setLine(productID int64, quantity int, price decimal.Decimal) bool {
	i := c.indexOf(productID)
	if i < 0 {
		return false
	}
	c.Items[i].Quantity = quantity
	c.Items[i].UnitPrice = price
	c.recalculate()
	return true
}

func (c *Cart) removeLine(productID int64) bool {
	i := c.indexOf(productID)
	if i < 0 {
		return false
	}
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
	c.recalculate()
	return true
}

func (c *Cart) clear() {
	c.Items = []CartLine{}
	c.recalculate()
}

// recalculate keeps TotalAmount equal to the sum of line subtotals.
func (c *Cart) recalculate() {
	total := decimal.Zero
	for _, line := range c.Items {
		total = total.Add(line.Subtotal())
	}
	c.TotalAmount = total
}
