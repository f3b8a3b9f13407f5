// Package product holds the catalog's view of a product as the cart sees it.
// The catalog itself is owned by another service; this package only models
// what a lookup returns.
package product

import (
	"github.com/example/grocery-ordering/internal/apperr"
	"github.com/shopspring/decimal"
)

var ErrProductNotFound = apperr.New(apperr.ErrNotFound, "product not found")

type Product struct {
	ID            int64
	Name          string
	Unit          string
	Price         decimal.Decimal
	StockQuantity int
	IsActive      bool // false means soft-deleted
}
