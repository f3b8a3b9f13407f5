package remote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/grocery-ordering/internal/domain/product"
	"github.com/shopspring/decimal"
)

// productResponse mirrors the catalog service's JSON.
type productResponse struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Unit          string          `json:"unit"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stockQuantity"`
	IsActive      bool            `json:"isActive"`
}

// CatalogClient looks products up in the catalog service.
type CatalogClient struct {
	client *jsonClient
}

func NewCatalogClient(baseURL string, timeout time.Duration) *CatalogClient {
	return &CatalogClient{client: newJSONClient("catalog", baseURL, timeout)}
}

func (c *CatalogClient) GetProduct(ctx context.Context, productID int64) (*product.Product, error) {
	var resp productResponse
	err := c.client.get(ctx, fmt.Sprintf("/api/products/%d", productID), nil, &resp)
	if errors.Is(err, errRemoteNotFound) {
		return nil, product.ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}

	return &product.Product{
		ID:            resp.ID,
		Name:          resp.Name,
		Unit:          resp.Unit,
		Price:         resp.Price,
		StockQuantity: resp.StockQuantity,
		IsActive:      resp.IsActive,
	}, nil
}
