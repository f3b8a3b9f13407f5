package remote

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/example/grocery-ordering/internal/apperr"
	"github.com/example/grocery-ordering/internal/domain/order"
	"github.com/shopspring/decimal"
)

type cartResponse struct {
	UserID string `json:"user_id"`
	Items  []struct {
		ProductID   int64           `json:"product_id"`
		ProductName string          `json:"product_name"`
		ProductUnit string          `json:"product_unit"`
		Quantity    int             `json:"quantity"`
		UnitPrice   decimal.Decimal `json:"unit_price"`
	} `json:"items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// CartClient reads the caller's cart from the cart service, authenticating
// with the caller's own token.
type CartClient struct {
	client *jsonClient
}

func NewCartClient(baseURL string, timeout time.Duration) *CartClient {
	return &CartClient{client: newJSONClient("cart service", baseURL, timeout)}
}

func (c *CartClient) GetCart(ctx context.Context, credential string) (*order.CartSnapshot, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+credential)

	var resp cartResponse
	err := c.client.get(ctx, "/api/cart", header, &resp)
	if errors.Is(err, errRemoteNotFound) {
		return nil, apperr.Unavailable("cart service", errors.New("cart endpoint not found"))
	}
	if err != nil {
		return nil, err
	}

	snapshot := &order.CartSnapshot{
		UserID:      resp.UserID,
		Items:       make([]order.CartSnapshotLine, 0, len(resp.Items)),
		TotalAmount: resp.TotalAmount,
	}
	for _, item := range resp.Items {
		snapshot.Items = append(snapshot.Items, order.CartSnapshotLine{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			ProductUnit: item.ProductUnit,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}
	return snapshot, nil
}
