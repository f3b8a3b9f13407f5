package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/grocery-ordering/internal/apperr"
	"github.com/example/grocery-ordering/internal/domain/order"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const orderColumns = `id, user_id, status, total_amount, shipping_address, created_at, updated_at`

// PostgresOrderRepository stores orders with their lines in orders and
// order_items. Lines are written once and never updated.
type PostgresOrderRepository struct {
	db *sql.DB
}

func NewPostgresOrderRepository(db *sql.DB) *PostgresOrderRepository {
	return &PostgresOrderRepository{db: db}
}

func (r *PostgresOrderRepository) Create(ctx context.Context, o *order.Order) error {
	return withTx(ctx, r.db, nil, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO orders (`+orderColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			o.ID, o.UserID, string(o.Status), o.TotalAmount, o.ShippingAddress, o.CreatedAt, o.UpdatedAt,
		)
		if err != nil {
			return orderStoreError("insert order", err)
		}

		for i, line := range o.Items {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO order_items (order_id, line_no, product_id, product_name, product_unit, quantity, price, total_price)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				o.ID, i, line.ProductID, line.ProductName, line.ProductUnit, line.Quantity, line.Price, line.TotalPrice,
			)
			if err != nil {
				return orderStoreError("insert order item", err)
			}
		}
		return nil
	})
}

func (r *PostgresOrderRepository) FindByID(ctx context.Context, orderID string) (*order.Order, error) {
	// ids are UUIDs; anything else cannot exist
	if _, err := uuid.Parse(orderID); err != nil {
		return nil, order.ErrOrderNotFound
	}

	orders, err := r.query(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, order.ErrOrderNotFound
	}
	return orders[0], nil
}

func (r *PostgresOrderRepository) ListByUser(ctx context.Context, userID string, page order.Page) ([]*order.Order, int, error) {
	var total int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders WHERE user_id = $1`, userID).Scan(&total)
	if err != nil {
		return nil, 0, orderStoreError("count orders", err)
	}
	if total == 0 || page.Offset() >= total {
		return []*order.Order{}, total, nil
	}

	orders, err := r.query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`,
		userID, page.Size, page.Offset(),
	)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *PostgresOrderRepository) ListByStatus(ctx context.Context, status order.Status) ([]*order.Order, error) {
	return r.query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE status = $1 ORDER BY created_at DESC, id DESC`,
		string(status),
	)
}

func (r *PostgresOrderRepository) UpdateStatus(ctx context.Context, orderID string, status order.Status, at time.Time) error {
	if _, err := uuid.Parse(orderID); err != nil {
		return order.ErrOrderNotFound
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), at, orderID,
	)
	if err != nil {
		return orderStoreError("update order status", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return orderStoreError("update order status", err)
	}
	if n == 0 {
		return order.ErrOrderNotFound
	}
	return nil
}

// query loads order headers and then all of their lines in one round trip.
func (r *PostgresOrderRepository) query(ctx context.Context, q string, args ...any) ([]*order.Order, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, orderStoreError("query orders", err)
	}
	defer rows.Close()

	orders := []*order.Order{}
	byID := make(map[string]*order.Order)
	ids := []string{}
	for rows.Next() {
		var o order.Order
		var status string
		if err := rows.Scan(&o.ID, &o.UserID, &status, &o.TotalAmount, &o.ShippingAddress, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, orderStoreError("scan order", err)
		}
		o.Status = order.Status(status)
		o.Items = []order.OrderLine{}
		orders = append(orders, &o)
		byID[o.ID] = &o
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, orderStoreError("iterate orders", err)
	}
	if len(ids) == 0 {
		return orders, nil
	}

	if err := loadOrderItems(ctx, r.db, ids, byID); err != nil {
		return nil, err
	}
	return orders, nil
}

func loadOrderItems(ctx context.Context, q querier, ids []string, byID map[string]*order.Order) error {
	rows, err := q.QueryContext(ctx,
		`SELECT order_id, product_id, product_name, product_unit, quantity, price, total_price
		 FROM order_items WHERE order_id = ANY($1::uuid[]) ORDER BY order_id, line_no`,
		pq.Array(ids),
	)
	if err != nil {
		return orderStoreError("query order items", err)
	}
	defer rows.Close()

	for rows.Next() {
		var orderID string
		var line order.OrderLine
		if err := rows.Scan(&orderID, &line.ProductID, &line.ProductName, &line.ProductUnit, &line.Quantity, &line.Price, &line.TotalPrice); err != nil {
			return orderStoreError("scan order item", err)
		}
		if o, ok := byID[orderID]; ok {
			o.Items = append(o.Items, line)
		}
	}
	if err := rows.Err(); err != nil {
		return orderStoreError("iterate order items", err)
	}
	return nil
}

func orderStoreError(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	return apperr.Unavailable("order store", fmt.Errorf("%s: %w", op, err))
}
