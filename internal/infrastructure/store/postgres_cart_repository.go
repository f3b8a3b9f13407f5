package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/grocery-ordering/internal/apperr"
	"github.com/example/grocery-ordering/internal/domain/cart"
)

// PostgresCartRepository stores carts in the carts and cart_items tables.
// Save is guarded by the cart's version column.
type PostgresCartRepository struct {
	db *sql.DB
}

func NewPostgresCartRepository(db *sql.DB) *PostgresCartRepository {
	return &PostgresCartRepository{db: db}
}

// FindByUserID reads the cart row and its lines in one repeatable-read
// transaction so the total always matches the lines returned.
func (r *PostgresCartRepository) FindByUserID(ctx context.Context, userID string) (*cart.Cart, error) {
	var c *cart.Cart
	err := withTx(ctx, r.db, readSnapshot, func(tx *sql.Tx) error {
		var err error
		c, err = findCart(ctx, tx, userID)
		return err
	})
	if err != nil {
		if apperr.Kind(err) != nil || errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, cartStoreError("read cart", err)
	}
	return c, nil
}

func findCart(ctx context.Context, tx *sql.Tx, userID string) (*cart.Cart, error) {
	var c cart.Cart
	err := tx.QueryRowContext(ctx,
		`SELECT id, user_id, total_amount, version, created_at, updated_at
		 FROM carts WHERE user_id = $1`,
		userID,
	).Scan(&c.ID, &c.UserID, &c.TotalAmount, &c.Version, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, cart.ErrCartNotFound
	}
	if err != nil {
		return nil, cartStoreError("query cart", err)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT product_id, product_name, product_unit, quantity, unit_price
		 FROM cart_items WHERE cart_id = $1 ORDER BY position`,
		c.ID,
	)
	if err != nil {
		return nil, cartStoreError("query cart items", err)
	}
	defer rows.Close()

	c.Items = []cart.CartLine{}
	for rows.Next() {
		var line cart.CartLine
		if err := rows.Scan(&line.ProductID, &line.ProductName, &line.ProductUnit, &line.Quantity, &line.UnitPrice); err != nil {
			return nil, cartStoreError("scan cart item", err)
		}
		c.Items = append(c.Items, line)
	}
	if err := rows.Err(); err != nil {
		return nil, cartStoreError("iterate cart items", err)
	}
	return &c, nil
}

func (r *PostgresCartRepository) Create(ctx context.Context, c *cart.Cart) error {
	return withTx(ctx, r.db, nil, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO carts (id, user_id, total_amount, version, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			c.ID, c.UserID, c.TotalAmount, c.Version, c.CreatedAt, c.UpdatedAt,
		)
		if isUniqueViolation(err) {
			return cart.ErrCartExists
		}
		if err != nil {
			return cartStoreError("insert cart", err)
		}
		return insertCartItems(ctx, tx, c)
	})
}

// Save replaces the cart's lines and bumps its version. It fails with
// cart.ErrConcurrentModification if the stored version moved since c was read.
func (r *PostgresCartRepository) Save(ctx context.Context, c *cart.Cart) error {
	err := withTx(ctx, r.db, nil, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE carts SET total_amount = $1, version = version + 1, updated_at = $2
			 WHERE id = $3 AND version = $4`,
			c.TotalAmount, c.UpdatedAt, c.ID, c.Version,
		)
		if err != nil {
			return cartStoreError("update cart", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return cartStoreError("update cart", err)
		}
		if n == 0 {
			var exists bool
			if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM carts WHERE id = $1)`, c.ID).Scan(&exists); err != nil {
				return cartStoreError("check cart", err)
			}
			if !exists {
				return cart.ErrCartNotFound
			}
			return cart.ErrConcurrentModification
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, c.ID); err != nil {
			return cartStoreError("delete cart items", err)
		}
		return insertCartItems(ctx, tx, c)
	})
	if err != nil {
		return err
	}
	c.Version++
	return nil
}

func insertCartItems(ctx context.Context, tx *sql.Tx, c *cart.Cart) error {
	for i, line := range c.Items {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO cart_items (cart_id, product_id, product_name, product_unit, quantity, unit_price, position)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			c.ID, line.ProductID, line.ProductName, line.ProductUnit, line.Quantity, line.UnitPrice, i,
		)
		if err != nil {
			return cartStoreError("insert cart item", err)
		}
	}
	return nil
}

func cartStoreError(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	return apperr.Unavailable("cart store", fmt.Errorf("%s: %w", op, err))
}
