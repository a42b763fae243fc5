package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/minato/storefront-api/internal/model"
)

var (
	ErrCouponExhausted    = errors.New("coupon usage limit reached")
	ErrInsufficientPoints = errors.New("insufficient point balance")
	ErrOrderNotCancellable = errors.New("order cannot be cancelled")
)

// InsufficientStockError names the line that could not be fulfilled.
type InsufficientStockError struct {
	ProductID uuid.UUID
	Name      string
	Color     string
}

func (e *InsufficientStockError) Error() string {
	if e.Color != "" {
		return fmt.Sprintf("insufficient stock for %s (%s)", e.Name, e.Color)
	}
	return fmt.Sprintf("insufficient stock for %s", e.Name)
}

type OrderFilter struct {
	Limit  int
	Offset int
	Status string
}

type OrderRepository interface {
	// PlaceOrder decrements stock for every item, writes the order and its
	// items, counts coupon usage, and settles loyalty points, all in a
	// single transaction. Either everything commits or nothing does.
	PlaceOrder(ctx context.Context, order *model.Order, couponID *uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error)
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]model.Order, error)
	List(ctx context.Context, filter OrderFilter) ([]model.Order, int, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.OrderStatus) error
	// Cancel marks the order cancelled, restocks its items, and reverses
	// any point settlement in one transaction.
	Cancel(ctx context.Context, id uuid.UUID) error
}

type pgOrderRepo struct{ pool *pgxpool.Pool }

func NewOrderRepository(pool *pgxpool.Pool) OrderRepository {
	return &pgOrderRepo{pool: pool}
}

func (r *pgOrderRepo) PlaceOrder(ctx context.Context, order *model.Order, couponID *uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, item := range order.Items {
		if err := decrementStock(ctx, tx, item); err != nil {
			return err
		}
	}

	order.ID = uuid.New()
	var userID *uuid.UUID
	if order.UserID != uuid.Nil {
		userID = &order.UserID
	}
	err = tx.QueryRow(ctx,
		`INSERT INTO orders (id, order_number, user_id, status, shipping_address, payment_method, coupon_code,
							 subtotal, shipping_fee, discount, points_used, total, earned_points, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW()) RETURNING created_at, updated_at`,
		order.ID, order.OrderNumber, userID, order.Status, order.ShippingAddress, order.PaymentMethod,
		order.CouponCode, order.Subtotal, order.ShippingFee, order.Discount, order.PointsUsed,
		order.Total, order.EarnedPoints,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for i := range order.Items {
		order.Items[i].ID = uuid.New()
		order.Items[i].OrderID = order.ID
		_, err := tx.Exec(ctx,
			`INSERT INTO order_items (id, order_id, product_id, name, price, quantity, color, size)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			order.Items[i].ID, order.ID, order.Items[i].ProductID, order.Items[i].Name,
			order.Items[i].Price, order.Items[i].Quantity, order.Items[i].Color, order.Items[i].Size,
		)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	if couponID != nil {
		ct, err := tx.Exec(ctx,
			`UPDATE coupons SET used_count = used_count + 1, updated_at = NOW()
			 WHERE id = $1 AND (usage_limit IS NULL OR used_count < usage_limit)`,
			*couponID,
		)
		if err != nil {
			return fmt.Errorf("count coupon usage: %w", err)
		}
		if ct.RowsAffected() == 0 {
			return ErrCouponExhausted
		}
	}

	if order.UserID != uuid.Nil && (order.PointsUsed > 0 || order.EarnedPoints > 0) {
		ct, err := tx.Exec(ctx,
			`UPDATE users SET points = points - $2 + $3, updated_at = NOW() WHERE id = $1 AND points >= $2`,
			order.UserID, order.PointsUsed, order.EarnedPoints,
		)
		if err != nil {
			return fmt.Errorf("settle points: %w", err)
		}
		if ct.RowsAffected() == 0 {
			return ErrInsufficientPoints
		}
	}

	return tx.Commit(ctx)
}

func (r *pgOrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	order := &model.Order{}
	var userID *uuid.UUID
	err := r.pool.QueryRow(ctx,
		`SELECT id, order_number, user_id, status, shipping_address, payment_method, coupon_code,
				subtotal, shipping_fee, discount, points_used, total, earned_points, created_at, updated_at
		 FROM orders WHERE id = $1`, id,
	).Scan(&order.ID, &order.OrderNumber, &userID, &order.Status, &order.ShippingAddress,
		&order.PaymentMethod, &order.CouponCode, &order.Subtotal, &order.ShippingFee,
		&order.Discount, &order.PointsUsed, &order.Total, &order.EarnedPoints,
		&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if userID != nil {
		order.UserID = *userID
	}

	items, err := r.itemsFor(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return order, nil
}

func (r *pgOrderRepo) ListByUserID(ctx context.Context, userID uuid.UUID) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, order_number, status, payment_method, coupon_code,
				subtotal, shipping_fee, discount, points_used, total, earned_points, created_at, updated_at
		 FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		o := model.Order{UserID: userID}
		if err := rows.Scan(&o.ID, &o.OrderNumber, &o.Status, &o.PaymentMethod, &o.CouponCode,
			&o.Subtotal, &o.ShippingFee, &o.Discount, &o.PointsUsed, &o.Total, &o.EarnedPoints,
			&o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, nil
}

func (r *pgOrderRepo) List(ctx context.Context, f OrderFilter) ([]model.Order, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM orders WHERE ($1 = '' OR status = $1)`, f.Status,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, order_number, user_id, status, payment_method, coupon_code,
				subtotal, shipping_fee, discount, points_used, total, earned_points, created_at, updated_at
		 FROM orders WHERE ($1 = '' OR status = $1) ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		f.Status, f.Limit, f.Offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		var o model.Order
		var userID *uuid.UUID
		if err := rows.Scan(&o.ID, &o.OrderNumber, &userID, &o.Status, &o.PaymentMethod, &o.CouponCode,
			&o.Subtotal, &o.ShippingFee, &o.Discount, &o.PointsUsed, &o.Total, &o.EarnedPoints,
			&o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan order: %w", err)
		}
		if userID != nil {
			o.UserID = *userID
		}
		orders = append(orders, o)
	}
	return orders, total, nil
}

func (r *pgOrderRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status model.OrderStatus) error {
	ct, err := r.pool.Exec(ctx,
		`UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1`, id, status,
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *pgOrderRepo) Cancel(ctx context.Context, id uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	order := &model.Order{}
	var userID *uuid.UUID
	err = tx.QueryRow(ctx,
		`UPDATE orders SET status = 'cancelled', updated_at = NOW()
		 WHERE id = $1 AND status IN ('pending', 'shipping')
		 RETURNING user_id, points_used, earned_points`, id,
	).Scan(&userID, &order.PointsUsed, &order.EarnedPoints)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrOrderNotCancellable
		}
		return fmt.Errorf("cancel order: %w", err)
	}

	items, err := r.itemsFor(ctx, id)
	if err != nil {
		return err
	}
	for _, item := range items {
		if err := incrementStock(ctx, tx, item); err != nil {
			return err
		}
	}

	if userID != nil {
		_, err := tx.Exec(ctx,
			`UPDATE users SET points = GREATEST(0, points + $2 - $3), updated_at = NOW() WHERE id = $1`,
			*userID, order.PointsUsed, order.EarnedPoints,
		)
		if err != nil {
			return fmt.Errorf("reverse points: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (r *pgOrderRepo) itemsFor(ctx context.Context, orderID uuid.UUID) ([]model.OrderItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, product_id, name, price, quantity, color, size FROM order_items WHERE order_id = $1`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	var items []model.OrderItem
	for rows.Next() {
		item := model.OrderItem{OrderID: orderID}
		if err := rows.Scan(&item.ID, &item.ProductID, &item.Name, &item.Price,
			&item.Quantity, &item.Color, &item.Size); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}
	return items, nil
}

// decrementStock prefers the variant row matching the item's color and falls
// back to product-level stock when the product has no such variant. The
// stock >= quantity guard is the authoritative check; a miss means the line
// cannot be fulfilled.
func decrementStock(ctx context.Context, tx pgx.Tx, item model.OrderItem) error {
	if item.Color != "" {
		ct, err := tx.Exec(ctx,
			`UPDATE product_variants SET stock = stock - $3 WHERE product_id = $1 AND color = $2 AND stock >= $3`,
			item.ProductID, item.Color, item.Quantity,
		)
		if err != nil {
			return fmt.Errorf("decrement variant stock: %w", err)
		}
		if ct.RowsAffected() > 0 {
			return nil
		}
		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM product_variants WHERE product_id = $1 AND color = $2)`,
			item.ProductID, item.Color,
		).Scan(&exists); err != nil {
			return fmt.Errorf("check variant: %w", err)
		}
		if exists {
			return &InsufficientStockError{ProductID: item.ProductID, Name: item.Name, Color: item.Color}
		}
	}

	ct, err := tx.Exec(ctx,
		`UPDATE products SET stock = stock - $2, updated_at = NOW() WHERE id = $1 AND stock >= $2`,
		item.ProductID, item.Quantity,
	)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return &InsufficientStockError{ProductID: item.ProductID, Name: item.Name}
	}
	return nil
}

func incrementStock(ctx context.Context, tx pgx.Tx, item model.OrderItem) error {
	if item.Color != "" {
		ct, err := tx.Exec(ctx,
			`UPDATE product_variants SET stock = stock + $3 WHERE product_id = $1 AND color = $2`,
			item.ProductID, item.Color, item.Quantity,
		)
		if err != nil {
			return fmt.Errorf("restock variant: %w", err)
		}
		if ct.RowsAffected() > 0 {
			return nil
		}
	}
	_, err := tx.Exec(ctx,
		`UPDATE products SET stock = stock + $2, updated_at = NOW() WHERE id = $1`,
		item.ProductID, item.Quantity,
	)
	if err != nil {
		return fmt.Errorf("restock product: %w", err)
	}
	return nil
}
