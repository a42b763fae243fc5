package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/minato/storefront-api/internal/model"
)

// CartRepository stores one row per (user, product, color, size) identity.
// Every mutation targets a single line, so two tabs editing different lines
// never clobber each other.
type CartRepository interface {
	GetLines(ctx context.Context, userID uuid.UUID) ([]model.CartLine, error)
	AddQuantity(ctx context.Context, userID uuid.UUID, line model.CartLine) error
	SetQuantity(ctx context.Context, userID uuid.UUID, line model.CartLine) error
	DeleteLine(ctx context.Context, userID uuid.UUID, line model.CartLine) error
	Clear(ctx context.Context, userID uuid.UUID) error
}

type pgCartRepo struct{ pool *pgxpool.Pool }

func NewCartRepository(pool *pgxpool.Pool) CartRepository {
	return &pgCartRepo{pool: pool}
}

func (r *pgCartRepo) GetLines(ctx context.Context, userID uuid.UUID) ([]model.CartLine, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT product_id, quantity, color, size FROM cart_items WHERE user_id = $1 ORDER BY created_at`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("get cart lines: %w", err)
	}
	defer rows.Close()

	var lines []model.CartLine
	for rows.Next() {
		var l model.CartLine
		if err := rows.Scan(&l.ProductID, &l.Quantity, &l.Color, &l.Size); err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, nil
}

func (r *pgCartRepo) AddQuantity(ctx context.Context, userID uuid.UUID, line model.CartLine) error {
	query := `INSERT INTO cart_items (user_id, product_id, color, size, quantity, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
			  ON CONFLICT (user_id, product_id, color, size)
			  DO UPDATE SET quantity = cart_items.quantity + $5, updated_at = NOW()`
	if _, err := r.pool.Exec(ctx, query, userID, line.ProductID, line.Color, line.Size, line.Quantity); err != nil {
		return fmt.Errorf("add cart quantity: %w", err)
	}
	return nil
}

func (r *pgCartRepo) SetQuantity(ctx context.Context, userID uuid.UUID, line model.CartLine) error {
	query := `INSERT INTO cart_items (user_id, product_id, color, size, quantity, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
			  ON CONFLICT (user_id, product_id, color, size)
			  DO UPDATE SET quantity = $5, updated_at = NOW()`
	if _, err := r.pool.Exec(ctx, query, userID, line.ProductID, line.Color, line.Size, line.Quantity); err != nil {
		return fmt.Errorf("set cart quantity: %w", err)
	}
	return nil
}

func (r *pgCartRepo) DeleteLine(ctx context.Context, userID uuid.UUID, line model.CartLine) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2 AND color = $3 AND size = $4`,
		userID, line.ProductID, line.Color, line.Size,
	)
	if err != nil {
		return fmt.Errorf("delete cart line: %w", err)
	}
	return nil
}

func (r *pgCartRepo) Clear(ctx context.Context, userID uuid.UUID) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}
