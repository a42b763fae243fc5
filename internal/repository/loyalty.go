package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PointEvent is one entry in the loyalty ledger, written by the order worker
// after an order commits.
type PointEvent struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	OrderID   uuid.UUID
	Points    int64
	CreatedAt time.Time
}

type LoyaltyRepository interface {
	Record(ctx context.Context, event *PointEvent) error
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]PointEvent, error)
}

type pgLoyaltyRepo struct{ pool *pgxpool.Pool }

func NewLoyaltyRepository(pool *pgxpool.Pool) LoyaltyRepository {
	return &pgLoyaltyRepo{pool: pool}
}

func (r *pgLoyaltyRepo) Record(ctx context.Context, event *PointEvent) error {
	event.ID = uuid.New()
	err := r.pool.QueryRow(ctx,
		`INSERT INTO point_events (id, user_id, order_id, points, created_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 ON CONFLICT (order_id) DO NOTHING
		 RETURNING created_at`,
		event.ID, event.UserID, event.OrderID, event.Points,
	).Scan(&event.CreatedAt)
	if err != nil {
		// Conflict means the order was already recorded; that is fine for
		// an at-least-once consumer.
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("record point event: %w", err)
	}
	return nil
}

func (r *pgLoyaltyRepo) ListByUserID(ctx context.Context, userID uuid.UUID) ([]PointEvent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, order_id, points, created_at FROM point_events
		 WHERE user_id = $1 ORDER BY created_at DESC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list point events: %w", err)
	}
	defer rows.Close()

	var events []PointEvent
	for rows.Next() {
		var e PointEvent
		if err := rows.Scan(&e.ID, &e.UserID, &e.OrderID, &e.Points, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan point event: %w", err)
		}
		events = append(events, e)
	}
	return events, nil
}
