package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/minato/storefront-api/internal/model"
)

type CouponRepository interface {
	Create(ctx context.Context, coupon *model.Coupon) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Coupon, error)
	GetByCode(ctx context.Context, code string) (*model.Coupon, error)
	ListValid(ctx context.Context, now time.Time) ([]model.Coupon, error)
	ListAll(ctx context.Context) ([]model.Coupon, error)
	Update(ctx context.Context, coupon *model.Coupon) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type pgCouponRepo struct{ pool *pgxpool.Pool }

func NewCouponRepository(pool *pgxpool.Pool) CouponRepository {
	return &pgCouponRepo{pool: pool}
}

const couponColumns = `id, code, type, value, min_purchase, max_discount, expires_at, usage_limit, used_count, created_at, updated_at`

func (r *pgCouponRepo) Create(ctx context.Context, coupon *model.Coupon) error {
	coupon.ID = uuid.New()
	query := `INSERT INTO coupons (id, code, type, value, min_purchase, max_discount, expires_at, usage_limit, used_count, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW()) RETURNING created_at, updated_at`
	err := r.pool.QueryRow(ctx, query,
		coupon.ID, coupon.Code, coupon.Type, coupon.Value, coupon.MinPurchase,
		coupon.MaxDiscount, coupon.ExpiresAt, coupon.UsageLimit, coupon.UsedCount,
	).Scan(&coupon.CreatedAt, &coupon.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create coupon: %w", err)
	}
	return nil
}

func (r *pgCouponRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Coupon, error) {
	return r.getOne(ctx, `SELECT `+couponColumns+` FROM coupons WHERE id = $1`, id)
}

func (r *pgCouponRepo) GetByCode(ctx context.Context, code string) (*model.Coupon, error) {
	return r.getOne(ctx, `SELECT `+couponColumns+` FROM coupons WHERE code = $1`, code)
}

func (r *pgCouponRepo) getOne(ctx context.Context, query string, arg any) (*model.Coupon, error) {
	c := &model.Coupon{}
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&c.ID, &c.Code, &c.Type, &c.Value, &c.MinPurchase, &c.MaxDiscount,
		&c.ExpiresAt, &c.UsageLimit, &c.UsedCount, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get coupon: %w", err)
	}
	return c, nil
}

func (r *pgCouponRepo) ListValid(ctx context.Context, now time.Time) ([]model.Coupon, error) {
	return r.list(ctx,
		`SELECT `+couponColumns+` FROM coupons
		 WHERE expires_at > $1 AND (usage_limit IS NULL OR used_count < usage_limit)
		 ORDER BY expires_at`, now)
}

func (r *pgCouponRepo) ListAll(ctx context.Context) ([]model.Coupon, error) {
	return r.list(ctx, `SELECT `+couponColumns+` FROM coupons ORDER BY created_at DESC`)
}

func (r *pgCouponRepo) list(ctx context.Context, query string, args ...any) ([]model.Coupon, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list coupons: %w", err)
	}
	defer rows.Close()

	var coupons []model.Coupon
	for rows.Next() {
		var c model.Coupon
		if err := rows.Scan(&c.ID, &c.Code, &c.Type, &c.Value, &c.MinPurchase, &c.MaxDiscount,
			&c.ExpiresAt, &c.UsageLimit, &c.UsedCount, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan coupon: %w", err)
		}
		coupons = append(coupons, c)
	}
	return coupons, nil
}

func (r *pgCouponRepo) Update(ctx context.Context, coupon *model.Coupon) error {
	query := `UPDATE coupons SET code=$2, type=$3, value=$4, min_purchase=$5, max_discount=$6, expires_at=$7, usage_limit=$8, updated_at=NOW()
			  WHERE id=$1 RETURNING updated_at`
	err := r.pool.QueryRow(ctx, query,
		coupon.ID, coupon.Code, coupon.Type, coupon.Value, coupon.MinPurchase,
		coupon.MaxDiscount, coupon.ExpiresAt, coupon.UsageLimit,
	).Scan(&coupon.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("update coupon: %w", err)
	}
	return nil
}

func (r *pgCouponRepo) Delete(ctx context.Context, id uuid.UUID) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM coupons WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete coupon: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
