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

type AddressRepository interface {
	Create(ctx context.Context, addr *model.Address) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Address, error)
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]model.Address, error)
	Update(ctx context.Context, addr *model.Address) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type pgAddressRepo struct{ pool *pgxpool.Pool }

func NewAddressRepository(pool *pgxpool.Pool) AddressRepository {
	return &pgAddressRepo{pool: pool}
}

const addressColumns = `id, user_id, name, postal_code, prefecture, city, line1, line2, phone, is_default, created_at, updated_at`

func (r *pgAddressRepo) Create(ctx context.Context, addr *model.Address) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if addr.IsDefault {
		if err := clearDefault(ctx, tx, addr.UserID); err != nil {
			return err
		}
	}

	addr.ID = uuid.New()
	err = tx.QueryRow(ctx,
		`INSERT INTO addresses (id, user_id, name, postal_code, prefecture, city, line1, line2, phone, is_default, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW()) RETURNING created_at, updated_at`,
		addr.ID, addr.UserID, addr.Name, addr.PostalCode, addr.Prefecture, addr.City,
		addr.Line1, addr.Line2, addr.Phone, addr.IsDefault,
	).Scan(&addr.CreatedAt, &addr.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create address: %w", err)
	}
	return tx.Commit(ctx)
}

func (r *pgAddressRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Address, error) {
	a := &model.Address{}
	err := r.pool.QueryRow(ctx,
		`SELECT `+addressColumns+` FROM addresses WHERE id = $1`, id,
	).Scan(&a.ID, &a.UserID, &a.Name, &a.PostalCode, &a.Prefecture, &a.City,
		&a.Line1, &a.Line2, &a.Phone, &a.IsDefault, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get address: %w", err)
	}
	return a, nil
}

func (r *pgAddressRepo) ListByUserID(ctx context.Context, userID uuid.UUID) ([]model.Address, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+addressColumns+` FROM addresses WHERE user_id = $1 ORDER BY is_default DESC, created_at`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}
	defer rows.Close()

	var addresses []model.Address
	for rows.Next() {
		var a model.Address
		if err := rows.Scan(&a.ID, &a.UserID, &a.Name, &a.PostalCode, &a.Prefecture, &a.City,
			&a.Line1, &a.Line2, &a.Phone, &a.IsDefault, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan address: %w", err)
		}
		addresses = append(addresses, a)
	}
	return addresses, nil
}

func (r *pgAddressRepo) Update(ctx context.Context, addr *model.Address) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if addr.IsDefault {
		if err := clearDefault(ctx, tx, addr.UserID); err != nil {
			return err
		}
	}

	err = tx.QueryRow(ctx,
		`UPDATE addresses SET name=$2, postal_code=$3, prefecture=$4, city=$5, line1=$6, line2=$7, phone=$8, is_default=$9, updated_at=NOW()
		 WHERE id=$1 RETURNING updated_at`,
		addr.ID, addr.Name, addr.PostalCode, addr.Prefecture, addr.City,
		addr.Line1, addr.Line2, addr.Phone, addr.IsDefault,
	).Scan(&addr.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("update address: %w", err)
	}
	return tx.Commit(ctx)
}

func (r *pgAddressRepo) Delete(ctx context.Context, id uuid.UUID) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM addresses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete address: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func clearDefault(ctx context.Context, tx pgx.Tx, userID uuid.UUID) error {
	if _, err := tx.Exec(ctx,
		`UPDATE addresses SET is_default = false, updated_at = NOW() WHERE user_id = $1 AND is_default`,
		userID,
	); err != nil {
		return fmt.Errorf("clear default address: %w", err)
	}
	return nil
}
