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

type ProductFilter struct {
	Limit         int
	Offset        int
	Search        string
	Sort          string
	Order         string
	Category      string
	PublishedOnly bool
}

type ProductRepository interface {
	Create(ctx context.Context, product *model.Product) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Product, error)
	List(ctx context.Context, filter ProductFilter) ([]model.Product, int, error)
	Update(ctx context.Context, product *model.Product) error
	Delete(ctx context.Context, id uuid.UUID) error
	Categories(ctx context.Context) ([]string, error)
}

type pgProductRepo struct{ pool *pgxpool.Pool }

func NewProductRepository(pool *pgxpool.Pool) ProductRepository {
	return &pgProductRepo{pool: pool}
}

func (r *pgProductRepo) Create(ctx context.Context, product *model.Product) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	product.ID = uuid.New()
	query := `INSERT INTO products (id, name, description, price, original_price, stock, images, category, is_published, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW()) RETURNING created_at, updated_at`
	err = tx.QueryRow(ctx, query,
		product.ID, product.Name, product.Description, product.Price, product.OriginalPrice,
		product.Stock, product.Images, product.Category, product.IsPublished,
	).Scan(&product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create product: %w", err)
	}

	if err := replaceVariants(ctx, tx, product.ID, product.Variants); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *pgProductRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	query := `SELECT id, name, description, price, original_price, stock, images, category, is_published, created_at, updated_at
			  FROM products WHERE id = $1`
	p := &model.Product{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.Name, &p.Description, &p.Price, &p.OriginalPrice,
		&p.Stock, &p.Images, &p.Category, &p.IsPublished, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT color, stock FROM product_variants WHERE product_id = $1 ORDER BY color`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("get product variants: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var v model.ProductVariant
		if err := rows.Scan(&v.Color, &v.Stock); err != nil {
			return nil, fmt.Errorf("scan product variant: %w", err)
		}
		p.Variants = append(p.Variants, v)
	}
	return p, nil
}

func (r *pgProductRepo) List(ctx context.Context, f ProductFilter) ([]model.Product, int, error) {
	allowedSorts := map[string]bool{"name": true, "price": true, "created_at": true}
	if !allowedSorts[f.Sort] {
		f.Sort = "created_at"
	}
	if f.Order != "asc" && f.Order != "desc" {
		f.Order = "desc"
	}

	where := `($1 = '' OR name ILIKE '%' || $1 || '%' OR description ILIKE '%' || $1 || '%')
			  AND ($2 = '' OR category = $2)
			  AND ($3 = false OR is_published)`

	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM products WHERE `+where,
		f.Search, f.Category, f.PublishedOnly,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	query := fmt.Sprintf(`SELECT id, name, description, price, original_price, stock, images, category, is_published, created_at, updated_at
		FROM products WHERE %s ORDER BY %s %s LIMIT $4 OFFSET $5`, where, f.Sort, f.Order)

	rows, err := r.pool.Query(ctx, query, f.Search, f.Category, f.PublishedOnly, f.Limit, f.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []model.Product
	for rows.Next() {
		var p model.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.OriginalPrice,
			&p.Stock, &p.Images, &p.Category, &p.IsPublished, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, total, nil
}

func (r *pgProductRepo) Update(ctx context.Context, product *model.Product) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `UPDATE products SET name=$2, description=$3, price=$4, original_price=$5, stock=$6, images=$7, category=$8, is_published=$9, updated_at=NOW()
			  WHERE id=$1 RETURNING updated_at`
	err = tx.QueryRow(ctx, query,
		product.ID, product.Name, product.Description, product.Price, product.OriginalPrice,
		product.Stock, product.Images, product.Category, product.IsPublished,
	).Scan(&product.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("update product: %w", err)
	}

	if err := replaceVariants(ctx, tx, product.ID, product.Variants); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *pgProductRepo) Delete(ctx context.Context, id uuid.UUID) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *pgProductRepo) Categories(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT category FROM products WHERE is_published AND category <> '' ORDER BY category`,
	)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, nil
}

func replaceVariants(ctx context.Context, tx pgx.Tx, productID uuid.UUID, variants []model.ProductVariant) error {
	if _, err := tx.Exec(ctx, `DELETE FROM product_variants WHERE product_id = $1`, productID); err != nil {
		return fmt.Errorf("clear product variants: %w", err)
	}
	for _, v := range variants {
		_, err := tx.Exec(ctx,
			`INSERT INTO product_variants (product_id, color, stock) VALUES ($1, $2, $3)`,
			productID, v.Color, v.Stock,
		)
		if err != nil {
			return fmt.Errorf("insert product variant: %w", err)
		}
	}
	return nil
}
