package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/minato/storefront-api/internal/model"
	"github.com/minato/storefront-api/internal/repository"
)

const productCacheTTL = 60 * time.Second

type ProductService struct {
	productRepo repository.ProductRepository
	redisClient *redis.Client
}

func NewProductService(productRepo repository.ProductRepository, redisClient *redis.Client) *ProductService {
	return &ProductService{productRepo: productRepo, redisClient: redisClient}
}

// Get serves the storefront: unpublished products are indistinguishable
// from missing ones.
func (s *ProductService) Get(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	product, err := s.getCached(ctx, id)
	if err != nil {
		return nil, err
	}
	if product == nil || !product.IsPublished {
		return nil, ErrProductNotFound
	}
	return product, nil
}

// AdminGet returns the product regardless of publication state.
func (s *ProductService) AdminGet(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return nil, ErrProductNotFound
	}
	return product, nil
}

func (s *ProductService) getCached(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	cacheKey := "product:" + id.String()

	if s.redisClient != nil {
		if cached, err := s.redisClient.Get(ctx, cacheKey).Result(); err == nil {
			product := &model.Product{}
			if json.Unmarshal([]byte(cached), product) == nil {
				return product, nil
			}
		}
	}

	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return nil, nil
	}

	if s.redisClient != nil {
		if data, err := json.Marshal(product); err == nil {
			s.redisClient.Set(ctx, cacheKey, data, productCacheTTL)
		}
	}
	return product, nil
}

func (s *ProductService) List(ctx context.Context, filter repository.ProductFilter) ([]model.Product, int, error) {
	filter.PublishedOnly = true
	return s.productRepo.List(ctx, filter)
}

func (s *ProductService) AdminList(ctx context.Context, filter repository.ProductFilter) ([]model.Product, int, error) {
	return s.productRepo.List(ctx, filter)
}

func (s *ProductService) Categories(ctx context.Context) ([]string, error) {
	return s.productRepo.Categories(ctx)
}

func (s *ProductService) Create(ctx context.Context, product *model.Product) error {
	if err := s.productRepo.Create(ctx, product); err != nil {
		return fmt.Errorf("create product: %w", err)
	}
	return nil
}

func (s *ProductService) Update(ctx context.Context, product *model.Product) error {
	existing, err := s.productRepo.GetByID(ctx, product.ID)
	if err != nil {
		return fmt.Errorf("get product: %w", err)
	}
	if existing == nil {
		return ErrProductNotFound
	}
	if err := s.productRepo.Update(ctx, product); err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	s.invalidateCache(ctx, product.ID)
	return nil
}

func (s *ProductService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.productRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	s.invalidateCache(ctx, id)
	return nil
}

func (s *ProductService) invalidateCache(ctx context.Context, id uuid.UUID) {
	if s.redisClient != nil {
		s.redisClient.Del(ctx, "product:"+id.String())
	}
}
