package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/minato/storefront-api/internal/model"
	"github.com/minato/storefront-api/internal/repository"
)

// WishlistStore keeps guest wish lists in the session blob.
type WishlistStore interface {
	Wishlist(ctx context.Context, key string) ([]uuid.UUID, error)
	AddToWishlist(ctx context.Context, key string, productID uuid.UUID) error
	RemoveFromWishlist(ctx context.Context, key string, productID uuid.UUID) error
}

type FavoriteService struct {
	favoriteRepo repository.FavoriteRepository
	productRepo  repository.ProductRepository
	store        WishlistStore
}

func NewFavoriteService(favoriteRepo repository.FavoriteRepository, productRepo repository.ProductRepository, store WishlistStore) *FavoriteService {
	return &FavoriteService{favoriteRepo: favoriteRepo, productRepo: productRepo, store: store}
}

func (s *FavoriteService) Add(ctx context.Context, sess model.Session, productID uuid.UUID) error {
	product, err := s.productRepo.GetByID(ctx, productID)
	if err != nil {
		return err
	}
	if product == nil || !product.IsPublished {
		return ErrProductNotFound
	}
	if sess.Authenticated() {
		return s.favoriteRepo.Add(ctx, sess.UserID, productID)
	}
	return s.store.AddToWishlist(ctx, sess.CartKey(), productID)
}

func (s *FavoriteService) Remove(ctx context.Context, sess model.Session, productID uuid.UUID) error {
	if sess.Authenticated() {
		return s.favoriteRepo.Remove(ctx, sess.UserID, productID)
	}
	return s.store.RemoveFromWishlist(ctx, sess.CartKey(), productID)
}

// List resolves favorites to products, dropping entries whose product has
// vanished or been unpublished since.
func (s *FavoriteService) List(ctx context.Context, sess model.Session) ([]model.Product, error) {
	var ids []uuid.UUID
	var err error
	if sess.Authenticated() {
		ids, err = s.favoriteRepo.ListProductIDs(ctx, sess.UserID)
	} else {
		ids, err = s.store.Wishlist(ctx, sess.CartKey())
	}
	if err != nil {
		return nil, err
	}

	var products []model.Product
	for _, id := range ids {
		product, err := s.productRepo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if product == nil || !product.IsPublished {
			continue
		}
		products = append(products, *product)
	}
	return products, nil
}
