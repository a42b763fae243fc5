package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minato/storefront-api/internal/model"
)

type fakeFavoriteRepo struct {
	favs map[uuid.UUID][]uuid.UUID
}

func newFakeFavoriteRepo() *fakeFavoriteRepo {
	return &fakeFavoriteRepo{favs: make(map[uuid.UUID][]uuid.UUID)}
}

func (f *fakeFavoriteRepo) Add(_ context.Context, userID, productID uuid.UUID) error {
	for _, id := range f.favs[userID] {
		if id == productID {
			return nil
		}
	}
	f.favs[userID] = append(f.favs[userID], productID)
	return nil
}

func (f *fakeFavoriteRepo) Remove(_ context.Context, userID, productID uuid.UUID) error {
	kept := f.favs[userID][:0]
	for _, id := range f.favs[userID] {
		if id != productID {
			kept = append(kept, id)
		}
	}
	f.favs[userID] = kept
	return nil
}

func (f *fakeFavoriteRepo) ListProductIDs(_ context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	return f.favs[userID], nil
}

func TestFavoriteService_GuestUsesSessionStore(t *testing.T) {
	products := newFakeProductRepo()
	p := products.add(&model.Product{Name: "Tee", IsPublished: true})
	store := newMemStore()
	svc := NewFavoriteService(newFakeFavoriteRepo(), products, store)
	sess := guestSession()
	ctx := context.Background()

	require.NoError(t, svc.Add(ctx, sess, p.ID))
	assert.Len(t, store.wishlist[sess.CartKey()], 1)

	got, err := svc.List(ctx, sess)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Tee", got[0].Name)

	require.NoError(t, svc.Remove(ctx, sess, p.ID))
	assert.Empty(t, store.wishlist[sess.CartKey()])
}

func TestFavoriteService_AuthUsesRepository(t *testing.T) {
	products := newFakeProductRepo()
	p := products.add(&model.Product{Name: "Tee", IsPublished: true})
	repo := newFakeFavoriteRepo()
	svc := NewFavoriteService(repo, products, newMemStore())
	sess := model.Session{UserID: uuid.New()}

	require.NoError(t, svc.Add(context.Background(), sess, p.ID))
	assert.Len(t, repo.favs[sess.UserID], 1)
}

func TestFavoriteService_Add_UnpublishedRejected(t *testing.T) {
	products := newFakeProductRepo()
	p := products.add(&model.Product{Name: "Hidden"})
	svc := NewFavoriteService(newFakeFavoriteRepo(), products, newMemStore())

	err := svc.Add(context.Background(), guestSession(), p.ID)
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestFavoriteService_List_DropsVanishedProducts(t *testing.T) {
	products := newFakeProductRepo()
	p := products.add(&model.Product{Name: "Tee", IsPublished: true})
	store := newMemStore()
	svc := NewFavoriteService(newFakeFavoriteRepo(), products, store)
	sess := guestSession()
	ctx := context.Background()

	require.NoError(t, svc.Add(ctx, sess, p.ID))

	// The product is unpublished after being favorited.
	p.IsPublished = false
	got, err := svc.List(ctx, sess)
	require.NoError(t, err)
	assert.Empty(t, got)
}
