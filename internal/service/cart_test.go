package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minato/storefront-api/internal/localstore"
	"github.com/minato/storefront-api/internal/model"
	"github.com/minato/storefront-api/internal/pricing"
	"github.com/minato/storefront-api/internal/repository"
)

var testLog = slog.New(slog.NewTextHandler(io.Discard, nil))

// memStore is an in-memory stand-in for the Redis-backed session store. It
// backs guest carts, wishlists, drafts, receipts, and the guest order
// mirror.
type memStore struct {
	lines    map[string][]model.CartLine
	coupons  map[string]string
	wishlist map[string][]uuid.UUID
	orders   map[string][]model.Order
	drafts   map[string][]byte
	receipts map[string]*model.Order
}

func newMemStore() *memStore {
	return &memStore{
		lines:    make(map[string][]model.CartLine),
		coupons:  make(map[string]string),
		wishlist: make(map[string][]uuid.UUID),
		orders:   make(map[string][]model.Order),
		drafts:   make(map[string][]byte),
		receipts: make(map[string]*model.Order),
	}
}

func (m *memStore) CartLines(_ context.Context, key string) ([]model.CartLine, error) {
	return m.lines[key], nil
}

func (m *memStore) SaveCartLines(_ context.Context, key string, lines []model.CartLine) error {
	m.lines[key] = lines
	return nil
}

func (m *memStore) ClearCart(_ context.Context, key string) error {
	delete(m.lines, key)
	delete(m.coupons, key)
	return nil
}

func (m *memStore) CouponCode(_ context.Context, key string) (string, error) {
	return m.coupons[key], nil
}

func (m *memStore) SetCouponCode(_ context.Context, key, code string) error {
	m.coupons[key] = code
	return nil
}

func (m *memStore) Wishlist(_ context.Context, key string) ([]uuid.UUID, error) {
	return m.wishlist[key], nil
}

func (m *memStore) AddToWishlist(_ context.Context, key string, productID uuid.UUID) error {
	m.wishlist[key] = append(m.wishlist[key], productID)
	return nil
}

func (m *memStore) RemoveFromWishlist(_ context.Context, key string, productID uuid.UUID) error {
	kept := m.wishlist[key][:0]
	for _, id := range m.wishlist[key] {
		if id != productID {
			kept = append(kept, id)
		}
	}
	m.wishlist[key] = kept
	return nil
}

func (m *memStore) AppendOrder(_ context.Context, key string, order model.Order) error {
	m.orders[key] = append(m.orders[key], order)
	return nil
}

func (m *memStore) Orders(_ context.Context, key string) ([]model.Order, error) {
	return m.orders[key], nil
}

func (m *memStore) Drop(_ context.Context, key string) error {
	delete(m.lines, key)
	delete(m.coupons, key)
	delete(m.wishlist, key)
	return nil
}

func (m *memStore) SaveDraft(_ context.Context, key string, draft any) error {
	data, err := json.Marshal(draft)
	if err != nil {
		return err
	}
	m.drafts[key] = data
	return nil
}

func (m *memStore) Draft(_ context.Context, key string, draft any) error {
	data, ok := m.drafts[key]
	if !ok {
		return localstore.ErrNoDraft
	}
	return json.Unmarshal(data, draft)
}

func (m *memStore) DeleteDraft(_ context.Context, key string) error {
	delete(m.drafts, key)
	return nil
}

func (m *memStore) SaveReceipt(_ context.Context, key string, order *model.Order) error {
	m.receipts[key] = order
	return nil
}

func (m *memStore) TakeReceipt(_ context.Context, key string) (*model.Order, error) {
	order := m.receipts[key]
	delete(m.receipts, key)
	return order, nil
}

// --- fake repositories ---

type fakeCartRepo struct {
	lines map[uuid.UUID]map[string]model.CartLine
	fail  bool
}

func newFakeCartRepo() *fakeCartRepo {
	return &fakeCartRepo{lines: make(map[uuid.UUID]map[string]model.CartLine)}
}

var errRepoDown = errors.New("database unavailable")

func (f *fakeCartRepo) userLines(userID uuid.UUID) map[string]model.CartLine {
	if f.lines[userID] == nil {
		f.lines[userID] = make(map[string]model.CartLine)
	}
	return f.lines[userID]
}

func (f *fakeCartRepo) GetLines(_ context.Context, userID uuid.UUID) ([]model.CartLine, error) {
	if f.fail {
		return nil, errRepoDown
	}
	var out []model.CartLine
	for _, l := range f.userLines(userID) {
		out = append(out, l)
	}
	return out, nil
}

func (f *fakeCartRepo) AddQuantity(_ context.Context, userID uuid.UUID, line model.CartLine) error {
	if f.fail {
		return errRepoDown
	}
	m := f.userLines(userID)
	if existing, ok := m[line.Key()]; ok {
		existing.Quantity += line.Quantity
		m[line.Key()] = existing
	} else {
		m[line.Key()] = line
	}
	return nil
}

func (f *fakeCartRepo) SetQuantity(_ context.Context, userID uuid.UUID, line model.CartLine) error {
	if f.fail {
		return errRepoDown
	}
	f.userLines(userID)[line.Key()] = line
	return nil
}

func (f *fakeCartRepo) DeleteLine(_ context.Context, userID uuid.UUID, line model.CartLine) error {
	if f.fail {
		return errRepoDown
	}
	delete(f.userLines(userID), line.Key())
	return nil
}

func (f *fakeCartRepo) Clear(_ context.Context, userID uuid.UUID) error {
	if f.fail {
		return errRepoDown
	}
	delete(f.lines, userID)
	return nil
}

type fakeProductRepo struct {
	products map[uuid.UUID]*model.Product
}

func newFakeProductRepo() *fakeProductRepo {
	return &fakeProductRepo{products: make(map[uuid.UUID]*model.Product)}
}

func (f *fakeProductRepo) add(p *model.Product) *model.Product {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	f.products[p.ID] = p
	return p
}

func (f *fakeProductRepo) Create(_ context.Context, p *model.Product) error {
	f.add(p)
	return nil
}

func (f *fakeProductRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Product, error) {
	return f.products[id], nil
}

func (f *fakeProductRepo) List(_ context.Context, filter repository.ProductFilter) ([]model.Product, int, error) {
	var out []model.Product
	for _, p := range f.products {
		if filter.PublishedOnly && !p.IsPublished {
			continue
		}
		out = append(out, *p)
	}
	return out, len(out), nil
}

func (f *fakeProductRepo) Update(_ context.Context, p *model.Product) error {
	f.products[p.ID] = p
	return nil
}

func (f *fakeProductRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(f.products, id)
	return nil
}

func (f *fakeProductRepo) Categories(_ context.Context) ([]string, error) {
	return nil, nil
}

type fakeCouponRepo struct {
	coupons map[string]*model.Coupon
}

func newFakeCouponRepo() *fakeCouponRepo {
	return &fakeCouponRepo{coupons: make(map[string]*model.Coupon)}
}

func (f *fakeCouponRepo) add(c *model.Coupon) *model.Coupon {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	f.coupons[c.Code] = c
	return c
}

func (f *fakeCouponRepo) Create(_ context.Context, c *model.Coupon) error {
	f.add(c)
	return nil
}

func (f *fakeCouponRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Coupon, error) {
	for _, c := range f.coupons {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, nil
}

func (f *fakeCouponRepo) GetByCode(_ context.Context, code string) (*model.Coupon, error) {
	return f.coupons[code], nil
}

func (f *fakeCouponRepo) ListValid(_ context.Context, now time.Time) ([]model.Coupon, error) {
	var out []model.Coupon
	for _, c := range f.coupons {
		if c.ExpiresAt.After(now) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeCouponRepo) ListAll(_ context.Context) ([]model.Coupon, error) {
	var out []model.Coupon
	for _, c := range f.coupons {
		out = append(out, *c)
	}
	return out, nil
}

func (f *fakeCouponRepo) Update(_ context.Context, c *model.Coupon) error {
	f.coupons[c.Code] = c
	return nil
}

func (f *fakeCouponRepo) Delete(_ context.Context, id uuid.UUID) error {
	for code, c := range f.coupons {
		if c.ID == id {
			delete(f.coupons, code)
		}
	}
	return nil
}

// staticRules serves fixed pricing parameters without a settings backend.
type staticRules struct{ rules pricing.Rules }

func (s staticRules) Rules(context.Context) pricing.Rules { return s.rules }

func defaultStaticRules() staticRules {
	return staticRules{rules: pricing.DefaultRules()}
}

type cartFixture struct {
	svc      *CartService
	cartRepo *fakeCartRepo
	products *fakeProductRepo
	coupons  *fakeCouponRepo
	store    *memStore
}

func newCartFixture() *cartFixture {
	f := &cartFixture{
		cartRepo: newFakeCartRepo(),
		products: newFakeProductRepo(),
		coupons:  newFakeCouponRepo(),
		store:    newMemStore(),
	}
	f.svc = NewCartService(f.cartRepo, f.products, f.coupons, f.store, defaultStaticRules(), testLog)
	return f
}

func guestSession() model.Session {
	return model.Session{GuestToken: uuid.NewString()}
}

func TestCartService_AddLine_Guest(t *testing.T) {
	f := newCartFixture()
	p := f.products.add(&model.Product{Name: "Tee", Price: 1500, Stock: 10, IsPublished: true})
	sess := guestSession()

	err := f.svc.AddLine(context.Background(), sess, model.CartLine{ProductID: p.ID, Quantity: 2})
	require.NoError(t, err)

	lines := f.store.lines[sess.CartKey()]
	require.Len(t, lines, 1)
	assert.Equal(t, 2, lines[0].Quantity)
}

func TestCartService_AddLine_MergesSameIdentity(t *testing.T) {
	f := newCartFixture()
	p := f.products.add(&model.Product{Name: "Tee", Price: 1500, Stock: 10, IsPublished: true})
	sess := guestSession()
	ctx := context.Background()

	require.NoError(t, f.svc.AddLine(ctx, sess, model.CartLine{ProductID: p.ID, Quantity: 2, Color: "red", Size: "M"}))
	require.NoError(t, f.svc.AddLine(ctx, sess, model.CartLine{ProductID: p.ID, Quantity: 1, Color: "red", Size: "M"}))

	lines := f.store.lines[sess.CartKey()]
	require.Len(t, lines, 1)
	assert.Equal(t, 3, lines[0].Quantity)
}

func TestCartService_AddLine_DifferentColorIsNewLine(t *testing.T) {
	f := newCartFixture()
	p := f.products.add(&model.Product{Name: "Tee", Price: 1500, Stock: 10, IsPublished: true})
	sess := guestSession()
	ctx := context.Background()

	require.NoError(t, f.svc.AddLine(ctx, sess, model.CartLine{ProductID: p.ID, Quantity: 1, Color: "red"}))
	require.NoError(t, f.svc.AddLine(ctx, sess, model.CartLine{ProductID: p.ID, Quantity: 1, Color: "blue"}))

	assert.Len(t, f.store.lines[sess.CartKey()], 2)
}

func TestCartService_AddLine_StockCoversMergedQuantity(t *testing.T) {
	f := newCartFixture()
	p := f.products.add(&model.Product{Name: "Tee", Price: 1500, Stock: 3, IsPublished: true})
	sess := guestSession()
	ctx := context.Background()

	require.NoError(t, f.svc.AddLine(ctx, sess, model.CartLine{ProductID: p.ID, Quantity: 2}))

	// 2 already in the cart, stock 3: adding 2 more must fail even though
	// 2 alone would fit.
	err := f.svc.AddLine(ctx, sess, model.CartLine{ProductID: p.ID, Quantity: 2})
	assert.ErrorIs(t, err, ErrOutOfStock)
}

func TestCartService_AddLine_VariantStock(t *testing.T) {
	f := newCartFixture()
	p := f.products.add(&model.Product{
		Name: "Tee", Price: 1500, Stock: 100, IsPublished: true,
		Variants: []model.ProductVariant{{Color: "red", Stock: 1}, {Color: "blue", Stock: 5}},
	})
	sess := guestSession()
	ctx := context.Background()

	assert.ErrorIs(t, f.svc.AddLine(ctx, sess, model.CartLine{ProductID: p.ID, Quantity: 2, Color: "red"}), ErrOutOfStock)
	assert.NoError(t, f.svc.AddLine(ctx, sess, model.CartLine{ProductID: p.ID, Quantity: 2, Color: "blue"}))
}

func TestCartService_AddLine_Unpublished(t *testing.T) {
	f := newCartFixture()
	p := f.products.add(&model.Product{Name: "Hidden", Price: 1000, Stock: 10})

	err := f.svc.AddLine(context.Background(), guestSession(), model.CartLine{ProductID: p.ID, Quantity: 1})
	assert.ErrorIs(t, err, ErrProductUnavailable)
}

func TestCartService_AddLine_ProductNotFound(t *testing.T) {
	f := newCartFixture()
	err := f.svc.AddLine(context.Background(), guestSession(), model.CartLine{ProductID: uuid.New(), Quantity: 1})
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestCartService_UpdateQuantity_MissingLine(t *testing.T) {
	f := newCartFixture()
	p := f.products.add(&model.Product{Name: "Tee", Price: 1500, Stock: 10, IsPublished: true})

	err := f.svc.UpdateQuantity(context.Background(), guestSession(), model.CartLine{ProductID: p.ID, Quantity: 1})
	assert.ErrorIs(t, err, ErrLineNotFound)
}

func TestCartService_RemoveAndRestore(t *testing.T) {
	f := newCartFixture()
	p := f.products.add(&model.Product{Name: "Tee", Price: 1500, Stock: 10, IsPublished: true})
	sess := guestSession()
	ctx := context.Background()

	require.NoError(t, f.svc.AddLine(ctx, sess, model.CartLine{ProductID: p.ID, Quantity: 3, Color: "red"}))

	removed, err := f.svc.RemoveLine(ctx, sess, model.CartLine{ProductID: p.ID, Color: "red"})
	require.NoError(t, err)
	require.NotNil(t, removed)
	assert.Equal(t, 3, removed.Quantity)
	assert.Empty(t, f.store.lines[sess.CartKey()])

	// Undo re-inserts the snapshot with the quantity it had at deletion.
	require.NoError(t, f.svc.RestoreLine(ctx, sess, *removed))
	lines := f.store.lines[sess.CartKey()]
	require.Len(t, lines, 1)
	assert.Equal(t, 3, lines[0].Quantity)
}

func TestCartService_AuthFallsBackToMirror(t *testing.T) {
	f := newCartFixture()
	p := f.products.add(&model.Product{Name: "Tee", Price: 1500, Stock: 10, IsPublished: true})
	sess := model.Session{UserID: uuid.New()}
	ctx := context.Background()

	require.NoError(t, f.svc.AddLine(ctx, sess, model.CartLine{ProductID: p.ID, Quantity: 2}))

	// Database goes away: the quote is served from the mirror.
	f.cartRepo.fail = true
	quote, err := f.svc.Quote(ctx, sess)
	require.NoError(t, err)
	require.Len(t, quote.Lines, 1)
	assert.Equal(t, int64(3000), quote.Subtotal)
}

func TestCartService_Merge(t *testing.T) {
	f := newCartFixture()
	p1 := f.products.add(&model.Product{Name: "Tee", Price: 1500, Stock: 10, IsPublished: true})
	p2 := f.products.add(&model.Product{Name: "Gone", Price: 900, Stock: 10})
	userID := uuid.New()
	ctx := context.Background()

	guest := guestSession()
	require.NoError(t, f.svc.AddLine(ctx, guest, model.CartLine{ProductID: p1.ID, Quantity: 2}))
	// Unpublished product snuck into guest state; merge skips it.
	f.store.lines[guest.CartKey()] = append(f.store.lines[guest.CartKey()], model.CartLine{ProductID: p2.ID, Quantity: 1})

	userSess := model.Session{UserID: userID}
	require.NoError(t, f.svc.AddLine(ctx, userSess, model.CartLine{ProductID: p1.ID, Quantity: 1}))

	require.NoError(t, f.svc.Merge(ctx, userID, guest.GuestToken))

	lines, err := f.cartRepo.GetLines(ctx, userID)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 3, lines[0].Quantity)
	assert.Empty(t, f.store.lines[guest.CartKey()])
}

func TestCartService_Quote_RepricesAndFlagsUnavailable(t *testing.T) {
	f := newCartFixture()
	p1 := f.products.add(&model.Product{Name: "Tee", Price: 1500, Stock: 10, IsPublished: true})
	p2 := f.products.add(&model.Product{Name: "Cap", Price: 800, Stock: 10, IsPublished: true})
	sess := guestSession()
	ctx := context.Background()

	require.NoError(t, f.svc.AddLine(ctx, sess, model.CartLine{ProductID: p1.ID, Quantity: 2}))
	require.NoError(t, f.svc.AddLine(ctx, sess, model.CartLine{ProductID: p2.ID, Quantity: 1}))

	// Price changes and one product is unpublished after the lines were
	// stored; the quote reflects both.
	p1.Price = 2000
	p2.IsPublished = false

	quote, err := f.svc.Quote(ctx, sess)
	require.NoError(t, err)
	require.Len(t, quote.Lines, 2)
	assert.Equal(t, int64(4000), quote.Subtotal)
	assert.Equal(t, int64(500), quote.ShippingFee)

	var unavailable int
	for _, l := range quote.Lines {
		if !l.Available {
			unavailable++
		}
	}
	assert.Equal(t, 1, unavailable)
}

func TestCartService_Quote_FreeShippingAtThreshold(t *testing.T) {
	f := newCartFixture()
	p := f.products.add(&model.Product{Name: "Coat", Price: 5000, Stock: 5, IsPublished: true})
	sess := guestSession()

	require.NoError(t, f.svc.AddLine(context.Background(), sess, model.CartLine{ProductID: p.ID, Quantity: 1}))

	quote, err := f.svc.Quote(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), quote.Subtotal)
	assert.Equal(t, int64(0), quote.ShippingFee)
}

func TestCartService_ApplyCoupon(t *testing.T) {
	f := newCartFixture()
	p := f.products.add(&model.Product{Name: "Coat", Price: 12000, Stock: 5, IsPublished: true})
	f.coupons.add(&model.Coupon{
		Code: "SAVE10", Type: model.CouponPercentage, Value: 10,
		MaxDiscount: func() *int64 { v := int64(1000); return &v }(),
		ExpiresAt:   time.Now().Add(time.Hour),
	})
	sess := guestSession()
	ctx := context.Background()

	require.NoError(t, f.svc.AddLine(ctx, sess, model.CartLine{ProductID: p.ID, Quantity: 1}))

	coupon, discount, err := f.svc.ApplyCoupon(ctx, sess, "SAVE10")
	require.NoError(t, err)
	assert.Equal(t, "SAVE10", coupon.Code)
	assert.Equal(t, int64(1000), discount)

	quote, err := f.svc.Quote(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), quote.Discount)
	assert.Equal(t, int64(11000), quote.Total)
}

func TestCartService_ApplyCoupon_BelowMinimum(t *testing.T) {
	f := newCartFixture()
	p := f.products.add(&model.Product{Name: "Cap", Price: 800, Stock: 5, IsPublished: true})
	min := int64(3000)
	f.coupons.add(&model.Coupon{Code: "BIG", Type: model.CouponFixed, Value: 500, MinPurchase: &min, ExpiresAt: time.Now().Add(time.Hour)})
	sess := guestSession()
	ctx := context.Background()

	require.NoError(t, f.svc.AddLine(ctx, sess, model.CartLine{ProductID: p.ID, Quantity: 1}))

	_, _, err := f.svc.ApplyCoupon(ctx, sess, "BIG")
	assert.ErrorIs(t, err, pricing.ErrCouponMinPurchase)
}

func TestCartService_Quote_DropsIneligibleCoupon(t *testing.T) {
	f := newCartFixture()
	p := f.products.add(&model.Product{Name: "Coat", Price: 5000, Stock: 5, IsPublished: true})
	min := int64(4000)
	f.coupons.add(&model.Coupon{Code: "MIN4K", Type: model.CouponFixed, Value: 500, MinPurchase: &min, ExpiresAt: time.Now().Add(time.Hour)})
	sess := guestSession()
	ctx := context.Background()

	require.NoError(t, f.svc.AddLine(ctx, sess, model.CartLine{ProductID: p.ID, Quantity: 1}))
	_, _, err := f.svc.ApplyCoupon(ctx, sess, "MIN4K")
	require.NoError(t, err)

	// The product's price drops below the coupon minimum; the next quote
	// drops the coupon instead of keeping a dead code applied.
	p.Price = 3000
	quote, err := f.svc.Quote(ctx, sess)
	require.NoError(t, err)
	assert.Empty(t, quote.CouponCode)
	assert.Equal(t, int64(0), quote.Discount)
	assert.Empty(t, f.store.coupons[sess.CartKey()])
}
