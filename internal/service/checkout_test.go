package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minato/storefront-api/internal/model"
	"github.com/minato/storefront-api/internal/repository"
)

type fakeOrderRepo struct {
	orders   map[uuid.UUID]*model.Order
	placeErr error
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[uuid.UUID]*model.Order)}
}

func (f *fakeOrderRepo) PlaceOrder(_ context.Context, order *model.Order, _ *uuid.UUID) error {
	if f.placeErr != nil {
		return f.placeErr
	}
	order.ID = uuid.New()
	order.CreatedAt = time.Now()
	f.orders[order.ID] = order
	return nil
}

func (f *fakeOrderRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Order, error) {
	return f.orders[id], nil
}

func (f *fakeOrderRepo) ListByUserID(_ context.Context, userID uuid.UUID) ([]model.Order, error) {
	var out []model.Order
	for _, o := range f.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeOrderRepo) List(_ context.Context, _ repository.OrderFilter) ([]model.Order, int, error) {
	var out []model.Order
	for _, o := range f.orders {
		out = append(out, *o)
	}
	return out, len(out), nil
}

func (f *fakeOrderRepo) UpdateStatus(_ context.Context, id uuid.UUID, status model.OrderStatus) error {
	if o, ok := f.orders[id]; ok {
		o.Status = status
	}
	return nil
}

func (f *fakeOrderRepo) Cancel(_ context.Context, id uuid.UUID) error {
	if o, ok := f.orders[id]; ok {
		o.Status = model.OrderStatusCancelled
	}
	return nil
}

type fakeUserRepo struct {
	users map[uuid.UUID]*model.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uuid.UUID]*model.User)}
}

func (f *fakeUserRepo) add(u *model.User) *model.User {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	f.users[u.ID] = u
	return u
}

func (f *fakeUserRepo) Create(_ context.Context, u *model.User) error {
	f.add(u)
	return nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	return f.users[id], nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (f *fakeUserRepo) UpdateProfile(_ context.Context, id uuid.UUID, name, phone string) error {
	if u, ok := f.users[id]; ok {
		u.Name, u.Phone = name, phone
	}
	return nil
}

func (f *fakeUserRepo) List(_ context.Context, _, _ int) ([]model.User, int, error) {
	var out []model.User
	for _, u := range f.users {
		out = append(out, *u)
	}
	return out, len(out), nil
}

func (f *fakeUserRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(f.users, id)
	return nil
}

type checkoutFixture struct {
	*cartFixture
	svc       *CheckoutService
	orderRepo *fakeOrderRepo
	userRepo  *fakeUserRepo
}

func newCheckoutFixture() *checkoutFixture {
	cf := newCartFixture()
	f := &checkoutFixture{
		cartFixture: cf,
		orderRepo:   newFakeOrderRepo(),
		userRepo:    newFakeUserRepo(),
	}
	f.svc = NewCheckoutService(
		f.orderRepo, cf.products, cf.coupons, f.userRepo,
		cf.svc, cf.store, defaultStaticRules(), nil, testLog,
	)
	return f
}

func validAddress() model.ShippingAddress {
	return model.ShippingAddress{
		Name:       "Yamada Taro",
		PostalCode: "1500001",
		Prefecture: "Tokyo",
		City:       "Shibuya",
		Line1:      "1-2-3",
		Phone:      "09012345678",
	}
}

func TestValidateShippingForm_FirstViolationWins(t *testing.T) {
	addr := validAddress()
	addr.Name = ""
	addr.PostalCode = "bad"

	err := ValidateShippingForm(addr, "credit_card")
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "name", vErr.Field)
}

func TestValidateShippingForm(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*model.ShippingAddress)
		payment string
		field   string
	}{
		{"valid", func(a *model.ShippingAddress) {}, "credit_card", ""},
		{"postal too short", func(a *model.ShippingAddress) { a.PostalCode = "123456" }, "cod", "postal_code"},
		{"postal with dash", func(a *model.ShippingAddress) { a.PostalCode = "150-0001" }, "cod", "postal_code"},
		{"phone too short", func(a *model.ShippingAddress) { a.Phone = "090123456" }, "cod", "phone"},
		{"phone 10 digits ok", func(a *model.ShippingAddress) { a.Phone = "0312345678" }, "cod", ""},
		{"missing city", func(a *model.ShippingAddress) { a.City = "" }, "cod", "city"},
		{"line2 optional", func(a *model.ShippingAddress) { a.Line2 = "" }, "bank_transfer", ""},
		{"unknown payment", func(a *model.ShippingAddress) {}, "paypal", "payment_method"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr := validAddress()
			tt.mutate(&addr)
			err := ValidateShippingForm(addr, tt.payment)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}
}

func TestCheckout_Confirm_EmptyCart(t *testing.T) {
	f := newCheckoutFixture()
	_, err := f.svc.Confirm(context.Background(), guestSession(), validAddress(), "cod", 0)
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestCheckout_Confirm_GuestCannotUsePoints(t *testing.T) {
	f := newCheckoutFixture()
	_, err := f.svc.Confirm(context.Background(), guestSession(), validAddress(), "cod", 100)
	assert.ErrorIs(t, err, ErrPointsRequireLogin)
}

func TestCheckout_Confirm_FreezesDraft(t *testing.T) {
	f := newCheckoutFixture()
	p := f.products.add(&model.Product{Name: "Coat", Price: 6000, Stock: 5, IsPublished: true})
	sess := guestSession()
	ctx := context.Background()

	require.NoError(t, f.cartFixture.svc.AddLine(ctx, sess, model.CartLine{ProductID: p.ID, Quantity: 1}))

	draft, err := f.svc.Confirm(ctx, sess, validAddress(), "credit_card", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(6000), draft.Subtotal)
	assert.Equal(t, int64(0), draft.ShippingFee)
	assert.Equal(t, int64(6000), draft.Total)
	assert.Equal(t, int64(60), draft.EarnedPoints)
	require.Len(t, draft.Lines, 1)
	assert.Equal(t, "Coat", draft.Lines[0].Name)

	// The draft is in the buffer, ready for submission.
	assert.Contains(t, f.store.drafts, sess.CartKey())
}

func TestCheckout_Confirm_ClampsPointsToUsable(t *testing.T) {
	f := newCheckoutFixture()
	p := f.products.add(&model.Product{Name: "Cap", Price: 1000, Stock: 5, IsPublished: true})
	user := f.userRepo.add(&model.User{Email: "a@example.com", Points: 10000})
	sess := model.Session{UserID: user.ID}
	ctx := context.Background()

	require.NoError(t, f.cartFixture.svc.AddLine(ctx, sess, model.CartLine{ProductID: p.ID, Quantity: 1}))

	// Asking for more points than subtotal+shipping clamps silently.
	draft, err := f.svc.Confirm(ctx, sess, validAddress(), "cod", 9999)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), draft.PointsUsed)
	assert.Equal(t, int64(0), draft.Total)
}

func TestCheckout_Submit_NoDraft(t *testing.T) {
	f := newCheckoutFixture()
	_, err := f.svc.Submit(context.Background(), guestSession())
	assert.ErrorIs(t, err, ErrNoDraft)
}

func TestCheckout_Submit_PlacesOrder(t *testing.T) {
	f := newCheckoutFixture()
	p := f.products.add(&model.Product{Name: "Coat", Price: 4500, Stock: 5, IsPublished: true})
	sess := guestSession()
	ctx := context.Background()

	require.NoError(t, f.cartFixture.svc.AddLine(ctx, sess, model.CartLine{ProductID: p.ID, Quantity: 1}))
	_, err := f.svc.Confirm(ctx, sess, validAddress(), "cod", 0)
	require.NoError(t, err)

	order, err := f.svc.Submit(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, int64(4500), order.Subtotal)
	assert.Equal(t, int64(500), order.ShippingFee)
	assert.Equal(t, int64(5000), order.Total)
	assert.Equal(t, model.OrderStatusPending, order.Status)
	assert.Regexp(t, `^ORD-\d{14}-\d{4}$`, order.OrderNumber)
	assert.Equal(t, uuid.Nil, order.UserID)

	// Cart cleared, draft consumed, receipt staged, guest history mirrored.
	assert.Empty(t, f.store.lines[sess.CartKey()])
	assert.NotContains(t, f.store.drafts, sess.CartKey())
	assert.NotNil(t, f.store.receipts[sess.CartKey()])
	assert.Len(t, f.store.orders[sess.CartKey()], 1)
}

func TestCheckout_Submit_RepricesLiveBeforePlacing(t *testing.T) {
	f := newCheckoutFixture()
	p := f.products.add(&model.Product{Name: "Coat", Price: 4500, Stock: 5, IsPublished: true})
	sess := guestSession()
	ctx := context.Background()

	require.NoError(t, f.cartFixture.svc.AddLine(ctx, sess, model.CartLine{ProductID: p.ID, Quantity: 1}))
	_, err := f.svc.Confirm(ctx, sess, validAddress(), "cod", 0)
	require.NoError(t, err)

	// Price changed between confirmation and submission: the order uses
	// the live price, not the frozen draft.
	p.Price = 5000

	order, err := f.svc.Submit(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), order.Subtotal)
	assert.Equal(t, int64(0), order.ShippingFee)
}

func TestCheckout_Submit_StockFailureKeepsCartAndDraft(t *testing.T) {
	f := newCheckoutFixture()
	p := f.products.add(&model.Product{Name: "Coat", Price: 4500, Stock: 5, IsPublished: true})
	sess := guestSession()
	ctx := context.Background()

	require.NoError(t, f.cartFixture.svc.AddLine(ctx, sess, model.CartLine{ProductID: p.ID, Quantity: 1}))
	_, err := f.svc.Confirm(ctx, sess, validAddress(), "cod", 0)
	require.NoError(t, err)

	f.orderRepo.placeErr = &repository.InsufficientStockError{ProductID: p.ID, Name: p.Name}

	_, err = f.svc.Submit(ctx, sess)
	var stockErr *repository.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)

	// Nothing was consumed: the user can adjust the cart and retry.
	assert.Len(t, f.store.lines[sess.CartKey()], 1)
	assert.Contains(t, f.store.drafts, sess.CartKey())
	assert.Nil(t, f.store.receipts[sess.CartKey()])
}

func TestCheckout_Submit_CouponRevalidated(t *testing.T) {
	f := newCheckoutFixture()
	p := f.products.add(&model.Product{Name: "Coat", Price: 12000, Stock: 5, IsPublished: true})
	coupon := f.coupons.add(&model.Coupon{Code: "SAVE10", Type: model.CouponPercentage, Value: 10, ExpiresAt: time.Now().Add(time.Hour)})
	sess := guestSession()
	ctx := context.Background()

	require.NoError(t, f.cartFixture.svc.AddLine(ctx, sess, model.CartLine{ProductID: p.ID, Quantity: 1}))
	_, _, err := f.cartFixture.svc.ApplyCoupon(ctx, sess, "SAVE10")
	require.NoError(t, err)
	_, err = f.svc.Confirm(ctx, sess, validAddress(), "cod", 0)
	require.NoError(t, err)

	// The coupon expires between confirmation and submission.
	coupon.ExpiresAt = time.Now().Add(-time.Minute)

	_, err = f.svc.Submit(ctx, sess)
	assert.ErrorIs(t, err, ErrCouponNoLongerValid)
	assert.Contains(t, f.store.drafts, sess.CartKey())
}

func TestCheckout_Submit_AuthenticatedOrderEarnsPoints(t *testing.T) {
	f := newCheckoutFixture()
	p := f.products.add(&model.Product{Name: "Coat", Price: 6000, Stock: 5, IsPublished: true})
	user := f.userRepo.add(&model.User{Email: "a@example.com", Points: 300})
	sess := model.Session{UserID: user.ID}
	ctx := context.Background()

	require.NoError(t, f.cartFixture.svc.AddLine(ctx, sess, model.CartLine{ProductID: p.ID, Quantity: 1}))
	_, err := f.svc.Confirm(ctx, sess, validAddress(), "credit_card", 300)
	require.NoError(t, err)

	order, err := f.svc.Submit(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, user.ID, order.UserID)
	assert.Equal(t, int64(300), order.PointsUsed)
	assert.Equal(t, int64(5700), order.Total)
	assert.Equal(t, int64(57), order.EarnedPoints)

	// Authenticated orders live in the database, not the session mirror.
	assert.Empty(t, f.store.orders[sess.CartKey()])
}

func TestCheckout_Receipt_ViewOnce(t *testing.T) {
	f := newCheckoutFixture()
	p := f.products.add(&model.Product{Name: "Coat", Price: 4500, Stock: 5, IsPublished: true})
	sess := guestSession()
	ctx := context.Background()

	require.NoError(t, f.cartFixture.svc.AddLine(ctx, sess, model.CartLine{ProductID: p.ID, Quantity: 1}))
	_, err := f.svc.Confirm(ctx, sess, validAddress(), "cod", 0)
	require.NoError(t, err)
	placed, err := f.svc.Submit(ctx, sess)
	require.NoError(t, err)

	first, err := f.svc.Receipt(ctx, sess)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, placed.ID, first.ID)

	// The second view finds nothing: the caller redirects to history.
	second, err := f.svc.Receipt(ctx, sess)
	require.NoError(t, err)
	assert.Nil(t, second)
}
