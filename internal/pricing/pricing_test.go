package pricing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minato/storefront-api/internal/model"
)

func i64(v int64) *int64 { return &v }

func TestSubtotal(t *testing.T) {
	assert.Equal(t, int64(0), Subtotal(nil))
	assert.Equal(t, int64(4500), Subtotal([]Line{
		{UnitPrice: 1500, Quantity: 3},
	}))
	assert.Equal(t, int64(5300), Subtotal([]Line{
		{UnitPrice: 1500, Quantity: 3},
		{UnitPrice: 800, Quantity: 1},
	}))
}

func TestShippingFee_Threshold(t *testing.T) {
	rules := DefaultRules()

	tests := []struct {
		name     string
		subtotal int64
		want     int64
	}{
		{"below threshold", 4500, 500},
		{"one yen below", 4999, 500},
		{"exactly at threshold", 5000, 0},
		{"above threshold", 12000, 0},
		{"empty cart", 0, 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShippingFee(tt.subtotal, rules))
		})
	}
}

func TestDiscount_Fixed(t *testing.T) {
	coupon := &model.Coupon{Type: model.CouponFixed, Value: 500}
	assert.Equal(t, int64(500), Discount(coupon, 4500))

	// A fixed discount larger than the subtotal clamps to the subtotal.
	assert.Equal(t, int64(300), Discount(coupon, 300))
	assert.Equal(t, int64(0), Discount(coupon, 0))
}

func TestDiscount_Percentage(t *testing.T) {
	coupon := &model.Coupon{Type: model.CouponPercentage, Value: 10, MaxDiscount: i64(1000)}

	// 10% of 12000 is 1200, capped at 1000.
	assert.Equal(t, int64(1000), Discount(coupon, 12000))
	assert.Equal(t, int64(450), Discount(coupon, 4500))

	// Division floors: 10% of 1999 is 199, not 199.9.
	uncapped := &model.Coupon{Type: model.CouponPercentage, Value: 10}
	assert.Equal(t, int64(199), Discount(uncapped, 1999))
}

func TestDiscount_NilCoupon(t *testing.T) {
	assert.Equal(t, int64(0), Discount(nil, 5000))
}

func TestValidateCoupon(t *testing.T) {
	now := time.Now()
	future := now.Add(24 * time.Hour)
	past := now.Add(-24 * time.Hour)
	limit := 5

	tests := []struct {
		name     string
		coupon   model.Coupon
		subtotal int64
		wantErr  error
	}{
		{"valid", model.Coupon{ExpiresAt: future}, 1000, nil},
		{"expired", model.Coupon{ExpiresAt: past}, 1000, ErrCouponExpired},
		{"exhausted", model.Coupon{ExpiresAt: future, UsageLimit: &limit, UsedCount: 5}, 1000, ErrCouponExhausted},
		{"under limit", model.Coupon{ExpiresAt: future, UsageLimit: &limit, UsedCount: 4}, 1000, nil},
		{"below min purchase", model.Coupon{ExpiresAt: future, MinPurchase: i64(3000)}, 2999, ErrCouponMinPurchase},
		{"at min purchase", model.Coupon{ExpiresAt: future, MinPurchase: i64(3000)}, 3000, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCoupon(&tt.coupon, tt.subtotal, now)
			if tt.wantErr == nil {
				require.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestUsablePoints(t *testing.T) {
	// Balance below the payable amount: the whole balance is usable.
	assert.Equal(t, int64(300), UsablePoints(300, 4500, 500))

	// Balance above subtotal+shipping clamps to what there is to pay.
	assert.Equal(t, int64(5000), UsablePoints(8000, 4500, 500))

	assert.Equal(t, int64(0), UsablePoints(0, 4500, 500))
	assert.Equal(t, int64(0), UsablePoints(-10, 4500, 500))
}

func TestTotal(t *testing.T) {
	assert.Equal(t, int64(5000), Total(4500, 500, 0, 0))
	assert.Equal(t, int64(4500), Total(4500, 500, 500, 0))
	assert.Equal(t, int64(4200), Total(4500, 500, 500, 300))

	// Total never goes negative.
	assert.Equal(t, int64(0), Total(100, 0, 500, 0))
}

func TestEarnedPoints(t *testing.T) {
	assert.Equal(t, int64(45), EarnedPoints(4500, 100))
	assert.Equal(t, int64(0), EarnedPoints(99, 100))
	assert.Equal(t, int64(0), EarnedPoints(4500, 0))
	assert.Equal(t, int64(0), EarnedPoints(-1, 100))
}

// Full scenario: two items below the free-shipping threshold with a
// percentage coupon and points. Mirrors the arithmetic checkout performs.
func TestCheckoutArithmetic(t *testing.T) {
	rules := DefaultRules()

	lines := []Line{
		{UnitPrice: 1500, Quantity: 2},
		{UnitPrice: 800, Quantity: 1},
	}
	subtotal := Subtotal(lines)
	require.Equal(t, int64(3800), subtotal)

	shipping := ShippingFee(subtotal, rules)
	require.Equal(t, int64(500), shipping)

	coupon := &model.Coupon{Type: model.CouponPercentage, Value: 10, ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, ValidateCoupon(coupon, subtotal, time.Now()))
	discount := Discount(coupon, subtotal)
	require.Equal(t, int64(380), discount)

	points := UsablePoints(200, subtotal, shipping)
	require.Equal(t, int64(200), points)

	total := Total(subtotal, shipping, discount, points)
	assert.Equal(t, int64(3720), total)
	assert.Equal(t, int64(37), EarnedPoints(total, rules.PointAwardRate))
}
