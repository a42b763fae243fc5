// Package pricing holds the pure money arithmetic for the storefront: cart
// subtotals, the flat-rate shipping threshold, coupon discounts, and loyalty
// point accrual and redemption. All amounts are integer yen and all division
// truncates toward zero.
package pricing

import (
	"errors"
	"time"

	"github.com/minato/storefront-api/internal/model"
)

var (
	ErrCouponExpired     = errors.New("coupon expired")
	ErrCouponExhausted   = errors.New("coupon usage limit reached")
	ErrCouponMinPurchase = errors.New("subtotal below coupon minimum purchase")
)

// Rules are the site-configurable pricing parameters.
type Rules struct {
	FreeShippingThreshold int64
	ShippingFee           int64
	PointAwardRate        int64
}

func DefaultRules() Rules {
	return Rules{
		FreeShippingThreshold: 5000,
		ShippingFee:           500,
		PointAwardRate:        100,
	}
}

// Line is a cart line with its price already resolved from the product.
type Line struct {
	UnitPrice int64
	Quantity  int
}

func Subtotal(lines []Line) int64 {
	var s int64
	for _, l := range lines {
		s += l.UnitPrice * int64(l.Quantity)
	}
	return s
}

// ShippingFee is 0 at or above the free-shipping threshold, the flat fee
// below it. There is no weight or zone model.
func ShippingFee(subtotal int64, r Rules) int64 {
	if subtotal >= r.FreeShippingThreshold {
		return 0
	}
	return r.ShippingFee
}

// Discount computes the coupon discount against a subtotal. Percentage
// coupons floor; the result is clamped to the coupon's max discount when set
// and always to the subtotal, so a discount can never push a total negative
// on its own.
func Discount(c *model.Coupon, subtotal int64) int64 {
	if c == nil {
		return 0
	}
	var d int64
	switch c.Type {
	case model.CouponFixed:
		d = c.Value
	case model.CouponPercentage:
		d = subtotal * c.Value / 100
		if c.MaxDiscount != nil && d > *c.MaxDiscount {
			d = *c.MaxDiscount
		}
	}
	if d > subtotal {
		d = subtotal
	}
	if d < 0 {
		d = 0
	}
	return d
}

// ValidateCoupon gates coupon selection and is re-run on every quote and at
// order submission, so a cart edited below the minimum after selection drops
// the coupon instead of silently keeping it.
func ValidateCoupon(c *model.Coupon, subtotal int64, now time.Time) error {
	if now.After(c.ExpiresAt) {
		return ErrCouponExpired
	}
	if c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit {
		return ErrCouponExhausted
	}
	if c.MinPurchase != nil && subtotal < *c.MinPurchase {
		return ErrCouponMinPurchase
	}
	return nil
}

// UsablePoints caps redemption at the smaller of the user's balance and the
// amount there is to pay before the discount.
func UsablePoints(balance, subtotal, shipping int64) int64 {
	if balance < 0 {
		return 0
	}
	if max := subtotal + shipping; balance > max {
		return max
	}
	return balance
}

// Total is max(0, subtotal + shipping - discount - pointsUsed).
func Total(subtotal, shipping, discount, pointsUsed int64) int64 {
	t := subtotal + shipping - discount - pointsUsed
	if t < 0 {
		return 0
	}
	return t
}

// EarnedPoints is floor(total / rate). A rate below 1 awards nothing.
func EarnedPoints(total, rate int64) int64 {
	if rate < 1 || total < 0 {
		return 0
	}
	return total / rate
}
