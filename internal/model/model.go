package model

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID        uuid.UUID
	Email     string
	Password  string
	Name      string
	Phone     string
	Role      string
	Points    int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

type ProductVariant struct {
	Color string `json:"color"`
	Stock int    `json:"stock"`
}

type Product struct {
	ID            uuid.UUID
	Name          string
	Description   string
	Price         int64
	OriginalPrice *int64
	Stock         int
	Images        []string
	Category      string
	IsPublished   bool
	Variants      []ProductVariant
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// StockFor returns the purchasable stock for a color. Products without
// variants use the product-level stock regardless of color; a color that
// does not match any variant has no stock.
func (p *Product) StockFor(color string) int {
	if len(p.Variants) == 0 {
		return p.Stock
	}
	for _, v := range p.Variants {
		if v.Color == color {
			return v.Stock
		}
	}
	return 0
}

// CartLine is a single cart entry. Price is never stored on the line; it is
// resolved against the current product on every read.
type CartLine struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
	Color     string    `json:"color,omitempty"`
	Size      string    `json:"size,omitempty"`
}

// Key is the canonical line identity. Color and size round-trip through
// different null representations depending on where the cart is stored, so
// absent and empty both collapse to "".
func (l CartLine) Key() string {
	return l.ProductID.String() + "|" + l.Color + "|" + l.Size
}

// SameLine reports whether two entries refer to the same purchasable unit.
func (l CartLine) SameLine(other CartLine) bool {
	return l.Key() == other.Key()
}

type CouponType string

const (
	CouponPercentage CouponType = "percentage"
	CouponFixed      CouponType = "fixed"
)

type Coupon struct {
	ID          uuid.UUID
	Code        string
	Type        CouponType
	Value       int64
	MinPurchase *int64
	MaxDiscount *int64
	ExpiresAt   time.Time
	UsageLimit  *int
	UsedCount   int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusShipping  OrderStatus = "shipping"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

type ShippingAddress struct {
	Name       string `json:"name"`
	PostalCode string `json:"postal_code"`
	Prefecture string `json:"prefecture"`
	City       string `json:"city"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	Phone      string `json:"phone"`
}

type Order struct {
	ID              uuid.UUID
	OrderNumber     string
	UserID          uuid.UUID // Nil for guest orders
	Status          OrderStatus
	Items           []OrderItem
	ShippingAddress ShippingAddress
	PaymentMethod   string
	CouponCode      string
	Subtotal        int64
	ShippingFee     int64
	Discount        int64
	PointsUsed      int64
	Total           int64
	EarnedPoints    int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type OrderItem struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	ProductID uuid.UUID
	Name      string
	Price     int64
	Quantity  int
	Color     string
	Size      string
}

type Address struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	Name       string
	PostalCode string
	Prefecture string
	City       string
	Line1      string
	Line2      string
	Phone      string
	IsDefault  bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Favorite struct {
	UserID    uuid.UUID
	ProductID uuid.UUID
	CreatedAt time.Time
}

type SiteSetting struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}

// Session identifies the caller of a cart or checkout operation. Guests are
// tracked by an opaque token; authenticated users by their id.
type Session struct {
	UserID     uuid.UUID
	GuestToken string
}

func (s Session) Authenticated() bool {
	return s.UserID != uuid.Nil
}

// CartKey is the storage key for session-scoped cart state.
func (s Session) CartKey() string {
	if s.Authenticated() {
		return s.UserID.String()
	}
	return "guest:" + s.GuestToken
}

type OrderPlacedMessage struct {
	OrderID      uuid.UUID `json:"order_id"`
	UserID       uuid.UUID `json:"user_id"`
	Total        int64     `json:"total"`
	EarnedPoints int64     `json:"earned_points"`
}
