package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/minato/storefront-api/internal/model"
)

// --- Auth ---

type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name" binding:"required"`
	Phone    string `json:"phone"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

type UserResponse struct {
	ID     uuid.UUID `json:"id"`
	Email  string    `json:"email"`
	Name   string    `json:"name"`
	Phone  string    `json:"phone,omitempty"`
	Role   string    `json:"role"`
	Points int64     `json:"points"`
}

type UpdateProfileRequest struct {
	Name  string `json:"name" binding:"required"`
	Phone string `json:"phone"`
}

// --- Product ---

type ListProductsRequest struct {
	Page     int    `form:"page,default=1" binding:"min=1"`
	Limit    int    `form:"limit,default=20" binding:"min=1,max=100"`
	Search   string `form:"search"`
	Category string `form:"category"`
	Sort     string `form:"sort,default=created_at" binding:"oneof=name price created_at"`
	Order    string `form:"order,default=desc" binding:"oneof=asc desc"`
}

type ProductResponse struct {
	ID            uuid.UUID              `json:"id"`
	Name          string                 `json:"name"`
	Description   string                 `json:"description"`
	Price         int64                  `json:"price"`
	OriginalPrice *int64                 `json:"original_price,omitempty"`
	Stock         int                    `json:"stock"`
	Images        []string               `json:"images"`
	Category      string                 `json:"category"`
	IsPublished   bool                   `json:"is_published"`
	Variants      []model.ProductVariant `json:"variants,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

type ProductListResponse struct {
	Products []ProductResponse `json:"products"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	Limit    int               `json:"limit"`
}

type CreateProductRequest struct {
	Name          string                 `json:"name" binding:"required"`
	Description   string                 `json:"description"`
	Price         int64                  `json:"price" binding:"required,min=0"`
	OriginalPrice *int64                 `json:"original_price" binding:"omitempty,min=0"`
	Stock         int                    `json:"stock" binding:"min=0"`
	Images        []string               `json:"images"`
	Category      string                 `json:"category"`
	IsPublished   bool                   `json:"is_published"`
	Variants      []model.ProductVariant `json:"variants"`
}

type UpdateProductRequest struct {
	Name          *string                 `json:"name"`
	Description   *string                 `json:"description"`
	Price         *int64                  `json:"price" binding:"omitempty,min=0"`
	OriginalPrice *int64                  `json:"original_price" binding:"omitempty,min=0"`
	Stock         *int                    `json:"stock" binding:"omitempty,min=0"`
	Images        *[]string               `json:"images"`
	Category      *string                 `json:"category"`
	IsPublished   *bool                   `json:"is_published"`
	Variants      *[]model.ProductVariant `json:"variants"`
}

// --- Cart ---

type CartLineRequest struct {
	ProductID uuid.UUID `json:"product_id" binding:"required"`
	Quantity  int       `json:"quantity" binding:"required,min=1"`
	Color     string    `json:"color"`
	Size      string    `json:"size"`
}

// CartLineRef identifies an existing line without a quantity, for removal.
type CartLineRef struct {
	ProductID uuid.UUID `json:"product_id" binding:"required"`
	Color     string    `json:"color"`
	Size      string    `json:"size"`
}

type ApplyCouponRequest struct {
	Code string `json:"code" binding:"required"`
}

// --- Checkout ---

type ShippingAddressRequest struct {
	Name       string `json:"name" binding:"required"`
	PostalCode string `json:"postal_code" binding:"required"`
	Prefecture string `json:"prefecture" binding:"required"`
	City       string `json:"city" binding:"required"`
	Line1      string `json:"line1" binding:"required"`
	Line2      string `json:"line2"`
	Phone      string `json:"phone" binding:"required"`
}

func (r ShippingAddressRequest) Model() model.ShippingAddress {
	return model.ShippingAddress{
		Name:       r.Name,
		PostalCode: r.PostalCode,
		Prefecture: r.Prefecture,
		City:       r.City,
		Line1:      r.Line1,
		Line2:      r.Line2,
		Phone:      r.Phone,
	}
}

type ConfirmCheckoutRequest struct {
	Address       ShippingAddressRequest `json:"address" binding:"required"`
	PaymentMethod string                 `json:"payment_method" binding:"required"`
	UsePoints     int64                  `json:"use_points" binding:"min=0"`
}

// --- Order ---

type OrderResponse struct {
	ID              uuid.UUID             `json:"id"`
	OrderNumber     string                `json:"order_number"`
	Status          model.OrderStatus     `json:"status"`
	Items           []OrderItemResponse   `json:"items"`
	ShippingAddress model.ShippingAddress `json:"shipping_address"`
	PaymentMethod   string                `json:"payment_method"`
	CouponCode      string                `json:"coupon_code,omitempty"`
	Subtotal        int64                 `json:"subtotal"`
	ShippingFee     int64                 `json:"shipping_fee"`
	Discount        int64                 `json:"discount"`
	PointsUsed      int64                 `json:"points_used"`
	Total           int64                 `json:"total"`
	EarnedPoints    int64                 `json:"earned_points"`
	CreatedAt       time.Time             `json:"created_at"`
}

type OrderItemResponse struct {
	ProductID uuid.UUID `json:"product_id"`
	Name      string    `json:"name"`
	Price     int64     `json:"price"`
	Quantity  int       `json:"quantity"`
	Color     string    `json:"color,omitempty"`
	Size      string    `json:"size,omitempty"`
}

func NewOrderResponse(order *model.Order) OrderResponse {
	items := make([]OrderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, OrderItemResponse{
			ProductID: item.ProductID,
			Name:      item.Name,
			Price:     item.Price,
			Quantity:  item.Quantity,
			Color:     item.Color,
			Size:      item.Size,
		})
	}
	return OrderResponse{
		ID:              order.ID,
		OrderNumber:     order.OrderNumber,
		Status:          order.Status,
		Items:           items,
		ShippingAddress: order.ShippingAddress,
		PaymentMethod:   order.PaymentMethod,
		CouponCode:      order.CouponCode,
		Subtotal:        order.Subtotal,
		ShippingFee:     order.ShippingFee,
		Discount:        order.Discount,
		PointsUsed:      order.PointsUsed,
		Total:           order.Total,
		EarnedPoints:    order.EarnedPoints,
		CreatedAt:       order.CreatedAt,
	}
}

type OrderListResponse struct {
	Orders []OrderResponse `json:"orders"`
	Total  int             `json:"total"`
}

type ListOrdersRequest struct {
	Page   int    `form:"page,default=1" binding:"min=1"`
	Limit  int    `form:"limit,default=20" binding:"min=1,max=100"`
	Status string `form:"status" binding:"omitempty,oneof=pending shipping completed cancelled"`
}

type UpdateOrderStatusRequest struct {
	Status model.OrderStatus `json:"status" binding:"required,oneof=pending shipping completed cancelled"`
}

// --- Coupon ---

type CouponResponse struct {
	ID          uuid.UUID        `json:"id"`
	Code        string           `json:"code"`
	Type        model.CouponType `json:"type"`
	Value       int64            `json:"value"`
	MinPurchase *int64           `json:"min_purchase,omitempty"`
	MaxDiscount *int64           `json:"max_discount,omitempty"`
	ExpiresAt   time.Time        `json:"expires_at"`
	UsageLimit  *int             `json:"usage_limit,omitempty"`
	UsedCount   int              `json:"used_count"`
}

func NewCouponResponse(coupon *model.Coupon) CouponResponse {
	return CouponResponse{
		ID:          coupon.ID,
		Code:        coupon.Code,
		Type:        coupon.Type,
		Value:       coupon.Value,
		MinPurchase: coupon.MinPurchase,
		MaxDiscount: coupon.MaxDiscount,
		ExpiresAt:   coupon.ExpiresAt,
		UsageLimit:  coupon.UsageLimit,
		UsedCount:   coupon.UsedCount,
	}
}

type CreateCouponRequest struct {
	Code        string           `json:"code" binding:"required"`
	Type        model.CouponType `json:"type" binding:"required,oneof=percentage fixed"`
	Value       int64            `json:"value" binding:"required,min=1"`
	MinPurchase *int64           `json:"min_purchase" binding:"omitempty,min=0"`
	MaxDiscount *int64           `json:"max_discount" binding:"omitempty,min=0"`
	ExpiresAt   time.Time        `json:"expires_at" binding:"required"`
	UsageLimit  *int             `json:"usage_limit" binding:"omitempty,min=1"`
}

// --- Favorites ---

type FavoriteRequest struct {
	ProductID uuid.UUID `json:"product_id" binding:"required"`
}

// --- Address ---

type AddressRequest struct {
	Name       string `json:"name" binding:"required"`
	PostalCode string `json:"postal_code" binding:"required"`
	Prefecture string `json:"prefecture" binding:"required"`
	City       string `json:"city" binding:"required"`
	Line1      string `json:"line1" binding:"required"`
	Line2      string `json:"line2"`
	Phone      string `json:"phone" binding:"required"`
	IsDefault  bool   `json:"is_default"`
}

type AddressResponse struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	PostalCode string    `json:"postal_code"`
	Prefecture string    `json:"prefecture"`
	City       string    `json:"city"`
	Line1      string    `json:"line1"`
	Line2      string    `json:"line2,omitempty"`
	Phone      string    `json:"phone"`
	IsDefault  bool      `json:"is_default"`
}

func NewAddressResponse(addr *model.Address) AddressResponse {
	return AddressResponse{
		ID:         addr.ID,
		Name:       addr.Name,
		PostalCode: addr.PostalCode,
		Prefecture: addr.Prefecture,
		City:       addr.City,
		Line1:      addr.Line1,
		Line2:      addr.Line2,
		Phone:      addr.Phone,
		IsDefault:  addr.IsDefault,
	}
}

// --- Settings ---

type UpdateSettingRequest struct {
	Value string `json:"value" binding:"required"`
}

type SettingResponse struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// --- Users (admin) ---

type ListUsersRequest struct {
	Page  int `form:"page,default=1" binding:"min=1"`
	Limit int `form:"limit,default=20" binding:"min=1,max=100"`
}

func NewProductResponse(p *model.Product) ProductResponse {
	return ProductResponse{
		ID:            p.ID,
		Name:          p.Name,
		Description:   p.Description,
		Price:         p.Price,
		OriginalPrice: p.OriginalPrice,
		Stock:         p.Stock,
		Images:        p.Images,
		Category:      p.Category,
		IsPublished:   p.IsPublished,
		Variants:      p.Variants,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func NewUserResponse(u *model.User) UserResponse {
	return UserResponse{
		ID:     u.ID,
		Email:  u.Email,
		Name:   u.Name,
		Phone:  u.Phone,
		Role:   u.Role,
		Points: u.Points,
	}
}
