package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/minato/storefront-api/internal/dto"
	"github.com/minato/storefront-api/internal/middleware"
	"github.com/minato/storefront-api/internal/repository"
	"github.com/minato/storefront-api/internal/service"
)

type CheckoutHandler struct {
	checkoutService *service.CheckoutService
}

func NewCheckoutHandler(checkoutService *service.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{checkoutService: checkoutService}
}

// Validate checks the shipping form without advancing the checkout, so the
// client can surface the first violation inline.
func (h *CheckoutHandler) Validate(c *gin.Context) {
	var req dto.ConfirmCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := service.ValidateShippingForm(req.Address.Model(), req.PaymentMethod); err != nil {
		var vErr *service.ValidationError
		if errors.As(err, &vErr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Reason, "field": vErr.Field})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"valid": true})
}

// Confirm validates the shipping form and freezes the priced cart into a
// draft for the confirmation screen.
func (h *CheckoutHandler) Confirm(c *gin.Context) {
	var req dto.ConfirmCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	draft, err := h.checkoutService.Confirm(
		c.Request.Context(),
		middleware.GetSession(c),
		req.Address.Model(),
		req.PaymentMethod,
		req.UsePoints,
	)
	if err != nil {
		var vErr *service.ValidationError
		switch {
		case errors.As(err, &vErr):
			c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Reason, "field": vErr.Field})
		case errors.Is(err, service.ErrEmptyCart):
			c.JSON(http.StatusBadRequest, gin.H{"error": "cart is empty"})
		case errors.Is(err, service.ErrProductUnavailable):
			c.JSON(http.StatusConflict, gin.H{"error": "a cart item is no longer available"})
		case errors.Is(err, service.ErrPointsRequireLogin):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "sign in to use points"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		}
		return
	}

	c.JSON(http.StatusOK, draft)
}

// Submit places the drafted order. Stock, coupon, and point checks all run
// inside one transaction; any failure leaves the cart and draft untouched.
func (h *CheckoutHandler) Submit(c *gin.Context) {
	order, err := h.checkoutService.Submit(c.Request.Context(), middleware.GetSession(c))
	if err != nil {
		var stockErr *repository.InsufficientStockError
		switch {
		case errors.Is(err, service.ErrNoDraft):
			c.JSON(http.StatusNotFound, gin.H{"error": "no pending checkout"})
		case errors.As(err, &stockErr):
			c.JSON(http.StatusConflict, gin.H{"error": stockErr.Error(), "product_id": stockErr.ProductID})
		case errors.Is(err, service.ErrCouponNoLongerValid):
			c.JSON(http.StatusConflict, gin.H{"error": "coupon is no longer valid, please confirm again"})
		case errors.Is(err, repository.ErrCouponExhausted):
			c.JSON(http.StatusConflict, gin.H{"error": "coupon usage limit reached"})
		case errors.Is(err, repository.ErrInsufficientPoints):
			c.JSON(http.StatusConflict, gin.H{"error": "insufficient point balance"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		}
		return
	}

	c.JSON(http.StatusCreated, dto.NewOrderResponse(order))
}

// Receipt returns the just-placed order exactly once. A second read, or a
// direct visit with nothing placed, redirects to the order history.
func (h *CheckoutHandler) Receipt(c *gin.Context) {
	order, err := h.checkoutService.Receipt(c.Request.Context(), middleware.GetSession(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	if order == nil {
		c.Redirect(http.StatusSeeOther, "/api/v1/orders")
		return
	}
	c.JSON(http.StatusOK, dto.NewOrderResponse(order))
}
