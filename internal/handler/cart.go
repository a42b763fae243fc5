package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/minato/storefront-api/internal/dto"
	"github.com/minato/storefront-api/internal/middleware"
	"github.com/minato/storefront-api/internal/model"
	"github.com/minato/storefront-api/internal/pricing"
	"github.com/minato/storefront-api/internal/service"
)

type CartHandler struct {
	cartService *service.CartService
}

func NewCartHandler(cartService *service.CartService) *CartHandler {
	return &CartHandler{cartService: cartService}
}

func (h *CartHandler) Get(c *gin.Context) {
	quote, err := h.cartService.Quote(c.Request.Context(), middleware.GetSession(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, quote)
}

func (h *CartHandler) AddLine(c *gin.Context) {
	var req dto.CartLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	line := model.CartLine{ProductID: req.ProductID, Quantity: req.Quantity, Color: req.Color, Size: req.Size}
	if err := h.cartService.AddLine(c.Request.Context(), middleware.GetSession(c), line); err != nil {
		h.writeCartError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "added to cart"})
}

func (h *CartHandler) UpdateQuantity(c *gin.Context) {
	var req dto.CartLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	line := model.CartLine{ProductID: req.ProductID, Quantity: req.Quantity, Color: req.Color, Size: req.Size}
	if err := h.cartService.UpdateQuantity(c.Request.Context(), middleware.GetSession(c), line); err != nil {
		h.writeCartError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "quantity updated"})
}

// RemoveLine deletes a line and echoes the removed entry so the client can
// offer an undo.
func (h *CartHandler) RemoveLine(c *gin.Context) {
	var req dto.CartLineRef
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	line := model.CartLine{ProductID: req.ProductID, Color: req.Color, Size: req.Size}
	removed, err := h.cartService.RemoveLine(c.Request.Context(), middleware.GetSession(c), line)
	if err != nil {
		h.writeCartError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

func (h *CartHandler) RestoreLine(c *gin.Context) {
	var req dto.CartLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	line := model.CartLine{ProductID: req.ProductID, Quantity: req.Quantity, Color: req.Color, Size: req.Size}
	if err := h.cartService.RestoreLine(c.Request.Context(), middleware.GetSession(c), line); err != nil {
		h.writeCartError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "line restored"})
}

func (h *CartHandler) Clear(c *gin.Context) {
	if err := h.cartService.Clear(c.Request.Context(), middleware.GetSession(c)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *CartHandler) ApplyCoupon(c *gin.Context) {
	var req dto.ApplyCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	coupon, discount, err := h.cartService.ApplyCoupon(c.Request.Context(), middleware.GetSession(c), req.Code)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCouponNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "coupon not found"})
		case errors.Is(err, pricing.ErrCouponExpired),
			errors.Is(err, pricing.ErrCouponExhausted),
			errors.Is(err, pricing.ErrCouponMinPurchase):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"coupon": dto.NewCouponResponse(coupon), "discount": discount})
}

func (h *CartHandler) RemoveCoupon(c *gin.Context) {
	if err := h.cartService.RemoveCoupon(c.Request.Context(), middleware.GetSession(c)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *CartHandler) writeCartError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrProductNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
	case errors.Is(err, service.ErrProductUnavailable):
		c.JSON(http.StatusConflict, gin.H{"error": "product is not available"})
	case errors.Is(err, service.ErrOutOfStock):
		c.JSON(http.StatusConflict, gin.H{"error": "not enough stock"})
	case errors.Is(err, service.ErrLineNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "cart line not found"})
	case errors.Is(err, service.ErrInvalidQuantity):
		c.JSON(http.StatusBadRequest, gin.H{"error": "quantity must be at least 1"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
