package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/minato/storefront-api/internal/dto"
	"github.com/minato/storefront-api/internal/service"
)

type SettingsHandler struct {
	settingsService *service.SettingsService
}

func NewSettingsHandler(settingsService *service.SettingsService) *SettingsHandler {
	return &SettingsHandler{settingsService: settingsService}
}

// PricingRules is the public view of the parameters the storefront shows on
// the cart page.
func (h *SettingsHandler) PricingRules(c *gin.Context) {
	rules := h.settingsService.Rules(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"free_shipping_threshold": rules.FreeShippingThreshold,
		"shipping_fee":            rules.ShippingFee,
		"point_award_rate":        rules.PointAwardRate,
	})
}

// --- Admin ---

func (h *SettingsHandler) All(c *gin.Context) {
	settings, err := h.settingsService.All(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	out := make([]dto.SettingResponse, 0, len(settings))
	for _, s := range settings {
		out = append(out, dto.SettingResponse{Key: s.Key, Value: s.Value, UpdatedAt: s.UpdatedAt})
	}
	c.JSON(http.StatusOK, gin.H{"settings": out})
}

func (h *SettingsHandler) Set(c *gin.Context) {
	var req dto.UpdateSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.settingsService.Set(c.Request.Context(), c.Param("key"), req.Value); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "setting updated"})
}
