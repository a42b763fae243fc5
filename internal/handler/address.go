package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/minato/storefront-api/internal/dto"
	"github.com/minato/storefront-api/internal/middleware"
	"github.com/minato/storefront-api/internal/model"
	"github.com/minato/storefront-api/internal/service"
)

type AddressHandler struct {
	addressService *service.AddressService
}

func NewAddressHandler(addressService *service.AddressService) *AddressHandler {
	return &AddressHandler{addressService: addressService}
}

func (h *AddressHandler) List(c *gin.Context) {
	addresses, err := h.addressService.List(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	out := make([]dto.AddressResponse, 0, len(addresses))
	for i := range addresses {
		out = append(out, dto.NewAddressResponse(&addresses[i]))
	}
	c.JSON(http.StatusOK, gin.H{"addresses": out})
}

func (h *AddressHandler) Create(c *gin.Context) {
	var req dto.AddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	addr := addressFromRequest(req)
	addr.UserID = middleware.GetUserID(c)
	if err := h.addressService.Create(c.Request.Context(), addr); err != nil {
		h.writeAddressError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.NewAddressResponse(addr))
}

func (h *AddressHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid address ID"})
		return
	}

	var req dto.AddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	addr := addressFromRequest(req)
	addr.ID = id
	if err := h.addressService.Update(c.Request.Context(), middleware.GetUserID(c), addr); err != nil {
		h.writeAddressError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewAddressResponse(addr))
}

func (h *AddressHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid address ID"})
		return
	}

	if err := h.addressService.Delete(c.Request.Context(), middleware.GetUserID(c), id); err != nil {
		h.writeAddressError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AddressHandler) writeAddressError(c *gin.Context, err error) {
	var vErr *service.ValidationError
	switch {
	case errors.As(err, &vErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Reason, "field": vErr.Field})
	case errors.Is(err, service.ErrAddressNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "address not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func addressFromRequest(req dto.AddressRequest) *model.Address {
	return &model.Address{
		Name:       req.Name,
		PostalCode: req.PostalCode,
		Prefecture: req.Prefecture,
		City:       req.City,
		Line1:      req.Line1,
		Line2:      req.Line2,
		Phone:      req.Phone,
		IsDefault:  req.IsDefault,
	}
}
