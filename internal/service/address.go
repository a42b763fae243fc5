package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/minato/storefront-api/internal/model"
	"github.com/minato/storefront-api/internal/repository"
)

var ErrAddressNotFound = errors.New("address not found")

type AddressService struct {
	addressRepo repository.AddressRepository
}

func NewAddressService(addressRepo repository.AddressRepository) *AddressService {
	return &AddressService{addressRepo: addressRepo}
}

func validateAddress(addr *model.Address) error {
	return ValidateAddressFields(model.ShippingAddress{
		Name:       addr.Name,
		PostalCode: addr.PostalCode,
		Prefecture: addr.Prefecture,
		City:       addr.City,
		Line1:      addr.Line1,
		Line2:      addr.Line2,
		Phone:      addr.Phone,
	})
}

func (s *AddressService) Create(ctx context.Context, addr *model.Address) error {
	if err := validateAddress(addr); err != nil {
		return err
	}
	return s.addressRepo.Create(ctx, addr)
}

func (s *AddressService) List(ctx context.Context, userID uuid.UUID) ([]model.Address, error) {
	return s.addressRepo.ListByUserID(ctx, userID)
}

func (s *AddressService) Update(ctx context.Context, userID uuid.UUID, addr *model.Address) error {
	if err := validateAddress(addr); err != nil {
		return err
	}
	existing, err := s.addressRepo.GetByID(ctx, addr.ID)
	if err != nil {
		return err
	}
	if existing == nil || existing.UserID != userID {
		return ErrAddressNotFound
	}
	addr.UserID = userID
	return s.addressRepo.Update(ctx, addr)
}

func (s *AddressService) Delete(ctx context.Context, userID, addressID uuid.UUID) error {
	existing, err := s.addressRepo.GetByID(ctx, addressID)
	if err != nil {
		return err
	}
	if existing == nil || existing.UserID != userID {
		return ErrAddressNotFound
	}
	return s.addressRepo.Delete(ctx, addressID)
}
