package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/minato/storefront-api/internal/model"
	"github.com/minato/storefront-api/internal/pricing"
	"github.com/minato/storefront-api/internal/repository"
)

type CouponService struct {
	couponRepo repository.CouponRepository
}

func NewCouponService(couponRepo repository.CouponRepository) *CouponService {
	return &CouponService{couponRepo: couponRepo}
}

// ListValid returns coupons that are neither expired nor exhausted.
func (s *CouponService) ListValid(ctx context.Context) ([]model.Coupon, error) {
	return s.couponRepo.ListValid(ctx, time.Now())
}

// Validate checks a code against a subtotal and returns the coupon together
// with the discount it would yield.
func (s *CouponService) Validate(ctx context.Context, code string, subtotal int64) (*model.Coupon, int64, error) {
	coupon, err := s.couponRepo.GetByCode(ctx, code)
	if err != nil {
		return nil, 0, err
	}
	if coupon == nil {
		return nil, 0, ErrCouponNotFound
	}
	if err := pricing.ValidateCoupon(coupon, subtotal, time.Now()); err != nil {
		return nil, 0, err
	}
	return coupon, pricing.Discount(coupon, subtotal), nil
}

func (s *CouponService) AdminList(ctx context.Context) ([]model.Coupon, error) {
	return s.couponRepo.ListAll(ctx)
}

func (s *CouponService) Create(ctx context.Context, coupon *model.Coupon) error {
	if err := s.couponRepo.Create(ctx, coupon); err != nil {
		return fmt.Errorf("create coupon: %w", err)
	}
	return nil
}

func (s *CouponService) Update(ctx context.Context, coupon *model.Coupon) error {
	existing, err := s.couponRepo.GetByID(ctx, coupon.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrCouponNotFound
	}
	return s.couponRepo.Update(ctx, coupon)
}

func (s *CouponService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.couponRepo.Delete(ctx, id)
}
