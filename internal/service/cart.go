package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/minato/storefront-api/internal/model"
	"github.com/minato/storefront-api/internal/pricing"
	"github.com/minato/storefront-api/internal/repository"
)

var (
	ErrProductNotFound    = errors.New("product not found")
	ErrProductUnavailable = errors.New("product is not available for purchase")
	ErrOutOfStock         = errors.New("not enough stock")
	ErrLineNotFound       = errors.New("cart line not found")
	ErrCouponNotFound     = errors.New("coupon not found")
	ErrInvalidQuantity    = errors.New("quantity must be at least 1")
)

// CartStore is the session-scoped line store: the authoritative cart for
// guests and the write-through mirror for authenticated users.
type CartStore interface {
	CartLines(ctx context.Context, key string) ([]model.CartLine, error)
	SaveCartLines(ctx context.Context, key string, lines []model.CartLine) error
	ClearCart(ctx context.Context, key string) error
	CouponCode(ctx context.Context, key string) (string, error)
	SetCouponCode(ctx context.Context, key, code string) error
	Drop(ctx context.Context, key string) error
}

// RulesProvider supplies the canonical pricing parameters.
type RulesProvider interface {
	Rules(ctx context.Context) pricing.Rules
}

// QuoteLine is a cart line with its product data resolved at read time.
type QuoteLine struct {
	model.CartLine
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	LineTotal int64  `json:"line_total"`
	Image     string `json:"image,omitempty"`
	Available bool   `json:"available"`
}

// CartQuote is a fully recomputed cart summary. It is rebuilt from live
// product data on every read; totals are never served from stored state.
type CartQuote struct {
	Lines       []QuoteLine `json:"lines"`
	CouponCode  string      `json:"coupon_code,omitempty"`
	Subtotal    int64       `json:"subtotal"`
	ShippingFee int64       `json:"shipping_fee"`
	Discount    int64       `json:"discount"`
	Total       int64       `json:"total"`
}

type CartService struct {
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
	couponRepo  repository.CouponRepository
	store       CartStore
	rules       RulesProvider
	log         *slog.Logger
}

func NewCartService(
	cartRepo repository.CartRepository,
	productRepo repository.ProductRepository,
	couponRepo repository.CouponRepository,
	store CartStore,
	rules RulesProvider,
	log *slog.Logger,
) *CartService {
	return &CartService{
		cartRepo:    cartRepo,
		productRepo: productRepo,
		couponRepo:  couponRepo,
		store:       store,
		rules:       rules,
		log:         log,
	}
}

// lines loads the session's cart. A database failure on the authenticated
// path degrades silently to the mirror; the user sees their cart either way.
func (s *CartService) lines(ctx context.Context, sess model.Session) ([]model.CartLine, error) {
	if !sess.Authenticated() {
		return s.store.CartLines(ctx, sess.CartKey())
	}
	lines, err := s.cartRepo.GetLines(ctx, sess.UserID)
	if err != nil {
		s.log.Warn("cart load failed, serving mirror", "user_id", sess.UserID, "error", err)
		return s.store.CartLines(ctx, sess.CartKey())
	}
	return lines, nil
}

// persist applies a single-line mutation. For authenticated users the
// database gets the atomic per-line operation and the mirror gets the full
// resulting state; a failed database write is logged but the mirror still
// records the action so it is not lost.
func (s *CartService) persist(ctx context.Context, sess model.Session, newLines []model.CartLine, op func() error) error {
	if !sess.Authenticated() {
		return s.store.SaveCartLines(ctx, sess.CartKey(), newLines)
	}
	if err := op(); err != nil {
		s.log.Error("cart save failed, keeping mirror copy", "user_id", sess.UserID, "error", err)
	}
	if err := s.store.SaveCartLines(ctx, sess.CartKey(), newLines); err != nil {
		s.log.Warn("cart mirror write failed", "user_id", sess.UserID, "error", err)
	}
	return nil
}

func (s *CartService) checkProduct(ctx context.Context, line model.CartLine) (*model.Product, error) {
	product, err := s.productRepo.GetByID(ctx, line.ProductID)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return nil, ErrProductNotFound
	}
	if !product.IsPublished {
		return nil, ErrProductUnavailable
	}
	if product.StockFor(line.Color) < line.Quantity {
		return nil, ErrOutOfStock
	}
	return product, nil
}

func (s *CartService) AddLine(ctx context.Context, sess model.Session, line model.CartLine) error {
	if line.Quantity < 1 {
		return ErrInvalidQuantity
	}

	current, err := s.lines(ctx, sess)
	if err != nil {
		return err
	}

	// The stock check covers the merged quantity, not just the increment.
	merged := line
	for _, l := range current {
		if l.SameLine(line) {
			merged.Quantity += l.Quantity
		}
	}
	if _, err := s.checkProduct(ctx, merged); err != nil {
		return err
	}

	newLines := upsertLine(current, line, true)
	return s.persist(ctx, sess, newLines, func() error {
		return s.cartRepo.AddQuantity(ctx, sess.UserID, line)
	})
}

func (s *CartService) UpdateQuantity(ctx context.Context, sess model.Session, line model.CartLine) error {
	if line.Quantity < 1 {
		return ErrInvalidQuantity
	}

	current, err := s.lines(ctx, sess)
	if err != nil {
		return err
	}
	if !containsLine(current, line) {
		return ErrLineNotFound
	}
	if _, err := s.checkProduct(ctx, line); err != nil {
		return err
	}

	newLines := upsertLine(current, line, false)
	return s.persist(ctx, sess, newLines, func() error {
		return s.cartRepo.SetQuantity(ctx, sess.UserID, line)
	})
}

// RemoveLine deletes a line and returns its snapshot (product, color, size,
// quantity at deletion) so the caller can restore it without re-fetching.
func (s *CartService) RemoveLine(ctx context.Context, sess model.Session, line model.CartLine) (*model.CartLine, error) {
	current, err := s.lines(ctx, sess)
	if err != nil {
		return nil, err
	}
	newLines, removed := dropLine(current, line)
	if removed == nil {
		return nil, ErrLineNotFound
	}

	err = s.persist(ctx, sess, newLines, func() error {
		return s.cartRepo.DeleteLine(ctx, sess.UserID, line)
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// RestoreLine undoes a removal by re-inserting the cached snapshot with the
// quantity it had at deletion time.
func (s *CartService) RestoreLine(ctx context.Context, sess model.Session, line model.CartLine) error {
	if line.Quantity < 1 {
		return ErrInvalidQuantity
	}
	if _, err := s.checkProduct(ctx, line); err != nil {
		return err
	}

	current, err := s.lines(ctx, sess)
	if err != nil {
		return err
	}
	newLines := upsertLine(current, line, false)
	return s.persist(ctx, sess, newLines, func() error {
		return s.cartRepo.SetQuantity(ctx, sess.UserID, line)
	})
}

// Merge folds a guest cart into the user's cart on login, summing
// quantities per line identity, then drops the guest state.
func (s *CartService) Merge(ctx context.Context, userID uuid.UUID, guestToken string) error {
	guestSess := model.Session{GuestToken: guestToken}
	guestLines, err := s.store.CartLines(ctx, guestSess.CartKey())
	if err != nil {
		return err
	}

	for _, line := range guestLines {
		product, err := s.productRepo.GetByID(ctx, line.ProductID)
		if err != nil || product == nil || !product.IsPublished {
			s.log.Info("skipping unavailable product in guest cart merge", "product_id", line.ProductID)
			continue
		}
		if err := s.cartRepo.AddQuantity(ctx, userID, line); err != nil {
			return fmt.Errorf("merge guest line: %w", err)
		}
	}

	if err := s.store.Drop(ctx, guestSess.CartKey()); err != nil {
		s.log.Warn("drop guest cart failed", "error", err)
	}

	// Refresh the mirror with the merged result.
	userSess := model.Session{UserID: userID}
	if merged, err := s.cartRepo.GetLines(ctx, userID); err == nil {
		if err := s.store.SaveCartLines(ctx, userSess.CartKey(), merged); err != nil {
			s.log.Warn("cart mirror write failed", "user_id", userID, "error", err)
		}
	}
	return nil
}

func (s *CartService) Clear(ctx context.Context, sess model.Session) error {
	if sess.Authenticated() {
		if err := s.cartRepo.Clear(ctx, sess.UserID); err != nil {
			return err
		}
	}
	return s.store.ClearCart(ctx, sess.CartKey())
}

// ApplyCoupon gates selection: an ineligible coupon is rejected here so the
// UI can revert the selection instead of carrying a dead code.
func (s *CartService) ApplyCoupon(ctx context.Context, sess model.Session, code string) (*model.Coupon, int64, error) {
	coupon, err := s.couponRepo.GetByCode(ctx, code)
	if err != nil {
		return nil, 0, err
	}
	if coupon == nil {
		return nil, 0, ErrCouponNotFound
	}

	quote, err := s.Quote(ctx, sess)
	if err != nil {
		return nil, 0, err
	}
	if err := pricing.ValidateCoupon(coupon, quote.Subtotal, time.Now()); err != nil {
		return nil, 0, err
	}

	if err := s.store.SetCouponCode(ctx, sess.CartKey(), coupon.Code); err != nil {
		return nil, 0, err
	}
	return coupon, pricing.Discount(coupon, quote.Subtotal), nil
}

func (s *CartService) RemoveCoupon(ctx context.Context, sess model.Session) error {
	return s.store.SetCouponCode(ctx, sess.CartKey(), "")
}

// Quote rebuilds the cart summary from scratch: live product prices, the
// flat-rate shipping rule, and the applied coupon re-validated against the
// current subtotal. A coupon that no longer qualifies is dropped rather
// than left applied to a cart it no longer fits.
func (s *CartService) Quote(ctx context.Context, sess model.Session) (*CartQuote, error) {
	lines, err := s.lines(ctx, sess)
	if err != nil {
		return nil, err
	}

	quote := &CartQuote{}
	var priced []pricing.Line
	for _, line := range lines {
		product, err := s.productRepo.GetByID(ctx, line.ProductID)
		if err != nil {
			return nil, fmt.Errorf("resolve product: %w", err)
		}
		ql := QuoteLine{CartLine: line}
		if product == nil || !product.IsPublished {
			quote.Lines = append(quote.Lines, ql)
			continue
		}
		ql.Name = product.Name
		ql.UnitPrice = product.Price
		ql.LineTotal = product.Price * int64(line.Quantity)
		ql.Available = product.StockFor(line.Color) >= line.Quantity
		if len(product.Images) > 0 {
			ql.Image = product.Images[0]
		}
		quote.Lines = append(quote.Lines, ql)
		priced = append(priced, pricing.Line{UnitPrice: product.Price, Quantity: line.Quantity})
	}

	rules := s.rules.Rules(ctx)
	quote.Subtotal = pricing.Subtotal(priced)
	quote.ShippingFee = pricing.ShippingFee(quote.Subtotal, rules)

	code, err := s.store.CouponCode(ctx, sess.CartKey())
	if err != nil {
		s.log.Warn("read applied coupon failed", "error", err)
		code = ""
	}
	if code != "" {
		coupon, err := s.couponRepo.GetByCode(ctx, code)
		if err == nil && coupon != nil {
			if vErr := pricing.ValidateCoupon(coupon, quote.Subtotal, time.Now()); vErr == nil {
				quote.CouponCode = coupon.Code
				quote.Discount = pricing.Discount(coupon, quote.Subtotal)
			} else {
				s.log.Info("dropping ineligible coupon", "code", code, "reason", vErr)
				if err := s.store.SetCouponCode(ctx, sess.CartKey(), ""); err != nil {
					s.log.Warn("clear coupon failed", "error", err)
				}
			}
		}
	}

	quote.Total = pricing.Total(quote.Subtotal, quote.ShippingFee, quote.Discount, 0)
	return quote, nil
}

// --- in-memory line set operations, shared by both storage paths ---

func containsLine(lines []model.CartLine, target model.CartLine) bool {
	for _, l := range lines {
		if l.SameLine(target) {
			return true
		}
	}
	return false
}

// upsertLine merges a line into the set by identity key. With add=true
// quantities sum; otherwise the quantity is replaced.
func upsertLine(lines []model.CartLine, line model.CartLine, add bool) []model.CartLine {
	out := make([]model.CartLine, 0, len(lines)+1)
	found := false
	for _, l := range lines {
		if l.SameLine(line) {
			found = true
			if add {
				l.Quantity += line.Quantity
			} else {
				l.Quantity = line.Quantity
			}
		}
		out = append(out, l)
	}
	if !found {
		out = append(out, line)
	}
	return out
}

func dropLine(lines []model.CartLine, target model.CartLine) ([]model.CartLine, *model.CartLine) {
	out := make([]model.CartLine, 0, len(lines))
	var removed *model.CartLine
	for _, l := range lines {
		if l.SameLine(target) {
			snapshot := l
			removed = &snapshot
			continue
		}
		out = append(out, l)
	}
	return out, removed
}
