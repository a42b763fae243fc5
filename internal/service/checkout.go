package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"regexp"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/minato/storefront-api/internal/localstore"
	"github.com/minato/storefront-api/internal/model"
	"github.com/minato/storefront-api/internal/pricing"
	"github.com/minato/storefront-api/internal/repository"
)

var (
	ErrEmptyCart           = errors.New("cart is empty")
	ErrNoDraft             = errors.New("no order draft to submit")
	ErrCouponNoLongerValid = errors.New("applied coupon is no longer valid")
	ErrPointsRequireLogin  = errors.New("points can only be used by signed-in users")
	ErrUserNotFound        = errors.New("user not found")
)

// ValidationError reports the first violated shipping-form rule.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Reason
}

var (
	postalCodeRe = regexp.MustCompile(`^[0-9]{7}$`)
	phoneRe      = regexp.MustCompile(`^[0-9]{10,11}$`)

	paymentMethods = map[string]bool{
		"credit_card":   true,
		"cod":           true,
		"bank_transfer": true,
	}
)

// ValidateShippingForm checks fields in display order and stops at the first
// violation; nothing advances on failure.
func ValidateShippingForm(addr model.ShippingAddress, paymentMethod string) error {
	if err := ValidateAddressFields(addr); err != nil {
		return err
	}
	if !paymentMethods[paymentMethod] {
		return &ValidationError{Field: "payment_method", Reason: "must be selected"}
	}
	return nil
}

// ValidateAddressFields applies the shared shipping-address rules: required
// fields, a 7-digit postal code, and a 10-11 digit phone number.
func ValidateAddressFields(addr model.ShippingAddress) error {
	required := []struct{ field, value string }{
		{"name", addr.Name},
		{"postal_code", addr.PostalCode},
		{"prefecture", addr.Prefecture},
		{"city", addr.City},
		{"line1", addr.Line1},
		{"phone", addr.Phone},
	}
	for _, r := range required {
		if r.value == "" {
			return &ValidationError{Field: r.field, Reason: "required"}
		}
	}
	if !postalCodeRe.MatchString(addr.PostalCode) {
		return &ValidationError{Field: "postal_code", Reason: "must be exactly 7 digits"}
	}
	if !phoneRe.MatchString(addr.Phone) {
		return &ValidationError{Field: "phone", Reason: "must be 10 to 11 digits"}
	}
	return nil
}

// DraftLine is a priced line frozen into the checkout draft for the
// confirmation screen. Submission re-prices from live products.
type DraftLine struct {
	ProductID uuid.UUID `json:"product_id"`
	Name      string    `json:"name"`
	UnitPrice int64     `json:"unit_price"`
	Quantity  int       `json:"quantity"`
	Color     string    `json:"color,omitempty"`
	Size      string    `json:"size,omitempty"`
}

// OrderDraft is the transfer-buffer snapshot between the confirmation screen
// and submission.
type OrderDraft struct {
	Lines         []DraftLine           `json:"lines"`
	Address       model.ShippingAddress `json:"address"`
	PaymentMethod string                `json:"payment_method"`
	CouponCode    string                `json:"coupon_code,omitempty"`
	Subtotal      int64                 `json:"subtotal"`
	ShippingFee   int64                 `json:"shipping_fee"`
	Discount      int64                 `json:"discount"`
	PointsUsed    int64                 `json:"points_used"`
	Total         int64                 `json:"total"`
	EarnedPoints  int64                 `json:"earned_points"`
	CreatedAt     time.Time             `json:"created_at"`
}

// TransferBuffer hands snapshots between checkout steps and keeps the guest
// order mirror.
type TransferBuffer interface {
	SaveDraft(ctx context.Context, key string, draft any) error
	Draft(ctx context.Context, key string, draft any) error
	DeleteDraft(ctx context.Context, key string) error
	SaveReceipt(ctx context.Context, key string, order *model.Order) error
	TakeReceipt(ctx context.Context, key string) (*model.Order, error)
	AppendOrder(ctx context.Context, key string, order model.Order) error
}

type CheckoutService struct {
	orderRepo   repository.OrderRepository
	productRepo repository.ProductRepository
	couponRepo  repository.CouponRepository
	userRepo    repository.UserRepository
	cartSvc     *CartService
	buffer      TransferBuffer
	rules       RulesProvider
	amqpCh      *amqp.Channel
	log         *slog.Logger
}

func NewCheckoutService(
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	couponRepo repository.CouponRepository,
	userRepo repository.UserRepository,
	cartSvc *CartService,
	buffer TransferBuffer,
	rules RulesProvider,
	amqpCh *amqp.Channel,
	log *slog.Logger,
) *CheckoutService {
	return &CheckoutService{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		couponRepo:  couponRepo,
		userRepo:    userRepo,
		cartSvc:     cartSvc,
		buffer:      buffer,
		rules:       rules,
		amqpCh:      amqpCh,
		log:         log,
	}
}

// Confirm validates the shipping form, freezes the cart at current prices
// into the transfer buffer, and returns the draft for the confirmation
// screen. Requested points are clamped to the usable cap.
func (s *CheckoutService) Confirm(ctx context.Context, sess model.Session, addr model.ShippingAddress, paymentMethod string, usePoints int64) (*OrderDraft, error) {
	if err := ValidateShippingForm(addr, paymentMethod); err != nil {
		return nil, err
	}
	if usePoints > 0 && !sess.Authenticated() {
		return nil, ErrPointsRequireLogin
	}

	quote, err := s.cartSvc.Quote(ctx, sess)
	if err != nil {
		return nil, err
	}

	draft := &OrderDraft{
		Address:       addr,
		PaymentMethod: paymentMethod,
		CouponCode:    quote.CouponCode,
		CreatedAt:     time.Now(),
	}
	for _, ql := range quote.Lines {
		if !ql.Available {
			return nil, ErrProductUnavailable
		}
		draft.Lines = append(draft.Lines, DraftLine{
			ProductID: ql.ProductID,
			Name:      ql.Name,
			UnitPrice: ql.UnitPrice,
			Quantity:  ql.Quantity,
			Color:     ql.Color,
			Size:      ql.Size,
		})
	}
	if len(draft.Lines) == 0 {
		return nil, ErrEmptyCart
	}

	draft.Subtotal = quote.Subtotal
	draft.ShippingFee = quote.ShippingFee
	draft.Discount = quote.Discount

	if usePoints > 0 {
		user, err := s.userRepo.GetByID(ctx, sess.UserID)
		if err != nil {
			return nil, fmt.Errorf("get user: %w", err)
		}
		if user == nil {
			return nil, ErrUserNotFound
		}
		usable := pricing.UsablePoints(user.Points, draft.Subtotal, draft.ShippingFee)
		if usePoints > usable {
			usePoints = usable
		}
		draft.PointsUsed = usePoints
	}

	rules := s.rules.Rules(ctx)
	draft.Total = pricing.Total(draft.Subtotal, draft.ShippingFee, draft.Discount, draft.PointsUsed)
	draft.EarnedPoints = pricing.EarnedPoints(draft.Total, rules.PointAwardRate)

	if err := s.buffer.SaveDraft(ctx, sess.CartKey(), draft); err != nil {
		return nil, err
	}
	return draft, nil
}

// Submit turns the draft into an order. Everything is re-priced and
// re-validated against live data, then stock decrement, order write, coupon
// usage, and point settlement commit in one transaction. On any failure the
// cart and the draft are left intact so the user can retry without
// double-decrementing.
func (s *CheckoutService) Submit(ctx context.Context, sess model.Session) (*model.Order, error) {
	draft := &OrderDraft{}
	if err := s.buffer.Draft(ctx, sess.CartKey(), draft); err != nil {
		if errors.Is(err, localstore.ErrNoDraft) {
			return nil, ErrNoDraft
		}
		return nil, err
	}
	if len(draft.Lines) == 0 {
		return nil, ErrEmptyCart
	}

	var items []model.OrderItem
	var priced []pricing.Line
	for _, dl := range draft.Lines {
		product, err := s.productRepo.GetByID(ctx, dl.ProductID)
		if err != nil {
			return nil, fmt.Errorf("get product: %w", err)
		}
		if product == nil || !product.IsPublished {
			return nil, ErrProductUnavailable
		}
		items = append(items, model.OrderItem{
			ProductID: product.ID,
			Name:      product.Name,
			Price:     product.Price,
			Quantity:  dl.Quantity,
			Color:     dl.Color,
			Size:      dl.Size,
		})
		priced = append(priced, pricing.Line{UnitPrice: product.Price, Quantity: dl.Quantity})
	}

	rules := s.rules.Rules(ctx)
	subtotal := pricing.Subtotal(priced)
	shipping := pricing.ShippingFee(subtotal, rules)

	var discount int64
	var couponID *uuid.UUID
	if draft.CouponCode != "" {
		coupon, err := s.couponRepo.GetByCode(ctx, draft.CouponCode)
		if err != nil {
			return nil, err
		}
		if coupon == nil {
			return nil, ErrCouponNoLongerValid
		}
		if err := pricing.ValidateCoupon(coupon, subtotal, time.Now()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCouponNoLongerValid, err)
		}
		discount = pricing.Discount(coupon, subtotal)
		couponID = &coupon.ID
	}

	pointsUsed := draft.PointsUsed
	if pointsUsed > 0 {
		user, err := s.userRepo.GetByID(ctx, sess.UserID)
		if err != nil {
			return nil, fmt.Errorf("get user: %w", err)
		}
		if user == nil {
			return nil, ErrUserNotFound
		}
		if usable := pricing.UsablePoints(user.Points, subtotal, shipping); pointsUsed > usable {
			pointsUsed = usable
		}
	}

	total := pricing.Total(subtotal, shipping, discount, pointsUsed)
	order := &model.Order{
		OrderNumber:     newOrderNumber(),
		UserID:          sess.UserID,
		Status:          model.OrderStatusPending,
		Items:           items,
		ShippingAddress: draft.Address,
		PaymentMethod:   draft.PaymentMethod,
		CouponCode:      draft.CouponCode,
		Subtotal:        subtotal,
		ShippingFee:     shipping,
		Discount:        discount,
		PointsUsed:      pointsUsed,
		Total:           total,
		EarnedPoints:    pricing.EarnedPoints(total, rules.PointAwardRate),
	}

	if err := s.orderRepo.PlaceOrder(ctx, order, couponID); err != nil {
		return nil, err
	}

	// Post-commit cleanup is best effort: the order exists, so failures
	// here must not fail the request.
	if err := s.cartSvc.Clear(ctx, sess); err != nil {
		s.log.Warn("clear cart after order failed", "order_id", order.ID, "error", err)
	}
	if err := s.buffer.DeleteDraft(ctx, sess.CartKey()); err != nil {
		s.log.Warn("delete draft failed", "order_id", order.ID, "error", err)
	}
	if err := s.buffer.SaveReceipt(ctx, sess.CartKey(), order); err != nil {
		s.log.Warn("save receipt failed", "order_id", order.ID, "error", err)
	}
	if !sess.Authenticated() {
		if err := s.buffer.AppendOrder(ctx, sess.CartKey(), *order); err != nil {
			s.log.Warn("mirror guest order failed", "order_id", order.ID, "error", err)
		}
	}

	s.publishOrderPlaced(ctx, order)
	return order, nil
}

// Receipt returns the completed-order snapshot exactly once. A nil order
// with no error means the receipt was already viewed and the caller should
// redirect to order history.
func (s *CheckoutService) Receipt(ctx context.Context, sess model.Session) (*model.Order, error) {
	return s.buffer.TakeReceipt(ctx, sess.CartKey())
}

func (s *CheckoutService) publishOrderPlaced(ctx context.Context, order *model.Order) {
	if s.amqpCh == nil {
		return
	}
	msg, _ := json.Marshal(model.OrderPlacedMessage{
		OrderID:      order.ID,
		UserID:       order.UserID,
		Total:        order.Total,
		EarnedPoints: order.EarnedPoints,
	})
	err := s.amqpCh.PublishWithContext(ctx, "", "orders.placed", false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         msg,
		DeliveryMode: amqp.Persistent,
	})
	if err != nil {
		s.log.Warn("publish order placed failed", "order_id", order.ID, "error", err)
	}
}

func newOrderNumber() string {
	return fmt.Sprintf("ORD-%s-%04d", time.Now().Format("20060102150405"), rand.Intn(10000))
}
