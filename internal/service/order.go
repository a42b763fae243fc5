package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/minato/storefront-api/internal/model"
	"github.com/minato/storefront-api/internal/repository"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrOrderAccessDenied = errors.New("access denied")
	ErrInvalidTransition = errors.New("invalid order status transition")
)

// Admin-driven transitions only; the item list never changes after creation.
var orderTransitions = map[model.OrderStatus]map[model.OrderStatus]bool{
	model.OrderStatusPending:  {model.OrderStatusShipping: true, model.OrderStatusCancelled: true},
	model.OrderStatusShipping: {model.OrderStatusCompleted: true, model.OrderStatusCancelled: true},
}

// OrderMirror serves guest order history from the session blob.
type OrderMirror interface {
	Orders(ctx context.Context, key string) ([]model.Order, error)
}

type OrderService struct {
	orderRepo repository.OrderRepository
	mirror    OrderMirror
}

func NewOrderService(orderRepo repository.OrderRepository, mirror OrderMirror) *OrderService {
	return &OrderService{orderRepo: orderRepo, mirror: mirror}
}

func (s *OrderService) GetByID(ctx context.Context, orderID, userID uuid.UUID) (*model.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.UserID != userID {
		return nil, ErrOrderAccessDenied
	}
	return order, nil
}

// ListForSession returns the order history: database rows for signed-in
// users, the session mirror for guests.
func (s *OrderService) ListForSession(ctx context.Context, sess model.Session) ([]model.Order, error) {
	if sess.Authenticated() {
		return s.orderRepo.ListByUserID(ctx, sess.UserID)
	}
	return s.mirror.Orders(ctx, sess.CartKey())
}

func (s *OrderService) AdminList(ctx context.Context, filter repository.OrderFilter) ([]model.Order, int, error) {
	return s.orderRepo.List(ctx, filter)
}

func (s *OrderService) AdminGet(ctx context.Context, orderID uuid.UUID) (*model.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// Transition moves an order along pending → shipping → completed, or
// cancels it from pending/shipping. Cancellation restocks items and
// reverses point settlement atomically.
func (s *OrderService) Transition(ctx context.Context, orderID uuid.UUID, next model.OrderStatus) error {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return ErrOrderNotFound
	}
	if !orderTransitions[order.Status][next] {
		return ErrInvalidTransition
	}
	if next == model.OrderStatusCancelled {
		return s.orderRepo.Cancel(ctx, orderID)
	}
	return s.orderRepo.UpdateStatus(ctx, orderID, next)
}
