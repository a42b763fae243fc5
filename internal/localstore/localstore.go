// Package localstore is the session-scoped fallback and hand-off store.
// Guest carts and wishlists live here as JSON blobs, authenticated carts keep
// a write-through mirror here so a failed database save never loses the
// user's action, and checkout uses short-lived keys to hand snapshots from
// one step to the next.
//
// Missing or malformed blobs always decode to the empty state, never to an
// error.
package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/minato/storefront-api/internal/model"
)

const (
	cartTTL    = 30 * 24 * time.Hour
	draftTTL   = 30 * time.Minute
	receiptTTL = 10 * time.Minute
)

// ErrNoDraft is returned when a checkout draft is missing or expired.
var ErrNoDraft = errors.New("no checkout draft")

// CartState is the JSON blob kept per session key.
type CartState struct {
	Lines      []model.CartLine `json:"lines"`
	Wishlist   []uuid.UUID      `json:"wishlist,omitempty"`
	CouponCode string           `json:"coupon_code,omitempty"`
	Orders     []model.Order    `json:"orders,omitempty"`
}

type Store struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func cartKey(key string) string    { return "cart:" + key }
func draftKey(key string) string   { return "checkout:draft:" + key }
func receiptKey(key string) string { return "checkout:receipt:" + key }

func (s *Store) state(ctx context.Context, key string) (*CartState, error) {
	data, err := s.rdb.Get(ctx, cartKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return &CartState{}, nil
		}
		return nil, fmt.Errorf("read cart state: %w", err)
	}
	return decodeCartState(data), nil
}

// decodeCartState never fails: unparseable state is treated as empty.
func decodeCartState(data []byte) *CartState {
	state := &CartState{}
	if err := json.Unmarshal(data, state); err != nil {
		return &CartState{}
	}
	return state
}

func (s *Store) saveState(ctx context.Context, key string, state *CartState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode cart state: %w", err)
	}
	if err := s.rdb.Set(ctx, cartKey(key), data, cartTTL).Err(); err != nil {
		return fmt.Errorf("write cart state: %w", err)
	}
	return nil
}

func (s *Store) CartLines(ctx context.Context, key string) ([]model.CartLine, error) {
	state, err := s.state(ctx, key)
	if err != nil {
		return nil, err
	}
	return state.Lines, nil
}

func (s *Store) SaveCartLines(ctx context.Context, key string, lines []model.CartLine) error {
	state, err := s.state(ctx, key)
	if err != nil {
		state = &CartState{}
	}
	state.Lines = lines
	return s.saveState(ctx, key, state)
}

func (s *Store) ClearCart(ctx context.Context, key string) error {
	state, err := s.state(ctx, key)
	if err != nil {
		state = &CartState{}
	}
	state.Lines = nil
	state.CouponCode = ""
	return s.saveState(ctx, key, state)
}

func (s *Store) CouponCode(ctx context.Context, key string) (string, error) {
	state, err := s.state(ctx, key)
	if err != nil {
		return "", err
	}
	return state.CouponCode, nil
}

func (s *Store) SetCouponCode(ctx context.Context, key, code string) error {
	state, err := s.state(ctx, key)
	if err != nil {
		state = &CartState{}
	}
	state.CouponCode = code
	return s.saveState(ctx, key, state)
}

func (s *Store) Wishlist(ctx context.Context, key string) ([]uuid.UUID, error) {
	state, err := s.state(ctx, key)
	if err != nil {
		return nil, err
	}
	return state.Wishlist, nil
}

func (s *Store) AddToWishlist(ctx context.Context, key string, productID uuid.UUID) error {
	state, err := s.state(ctx, key)
	if err != nil {
		state = &CartState{}
	}
	for _, id := range state.Wishlist {
		if id == productID {
			return nil
		}
	}
	state.Wishlist = append(state.Wishlist, productID)
	return s.saveState(ctx, key, state)
}

func (s *Store) RemoveFromWishlist(ctx context.Context, key string, productID uuid.UUID) error {
	state, err := s.state(ctx, key)
	if err != nil {
		return err
	}
	kept := state.Wishlist[:0]
	for _, id := range state.Wishlist {
		if id != productID {
			kept = append(kept, id)
		}
	}
	state.Wishlist = kept
	return s.saveState(ctx, key, state)
}

// AppendOrder mirrors a completed order into the session blob. Guests have
// no server-side order history, so this is the only record they keep.
func (s *Store) AppendOrder(ctx context.Context, key string, order model.Order) error {
	state, err := s.state(ctx, key)
	if err != nil {
		state = &CartState{}
	}
	state.Orders = append(state.Orders, order)
	return s.saveState(ctx, key, state)
}

func (s *Store) Orders(ctx context.Context, key string) ([]model.Order, error) {
	state, err := s.state(ctx, key)
	if err != nil {
		return nil, err
	}
	return state.Orders, nil
}

func (s *Store) Drop(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, cartKey(key)).Err(); err != nil {
		return fmt.Errorf("drop cart state: %w", err)
	}
	return nil
}

// --- checkout transfer buffers ---

func (s *Store) SaveDraft(ctx context.Context, key string, draft any) error {
	data, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	if err := s.rdb.Set(ctx, draftKey(key), data, draftTTL).Err(); err != nil {
		return fmt.Errorf("write draft: %w", err)
	}
	return nil
}

func (s *Store) Draft(ctx context.Context, key string, draft any) error {
	data, err := s.rdb.Get(ctx, draftKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrNoDraft
		}
		return fmt.Errorf("read draft: %w", err)
	}
	if err := json.Unmarshal(data, draft); err != nil {
		return ErrNoDraft
	}
	return nil
}

func (s *Store) DeleteDraft(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, draftKey(key)).Err(); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}

func (s *Store) SaveReceipt(ctx context.Context, key string, order *model.Order) error {
	data, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("encode receipt: %w", err)
	}
	if err := s.rdb.Set(ctx, receiptKey(key), data, receiptTTL).Err(); err != nil {
		return fmt.Errorf("write receipt: %w", err)
	}
	return nil
}

// TakeReceipt returns the receipt snapshot at most once. The atomic
// get-and-delete is what makes a second receipt view redirect to order
// history instead of re-showing (or re-submitting) the order.
func (s *Store) TakeReceipt(ctx context.Context, key string) (*model.Order, error) {
	data, err := s.rdb.GetDel(ctx, receiptKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("take receipt: %w", err)
	}
	order := &model.Order{}
	if err := json.Unmarshal(data, order); err != nil {
		return nil, nil
	}
	return order, nil
}
