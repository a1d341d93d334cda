package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"valorant-store/internal/user"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrUserNotFound  = errors.New("user not found")
	ErrInvalidOrder  = errors.New("invalid order")
)

type Store interface {
	Save(ctx context.Context, o *Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)
	FindByUser(ctx context.Context, userID uuid.UUID) ([]Order, error)
}

type UserFinder interface {
	FindByUsername(ctx context.Context, username string) (*user.User, error)
}

type Cache interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	GenerateKey(operation, key string) string
}

type Service struct {
	orders   Store
	users    UserFinder
	cache    Cache
	cacheTTL time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(orders Store, users UserFinder, logger *slog.Logger) *Service {
	return &Service{
		orders: orders,
		users:  users,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// UseCache enables read-through caching of single-order lookups.
func (s *Service) UseCache(c Cache, ttl time.Duration) {
	s.cache = c
	s.cacheTTL = ttl
}

func (s *Service) Create(ctx context.Context, caller Caller, items []ItemInput) (*Order, error) {
	if err := validateItems(items); err != nil {
		return nil, err
	}

	u, err := s.resolve(ctx, caller)
	if err != nil {
		return nil, err
	}

	now := s.now()
	o := &Order{
		ID:        uuid.New(),
		UserID:    u.ID,
		Username:  u.Username,
		Status:    StatusPending,
		Items:     make([]Item, 0, len(items)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, in := range items {
		o.Items = append(o.Items, Item{
			ID:        uuid.New(),
			AgentID:   in.AgentID,
			AgentName: in.AgentName,
			Quantity:  in.Quantity,
			UnitPrice: in.Price,
			Subtotal:  in.Price.Mul(decimal.NewFromInt(int64(in.Quantity))),
		})
	}
	o.TotalAmount = sumItems(o.Items)
	if err := checkAmounts(o); err != nil {
		return nil, err
	}

	if err := s.orders.Save(ctx, o); err != nil {
		return nil, fmt.Errorf("save order: %w", err)
	}

	s.logger.InfoContext(ctx, "order created",
		"order_id", o.ID, "username", o.Username, "items", len(o.Items), "total", o.TotalAmount.StringFixed(2))
	return o, nil
}

// ListForUser returns the caller's orders, newest first. The result is never nil.
func (s *Service) ListForUser(ctx context.Context, caller Caller) ([]Order, error) {
	u, err := s.resolve(ctx, caller)
	if err != nil {
		return nil, err
	}

	orders, err := s.orders.FindByUser(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	if orders == nil {
		orders = []Order{}
	}
	return orders, nil
}

// Get returns a single order. Orders owned by someone else are reported as
// missing unless the caller is an admin.
func (s *Service) Get(ctx context.Context, caller Caller, id uuid.UUID) (*Order, error) {
	o, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.IsAdmin() && o.UserID != caller.UserID {
		return nil, ErrOrderNotFound
	}
	return o, nil
}

func (s *Service) lookup(ctx context.Context, id uuid.UUID) (*Order, error) {
	if s.cache == nil {
		return s.orders.FindByID(ctx, id)
	}

	key := s.cache.GenerateKey("order", id.String())
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.WarnContext(ctx, "order cache get failed", "key", key, "err", err)
	} else if raw != "" {
		var o Order
		if err := json.Unmarshal([]byte(raw), &o); err == nil {
			return &o, nil
		}
		s.logger.WarnContext(ctx, "order cache entry corrupt", "key", key)
	}

	o, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(o)
	if err == nil {
		err = s.cache.Set(ctx, key, payload, s.cacheTTL)
	}
	if err != nil {
		s.logger.WarnContext(ctx, "order cache set failed", "key", key, "err", err)
	}
	return o, nil
}

func (s *Service) resolve(ctx context.Context, caller Caller) (*user.User, error) {
	if caller.Username == "" {
		return nil, ErrUserNotFound
	}
	u, err := s.users.FindByUsername(ctx, caller.Username)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("resolve caller: %w", err)
	}
	return u, nil
}

func validateItems(items []ItemInput) error {
	if len(items) == 0 {
		return fmt.Errorf("%w: at least one item is required", ErrInvalidOrder)
	}
	for i, it := range items {
		switch {
		case strings.TrimSpace(it.AgentID) == "":
			return fmt.Errorf("%w: item %d: agentId is required", ErrInvalidOrder, i)
		case strings.TrimSpace(it.AgentName) == "":
			return fmt.Errorf("%w: item %d: agentName is required", ErrInvalidOrder, i)
		case it.Quantity <= 0:
			return fmt.Errorf("%w: item %d: quantity must be positive", ErrInvalidOrder, i)
		case it.Quantity > MaxQuantity:
			return fmt.Errorf("%w: item %d: quantity must be at most %d", ErrInvalidOrder, i, MaxQuantity)
		case it.Price.IsNegative():
			return fmt.Errorf("%w: item %d: price must not be negative", ErrInvalidOrder, i)
		case it.Price.GreaterThan(MaxUnitPrice):
			return fmt.Errorf("%w: item %d: price must be at most %s", ErrInvalidOrder, i, MaxUnitPrice.StringFixed(2))
		case !it.Price.Equal(it.Price.Round(2)):
			return fmt.Errorf("%w: item %d: price must have at most two decimal places (amounts are stored in cents)", ErrInvalidOrder, i)
		}
	}
	return nil
}

// checkAmounts rejects orders whose subtotals or total would not fit the
// stored columns.
func checkAmounts(o *Order) error {
	for i, it := range o.Items {
		if it.Subtotal.GreaterThan(MaxAmount) {
			return fmt.Errorf("%w: item %d: subtotal must be at most %s", ErrInvalidOrder, i, MaxAmount.StringFixed(2))
		}
	}
	if o.TotalAmount.GreaterThan(MaxAmount) {
		return fmt.Errorf("%w: order total must be at most %s", ErrInvalidOrder, MaxAmount.StringFixed(2))
	}
	return nil
}
