package order

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"valorant-store/internal/user"
)

type Status string

const StatusPending Status = "PENDING"

type Item struct {
	ID        uuid.UUID       `json:"id"`
	AgentID   string          `json:"agent_id"`
	AgentName string          `json:"agent_name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type Order struct {
	ID          uuid.UUID       `json:"id"`
	UserID      uuid.UUID       `json:"user_id"`
	Username    string          `json:"username"`
	Status      Status          `json:"status"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Items       []Item          `json:"items"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Column limits of order_items and orders.
const (
	MaxQuantity = 10000
)

var (
	MaxUnitPrice = decimal.RequireFromString("9999999999.99")
	MaxAmount    = decimal.RequireFromString("999999999999.99")
)

// ItemInput is one requested line. Prices are taken from the client as given.
type ItemInput struct {
	AgentID   string
	AgentName string
	Quantity  int
	Price     decimal.Decimal
}

// Caller identifies the authenticated user on whose behalf an operation runs.
type Caller struct {
	UserID   uuid.UUID
	Username string
	Role     user.Role
}

func (c Caller) IsAdmin() bool {
	return c.Role == user.RoleAdmin
}

// sumItems returns Σ subtotal over items.
func sumItems(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal)
	}
	return total
}
