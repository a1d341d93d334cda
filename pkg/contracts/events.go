package contracts

import (
	"time"

	"github.com/shopspring/decimal"
)

const OrderCreatedType = "orders.created"

type OrderCreatedEvent struct {
	EventID     string          `json:"event_id"`
	OrderID     string          `json:"order_id"`
	UserID      string          `json:"user_id"`
	Username    string          `json:"username"`
	Status      string          `json:"status"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	ItemCount   int             `json:"item_count"`
	CreatedAt   time.Time       `json:"created_at"`
}
