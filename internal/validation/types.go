package validation

import "github.com/shopspring/decimal"

// OrderItemRequest is one line of POST /orders. Price accepts a JSON number or string.
type OrderItemRequest struct {
	AgentID   string           `json:"agentId" validate:"required"`
	AgentName string           `json:"agentName" validate:"required"`
	Quantity  int              `json:"quantity" validate:"required,min=1,max=10000"`
	Price     *decimal.Decimal `json:"price" validate:"required"`
}

type CreateOrderRequest struct {
	Items []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
}

// RegisterRequest limits the password to 72 bytes, the most bcrypt will hash.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,maxbytes=72"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}
