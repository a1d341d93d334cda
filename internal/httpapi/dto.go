package httpapi

import (
	"time"

	"github.com/shopspring/decimal"

	"valorant-store/internal/order"
)

// money renders as a JSON number with exactly two decimals.
type money decimal.Decimal

func (m money) MarshalJSON() ([]byte, error) {
	return []byte(decimal.Decimal(m).StringFixed(2)), nil
}

type orderItemResponse struct {
	ID        string `json:"id"`
	AgentID   string `json:"agentId"`
	AgentName string `json:"agentName"`
	Quantity  int    `json:"quantity"`
	Price     money  `json:"price"`
	Subtotal  money  `json:"subtotal"`
}

type orderResponse struct {
	ID          string              `json:"id"`
	Username    string              `json:"username"`
	Status      string              `json:"status"`
	TotalAmount money               `json:"totalAmount"`
	CreatedAt   time.Time           `json:"createdAt"`
	Items       []orderItemResponse `json:"items"`
}

func toOrderResponse(o *order.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orderItemResponse{
			ID:        it.ID.String(),
			AgentID:   it.AgentID,
			AgentName: it.AgentName,
			Quantity:  it.Quantity,
			Price:     money(it.UnitPrice),
			Subtotal:  money(it.Subtotal),
		})
	}
	return orderResponse{
		ID:          o.ID.String(),
		Username:    o.Username,
		Status:      string(o.Status),
		TotalAmount: money(o.TotalAmount),
		CreatedAt:   o.CreatedAt,
		Items:       items,
	}
}
