package validation

import (
	"reflect"
	"strconv"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"valorant-store/internal/order"
)

// New returns a validator that reports fields by their JSON names and knows
// the order amount rules.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("maxbytes", maxBytes)
	v.RegisterStructValidation(orderItemStructValidation, OrderItemRequest{})
	v.RegisterStructValidation(createOrderStructValidation, CreateOrderRequest{})

	return v
}

// maxBytes limits the encoded length of a string, unlike max which counts runes.
func maxBytes(fl validatorv10.FieldLevel) bool {
	limit, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	return len(fl.Field().String()) <= limit
}

// orderItemStructValidation keeps price and subtotal inside the stored
// NUMERIC columns.
func orderItemStructValidation(sl validatorv10.StructLevel) {
	item := sl.Current().Interface().(OrderItemRequest)
	if item.Price == nil {
		return
	}

	p := *item.Price
	switch {
	case p.IsNegative():
		sl.ReportError(item.Price, "price", "Price", "nonnegative", "")
	case p.GreaterThan(order.MaxUnitPrice):
		sl.ReportError(item.Price, "price", "Price", "maxamount", order.MaxUnitPrice.StringFixed(2))
	case !p.Equal(p.Round(2)):
		sl.ReportError(item.Price, "price", "Price", "currency", "2")
	case item.Quantity > 0 && p.Mul(decimal.NewFromInt(int64(item.Quantity))).GreaterThan(order.MaxAmount):
		sl.ReportError(item.Price, "price", "Price", "maxsubtotal", order.MaxAmount.StringFixed(2))
	}
}

// createOrderStructValidation bounds the order total.
func createOrderStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(CreateOrderRequest)

	total := decimal.Zero
	for _, it := range req.Items {
		if it.Price == nil || it.Quantity <= 0 {
			return
		}
		total = total.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	if total.GreaterThan(order.MaxAmount) {
		sl.ReportError(req.Items, "items", "Items", "maxtotal", order.MaxAmount.StringFixed(2))
	}
}
