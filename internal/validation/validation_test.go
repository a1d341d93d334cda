package validation

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestCreateOrderRequest_Valid(t *testing.T) {
	v := New()

	req := CreateOrderRequest{Items: []OrderItemRequest{
		{AgentID: "jett", AgentName: "Jett", Quantity: 2, Price: dec("10.00")},
		{AgentID: "sova", AgentName: "Sova", Quantity: 1, Price: dec("0")},
	}}
	if err := v.Struct(req); err != nil {
		t.Fatalf("expected valid, got error: %v", err)
	}
}

func TestCreateOrderRequest_PriceRules(t *testing.T) {
	v := New()

	cases := map[string]*decimal.Decimal{
		"negative": dec("-0.01"),
		"sub-cent": dec("1.999"),
		"missing":  nil,
	}
	for name, p := range cases {
		req := CreateOrderRequest{Items: []OrderItemRequest{{AgentID: "jett", AgentName: "Jett", Quantity: 1, Price: p}}}
		if err := v.Struct(req); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestCreateOrderRequest_EmptyItems(t *testing.T) {
	if err := New().Struct(CreateOrderRequest{}); err == nil {
		t.Fatal("expected error for an order without items")
	}
}

func TestBindAndValidate_FieldPaths(t *testing.T) {
	body := `{"items":[{"agentId":"jett","agentName":"Jett","quantity":0,"price":-5}]}`
	r := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(body))

	var req CreateOrderRequest
	err := BindAndValidate(r, &req, New())

	var re *RequestError
	if !errors.As(err, &re) {
		t.Fatalf("expected *RequestError, got %v", err)
	}
	if re.Code != "validation_failed" {
		t.Fatalf("unexpected code %q", re.Code)
	}
	if _, ok := re.Fields["items[0].quantity"]; !ok {
		t.Fatalf("expected quantity field error, got %v", re.Fields)
	}
	if re.Fields["items[0].price"] != "must not be negative" {
		t.Fatalf("expected price field error, got %v", re.Fields)
	}
}

func TestBindAndValidate_AcceptsStringPrice(t *testing.T) {
	body := `{"items":[{"agentId":"jett","agentName":"Jett","quantity":3,"price":"12.34"}]}`
	r := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(body))

	var req CreateOrderRequest
	if err := BindAndValidate(r, &req, New()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !req.Items[0].Price.Equal(decimal.RequireFromString("12.34")) {
		t.Fatalf("unexpected price %s", req.Items[0].Price)
	}
}

func TestBindAndValidate_InvalidJSON(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":`))

	var req LoginRequest
	err := BindAndValidate(r, &req, New())
	var re *RequestError
	if !errors.As(err, &re) || re.Code != "invalid_json" {
		t.Fatalf("expected invalid_json, got %v", err)
	}
}

func TestRegisterRequest_Rules(t *testing.T) {
	v := New()

	ok := RegisterRequest{Username: "killjoy", Email: "kj@example.com", Password: "turret"}
	if err := v.Struct(ok); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}

	bad := []RegisterRequest{
		{Username: "kj", Email: "kj@example.com", Password: "turret"},
		{Username: "killjoy", Email: "not-an-email", Password: "turret"},
		{Username: "killjoy", Email: "kj@example.com", Password: "short"},
	}
	for i, req := range bad {
		if err := v.Struct(req); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}
}

func TestRegisterRequest_PasswordCountsBytes(t *testing.T) {
	v := New()

	// 40 runes, 80 bytes
	req := RegisterRequest{Username: "astra", Email: "astra@example.com", Password: strings.Repeat("é", 40)}
	if err := v.Struct(req); err == nil {
		t.Fatal("expected multi-byte password over 72 bytes to fail")
	}

	req.Password = strings.Repeat("é", 36)
	if err := v.Struct(req); err != nil {
		t.Fatalf("72-byte password must pass: %v", err)
	}
}

func TestCreateOrderRequest_Bounds(t *testing.T) {
	v := New()

	item := func(qty int, p string) OrderItemRequest {
		return OrderItemRequest{AgentID: "jett", AgentName: "Jett", Quantity: qty, Price: dec(p)}
	}
	ok := CreateOrderRequest{Items: []OrderItemRequest{item(10000, "1.00"), item(1, "9999999999.99")}}
	if err := v.Struct(ok); err != nil {
		t.Fatalf("values at the limits must pass: %v", err)
	}

	bad := map[string]CreateOrderRequest{
		"quantity": {Items: []OrderItemRequest{item(10001, "1.00")}},
		"price":    {Items: []OrderItemRequest{item(1, "10000000000.00")}},
		"subtotal": {Items: []OrderItemRequest{item(10000, "9999999999.99")}},
		"total":    {Items: []OrderItemRequest{item(100, "9999999999.99"), item(100, "9999999999.99")}},
	}
	for name, req := range bad {
		if err := v.Struct(req); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestBindAndValidate_MessageNamesFields(t *testing.T) {
	body := `{"items":[{"agentId":"jett","agentName":"Jett","quantity":1,"price":"1.005"}]}`
	r := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(body))

	var req CreateOrderRequest
	err := BindAndValidate(r, &req, New())
	var re *RequestError
	if !errors.As(err, &re) {
		t.Fatalf("expected *RequestError, got %v", err)
	}
	if !strings.Contains(re.Message, "items[0].price must have at most two decimal places") {
		t.Fatalf("unexpected message %q", re.Message)
	}
}
