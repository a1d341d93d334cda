package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"valorant-store/internal/auth"
	"valorant-store/internal/order"
	"valorant-store/internal/user"
)

type fakeOrders struct {
	created   []order.ItemInput
	caller    order.Caller
	createErr error
	list      []order.Order
	get       *order.Order
	getErr    error
}

func (f *fakeOrders) Create(ctx context.Context, caller order.Caller, items []order.ItemInput) (*order.Order, error) {
	f.caller = caller
	f.created = items
	if f.createErr != nil {
		return nil, f.createErr
	}
	o := &order.Order{ID: uuid.New(), UserID: caller.UserID, Username: caller.Username, Status: order.StatusPending}
	for _, in := range items {
		sub := in.Price.Mul(decimal.NewFromInt(int64(in.Quantity)))
		o.Items = append(o.Items, order.Item{ID: uuid.New(), AgentID: in.AgentID, AgentName: in.AgentName, Quantity: in.Quantity, UnitPrice: in.Price, Subtotal: sub})
		o.TotalAmount = o.TotalAmount.Add(sub)
	}
	return o, nil
}

func (f *fakeOrders) ListForUser(ctx context.Context, caller order.Caller) ([]order.Order, error) {
	f.caller = caller
	return f.list, nil
}

func (f *fakeOrders) Get(ctx context.Context, caller order.Caller, id uuid.UUID) (*order.Order, error) {
	f.caller = caller
	return f.get, f.getErr
}

type fakeAuth struct {
	err error
}

func (f *fakeAuth) Register(ctx context.Context, in auth.RegisterInput) (*auth.Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &auth.Session{Token: "t", Username: in.Username, Role: user.RoleUser}, nil
}

func (f *fakeAuth) Login(ctx context.Context, in auth.LoginInput) (*auth.Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &auth.Session{Token: "t", Username: in.Username, Role: user.RoleUser}, nil
}

var omen = &user.User{ID: uuid.New(), Username: "omen", Role: user.RoleUser}

func newTestServer(t *testing.T, orders *fakeOrders, authSvc *fakeAuth) (*Server, string) {
	t.Helper()
	tokens := auth.NewTokenIssuer("test-secret", time.Hour)
	token, _, err := tokens.Issue(omen)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	srv := NewServer(Deps{
		Orders:      orders,
		Auth:        authSvc,
		Tokens:      tokens,
		CORSOrigins: []string{"http://localhost:3000"},
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return srv, token
}

func do(srv http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var body errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v (%s)", err, rec.Body.String())
	}
	return body
}

func TestCreateOrder_OK(t *testing.T) {
	orders := &fakeOrders{}
	srv, token := newTestServer(t, orders, &fakeAuth{})

	body := `{"items":[{"agentId":"jett","agentName":"Jett","quantity":2,"price":10},{"agentId":"sova","agentName":"Sova","quantity":1,"price":15.5}]}`
	rec := do(srv, http.MethodPost, "/orders", token, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if orders.caller.Username != "omen" || orders.caller.UserID != omen.ID {
		t.Fatalf("caller not taken from token: %+v", orders.caller)
	}

	if !strings.Contains(rec.Body.String(), `"totalAmount":35.50`) {
		t.Fatalf("expected total rendered as 35.50, got %s", rec.Body.String())
	}
	var resp struct {
		Status string `json:"status"`
		Items  []struct {
			AgentID  string  `json:"agentId"`
			Subtotal float64 `json:"subtotal"`
		} `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "PENDING" || len(resp.Items) != 2 || resp.Items[0].Subtotal != 20 {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestCreateOrder_Unauthorized(t *testing.T) {
	srv, _ := newTestServer(t, &fakeOrders{}, &fakeAuth{})

	for _, token := range []string{"", "garbage"} {
		rec := do(srv, http.MethodPost, "/orders", token, `{"items":[]}`)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("token %q: expected 401, got %d", token, rec.Code)
		}
		if decodeError(t, rec).Error != "unauthorized" {
			t.Fatalf("token %q: unexpected body %s", token, rec.Body.String())
		}
	}
}

func TestCreateOrder_ValidationFailures(t *testing.T) {
	orders := &fakeOrders{}
	srv, token := newTestServer(t, orders, &fakeAuth{})

	cases := map[string]string{
		"no items":      `{"items":[]}`,
		"zero quantity": `{"items":[{"agentId":"jett","agentName":"Jett","quantity":0,"price":1}]}`,
		"negative":      `{"items":[{"agentId":"jett","agentName":"Jett","quantity":1,"price":-1}]}`,
	}
	for name, body := range cases {
		rec := do(srv, http.MethodPost, "/orders", token, body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", name, rec.Code)
		}
		if got := decodeError(t, rec); got.Error != "validation_failed" || len(got.Fields) == 0 {
			t.Fatalf("%s: unexpected body %s", name, rec.Body.String())
		}
	}
	if orders.created != nil {
		t.Fatal("service must not be called for invalid requests")
	}

	rec := do(srv, http.MethodPost, "/orders", token, `{"items":`)
	if rec.Code != http.StatusBadRequest || decodeError(t, rec).Error != "invalid_json" {
		t.Fatalf("expected invalid_json, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestCreateOrder_UnknownUser(t *testing.T) {
	srv, token := newTestServer(t, &fakeOrders{createErr: order.ErrUserNotFound}, &fakeAuth{})

	rec := do(srv, http.MethodPost, "/orders", token, `{"items":[{"agentId":"jett","agentName":"Jett","quantity":1,"price":1}]}`)
	if rec.Code != http.StatusNotFound || decodeError(t, rec).Error != "user_not_found" {
		t.Fatalf("expected 404 user_not_found, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestListOrders_EmptyArray(t *testing.T) {
	srv, token := newTestServer(t, &fakeOrders{list: []order.Order{}}, &fakeAuth{})

	rec := do(srv, http.MethodGet, "/orders", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("expected empty JSON array, got %s", rec.Body.String())
	}
}

func TestGetOrder(t *testing.T) {
	id := uuid.New()
	orders := &fakeOrders{get: &order.Order{ID: id, Username: "omen", Status: order.StatusPending, TotalAmount: decimal.RequireFromString("7.5")}}
	srv, token := newTestServer(t, orders, &fakeAuth{})

	rec := do(srv, http.MethodGet, "/orders/"+id.String(), token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"totalAmount":7.50`) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}

	orders.get, orders.getErr = nil, order.ErrOrderNotFound
	rec = do(srv, http.MethodGet, "/orders/"+uuid.NewString(), token, "")
	if rec.Code != http.StatusNotFound || decodeError(t, rec).Error != "order_not_found" {
		t.Fatalf("expected 404 order_not_found, got %d %s", rec.Code, rec.Body.String())
	}

	rec = do(srv, http.MethodGet, "/orders/42", token, "")
	if rec.Code != http.StatusBadRequest || decodeError(t, rec).Error != "invalid_order_id" {
		t.Fatalf("expected 400 invalid_order_id, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestGetOrder_InternalErrorIsHidden(t *testing.T) {
	srv, token := newTestServer(t, &fakeOrders{getErr: errors.New("pool exhausted")}, &fakeAuth{})

	rec := do(srv, http.MethodGet, "/orders/"+uuid.NewString(), token, "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "pool exhausted") {
		t.Fatal("internal error details must not leak")
	}
}

func TestAuthEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, &fakeOrders{}, &fakeAuth{})

	rec := do(srv, http.MethodPost, "/auth/register", "", `{"username":"viper","email":"viper@example.com","password":"toxins"}`)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"token":"t"`) {
		t.Fatalf("register: %d %s", rec.Code, rec.Body.String())
	}

	rec = do(srv, http.MethodPost, "/auth/register", "", `{"username":"vi","email":"nope","password":"x"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("register validation: expected 400, got %d", rec.Code)
	}
	fields := decodeError(t, rec).Fields
	for _, f := range []string{"username", "email", "password"} {
		if _, ok := fields[f]; !ok {
			t.Fatalf("expected field error for %s, got %v", f, fields)
		}
	}

	srv, _ = newTestServer(t, &fakeOrders{}, &fakeAuth{err: user.ErrUserExists})
	rec = do(srv, http.MethodPost, "/auth/register", "", `{"username":"viper","email":"viper@example.com","password":"toxins"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate register: expected 409, got %d", rec.Code)
	}

	srv, _ = newTestServer(t, &fakeOrders{}, &fakeAuth{err: auth.ErrInvalidCredentials})
	rec = do(srv, http.MethodPost, "/auth/login", "", `{"username":"viper","password":"wrong"}`)
	if rec.Code != http.StatusUnauthorized || decodeError(t, rec).Error != "invalid_credentials" {
		t.Fatalf("login: expected 401 invalid_credentials, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t, &fakeOrders{}, &fakeAuth{})

	req := httptest.NewRequest(http.MethodOptions, "/orders", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK && rec.Code != http.StatusNoContent {
		t.Fatalf("expected successful preflight, got %d", rec.Code)
	}
	if !strings.Contains(rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPost) {
		t.Fatalf("POST must be allowed: %v", rec.Header())
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "http://localhost:3000" {
		t.Fatalf("missing allow-origin header: %v", rec.Header())
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatal("unknown origins must not be allowed")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("health: expected 200, got %d", rec.Code)
	}
}

func TestCreateOrder_OutOfRangeValuesAreRejected(t *testing.T) {
	orders := &fakeOrders{}
	srv, token := newTestServer(t, orders, &fakeAuth{})

	cases := map[string]struct {
		body  string
		field string
	}{
		"quantity": {`{"items":[{"agentId":"jett","agentName":"Jett","quantity":3000000000,"price":"1.00"}]}`, "items[0].quantity"},
		"price":    {`{"items":[{"agentId":"jett","agentName":"Jett","quantity":1,"price":"99999999999.99"}]}`, "items[0].price"},
		"subtotal": {`{"items":[{"agentId":"jett","agentName":"Jett","quantity":10000,"price":"9999999999.99"}]}`, "items[0].price"},
		"total": {`{"items":[{"agentId":"a","agentName":"A","quantity":100,"price":"9999999999.99"},` +
			`{"agentId":"b","agentName":"B","quantity":100,"price":"9999999999.99"}]}`, "items"},
	}
	for name, tc := range cases {
		rec := do(srv, http.MethodPost, "/orders", token, tc.body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d: %s", name, rec.Code, rec.Body.String())
		}
		body := decodeError(t, rec)
		if body.Error != "validation_failed" || body.Fields[tc.field] == "" {
			t.Fatalf("%s: expected field error on %s, got %s", name, tc.field, rec.Body.String())
		}
		if !strings.Contains(body.Message, tc.field) {
			t.Fatalf("%s: message should name the field, got %q", name, body.Message)
		}
	}
	if orders.created != nil {
		t.Fatal("service must not be called for out-of-range values")
	}
}

func TestCreateOrder_PrecisionReasonInMessage(t *testing.T) {
	srv, token := newTestServer(t, &fakeOrders{}, &fakeAuth{})

	rec := do(srv, http.MethodPost, "/orders", token, `{"items":[{"agentId":"jett","agentName":"Jett","quantity":1,"price":"1.999"}]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if msg := decodeError(t, rec).Message; !strings.Contains(msg, "two decimal places") {
		t.Fatalf("expected precision reason, got %q", msg)
	}
}

func TestRegister_MultiBytePasswordLimit(t *testing.T) {
	srv, _ := newTestServer(t, &fakeOrders{}, &fakeAuth{})

	body := `{"username":"astra","email":"astra@example.com","password":"` + strings.Repeat("é", 40) + `"}`
	rec := do(srv, http.MethodPost, "/auth/register", "", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	if decodeError(t, rec).Fields["password"] == "" {
		t.Fatalf("expected password field error, got %s", rec.Body.String())
	}

	// the service guard maps to the same response
	srv, _ = newTestServer(t, &fakeOrders{}, &fakeAuth{err: auth.ErrPasswordTooLong})
	rec = do(srv, http.MethodPost, "/auth/register", "", `{"username":"astra","email":"astra@example.com","password":"secret1"}`)
	if rec.Code != http.StatusBadRequest || decodeError(t, rec).Error != "validation_failed" {
		t.Fatalf("expected 400 validation_failed, got %d %s", rec.Code, rec.Body.String())
	}
}
