package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"valorant-store/internal/auth"
	"valorant-store/internal/order"
	"valorant-store/internal/validation"
)

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req validation.RegisterRequest
	if err := validation.BindAndValidate(r, &req, s.validate); err != nil {
		s.writeFailure(w, r, "register", err)
		return
	}

	sess, err := s.auth.Register(r.Context(), auth.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		s.writeFailure(w, r, "register", err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req validation.LoginRequest
	if err := validation.BindAndValidate(r, &req, s.validate); err != nil {
		s.writeFailure(w, r, "login", err)
		return
	}

	sess, err := s.auth.Login(r.Context(), auth.LoginInput{Username: req.Username, Password: req.Password})
	if err != nil {
		s.writeFailure(w, r, "login", err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	caller, _ := callerFrom(r.Context())

	var req validation.CreateOrderRequest
	if err := validation.BindAndValidate(r, &req, s.validate); err != nil {
		s.writeFailure(w, r, "create order", err)
		return
	}

	items := make([]order.ItemInput, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, order.ItemInput{
			AgentID:   it.AgentID,
			AgentName: it.AgentName,
			Quantity:  it.Quantity,
			Price:     *it.Price,
		})
	}

	o, err := s.orders.Create(r.Context(), caller, items)
	if err != nil {
		s.writeFailure(w, r, "create order", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	caller, _ := callerFrom(r.Context())

	orders, err := s.orders.ListForUser(r.Context(), caller)
	if err != nil {
		s.writeFailure(w, r, "list orders", err)
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for i := range orders {
		resp = append(resp, toOrderResponse(&orders[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	caller, _ := callerFrom(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_order_id", "order id must be a UUID")
		return
	}

	o, err := s.orders.Get(r.Context(), caller, id)
	if err != nil {
		s.writeFailure(w, r, "get order", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}
