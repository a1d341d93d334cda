package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"valorant-store/internal/auth"
	"valorant-store/internal/order"
	"valorant-store/internal/user"
	"valorant-store/internal/validation"
)

type errorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: code, Message: msg})
}

// writeFailure maps a service or binding error to its HTTP response. Only
// unexpected errors are logged.
func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, op string, err error) {
	var reqErr *validation.RequestError
	switch {
	case errors.As(err, &reqErr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: reqErr.Code, Message: reqErr.Message, Fields: reqErr.Fields})
	case errors.Is(err, order.ErrInvalidOrder):
		msg := strings.TrimPrefix(err.Error(), order.ErrInvalidOrder.Error()+": ")
		writeError(w, http.StatusBadRequest, "validation_failed", msg)
	case errors.Is(err, auth.ErrPasswordTooLong):
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:   "validation_failed",
			Message: err.Error(),
			Fields:  map[string]string{"password": "must be at most 72 bytes"},
		})
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid_credentials", err.Error())
	case errors.Is(err, user.ErrUserExists):
		writeError(w, http.StatusConflict, "user_exists", "username or email already registered")
	case errors.Is(err, order.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "user_not_found", err.Error())
	case errors.Is(err, order.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, "order_not_found", err.Error())
	default:
		s.logger.ErrorContext(r.Context(), op, "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}
