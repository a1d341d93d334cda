package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"sort"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"
)

// RequestError describes a rejected request body.
type RequestError struct {
	Code    string            `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func (e *RequestError) Error() string {
	return e.Code + ": " + e.Message
}

// BindAndValidate decodes the JSON body of r into out and validates it.
// Failures are returned as *RequestError.
func BindAndValidate(r *http.Request, out any, v *validatorv10.Validate) error {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		return &RequestError{Code: "invalid_json", Message: "request body is not valid JSON"}
	}

	if err := v.Struct(out); err != nil {
		var ve validatorv10.ValidationErrors
		if !errors.As(err, &ve) {
			return fmt.Errorf("validate request: %w", err)
		}
		fields := fieldErrors(ve)
		return &RequestError{
			Code:    "validation_failed",
			Message: summary(fields),
			Fields:  fields,
		}
	}
	return nil
}

func fieldErrors(ve validatorv10.ValidationErrors) map[string]string {
	out := make(map[string]string, len(ve))
	for _, fe := range ve {
		out[fieldPath(fe.Namespace())] = message(fe)
	}
	return out
}

// summary joins the field errors into one sorted line, e.g.
// "items[0].price must have at most two decimal places".
func summary(fields map[string]string) string {
	parts := make([]string, 0, len(fields))
	for f, msg := range fields {
		parts = append(parts, f+" "+msg)
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

// fieldPath drops the root struct name: "CreateOrderRequest.items[0].price"
// becomes "items[0].price".
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func message(fe validatorv10.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at least %s entries", fe.Param())
		}
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "maxbytes":
		return fmt.Sprintf("must be at most %s bytes", fe.Param())
	case "email":
		return "must be a valid email address"
	case "nonnegative":
		return "must not be negative"
	case "currency":
		return "must have at most two decimal places, amounts are kept in whole cents"
	case "maxamount":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "maxsubtotal":
		return fmt.Sprintf("times quantity must be at most %s", fe.Param())
	case "maxtotal":
		return fmt.Sprintf("must add up to at most %s", fe.Param())
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}
