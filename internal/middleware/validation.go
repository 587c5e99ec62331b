package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// MaxRequestBody caps JSON request bodies
const MaxRequestBody = 1 << 20

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	// report fields by their JSON name
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// lets gte/lte/gt apply to money fields
	validate.RegisterCustomTypeFunc(func(v reflect.Value) interface{} {
		d, ok := v.Interface().(decimal.Decimal)
		if !ok {
			return nil
		}
		f, _ := d.Float64()
		return f
	}, decimal.Decimal{})
}

// ValidateRequest validates a decoded request against its validation tags
func ValidateRequest(v interface{}) error {
	return validate.Struct(v)
}

// DecodeAndValidate decodes a JSON request body and validates it
func DecodeAndValidate(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxRequestBody))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return ValidateRequest(v)
}

// ValidationError represents a field validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FormatValidationErrors converts validator errors to a readable format.
// Nested fields are reported by path, e.g. items[0].quantity.
func FormatValidationErrors(err error) []ValidationError {
	var result []ValidationError

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		for _, e := range validationErrors {
			result = append(result, ValidationError{
				Field:   fieldPath(e),
				Message: getErrorMessage(e),
			})
		}
	}

	return result
}

func fieldPath(e validator.FieldError) string {
	ns := e.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return e.Field()
}

func getErrorMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Invalid email format"
	case "uuid", "uuid4":
		return "Must be a valid UUID"
	case "oneof":
		return "Must be one of: " + strings.Join(strings.Fields(e.Param()), ", ")
	case "min":
		if e.Kind() == reflect.Slice {
			return "Must contain at least " + e.Param() + " item(s)"
		}
		return "Value is too short"
	case "max":
		return "Value is too long"
	case "gte":
		return "Value must be greater than or equal to " + e.Param()
	case "lte":
		return "Value must be less than or equal to " + e.Param()
	case "gt":
		return "Value must be greater than " + e.Param()
	case "lt":
		return "Value must be less than " + e.Param()
	case "url":
		return "Must be a valid URL"
	default:
		return "Invalid value"
	}
}
