package shared

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// MaxRequestBodyBytes bounds JSON request bodies.
const MaxRequestBodyBytes = 1 << 20

var (
	// ErrEmptyBody is returned by DecodeJSON when the request has no body.
	ErrEmptyBody = errors.New("request body is empty")

	// ErrInvalidBody is returned by DecodeJSON when the body is not a single
	// JSON value of the expected shape, or is too large.
	ErrInvalidBody = errors.New("request body must be valid JSON")
)

// Global validator instance for reuse
var validate = validator.New()

// DecodeJSON decodes the request body into v.
// Unknown fields are ignored; trailing data after the JSON value is an error.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodyBytes)

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return ErrEmptyBody
		}
		return fmt.Errorf("%w: %v", ErrInvalidBody, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: unexpected data after JSON value", ErrInvalidBody)
	}
	return nil
}

// ValidateRequest validates the given struct using the validator package.
func ValidateRequest(v interface{}) error {
	// Check if the object implements the Validate interface
	if validator, ok := v.(interface{ Validate() error }); ok {
		return validator.Validate()
	}

	// Otherwise, use the struct validator
	return validate.Struct(v)
}
