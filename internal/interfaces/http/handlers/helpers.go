package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// validate is the global validator instance for request validation.
var validate = validator.New()

// DecodeJSON decodes JSON request body into the provided struct and validates it.
// Returns an error if JSON decoding or validation fails.
func DecodeJSON[T any](r *http.Request, v *T) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}

	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	return nil
}

// EncodeJSON encodes the provided value as JSON and writes it to the response.
// Sets the Content-Type header to application/json automatically.
func EncodeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}

	return nil
}

// GetPathParam extracts a path parameter from the chi router context.
// Returns empty string if the parameter is not found.
func GetPathParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}

// GetPathParamUUID extracts a path parameter and parses it as a UUID.
func GetPathParamUUID(r *http.Request, name string) (uuid.UUID, error) {
	param := chi.URLParam(r, name)
	if param == "" {
		return uuid.Nil, fmt.Errorf("missing path parameter: %s", name)
	}

	id, err := uuid.Parse(param)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid uuid in path parameter %s: %w", name, err)
	}

	return id, nil
}

// GetClientIP extracts the client IP address from the request.
// Returns the X-Forwarded-For or X-Real-IP header value when present,
// falling back to RemoteAddr (port included). Used for request logging; the
// rate-limit middleware extracts its own key.
func GetClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return r.RemoteAddr
}

// GetUserAgent extracts the User-Agent header from the request.
// Returns "unknown" if the header is not present.
func GetUserAgent(r *http.Request) string {
	ua := r.Header.Get("User-Agent")
	if ua == "" {
		return "unknown"
	}
	return ua
}

// FormatValidationErrors formats go-playground/validator errors into a
// human-readable map, for use in the extensions field of RFC 7807 Problem
// Details.
func FormatValidationErrors(err error) map[string]interface{} {
	validationErrors := make(map[string]interface{})

	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			validationErrors[fe.Field()] = map[string]string{
				"tag":   fe.Tag(),
				"value": fe.Param(),
				"error": fe.Error(),
			}
		}
	} else {
		validationErrors["error"] = err.Error()
	}

	return validationErrors
}
