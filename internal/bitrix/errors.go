package bitrix

import (
	"errors"
	"fmt"
	"strings"
)

// APIError is a non-2xx or error-bearing response from the Bitrix24 REST API.
// Status 0 means the HTTP exchange itself failed (network error, timeout).
type APIError struct {
	Method      string
	Status      int
	Code        string
	Description string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("bitrix: %s: %s - %s", e.Method, e.Code, e.Description)
	}
	return fmt.Sprintf("bitrix: %s: HTTP %d", e.Method, e.Status)
}

// IsTransient reports whether the call may succeed on retry. 4xx responses
// are permanent; 5xx and transport failures are retried via queue redelivery.
func IsTransient(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status == 0 || apiErr.Status >= 500
	}
	return false
}

// IsNotFound reports whether the API rejected the call because the target
// record does not exist.
func IsNotFound(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	code := strings.ToUpper(apiErr.Code)
	return strings.Contains(code, "NOT_FOUND") || apiErr.Status == 404
}
