package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	ownhttp "github.com/ownafarm/ownafarm-gateway/internal/client/http"
)

// APIError is a failure response from the OwnaFarm backend, carrying the
// upstream status code and its message verbatim when one was provided.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Message)
}

// IsValidation reports whether the backend rejected the request payload.
func (e *APIError) IsValidation() bool { return e.StatusCode == http.StatusBadRequest }

// IsUnauthorized reports whether the credential was missing or rejected.
func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// IsDuplicate reports whether the backend saw the registration before.
func (e *APIError) IsDuplicate() bool { return e.StatusCode == http.StatusConflict }

// IsServer reports an upstream server-side failure.
func (e *APIError) IsServer() bool { return e.StatusCode >= http.StatusInternalServerError }

// upstream error bodies come as {"message": ...} or {"error": ...}
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// asAPIError converts an HTTP-layer failure into an *APIError. Non-HTTP
// failures (network, marshalling) pass through untouched.
func asAPIError(err error) error {
	if err == nil {
		return nil
	}
	var httpErr *ownhttp.HTTPError
	if !errors.As(err, &httpErr) {
		return err
	}

	message := httpErr.Status
	var body errorBody
	if jsonErr := json.Unmarshal([]byte(httpErr.Body), &body); jsonErr == nil {
		if body.Message != "" {
			message = body.Message
		} else if body.Error != "" {
			message = body.Error
		}
	}

	return &APIError{StatusCode: httpErr.StatusCode, Message: message}
}
