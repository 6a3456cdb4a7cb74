package mosdac

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTokenInvalid is returned when the server rejects the bearer token as
	// invalid or expired. The caller should refresh the session and retry once.
	ErrTokenInvalid = errors.New("mosdac: access token invalid or expired")

	// ErrNotAuthenticated is returned by AuthSession when no token pair is held.
	ErrNotAuthenticated = errors.New("mosdac: not authenticated")
)

// AuthErrorKind classifies login and refresh failures.
type AuthErrorKind string

const (
	AuthInvalidCredentials  AuthErrorKind = "invalid_credentials"
	AuthValidation          AuthErrorKind = "validation"
	AuthServiceUnavailable  AuthErrorKind = "service_unavailable"
	AuthNetworkFailure      AuthErrorKind = "network_failure"
	AuthInvalidRefreshToken AuthErrorKind = "invalid_refresh_token"
)

// AuthError represents a failed login or token refresh. Every kind is fatal to the run.
type AuthError struct {
	Operation string        // gettoken or refresh-token
	Kind      AuthErrorKind // what went wrong
	Message   string        // message reported by the server, if any
	Err       error         // underlying error, if any
}

func (e *AuthError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("authentication failed during %s (%s): %s", e.Operation, e.Kind, e.Message)
	}

	return fmt.Sprintf("authentication failed during %s (%s)", e.Operation, e.Kind)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// SearchErrorKind classifies catalog search failures.
type SearchErrorKind string

const (
	SearchValidation     SearchErrorKind = "validation"
	SearchServerError    SearchErrorKind = "server_error"
	SearchNetworkFailure SearchErrorKind = "network_failure"
)

// SearchError represents a failed datasets.json request. It is fatal to the run.
type SearchError struct {
	Kind       SearchErrorKind
	StatusCode int    // HTTP status code, 0 for transport errors
	Message    string // first entry of the server's message list, if any
	Err        error
}

func (e *SearchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("search failed (HTTP %d, %s): %s", e.StatusCode, e.Kind, e.Message)
	}

	return fmt.Sprintf("search failed (%s): %s", e.Kind, e.Message)
}

func (e *SearchError) Unwrap() error {
	return e.Err
}

// APIError is a structured error body returned by the download API.
// Different endpoints fill different fields.
type APIError struct {
	StatusCode int      `json:"-"`
	Code       string   `json:"code,omitempty"`
	Type       string   `json:"type,omitempty"`
	ErrorText  string   `json:"error,omitempty"`
	Messages   []string `json:"-"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (HTTP %d): %s", e.StatusCode, e.Text())
}

// Text returns the most descriptive message available.
func (e *APIError) Text() string {
	switch {
	case e.ErrorText != "":
		return e.ErrorText
	case len(e.Messages) > 0:
		return strings.Join(e.Messages, "; ")
	case e.Code != "":
		return e.Code
	default:
		return "no details"
	}
}

// ParseAPIError decodes an error body. The message field may be a string or
// a list of strings. Bodies that are not JSON yield an APIError carrying only
// the status code.
func ParseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}

	var raw struct {
		Code    string          `json:"code"`
		Type    string          `json:"type"`
		Error   string          `json:"error"`
		Message json.RawMessage `json:"message"`
	}

	if err := json.Unmarshal(body, &raw); err != nil {
		return apiErr
	}

	apiErr.Code = raw.Code
	apiErr.Type = raw.Type
	apiErr.ErrorText = raw.Error

	if len(raw.Message) > 0 {
		var list []string
		if err := json.Unmarshal(raw.Message, &list); err == nil {
			apiErr.Messages = list
		} else {
			var single string
			if err := json.Unmarshal(raw.Message, &single); err == nil && single != "" {
				apiErr.Messages = []string{single}
			}
		}
	}

	return apiErr
}

// FirstMessage returns the first message entry, falling back to Text.
func (e *APIError) FirstMessage() string {
	if len(e.Messages) > 0 {
		return e.Messages[0]
	}

	return e.Text()
}
