package coselpro

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ============================================================================
// Error kinds
// ============================================================================

var (
	// ErrURIEntry is returned when the gateway address is missing or malformed.
	ErrURIEntry = errors.New("uri entry error")

	// ErrLoginEntry is returned when the login could not be read.
	ErrLoginEntry = errors.New("login entry error")

	// ErrPasswordEntry is returned when the password could not be read.
	ErrPasswordEntry = errors.New("password entry error")

	// ErrTokenSaving is returned when the token cache could not be written.
	ErrTokenSaving = errors.New("token saving error")

	// ErrTokenLoading is returned when the token cache could not be read or
	// does not hold a token.
	ErrTokenLoading = errors.New("token loading error")

	// ErrTokenParsing is returned when the gateway did not produce a usable
	// token: unreachable, non-2xx status or malformed body.
	ErrTokenParsing = errors.New("token parsing error")

	// ErrNewToken is returned when a session could not obtain its first token.
	ErrNewToken = errors.New("new token error")

	// ErrRenewToken is returned when a session could not renew its token.
	ErrRenewToken = errors.New("renew token error")

	// ErrExpiredToken is returned, without any network call, when a session is
	// built from or used with an expired token.
	ErrExpiredToken = errors.New("expired token")
)

// ============================================================================
// Typed errors
// ============================================================================

// CredentialsError reports a failure to build Credentials.
type CredentialsError struct {
	// Kind is one of ErrURIEntry, ErrLoginEntry or ErrPasswordEntry.
	Kind error

	// Err is the underlying cause (I/O or parse error), if any.
	Err error
}

func (e *CredentialsError) Error() string {
	if e.Err == nil {
		return "coselpro: " + e.Kind.Error()
	}
	return fmt.Sprintf("coselpro: %v: %v", e.Kind, e.Err)
}

func (e *CredentialsError) Unwrap() []error { return unwrapPair(e.Kind, e.Err) }

// TokenError reports a failure to produce, store or read a Token.
type TokenError struct {
	// Kind is one of ErrTokenSaving, ErrTokenLoading or ErrTokenParsing.
	Kind error

	// Op names the operation: "login", "extend_token", "save" or "load".
	Op string

	// Err is the underlying cause.
	Err error
}

func (e *TokenError) Error() string {
	msg := "coselpro: " + e.Op + ": " + e.Kind.Error()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TokenError) Unwrap() []error { return unwrapPair(e.Kind, e.Err) }

// SessionError reports which session operation failed.
type SessionError struct {
	// Kind is one of ErrNewToken, ErrRenewToken or ErrExpiredToken.
	Kind error

	// Err is the underlying *TokenError for ErrNewToken and ErrRenewToken.
	Err error
}

func (e *SessionError) Error() string {
	if e.Err == nil {
		return "coselpro: session: " + e.Kind.Error()
	}
	return fmt.Sprintf("coselpro: session: %v: %v", e.Kind, e.Err)
}

func (e *SessionError) Unwrap() []error { return unwrapPair(e.Kind, e.Err) }

func unwrapPair(kind, err error) []error {
	if err == nil {
		return []error{kind}
	}
	return []error{kind, err}
}

// ============================================================================
// Gateway errors
// ============================================================================

// APIError is a non-2xx response from the gateway. PostgREST reports errors as
// {"code","message","details","hint"}; fields are empty when the body had
// another shape.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	Hint       string `json:"hint,omitempty"`
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "gateway returned HTTP %d", e.StatusCode)
	if e.Code != "" {
		fmt.Fprintf(&b, " (%s)", e.Code)
	}
	if e.Message != "" {
		b.WriteString(": " + e.Message)
	}
	return b.String()
}

// Unauthorized reports whether the gateway rejected the credentials or token.
func (e *APIError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// parseErrorResponse turns a non-2xx response into an *APIError.
// Returns nil if the response indicates success (2xx status code).
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	apiErr := &APIError{StatusCode: resp.StatusCode}

	// details and hint may be null or non-string in some gateway versions
	var raw struct {
		Code    json.RawMessage `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
		Hint    json.RawMessage `json:"hint"`
	}
	if err := json.Unmarshal(body, &raw); err == nil && raw.Message != "" {
		apiErr.Code = rawString(raw.Code)
		apiErr.Message = raw.Message
		apiErr.Details = rawString(raw.Details)
		apiErr.Hint = rawString(raw.Hint)
		return apiErr
	}

	// Fallback: status text plus a short excerpt of the body
	apiErr.Message = http.StatusText(resp.StatusCode)
	if excerpt := strings.TrimSpace(string(body)); excerpt != "" {
		if len(excerpt) > 200 {
			excerpt = excerpt[:200]
		}
		apiErr.Details = excerpt
	}
	return apiErr
}

func rawString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
