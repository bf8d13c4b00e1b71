package dashscope

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// Error codes the clients react to.
const (
	ErrCodeInvalidAPIKey     = "InvalidApiKey"
	ErrCodeAccessDenied      = "AccessDenied"
	ErrCodeRateLimitExceeded = "RateLimitExceeded"
	ErrCodeQuotaExceeded     = "QuotaExceeded"
	ErrCodeInternalError     = "InternalError"
	ErrCodeServiceBusy       = "ServiceBusy"

	// ErrCodeConnectionFailed is set locally when a handshake is rejected.
	ErrCodeConnectionFailed = "ConnectionFailed"
)

// Error is an error reported by DashScope, either in an HTTP response body
// or in a realtime error event.
type Error struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	RequestID  string `json:"request_id,omitempty"`
	HTTPStatus int    `json:"-"`
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("dashscope: %s - %s", e.Code, e.Message)
	if e.RequestID != "" {
		msg += " (request_id=" + e.RequestID + ")"
	}
	if e.HTTPStatus != 0 {
		msg += fmt.Sprintf(" (http_status=%d)", e.HTTPStatus)
	}
	return msg
}

// IsAuth reports whether the API key was rejected.
func (e *Error) IsAuth() bool {
	return e.Code == ErrCodeInvalidAPIKey || e.Code == ErrCodeAccessDenied ||
		e.HTTPStatus == http.StatusUnauthorized
}

// Retryable reports whether the same request may succeed later.
func (e *Error) Retryable() bool {
	switch e.Code {
	case ErrCodeRateLimitExceeded, ErrCodeQuotaExceeded, ErrCodeInternalError, ErrCodeServiceBusy:
		return true
	}
	return e.HTTPStatus == http.StatusTooManyRequests || e.HTTPStatus >= 500
}

// AsError attempts to cast an error to *Error.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// errorFromResponse builds an Error from a non-2xx response and closes the
// body.
func errorFromResponse(resp *http.Response) *Error {
	defer resp.Body.Close()
	e := &Error{HTTPStatus: resp.StatusCode}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(data, e) != nil || e.Code == "" {
		e.Code = http.StatusText(resp.StatusCode)
		if e.Message == "" {
			e.Message = string(data)
		}
	}
	return e
}
