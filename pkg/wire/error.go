package wire

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// ServerError is an error envelope received in place of content.
type ServerError struct {
	Code      string
	Message   string
	RequestID string
}

func (e *ServerError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("wire: server error: %s", e.Message)
	}
	return fmt.Sprintf("wire: server error %s: %s", e.Code, e.Message)
}

// AsServerError reports whether err is or wraps a *ServerError.
func AsServerError(err error) (*ServerError, bool) {
	var e *ServerError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// isError matches {"code":"...","message":"..."} without output, and
// {"error":{"message":"..."}}.
func isError(root gjson.Result) bool {
	if e := root.Get("error"); e.IsObject() && e.Get("message").Exists() {
		return true
	}
	return root.Get("code").String() != "" &&
		root.Get("message").Exists() &&
		!root.Get("output").Exists()
}

func serverError(root gjson.Result) *ServerError {
	src := root
	if e := root.Get("error"); e.IsObject() {
		src = e
	}
	return &ServerError{
		Code:      first(src, "code", "type").String(),
		Message:   src.Get("message").String(),
		RequestID: first(root, "request_id", "requestId").String(),
	}
}
