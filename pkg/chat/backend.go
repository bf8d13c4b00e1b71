package chat

import (
	"context"
	"io"
)

// Request is one user turn.
type Request struct {
	Message      string
	DeepThinking bool
	WebSearch    bool
}

// Backend opens the streaming response for a request. The returned body is
// an SSE stream of JSON fragments; the caller closes it.
type Backend interface {
	Open(ctx context.Context, req Request) (io.ReadCloser, error)
}

// BackendFunc adapts a function to a Backend.
type BackendFunc func(ctx context.Context, req Request) (io.ReadCloser, error)

// Open implements Backend.
func (f BackendFunc) Open(ctx context.Context, req Request) (io.ReadCloser, error) {
	return f(ctx, req)
}
