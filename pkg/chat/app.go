package chat

import (
	"context"
	"io"

	"github.com/derbi/xiaoxia/pkg/dashscope"
)

// AppBackend streams from a DashScope application. Deep thinking maps to the
// application's thoughts output.
type AppBackend struct {
	Client    *dashscope.Client
	AppID     string
	SessionID string
}

// Open implements Backend.
func (b *AppBackend) Open(ctx context.Context, req Request) (io.ReadCloser, error) {
	return b.Client.Apps.Completion(ctx, b.AppID, &dashscope.AppRequest{
		Prompt:      req.Message,
		SessionID:   b.SessionID,
		HasThoughts: req.DeepThinking,
	})
}
