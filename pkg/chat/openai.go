package chat

import (
	"context"
	"fmt"
	"io"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIBackend streams from an OpenAI-compatible chat completion API, such
// as DashScope's compatible mode. Each chunk is re-framed as one SSE data
// line carrying the chunk's raw JSON, followed by [DONE].
type OpenAIBackend struct {
	Client *openai.Client
	Model  string
	// System is an optional system prompt.
	System string
}

// NewOpenAIBackend creates a backend for baseURL, or the OpenAI default if
// empty.
func NewOpenAIBackend(apiKey, baseURL, model string) *OpenAIBackend {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	return &OpenAIBackend{Client: &client, Model: model}
}

// Open implements Backend.
func (b *OpenAIBackend) Open(ctx context.Context, req Request) (io.ReadCloser, error) {
	var msgs []openai.ChatCompletionMessageParamUnion
	if b.System != "" {
		msgs = append(msgs, openai.SystemMessage(b.System))
	}
	msgs = append(msgs, openai.UserMessage(req.Message))
	params := openai.ChatCompletionNewParams{
		Model:    b.Model,
		Messages: msgs,
	}

	ctx, cancel := context.WithCancel(ctx)
	st := b.Client.Chat.Completions.NewStreaming(ctx, params)
	pr, pw := io.Pipe()
	go func() {
		defer cancel()
		defer st.Close()
		for st.Next() {
			if _, err := fmt.Fprintf(pw, "data: %s\n\n", st.Current().RawJSON()); err != nil {
				return
			}
		}
		if err := st.Err(); err != nil {
			pw.CloseWithError(fmt.Errorf("chat: openai stream: %w", err))
			return
		}
		io.WriteString(pw, "data: [DONE]\n\n")
		pw.Close()
	}()
	return &cancelReader{PipeReader: pr, cancel: cancel}, nil
}

type cancelReader struct {
	*io.PipeReader
	cancel context.CancelFunc
}

func (r *cancelReader) Close() error {
	r.cancel()
	return r.PipeReader.Close()
}
