package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// DefaultBaseURL is the assistant's own chat service.
const DefaultBaseURL = "https://derbi.net.cn"

// SessionHeader carries the conversation session in both directions.
const SessionHeader = "X-Session-Id"

// HTTPBackend talks to the textChat service. Conversations are multi-turn:
// the session ID obtained from initSession is sent with every message and
// replaced whenever the server returns a new one.
type HTTPBackend struct {
	BaseURL    string
	UserID     string
	HTTPClient *http.Client

	mu        sync.Mutex
	sessionID string
}

// NewHTTPBackend creates a backend for baseURL, or DefaultBaseURL if empty.
func NewHTTPBackend(baseURL, userID string) *HTTPBackend {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &HTTPBackend{BaseURL: baseURL, UserID: userID}
}

func (b *HTTPBackend) client() *http.Client {
	if b.HTTPClient != nil {
		return b.HTTPClient
	}
	return http.DefaultClient
}

// SessionID returns the current conversation session.
func (b *HTTPBackend) SessionID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sessionID
}

// SetSessionID continues an existing conversation.
func (b *HTTPBackend) SetSessionID(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessionID = id
}

func (b *HTTPBackend) post(ctx context.Context, path string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("chat: marshal request: %w", err)
	}
	endpoint, err := url.JoinPath(b.BaseURL, path)
	if err != nil {
		return nil, fmt.Errorf("chat: invalid base url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("chat: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if id := b.SessionID(); id != "" {
		req.Header.Set(SessionHeader, id)
	}
	return b.client().Do(req)
}

// InitSession starts a new conversation. If the service cannot provide a
// session, a local temporary one is used so chatting still works.
func (b *HTTPBackend) InitSession(ctx context.Context) string {
	b.SetSessionID("")
	id, err := b.initSession(ctx)
	if err != nil {
		id = fmt.Sprintf("temp_%d", time.Now().UnixMilli())
		slog.Warn("chat/http: initSession failed, using temporary session", "session", id, "error", err)
	}
	b.SetSessionID(id)
	return id
}

func (b *HTTPBackend) initSession(ctx context.Context) (string, error) {
	resp, err := b.post(ctx, "/xiaoXia/initSession", map[string]string{"userId": b.UserID})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("chat: initSession: http status %d", resp.StatusCode)
	}
	id := resp.Header.Get(SessionHeader)
	if id == "" {
		return "", fmt.Errorf("chat: initSession: no %s header", SessionHeader)
	}
	return id, nil
}

// Open implements Backend.
func (b *HTTPBackend) Open(ctx context.Context, req Request) (io.ReadCloser, error) {
	if b.SessionID() == "" {
		b.InitSession(ctx)
	}
	resp, err := b.post(ctx, "/xiaoXia/textChat", map[string]any{
		"reqMessage":   req.Message,
		"deepThinking": req.DeepThinking,
		"webSearch":    req.WebSearch,
	})
	if err != nil {
		return nil, fmt.Errorf("chat: send message: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("chat: server error (%d): %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if id := resp.Header.Get(SessionHeader); id != "" && id != b.SessionID() {
		b.SetSessionID(id)
	}
	return resp.Body, nil
}
