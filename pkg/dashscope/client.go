package dashscope

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

const (
	// DefaultRealtimeURL is the WebSocket endpoint for realtime TTS and ASR.
	DefaultRealtimeURL = "wss://dashscope.aliyuncs.com/api-ws/v1/realtime"

	// DefaultHTTPBaseURL is the HTTP endpoint for application completions.
	DefaultHTTPBaseURL = "https://dashscope.aliyuncs.com"

	// DefaultHandshakeTimeout bounds the realtime WebSocket handshake.
	DefaultHandshakeTimeout = 10 * time.Second
)

// ErrNoAPIKey is returned by every call of a client created without a key.
var ErrNoAPIKey = errors.New("dashscope: no API key")

// Client is the DashScope API client. Realtime opens speech sockets; Apps
// streams application completions.
type Client struct {
	Realtime *RealtimeService
	Apps     *AppService

	apiKey     string
	workspace  string
	realtime   string
	httpBase   string
	httpClient *http.Client
	handshake  time.Duration
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// NewClient creates a client authenticating with apiKey.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		realtime:   DefaultRealtimeURL,
		httpBase:   DefaultHTTPBaseURL,
		httpClient: http.DefaultClient,
		handshake:  DefaultHandshakeTimeout,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.Realtime = &RealtimeService{client: c}
	c.Apps = &AppService{client: c}
	return c
}

// WithWorkspace scopes calls to a workspace.
func WithWorkspace(id string) Option {
	return func(c *Client) { c.workspace = id }
}

// WithBaseURL replaces the realtime WebSocket endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.realtime = u }
}

// WithHTTPBaseURL replaces the HTTP endpoint.
func WithHTTPBaseURL(u string) Option {
	return func(c *Client) { c.httpBase = u }
}

// WithHTTPClient sets the client used for HTTP calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithHandshakeTimeout bounds the realtime WebSocket handshake.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(c *Client) { c.handshake = d }
}

// WithLogger sets the logger for wire-level debug output.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func (c *Client) header() (http.Header, error) {
	if c.apiKey == "" {
		return nil, ErrNoAPIKey
	}
	h := http.Header{}
	h.Set("Authorization", "Bearer "+c.apiKey)
	if c.workspace != "" {
		h.Set("X-DashScope-WorkSpace", c.workspace)
	}
	return h, nil
}

func (c *Client) realtimeURL(model string) (string, error) {
	u, err := url.Parse(c.realtime)
	if err != nil {
		return "", fmt.Errorf("dashscope: invalid realtime url: %w", err)
	}
	q := u.Query()
	q.Set("model", model)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
