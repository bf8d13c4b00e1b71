package cli

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/derbi/xiaoxia/pkg/stream"
)

const (
	// DefaultBaseDir is the configuration directory under the home directory.
	DefaultBaseDir = ".xiaoxia"
	// DefaultConfigFile is the configuration file name.
	DefaultConfigFile = "config.yaml"
)

// Chat backends a context can select.
const (
	BackendHTTP   = "http"
	BackendApp    = "app"
	BackendOpenAI = "openai"
)

// ErrNoContext is returned when no context is named and none is current.
var ErrNoContext = errors.New("cli: no current context set")

// Config is the configuration file.
type Config struct {
	CurrentContext string              `yaml:"current_context,omitempty"`
	Contexts       map[string]*Context `yaml:"contexts,omitempty"`

	path string
}

// Context is one named set of endpoints, credentials and pacing.
type Context struct {
	Name string `yaml:"name"`

	// Backend is the chat backend: http (default), app or openai.
	Backend string `yaml:"backend,omitempty"`
	// BaseURL overrides the chat endpoint of the http and openai backends.
	BaseURL string `yaml:"base_url,omitempty"`
	// UserID identifies the user to the http backend.
	UserID string `yaml:"user_id,omitempty"`

	// APIKey authenticates DashScope and OpenAI-compatible calls.
	APIKey    string `yaml:"api_key,omitempty"`
	Workspace string `yaml:"workspace,omitempty"`
	// RealtimeURL overrides the DashScope realtime WebSocket endpoint.
	RealtimeURL string `yaml:"realtime_url,omitempty"`
	AppID       string `yaml:"app_id,omitempty"`
	Model       string `yaml:"model,omitempty"`
	Voice       string `yaml:"voice,omitempty"`

	Pacing *Pacing `yaml:"pacing,omitempty"`
}

// Pacing is the pacing profile of a context.
type Pacing struct {
	// Speed is slow, normal, fast or a tick interval such as 30ms.
	Speed string `yaml:"speed,omitempty"`
	// Chunk is small, medium, large or a number of characters per tick.
	Chunk string `yaml:"chunk,omitempty"`
	// Priority is reasoning-first or interleaved.
	Priority string `yaml:"priority,omitempty"`
}

// DefaultPath returns ~/.xiaoxia/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cli: home directory: %w", err)
	}
	return filepath.Join(home, DefaultBaseDir, DefaultConfigFile), nil
}

// LoadConfig reads the configuration at path, or at DefaultPath if path is
// empty. A missing file yields an empty configuration that Save creates.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	cfg := &Config{Contexts: make(map[string]*Context), path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("cli: read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cli: parse config %s: %w", path, err)
	}
	if cfg.Contexts == nil {
		cfg.Contexts = make(map[string]*Context)
	}
	for name, c := range cfg.Contexts {
		if c == nil {
			return nil, fmt.Errorf("cli: parse config %s: context %q is empty", path, name)
		}
		c.Name = name
	}
	return cfg, nil
}

// Save writes the configuration, creating its directory. The file holds API
// keys, so it is readable by the owner only.
func (c *Config) Save() error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("cli: marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("cli: create config directory: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0o600); err != nil {
		return fmt.Errorf("cli: write config: %w", err)
	}
	return nil
}

// Path returns the file the configuration is saved to.
func (c *Config) Path() string {
	return c.path
}

// AddContext validates ctx and stores it under name, replacing any context
// of that name. The first context added becomes current.
func (c *Config) AddContext(name string, ctx *Context) error {
	ctx.Name = name
	if err := ctx.Validate(); err != nil {
		return err
	}
	c.Contexts[name] = ctx
	if c.CurrentContext == "" {
		c.CurrentContext = name
	}
	return c.Save()
}

// DeleteContext removes a context.
func (c *Config) DeleteContext(name string) error {
	if _, ok := c.Contexts[name]; !ok {
		return fmt.Errorf("cli: context %q not found", name)
	}
	delete(c.Contexts, name)
	if c.CurrentContext == name {
		c.CurrentContext = ""
	}
	return c.Save()
}

// UseContext makes name the current context.
func (c *Config) UseContext(name string) error {
	if _, ok := c.Contexts[name]; !ok {
		return fmt.Errorf("cli: context %q not found", name)
	}
	c.CurrentContext = name
	return c.Save()
}

// ResolveContext returns the named context, or the current one if name is
// empty.
func (c *Config) ResolveContext(name string) (*Context, error) {
	if name == "" {
		name = c.CurrentContext
	}
	if name == "" {
		return nil, ErrNoContext
	}
	ctx, ok := c.Contexts[name]
	if !ok {
		return nil, fmt.Errorf("cli: context %q not found", name)
	}
	return ctx, nil
}

// ListContexts returns the context names in order.
func (c *Config) ListContexts() []string {
	return slices.Sorted(maps.Keys(c.Contexts))
}

// Redacted returns a copy safe to print, with API keys masked.
func (c *Config) Redacted() *Config {
	out := &Config{CurrentContext: c.CurrentContext, Contexts: make(map[string]*Context, len(c.Contexts))}
	for name, ctx := range c.Contexts {
		cp := *ctx
		cp.APIKey = MaskAPIKey(cp.APIKey)
		out.Contexts[name] = &cp
	}
	return out
}

// BackendName returns the chat backend, defaulting to http.
func (ctx *Context) BackendName() string {
	if ctx.Backend == "" {
		return BackendHTTP
	}
	return ctx.Backend
}

// Validate checks that the context names a known backend with what that
// backend needs, and that its pacing profile parses.
func (ctx *Context) Validate() error {
	switch ctx.BackendName() {
	case BackendHTTP:
	case BackendApp:
		if ctx.APIKey == "" || ctx.AppID == "" {
			return fmt.Errorf("cli: context %q: app backend needs api_key and app_id", ctx.Name)
		}
	case BackendOpenAI:
		if ctx.APIKey == "" || ctx.Model == "" {
			return fmt.Errorf("cli: context %q: openai backend needs api_key and model", ctx.Name)
		}
	default:
		return fmt.Errorf("cli: context %q: unknown backend %q", ctx.Name, ctx.Backend)
	}
	if _, err := ctx.Pacing.StreamConfig(); err != nil {
		return fmt.Errorf("cli: context %q: %w", ctx.Name, err)
	}
	return nil
}

// StreamConfig converts the profile to a pacing configuration. Unset fields
// keep the stream.DefaultConfig values; a nil profile is the default.
func (p *Pacing) StreamConfig() (stream.Config, error) {
	cfg := stream.DefaultConfig()
	if p == nil {
		return cfg, nil
	}
	var err error
	if p.Speed != "" {
		if cfg.Interval, err = ParseSpeed(p.Speed); err != nil {
			return cfg, err
		}
	}
	if p.Chunk != "" {
		if cfg.ChunkSize, err = ParseChunk(p.Chunk); err != nil {
			return cfg, err
		}
	}
	if cfg.Priority, err = stream.ParsePriority(p.Priority); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// ParseSpeed parses a speed preset or a positive duration.
func ParseSpeed(s string) (time.Duration, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "slow":
		return stream.SpeedSlow, nil
	case "normal":
		return stream.SpeedNormal, nil
	case "fast":
		return stream.SpeedFast, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("cli: speed %q is not slow, normal, fast or a positive duration", s)
	}
	return d, nil
}

// ParseChunk parses a chunk preset or a positive count.
func ParseChunk(s string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "small":
		return stream.ChunkSmall, nil
	case "medium":
		return stream.ChunkMedium, nil
	case "large":
		return stream.ChunkLarge, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("cli: chunk %q is not small, medium, large or a positive count", s)
	}
	return n, nil
}

// MaskAPIKey masks all but the first and last four characters of key.
func MaskAPIKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}
