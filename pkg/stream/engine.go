package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Normalizer turns one raw wire fragment into canonical deltas.
//
// Implementations must not panic on arbitrary input. A fragment that cannot
// be parsed yields an error wrapping ErrMalformedFragment; a fragment with no
// content yields no deltas and no error. Any other error means the server
// reported a failure and the session is failed with it.
type Normalizer interface {
	Normalize(raw []byte) ([]Delta[rune], error)
}

// NormalizerFunc adapts a function to a Normalizer.
type NormalizerFunc func(raw []byte) ([]Delta[rune], error)

// Normalize implements Normalizer.
func (f NormalizerFunc) Normalize(raw []byte) ([]Delta[rune], error) {
	return f(raw)
}

// Renderer receives paced text output.
type Renderer interface {
	Render(OutputChunk) error
}

// RenderFunc adapts a function to a Renderer.
type RenderFunc func(OutputChunk) error

// Render implements Renderer.
func (f RenderFunc) Render(c OutputChunk) error {
	return f(c)
}

// Engine is the caller-facing API for text sessions: Begin a session with a
// renderer, Feed it raw fragments, mark it done, cancel it.
//
// All methods take the session ID, so a producer that outlives its session
// cannot affect the session that replaced it.
type Engine struct {
	reg    *Registry
	norm   Normalizer
	cfg    Config
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	sessions map[ID]*Session[rune]
}

// NewEngine creates an engine. cfg is validated here and applies to every
// session the engine begins.
func NewEngine(reg *Registry, norm Normalizer, cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if norm == nil {
		return nil, errors.New("stream: engine requires a normalizer")
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		reg:      reg,
		norm:     norm,
		cfg:      cfg,
		logger:   reg.logger,
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[ID]*Session[rune]),
	}, nil
}

// Registry returns the registry the engine's sessions live in.
func (e *Engine) Registry() *Registry {
	return e.reg
}

// Config returns the pacing configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Begin starts a session on ch and its pacer. The previous session on ch,
// if any, is cancelled first. r receives every chunk of the new session.
// Sessions that closed before the call are released; Wait on them afterwards
// reports ErrUnknownSession.
func (e *Engine) Begin(ch Channel, r Renderer) ID {
	e.mu.Lock()
	// Sessions of any channel closed before this call are forgotten; the one
	// displaced below stays available to Wait until the next Begin.
	for id, old := range e.sessions {
		if old.State() == StateClosed {
			delete(e.sessions, id)
		}
	}
	e.mu.Unlock()

	s := Begin[rune](e.reg, ch)
	p := &Pacer[rune]{
		session: s,
		cfg:     e.cfg,
		sink: SinkFunc[rune](func(c Chunk[rune]) error {
			return r.Render(TextChunk(c))
		}),
		logger: e.logger,
	}

	e.mu.Lock()
	e.sessions[s.id] = s
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		p.Run(e.ctx)
	}()
	e.logger.Debug("stream/engine: session begun", "channel", ch, "id", s.id)
	return s.id
}

func (e *Engine) lookup(id ID) *Session[rune] {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sessions[id]
}

// Feed normalizes one raw fragment and applies the resulting deltas.
// Malformed fragments are dropped. A fragment that carries a server error
// fails the session. Feed reports whether the producer should keep feeding:
// false once the session is closed or failed.
func (e *Engine) Feed(id ID, raw []byte) bool {
	s := e.lookup(id)
	if s == nil {
		e.reg.countStale("", id)
		return false
	}
	if !s.Live() {
		e.reg.countStale(s.channel, id)
		return false
	}

	deltas, err := e.norm.Normalize(raw)
	switch {
	case errors.Is(err, ErrMalformedFragment):
		e.reg.metrics.malformed()
		e.logger.Debug("stream/engine: malformed fragment dropped",
			"channel", s.channel, "id", id, "error", err)
		return true
	case err != nil:
		e.logger.Warn("stream/engine: server reported failure",
			"channel", s.channel, "id", id, "error", err)
		s.Fail(err)
		return false
	}
	for _, d := range deltas {
		if !s.Apply(d) {
			return false
		}
	}
	return true
}

// Apply applies an already-canonical delta.
func (e *Engine) Apply(id ID, d Delta[rune]) bool {
	s := e.lookup(id)
	if s == nil {
		e.reg.countStale("", id)
		return false
	}
	return s.Apply(d)
}

// ProducerDone marks the producer of id as finished. The session closes once
// the pacer has released everything.
func (e *Engine) ProducerDone(id ID) bool {
	s := e.lookup(id)
	if s == nil {
		e.reg.countStale("", id)
		return false
	}
	return s.Finish()
}

// Fail marks the producer of id as failed with a transport error. Pending
// content is delivered in a best-effort final chunk carrying the error.
func (e *Engine) Fail(id ID, err error) bool {
	s := e.lookup(id)
	if s == nil {
		e.reg.countStale("", id)
		return false
	}
	var te *TransportError
	if !errors.As(err, &te) {
		err = &TransportError{Channel: s.channel, ID: id, Err: err}
	}
	return s.Fail(err)
}

// Cancel closes the session immediately. It is idempotent.
func (e *Engine) Cancel(id ID) bool {
	return e.reg.Cancel(id)
}

// IsActive reports whether id is still the live session of its channel.
func (e *Engine) IsActive(id ID) bool {
	return e.reg.IsActive(id)
}

// Done returns a channel closed when the session closes. Unknown sessions
// return an already closed channel.
func (e *Engine) Done(id ID) <-chan struct{} {
	if s := e.lookup(id); s != nil {
		return s.Done()
	}
	ch := make(chan struct{})
	close(ch)
	return ch
}

// Wait blocks until the session closes. It returns the producer error for a
// failed session, nil for a completed or cancelled one.
func (e *Engine) Wait(ctx context.Context, id ID) error {
	s := e.lookup(id)
	if s == nil {
		return fmt.Errorf("%w: %d", ErrUnknownSession, id)
	}
	return s.Wait(ctx)
}

// Close cancels every session begun by the engine and waits for their pacers
// to stop.
func (e *Engine) Close() error {
	e.cancel()
	e.wg.Wait()
	return nil
}
