package chat

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/derbi/xiaoxia/pkg/stream"
)

// Sender runs chat turns on the engine's chat channel. Sending while a turn
// is still streaming cancels that turn.
type Sender struct {
	engine  *stream.Engine
	feeder  Feeder
	backend Backend
	logger  *slog.Logger

	wg sync.WaitGroup
}

// NewSender creates a sender.
func NewSender(engine *stream.Engine, backend Backend) *Sender {
	return &Sender{engine: engine, feeder: engine, backend: backend, logger: slog.Default()}
}

// Tap routes every producer callback through wrap(engine), e.g. to record
// the raw stream. It must be called before the first Send.
func (s *Sender) Tap(wrap func(Feeder) Feeder) {
	s.feeder = wrap(s.engine)
}

// SetLogger replaces the default logger.
func (s *Sender) SetLogger(l *slog.Logger) {
	s.logger = l
}

// Send starts a turn and returns its session ID once the response stream is
// open. The response is pumped in the background until it ends, ctx is done,
// or the session is cancelled. r receives the paced output.
//
// If the backend cannot be opened the session is failed with the error, so
// r still sees a final chunk, and the error is returned.
func (s *Sender) Send(ctx context.Context, req Request, r stream.Renderer) (stream.ID, error) {
	id := s.engine.Begin(stream.ChannelChat, r)
	s.logger.Debug("chat/sender: send", "id", id, "deep_thinking", req.DeepThinking)

	body, err := s.backend.Open(ctx, req)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			s.engine.Cancel(id)
			return id, nil
		}
		te := &stream.TransportError{Channel: stream.ChannelChat, ID: id, Err: err}
		s.engine.Fail(id, te)
		return id, te
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := Pump(ctx, s.feeder, id, body, WithLogger(s.logger)); err != nil {
			s.logger.Debug("chat/sender: turn failed", "id", id, "error", err)
		}
	}()
	return id, nil
}

// Cancel stops the turn.
func (s *Sender) Cancel(id stream.ID) bool {
	return s.engine.Cancel(id)
}

// Wait blocks until the turn's output has been fully delivered. It returns
// the transport or server error of a failed turn, nil otherwise.
func (s *Sender) Wait(ctx context.Context, id stream.ID) error {
	return s.engine.Wait(ctx, id)
}

// Close waits for every background pump to return. Sessions still open are
// left to the engine.
func (s *Sender) Close() {
	s.wg.Wait()
}
