package chat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/derbi/xiaoxia/pkg/sse"
	"github.com/derbi/xiaoxia/pkg/stream"
)

// Feeder is the part of stream.Engine a producer drives.
type Feeder interface {
	Feed(id stream.ID, raw []byte) bool
	ProducerDone(id stream.ID) bool
	Fail(id stream.ID, err error) bool
	Cancel(id stream.ID) bool
	Done(id stream.ID) <-chan struct{}
}

var _ Feeder = (*stream.Engine)(nil)

type pumpOptions struct {
	logger *slog.Logger
}

// PumpOption configures Pump.
type PumpOption func(*pumpOptions)

// WithLogger sets the logger used for read failures. Defaults to
// slog.Default().
func WithLogger(l *slog.Logger) PumpOption {
	return func(o *pumpOptions) {
		o.logger = l
	}
}

// Pump reads body until it ends and feeds every data line to session id.
//
// A clean end of the body marks the producer done. A read error fails the
// session and is returned as a *stream.TransportError. If the session closes
// first (cancelled, displaced) the body is closed to unblock the read and
// Pump returns nil. If ctx is done the session is cancelled the same way:
// cancellation is not an error.
//
// Pump always closes body.
func Pump(ctx context.Context, f Feeder, id stream.ID, body io.ReadCloser, opts ...PumpOption) error {
	o := pumpOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	var closeOnce sync.Once
	closeBody := func() { closeOnce.Do(func() { body.Close() }) }
	defer closeBody()

	stop := make(chan struct{})
	watcher := make(chan struct{})
	go func() {
		defer close(watcher)
		select {
		case <-ctx.Done():
			f.Cancel(id)
		case <-f.Done(id):
		case <-stop:
			return
		}
		closeBody()
	}()
	defer func() {
		close(stop)
		<-watcher
	}()

	r := sse.NewReader(body)
	for {
		payload, err := r.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				f.ProducerDone(id)
				return nil
			}
			if stopped(ctx, f, id) {
				return nil
			}
			te := &stream.TransportError{Channel: stream.ChannelChat, ID: id, Err: err}
			o.logger.Warn("chat/pump: stream read failed", "id", id, "error", err)
			f.Fail(id, te)
			return te
		}
		if !f.Feed(id, payload) {
			return nil
		}
	}
}

func stopped(ctx context.Context, f Feeder, id stream.ID) bool {
	if ctx.Err() != nil {
		return true
	}
	select {
	case <-f.Done(id):
		return true
	default:
		return false
	}
}
